package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a random identifier such as "audit-1b4e28ba2fa1...".
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
