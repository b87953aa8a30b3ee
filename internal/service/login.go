package service

import (
	"context"

	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/store"
)

// RecordLogin stamps the last login of a principal and audits it.
func (s *Service) RecordLogin(ctx context.Context, principal domain.Principal) error {
	ctx = WithActor(ctx, principal)
	return s.repo.Update(ctx, func(tx store.Tx) error {
		if err := tx.RecordUserLogin(ctx, domain.UserLogin{
			Username:    principal.Username,
			Role:        principal.Role,
			LastLoginAt: s.now(),
		}); err != nil {
			return err
		}
		return s.audit(ctx, tx, "login", principal.Role, principal.Username, "")
	})
}
