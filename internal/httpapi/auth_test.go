package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"liquorstock/backend/internal/apperror"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/store"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	users := &userStoreStub{
		users: map[string]domain.UserAccount{
			"owner": {Username: "owner", Password: "legacy-plain", Role: domain.RoleOwner, Active: true},
		},
	}
	auth := NewAuthManager("secret", time.Hour, users)

	principal, err := auth.Verify(context.Background(), "owner", "legacy-plain")
	if err != nil {
		t.Fatalf("expected legacy password to verify, got %v", err)
	}
	if principal.Role != domain.RoleOwner {
		t.Fatalf("expected owner role, got %q", principal.Role)
	}
	if users.updates != 1 {
		t.Fatalf("expected one password upgrade, got %d", users.updates)
	}
	if !isPasswordHash(users.users["owner"].Password) {
		t.Fatalf("expected stored password to be hashed")
	}
}

func TestSyncUsersCreatesAndRotatesAccounts(t *testing.T) {
	users := &userStoreStub{}
	auth := NewAuthManager("secret", time.Hour, users)
	ctx := context.Background()

	err := auth.SyncUsers(ctx, []Account{
		{Username: "Owner", Password: "first-pass", Role: domain.RoleOwner},
		{Username: "supervisor", Password: "", Role: domain.RoleSupervisor},
	})
	if err != nil {
		t.Fatalf("sync users: %v", err)
	}
	if len(users.users) != 1 {
		t.Fatalf("accounts without a password are skipped, got %d users", len(users.users))
	}
	if _, err := auth.Verify(ctx, "owner", "first-pass"); err != nil {
		t.Fatalf("verify synced owner: %v", err)
	}

	if err := auth.SyncUsers(ctx, []Account{{Username: "owner", Password: "second-pass", Role: domain.RoleOwner}}); err != nil {
		t.Fatalf("resync users: %v", err)
	}
	if _, err := auth.Verify(ctx, "owner", "first-pass"); !apperror.HasCode(err, apperror.CodeUnauthorized) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := auth.Verify(ctx, "owner", "second-pass"); err != nil {
		t.Fatalf("verify rotated password: %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	auth := NewAuthManager("secret", time.Hour, &userStoreStub{})
	token, expiresAt, err := auth.IssueToken(domain.Principal{Username: "supervisor", Role: domain.RoleSupervisor})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected expiry in the future, got %s", expiresAt)
	}

	principal, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if principal.Username != "supervisor" || principal.Role != domain.RoleSupervisor {
		t.Fatalf("unexpected principal %+v", principal)
	}

	other := NewAuthManager("another-secret", time.Hour, &userStoreStub{})
	if _, err := other.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestParseTokenRejectsUnsignedAndExpired(t *testing.T) {
	auth := NewAuthManager("secret", time.Hour, &userStoreStub{})

	unsigned := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, stockClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "owner"},
		Role:             domain.RoleOwner,
	})
	raw, err := unsigned.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := auth.ParseToken(raw); err == nil {
		t.Fatalf("expected alg none to be rejected")
	}

	expired := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, stockClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "owner",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: domain.RoleOwner,
	})
	raw, err = expired.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	_, err = auth.ParseToken(raw)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestBasicCredentialIsReservedForAdmins(t *testing.T) {
	users := &userStoreStub{}
	auth := NewAuthManager("secret", time.Hour, users)
	ctx := context.Background()
	if err := auth.SyncUsers(ctx, []Account{
		{Username: "admin", Password: "admin-pass", Role: domain.RoleAdmin},
		{Username: "owner", Password: "owner-pass", Role: domain.RoleOwner},
	}); err != nil {
		t.Fatalf("sync users: %v", err)
	}

	principal, err := BasicCredential{Username: "admin", Password: "admin-pass"}.Resolve(ctx, auth)
	if err != nil || principal.Role != domain.RoleAdmin {
		t.Fatalf("expected admin principal, got %+v %v", principal, err)
	}
	if _, err := (BasicCredential{Username: "owner", Password: "owner-pass"}).Resolve(ctx, auth); !apperror.HasCode(err, apperror.CodeUnauthorized) {
		t.Fatalf("expected owners to be refused basic auth, got %v", err)
	}
}
