package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"liquorstock/backend/internal/apperror"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/logger"
	"liquorstock/backend/internal/store"
)

var errInvalidCredentials = apperror.NewUnauthorized("Invalid username or password")

// Account is a user declared in configuration.
type Account struct {
	Username string
	Password string
	Role     string
}

type AuthManager struct {
	mu        sync.RWMutex
	secret    []byte
	tokenTTL  time.Duration
	userStore store.UserStore
	users     map[string]credential
}

type credential struct {
	password string
	role     string
	active   bool
}

type stockClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore store.UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		users:     make(map[string]credential),
	}
}

// SyncUsers makes the user store hold the configured accounts with their
// configured passwords. Accounts without a password are skipped.
func (a *AuthManager) SyncUsers(ctx context.Context, accounts []Account) error {
	for _, account := range accounts {
		username := strings.ToLower(strings.TrimSpace(account.Username))
		if username == "" || account.Password == "" {
			continue
		}
		existing, err := a.userStore.GetUser(ctx, username)
		switch {
		case errors.Is(err, store.ErrNotFound):
			hashed, err := hashPassword(account.Password)
			if err != nil {
				return err
			}
			if err := a.userStore.CreateUser(ctx, domain.UserAccount{
				Username:  username,
				Password:  hashed,
				Role:      account.Role,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			}); err != nil {
				return err
			}
		case err != nil:
			return err
		case !verifyPassword(existing.Password, account.Password):
			hashed, err := hashPassword(account.Password)
			if err != nil {
				return err
			}
			if err := a.userStore.UpdateUserPassword(ctx, username, hashed); err != nil {
				return err
			}
		}
	}
	a.bootstrapUsers(ctx)
	return nil
}

// Verify checks a username and password against the cached credentials.
func (a *AuthManager) Verify(ctx context.Context, username string, password string) (domain.Principal, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok {
		a.bootstrapUsers(ctx)
		a.mu.RLock()
		cred, ok = a.users[username]
		a.mu.RUnlock()
	}
	if !ok || !verifyPassword(cred.password, password) {
		return domain.Principal{}, errInvalidCredentials
	}
	if !cred.active {
		return domain.Principal{}, apperror.NewUnauthorized("account is inactive")
	}
	return domain.Principal{Username: username, Role: cred.role}, nil
}

// IssueToken signs a bearer token for principal.
func (a *AuthManager) IssueToken(principal domain.Principal) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(a.tokenTTL)
	claims := stockClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   principal.Username,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "liquorstock",
		},
		Role: principal.Role,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Principal, error) {
	claims := &stockClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Principal{}, apperror.NewUnauthorized("Invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Principal{}, apperror.NewUnauthorized("invalid token subject")
	}
	return domain.Principal{Username: sub, Role: claims.Role}, nil
}

// bootstrapUsers loads user accounts from the user store into the in-memory
// credential cache and upgrades plain-text passwords to bcrypt hashes.
func (a *AuthManager) bootstrapUsers(ctx context.Context) {
	if a.userStore == nil {
		return
	}

	users, err := a.userStore.ListUsers(ctx)
	if err != nil {
		logger.Warn(ctx, "load users failed", "error", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, user := range users {
		username := strings.ToLower(strings.TrimSpace(user.Username))
		if username == "" {
			continue
		}
		password := user.Password
		if !isPasswordHash(password) {
			hashed, err := hashPassword(password)
			if err == nil {
				password = hashed
				_ = a.userStore.UpdateUserPassword(ctx, username, hashed)
			}
		}
		a.users[username] = credential{
			password: password,
			role:     user.Role,
			active:   user.Active,
		}
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
