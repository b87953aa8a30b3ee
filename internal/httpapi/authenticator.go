package httpapi

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"liquorstock/backend/internal/apperror"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/logger"
	"liquorstock/backend/internal/service"
)

// Credential is what a request presents to prove who it is.
type Credential interface {
	Resolve(ctx context.Context, auth *AuthManager) (domain.Principal, error)
}

// BasicCredential is a username and password sent with every request. Only
// admins authenticate this way.
type BasicCredential struct {
	Username string
	Password string
}

func (c BasicCredential) Resolve(ctx context.Context, auth *AuthManager) (domain.Principal, error) {
	principal, err := auth.Verify(ctx, c.Username, c.Password)
	if err != nil {
		return domain.Principal{}, err
	}
	if principal.Role != domain.RoleAdmin {
		return domain.Principal{}, apperror.NewUnauthorized("basic authentication is reserved for admins")
	}
	return principal, nil
}

// BearerToken is a token issued at login.
type BearerToken string

func (t BearerToken) Resolve(_ context.Context, auth *AuthManager) (domain.Principal, error) {
	return auth.ParseToken(string(t))
}

// credentialFrom reads the Authorization header.
func credentialFrom(r *http.Request) (Credential, error) {
	if username, password, ok := r.BasicAuth(); ok {
		return BasicCredential{Username: username, Password: password}, nil
	}
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		return nil, apperror.NewUnauthorized("Missing or invalid Authorization header")
	}
	token := strings.TrimSpace(authorization[len("Bearer "):])
	if token == "" {
		return nil, apperror.NewUnauthorized("Missing or invalid Authorization header")
	}
	return BearerToken(token), nil
}

// Authenticate resolves the request's credential into a principal once and
// rejects roles outside roles. No roles admits every principal.
func (a *API) Authenticate(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, err := credentialFrom(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			principal, err := cred.Resolve(r.Context(), a.auth)
			if err != nil {
				if _, basic := cred.(BasicCredential); basic {
					w.Header().Set("WWW-Authenticate", `Basic realm="Admin"`)
				}
				writeError(w, r, err)
				return
			}
			if len(roles) > 0 && !slices.Contains(roles, principal.Role) {
				writeError(w, r, apperror.NewForbidden("Forbidden"))
				return
			}

			ctx := service.WithActor(r.Context(), principal)
			if _, basic := cred.(BasicCredential); basic {
				if isMutation(r.Method) && !a.validateCSRFToken(r.Header.Get("X-CSRF-Token")) {
					writeError(w, r, apperror.NewForbidden("missing or invalid CSRF token"))
					return
				}
				if err := a.service.RecordLogin(ctx, principal); err != nil {
					logger.Warn(ctx, "record admin login failed", "error", err)
				}
			}
			ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With("user", principal.Username, "role", principal.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
