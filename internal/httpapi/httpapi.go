package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/unrolled/secure"

	"liquorstock/backend/internal/apperror"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/logger"
	"liquorstock/backend/internal/service"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 10 << 20
)

type Options struct {
	AllowedOrigin  string
	RequestTimeout time.Duration
	// LoginAttempts is the number of logins allowed per client IP per minute.
	LoginAttempts int
	Production    bool
}

type API struct {
	service        *service.Service
	auth           *AuthManager
	validate       *validator.Validate
	secure         *secure.Secure
	allowedOrigin  string
	requestTimeout time.Duration
	loginAttempts  int
	csrfSecret     []byte
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.LoginAttempts <= 0 {
		opts.LoginAttempts = 5
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &API{
		service:  svc,
		auth:     auth,
		validate: validate,
		secure: secure.New(secure.Options{
			FrameDeny:          true,
			ContentTypeNosniff: true,
			BrowserXssFilter:   true,
			ReferrerPolicy:     "strict-origin-when-cross-origin",
			SSLRedirect:        opts.Production,
			SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
			IsDevelopment:      !opts.Production,
		}),
		allowedOrigin:  opts.AllowedOrigin,
		requestTimeout: opts.RequestTimeout,
		loginAttempts:  opts.LoginAttempts,
		csrfSecret:     csrfSecret,
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		middleware.RequestID,
		a.requestLogger,
		middleware.Recoverer,
		a.secure.Handler,
		a.cors,
		middleware.Timeout(a.requestTimeout),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, apperror.NewNotFound("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed", Code: "METHOD_NOT_ALLOWED"})
	})

	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(httprate.Limit(
			a.loginAttempts, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many login attempts", Code: "RATE_LIMITED"})
			}),
		)).Post("/auth/login", a.handleLogin)
		r.Get("/auth/csrf-token", a.handleCSRFToken)

		r.Group(func(r chi.Router) {
			r.Use(a.Authenticate())
			r.Get("/stock", a.handleListStock)
			r.Post("/stock/update", a.handleUpdateStock)
			r.Post("/invoices/preview", a.handlePreviewInvoice)
			r.Post("/invoices", a.handleIngestInvoice)
			r.Get("/sell-reports/prepare", a.handlePrepareSellReport)
			r.Get("/sell-finance/prepare", a.handlePrepareSellFinance)
			r.Post("/sell-finance", a.handleCreateSellFinance)
			r.Get("/sell-finance/overview", a.handleFinanceOverview)
		})
		r.With(a.Authenticate(domain.RoleSupervisor)).Post("/sell-reports", a.handleCreateSellReport)
		r.With(a.Authenticate(domain.RoleOwner)).Post("/sell-reports/edit-last", a.handleEditLastSellReport)
		r.With(a.Authenticate(domain.RoleOwner, domain.RoleSupervisor, domain.RoleAdmin)).
			Get("/sell-reports/{date}/export", a.handleExportSellReport)

		r.Group(func(r chi.Router) {
			r.Use(a.Authenticate(domain.RoleOwner, domain.RoleSupervisor))
			r.Get("/dashboard/summary", a.handleDashboardSummary)
			r.Get("/reports/invoices", a.handleListInvoices)
			r.Get("/reports/sell-reports", a.handleListSellReports)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(a.Authenticate(domain.RoleAdmin, domain.RoleOwner, domain.RoleSupervisor))
				r.Get("/status", a.handleAdminStatus)
				r.Get("/db-summary", a.handleDBSummary)
			})
			r.Group(func(r chi.Router) {
				r.Use(a.Authenticate(domain.RoleAdmin))
				r.Get("/audit-logs", a.handleAuditLogs)
				r.Get("/user-logins", a.handleUserLogins)
				r.Delete("/sell-reports/{date}", a.handleDeleteSellReport)
				r.Delete("/invoices/{number}", a.handleDeleteInvoice)
				r.Delete("/sell-finance/{date}", a.handleDeleteSellFinance)
				r.Patch("/stock/{id}", a.handlePatchStock)
				r.Get("/price-list", a.handleListPriceList)
				r.Post("/price-list", a.handleImportPriceList)
			})
		})
	})
	return r
}

func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger attaches a request-scoped logger and logs each request once
// it completes.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With("request_id", middleware.GetReqID(ctx)))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		logger.Info(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(startedAt),
		)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// decodeJSON reads a JSON body into dest and validates it. Unknown fields are
// rejected unless lenient is set.
func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, dest any, lenient bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	decoder := json.NewDecoder(r.Body)
	if !lenient {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.NewValidation("request body too large")
		}
		return apperror.NewValidation("invalid JSON body").WithCause(err)
	}
	return a.validateStruct(dest)
}

func (a *API) validateStruct(v any) error {
	err := a.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.NewValidation(err.Error())
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Slice {
			return apperror.NewValidation(fmt.Sprintf("%s list is required", fe.Field()))
		}
		return apperror.NewValidation(fmt.Sprintf("%s is required", fe.Field()))
	case "min":
		return apperror.NewValidation(fmt.Sprintf("%s must have at least %s entries", fe.Field(), fe.Param()))
	default:
		return apperror.NewValidation(fmt.Sprintf("%s is invalid", fe.Field()))
	}
}

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// writeError sends err with its taxonomy status. Server-side failures are
// logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	pub := apperror.Public(err)
	if pub.HTTPStatus >= http.StatusInternalServerError {
		logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, pub.HTTPStatus, errorBody{Error: pub.Message, Code: pub.Code, Details: pub.Details})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
