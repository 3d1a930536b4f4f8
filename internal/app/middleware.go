package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/odyssey-erp/odyssey-books/internal/observability"
	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// IdempotencyHeader carries the client supplied key for POST requests.
const IdempotencyHeader = "Idempotency-Key"

// IdempotencyStore records processed keys per company.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, companyID int64, key, module string) error
	Delete(ctx context.Context, companyID int64, key, module string) error
}

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack installs the process wide middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					if cfg.Logger != nil {
						cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					}
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}

// RateLimit throttles each company to perMinute requests. Requests without a
// scope fall back to the client IP.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		perMinute = 120
	}
	return httprate.Limit(perMinute, time.Minute, httprate.WithKeyFuncs(keyByCompany))
}

func keyByCompany(r *http.Request) (string, error) {
	if scope, ok := shared.ScopeFromContext(r.Context()); ok {
		return fmt.Sprintf("company:%d", scope.CompanyID), nil
	}
	return httprate.KeyByIP(r)
}

// Idempotency rejects POST replays carrying an already processed
// Idempotency-Key. The key is released when the request fails so the client
// can retry it.
func Idempotency(store IdempotencyStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if r.Method != http.MethodPost || key == "" || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			scope, err := httpx.Scope(r)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			if len(key) > 255 {
				httpx.RespondError(w, fmt.Errorf("%w: %s too long", shared.ErrValidation, IdempotencyHeader))
				return
			}
			module := r.Method + " " + r.URL.Path
			if err := store.CheckAndInsert(r.Context(), scope.CompanyID, key, module); err != nil {
				httpx.Fail(w, logger, "idempotency check", err)
				return
			}
			recorder := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			if recorder.status >= http.StatusBadRequest {
				if err := store.Delete(context.WithoutCancel(r.Context()), scope.CompanyID, key, module); err != nil && logger != nil {
					logger.Warn("release idempotency key", slog.String("module", module), slog.Any("error", err))
				}
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(data []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}
