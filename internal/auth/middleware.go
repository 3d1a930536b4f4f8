package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Middleware authenticates "Authorization: Bearer <key>" and attaches the
// company scope to the request context.
func Middleware(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}
			scope, err := service.Authenticate(r.Context(), token)
			if err != nil {
				if logger != nil {
					logger.Warn("api key rejected", slog.String("path", r.URL.Path))
				}
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithScope(r.Context(), scope)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="odyssey-books"`)
	httpx.RespondError(w, shared.ErrUnauthorized)
}
