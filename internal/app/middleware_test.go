package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/observability"
	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]bool)}
}

func (m *memoryIdempotency) id(companyID int64, key, module string) string {
	return fmt.Sprintf("%d|%s|%s", companyID, key, module)
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, companyID int64, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id(companyID, key, module)
	if m.keys[id] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[id] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, companyID int64, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, m.id(companyID, key, module))
	return nil
}

func withScope(companyID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithScope(r.Context(), shared.Scope{CompanyID: companyID, Actor: "test"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func postWithKey(handler http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/journal-entries", nil)
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyRejectsReplay(t *testing.T) {
	store := newMemoryIdempotency()
	var calls int
	handler := withScope(1)(Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		httpx.JSON(w, http.StatusCreated, map[string]int{"id": calls})
	})))

	require.Equal(t, http.StatusCreated, postWithKey(handler, "abc").Code)
	rec := postWithKey(handler, "abc")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, calls)

	require.Equal(t, http.StatusCreated, postWithKey(handler, "").Code)
	require.Equal(t, http.StatusCreated, postWithKey(handler, "").Code)
	assert.Equal(t, 3, calls)
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	store := newMemoryIdempotency()
	fail := true
	handler := withScope(1)(Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			httpx.RespondError(w, shared.ErrPeriodLocked)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})))

	assert.Equal(t, http.StatusUnprocessableEntity, postWithKey(handler, "retry-me").Code)
	fail = false
	assert.Equal(t, http.StatusCreated, postWithKey(handler, "retry-me").Code)
	assert.Equal(t, http.StatusConflict, postWithKey(handler, "retry-me").Code)
}

func TestIdempotencyIsPerCompany(t *testing.T) {
	store := newMemoryIdempotency()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) })

	first := withScope(1)(Idempotency(store, nil)(ok))
	second := withScope(2)(Idempotency(store, nil)(ok))
	assert.Equal(t, http.StatusCreated, postWithKey(first, "k").Code)
	assert.Equal(t, http.StatusCreated, postWithKey(second, "k").Code)
}

func TestRateLimitIsPerCompany(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	limiter := RateLimit(2)
	acme := withScope(1)(limiter(ok))
	globex := withScope(2)(limiter(ok))

	get := func(h http.Handler) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, get(acme))
	assert.Equal(t, http.StatusOK, get(acme))
	assert.Equal(t, http.StatusTooManyRequests, get(acme))
	assert.Equal(t, http.StatusOK, get(globex))
}

func TestRouterRequiresAuthenticationForAPI(t *testing.T) {
	denyAll := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpx.RespondError(w, shared.ErrUnauthorized)
		})
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(RouterParams{
		Logger:          logger,
		Config:          &Config{RateLimitPerMinute: 10},
		Authenticate:    denyAll,
		Metrics:         observability.NewMetrics(),
		AccountsHandler: accounts.NewHandler(logger, accounts.NewService(nil)),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
