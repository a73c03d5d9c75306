package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trelloplus/bot-server-go/internal/util"
)

type fakeLimiter struct {
	mu      sync.Mutex
	allowed map[string]int
	calls   []string
}

func (f *fakeLimiter) CheckLimit(_ context.Context, key string, limit int, window time.Duration) (bool, time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	if f.allowed == nil {
		f.allowed = make(map[string]int)
	}
	f.allowed[key]++
	return f.allowed[key] <= limit, time.Now().Add(window)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdminAuthMiddleware(t *testing.T) {
	hash, err := util.HashPassword("s3cret")
	require.NoError(t, err)

	t.Run("disabled without hash", func(t *testing.T) {
		handler := NewAdminAuthMiddleware("", nil).Handler(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/admin/executions", nil)
		req.SetBasicAuth("admin", "s3cret")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("accepts valid credentials", func(t *testing.T) {
		var admin string
		handler := NewAdminAuthMiddleware(hash, &fakeLimiter{}).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin = GetAdmin(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/admin/executions", nil)
		req.SetBasicAuth("admin", "s3cret")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "admin", admin)
	})

	tests := []struct {
		name     string
		user     string
		password string
		noAuth   bool
	}{
		{"missing header", "", "", true},
		{"wrong password", "admin", "nope", false},
		{"wrong user", "root", "s3cret", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAdminAuthMiddleware(hash, &fakeLimiter{}).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))
			req := httptest.NewRequest(http.MethodGet, "/admin/executions", nil)
			if !tt.noAuth {
				req.SetBasicAuth(tt.user, tt.password)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
		})
	}

	t.Run("locks out after repeated failures", func(t *testing.T) {
		limiter := &fakeLimiter{}
		handler := NewAdminAuthMiddleware(hash, limiter).Handler(okHandler())

		var last int
		for i := 0; i < 6; i++ {
			req := httptest.NewRequest(http.MethodGet, "/admin/executions", nil)
			req.RemoteAddr = "10.0.0.1"
			req.SetBasicAuth("admin", "wrong")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			last = rec.Code
		}

		assert.Equal(t, http.StatusTooManyRequests, last)
		assert.Equal(t, "admin-login:10.0.0.1", limiter.calls[0])
	})
}

func TestWebhookTokenMiddleware(t *testing.T) {
	newRouter := func(hash string) http.Handler {
		r := chi.NewRouter()
		r.With(NewWebhookTokenMiddleware(hash).Handler).Post("/bot/{tokenHash}/", okHandler().ServeHTTP)
		return r
	}

	tests := []struct {
		name string
		hash string
		path string
		want int
	}{
		{"matching hash", "abc123", "/bot/abc123/", http.StatusOK},
		{"wrong hash", "abc123", "/bot/abc124/", http.StatusUnauthorized},
		{"prefix of hash", "abc123", "/bot/abc/", http.StatusUnauthorized},
		{"not configured", "", "/bot/abc123/", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, bytes.NewBufferString(`{}`))
			rec := httptest.NewRecorder()

			newRouter(tt.hash).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIPRateLimitMiddleware(t *testing.T) {
	limiter := &fakeLimiter{}
	handler := NewIPRateLimitMiddleware(limiter, 2, time.Minute, "token").Handler(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/token/", nil)
		req.RemoteAddr = "192.0.2.7"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "ip:token:192.0.2.7", limiter.calls[0])
}

func TestBodyLimitMiddleware(t *testing.T) {
	handler := NewBodyLimitMiddleware(8).Handler(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/bot/x/", strings.NewReader("0123456789"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/bot/x/", strings.NewReader("0123"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	NewSecurityHeadersMiddleware(true).Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
}

func TestRedactPath(t *testing.T) {
	assert.Equal(t, "/bot/***/", redactPath("/bot/0123456789abcdef/"))
	assert.Equal(t, "/token/", redactPath("/token/"))
	assert.Equal(t, "/bot/", redactPath("/bot/"))
}

func TestRequestLogger(t *testing.T) {
	rec := httptest.NewRecorder()
	RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
