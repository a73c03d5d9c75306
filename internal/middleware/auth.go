package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/audit"
	"github.com/trelloplus/bot-server-go/internal/config"
	apperrors "github.com/trelloplus/bot-server-go/internal/errors"
	"github.com/trelloplus/bot-server-go/internal/httputil"
	"github.com/trelloplus/bot-server-go/internal/service"
	"github.com/trelloplus/bot-server-go/internal/util"
)

type contextKey string

const AdminContextKey contextKey = "admin"

// GetAdmin returns the authenticated admin username, or "".
func GetAdmin(ctx context.Context) string {
	if name, ok := ctx.Value(AdminContextKey).(string); ok {
		return name
	}
	return ""
}

// AdminAuthMiddleware guards the admin API with HTTP basic auth checked
// against a bcrypt hash. Failed attempts are limited per client IP.
type AdminAuthMiddleware struct {
	passwordHash string
	limiter      service.RateLimiter
}

func NewAdminAuthMiddleware(passwordHash string, limiter service.RateLimiter) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{passwordHash: passwordHash, limiter: limiter}
}

func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.passwordHash == "" {
			httputil.WriteError(w, apperrors.NotFound("Admin API"))
			return
		}

		user, password, ok := r.BasicAuth()
		if ok && user == config.AdminUsername && util.CheckPasswordHash(password, m.passwordHash) {
			ctx := context.WithValue(r.Context(), AdminContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventAdminAuthFailure,
			Details: map[string]any{"username": user, "path": r.URL.Path},
		})

		if m.limiter != nil {
			key := fmt.Sprintf("admin-login:%s", r.RemoteAddr)
			allowed, resetAt := m.limiter.CheckLimit(r.Context(), key, config.AdminLoginMaxAttempts, config.AdminLoginWindow)
			if !allowed {
				log.Warn().Str("ip", r.RemoteAddr).Msg("admin auth: too many failed attempts")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(time.Until(resetAt).Seconds())+1))
				httputil.WriteError(w, apperrors.RateLimitExceeded())
				return
			}
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="admin", charset="UTF-8"`)
		httputil.WriteError(w, apperrors.Unauthorized("Invalid credentials"))
	})
}
