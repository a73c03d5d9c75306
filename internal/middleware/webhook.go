package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/audit"
	apperrors "github.com/trelloplus/bot-server-go/internal/errors"
	"github.com/trelloplus/bot-server-go/internal/httputil"
	"github.com/trelloplus/bot-server-go/internal/util"
)

// TokenHashParam is the route parameter holding the webhook secret path.
const TokenHashParam = "tokenHash"

// WebhookTokenMiddleware rejects webhook calls whose path does not carry the
// expected token hash. It runs before the body is read.
type WebhookTokenMiddleware struct {
	tokenHash string
}

func NewWebhookTokenMiddleware(tokenHash string) *WebhookTokenMiddleware {
	return &WebhookTokenMiddleware{tokenHash: tokenHash}
}

func (m *WebhookTokenMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := chi.URLParam(r, TokenHashParam)
		if m.tokenHash == "" || !util.ConstantTimeEqual(got, m.tokenHash) {
			log.Warn().Str("ip", r.RemoteAddr).Msg("webhook middleware: token hash mismatch")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventWebhookUnauthorized,
				Details: map[string]any{"tokenHash": util.MaskToken(got)},
			})
			httputil.WriteError(w, apperrors.Unauthorized("Invalid token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
