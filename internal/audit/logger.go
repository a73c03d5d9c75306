package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventWebhookUnauthorized EventType = "webhook_unauthorized"
	EventAdminAuthFailure    EventType = "admin_auth_failure"
	EventPairingIssued       EventType = "pairing_issued"
	EventPairingRedeemed     EventType = "pairing_redeemed"
	EventPairingRejected     EventType = "pairing_rejected"
	EventRateLimitExceed     EventType = "rate_limit_exceeded"
	EventUserDeleted         EventType = "user_deleted"
	EventBroadcast           EventType = "broadcast"
)

// Event is a security relevant action. TgID identifies the Telegram user
// when one is involved.
type Event struct {
	Type      EventType
	TgID      int64
	IP        string
	UserAgent string
	Details   map[string]any
}

func Log(_ context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("eventType", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.TgID != 0 {
		logger = logger.With().Int64("tgId", event.TgID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("userAgent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value any) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = clientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

// clientIP prefers RemoteAddr, which chi's RealIP middleware rewrites from
// trusted proxy headers.
func clientIP(r *http.Request) string {
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.Header.Get("X-Forwarded-For")
}
