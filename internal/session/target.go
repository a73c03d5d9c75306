package session

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/config"
	"github.com/trelloplus/bot-server-go/internal/telegram"
)

// ErrEmptyText is reported when a handler tries to send an empty message.
var ErrEmptyText = errors.New("session: empty text")

// Target sends messages to one Telegram chat and interprets Bot API errors
// for it. Every method returns false instead of an error when nothing was
// delivered.
type Target struct {
	env      *Env
	chatID   int64
	active   *bool
	muted    bool
	requests int
	// replyTo is the message AsReply threads under.
	replyTo int64
	// unreachable persists the deactivation of the recipient.
	unreachable func(ctx context.Context) error
	failure     error
}

func newTarget(env *Env, chatID int64, active *bool, unreachable func(ctx context.Context) error) *Target {
	return &Target{env: env, chatID: chatID, active: active, unreachable: unreachable}
}

func (t *Target) ChatID() int64 {
	return t.chatID
}

func (t *Target) Active() bool {
	return t.active == nil || *t.active
}

// Mute turns every send into a no-op.
func (t *Target) Mute() {
	t.muted = true
}

func (t *Target) Unmute() {
	t.muted = false
}

func (t *Target) Muted() bool {
	return t.muted
}

// Requests is the number of Bot API calls attempted through the target.
func (t *Target) Requests() int {
	return t.requests
}

// Failure returns the first unexpected Bot API error kept in debug mode.
func (t *Target) Failure() error {
	return t.failure
}

func (t *Target) exec(ctx context.Context, method string, call func() (*tgbotapi.Message, error)) (*tgbotapi.Message, bool) {
	if !t.Active() || t.muted {
		return nil, false
	}
	t.requests++
	msg, err := call()
	if err != nil {
		t.handleError(ctx, method, err)
		return nil, false
	}
	return msg, true
}

func (t *Target) handleError(ctx context.Context, method string, err error) {
	apiErr, _ := telegram.AsAPIError(err)
	switch {
	case telegram.Ignorable(err):
		return
	case telegram.Unreachable(err):
		log.Info().
			Int64("tgId", t.chatID).
			Str("method", method).
			Str("description", apiErr.Message).
			Msg("recipient unreachable, deactivating")
		if t.active != nil {
			*t.active = false
		}
		if t.unreachable != nil {
			if err := t.unreachable(ctx); err != nil {
				log.Error().Err(err).Int64("tgId", t.chatID).Msg("failed to persist deactivation")
			}
		}
		return
	case telegram.TooManyRequests(err):
		log.Warn().
			Int64("tgId", t.chatID).
			Str("method", method).
			Str("description", apiErr.Message).
			Msg("telegram rate limit")
		return
	}

	text := fmt.Sprintf("tg_id: %d, method: %s, e: %v", t.chatID, method, err)
	log.Warn().Err(err).Int64("tgId", t.chatID).Str("method", method).Msg("telegram request failed")
	if t.env.Debug {
		if t.failure == nil {
			t.failure = err
		}
		return
	}
	if t.env.Alerter != nil {
		t.env.Alerter.Alert(ctx, text)
	}
}

func (t *Target) options(cfg *sendConfig) *telegram.SendOptions {
	opts := cfg.opts
	if cfg.reply && opts.ReplyToMessageID == 0 {
		opts.ReplyToMessageID = t.replyTo
	}
	return &opts
}

func (t *Target) SendMessage(ctx context.Context, text string, opts ...SendOption) (*tgbotapi.Message, bool) {
	if text == "" {
		log.Error().Err(ErrEmptyText).Int64("tgId", t.chatID).Msg("refusing to send message")
		return nil, false
	}
	cfg := buildSendConfig(opts)
	text = TruncateText(text)
	return t.exec(ctx, "sendMessage", func() (*tgbotapi.Message, error) {
		return t.env.Messenger.SendMessage(ctx, t.chatID, text, t.options(cfg))
	})
}

func (t *Target) SendMedia(ctx context.Context, kind telegram.MediaKind, fileID, caption string, opts ...SendOption) (*tgbotapi.Message, bool) {
	cfg := buildSendConfig(opts)
	return t.exec(ctx, "send_"+string(kind), func() (*tgbotapi.Message, error) {
		return t.env.Messenger.SendMedia(ctx, t.chatID, kind, fileID, caption, t.options(cfg))
	})
}

// SendVenue first sends the address and coordinates as text, since some
// clients do not render venues.
func (t *Target) SendVenue(ctx context.Context, venue tgbotapi.Venue, opts ...SendOption) (*tgbotapi.Message, bool) {
	text := fmt.Sprintf("%s\nCoordinates: %f,%f", venue.Address, venue.Location.Latitude, venue.Location.Longitude)
	t.SendMessage(ctx, text)
	cfg := buildSendConfig(opts)
	return t.exec(ctx, "sendVenue", func() (*tgbotapi.Message, error) {
		return t.env.Messenger.SendVenue(ctx, t.chatID, venue, t.options(cfg))
	})
}

func (t *Target) SendContact(ctx context.Context, contact tgbotapi.Contact, opts ...SendOption) (*tgbotapi.Message, bool) {
	cfg := buildSendConfig(opts)
	return t.exec(ctx, "sendContact", func() (*tgbotapi.Message, error) {
		return t.env.Messenger.SendContact(ctx, t.chatID, contact, t.options(cfg))
	})
}

func (t *Target) SendChatAction(ctx context.Context, action string) bool {
	_, ok := t.exec(ctx, "sendChatAction", func() (*tgbotapi.Message, error) {
		return nil, t.env.Messenger.SendChatAction(ctx, t.chatID, action)
	})
	return ok
}

func (t *Target) ForwardMessage(ctx context.Context, fromChatID, messageID int64) (*tgbotapi.Message, bool) {
	return t.exec(ctx, "forwardMessage", func() (*tgbotapi.Message, error) {
		return t.env.Messenger.ForwardMessage(ctx, t.chatID, fromChatID, messageID)
	})
}

// TruncateText cuts text to the Bot API limit without splitting a rune.
func TruncateText(text string) string {
	if len(text) <= config.MaxMessageLength {
		return text
	}
	cut := config.MaxMessageLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	log.Warn().Int("length", len(text)).Msg("message text too long, truncated")
	return text[:cut]
}
