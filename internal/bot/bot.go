// Package bot holds the Telegram handlers of Trello Plus: browsing boards,
// card timers, the support chat relay and admin commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/trelloplus/bot-server-go/internal/dispatch"
	apperrors "github.com/trelloplus/bot-server-go/internal/errors"
	"github.com/trelloplus/bot-server-go/internal/model"
	"github.com/trelloplus/bot-server-go/internal/service"
	"github.com/trelloplus/bot-server-go/internal/session"
	"github.com/trelloplus/bot-server-go/internal/trello"
)

// Trello is the part of the Trello API the handlers use.
type Trello interface {
	AuthorizationURL(returnURL string) string
	Boards(ctx context.Context, token string) ([]trello.Board, error)
	Board(ctx context.Context, token, boardID string) (*trello.Board, error)
	Lists(ctx context.Context, token, boardID string) ([]trello.List, error)
	List(ctx context.Context, token, listID string) (*trello.List, error)
	Cards(ctx context.Context, token, listID string) ([]trello.Card, error)
	Card(ctx context.Context, token, cardID string) (*trello.Card, error)
	AddComment(ctx context.Context, token, cardID, text string) error
}

var _ Trello = (*trello.Client)(nil)

type Bot struct {
	trello    Trello
	tokens    *service.TrelloTokens
	pairing   *service.PairingService
	templates *Templates
	// returnURL is where Trello redirects after authorization.
	returnURL string
	now       func() time.Time
}

func New(trelloClient Trello, tokens *service.TrelloTokens, pairing *service.PairingService, returnURL string) (*Bot, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	return &Bot{
		trello:    trelloClient,
		tokens:    tokens,
		pairing:   pairing,
		templates: templates,
		returnURL: returnURL,
		now:       time.Now,
	}, nil
}

// Providers returns the handler groups in registration order.
func (b *Bot) Providers() []dispatch.Provider {
	return []dispatch.Provider{
		&PrivateHandlers{b: b},
		&GroupHandlers{b: b},
		&AdminHandlers{b: b},
		&OtherHandlers{b: b},
	}
}

func (b *Bot) Registry() *dispatch.Registry {
	return dispatch.Build(b.Providers()...)
}

// Checks denies forwarded private messages from regular users. Admins and
// debug deployments may forward.
func (b *Bot) Checks(ctx context.Context, s *session.Session) (bool, string) {
	if !s.IsPrivate() {
		return true, ""
	}
	if s.IsForward() && !s.IsAdmin() && !s.Env().Debug {
		if _, err := b.send(ctx, s, tplCannotForward, nil, session.WithKeyboard(StartKeyboard())); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to render cannot_forward")
		}
		return false, "forward"
	}
	return true, ""
}

// send renders a template to the sender of the update.
func (b *Bot) send(ctx context.Context, s *session.Session, name string, data any, opts ...session.SendOption) (*tgbotapi.Message, error) {
	text, err := b.templates.Render(name, data)
	if err != nil {
		return nil, err
	}
	msg, _ := s.SendMessage(ctx, text, opts...)
	return msg, nil
}

// unauthorized invites the user to connect Trello, replacing the callback
// message when there is one.
func (b *Bot) unauthorized(ctx context.Context, s *session.Session) error {
	data := struct{ URL string }{URL: b.trello.AuthorizationURL(b.returnURL)}
	_, err := b.send(ctx, s, tplNotAuthorized, data, session.WithEdit())
	return err
}

func (b *Bot) token(s *session.Session) (string, error) {
	return b.tokens.Token(s.Trello)
}

// NotFoundText is shown when Trello no longer has the requested item.
const NotFoundText = "This item no longer exists on Trello"

// trelloError turns a revoked token into a fresh authorization prompt and a
// deleted board, list or card into a notice.
func (b *Bot) trelloError(ctx context.Context, s *session.Session, err error) error {
	switch {
	case errors.Is(err, trello.ErrNotFound):
		if !s.Answer(ctx, NotFoundText, true) {
			s.SendMessage(ctx, NotFoundText)
		}
		return apperrors.Handler("trello_not_found")
	case !errors.Is(err, trello.ErrUnauthorized):
		return fmt.Errorf("trello: %w", err)
	}
	if err := s.Repos.TrelloBindings().Delete(ctx, s.User.ID); err != nil {
		return err
	}
	s.Trello = nil
	if err := b.unauthorized(ctx, s); err != nil {
		return err
	}
	return apperrors.State("trello_unauthorized")
}

func timerIDs(timers []model.Timer, field func(model.Timer) string) []string {
	ids := make([]string, 0, len(timers))
	for _, t := range timers {
		ids = append(ids, field(t))
	}
	return ids
}
