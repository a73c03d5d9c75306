package bot

import (
	"context"
	"encoding/json"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/trelloplus/bot-server-go/internal/alert"
	"github.com/trelloplus/bot-server-go/internal/audit"
	"github.com/trelloplus/bot-server-go/internal/dispatch"
	"github.com/trelloplus/bot-server-go/internal/session"
)

var isAdmin dispatch.Predicate = (*session.Session).IsAdmin

// AdminHandlers are commands for the bot operators.
type AdminHandlers struct {
	b *Bot
}

func (a *AdminHandlers) DefineHandlers(r *dispatch.Registry) {
	r.Message("deleteme", a.deleteMe, dispatch.Filters{Commands: []string{"deleteme"}}, isPrivate, isAdmin)
	r.Message("me", a.me, dispatch.Filters{Commands: []string{"me"}}, isPrivate, isAdmin)
	r.CallbackQuery("error_fixed", a.errorFixed, dispatch.Filters{Data: alert.FixedCallback}, isAdmin)
}

// deleteMe removes the admin's own user so onboarding can be tried again.
func (a *AdminHandlers) deleteMe(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	tgID := s.User.TgID
	if err := s.Delete(ctx); err != nil {
		return dispatch.OK, err
	}
	audit.Log(ctx, audit.Event{Type: audit.EventUserDeleted, TgID: tgID})
	s.SendMessage(ctx, "Deleted", session.WithKeyboard(tgbotapi.NewRemoveKeyboard(false)))
	return dispatch.OK, nil
}

func (a *AdminHandlers) me(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	body, err := json.MarshalIndent(s.User, "", "  ")
	if err != nil {
		return dispatch.OK, err
	}
	s.SendMessage(ctx, string(body), session.PlainText())
	return dispatch.OK, nil
}

// errorFixed marks an error report as handled.
func (a *AdminHandlers) errorFixed(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	s.EditMessageText(ctx, "Marked as fixed with "+s.User.AdminName(), session.PlainText())
	return dispatch.OK, nil
}
