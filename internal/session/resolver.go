package session

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/trelloplus/bot-server-go/internal/model"
	"github.com/trelloplus/bot-server-go/internal/repository"
)

// ErrNoSender is returned for updates that carry no user, such as channel posts.
var ErrNoSender = errors.New("session: update has no sender")

type Resolver struct {
	env *Env
}

func NewResolver(env *Env) *Resolver {
	return &Resolver{env: env}
}

func (r *Resolver) Env() *Env {
	return r.env
}

// Sender returns the Telegram user an update comes from.
func Sender(update *tgbotapi.Update) (*tgbotapi.User, error) {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From, nil
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From, nil
	case update.EditedMessage != nil && update.EditedMessage.From != nil:
		return update.EditedMessage.From, nil
	}
	return nil, ErrNoSender
}

// Resolve loads or creates the sender of update, refreshes its display
// fields and reactivates it. Messages from group chats also resolve the chat.
func (r *Resolver) Resolve(ctx context.Context, repos repository.Repos, update *tgbotapi.Update) (*Session, error) {
	from, err := Sender(update)
	if err != nil {
		return nil, err
	}

	user, err := repos.Users().Upsert(ctx, model.UpsertUserParams{
		TgID:      from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	s := newSession(r.env, repos, user)

	s.Trello, err = repos.TrelloBindings().FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load trello binding: %w", err)
	}

	switch {
	case update.CallbackQuery != nil:
		s.CallbackQuery = update.CallbackQuery
	case update.Message != nil:
		s.Message = update.Message
	case update.EditedMessage != nil:
		s.Message = update.EditedMessage
	}

	if s.Message != nil {
		s.replyTo = int64(s.Message.MessageID)
		if s.Message.Chat != nil && s.Message.Chat.ID != from.ID {
			chat, err := repos.Chats().Upsert(ctx, model.UpsertChatParams{
				TgID:  s.Message.Chat.ID,
				Type:  model.ChatType(s.Message.Chat.Type),
				Title: s.Message.Chat.Title,
			})
			if err != nil {
				return nil, fmt.Errorf("upsert chat: %w", err)
			}
			s.Chat = newChatSession(r.env, repos, chat)
			s.Chat.replyTo = int64(s.Message.MessageID)
		}
	}

	return s, nil
}
