// Package session wraps persisted users and chats with the per-update state
// and messaging methods handlers work with.
package session

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/trelloplus/bot-server-go/internal/telegram"
)

// Messenger is the part of the Bot API sessions talk to. *telegram.Client
// implements it.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*tgbotapi.Message, error)
	SendMedia(ctx context.Context, chatID int64, kind telegram.MediaKind, fileID, caption string, opts *telegram.SendOptions) (*tgbotapi.Message, error)
	SendVenue(ctx context.Context, chatID int64, venue tgbotapi.Venue, opts *telegram.SendOptions) (*tgbotapi.Message, error)
	SendContact(ctx context.Context, chatID int64, contact tgbotapi.Contact, opts *telegram.SendOptions) (*tgbotapi.Message, error)
	SendChatAction(ctx context.Context, chatID int64, action string) error
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, opts *telegram.SendOptions) (*tgbotapi.Message, error)
	EditMessageReplyMarkup(ctx context.Context, chatID, messageID int64, markup *tgbotapi.InlineKeyboardMarkup) (*tgbotapi.Message, error)
	AnswerCallbackQuery(ctx context.Context, queryID, text string, showAlert bool) error
	ForwardMessage(ctx context.Context, chatID, fromChatID, messageID int64) (*tgbotapi.Message, error)
}

var _ Messenger = (*telegram.Client)(nil)

// Alerter forwards failures that need a human to the error log chat.
type Alerter interface {
	Alert(ctx context.Context, text string)
}

// Env carries the process-wide settings sessions depend on.
type Env struct {
	Messenger      Messenger
	Alerter        Alerter
	Admins         []int64
	FeedbackChatID int64
	// Debug makes unexpected Bot API errors fail the update.
	Debug bool
}

func (e *Env) isAdmin(tgID int64) bool {
	for _, id := range e.Admins {
		if id == tgID {
			return true
		}
	}
	return false
}
