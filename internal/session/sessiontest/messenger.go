// Package sessiontest provides an in-memory session.Messenger for tests.
package sessiontest

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/trelloplus/bot-server-go/internal/telegram"
)

// Call is one recorded Bot API request.
type Call struct {
	Method     string
	ChatID     int64
	MessageID  int64
	Text       string
	FileID     string
	Kind       telegram.MediaKind
	FromChatID int64
	QueryID    string
	ShowAlert  bool
	Options    telegram.SendOptions
	Markup     *tgbotapi.InlineKeyboardMarkup
}

// Messenger records every call. Errors maps a method name to the error it
// returns; ErrorsFor narrows that to a chat id.
type Messenger struct {
	mu        sync.Mutex
	calls     []Call
	nextID    int
	Errors    map[string]error
	ErrorsFor map[int64]error
}

func NewMessenger() *Messenger {
	return &Messenger{
		Errors:    make(map[string]error),
		ErrorsFor: make(map[int64]error),
	}
}

func (m *Messenger) record(c Call) (*tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	if err, ok := m.ErrorsFor[c.ChatID]; ok {
		return nil, err
	}
	if err, ok := m.Errors[c.Method]; ok {
		return nil, err
	}
	m.nextID++
	return &tgbotapi.Message{
		MessageID: 1000 + m.nextID,
		Chat:      &tgbotapi.Chat{ID: c.ChatID},
		Text:      c.Text,
	}, nil
}

func opts(o *telegram.SendOptions) telegram.SendOptions {
	if o == nil {
		return telegram.SendOptions{}
	}
	return *o
}

func (m *Messenger) SendMessage(_ context.Context, chatID int64, text string, o *telegram.SendOptions) (*tgbotapi.Message, error) {
	return m.record(Call{Method: "sendMessage", ChatID: chatID, Text: text, Options: opts(o)})
}

func (m *Messenger) SendMedia(_ context.Context, chatID int64, kind telegram.MediaKind, fileID, caption string, o *telegram.SendOptions) (*tgbotapi.Message, error) {
	return m.record(Call{Method: "sendMedia", ChatID: chatID, Kind: kind, FileID: fileID, Text: caption, Options: opts(o)})
}

func (m *Messenger) SendVenue(_ context.Context, chatID int64, venue tgbotapi.Venue, o *telegram.SendOptions) (*tgbotapi.Message, error) {
	return m.record(Call{Method: "sendVenue", ChatID: chatID, Text: venue.Title, Options: opts(o)})
}

func (m *Messenger) SendContact(_ context.Context, chatID int64, contact tgbotapi.Contact, o *telegram.SendOptions) (*tgbotapi.Message, error) {
	return m.record(Call{Method: "sendContact", ChatID: chatID, Text: contact.PhoneNumber, Options: opts(o)})
}

func (m *Messenger) SendChatAction(_ context.Context, chatID int64, action string) error {
	_, err := m.record(Call{Method: "sendChatAction", ChatID: chatID, Text: action})
	return err
}

func (m *Messenger) EditMessageText(_ context.Context, chatID, messageID int64, text string, o *telegram.SendOptions) (*tgbotapi.Message, error) {
	return m.record(Call{Method: "editMessageText", ChatID: chatID, MessageID: messageID, Text: text, Options: opts(o)})
}

func (m *Messenger) EditMessageReplyMarkup(_ context.Context, chatID, messageID int64, markup *tgbotapi.InlineKeyboardMarkup) (*tgbotapi.Message, error) {
	return m.record(Call{Method: "editMessageReplyMarkup", ChatID: chatID, MessageID: messageID, Markup: markup})
}

func (m *Messenger) AnswerCallbackQuery(_ context.Context, queryID, text string, showAlert bool) error {
	_, err := m.record(Call{Method: "answerCallbackQuery", QueryID: queryID, Text: text, ShowAlert: showAlert})
	return err
}

func (m *Messenger) ForwardMessage(_ context.Context, chatID, fromChatID, messageID int64) (*tgbotapi.Message, error) {
	return m.record(Call{Method: "forwardMessage", ChatID: chatID, FromChatID: fromChatID, MessageID: messageID})
}

// Calls returns a copy of the recorded calls.
func (m *Messenger) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsTo returns the calls of one method.
func (m *Messenger) CallsTo(method string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Texts returns the texts of messages sent to chatID.
func (m *Messenger) Texts(chatID int64) []string {
	var out []string
	for _, c := range m.Calls() {
		if c.ChatID == chatID && (c.Method == "sendMessage" || c.Method == "editMessageText") {
			out = append(out, c.Text)
		}
	}
	return out
}

func (m *Messenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Alerter records alert texts.
type Alerter struct {
	mu     sync.Mutex
	alerts []string
}

func (a *Alerter) Alert(_ context.Context, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, text)
}

func (a *Alerter) Alerts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.alerts...)
}
