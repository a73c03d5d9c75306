package session

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/trelloplus/bot-server-go/internal/config"
	"github.com/trelloplus/bot-server-go/internal/model"
	"github.com/trelloplus/bot-server-go/internal/repository"
)

// ChatSession is a group chat the bot is a member of.
type ChatSession struct {
	*Target
	Chat *model.Chat
}

// Session is the sender of one update together with everything a handler
// needs to answer it. It lives for a single dispatch.
type Session struct {
	*Target
	User *model.User
	// Chat is set for messages sent outside the private chat with the bot.
	Chat          *ChatSession
	Message       *tgbotapi.Message
	CallbackQuery *tgbotapi.CallbackQuery
	Trello        *model.TrelloBinding
	Repos         repository.Repos

	env      *Env
	saved    model.User
	answered bool
	edited   bool
	deleted  bool
}

func newSession(env *Env, repos repository.Repos, user *model.User) *Session {
	s := &Session{
		User:  user,
		Repos: repos,
		env:   env,
		saved: *user,
	}
	s.Target = newTarget(env, user.TgID, &user.Active, func(ctx context.Context) error {
		s.saved.Active = false
		return repos.Users().SetActive(ctx, user.ID, false)
	})
	return s
}

// UserTarget returns a Target for another user, e.g. the recipient of a
// relayed reply. Unreachable recipients are deactivated through repos.
func UserTarget(env *Env, repos repository.Repos, user *model.User) *Target {
	return newTarget(env, user.TgID, &user.Active, func(ctx context.Context) error {
		return repos.Users().SetActive(ctx, user.ID, false)
	})
}

func (s *Session) Env() *Env {
	return s.env
}

func (s *Session) IsPrivate() bool {
	return s.Message != nil && s.Message.Chat != nil && s.Message.Chat.Type == string(model.ChatTypePrivate)
}

func (s *Session) IsGroup() bool {
	if s.Message == nil || s.Message.Chat == nil {
		return false
	}
	t := s.Message.Chat.Type
	return t == string(model.ChatTypeGroup) || t == string(model.ChatTypeSupergroup)
}

func (s *Session) InFeedback() bool {
	return s.IsGroup() && s.env.FeedbackChatID != 0 && s.Message.Chat.ID == s.env.FeedbackChatID
}

func (s *Session) IsReply() bool {
	return s.Message != nil && s.Message.ReplyToMessage != nil
}

func (s *Session) IsForward() bool {
	return s.Message != nil && s.Message.ForwardFrom != nil
}

func (s *Session) IsText() bool {
	return s.Message != nil && s.Message.Text != ""
}

func (s *Session) IsAdmin() bool {
	return s.env.isAdmin(s.User.TgID)
}

func (s *Session) IsAuthorized() bool {
	return s.Trello != nil
}

// SendMessage honours WithEdit by editing the callback message instead.
func (s *Session) SendMessage(ctx context.Context, text string, opts ...SendOption) (*tgbotapi.Message, bool) {
	cfg := buildSendConfig(opts)
	if cfg.edit && s.CallbackQuery != nil && !s.edited {
		return s.EditMessageText(ctx, text, opts...)
	}
	return s.Target.SendMessage(ctx, text, opts...)
}

func (s *Session) callbackMessage() *tgbotapi.Message {
	if s.CallbackQuery == nil {
		return nil
	}
	return s.CallbackQuery.Message
}

func (s *Session) EditMessageText(ctx context.Context, text string, opts ...SendOption) (*tgbotapi.Message, bool) {
	msg := s.callbackMessage()
	if msg == nil || msg.Chat == nil || text == "" {
		return nil, false
	}
	s.edited = true
	cfg := buildSendConfig(opts)
	text = TruncateText(text)
	return s.exec(ctx, "editMessageText", func() (*tgbotapi.Message, error) {
		return s.env.Messenger.EditMessageText(ctx, msg.Chat.ID, int64(msg.MessageID), text, &cfg.opts)
	})
}

// EditReplyMarkup replaces the inline keyboard of the callback message. A
// nil markup removes it.
func (s *Session) EditReplyMarkup(ctx context.Context, markup *tgbotapi.InlineKeyboardMarkup) (*tgbotapi.Message, bool) {
	msg := s.callbackMessage()
	if msg == nil || msg.Chat == nil {
		return nil, false
	}
	s.edited = true
	return s.exec(ctx, "editMessageReplyMarkup", func() (*tgbotapi.Message, error) {
		return s.env.Messenger.EditMessageReplyMarkup(ctx, msg.Chat.ID, int64(msg.MessageID), markup)
	})
}

// Answer answers the callback query. Only the first call per update reaches
// Telegram.
func (s *Session) Answer(ctx context.Context, text string, showAlert bool) bool {
	if s.CallbackQuery == nil || s.answered {
		return false
	}
	s.answered = true
	id := s.CallbackQuery.ID
	_, ok := s.exec(ctx, "answerCallbackQuery", func() (*tgbotapi.Message, error) {
		return nil, s.env.Messenger.AnswerCallbackQuery(ctx, id, text, showAlert)
	})
	return ok
}

func (s *Session) Answered() bool {
	return s.answered
}

// RemoveInlineKeyboard strips the buttons from the callback message.
func (s *Session) RemoveInlineKeyboard(ctx context.Context, text string, showAlert bool) bool {
	if s.CallbackQuery == nil {
		return false
	}
	s.EditReplyMarkup(ctx, nil)
	return s.Answer(ctx, text, showAlert)
}

// CallbackArg returns the i-th whitespace separated word of the callback
// data, or "".
func (s *Session) CallbackArg(i int) string {
	if s.CallbackQuery == nil {
		return ""
	}
	parts := strings.Fields(s.CallbackQuery.Data)
	if i < 0 || i >= len(parts) {
		return ""
	}
	return parts[i]
}

func (s *Session) Dialog() model.DialogState {
	return s.User.DialogState()
}

func (s *Session) SetDialog(d model.DialogState) {
	s.User.SetDialog(d)
}

// Reset clears the dialog state.
func (s *Session) Reset() {
	s.User.ResetDialog()
}

// TouchLastActive records activity, at most once per LastActiveInterval.
func (s *Session) TouchLastActive(now time.Time) {
	last := s.User.LastActiveAt
	if last == nil || last.Add(config.LastActiveInterval).Before(now) {
		s.User.LastActiveAt = &now
	}
}

// Dirty reports whether the user differs from its stored version.
func (s *Session) Dirty() bool {
	u, saved := *s.User, s.saved
	u.UpdatedAt, saved.UpdatedAt = time.Time{}, time.Time{}
	if (u.LastActiveAt == nil) != (saved.LastActiveAt == nil) {
		return true
	}
	if u.LastActiveAt != nil && !u.LastActiveAt.Equal(*saved.LastActiveAt) {
		return true
	}
	u.LastActiveAt, saved.LastActiveAt = nil, nil
	return u != saved
}

// Save writes the user when it changed.
func (s *Session) Save(ctx context.Context) error {
	if s.deleted || !s.Dirty() {
		return nil
	}
	if err := s.Repos.Users().Update(ctx, s.User); err != nil {
		return err
	}
	s.saved = *s.User
	return nil
}

// Delete removes the user. Nothing about the update is recorded afterwards.
func (s *Session) Delete(ctx context.Context) error {
	if err := s.Repos.Users().Delete(ctx, s.User.ID); err != nil {
		return err
	}
	s.deleted = true
	return nil
}

func (s *Session) Deleted() bool {
	return s.deleted
}

// Feedback returns the support chat. When the bot was never added to it a
// muted placeholder is returned so relays silently do nothing.
func (s *Session) Feedback(ctx context.Context) (*ChatSession, error) {
	chat, err := s.Repos.Chats().FindByTgID(ctx, s.env.FeedbackChatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		placeholder := newChatSession(s.env, s.Repos, &model.Chat{TgID: s.env.FeedbackChatID, Active: true})
		placeholder.Mute()
		return placeholder, nil
	}
	return newChatSession(s.env, s.Repos, chat), nil
}

// Failure returns the first unexpected Bot API error recorded in debug mode
// on the user or the chat.
func (s *Session) Failure() error {
	if err := s.Target.Failure(); err != nil {
		return err
	}
	if s.Chat != nil {
		return s.Chat.Failure()
	}
	return nil
}

func newChatSession(env *Env, repos repository.Repos, chat *model.Chat) *ChatSession {
	return &ChatSession{
		Chat: chat,
		Target: newTarget(env, chat.TgID, &chat.Active, func(ctx context.Context) error {
			if chat.ID == 0 {
				return nil
			}
			return repos.Chats().SetActive(ctx, chat.ID, false)
		}),
	}
}
