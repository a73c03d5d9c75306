package bot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/trelloplus/bot-server-go/internal/dispatch"
	apperrors "github.com/trelloplus/bot-server-go/internal/errors"
	"github.com/trelloplus/bot-server-go/internal/model"
	"github.com/trelloplus/bot-server-go/internal/session"
	"github.com/trelloplus/bot-server-go/internal/telegram"
)

var (
	inFeedback dispatch.Predicate = (*session.Session).InFeedback
	isReply    dispatch.Predicate = (*session.Session).IsReply
	isForward  dispatch.Predicate = (*session.Session).IsForward
)

// relayContentTypes are the messages support can send back to a user.
var relayContentTypes = []string{
	telegram.ContentText,
	telegram.ContentPhoto,
	telegram.ContentVoice,
	telegram.ContentDocument,
	telegram.ContentSticker,
}

var sendCommandSplit = regexp.MustCompile(`\s+`)

// GroupHandlers serve the support chat where user messages are relayed.
type GroupHandlers struct {
	b *Bot
}

func (g *GroupHandlers) DefineHandlers(r *dispatch.Registry) {
	r.Message("feedback_chat_reply", g.reply, dispatch.Filters{ContentTypes: relayContentTypes}, inFeedback, isReply)
	r.Message("feedback_chat_forward", g.forward, dispatch.Filters{ContentTypes: relayContentTypes}, inFeedback, isForward)
	r.Message("send", g.send, dispatch.Filters{Commands: []string{"send"}}, inFeedback)
}

// reply delivers a support answer to the user whose relayed message it
// replies to, threaded under the user's original message when known.
func (g *GroupHandlers) reply(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	msg := s.Message
	replied := msg.ReplyToMessage
	if replied.ForwardFrom == nil {
		return dispatch.OK, apperrors.Params("empty_forward_from")
	}

	recipient, err := s.Repos.Users().FindByTgID(ctx, replied.ForwardFrom.ID)
	if err != nil {
		return dispatch.OK, err
	}
	if recipient == nil {
		s.Chat.SendMessage(ctx, "User not found")
		return dispatch.OK, apperrors.Params("user_not_found")
	}

	var opts []session.SendOption
	link, err := s.Repos.MessageLinks().FindByNewMessage(ctx, replied.Chat.ID, int64(replied.MessageID))
	if err != nil {
		return dispatch.OK, err
	}
	if link != nil {
		opts = append(opts, session.ReplyTo(link.OriginalMessageID))
	}

	target := session.UserTarget(s.Env(), s.Repos, recipient)
	var ok bool
	switch telegram.ContentType(msg) {
	case telegram.ContentText:
		_, ok = target.SendMessage(ctx, msg.Text, append(opts, session.PlainText())...)
	case telegram.ContentPhoto:
		_, ok = target.SendMedia(ctx, telegram.MediaPhoto, telegram.LargestPhoto(msg), msg.Caption, opts...)
	case telegram.ContentVoice:
		_, ok = target.SendMedia(ctx, telegram.MediaVoice, msg.Voice.FileID, msg.Caption, opts...)
	case telegram.ContentDocument:
		_, ok = target.SendMedia(ctx, telegram.MediaDocument, msg.Document.FileID, msg.Caption, opts...)
	case telegram.ContentSticker:
		_, ok = target.SendMedia(ctx, telegram.MediaSticker, msg.Sticker.FileID, "", opts...)
	default:
		s.Chat.SendMessage(ctx, "Unsupported message type")
		return dispatch.OK, apperrors.NotImplemented(telegram.ContentType(msg))
	}

	if ok {
		s.Chat.SendMessage(ctx, "Reply sent")
	} else {
		s.Chat.SendMessage(ctx, "Bot deactivated")
	}
	return dispatch.OK, nil
}

// forward identifies the author of a message forwarded into the chat.
func (g *GroupHandlers) forward(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	author, err := s.Repos.Users().FindByTgID(ctx, s.Message.ForwardFrom.ID)
	if err != nil {
		return dispatch.OK, err
	}
	if author == nil {
		s.Chat.SendMessage(ctx, "User not found", session.AsReply())
		return dispatch.OK, apperrors.Params("user_not_found")
	}
	s.Chat.SendMessage(ctx, author.AdminName(), session.AsReply(), session.PlainText())
	return dispatch.OK, nil
}

// send handles "/send TG_ID TEXT". The recipient is looked up by Telegram
// id first, then by internal id.
func (g *GroupHandlers) send(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	parts := sendCommandSplit.Split(s.Message.Text, 3)
	if len(parts) != 3 {
		s.Chat.SendMessage(ctx, "Correct format: <b>/send TG_ID TEXT</b>")
		return dispatch.OK, apperrors.Params("wrong_format")
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		s.Chat.SendMessage(ctx, "Correct format: <b>/send TG_ID TEXT</b>")
		return dispatch.OK, apperrors.Params("wrong_format")
	}

	recipient, err := s.Repos.Users().FindByTgIDOrID(ctx, id)
	if err != nil {
		return dispatch.OK, err
	}
	if recipient == nil {
		s.Chat.SendMessage(ctx, "User not found")
		return dispatch.OK, apperrors.Params("user_not_found")
	}

	target := session.UserTarget(s.Env(), s.Repos, recipient)
	if _, ok := target.SendMessage(ctx, parts[2]); ok {
		s.Chat.SendMessage(ctx, "Message sent")
		return dispatch.OK, nil
	}

	last, err := s.Repos.Executions().FindLastPrivate(ctx, recipient.TgID)
	if err != nil {
		return dispatch.OK, err
	}
	if last == nil {
		s.Chat.SendMessage(ctx, "User blocked the bot")
		return dispatch.OK, nil
	}
	s.Chat.SendMessage(ctx, fmt.Sprintf("User blocked the bot. Here is their last message to the bot (%s):", last.Date.UTC().Format(time.DateTime)))
	s.Chat.ForwardMessage(ctx, recipient.TgID, last.MessageID)
	return dispatch.OK, nil
}

// relayToFeedback copies a private message into the support chat and links
// the copy to the original so replies can be threaded.
func (b *Bot) relayToFeedback(ctx context.Context, s *session.Session) error {
	feedback, err := s.Feedback(ctx)
	if err != nil {
		return err
	}
	msg := s.Message

	feedback.SendMessage(ctx, s.User.AdminName()+" sent:", session.PlainText())
	sent, ok := feedback.ForwardMessage(ctx, msg.Chat.ID, int64(msg.MessageID))
	if reply := msg.ReplyToMessage; reply != nil {
		feedback.SendMessage(ctx, "in reply to:")
		feedback.ForwardMessage(ctx, reply.Chat.ID, int64(reply.MessageID))
	}
	if !ok || sent == nil {
		return nil
	}

	_, err = s.Repos.MessageLinks().Create(ctx, model.CreateMessageLinkParams{
		ChatID:            msg.Chat.ID,
		OriginalMessageID: int64(msg.MessageID),
		NewChatID:         sent.Chat.ID,
		NewMessageID:      int64(sent.MessageID),
	})
	return err
}
