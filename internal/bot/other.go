package bot

import (
	"context"
	"strings"

	"github.com/trelloplus/bot-server-go/internal/dispatch"
	"github.com/trelloplus/bot-server-go/internal/session"
	"github.com/trelloplus/bot-server-go/internal/telegram"
)

// OtherHandlers answer whatever the rest of the bot did not understand.
type OtherHandlers struct {
	b *Bot
}

func isCommand(s *session.Session) bool {
	return s.Message != nil && strings.HasPrefix(s.Message.Text, "/")
}

func (o *OtherHandlers) DefineHandlers(r *dispatch.Registry) {
	r.Message("cancel", o.cancel, dispatch.Filters{Regexp: CancelButton.EmojiRegexp()}, isPrivate)
	r.Message("cancel", o.cancel, dispatch.Filters{Commands: CancelButton.Commands}, isPrivate)
	r.Message("unknown_command", o.unknownCommand, dispatch.Filters{Func: isCommand}, isPrivate)
	r.Message("unknown_content_type", o.unknownContentType, dispatch.Filters{ContentTypes: []string{
		telegram.ContentSticker,
		telegram.ContentVoice,
		telegram.ContentAudio,
		telegram.ContentLocation,
		telegram.ContentVenue,
		telegram.ContentDocument,
		telegram.ContentVideo,
	}}, isPrivate)
}

func (o *OtherHandlers) TextRegexps(r *dispatch.Registry) {
	r.Message("cancel", o.cancel, dispatch.Filters{Regexp: CancelButton.TextRegexp()}, isPrivate)
}

func (o *OtherHandlers) DefineFallbacks(r *dispatch.Registry) {
	r.Message("unknown_text", o.unknownText, dispatch.Filters{ContentTypes: []string{
		telegram.ContentText,
		telegram.ContentPhoto,
	}}, isPrivate)
	r.EditedMessage("edit_message", o.editMessage, dispatch.Filters{}, isPrivate)
}

func (o *OtherHandlers) cancel(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	s.Reset()
	_, err := o.b.send(ctx, s, tplCanceled, nil, session.WithKeyboard(StartKeyboard()))
	return dispatch.OK, err
}

func (o *OtherHandlers) unknownCommand(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	if _, err := o.b.send(ctx, s, tplUnknownCommand, nil, session.WithKeyboard(StartKeyboard())); err != nil {
		return dispatch.OK, err
	}
	return dispatch.OK, o.b.relayToFeedback(ctx, s)
}

func (o *OtherHandlers) unknownContentType(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	_, err := o.b.send(ctx, s, tplUnknownContentType, nil, session.AsReply())
	return dispatch.OK, err
}

// unknownText relays free text to the support chat so a human can answer.
func (o *OtherHandlers) unknownText(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	if _, err := o.b.send(ctx, s, tplUnknownText, nil); err != nil {
		return dispatch.OK, err
	}
	return dispatch.OK, o.b.relayToFeedback(ctx, s)
}

func (o *OtherHandlers) editMessage(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	_, err := o.b.send(ctx, s, tplCannotEditMessage, nil, session.AsReply())
	return dispatch.OK, err
}
