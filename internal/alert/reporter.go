// Package alert posts operational failures to the error log chat.
package alert

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/config"
	"github.com/trelloplus/bot-server-go/internal/session"
	"github.com/trelloplus/bot-server-go/internal/telegram"
)

// FixedCallback is the callback data of the "Fixed" button.
const FixedCallback = "/error_fixed"

// Reporter sends alerts straight through the Messenger so that a failing
// alert can never recurse into another alert.
type Reporter struct {
	messenger session.Messenger
	chatID    int64
	botName   string
}

func NewReporter(messenger session.Messenger, chatID int64, botName string) *Reporter {
	return &Reporter{messenger: messenger, chatID: chatID, botName: botName}
}

var _ session.Alerter = (*Reporter)(nil)

// Alert posts text, escaped for HTML, with a "Fixed" button.
func (r *Reporter) Alert(ctx context.Context, text string) {
	header := r.header()
	r.send(ctx, header+fit(html.EscapeString(text), config.MaxMessageLength-len(header)))
}

// Report posts err together with the stack captured where it was recovered.
func (r *Reporter) Report(ctx context.Context, err error, stack []byte) {
	log.Error().Err(err).Bytes("stack", stack).Msg("update processing failed")
	text := r.header() + fit(html.EscapeString(err.Error()), config.MaxMessageLength/2)
	if len(stack) > 0 {
		const pre, preEnd = "\n<pre>", "</pre>"
		room := config.MaxMessageLength - len(text) - len(pre) - len(preEnd)
		text += pre + fit(html.EscapeString(string(stack)), room) + preEnd
	}
	r.send(ctx, text)
}

func (r *Reporter) header() string {
	return fmt.Sprintf("@%s:\n", r.botName)
}

// fit cuts escaped text to limit bytes without splitting a rune or an
// HTML entity.
func fit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	text = text[:cut]
	if amp := strings.LastIndexByte(text, '&'); amp > strings.LastIndexByte(text, ';') {
		text = text[:amp]
	}
	return text
}

func (r *Reporter) send(ctx context.Context, text string) {
	if r.chatID == 0 {
		log.Warn().Str("alert", text).Msg("error log chat not configured")
		return
	}
	markup := &tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{{tgbotapi.NewInlineKeyboardButtonData("Fixed", FixedCallback)}},
	}
	_, err := r.messenger.SendMessage(ctx, r.chatID, text, &telegram.SendOptions{
		ParseMode:             telegram.ParseModeHTML,
		DisableWebPagePreview: true,
		ReplyMarkup:           markup,
	})
	if err != nil {
		log.Error().Err(err).Int64("chatId", r.chatID).Msg("failed to send alert")
	}
}
