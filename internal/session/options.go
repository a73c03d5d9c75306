package session

import "github.com/trelloplus/bot-server-go/internal/telegram"

type sendConfig struct {
	opts    telegram.SendOptions
	reply   bool
	edit    bool
	preview bool
	plain   bool
}

type SendOption func(*sendConfig)

// WithKeyboard attaches one of the tgbotapi keyboard types.
func WithKeyboard(markup any) SendOption {
	return func(c *sendConfig) { c.opts.ReplyMarkup = markup }
}

// AsReply threads the message under the message being handled.
func AsReply() SendOption {
	return func(c *sendConfig) { c.reply = true }
}

func ReplyTo(messageID int64) SendOption {
	return func(c *sendConfig) { c.opts.ReplyToMessageID = messageID }
}

// WithEdit replaces the text of the message carrying the callback button,
// once per update. Without a callback query a new message is sent.
func WithEdit() SendOption {
	return func(c *sendConfig) { c.edit = true }
}

func WithPreview() SendOption {
	return func(c *sendConfig) { c.preview = true }
}

// PlainText disables HTML parsing.
func PlainText() SendOption {
	return func(c *sendConfig) { c.plain = true }
}

func Silent() SendOption {
	return func(c *sendConfig) { c.opts.DisableNotification = true }
}

func buildSendConfig(opts []SendOption) *sendConfig {
	cfg := &sendConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if !cfg.plain {
		cfg.opts.ParseMode = telegram.ParseModeHTML
	}
	cfg.opts.DisableWebPagePreview = !cfg.preview
	return cfg
}
