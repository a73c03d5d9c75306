// Package telegram wraps the Bot API client with request throttling and
// retries after 429 responses.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/trelloplus/bot-server-go/internal/config"
)

const (
	ParseModeHTML = tgbotapi.ModeHTML

	ActionTyping = tgbotapi.ChatTyping
)

type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaSticker  MediaKind = "sticker"
	MediaDocument MediaKind = "document"
	MediaVoice    MediaKind = "voice"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
)

// AllowedUpdates is the update set the bot subscribes to.
var AllowedUpdates = []string{"message", "edited_message", "callback_query"}

// SendOptions are the optional parameters shared by send and edit methods.
type SendOptions struct {
	ParseMode             string
	DisableWebPagePreview bool
	DisableNotification   bool
	ReplyToMessageID      int64
	// ReplyMarkup is one of the tgbotapi keyboard types.
	ReplyMarkup any
}

func (o *SendOptions) applyTo(base *tgbotapi.BaseChat) {
	if o == nil {
		return
	}
	base.ReplyToMessageID = int(o.ReplyToMessageID)
	base.DisableNotification = o.DisableNotification
	if o.ReplyMarkup != nil {
		base.ReplyMarkup = o.ReplyMarkup
	}
}

func (o *SendOptions) parseMode() string {
	if o == nil {
		return ""
	}
	return o.ParseMode
}

// inlineMarkup returns the markup when it can be attached to an edited
// message. Reply keyboards cannot.
func (o *SendOptions) inlineMarkup() *tgbotapi.InlineKeyboardMarkup {
	if o == nil {
		return nil
	}
	switch m := o.ReplyMarkup.(type) {
	case *tgbotapi.InlineKeyboardMarkup:
		return m
	case tgbotapi.InlineKeyboardMarkup:
		return &m
	}
	return nil
}

// Client sends Bot API requests through tgbotapi. Every call waits for the
// rate limiter and 429 responses are retried after the retry_after the
// server asked for.
type Client struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	maxWait    time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit throttles outgoing calls to perSec requests per second.
func WithRateLimit(perSec float64) Option {
	return func(c *Client) {
		burst := int(perSec)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithRetryPolicy overrides how often and how long 429 responses are retried.
func WithRetryPolicy(maxRetries int, maxWait time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.maxWait = maxWait
	}
}

// NewClient connects to the Bot API served at apiURL. tgbotapi validates the
// token with getMe, so Self is known once NewClient returns.
func NewClient(apiURL, token string, opts ...Option) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{Timeout: config.APIRequestTimeout},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		maxRetries: config.APIMaxRetries,
		maxWait:    config.APIMaxRetryWait,
	}
	for _, opt := range opts {
		opt(c)
	}

	endpoint := strings.TrimRight(apiURL, "/") + "/bot%s/%s"
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, c.httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram getMe: %w", err)
	}
	c.api = api
	return c, nil
}

// Self is the bot user returned by getMe.
func (c *Client) Self() tgbotapi.User {
	return c.api.Self
}

func (c *Client) do(ctx context.Context, method string, call func() error) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := call()
		apiErr, ok := AsAPIError(err)
		if !ok || apiErr.Code != http.StatusTooManyRequests {
			return err
		}
		retryAfter := apiErr.ResponseParameters.RetryAfter
		if retryAfter <= 0 || attempt >= c.maxRetries {
			return err
		}

		wait := min(time.Duration(retryAfter)*time.Second, c.maxWait)
		log.Warn().
			Str("method", method).
			Int("retryAfter", retryAfter).
			Int("attempt", attempt+1).
			Msg("telegram rate limited, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) send(ctx context.Context, method string, chattable tgbotapi.Chattable) (*tgbotapi.Message, error) {
	var msg tgbotapi.Message
	err := c.do(ctx, method, func() (err error) {
		msg, err = c.api.Send(chattable)
		return err
	})
	if err != nil {
		return nil, err
	}
	if msg.MessageID == 0 {
		return nil, nil
	}
	return &msg, nil
}

func (c *Client) request(ctx context.Context, method string, chattable tgbotapi.Chattable) error {
	return c.do(ctx, method, func() error {
		_, err := c.api.Request(chattable)
		return err
	})
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	opts.applyTo(&msg.BaseChat)
	msg.ParseMode = opts.parseMode()
	msg.DisableWebPagePreview = opts != nil && opts.DisableWebPagePreview
	return c.send(ctx, "sendMessage", msg)
}

// SendMedia resends a file already stored on Telegram servers by file id.
// Stickers carry no caption.
func (c *Client) SendMedia(ctx context.Context, chatID int64, kind MediaKind, fileID, caption string, opts *SendOptions) (*tgbotapi.Message, error) {
	file := tgbotapi.FileID(fileID)
	var chattable tgbotapi.Chattable

	switch kind {
	case MediaPhoto:
		cfg := tgbotapi.NewPhoto(chatID, file)
		cfg.Caption, cfg.ParseMode = caption, opts.parseMode()
		opts.applyTo(&cfg.BaseChat)
		chattable = cfg
	case MediaDocument:
		cfg := tgbotapi.NewDocument(chatID, file)
		cfg.Caption, cfg.ParseMode = caption, opts.parseMode()
		opts.applyTo(&cfg.BaseChat)
		chattable = cfg
	case MediaVoice:
		cfg := tgbotapi.NewVoice(chatID, file)
		cfg.Caption, cfg.ParseMode = caption, opts.parseMode()
		opts.applyTo(&cfg.BaseChat)
		chattable = cfg
	case MediaVideo:
		cfg := tgbotapi.NewVideo(chatID, file)
		cfg.Caption, cfg.ParseMode = caption, opts.parseMode()
		opts.applyTo(&cfg.BaseChat)
		chattable = cfg
	case MediaAudio:
		cfg := tgbotapi.NewAudio(chatID, file)
		cfg.Caption, cfg.ParseMode = caption, opts.parseMode()
		opts.applyTo(&cfg.BaseChat)
		chattable = cfg
	case MediaSticker:
		cfg := tgbotapi.NewSticker(chatID, file)
		opts.applyTo(&cfg.BaseChat)
		chattable = cfg
	default:
		return nil, fmt.Errorf("unsupported media kind %q", kind)
	}
	return c.send(ctx, "send_"+string(kind), chattable)
}

func (c *Client) SendVenue(ctx context.Context, chatID int64, venue tgbotapi.Venue, opts *SendOptions) (*tgbotapi.Message, error) {
	cfg := tgbotapi.NewVenue(chatID, venue.Title, venue.Address, venue.Location.Latitude, venue.Location.Longitude)
	opts.applyTo(&cfg.BaseChat)
	return c.send(ctx, "sendVenue", cfg)
}

func (c *Client) SendContact(ctx context.Context, chatID int64, contact tgbotapi.Contact, opts *SendOptions) (*tgbotapi.Message, error) {
	cfg := tgbotapi.NewContact(chatID, contact.PhoneNumber, contact.FirstName)
	cfg.LastName = contact.LastName
	opts.applyTo(&cfg.BaseChat)
	return c.send(ctx, "sendContact", cfg)
}

func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	return c.request(ctx, "sendChatAction", tgbotapi.NewChatAction(chatID, action))
}

func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, opts *SendOptions) (*tgbotapi.Message, error) {
	cfg := tgbotapi.NewEditMessageText(chatID, int(messageID), text)
	cfg.ParseMode = opts.parseMode()
	cfg.DisableWebPagePreview = opts != nil && opts.DisableWebPagePreview
	cfg.ReplyMarkup = opts.inlineMarkup()
	return c.send(ctx, "editMessageText", cfg)
}

// EditMessageReplyMarkup replaces the inline keyboard of a message. A nil
// markup removes it.
func (c *Client) EditMessageReplyMarkup(ctx context.Context, chatID, messageID int64, markup *tgbotapi.InlineKeyboardMarkup) (*tgbotapi.Message, error) {
	if markup == nil {
		markup = &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	}
	return c.send(ctx, "editMessageReplyMarkup", tgbotapi.NewEditMessageReplyMarkup(chatID, int(messageID), *markup))
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, queryID, text string, showAlert bool) error {
	cfg := tgbotapi.NewCallback(queryID, text)
	cfg.ShowAlert = showAlert
	return c.request(ctx, "answerCallbackQuery", cfg)
}

func (c *Client) ForwardMessage(ctx context.Context, chatID, fromChatID, messageID int64) (*tgbotapi.Message, error) {
	return c.send(ctx, "forwardMessage", tgbotapi.NewForward(chatID, fromChatID, int(messageID)))
}

// GetUpdates long-polls for updates with ids >= offset. The HTTP client
// timeout must exceed timeout.
func (c *Client) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]tgbotapi.Update, error) {
	cfg := tgbotapi.NewUpdate(offset)
	cfg.Timeout = int(timeout.Seconds())
	cfg.AllowedUpdates = AllowedUpdates

	var updates []tgbotapi.Update
	err := c.do(ctx, "getUpdates", func() (err error) {
		updates, err = c.api.GetUpdates(cfg)
		return err
	})
	return updates, err
}

// SetWebhook registers url for the allowed updates.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	cfg, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("webhook url: %w", err)
	}
	cfg.AllowedUpdates = AllowedUpdates
	return c.request(ctx, "setWebhook", cfg)
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.request(ctx, "deleteWebhook", tgbotapi.DeleteWebhookConfig{})
}
