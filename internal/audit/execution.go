package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/model"
	"github.com/trelloplus/bot-server-go/internal/repository"
	"github.com/trelloplus/bot-server-go/internal/telegram"
)

// Classification values that are not derived from handler errors.
const (
	ResultOK   = "ok"
	ResultFail = "fail"
	// ResultChecksPrefix precedes the reason a check denied the update.
	ResultChecksPrefix = "checks:"
)

// Entry describes the outcome of one dispatched update.
type Entry struct {
	UserID   *int64
	ChatID   *int64
	Fnc      string
	Result   string
	Requests int
}

// ExecutionLogger appends execution records. Persistence failures are only
// logged unless the logger runs in testing mode.
type ExecutionLogger struct {
	testing bool
	now     func() time.Time
}

func NewExecutionLogger(testing bool) *ExecutionLogger {
	return &ExecutionLogger{testing: testing, now: time.Now}
}

// RecordMessage stores the outcome of a message or edited message update.
func (l *ExecutionLogger) RecordMessage(ctx context.Context, repo repository.ExecutionRepository, msg *tgbotapi.Message, entry Entry) error {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" {
		text = "content_type:" + telegram.ContentType(msg)
	}
	var fromID int64
	if msg.From != nil {
		fromID = msg.From.ID
	}
	return l.record(ctx, repo, entry, model.CreateExecutionParams{
		TgID:      msg.Chat.ID,
		FromTgID:  fromID,
		MessageID: int64(msg.MessageID),
		ChatType:  model.ChatType(msg.Chat.Type),
		Text:      text,
		Message:   snapshot(msg),
		Date:      time.Unix(int64(msg.Date), 0),
	})
}

// RecordCallbackQuery stores the outcome of a callback query update.
func (l *ExecutionLogger) RecordCallbackQuery(ctx context.Context, repo repository.ExecutionRepository, cq *tgbotapi.CallbackQuery, entry Entry) error {
	var messageID int64
	if cq.Message != nil {
		messageID = int64(cq.Message.MessageID)
	}
	var fromID int64
	if cq.From != nil {
		fromID = cq.From.ID
	}
	entry.ChatID = nil
	return l.record(ctx, repo, entry, model.CreateExecutionParams{
		TgID:      fromID,
		FromTgID:  fromID,
		MessageID: messageID,
		ChatType:  model.ChatTypeCallbackQuery,
		Text:      cq.Data,
		Message:   snapshot(cq),
		Date:      l.now(),
	})
}

func (l *ExecutionLogger) record(ctx context.Context, repo repository.ExecutionRepository, entry Entry, params model.CreateExecutionParams) error {
	params.UserID = entry.UserID
	params.ChatID = entry.ChatID
	params.Fnc = entry.Fnc
	params.Result = entry.Result
	params.RequestsMade = entry.Requests

	log.Info().
		Int64("tgId", params.TgID).
		Int64("fromTgId", params.FromTgID).
		Str("chatType", string(params.ChatType)).
		Str("fnc", params.Fnc).
		Str("result", params.Result).
		Int("requestsMade", params.RequestsMade).
		Msg("update executed")

	if _, err := repo.Create(ctx, params); err != nil {
		if l.testing {
			return fmt.Errorf("record execution: %w", err)
		}
		log.Error().Err(err).Str("fnc", params.Fnc).Msg("failed to record execution")
	}
	return nil
}

func snapshot(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
