package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/dispatch"
)

// UpdateProcessor runs one Telegram update. *dispatch.Dispatcher implements it.
type UpdateProcessor interface {
	ProcessUpdate(ctx context.Context, update *tgbotapi.Update) error
}

// ErrorReporter forwards a failed update to the people on call.
type ErrorReporter interface {
	Report(ctx context.Context, err error, stack []byte)
}

var _ UpdateProcessor = (*dispatch.Dispatcher)(nil)

// WebhookHandler receives updates pushed by Telegram. The token hash in the
// path is checked by middleware before the body is read.
type WebhookHandler struct {
	processor UpdateProcessor
	reporter  ErrorReporter
	// exposeErrors answers failed updates with 500 instead of 200, so that
	// tests and deployments asking for it see the failure.
	exposeErrors bool
}

func NewWebhookHandler(processor UpdateProcessor, reporter ErrorReporter, exposeErrors bool) *WebhookHandler {
	return &WebhookHandler{
		processor:    processor,
		reporter:     reporter,
		exposeErrors: exposeErrors,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read webhook body")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to read request body"})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no data"})
		return
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		log.Warn().Err(err).Msg("invalid webhook update")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	// A client disconnect must not abort the update halfway through its
	// transaction.
	ctx := context.WithoutCancel(r.Context())
	if err := h.processor.ProcessUpdate(ctx, &update); err != nil {
		h.reporter.Report(ctx, err, dispatch.StackOf(err))
		if h.exposeErrors {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}
