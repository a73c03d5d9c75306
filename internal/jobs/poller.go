package jobs

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/config"
	"github.com/trelloplus/bot-server-go/internal/dispatch"
)

// UpdateSource is the long-polling half of the Bot API client.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]tgbotapi.Update, error)
	DeleteWebhook(ctx context.Context) error
}

// BatchProcessor runs a batch of updates. *dispatch.Dispatcher implements it.
type BatchProcessor interface {
	ProcessUpdates(ctx context.Context, updates []tgbotapi.Update) error
}

type ErrorReporter interface {
	Report(ctx context.Context, err error, stack []byte)
}

var _ BatchProcessor = (*dispatch.Dispatcher)(nil)

// Poller fetches updates with getUpdates instead of receiving them on the
// webhook. Telegram refuses getUpdates while a webhook is set, so Run
// deletes it first.
type Poller struct {
	source    UpdateSource
	processor BatchProcessor
	reporter  ErrorReporter
	timeout   time.Duration
	backoff   time.Duration
}

func NewPoller(source UpdateSource, processor BatchProcessor, reporter ErrorReporter, timeout time.Duration) *Poller {
	return &Poller{
		source:    source,
		processor: processor,
		reporter:  reporter,
		timeout:   timeout,
		backoff:   config.PollErrorBackoff,
	}
}

// Run polls until ctx is cancelled. A batch already fetched is processed to
// the end even if ctx is cancelled meanwhile.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.source.DeleteWebhook(ctx); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	log.Info().Dur("timeout", p.timeout).Msg("polling started")

	var offset int
	for {
		if ctx.Err() != nil {
			log.Info().Msg("polling stopped")
			return nil
		}

		updates, err := p.source.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Warn().Err(err).Dur("backoff", p.backoff).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
			case <-time.After(p.backoff):
			}
			continue
		}
		if len(updates) == 0 {
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
		}
		if err := p.processor.ProcessUpdates(context.WithoutCancel(ctx), updates); err != nil {
			p.report(ctx, err)
		}
	}
}

// report sends each failed update of a batch as its own alert.
func (p *Poller) report(ctx context.Context, err error) {
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		log.Error().Err(e).Msg("update processing failed")
		p.reporter.Report(context.WithoutCancel(ctx), e, dispatch.StackOf(e))
	}
}
