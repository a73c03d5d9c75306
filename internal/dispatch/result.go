// Package dispatch routes Telegram updates to registered handlers.
package dispatch

import (
	"context"
	"errors"

	"github.com/trelloplus/bot-server-go/internal/session"
)

// Result tells the dispatcher what to do after a handler returned.
type Result int

const (
	// OK records the handler run as successful.
	OK Result = iota
	// Fail records the handler run as failed without an error.
	Fail
	// Next continues with the handlers registered after the current one.
	Next
	// Restart starts matching again from the first handler, typically after
	// the handler changed the dialog state.
	Restart
)

func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case Fail:
		return "fail"
	case Next:
		return "next"
	case Restart:
		return "restart"
	}
	return "unknown"
}

// HandlerFunc handles one update. Errors carrying a handler outcome code
// are recorded as classifications; any other error aborts the update.
type HandlerFunc func(ctx context.Context, s *session.Session) (Result, error)

// ErrRestartLimit is returned when handlers keep asking for a restart.
var ErrRestartLimit = errors.New("dispatch: restart limit reached")
