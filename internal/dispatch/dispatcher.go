package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/audit"
	"github.com/trelloplus/bot-server-go/internal/config"
	apperrors "github.com/trelloplus/bot-server-go/internal/errors"
	"github.com/trelloplus/bot-server-go/internal/lock"
	"github.com/trelloplus/bot-server-go/internal/repository"
	"github.com/trelloplus/bot-server-go/internal/session"
)

// UnderConstructionText is sent to non-admins while maintenance mode is on.
const UnderConstructionText = "The bot is under construction..."

// ChecksFunc runs once per message update before matching. A denied update
// is recorded as "checks:<reason>" and reaches no handler.
type ChecksFunc func(ctx context.Context, s *session.Session) (ok bool, reason string)

// PanicError is returned when a handler panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// StackOf returns the stack captured for a recovered panic, if any.
func StackOf(err error) []byte {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe.Stack
	}
	return nil
}

type Option func(*Dispatcher)

func WithLockTimeout(d time.Duration) Option {
	return func(x *Dispatcher) { x.lockTimeout = d }
}

// WithUnderConstruction enables maintenance mode: only admins are served.
func WithUnderConstruction(on bool) Option {
	return func(x *Dispatcher) { x.underConstruction = on }
}

func WithChecks(fn ChecksFunc) Option {
	return func(x *Dispatcher) { x.checks = fn }
}

func WithClock(now func() time.Time) Option {
	return func(x *Dispatcher) { x.now = now }
}

// Dispatcher runs every update under the lock of its sender inside one
// transaction: resolve the session, run the first matching handler, record
// the execution.
type Dispatcher struct {
	registry   *Registry
	resolver   *session.Resolver
	store      repository.Store
	locker     lock.Locker
	executions *audit.ExecutionLogger

	lockTimeout       time.Duration
	underConstruction bool
	checks            ChecksFunc
	now               func() time.Time
}

func New(
	registry *Registry,
	resolver *session.Resolver,
	store repository.Store,
	locker lock.Locker,
	executions *audit.ExecutionLogger,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		registry:    registry,
		resolver:    resolver,
		store:       store,
		locker:      locker,
		executions:  executions,
		lockTimeout: 10 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ProcessUpdates dispatches a batch and waits for all of it. Different
// users run concurrently; the updates of one user run in batch order.
func (d *Dispatcher) ProcessUpdates(ctx context.Context, updates []tgbotapi.Update) error {
	errs := make([]error, len(updates))
	var wg sync.WaitGroup
	for _, group := range groupBySender(updates) {
		wg.Add(1)
		go func(group []int) {
			defer wg.Done()
			for _, i := range group {
				errs[i] = d.ProcessUpdate(ctx, &updates[i])
			}
		}(group)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// groupBySender returns update indexes grouped by sender, each group in
// batch order. An update without a sender forms its own group.
func groupBySender(updates []tgbotapi.Update) [][]int {
	var groups [][]int
	bySender := make(map[int64]int)
	for i := range updates {
		from, err := session.Sender(&updates[i])
		if err != nil {
			groups = append(groups, []int{i})
			continue
		}
		if g, ok := bySender[from.ID]; ok {
			groups[g] = append(groups[g], i)
			continue
		}
		bySender[from.ID] = len(groups)
		groups = append(groups, []int{i})
	}
	return groups
}

// ProcessUpdate handles one update. A returned error means the transaction
// was rolled back and the update needs reporting.
func (d *Dispatcher) ProcessUpdate(ctx context.Context, update *tgbotapi.Update) error {
	logger := log.With().
		Str("traceId", uuid.NewString()).
		Int("updateId", update.UpdateID).
		Logger()
	ctx = logger.WithContext(ctx)

	kind, ok := KindOf(update)
	if !ok {
		logger.Debug().Msg("unsupported update type")
		return nil
	}
	from, err := session.Sender(update)
	if err != nil {
		logger.Debug().Str("kind", string(kind)).Msg("update without sender")
		return nil
	}

	release, err := d.locker.Acquire(ctx, fmt.Sprintf("tguser_%d", from.ID), d.lockTimeout)
	if err != nil {
		return fmt.Errorf("lock user %d: %w", from.ID, err)
	}
	defer release()

	return d.store.InTx(ctx, func(repos repository.Repos) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = &PanicError{Value: p, Stack: debug.Stack()}
			}
		}()
		return d.process(ctx, repos, kind, update)
	})
}

func (d *Dispatcher) process(ctx context.Context, repos repository.Repos, kind UpdateKind, update *tgbotapi.Update) error {
	s, err := d.resolver.Resolve(ctx, repos, update)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}

	if d.underConstruction && !s.IsAdmin() {
		s.SendMessage(ctx, UnderConstructionText, session.AsReply(), session.WithKeyboard(tgbotapi.NewRemoveKeyboard(false)))
		s.Answer(ctx, "", false)
		return nil
	}

	fnc, result, err := d.execute(ctx, kind, s)
	if err != nil {
		return err
	}

	s.Answer(ctx, "", false)
	if err := s.Failure(); err != nil {
		return fmt.Errorf("%s: telegram: %w", fnc, err)
	}
	if fnc == "" {
		return s.Save(ctx)
	}

	s.TouchLastActive(d.now())
	if !s.Deleted() {
		if err := d.record(ctx, repos, s, fnc, result); err != nil {
			return err
		}
	}
	return s.Save(ctx)
}

// execute returns the name of the handler that produced the result, or ""
// when nothing handled the update.
func (d *Dispatcher) execute(ctx context.Context, kind UpdateKind, s *session.Session) (fnc, result string, err error) {
	logger := zerolog.Ctx(ctx)

	if kind == KindMessage && d.checks != nil {
		if ok, reason := d.checks(ctx, s); !ok {
			return "checks", audit.ResultChecksPrefix + reason, nil
		}
	}

	handlers := d.registry.HandlersFor(kind)
	for attempt := 1; ; attempt++ {
		restart := false
		next := ""

	scan:
		for i := range handlers {
			h := &handlers[i]
			if !Matches(h, s) {
				continue
			}

			res, err := h.Func(ctx, s)
			if err != nil {
				if outcome, ok := apperrors.AsHandlerOutcome(err); ok {
					return h.Name, outcome.Classification(), nil
				}
				return "", "", fmt.Errorf("%s: %w", h.Name, err)
			}

			switch res {
			case Next:
				next = h.Name
				continue
			case Restart:
				restart = true
			case Fail:
				return h.Name, audit.ResultFail, nil
			default:
				return h.Name, audit.ResultOK, nil
			}
			break scan
		}

		if restart {
			if attempt >= config.MaxDispatchRestarts {
				return "", "", ErrRestartLimit
			}
			logger.Debug().Int("attempt", attempt).Msg("restarting dispatch")
			continue
		}
		if next != "" {
			logger.Warn().Str("handler", next).Msg("next handler requested but no later handler matched")
			return "", "", nil
		}
		logger.Debug().Str("kind", string(kind)).Int64("tgId", s.User.TgID).Msg("unhandled update")
		return "", "", nil
	}
}

func (d *Dispatcher) record(ctx context.Context, repos repository.Repos, s *session.Session, fnc, result string) error {
	entry := audit.Entry{
		UserID:   &s.User.ID,
		Fnc:      fnc,
		Result:   result,
		Requests: s.Requests(),
	}
	if s.Chat != nil {
		entry.ChatID = &s.Chat.Chat.ID
		entry.Requests += s.Chat.Requests()
	}

	if s.CallbackQuery != nil {
		return d.executions.RecordCallbackQuery(ctx, repos.Executions(), s.CallbackQuery, entry)
	}
	return d.executions.RecordMessage(ctx, repos.Executions(), s.Message, entry)
}
