package dispatch

import (
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/trelloplus/bot-server-go/internal/session"
	"github.com/trelloplus/bot-server-go/internal/telegram"
)

type UpdateKind string

const (
	KindMessage       UpdateKind = "message"
	KindEditedMessage UpdateKind = "edited_message"
	KindCallbackQuery UpdateKind = "callback_query"
)

// KindOf reports which handler list an update is dispatched to.
func KindOf(update *tgbotapi.Update) (UpdateKind, bool) {
	switch {
	case update.Message != nil:
		return KindMessage, true
	case update.EditedMessage != nil:
		return KindEditedMessage, true
	case update.CallbackQuery != nil:
		return KindCallbackQuery, true
	}
	return "", false
}

// Predicate is a simple condition over the session of an update.
type Predicate func(s *session.Session) bool

// Filters are evaluated in field order after the simple predicates. Zero
// values are not checked.
type Filters struct {
	ContentTypes []string
	// Commands are matched case-insensitively without the leading slash.
	Commands       []string
	Func           Predicate
	All            []Predicate
	Data           string
	DataStartsWith string
	Regexp         *regexp.Regexp
}

type Handler struct {
	// Name is recorded as the fnc of the execution.
	Name       string
	Func       HandlerFunc
	Predicates []Predicate
	Filters    Filters
}

// Registry keeps the handlers of every update kind in registration order.
type Registry struct {
	handlers  map[UpdateKind][]Handler
	providers []Provider
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[UpdateKind][]Handler)}
}

func (r *Registry) Register(kind UpdateKind, h Handler) {
	commands := make([]string, len(h.Filters.Commands))
	for i, c := range h.Filters.Commands {
		commands[i] = strings.ToLower(strings.TrimPrefix(c, "/"))
	}
	h.Filters.Commands = commands
	r.handlers[kind] = append(r.handlers[kind], h)
}

func (r *Registry) HandlersFor(kind UpdateKind) []Handler {
	return r.handlers[kind]
}

// Message registers a message handler. Without explicit content types only
// text messages match.
func (r *Registry) Message(name string, fn HandlerFunc, filters Filters, preds ...Predicate) {
	if len(filters.ContentTypes) == 0 {
		filters.ContentTypes = []string{telegram.ContentText}
	}
	r.Register(KindMessage, Handler{Name: name, Func: fn, Predicates: preds, Filters: filters})
}

// EditedMessage registers an edited message handler with the same content
// type default as Message.
func (r *Registry) EditedMessage(name string, fn HandlerFunc, filters Filters, preds ...Predicate) {
	if len(filters.ContentTypes) == 0 {
		filters.ContentTypes = []string{telegram.ContentText}
	}
	r.Register(KindEditedMessage, Handler{Name: name, Func: fn, Predicates: preds, Filters: filters})
}

func (r *Registry) CallbackQuery(name string, fn HandlerFunc, filters Filters, preds ...Predicate) {
	r.Register(KindCallbackQuery, Handler{Name: name, Func: fn, Predicates: preds, Filters: filters})
}

// Provider contributes handlers to a Registry.
type Provider interface {
	DefineHandlers(r *Registry)
}

// TextRegexpProvider registers the handlers of its reply keyboard buttons.
// They run after every provider's DefineHandlers and before any fallback.
type TextRegexpProvider interface {
	TextRegexps(r *Registry)
}

// FallbackProvider registers catch-all handlers, which come last.
type FallbackProvider interface {
	DefineFallbacks(r *Registry)
}

type abstractProvider interface {
	Abstract() bool
}

// Build creates a Registry from providers in three passes: handlers, text
// button regexps, fallbacks. Providers reporting Abstract() are skipped.
func Build(providers ...Provider) *Registry {
	r := NewRegistry()
	for _, p := range providers {
		if a, ok := p.(abstractProvider); ok && a.Abstract() {
			continue
		}
		r.providers = append(r.providers, p)
	}

	for _, p := range r.providers {
		p.DefineHandlers(r)
	}
	for _, p := range r.providers {
		if tp, ok := p.(TextRegexpProvider); ok {
			tp.TextRegexps(r)
		}
	}
	for _, p := range r.providers {
		if fp, ok := p.(FallbackProvider); ok {
			fp.DefineFallbacks(r)
		}
	}
	return r
}
