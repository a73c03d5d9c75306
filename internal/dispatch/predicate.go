package dispatch

import (
	"slices"
	"strings"

	"github.com/trelloplus/bot-server-go/internal/session"
	"github.com/trelloplus/bot-server-go/internal/telegram"
)

// Matches reports whether h accepts the update attached to s. Simple
// predicates run first, then the filters in fixed order; both short-circuit.
func Matches(h *Handler, s *session.Session) bool {
	for _, p := range h.Predicates {
		if !p(s) {
			return false
		}
	}

	f := &h.Filters
	if len(f.ContentTypes) > 0 && !slices.Contains(f.ContentTypes, contentType(s)) {
		return false
	}
	if len(f.Commands) > 0 && !matchesCommand(s, f.Commands) {
		return false
	}
	if f.Func != nil && !f.Func(s) {
		return false
	}
	for _, p := range f.All {
		if !p(s) {
			return false
		}
	}
	if f.Data != "" && callbackData(s) != f.Data {
		return false
	}
	if f.DataStartsWith != "" && (s.CallbackQuery == nil || !strings.HasPrefix(s.CallbackQuery.Data, f.DataStartsWith)) {
		return false
	}
	if f.Regexp != nil && (!s.IsText() || !f.Regexp.MatchString(s.Message.Text)) {
		return false
	}
	return true
}

func contentType(s *session.Session) string {
	switch {
	case s.CallbackQuery != nil:
		return telegram.ContentCallbackQuery
	case s.Message != nil:
		return telegram.ContentType(s.Message)
	}
	return telegram.ContentUnknown
}

func matchesCommand(s *session.Session, commands []string) bool {
	if contentType(s) != telegram.ContentText {
		return false
	}
	cmd := telegram.Command(s.Message)
	return cmd != "" && slices.Contains(commands, cmd)
}

func callbackData(s *session.Session) string {
	if s.CallbackQuery == nil {
		return ""
	}
	return s.CallbackQuery.Data
}
