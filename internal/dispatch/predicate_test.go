package dispatch

import (
	"regexp"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"

	"github.com/trelloplus/bot-server-go/internal/session"
)

func TestMatches(t *testing.T) {
	yes := func(*session.Session) bool { return true }
	no := func(*session.Session) bool { return false }

	photo := textSession("")
	photo.Message.Photo = []tgbotapi.PhotoSize{{FileID: "p"}}

	tests := []struct {
		name    string
		handler Handler
		session *session.Session
		want    bool
	}{
		{"no filters always match", Handler{}, textSession("hi"), true},
		{"no filters match callbacks", Handler{}, callbackSession("x"), true},
		{"predicate false", Handler{Predicates: []Predicate{yes, no}}, textSession("hi"), false},
		{"content type match", Handler{Filters: Filters{ContentTypes: []string{"text"}}}, textSession("hi"), true},
		{"content type miss", Handler{Filters: Filters{ContentTypes: []string{"text"}}}, photo, false},
		{"photo content type", Handler{Filters: Filters{ContentTypes: []string{"sticker", "photo"}}}, photo, true},
		{"callback content type", Handler{Filters: Filters{ContentTypes: []string{"callback_query"}}}, callbackSession("x"), true},
		{"command", Handler{Filters: Filters{Commands: []string{"start"}}}, textSession("/start abc"), true},
		{"command case insensitive", Handler{Filters: Filters{Commands: []string{"start"}}}, textSession("/START"), true},
		{"command with bot name", Handler{Filters: Filters{Commands: []string{"start"}}}, textSession("/start@TrelloPlusBot"), true},
		{"command miss", Handler{Filters: Filters{Commands: []string{"start"}}}, textSession("/help"), false},
		{"command needs slash", Handler{Filters: Filters{Commands: []string{"start"}}}, textSession("start"), false},
		{"command on callback", Handler{Filters: Filters{Commands: []string{"start"}}}, callbackSession("/start"), false},
		{"func", Handler{Filters: Filters{Func: no}}, textSession("hi"), false},
		{"all", Handler{Filters: Filters{All: []Predicate{yes, yes}}}, textSession("hi"), true},
		{"all with one false", Handler{Filters: Filters{All: []Predicate{yes, no}}}, textSession("hi"), false},
		{"data", Handler{Filters: Filters{Data: "/boards"}}, callbackSession("/boards"), true},
		{"data miss", Handler{Filters: Filters{Data: "/boards"}}, callbackSession("/board 1"), false},
		{"data on message", Handler{Filters: Filters{Data: "/boards"}}, textSession("/boards"), false},
		{"data prefix", Handler{Filters: Filters{DataStartsWith: "/board "}}, callbackSession("/board 1"), true},
		{"data prefix miss", Handler{Filters: Filters{DataStartsWith: "/board "}}, callbackSession("/boards"), false},
		{"regexp search", Handler{Filters: Filters{Regexp: regexp.MustCompile("cancel")}}, textSession("❌ cancel"), true},
		{"regexp miss", Handler{Filters: Filters{Regexp: regexp.MustCompile("^cancel$")}}, textSession("no"), false},
		{"regexp needs text", Handler{Filters: Filters{Regexp: regexp.MustCompile(".*")}}, photo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(&tt.handler, tt.session))
		})
	}
}

func TestMatchesShortCircuits(t *testing.T) {
	var calls []string
	track := func(name string, result bool) Predicate {
		return func(*session.Session) bool {
			calls = append(calls, name)
			return result
		}
	}

	h := Handler{
		Predicates: []Predicate{track("p1", true), track("p2", false)},
		Filters:    Filters{Func: track("func", true)},
	}
	assert.False(t, Matches(&h, textSession("hi")))
	assert.Equal(t, []string{"p1", "p2"}, calls)

	calls = nil
	h = Handler{
		Filters: Filters{
			Commands: []string{"start"},
			Func:     track("func", false),
			All:      []Predicate{track("all", true)},
		},
	}
	assert.False(t, Matches(&h, textSession("/start")))
	assert.Equal(t, []string{"func"}, calls)
}
