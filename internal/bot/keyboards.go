package bot

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/trelloplus/bot-server-go/internal/model"
	"github.com/trelloplus/bot-server-go/internal/trello"
)

// Button is a reply keyboard button that also answers to commands.
type Button struct {
	Emoji    string
	Text     string
	Commands []string
}

var (
	BoardsButton = Button{Emoji: "📋", Text: "Boards", Commands: []string{"boards"}}
	HelpButton   = Button{Emoji: "❓", Text: "Help", Commands: []string{"help"}}
	CancelButton = Button{Emoji: "❌", Text: "Cancel", Commands: []string{"cancel"}}
)

var startCommands = []string{"start"}

func (b Button) Label() string {
	return b.Emoji + " " + b.Text
}

// EmojiRegexp matches a message starting with the button emoji, which is
// what a tap on the button sends.
func (b Button) EmojiRegexp() *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(b.Emoji))
}

// TextRegexp matches the button caption typed by hand.
func (b Button) TextRegexp() *regexp.Regexp {
	return regexp.MustCompile(`(?i)^\s*` + regexp.QuoteMeta(b.Text) + `\s*$`)
}

func replyKeyboard(rows ...[]Button) *tgbotapi.ReplyKeyboardMarkup {
	kb := &tgbotapi.ReplyKeyboardMarkup{ResizeKeyboard: true}
	for _, row := range rows {
		var buttons []tgbotapi.KeyboardButton
		for _, b := range row {
			buttons = append(buttons, tgbotapi.KeyboardButton{Text: b.Label()})
		}
		kb.Keyboard = append(kb.Keyboard, buttons)
	}
	return kb
}

func StartKeyboard() *tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard([]Button{BoardsButton, HelpButton})
}

func CancelKeyboard() *tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard([]Button{CancelButton})
}

const timerMark = "⏱ "

func backButton(data string) []tgbotapi.InlineKeyboardButton {
	return []tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("🔙 Back", data)}
}

func marked(name string, running bool) string {
	if running {
		return timerMark + name
	}
	return name
}

// BoardsKeyboard lists boards one per row. Boards in timerBoardIDs carry
// the timer mark.
func BoardsKeyboard(boards []trello.Board, timerBoardIDs []string) *tgbotapi.InlineKeyboardMarkup {
	kb := &tgbotapi.InlineKeyboardMarkup{}
	for _, b := range boards {
		kb.InlineKeyboard = append(kb.InlineKeyboard, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(marked(b.Name, slices.Contains(timerBoardIDs, b.ID)), "/board "+b.ID),
		})
	}
	return kb
}

func ListsKeyboard(lists []trello.List, timerListIDs []string) *tgbotapi.InlineKeyboardMarkup {
	kb := &tgbotapi.InlineKeyboardMarkup{}
	for _, l := range lists {
		kb.InlineKeyboard = append(kb.InlineKeyboard, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(marked(l.Name, slices.Contains(timerListIDs, l.ID)), "/board_list "+l.ID),
		})
	}
	kb.InlineKeyboard = append(kb.InlineKeyboard, backButton("/back boards"))
	return kb
}

func CardsKeyboard(listID string, cards []trello.Card, timerCardIDs []string) *tgbotapi.InlineKeyboardMarkup {
	kb := &tgbotapi.InlineKeyboardMarkup{}
	for _, c := range cards {
		kb.InlineKeyboard = append(kb.InlineKeyboard, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(marked(c.Name, slices.Contains(timerCardIDs, c.ID)), "/card "+c.ID),
		})
	}
	kb.InlineKeyboard = append(kb.InlineKeyboard, backButton("/back list "+listID))
	return kb
}

// CardKeyboard controls the timer of one card. A running timer shows the
// elapsed time as of now; tapping it refreshes the value.
func CardKeyboard(cardID string, timer *model.Timer, now time.Time) *tgbotapi.InlineKeyboardMarkup {
	kb := &tgbotapi.InlineKeyboardMarkup{}
	if timer == nil {
		kb.InlineKeyboard = append(kb.InlineKeyboard, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("▶️ Start timer", "/timer_start "+cardID),
		})
	} else {
		kb.InlineKeyboard = append(kb.InlineKeyboard,
			[]tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData(timerMark+formatDuration(now.Sub(timer.CreatedAt)), "/timer "+cardID),
			},
			[]tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData("⏹ Stop", "/timer_stop "+cardID),
				tgbotapi.NewInlineKeyboardButtonData("🔄 Reset", "/timer_reset "+cardID),
			},
		)
	}
	kb.InlineKeyboard = append(kb.InlineKeyboard,
		[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("💬 Comment", "/comment "+cardID)},
		backButton("/back card "+cardID),
	)
	return kb
}

// formatDuration renders d as HH:MM:SS; hours may exceed 24.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}
