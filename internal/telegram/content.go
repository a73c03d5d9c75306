package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Content types reported by ContentType.
const (
	ContentText           = "text"
	ContentAudio          = "audio"
	ContentDocument       = "document"
	ContentPhoto          = "photo"
	ContentSticker        = "sticker"
	ContentVideo          = "video"
	ContentVoice          = "voice"
	ContentLocation       = "location"
	ContentVenue          = "venue"
	ContentContact        = "contact"
	ContentNewChatMembers = "new_chat_members"
	ContentLeftChatMember = "left_chat_member"
	ContentNewChatTitle   = "new_chat_title"
	ContentPinnedMessage  = "pinned_message"
	ContentGroupCreated   = "group_chat_created"
	ContentCallbackQuery  = "callback_query"
	ContentUnknown        = "unknown"
)

// ContentType names the payload the message carries.
func ContentType(m *tgbotapi.Message) string {
	switch {
	case m == nil:
		return ContentUnknown
	case m.Text != "":
		return ContentText
	case m.Audio != nil:
		return ContentAudio
	case m.Document != nil:
		return ContentDocument
	case len(m.Photo) > 0:
		return ContentPhoto
	case m.Sticker != nil:
		return ContentSticker
	case m.Video != nil:
		return ContentVideo
	case m.Voice != nil:
		return ContentVoice
	case m.Venue != nil:
		return ContentVenue
	case m.Location != nil:
		return ContentLocation
	case m.Contact != nil:
		return ContentContact
	case len(m.NewChatMembers) > 0:
		return ContentNewChatMembers
	case m.LeftChatMember != nil:
		return ContentLeftChatMember
	case m.NewChatTitle != "":
		return ContentNewChatTitle
	case m.PinnedMessage != nil:
		return ContentPinnedMessage
	case m.GroupChatCreated:
		return ContentGroupCreated
	}
	return ContentUnknown
}

// Command returns the lower-cased command of a text message without the
// leading slash and the @botname suffix, or "" when the text is not a command.
// Unlike Message.Command it reads the text rather than the entities, so
// callback data shaped like a command matches too.
func Command(m *tgbotapi.Message) string {
	if m == nil {
		return ""
	}
	return ExtractCommand(m.Text)
}

// CommandArgs returns the whitespace separated words following the command.
func CommandArgs(m *tgbotapi.Message) []string {
	if Command(m) == "" {
		return nil
	}
	return strings.Fields(m.Text)[1:]
}

// LargestPhoto returns the file id of the biggest photo size.
func LargestPhoto(m *tgbotapi.Message) string {
	if m == nil || len(m.Photo) == 0 {
		return ""
	}
	return m.Photo[len(m.Photo)-1].FileID
}

func ExtractCommand(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	first := strings.Fields(text)[0][1:]
	if i := strings.Index(first, "@"); i >= 0 {
		first = first[:i]
	}
	return strings.ToLower(first)
}
