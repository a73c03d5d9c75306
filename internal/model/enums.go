package model

type ChatType string

const (
	ChatTypePrivate    ChatType = "private"
	ChatTypeGroup      ChatType = "group"
	ChatTypeSupergroup ChatType = "supergroup"
	ChatTypeChannel    ChatType = "channel"
	// ChatTypeCallbackQuery marks execution records produced by inline buttons.
	ChatTypeCallbackQuery ChatType = "callback_query"
)

var ChatTypes = []ChatType{
	ChatTypePrivate,
	ChatTypeGroup,
	ChatTypeSupergroup,
	ChatTypeChannel,
	ChatTypeCallbackQuery,
}
