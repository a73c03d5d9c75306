package telegram

import (
	"errors"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// AsAPIError extracts the error the Bot API answered with.
func AsAPIError(err error) (*tgbotapi.Error, bool) {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Ignorable reports errors that mean the request had no effect to apply.
func Ignorable(err error) bool {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return false
	}
	return strings.Contains(apiErr.Message, "QUERY_ID_INVALID") ||
		strings.Contains(apiErr.Message, "query is too old") ||
		strings.Contains(apiErr.Message, "message is not modified")
}

// Unreachable reports that the recipient blocked the bot or no longer exists.
func Unreachable(err error) bool {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return false
	}
	if apiErr.Code == http.StatusForbidden {
		return true
	}
	return apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "chat not found")
}

func TooManyRequests(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Code == http.StatusTooManyRequests
}
