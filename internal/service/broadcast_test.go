package service

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trelloplus/bot-server-go/internal/model"
	"github.com/trelloplus/bot-server-go/internal/repository/memory"
	"github.com/trelloplus/bot-server-go/internal/session"
	"github.com/trelloplus/bot-server-go/internal/session/sessiontest"
)

func TestBroadcaster(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	messenger := sessiontest.NewMessenger()
	env := &session.Env{Messenger: messenger, Alerter: &sessiontest.Alerter{}}

	for _, tgID := range []int64{1, 2, 3} {
		_, err := store.Users().Upsert(ctx, model.UpsertUserParams{TgID: tgID})
		require.NoError(t, err)
	}
	inactive, err := store.Users().Upsert(ctx, model.UpsertUserParams{TgID: 4})
	require.NoError(t, err)
	require.NoError(t, store.Users().SetActive(ctx, inactive.ID, false))

	messenger.ErrorsFor[2] = &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}

	res, err := NewBroadcaster(store, env).Send(ctx, "New release")
	require.NoError(t, err)

	assert.Equal(t, BroadcastResult{Sent: 2, Failed: 1}, res)
	assert.Len(t, messenger.CallsTo("sendMessage"), 3)

	blocked, err := store.Users().FindByTgID(ctx, 2)
	require.NoError(t, err)
	assert.False(t, blocked.Active)
}
