package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trelloplus/bot-server-go/internal/database"
	"github.com/trelloplus/bot-server-go/internal/model"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.Connect(url)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))
	_, err = db.ExecContext(ctx, `
		TRUNCATE tg_messages, message_links, trello_bindings, pairing_tokens, timers, tg_chats, tg_users
		RESTART IDENTITY CASCADE
	`)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUserRepository_Upsert(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	user, err := store.Users().Upsert(ctx, model.UpsertUserParams{TgID: 1001, Username: "alice", FirstName: "Alice"})
	require.NoError(t, err)
	assert.True(t, user.Active)
	assert.Equal(t, "alice", user.Username)

	require.NoError(t, store.Users().SetActive(ctx, user.ID, false))

	again, err := store.Users().Upsert(ctx, model.UpsertUserParams{TgID: 1001, Username: "alice2", FirstName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.True(t, again.Active)
	assert.Equal(t, "alice2", again.Username)

	t.Run("finds by tg id or primary key", func(t *testing.T) {
		found, err := store.Users().FindByTgIDOrID(ctx, 1001)
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)

		found, err = store.Users().FindByTgIDOrID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("returns nil for unknown user", func(t *testing.T) {
		found, err := store.Users().FindByTgID(ctx, 9999)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestUserRepository_UpdateDialog(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	user, err := store.Users().Upsert(ctx, model.UpsertUserParams{TgID: 1002})
	require.NoError(t, err)

	user.SetDialog(model.DialogAwaitingComment{CardID: "card1"})
	require.NoError(t, store.Users().Update(ctx, user))

	found, err := store.Users().FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DialogAwaitingComment{CardID: "card1"}, found.DialogState())
}

func TestStore_InTx(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	t.Run("rolls back on error", func(t *testing.T) {
		errBoom := errors.New("boom")
		err := store.InTx(ctx, func(repos Repos) error {
			_, err := repos.Users().Upsert(ctx, model.UpsertUserParams{TgID: 2001})
			require.NoError(t, err)
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)

		found, err := store.Users().FindByTgID(ctx, 2001)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("commits on success", func(t *testing.T) {
		err := store.InTx(ctx, func(repos Repos) error {
			_, err := repos.Users().Upsert(ctx, model.UpsertUserParams{TgID: 2002})
			return err
		})
		require.NoError(t, err)

		found, err := store.Users().FindByTgID(ctx, 2002)
		require.NoError(t, err)
		assert.NotNil(t, found)
	})
}

func TestPairingTokenRepository(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()
	id := uuid.NewString()

	_, err := store.PairingTokens().Create(ctx, id, "trello-token")
	require.NoError(t, err)

	t.Run("finds token inside the window", func(t *testing.T) {
		pt, err := store.PairingTokens().FindValid(ctx, id, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		require.NotNil(t, pt)
		assert.Equal(t, "trello-token", pt.Token)
	})

	t.Run("ignores token outside the window", func(t *testing.T) {
		pt, err := store.PairingTokens().FindValid(ctx, id, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Nil(t, pt)
	})

	t.Run("deletes once", func(t *testing.T) {
		deleted, err := store.PairingTokens().Delete(ctx, id)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = store.PairingTokens().Delete(ctx, id)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

func TestExecutionRepository_ListAndCount(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	for i, fnc := range []string{"start", "start", "help"} {
		_, err := store.Executions().Create(ctx, model.CreateExecutionParams{
			TgID:      int64(100 + i),
			FromTgID:  5,
			MessageID: int64(i),
			ChatType:  model.ChatTypePrivate,
			Fnc:       fnc,
			Result:    "ok",
			Date:      time.Now(),
		})
		require.NoError(t, err)
	}

	count, err := store.Executions().Count(ctx, model.ExecutionFilter{Fnc: "start"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	execs, err := store.Executions().List(ctx, model.ExecutionFilter{}, 2, 0)
	require.NoError(t, err)
	assert.Len(t, execs, 2)

	last, err := store.Executions().FindLastPrivate(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "help", last.Fnc)
}

func TestExecutionRepository_FailedInsertKeepsTransaction(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	missing := int64(999999)
	err := store.InTx(ctx, func(repos Repos) error {
		_, err := repos.Users().Upsert(ctx, model.UpsertUserParams{TgID: 3001})
		require.NoError(t, err)

		_, err = repos.Executions().Create(ctx, model.CreateExecutionParams{
			UserID:   &missing,
			TgID:     3001,
			ChatType: model.ChatTypePrivate,
			Fnc:      "start",
			Date:     time.Now(),
		})
		require.Error(t, err)

		_, err = repos.Users().Upsert(ctx, model.UpsertUserParams{TgID: 3002})
		return err
	})
	require.NoError(t, err)

	for _, tgID := range []int64{3001, 3002} {
		found, err := store.Users().FindByTgID(ctx, tgID)
		require.NoError(t, err)
		assert.NotNil(t, found, "user %d", tgID)
	}
	count, err := store.Executions().Count(ctx, model.ExecutionFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTimerRepository_Uniqueness(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	ada, err := store.Users().Upsert(ctx, model.UpsertUserParams{TgID: 4001})
	require.NoError(t, err)
	bob, err := store.Users().Upsert(ctx, model.UpsertUserParams{TgID: 4002})
	require.NoError(t, err)

	_, err = store.Timers().Create(ctx, model.CreateTimerParams{UserID: ada.ID, CardID: "c1", MessageID: 20})
	require.NoError(t, err)
	_, err = store.Timers().Create(ctx, model.CreateTimerParams{UserID: bob.ID, CardID: "c1", MessageID: 20})
	require.NoError(t, err)

	_, err = store.Timers().Create(ctx, model.CreateTimerParams{UserID: ada.ID, CardID: "c1", MessageID: 21})
	assert.ErrorIs(t, err, ErrDuplicate)
}
