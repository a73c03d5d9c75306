package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trelloplus/bot-server-go/internal/model"
	"github.com/trelloplus/bot-server-go/internal/repository"
	"github.com/trelloplus/bot-server-go/internal/repository/memory"
)

type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) Create(ctx context.Context, params model.CreateExecutionParams) (*model.Execution, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Execution), args.Error(1)
}

func (m *MockExecutionRepository) List(ctx context.Context, filter model.ExecutionFilter, limit, offset int) ([]model.Execution, error) {
	args := m.Called(ctx, filter, limit, offset)
	return args.Get(0).([]model.Execution), args.Error(1)
}

func (m *MockExecutionRepository) Count(ctx context.Context, filter model.ExecutionFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *MockExecutionRepository) FindLastPrivate(ctx context.Context, fromTgID int64) (*model.Execution, error) {
	args := m.Called(ctx, fromTgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Execution), args.Error(1)
}

func (m *MockExecutionRepository) WithTx(_ *sqlx.Tx) repository.ExecutionRepository {
	return m
}

func TestExecutionLogger_RecordMessage(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	logger := NewExecutionLogger(true)
	userID := int64(7)

	tests := []struct {
		name     string
		msg      *tgbotapi.Message
		wantText string
	}{
		{
			name:     "text",
			msg:      &tgbotapi.Message{MessageID: 1, Date: 1700000000, From: &tgbotapi.User{ID: 5}, Chat: &tgbotapi.Chat{ID: 5, Type: "private"}, Text: "/start"},
			wantText: "/start",
		},
		{
			name:     "caption",
			msg:      &tgbotapi.Message{MessageID: 2, From: &tgbotapi.User{ID: 5}, Chat: &tgbotapi.Chat{ID: 5, Type: "private"}, Caption: "look", Photo: []tgbotapi.PhotoSize{{FileID: "p"}}},
			wantText: "look",
		},
		{
			name:     "content type",
			msg:      &tgbotapi.Message{MessageID: 3, From: &tgbotapi.User{ID: 5}, Chat: &tgbotapi.Chat{ID: 5, Type: "private"}, Sticker: &tgbotapi.Sticker{FileID: "s"}},
			wantText: "content_type:sticker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := logger.RecordMessage(ctx, store.Executions(), tt.msg, Entry{UserID: &userID, Fnc: "start", Result: ResultOK, Requests: 2})
			require.NoError(t, err)

			last, err := store.Executions().FindLastPrivate(ctx, 5)
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, last.Text)
			assert.Equal(t, int64(tt.msg.MessageID), last.MessageID)
			assert.Equal(t, 2, last.RequestsMade)
			assert.Equal(t, model.ChatTypePrivate, last.ChatType)
			assert.Contains(t, last.Message, `"message_id"`)
		})
	}
}

func TestExecutionLogger_RecordCallbackQuery(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	logger := NewExecutionLogger(true)
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	logger.now = func() time.Time { return fixed }

	chatID := int64(3)
	cq := &tgbotapi.CallbackQuery{ID: "q", From: &tgbotapi.User{ID: 9}, Data: "/card c1", Message: &tgbotapi.Message{MessageID: 77}}
	err := logger.RecordCallbackQuery(ctx, store.Executions(), cq, Entry{ChatID: &chatID, Fnc: "card", Result: "state:timer_not_started"})
	require.NoError(t, err)

	execs, err := store.Executions().List(ctx, model.ExecutionFilter{ChatType: model.ChatTypeCallbackQuery}, 10, 0)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, int64(9), execs[0].TgID)
	assert.Equal(t, int64(77), execs[0].MessageID)
	assert.Equal(t, "/card c1", execs[0].Text)
	assert.Equal(t, fixed, execs[0].Date)
	assert.Nil(t, execs[0].ChatID)
}

func TestExecutionLogger_PersistenceFailure(t *testing.T) {
	ctx := context.Background()
	msg := &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: 5, Type: "private"}, Text: "hi"}

	t.Run("swallowed in production", func(t *testing.T) {
		repo := new(MockExecutionRepository)
		repo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db down"))

		err := NewExecutionLogger(false).RecordMessage(ctx, repo, msg, Entry{Fnc: "x", Result: ResultOK})
		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("returned in testing mode", func(t *testing.T) {
		repo := new(MockExecutionRepository)
		repo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db down"))

		err := NewExecutionLogger(true).RecordMessage(ctx, repo, msg, Entry{Fnc: "x", Result: ResultOK})
		assert.Error(t, err)
	})
}
