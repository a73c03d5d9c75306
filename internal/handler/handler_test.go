package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trelloplus/bot-server-go/internal/model"
	"github.com/trelloplus/bot-server-go/internal/repository/memory"
)

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) ProcessUpdate(ctx context.Context, update *tgbotapi.Update) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

type mockReporter struct {
	mock.Mock
}

func (m *mockReporter) Report(ctx context.Context, err error, stack []byte) {
	m.Called(ctx, err, stack)
}

type mockIssuer struct {
	mock.Mock
}

func (m *mockIssuer) Issue(ctx context.Context, accessToken string) (string, error) {
	args := m.Called(ctx, accessToken)
	return args.String(0), args.Error(1)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWebhookHandler(t *testing.T) {
	update := `{"update_id":7,"message":{"message_id":1,"from":{"id":5,"first_name":"A"},"chat":{"id":5,"type":"private"},"date":1,"text":"/start"}}`

	t.Run("empty body", func(t *testing.T) {
		processor := &mockProcessor{}
		h := NewWebhookHandler(processor, &mockReporter{}, false)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bot/x/", strings.NewReader("  ")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "no data", decode(t, rec)["error"])
		processor.AssertNotCalled(t, "ProcessUpdate", mock.Anything, mock.Anything)
	})

	t.Run("invalid json", func(t *testing.T) {
		h := NewWebhookHandler(&mockProcessor{}, &mockReporter{}, false)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bot/x/", strings.NewReader("{nope")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("processed", func(t *testing.T) {
		processor := &mockProcessor{}
		processor.On("ProcessUpdate", mock.Anything, mock.MatchedBy(func(u *tgbotapi.Update) bool {
			return u.UpdateID == 7 && u.Message.Text == "/start"
		})).Return(nil)
		h := NewWebhookHandler(processor, &mockReporter{}, false)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bot/x/", strings.NewReader(update)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", decode(t, rec)["status"])
		processor.AssertExpectations(t)
	})

	t.Run("client disconnect does not cancel processing", func(t *testing.T) {
		reqCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var processErr error
		processor := &mockProcessor{}
		processor.On("ProcessUpdate", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			cancel()
			processErr = args.Get(0).(context.Context).Err()
		}).Return(nil)
		h := NewWebhookHandler(processor, &mockReporter{}, false)
		rec := httptest.NewRecorder()

		req := httptest.NewRequest(http.MethodPost, "/bot/x/", strings.NewReader(update)).WithContext(reqCtx)
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Error(t, reqCtx.Err())
		assert.NoError(t, processErr)
		processor.AssertExpectations(t)
	})

	t.Run("failure is reported and swallowed", func(t *testing.T) {
		boom := errors.New("boom")
		processor := &mockProcessor{}
		processor.On("ProcessUpdate", mock.Anything, mock.Anything).Return(boom)
		reporter := &mockReporter{}
		reporter.On("Report", mock.Anything, boom, mock.Anything).Return()
		h := NewWebhookHandler(processor, reporter, false)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bot/x/", strings.NewReader(update)))

		assert.Equal(t, http.StatusOK, rec.Code)
		reporter.AssertExpectations(t)
	})

	t.Run("failure exposed in testing mode", func(t *testing.T) {
		processor := &mockProcessor{}
		processor.On("ProcessUpdate", mock.Anything, mock.Anything).Return(errors.New("boom"))
		reporter := &mockReporter{}
		reporter.On("Report", mock.Anything, mock.Anything, mock.Anything).Return()
		h := NewWebhookHandler(processor, reporter, true)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bot/x/", strings.NewReader(update)))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "boom", decode(t, rec)["error"])
	})
}

func TestTokenHandler(t *testing.T) {
	t.Run("page without token", func(t *testing.T) {
		h := NewTokenHandler(&mockIssuer{})
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "location.hash")
	})

	t.Run("redirects to deep link", func(t *testing.T) {
		issuer := &mockIssuer{}
		issuer.On("Issue", mock.Anything, "abc").Return("https://t.me/TrelloPlusBot?start=dG9rZW4", nil)
		h := NewTokenHandler(issuer)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token/?token=abc", nil))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://t.me/TrelloPlusBot?start=dG9rZW4", rec.Header().Get("Location"))
	})

	t.Run("token too long", func(t *testing.T) {
		issuer := &mockIssuer{}
		h := NewTokenHandler(issuer)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token/?token="+strings.Repeat("a", 101), nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		issuer := &mockIssuer{}
		issuer.On("Issue", mock.Anything, "abc").Return("", errors.New("db down"))
		h := NewTokenHandler(issuer)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token/?token=abc", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func seedExecutions(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	rows := []model.CreateExecutionParams{
		{TgID: 1, FromTgID: 1, ChatType: model.ChatTypePrivate, Fnc: "start", Result: "ok", Text: "/start"},
		{TgID: 2, FromTgID: 2, ChatType: model.ChatTypePrivate, Fnc: "timer_start", Result: "state:multiple_timers"},
		{TgID: 1, FromTgID: 1, ChatType: model.ChatTypeCallbackQuery, Fnc: "card", Result: "ok"},
	}
	for _, p := range rows {
		p.Date = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		_, err := store.Executions().Create(ctx, p)
		require.NoError(t, err)
	}
}

func TestAdminHandler_ListExecutions(t *testing.T) {
	store := memory.NewStore()
	seedExecutions(t, store)
	router := NewAdminHandler(store).Routes()

	get := func(query string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/executions"+query, nil))
		return rec
	}

	t.Run("all fields", func(t *testing.T) {
		rec := get("")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, float64(3), body["total"])
		items := body["items"].([]any)
		require.Len(t, items, 3)
		assert.Len(t, items[0].(map[string]any), len(executionFieldOrder))
	})

	t.Run("projection and filter", func(t *testing.T) {
		rec := get("?tg_id=1&fields=fnc,result")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, float64(2), body["total"])
		items := body["items"].([]any)
		require.Len(t, items, 2)
		assert.Equal(t, map[string]any{"fnc": "card", "result": "ok"}, items[0])
	})

	t.Run("pagination", func(t *testing.T) {
		body := decode(t, get("?limit=1&offset=1"))
		assert.Len(t, body["items"].([]any), 1)
		assert.Equal(t, float64(3), body["total"])
	})

	t.Run("bad input", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get("?tg_id=abc").Code)
		assert.Equal(t, http.StatusBadRequest, get("?chat_type=forum").Code)
	})

	t.Run("unknown field lists the allowed ones", func(t *testing.T) {
		rec := get("?fields=password")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "INVALID_INPUT", body["code"])
		details := body["details"].(map[string]any)
		assert.Contains(t, details["allowed"], "fnc")
		assert.NotContains(t, details["allowed"], "password")
	})
}

func TestAdminHandler_Users(t *testing.T) {
	store := memory.NewStore()
	_, err := store.Users().Upsert(context.Background(), model.UpsertUserParams{TgID: 77, FirstName: "Ada"})
	require.NoError(t, err)
	router := NewAdminHandler(store).Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/77", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decode(t, rec)["firstName"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/78", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users?active=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"].([]any), 1)
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = httptest.NewRecorder()
	NewHealthHandler(map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("down") },
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", 50, 0},
		{"?limit=10&offset=20", 10, 20},
		{"?limit=-1&offset=-5", 50, 0},
		{"?limit=100000", 500, 0},
	}
	for _, tt := range tests {
		p := ParsePagination(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil))
		assert.Equal(t, tt.limit, p.Limit, tt.query)
		assert.Equal(t, tt.offset, p.Offset, tt.query)
	}
}
