package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trelloplus/bot-server-go/internal/repository/memory"
	"github.com/trelloplus/bot-server-go/internal/util"
)

func TestStartPayload(t *testing.T) {
	id := "0b6f6c53-3a3e-4a55-9d55-5e0d8b5a1f10"

	t.Run("round trip", func(t *testing.T) {
		payload := EncodeStartPayload(id)
		assert.NotContains(t, payload, "=")
		assert.NotContains(t, payload, "+")
		assert.NotContains(t, payload, "/")

		got, ok := DecodeStartPayload(payload)
		require.True(t, ok)
		assert.Equal(t, id, got)
	})

	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"not base64", "***"},
		{"wrong prefix", util.EncodeURLSafe([]byte("card:" + id))},
		{"not a uuid", util.EncodeURLSafe([]byte("token:42"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := DecodeStartPayload(tt.payload)
			assert.False(t, ok)
		})
	}
}

func TestPairingService(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	setup := func() (*memory.Store, *PairingService) {
		store := memory.NewStore()
		store.SetClock(func() time.Time { return now })
		svc := NewPairingService(store.PairingTokens(), "trelloplusbot")
		svc.now = func() time.Time { return now }
		return store, svc
	}

	issue := func(t *testing.T, svc *PairingService) string {
		t.Helper()
		link, err := svc.Issue(ctx, "trello-token")
		require.NoError(t, err)
		payload, ok := strings.CutPrefix(link, "https://t.me/trelloplusbot?start=")
		require.True(t, ok, link)
		id, ok := DecodeStartPayload(payload)
		require.True(t, ok)
		return id
	}

	t.Run("redeems once", func(t *testing.T) {
		store, svc := setup()
		id := issue(t, svc)

		token, ok, err := svc.Redeem(ctx, store.PairingTokens(), id)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "trello-token", token)

		_, ok, err = svc.Redeem(ctx, store.PairingTokens(), id)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expires after a day", func(t *testing.T) {
		store, svc := setup()
		id := issue(t, svc)

		svc.now = func() time.Time { return now.Add(24*time.Hour + time.Second) }
		_, ok, err := svc.Redeem(ctx, store.PairingTokens(), id)
		require.NoError(t, err)
		assert.False(t, ok)

		purged, err := svc.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)
	})

	t.Run("unknown id", func(t *testing.T) {
		store, svc := setup()
		_, ok, err := svc.Redeem(ctx, store.PairingTokens(), "0b6f6c53-3a3e-4a55-9d55-5e0d8b5a1f10")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rejects invalid access tokens", func(t *testing.T) {
		_, svc := setup()
		_, err := svc.Issue(ctx, "  ")
		assert.Error(t, err)
		_, err = svc.Issue(ctx, strings.Repeat("a", 101))
		assert.Error(t, err)
	})
}
