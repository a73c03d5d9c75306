package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/audit"
	"github.com/trelloplus/bot-server-go/internal/config"
	"github.com/trelloplus/bot-server-go/internal/model"
	"github.com/trelloplus/bot-server-go/internal/repository"
	"github.com/trelloplus/bot-server-go/internal/session"
)

type BroadcastResult struct {
	Sent   int
	Failed int
}

// Broadcaster sends one text to every active user. Users that blocked the
// bot are deactivated on the way.
type Broadcaster struct {
	store repository.Store
	env   *session.Env
}

func NewBroadcaster(store repository.Store, env *session.Env) *Broadcaster {
	return &Broadcaster{store: store, env: env}
}

func (b *Broadcaster) Send(ctx context.Context, text string) (BroadcastResult, error) {
	var res BroadcastResult
	var afterID int64
	for {
		users, err := b.store.Users().List(ctx, model.UserFilter{ActiveOnly: true}, config.BroadcastBatchSize, afterID)
		if err != nil {
			return res, fmt.Errorf("list users: %w", err)
		}
		for i := range users {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			target := session.UserTarget(b.env, b.store, &users[i])
			if _, ok := target.SendMessage(ctx, text); ok {
				res.Sent++
			} else {
				res.Failed++
			}
		}
		if len(users) < config.BroadcastBatchSize {
			break
		}
		afterID = users[len(users)-1].ID
	}

	log.Info().Int("sent", res.Sent).Int("failed", res.Failed).Msg("broadcast finished")
	audit.Log(ctx, audit.Event{
		Type:    audit.EventBroadcast,
		Details: map[string]any{"sent": res.Sent, "failed": res.Failed},
	})
	return res, nil
}
