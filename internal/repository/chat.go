package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trelloplus/bot-server-go/internal/database"
	"github.com/trelloplus/bot-server-go/internal/model"
)

type ChatRepository interface {
	FindByTgID(ctx context.Context, tgID int64) (*model.Chat, error)
	// Upsert creates the chat on first contact and reactivates it otherwise.
	// The title is only written on creation.
	Upsert(ctx context.Context, params model.UpsertChatParams) (*model.Chat, error)
	SetActive(ctx context.Context, id int64, active bool) error
	WithTx(tx *sqlx.Tx) ChatRepository
}

type chatRepo struct {
	db database.DBTX
}

func NewChatRepository(db *sqlx.DB) ChatRepository {
	return &chatRepo{db: db}
}

func (r *chatRepo) WithTx(tx *sqlx.Tx) ChatRepository {
	return &chatRepo{db: tx}
}

func (r *chatRepo) FindByTgID(ctx context.Context, tgID int64) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT * FROM tg_chats WHERE tg_id = $1`, tgID)
	return HandleNotFound(&chat, err)
}

func (r *chatRepo) Upsert(ctx context.Context, params model.UpsertChatParams) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.GetContext(ctx, &chat, `
		INSERT INTO tg_chats (tg_id, type, title, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (tg_id) DO UPDATE SET
			active = TRUE,
			updated_at = NOW()
		RETURNING *
	`, params.TgID, params.Type, params.Title)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepo) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tg_chats SET active = $2, updated_at = $3 WHERE id = $1
	`, id, active, time.Now())
	return err
}
