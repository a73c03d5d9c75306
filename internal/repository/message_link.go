package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trelloplus/bot-server-go/internal/database"
	"github.com/trelloplus/bot-server-go/internal/model"
)

type MessageLinkRepository interface {
	Create(ctx context.Context, params model.CreateMessageLinkParams) (*model.MessageLink, error)
	FindByNewMessage(ctx context.Context, newChatID, newMessageID int64) (*model.MessageLink, error)
	WithTx(tx *sqlx.Tx) MessageLinkRepository
}

type messageLinkRepo struct {
	db database.DBTX
}

func NewMessageLinkRepository(db *sqlx.DB) MessageLinkRepository {
	return &messageLinkRepo{db: db}
}

func (r *messageLinkRepo) WithTx(tx *sqlx.Tx) MessageLinkRepository {
	return &messageLinkRepo{db: tx}
}

func (r *messageLinkRepo) Create(ctx context.Context, params model.CreateMessageLinkParams) (*model.MessageLink, error) {
	var link model.MessageLink
	err := r.db.GetContext(ctx, &link, `
		INSERT INTO message_links (chat_id, original_message_id, new_chat_id, new_message_id, extra)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.ChatID, params.OriginalMessageID, params.NewChatID, params.NewMessageID, params.Extra)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *messageLinkRepo) FindByNewMessage(ctx context.Context, newChatID, newMessageID int64) (*model.MessageLink, error) {
	var link model.MessageLink
	err := r.db.GetContext(ctx, &link, `
		SELECT * FROM message_links
		WHERE new_chat_id = $1 AND new_message_id = $2
		ORDER BY id
		LIMIT 1
	`, newChatID, newMessageID)
	return HandleNotFound(&link, err)
}
