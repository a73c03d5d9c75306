package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trelloplus/bot-server-go/internal/database"
	"github.com/trelloplus/bot-server-go/internal/model"
)

type TrelloBindingRepository interface {
	FindByUserID(ctx context.Context, userID int64) (*model.TrelloBinding, error)
	Upsert(ctx context.Context, userID int64, token string) (*model.TrelloBinding, error)
	Delete(ctx context.Context, userID int64) error
	WithTx(tx *sqlx.Tx) TrelloBindingRepository
}

type trelloBindingRepo struct {
	db database.DBTX
}

func NewTrelloBindingRepository(db *sqlx.DB) TrelloBindingRepository {
	return &trelloBindingRepo{db: db}
}

func (r *trelloBindingRepo) WithTx(tx *sqlx.Tx) TrelloBindingRepository {
	return &trelloBindingRepo{db: tx}
}

func (r *trelloBindingRepo) FindByUserID(ctx context.Context, userID int64) (*model.TrelloBinding, error) {
	var binding model.TrelloBinding
	err := r.db.GetContext(ctx, &binding, `SELECT * FROM trello_bindings WHERE tg_user_id = $1`, userID)
	return HandleNotFound(&binding, err)
}

func (r *trelloBindingRepo) Upsert(ctx context.Context, userID int64, token string) (*model.TrelloBinding, error) {
	var binding model.TrelloBinding
	err := r.db.GetContext(ctx, &binding, `
		INSERT INTO trello_bindings (tg_user_id, token, token_created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (tg_user_id) DO UPDATE SET
			token = EXCLUDED.token,
			token_created_at = EXCLUDED.token_created_at
		RETURNING *
	`, userID, token)
	if err != nil {
		return nil, err
	}
	return &binding, nil
}

func (r *trelloBindingRepo) Delete(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM trello_bindings WHERE tg_user_id = $1`, userID)
	return err
}
