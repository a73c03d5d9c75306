package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trelloplus/bot-server-go/internal/database"
	"github.com/trelloplus/bot-server-go/internal/model"
)

type TimerRepository interface {
	FindByCard(ctx context.Context, userID int64, cardID string) (*model.Timer, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Timer, error)
	Create(ctx context.Context, params model.CreateTimerParams) (*model.Timer, error)
	UpdateMessageID(ctx context.Context, id, messageID int64) error
	Delete(ctx context.Context, id int64) error
	WithTx(tx *sqlx.Tx) TimerRepository
}

type timerRepo struct {
	db database.DBTX
}

func NewTimerRepository(db *sqlx.DB) TimerRepository {
	return &timerRepo{db: db}
}

func (r *timerRepo) WithTx(tx *sqlx.Tx) TimerRepository {
	return &timerRepo{db: tx}
}

func (r *timerRepo) FindByCard(ctx context.Context, userID int64, cardID string) (*model.Timer, error) {
	var timer model.Timer
	err := r.db.GetContext(ctx, &timer, `
		SELECT * FROM timers WHERE tg_user_id = $1 AND card_id = $2
		ORDER BY id
		LIMIT 1
	`, userID, cardID)
	return HandleNotFound(&timer, err)
}

func (r *timerRepo) ListByUser(ctx context.Context, userID int64) ([]model.Timer, error) {
	var timers []model.Timer
	err := r.db.SelectContext(ctx, &timers, `
		SELECT * FROM timers WHERE tg_user_id = $1 ORDER BY id
	`, userID)
	return timers, err
}

func (r *timerRepo) Create(ctx context.Context, params model.CreateTimerParams) (*model.Timer, error) {
	var timer model.Timer
	err := r.db.GetContext(ctx, &timer, `
		INSERT INTO timers (tg_user_id, board_id, list_id, card_id, message_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.UserID, params.BoardID, params.ListID, params.CardID, params.MessageID)
	if err != nil {
		return nil, handleDuplicate(err)
	}
	return &timer, nil
}

func (r *timerRepo) UpdateMessageID(ctx context.Context, id, messageID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE timers SET message_id = $2 WHERE id = $1`, id, messageID)
	return err
}

func (r *timerRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM timers WHERE id = $1`, id)
	return err
}
