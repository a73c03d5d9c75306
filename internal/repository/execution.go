package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/trelloplus/bot-server-go/internal/database"
	"github.com/trelloplus/bot-server-go/internal/model"
)

type ExecutionRepository interface {
	Create(ctx context.Context, params model.CreateExecutionParams) (*model.Execution, error)
	List(ctx context.Context, filter model.ExecutionFilter, limit, offset int) ([]model.Execution, error)
	Count(ctx context.Context, filter model.ExecutionFilter) (int, error)
	// FindLastPrivate returns the newest private-chat message of a user.
	FindLastPrivate(ctx context.Context, fromTgID int64) (*model.Execution, error)
	WithTx(tx *sqlx.Tx) ExecutionRepository
}

type executionRepo struct {
	db database.DBTX
	// tx is set when db is a transaction shared with the handler's writes.
	tx bool
}

func NewExecutionRepository(db *sqlx.DB) ExecutionRepository {
	return &executionRepo{db: db}
}

func (r *executionRepo) WithTx(tx *sqlx.Tx) ExecutionRepository {
	return &executionRepo{db: tx, tx: true}
}

const executionSavepoint = "record_execution"

// Create inside a transaction runs under a savepoint, so a failed insert
// leaves the rest of the transaction usable.
func (r *executionRepo) Create(ctx context.Context, params model.CreateExecutionParams) (*model.Execution, error) {
	if !r.tx {
		return r.insert(ctx, params)
	}
	if _, err := r.db.ExecContext(ctx, "SAVEPOINT "+executionSavepoint); err != nil {
		return nil, fmt.Errorf("savepoint: %w", err)
	}
	exec, err := r.insert(ctx, params)
	if err != nil {
		if _, rbErr := r.db.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+executionSavepoint); rbErr != nil {
			return nil, errors.Join(err, fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, "RELEASE SAVEPOINT "+executionSavepoint); err != nil {
		return nil, fmt.Errorf("release savepoint: %w", err)
	}
	return exec, nil
}

func (r *executionRepo) insert(ctx context.Context, params model.CreateExecutionParams) (*model.Execution, error) {
	var exec model.Execution
	err := r.db.GetContext(ctx, &exec, `
		INSERT INTO tg_messages (
			tg_user_id, tg_chat_id, tg_id, from_tg_id, message_id, chat_type,
			requests_made, fnc, result, text, message, date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING *
	`, params.UserID, params.ChatID, params.TgID, params.FromTgID, params.MessageID, params.ChatType,
		params.RequestsMade, params.Fnc, params.Result, params.Text, params.Message, params.Date)
	if err != nil {
		return nil, err
	}
	return &exec, nil
}

const executionFilterClause = `
	($1 = 0 OR tg_id = $1)
	AND ($2 = '' OR fnc = $2)
	AND ($3 = '' OR result LIKE $3 || '%')
	AND ($4 = '' OR chat_type = $4)
`

func (r *executionRepo) List(ctx context.Context, filter model.ExecutionFilter, limit, offset int) ([]model.Execution, error) {
	var execs []model.Execution
	err := r.db.SelectContext(ctx, &execs, `
		SELECT * FROM tg_messages
		WHERE `+executionFilterClause+`
		ORDER BY created_at DESC, id DESC
		LIMIT $5 OFFSET $6
	`, filter.TgID, filter.Fnc, filter.Result, filter.ChatType, limit, offset)
	return execs, err
}

func (r *executionRepo) Count(ctx context.Context, filter model.ExecutionFilter) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM tg_messages
		WHERE `+executionFilterClause,
		filter.TgID, filter.Fnc, filter.Result, filter.ChatType)
	return count, err
}

func (r *executionRepo) FindLastPrivate(ctx context.Context, fromTgID int64) (*model.Execution, error) {
	var exec model.Execution
	err := r.db.GetContext(ctx, &exec, `
		SELECT * FROM tg_messages
		WHERE from_tg_id = $1 AND chat_type = $2
		ORDER BY id DESC
		LIMIT 1
	`, fromTgID, model.ChatTypePrivate)
	return HandleNotFound(&exec, err)
}
