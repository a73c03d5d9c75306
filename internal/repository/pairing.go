package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trelloplus/bot-server-go/internal/database"
	"github.com/trelloplus/bot-server-go/internal/model"
)

type PairingTokenRepository interface {
	Create(ctx context.Context, id, token string) (*model.PairingToken, error)
	// FindValid returns the token when it was created after since.
	FindValid(ctx context.Context, id string, since time.Time) (*model.PairingToken, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, id string) (bool, error)
	DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error)
	WithTx(tx *sqlx.Tx) PairingTokenRepository
}

type pairingTokenRepo struct {
	db database.DBTX
}

func NewPairingTokenRepository(db *sqlx.DB) PairingTokenRepository {
	return &pairingTokenRepo{db: db}
}

func (r *pairingTokenRepo) WithTx(tx *sqlx.Tx) PairingTokenRepository {
	return &pairingTokenRepo{db: tx}
}

func (r *pairingTokenRepo) Create(ctx context.Context, id, token string) (*model.PairingToken, error) {
	var pt model.PairingToken
	err := r.db.GetContext(ctx, &pt, `
		INSERT INTO pairing_tokens (id, token)
		VALUES ($1, $2)
		RETURNING *
	`, id, token)
	if err != nil {
		return nil, err
	}
	return &pt, nil
}

func (r *pairingTokenRepo) FindValid(ctx context.Context, id string, since time.Time) (*model.PairingToken, error) {
	var pt model.PairingToken
	err := r.db.GetContext(ctx, &pt, `
		SELECT * FROM pairing_tokens
		WHERE id = $1 AND created_at > $2
		FOR UPDATE
	`, id, since)
	return HandleNotFound(&pt, err)
}

func (r *pairingTokenRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM pairing_tokens WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *pairingTokenRepo) DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_tokens
		WHERE created_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
