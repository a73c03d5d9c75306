package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trelloplus/bot-server-go/internal/database"
	"github.com/trelloplus/bot-server-go/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByTgID(ctx context.Context, tgID int64) (*model.User, error)
	// FindByTgIDOrID matches either the Telegram id or the primary key.
	FindByTgIDOrID(ctx context.Context, value int64) (*model.User, error)
	// Upsert creates the user on first contact, refreshes the display fields
	// and reactivates it otherwise.
	Upsert(ctx context.Context, params model.UpsertUserParams) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter model.UserFilter, limit int, afterID int64) ([]model.User, error)
	WithTx(tx *sqlx.Tx) UserRepository
}

type userRepo struct {
	db database.DBTX
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepo{db: tx}
}

func (r *userRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM tg_users WHERE id = $1`, id)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByTgID(ctx context.Context, tgID int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM tg_users WHERE tg_id = $1`, tgID)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByTgIDOrID(ctx context.Context, value int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM tg_users
		WHERE tg_id = $1 OR id = $1
		ORDER BY (tg_id = $1) DESC
		LIMIT 1
	`, value)
	return HandleNotFound(&user, err)
}

func (r *userRepo) Upsert(ctx context.Context, params model.UpsertUserParams) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO tg_users (tg_id, username, first_name, last_name, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (tg_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			active = TRUE,
			updated_at = NOW()
		RETURNING *
	`, params.TgID, params.Username, params.FirstName, params.LastName)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tg_users SET
			username = $2,
			first_name = $3,
			last_name = $4,
			active = $5,
			dialog = $6,
			last_active_at = $7,
			updated_at = $8
		WHERE id = $1
	`, user.ID, user.Username, user.FirstName, user.LastName, user.Active, user.Dialog, user.LastActiveAt, time.Now())
	return err
}

func (r *userRepo) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tg_users SET active = $2, updated_at = $3 WHERE id = $1
	`, id, active, time.Now())
	return err
}

func (r *userRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tg_users WHERE id = $1`, id)
	return err
}

func (r *userRepo) List(ctx context.Context, filter model.UserFilter, limit int, afterID int64) ([]model.User, error) {
	var users []model.User
	err := r.db.SelectContext(ctx, &users, `
		SELECT * FROM tg_users
		WHERE id > $1 AND ($2 = FALSE OR active = TRUE)
		ORDER BY id
		LIMIT $3
	`, afterID, filter.ActiveOnly, limit)
	return users, err
}
