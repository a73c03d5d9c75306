package model

import (
	"fmt"
	"strings"
	"time"
)

// User is the persisted session of one Telegram user.
type User struct {
	ID           int64      `db:"id" json:"id"`
	TgID         int64      `db:"tg_id" json:"tgId"`
	Username     string     `db:"username" json:"username"`
	FirstName    string     `db:"first_name" json:"firstName"`
	LastName     string     `db:"last_name" json:"lastName"`
	Active       bool       `db:"active" json:"active"`
	Dialog       string     `db:"dialog" json:"dialog"`
	LastActiveAt *time.Time `db:"last_active_at" json:"lastActiveAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

func (u *User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// AdminUsername is @username when set, the display name otherwise.
func (u *User) AdminUsername() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.Name()
}

func (u *User) AdminName() string {
	return fmt.Sprintf("%s (tg_id: %d, id: %d)", u.AdminUsername(), u.TgID, u.ID)
}

// UpsertUserParams carries the display fields refreshed on every update.
type UpsertUserParams struct {
	TgID      int64
	Username  string
	FirstName string
	LastName  string
}

type UserFilter struct {
	ActiveOnly bool
}
