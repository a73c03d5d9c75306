package model

import "time"

// TrelloBinding holds the long-lived Trello access token of a user.
type TrelloBinding struct {
	UserID         int64     `db:"tg_user_id" json:"userId"`
	Token          string    `db:"token" json:"-"`
	TokenCreatedAt time.Time `db:"token_created_at" json:"tokenCreatedAt"`
}
