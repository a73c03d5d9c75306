package model

import "time"

// Chat is the persisted session of a group chat the bot is a member of.
type Chat struct {
	ID        int64     `db:"id" json:"id"`
	TgID      int64     `db:"tg_id" json:"tgId"`
	Type      ChatType  `db:"type" json:"type"`
	Title     string    `db:"title" json:"title"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type UpsertChatParams struct {
	TgID  int64
	Type  ChatType
	Title string
}
