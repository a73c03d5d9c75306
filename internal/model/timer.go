package model

import "time"

type Timer struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"tg_user_id" json:"userId"`
	BoardID   string    `db:"board_id" json:"boardId"`
	ListID    string    `db:"list_id" json:"listId"`
	CardID    string    `db:"card_id" json:"cardId"`
	MessageID int64     `db:"message_id" json:"messageId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type CreateTimerParams struct {
	UserID    int64
	BoardID   string
	ListID    string
	CardID    string
	MessageID int64
}
