package model

import "time"

// Execution is the append-only record of one dispatch attempt.
type Execution struct {
	ID           int64     `db:"id" json:"id"`
	UserID       *int64    `db:"tg_user_id" json:"userId,omitempty"`
	ChatID       *int64    `db:"tg_chat_id" json:"chatId,omitempty"`
	TgID         int64     `db:"tg_id" json:"tgId"`
	FromTgID     int64     `db:"from_tg_id" json:"fromTgId"`
	MessageID    int64     `db:"message_id" json:"messageId"`
	ChatType     ChatType  `db:"chat_type" json:"chatType"`
	RequestsMade int       `db:"requests_made" json:"requestsMade"`
	Fnc          string    `db:"fnc" json:"fnc"`
	Result       string    `db:"result" json:"result"`
	Text         string    `db:"text" json:"text"`
	Message      string    `db:"message" json:"message"`
	Date         time.Time `db:"date" json:"date"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type CreateExecutionParams struct {
	UserID       *int64
	ChatID       *int64
	TgID         int64
	FromTgID     int64
	MessageID    int64
	ChatType     ChatType
	RequestsMade int
	Fnc          string
	Result       string
	Text         string
	Message      string
	Date         time.Time
}

// ExecutionFilter narrows the admin listing. Zero values match everything.
type ExecutionFilter struct {
	TgID     int64
	Fnc      string
	Result   string
	ChatType ChatType
}
