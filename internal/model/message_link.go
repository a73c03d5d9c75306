package model

import "time"

// MessageLink maps a relayed message back to the one it was copied from.
type MessageLink struct {
	ID                int64     `db:"id" json:"id"`
	ChatID            int64     `db:"chat_id" json:"chatId"`
	OriginalMessageID int64     `db:"original_message_id" json:"originalMessageId"`
	NewChatID         int64     `db:"new_chat_id" json:"newChatId"`
	NewMessageID      int64     `db:"new_message_id" json:"newMessageId"`
	Extra             string    `db:"extra" json:"extra"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
}

type CreateMessageLinkParams struct {
	ChatID            int64
	OriginalMessageID int64
	NewChatID         int64
	NewMessageID      int64
	Extra             string
}
