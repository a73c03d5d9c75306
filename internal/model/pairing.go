package model

import "time"

// PairingToken parks a Trello access token until the user redeems it
// through the bot's /start deep link.
type PairingToken struct {
	ID        string    `db:"id" json:"id"`
	Token     string    `db:"token" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
