package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDialog(t *testing.T) {
	tests := []struct {
		name     string
		legacy   string
		expected DialogState
	}{
		{"empty string is idle", "", DialogIdle{}},
		{"awaiting comment", "comment:5a1b2c", DialogAwaitingComment{CardID: "5a1b2c"}},
		{"awaiting comment without card", "comment", DialogUnknown{StateName: "comment", Args: []string{}}},
		{"unknown state keeps parts", "survey:2:yes", DialogUnknown{StateName: "survey", Args: []string{"2", "yes"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseDialog(tc.legacy))
		})
	}
}

func TestEncodeDialog(t *testing.T) {
	for _, legacy := range []string{"", "comment:5a1b2c", "survey:2:yes", "legacy"} {
		t.Run(legacy, func(t *testing.T) {
			assert.Equal(t, legacy, EncodeDialog(ParseDialog(legacy)))
		})
	}

	t.Run("nil encodes as idle", func(t *testing.T) {
		assert.Equal(t, "", EncodeDialog(nil))
	})
}

func TestUserDialog(t *testing.T) {
	u := &User{}
	assert.Equal(t, DialogIdle{}, u.DialogState())

	u.SetDialog(DialogAwaitingComment{CardID: "c1"})
	assert.Equal(t, "comment:c1", u.Dialog)
	assert.Equal(t, DialogAwaitingComment{CardID: "c1"}, u.DialogState())

	u.ResetDialog()
	assert.Equal(t, DialogIdle{}, u.DialogState())
}

func TestUserNames(t *testing.T) {
	u := &User{ID: 7, TgID: 1001, FirstName: "Ada", LastName: "Lovelace"}
	assert.Equal(t, "Ada Lovelace", u.Name())
	assert.Equal(t, "Ada Lovelace (tg_id: 1001, id: 7)", u.AdminName())

	u.Username = "ada"
	assert.Equal(t, "@ada", u.AdminUsername())
}
