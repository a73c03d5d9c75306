package model

import "strings"

// DialogState is the resumable conversation position of a user. It is a
// closed set of variants; the persisted column keeps the legacy
// colon-separated encoding produced by EncodeDialog.
type DialogState interface {
	// Name is the first part of the legacy encoding.
	Name() string
	args() []string
}

const (
	dialogSeparator       = ":"
	dialogAwaitingComment = "comment"
)

// DialogIdle means no multi-step conversation is in progress.
type DialogIdle struct{}

func (DialogIdle) Name() string   { return "" }
func (DialogIdle) args() []string { return nil }

// DialogAwaitingComment waits for the text of a comment to post on a card.
type DialogAwaitingComment struct {
	CardID string
}

func (DialogAwaitingComment) Name() string     { return dialogAwaitingComment }
func (d DialogAwaitingComment) args() []string { return []string{d.CardID} }

// DialogUnknown preserves a stored state this build does not recognize.
type DialogUnknown struct {
	StateName string
	Args      []string
}

func (d DialogUnknown) Name() string   { return d.StateName }
func (d DialogUnknown) args() []string { return d.Args }

// ParseDialog translates the legacy string encoding into a DialogState.
func ParseDialog(s string) DialogState {
	if s == "" {
		return DialogIdle{}
	}
	parts := strings.Split(s, dialogSeparator)
	switch parts[0] {
	case dialogAwaitingComment:
		if len(parts) == 2 && parts[1] != "" {
			return DialogAwaitingComment{CardID: parts[1]}
		}
	}
	return DialogUnknown{StateName: parts[0], Args: parts[1:]}
}

// EncodeDialog is the inverse of ParseDialog.
func EncodeDialog(d DialogState) string {
	if d == nil || d.Name() == "" {
		return ""
	}
	return strings.Join(append([]string{d.Name()}, d.args()...), dialogSeparator)
}

func (u *User) DialogState() DialogState {
	return ParseDialog(u.Dialog)
}

func (u *User) SetDialog(d DialogState) {
	u.Dialog = EncodeDialog(d)
}

func (u *User) ResetDialog() {
	u.Dialog = ""
}
