package service

import (
	"context"
	"fmt"

	"github.com/trelloplus/bot-server-go/internal/model"
	"github.com/trelloplus/bot-server-go/internal/repository"
	"github.com/trelloplus/bot-server-go/internal/util"
)

// TrelloTokens stores access tokens encrypted with AES-GCM when an
// encryption key is configured and in plain text otherwise.
type TrelloTokens struct {
	key string
}

func NewTrelloTokens(hexKey string) *TrelloTokens {
	return &TrelloTokens{key: hexKey}
}

// Bind stores token for userID and returns the binding as persisted.
func (t *TrelloTokens) Bind(ctx context.Context, repo repository.TrelloBindingRepository, userID int64, token string) (*model.TrelloBinding, error) {
	stored := token
	if t.key != "" {
		var err error
		if stored, err = util.Encrypt(t.key, token); err != nil {
			return nil, fmt.Errorf("encrypt trello token: %w", err)
		}
	}
	binding, err := repo.Upsert(ctx, userID, stored)
	if err != nil {
		return nil, fmt.Errorf("store trello token: %w", err)
	}
	return binding, nil
}

// Token returns the plain access token of a binding loaded from storage.
func (t *TrelloTokens) Token(binding *model.TrelloBinding) (string, error) {
	if binding == nil {
		return "", fmt.Errorf("no trello binding")
	}
	if !util.IsSealed(binding.Token) {
		return binding.Token, nil
	}
	if t.key == "" {
		return "", fmt.Errorf("trello token is encrypted but no key is configured")
	}
	token, err := util.Decrypt(t.key, binding.Token)
	if err != nil {
		return "", fmt.Errorf("decrypt trello token: %w", err)
	}
	return token, nil
}
