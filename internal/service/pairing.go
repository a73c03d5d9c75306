package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/config"
	"github.com/trelloplus/bot-server-go/internal/repository"
	"github.com/trelloplus/bot-server-go/internal/util"
)

// startPayloadPrefix marks a /start payload that carries a pairing token id.
const startPayloadPrefix = "token:"

// PairingService parks Trello access tokens returned by the authorization
// page until the user opens the bot through the deep link.
type PairingService struct {
	tokens  repository.PairingTokenRepository
	botName string
	now     func() time.Time
}

func NewPairingService(tokens repository.PairingTokenRepository, botName string) *PairingService {
	return &PairingService{
		tokens:  tokens,
		botName: botName,
		now:     time.Now,
	}
}

// Issue stores accessToken and returns the t.me link that redeems it.
func (s *PairingService) Issue(ctx context.Context, accessToken string) (string, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" || len(accessToken) > config.PairingTokenMaxLength {
		return "", fmt.Errorf("invalid access token length %d", len(accessToken))
	}

	id := uuid.NewString()
	if _, err := s.tokens.Create(ctx, id, accessToken); err != nil {
		return "", fmt.Errorf("create pairing token: %w", err)
	}

	log.Info().Str("pairingId", id).Msg("pairing token issued")
	return s.DeepLink(id), nil
}

// DeepLink opens the private chat with the bot and sends /start with the
// encoded pairing id.
func (s *PairingService) DeepLink(id string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", s.botName, url.QueryEscape(EncodeStartPayload(id)))
}

// Redeem returns the access token parked under id and deletes it. Tokens
// older than the pairing TTL are not returned. repo is usually bound to the
// transaction of the update.
func (s *PairingService) Redeem(ctx context.Context, repo repository.PairingTokenRepository, id string) (string, bool, error) {
	pt, err := repo.FindValid(ctx, id, s.now().Add(-config.PairingTokenTTL))
	if err != nil {
		return "", false, fmt.Errorf("find pairing token: %w", err)
	}
	if pt == nil {
		return "", false, nil
	}

	deleted, err := repo.Delete(ctx, id)
	if err != nil {
		return "", false, fmt.Errorf("delete pairing token: %w", err)
	}
	if !deleted {
		return "", false, nil
	}
	return pt.Token, true, nil
}

// PurgeExpired removes tokens nobody redeemed in time.
func (s *PairingService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteCreatedBefore(ctx, s.now().Add(-config.PairingTokenTTL))
}

func EncodeStartPayload(id string) string {
	return util.EncodeURLSafe([]byte(startPayloadPrefix + id))
}

// DecodeStartPayload extracts the pairing id from a /start payload.
func DecodeStartPayload(payload string) (string, bool) {
	data, err := util.DecodeURLSafe(payload)
	if err != nil {
		return "", false
	}
	id, ok := strings.CutPrefix(string(data), startPayloadPrefix)
	if !ok || !util.IsValidUUID(id) {
		return "", false
	}
	return id, true
}
