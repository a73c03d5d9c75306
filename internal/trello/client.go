// Package trello is a thin REST client for the Trello endpoints the bot uses.
package trello

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL   = "https://api.trello.com/1"
	DefaultAuthURL   = "https://trello.com/1/authorize"
	requestTimeout   = 15 * time.Second
	maxErrorBodySize = 512
)

// ErrUnauthorized means the user token was revoked or has expired.
var ErrUnauthorized = errors.New("trello: unauthorized")

// ErrNotFound means the board, list or card was deleted or never existed.
var ErrNotFound = errors.New("trello: not found")

type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type List struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IDBoard string `json:"idBoard"`
}

type Card struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Desc    string `json:"desc"`
	URL     string `json:"url"`
	IDBoard string `json:"idBoard"`
	IDList  string `json:"idList"`
}

type Client struct {
	client  *http.Client
	key     string
	appName string
	baseURL string
	authURL string
}

func NewClient(key, appName string) *Client {
	return &Client{
		client:  &http.Client{Timeout: requestTimeout},
		key:     key,
		appName: appName,
		baseURL: DefaultBaseURL,
		authURL: DefaultAuthURL,
	}
}

// WithBaseURL points the client at another API root, e.g. a test server.
func (c *Client) WithBaseURL(baseURL string) *Client {
	clone := *c
	clone.baseURL = strings.TrimRight(baseURL, "/")
	return &clone
}

// AuthorizationURL is the page where a user grants the bot a never-expiring
// read/write token. Trello appends the token to returnURL as a #token fragment.
func (c *Client) AuthorizationURL(returnURL string) string {
	q := url.Values{}
	q.Set("key", c.key)
	q.Set("name", c.appName)
	q.Set("expiration", "never")
	q.Set("response_type", "token")
	q.Set("scope", "read,write")
	q.Set("return_url", returnURL)
	return c.authURL + "?" + q.Encode()
}

func (c *Client) Boards(ctx context.Context, token string) ([]Board, error) {
	var boards []Board
	err := c.do(ctx, http.MethodGet, token, "/members/me/boards", url.Values{"filter": {"open"}}, &boards)
	return boards, err
}

func (c *Client) Board(ctx context.Context, token, boardID string) (*Board, error) {
	var board Board
	if err := c.do(ctx, http.MethodGet, token, "/boards/"+url.PathEscape(boardID), nil, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

func (c *Client) Lists(ctx context.Context, token, boardID string) ([]List, error) {
	var lists []List
	err := c.do(ctx, http.MethodGet, token, "/boards/"+url.PathEscape(boardID)+"/lists", url.Values{"filter": {"open"}}, &lists)
	return lists, err
}

func (c *Client) List(ctx context.Context, token, listID string) (*List, error) {
	var list List
	if err := c.do(ctx, http.MethodGet, token, "/lists/"+url.PathEscape(listID), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) Cards(ctx context.Context, token, listID string) ([]Card, error) {
	var cards []Card
	err := c.do(ctx, http.MethodGet, token, "/lists/"+url.PathEscape(listID)+"/cards", nil, &cards)
	return cards, err
}

func (c *Client) Card(ctx context.Context, token, cardID string) (*Card, error) {
	var card Card
	if err := c.do(ctx, http.MethodGet, token, "/cards/"+url.PathEscape(cardID), nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *Client) AddComment(ctx context.Context, token, cardID, text string) error {
	return c.do(ctx, http.MethodPost, token, "/cards/"+url.PathEscape(cardID)+"/actions/comments", url.Values{"text": {text}}, nil)
}

func (c *Client) do(ctx context.Context, method, token, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("key", c.key)
	query.Set("token", token)

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("trello %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return fmt.Errorf("trello %s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		log.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msg("trello request failed")
		return fmt.Errorf("trello %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Dur("elapsed", time.Since(start)).
		Msg("trello request")

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode trello response: %w", err)
	}
	return nil
}
