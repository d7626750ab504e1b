// Package client talks to the board server's request/response API: it loads
// snapshots and issues the version-guarded card and list mutations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/CrowderSoup/collab-board/api"
	"github.com/CrowderSoup/collab-board/board"
)

const defaultTimeout = 15 * time.Second

// Client is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 15s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL (for example
// "http://localhost:3001") authenticating with a bearer token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns a copy of the server address.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c *Client) Token() string { return c.token }

// LoadSnapshot fetches the full state of a board.
func (c *Client) LoadSnapshot(ctx context.Context, boardID string) (board.Snapshot, error) {
	var snap board.Snapshot
	err := c.do(ctx, http.MethodGet, "api/boards/"+url.PathEscape(boardID), nil, &snap)
	return snap, err
}

func (c *Client) ListBoards(ctx context.Context) ([]board.Board, error) {
	var boards []board.Board
	err := c.do(ctx, http.MethodGet, "api/boards", nil, &boards)
	return boards, err
}

func (c *Client) CreateBoard(ctx context.Context, name string) (board.Board, error) {
	var b board.Board
	err := c.do(ctx, http.MethodPost, "api/boards", api.CreateBoardRequest{Name: name}, &b)
	return b, err
}

func (c *Client) CreateList(ctx context.Context, boardID string, req api.CreateListRequest) (board.List, error) {
	var l board.List
	err := c.do(ctx, http.MethodPost, "api/boards/"+url.PathEscape(boardID)+"/lists", req, &l)
	return l, err
}

// DeleteList removes a list and its cards. There is no version check.
func (c *Client) DeleteList(ctx context.Context, listID string) error {
	return c.do(ctx, http.MethodDelete, "api/lists/"+url.PathEscape(listID), nil, nil)
}

func (c *Client) CreateCard(ctx context.Context, listID string, req api.CreateCardRequest) (board.Card, error) {
	var card board.Card
	err := c.do(ctx, http.MethodPost, "api/lists/"+url.PathEscape(listID)+"/cards", req, &card)
	return card, err
}

// UpdateCard applies patch if the card is still at expectedVersion and
// returns the stored card with its new version.
func (c *Client) UpdateCard(ctx context.Context, cardID string, expectedVersion int64, patch board.CardPatch) (board.Card, error) {
	var card board.Card
	req := api.UpdateCardRequest{ExpectedVersion: expectedVersion, CardPatch: patch}
	err := c.do(ctx, http.MethodPatch, "api/cards/"+url.PathEscape(cardID), req, &card)
	return card, err
}

func (c *Client) MoveCard(ctx context.Context, cardID, toListID string, toPosition int, expectedVersion int64) (board.Card, error) {
	var card board.Card
	req := api.MoveCardRequest{ToListID: toListID, ToPosition: toPosition, ExpectedVersion: expectedVersion}
	err := c.do(ctx, http.MethodPost, "api/cards/"+url.PathEscape(cardID)+"/move", req, &card)
	return card, err
}

func (c *Client) DeleteCard(ctx context.Context, cardID string, expectedVersion int64) error {
	req := api.DeleteCardRequest{ExpectedVersion: expectedVersion}
	return c.do(ctx, http.MethodDelete, "api/cards/"+url.PathEscape(cardID), req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return &Error{Kind: KindUnknown, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return &Error{Kind: KindUnknown, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransport, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindUnknown, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	e := &Error{Status: status, Message: http.StatusText(status)}

	if status == http.StatusConflict {
		var conflict api.ConflictResponse
		if json.Unmarshal(raw, &conflict) == nil && conflict.Latest != nil {
			e.Kind = KindConflict
			e.Code = conflict.Code
			e.Message = conflict.Message
			e.Latest = conflict.Latest
			return e
		}
	}

	var body api.Error
	if err := json.Unmarshal(raw, &body); err != nil {
		if msg := string(bytes.TrimSpace(raw)); msg != "" {
			e.Message = msg
		}
	} else {
		e.Code = body.Error
		if body.Message != "" {
			e.Message = body.Message
		}
		e.FieldErrors = body.FieldErrors
	}

	switch {
	case e.Code == api.CodeWIPLimit:
		e.Kind = KindWIPLimit
		if limit, ok := body.Details["limit"].(float64); ok {
			e.Limit = int(limit)
		}
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case status == http.StatusForbidden:
		e.Kind = KindForbidden
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusBadRequest:
		e.Kind = KindValidation
	default:
		e.Kind = KindUnknown
	}
	return e
}
