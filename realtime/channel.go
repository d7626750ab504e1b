// Package realtime subscribes to a board's push stream over websocket and
// yields decoded board events.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CrowderSoup/collab-board/board"
)

// DefaultReconnectDelay is the fixed wait between a dropped connection and
// the next attempt.
const DefaultReconnectDelay = 2 * time.Second

// ErrAlreadySubscribed is returned when Subscribe is called for the board
// that already has the active subscription.
var ErrAlreadySubscribed = errors.New("realtime: board already subscribed")

type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusClosed       Status = "closed"
)

// Channel owns at most one active board subscription.
type Channel struct {
	baseURL *url.URL
	token   string

	// ReconnectDelay defaults to DefaultReconnectDelay.
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
	Logger         *slog.Logger
	// OnStatus, if set, is called from the subscription goroutine.
	OnStatus func(boardID string, status Status)

	subscribeMu sync.Mutex
	mu          sync.Mutex
	active      *Subscription
}

// NewChannel creates a channel for the server at baseURL (http or https).
func NewChannel(baseURL *url.URL, token string) *Channel {
	return &Channel{
		baseURL:        baseURL,
		token:          token,
		ReconnectDelay: DefaultReconnectDelay,
		Dialer:         websocket.DefaultDialer,
		Logger:         slog.Default(),
	}
}

// Subscribe opens the push stream of boardID. An active subscription to a
// different board is closed first; subscribing again to the board that is
// already active is a caller error. The subscription ends when ctx is done
// or Close is called.
func (c *Channel) Subscribe(ctx context.Context, boardID string) (*Subscription, error) {
	c.subscribeMu.Lock()
	defer c.subscribeMu.Unlock()

	c.mu.Lock()
	prev := c.active
	if prev != nil && prev.boardID == boardID {
		c.mu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	c.active = nil
	c.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	target, err := c.topicURL(boardID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		boardID: boardID,
		events:  make(chan board.Event, 64),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	c.active = sub
	c.mu.Unlock()

	go c.run(ctx, sub, target)
	return sub, nil
}

func (c *Channel) topicURL(boardID string) (string, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.JoinPath("api", "boards", boardID, "ws").String(), nil
}

func (c *Channel) run(ctx context.Context, sub *Subscription, target string) {
	defer func() {
		c.mu.Lock()
		if c.active == sub {
			c.active = nil
		}
		c.mu.Unlock()
		close(sub.events)
		close(sub.done)
		c.status(sub.boardID, StatusClosed)
	}()

	delay := c.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	for {
		err := c.connectAndRead(ctx, sub, target)
		if ctx.Err() != nil {
			return
		}
		c.Logger.Warn("board stream dropped", "board", sub.boardID, "err", err, "retry_in", delay)
		c.status(sub.boardID, StatusDisconnected)

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}

func (c *Channel) connectAndRead(ctx context.Context, sub *Subscription, target string) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	// ReadMessage does not watch ctx; closing the connection unblocks it.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	c.Logger.Info("board stream connected", "board", sub.boardID)
	c.status(sub.boardID, StatusConnected)

	for {
		mt, p, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		// The server may batch several events into one frame, one per line.
		// A line that fails to decode is dropped alone.
		for _, line := range bytes.Split(p, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			var ev board.Event
			if err := json.Unmarshal(line, &ev); err != nil {
				c.Logger.Error("failed to decode board event", "board", sub.boardID, "err", err)
				continue
			}
			select {
			case sub.events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (c *Channel) status(boardID string, s Status) {
	if c.OnStatus != nil {
		c.OnStatus(boardID, s)
	}
}

// Subscription is a live push stream for one board.
type Subscription struct {
	boardID string
	events  chan board.Event
	cancel  context.CancelFunc
	done    chan struct{}
}

func (s *Subscription) BoardID() string { return s.boardID }

// Events yields events in arrival order. It is closed when the
// subscription ends. Nothing missed while disconnected is replayed.
func (s *Subscription) Events() <-chan board.Event { return s.events }

// Done is closed once the subscription has fully stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close stops the subscription and waits for it to wind down. Events not
// yet received are discarded.
func (s *Subscription) Close() {
	s.cancel()
	events := s.events
	for {
		select {
		case <-s.done:
			return
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		}
	}
}
