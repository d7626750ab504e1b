// Package session keeps the live mirror of the board a user has open. It
// loads the snapshot, folds push events into it and runs local edits
// through the optimistic apply / confirm / roll back cycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/CrowderSoup/collab-board/api"
	"github.com/CrowderSoup/collab-board/board"
	"github.com/CrowderSoup/collab-board/realtime"
)

// API is the request/response side of the board server. *client.Client
// implements it.
type API interface {
	LoadSnapshot(ctx context.Context, boardID string) (board.Snapshot, error)
	CreateCard(ctx context.Context, listID string, req api.CreateCardRequest) (board.Card, error)
	UpdateCard(ctx context.Context, cardID string, expectedVersion int64, patch board.CardPatch) (board.Card, error)
	MoveCard(ctx context.Context, cardID, toListID string, toPosition int, expectedVersion int64) (board.Card, error)
	DeleteCard(ctx context.Context, cardID string, expectedVersion int64) error
	CreateList(ctx context.Context, boardID string, req api.CreateListRequest) (board.List, error)
	DeleteList(ctx context.Context, listID string) error
}

// Stream is a live push subscription for one board.
type Stream interface {
	Events() <-chan board.Event
	Close()
}

type Subscriber interface {
	Subscribe(ctx context.Context, boardID string) (Stream, error)
}

type channelSubscriber struct{ ch *realtime.Channel }

func (c channelSubscriber) Subscribe(ctx context.Context, boardID string) (Stream, error) {
	sub, err := c.ch.Subscribe(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Realtime adapts a websocket channel to a Subscriber.
func Realtime(ch *realtime.Channel) Subscriber { return channelSubscriber{ch: ch} }

var ErrNotOpen = errors.New("session: no board open")

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithOnChange registers a callback that receives every new snapshot. It
// runs with the session lock held and must not call back into the session.
func WithOnChange(fn func(board.Snapshot)) Option {
	return func(s *Session) { s.onChange = fn }
}

// Session holds the single state slot for the open board. All reads and
// writes of the slot are serialised; network round trips run outside the
// lock, so push events may land while a mutation is pending and whichever
// change is applied last wins.
type Session struct {
	api      API
	subs     Subscriber
	log      *slog.Logger
	onChange func(board.Snapshot)

	mu      sync.Mutex
	boardID string
	snap    board.Snapshot
	loaded  bool

	stream   Stream
	pumpDone chan struct{}
}

// New creates a session. subs may be nil, in which case no push events are
// received and the mirror only changes through this session's own calls.
func New(a API, subs Subscriber, opts ...Option) *Session {
	s := &Session{api: a, subs: subs, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open switches the session to boardID: it tears down the previous
// subscription, subscribes to the new board and loads its snapshot. Events
// that arrive before the load completes are dropped, and events missed
// while the stream is reconnecting are only recovered by Reload.
//
// Results of calls still in flight for the previous board are not fenced
// off; callers must not issue mutations across a board switch.
func (s *Session) Open(ctx context.Context, boardID string) error {
	s.Close()

	s.mu.Lock()
	s.boardID = boardID
	s.snap = board.Snapshot{}
	s.loaded = false
	s.mu.Unlock()

	if s.subs != nil {
		stream, err := s.subs.Subscribe(ctx, boardID)
		if err != nil {
			return fmt.Errorf("failed to subscribe to board %s: %w", boardID, err)
		}
		done := make(chan struct{})
		s.mu.Lock()
		s.stream = stream
		s.pumpDone = done
		s.mu.Unlock()
		go s.pump(stream, done)
	}

	return s.Reload(ctx)
}

// Reload replaces the mirror with a fresh snapshot from the server.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	boardID := s.boardID
	s.mu.Unlock()
	if boardID == "" {
		return ErrNotOpen
	}

	snap, err := s.api.LoadSnapshot(ctx, boardID)
	if err != nil {
		return fmt.Errorf("failed to load board %s: %w", boardID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.loaded = true
	s.changed()
	s.log.Info("board loaded", "board", boardID, "lists", len(snap.Lists))
	return nil
}

// Close ends the push subscription, if any. The last snapshot stays
// readable.
func (s *Session) Close() {
	s.mu.Lock()
	stream, done := s.stream, s.pumpDone
	s.stream, s.pumpDone = nil, nil
	s.mu.Unlock()

	if stream != nil {
		stream.Close()
		<-done
	}
}

func (s *Session) pump(stream Stream, done chan struct{}) {
	defer close(done)
	for ev := range stream.Events() {
		s.ApplyEvent(ev)
	}
}

// ApplyEvent folds one push event into the mirror. It is dropped if no
// snapshot has been loaded yet.
func (s *Session) ApplyEvent(ev board.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.log.Debug("dropping event before snapshot load", "board", ev.BoardID, "type", ev.Type, "event", ev.ID)
		return
	}
	s.snap = board.ApplyEvent(s.snap, ev)
	s.changed()
}

// Snapshot returns the current mirror and whether it has been loaded. The
// value must be treated as read-only.
func (s *Session) Snapshot() (board.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.loaded
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange(s.snap)
	}
}
