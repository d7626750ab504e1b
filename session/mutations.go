package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/CrowderSoup/collab-board/api"
	"github.com/CrowderSoup/collab-board/board"
	"github.com/CrowderSoup/collab-board/client"
)

// Outcome is how a mutation settled.
type Outcome int

const (
	// Applied: the server accepted the change and its copy was merged.
	Applied Outcome = iota + 1
	// Conflicted: the version was stale; the server's latest copy was
	// adopted in place of the local edit.
	Conflicted
	// RolledBack: the request failed; the pre-mutation snapshot is back.
	RolledBack
	// Rejected: the request failed and nothing had been applied locally.
	Rejected
	// Blocked: the WIP limit of the destination list would be exceeded.
	Blocked
	// NotFound: the target is not in the mirror, or the server no longer
	// has it (after a rollback).
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Conflicted:
		return "conflicted"
	case RolledBack:
		return "rolled_back"
	case Rejected:
		return "rejected"
	case Blocked:
		return "blocked"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

// Result reports a settled mutation. Expected outcomes are never returned
// as Go errors; Err carries the underlying failure, usually a
// *client.Error, for RolledBack, Rejected and server-side NotFound/Blocked.
type Result struct {
	Outcome Outcome
	// Card is the authoritative card after Applied or Conflicted.
	Card *board.Card
	List *board.List
	// FromListID is set by MoveCard.
	FromListID string
	// Limit is set when Outcome is Blocked.
	Limit   int
	Message string
	Err     error
}

// UpdateCard applies patch locally, then asks the server to apply it at the
// version the mirror holds.
func (s *Session) UpdateCard(ctx context.Context, cardID string, patch board.CardPatch) Result {
	s.mu.Lock()
	before := s.snap
	card, ok := before.FindCard(cardID)
	if !s.loaded || !ok {
		s.mu.Unlock()
		return notFound("card", cardID)
	}
	s.snap = board.UpdateCardLocally(before, cardID, patch)
	s.changed()
	s.mu.Unlock()

	latest, err := s.api.UpdateCard(ctx, cardID, card.Version, patch)
	return s.settle(before, &latest, err)
}

// MoveCard moves a card to toListID at toPosition (clamped). Moving a card
// onto its own slot settles immediately without a request.
func (s *Session) MoveCard(ctx context.Context, cardID, toListID string, toPosition int) Result {
	s.mu.Lock()
	before := s.snap
	card, ok := before.FindCard(cardID)
	if !s.loaded || !ok {
		s.mu.Unlock()
		return notFound("card", cardID)
	}
	if card.ListID != toListID {
		if limit, full := wipExceeded(before, toListID, 1); full {
			s.mu.Unlock()
			return blocked(limit, nil)
		}
	}
	next, fromListID := board.MoveCardLocally(before, cardID, toListID, toPosition)
	if moved, _ := next.FindCard(cardID); fromListID == toListID && moved.Position == card.Position {
		s.mu.Unlock()
		return Result{Outcome: Applied, Card: &card, FromListID: fromListID}
	}
	s.snap = next
	s.changed()
	s.mu.Unlock()

	latest, err := s.api.MoveCard(ctx, cardID, toListID, toPosition, card.Version)
	res := s.settle(before, &latest, err)
	res.FromListID = fromListID
	return res
}

// DeleteCard removes a card locally, then on the server.
func (s *Session) DeleteCard(ctx context.Context, cardID string) Result {
	s.mu.Lock()
	before := s.snap
	next, removed := board.DeleteCardLocally(before, cardID)
	if !s.loaded || removed == nil {
		s.mu.Unlock()
		return notFound("card", cardID)
	}
	s.snap = next
	s.changed()
	s.mu.Unlock()

	err := s.api.DeleteCard(ctx, cardID, removed.Version)
	if err == nil {
		return Result{Outcome: Applied, Card: removed}
	}
	return s.settle(before, nil, err)
}

// CreateCard asks the server for a new card and merges the result. Nothing
// is shown before the server assigns the id.
func (s *Session) CreateCard(ctx context.Context, listID string, req api.CreateCardRequest) Result {
	s.mu.Lock()
	snap, loaded := s.snap, s.loaded
	s.mu.Unlock()
	if !loaded {
		return notFound("list", listID)
	}
	if _, ok := snap.List(listID); !ok {
		return notFound("list", listID)
	}
	if limit, full := wipExceeded(snap, listID, 1); full {
		return blocked(limit, nil)
	}

	created, err := s.api.CreateCard(ctx, listID, req)
	if err != nil {
		return rejected(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = board.ApplyLatestCard(s.snap, created)
	s.changed()
	return Result{Outcome: Applied, Card: &created}
}

// CreateList asks the server for a new list and merges it the way a
// LIST_CREATED event would be.
func (s *Session) CreateList(ctx context.Context, req api.CreateListRequest) Result {
	s.mu.Lock()
	boardID, loaded := s.boardID, s.loaded
	s.mu.Unlock()
	if !loaded {
		return notFound("board", boardID)
	}

	created, err := s.api.CreateList(ctx, boardID, req)
	if err != nil {
		return rejected(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = board.ApplyEvent(s.snap, board.Event{BoardID: s.snap.Board.ID, Type: board.ListCreated, List: &created})
	s.changed()
	return Result{Outcome: Applied, List: &created}
}

// DeleteList removes a list and its cards locally, then on the server.
func (s *Session) DeleteList(ctx context.Context, listID string) Result {
	s.mu.Lock()
	before := s.snap
	if _, ok := before.List(listID); !s.loaded || !ok {
		s.mu.Unlock()
		return notFound("list", listID)
	}
	s.snap = board.RemoveListLocally(before, listID)
	s.changed()
	s.mu.Unlock()

	if err := s.api.DeleteList(ctx, listID); err != nil {
		return s.settle(before, nil, err)
	}
	return Result{Outcome: Applied}
}

// settle ends a pending mutation. On success the server's card is merged,
// on a version conflict the server's latest copy is adopted, and on any
// other failure the snapshot taken before the optimistic change is
// restored as is.
func (s *Session) settle(before board.Snapshot, latest *board.Card, err error) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		if latest != nil {
			s.snap = board.ApplyLatestCard(s.snap, *latest)
			s.changed()
		}
		return Result{Outcome: Applied, Card: latest}
	}

	if card, ok := client.AsConflict(err); ok {
		s.snap = board.ApplyLatestCard(s.snap, *card)
		s.changed()
		s.log.Info("adopted server copy after version conflict", "card", card.ID, "version", card.Version)
		return Result{Outcome: Conflicted, Card: card, Message: messageOf(err, "Updated elsewhere"), Err: err}
	}

	s.snap = before
	s.changed()
	s.log.Warn("mutation rolled back", "err", err)

	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case client.KindWIPLimit:
			return blocked(apiErr.Limit, err)
		case client.KindNotFound:
			return Result{Outcome: NotFound, Message: apiErr.Message, Err: err}
		}
	}
	return Result{Outcome: RolledBack, Message: messageOf(err, "Request failed"), Err: err}
}

func wipExceeded(snap board.Snapshot, listID string, incoming int) (int, bool) {
	l, ok := snap.List(listID)
	if !ok || l.WIPLimit == nil {
		return 0, false
	}
	return *l.WIPLimit, len(snap.Cards(listID))+incoming > *l.WIPLimit
}

func notFound(kind, id string) Result {
	return Result{Outcome: NotFound, Message: fmt.Sprintf("%s %s not found", kind, id)}
}

func blocked(limit int, err error) Result {
	return Result{Outcome: Blocked, Limit: limit, Message: fmt.Sprintf("WIP limit reached (limit: %d)", limit), Err: err}
}

func rejected(err error) Result {
	var apiErr *client.Error
	if errors.As(err, &apiErr) && apiErr.Kind == client.KindWIPLimit {
		return blocked(apiErr.Limit, err)
	}
	return Result{Outcome: Rejected, Message: messageOf(err, "Request failed"), Err: err}
}

func messageOf(err error, fallback string) string {
	var apiErr *client.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return fallback
}
