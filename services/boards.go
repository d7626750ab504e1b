package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CrowderSoup/collab-board/board"
	"github.com/CrowderSoup/collab-board/database"
)

// Publisher fans board events out to subscribers. *Hub implements it.
type Publisher interface {
	Publish(ev board.Event)
}

// CardInput carries the fields of a new card.
type CardInput struct {
	Title          string
	Description    string
	Priority       board.Priority
	DueDate        *time.Time
	AssigneeUserID *string
}

// BoardService applies board mutations against the store. Reads need
// membership, list and card changes need OWNER or EDITOR, and managing the
// board itself needs OWNER. Events are published only after the change has
// committed.
type BoardService struct {
	store  database.Store
	events Publisher
	now    func() time.Time
}

func NewBoardService(store database.Store, events Publisher) *BoardService {
	return &BoardService{
		store:  store,
		events: events,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (s *BoardService) publish(boardID string, ev board.Event) {
	ev.ID = uuid.NewString()
	ev.TS = s.now()
	ev.BoardID = boardID
	s.events.Publish(ev)
}

func (s *BoardService) CreateBoard(ctx context.Context, userID, name string) (board.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return board.Board{}, invalid("name", "must not be blank")
	}
	b := board.Board{ID: uuid.NewString(), Name: name}
	if err := s.store.CreateBoard(ctx, b, userID); err != nil {
		return board.Board{}, fmt.Errorf("failed to create board: %w", err)
	}
	log.Printf("Board %s created by %s", b.ID, userID)
	return b, nil
}

func (s *BoardService) ListBoards(ctx context.Context, userID string) ([]board.Board, error) {
	boards, err := s.store.BoardsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	return boards, nil
}

// DeleteBoard is reserved to the board's owner.
func (s *BoardService) DeleteBoard(ctx context.Context, userID, boardID string) error {
	if err := authorize(ctx, s.store, userID, boardID, requireOwner); err != nil {
		return err
	}
	if err := s.store.DeleteBoard(ctx, boardID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return boardNotFound(boardID)
		}
		return fmt.Errorf("failed to delete board: %w", err)
	}
	log.Printf("Board %s deleted by %s", boardID, userID)
	return nil
}

// AddMember grants the user registered under email access to the board
// with role, EDITOR when role is empty. Only the owner may add members and
// nobody can be added as a second owner.
func (s *BoardService) AddMember(ctx context.Context, userID, boardID, email string, role board.Role) error {
	if role == "" {
		role = board.RoleEditor
	}
	if err := validateGrant(role); err != nil {
		return err
	}
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return invalid("email", "must be a valid email address")
	}
	if err := authorize(ctx, s.store, userID, boardID, requireOwner); err != nil {
		return err
	}
	u, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return userNotFound(email)
	}
	if err != nil {
		return err
	}
	return s.store.AddMember(ctx, boardID, u.ID, role)
}

// Members lists everyone with access to the board. Any member may look.
func (s *BoardService) Members(ctx context.Context, userID, boardID string) ([]database.Member, error) {
	if err := s.CheckAccess(ctx, userID, boardID); err != nil {
		return nil, err
	}
	return s.store.Members(ctx, boardID)
}

// Role returns the caller's own role on the board.
func (s *BoardService) Role(ctx context.Context, userID, boardID string) (board.Role, error) {
	if _, err := s.store.Board(ctx, boardID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", boardNotFound(boardID)
		}
		return "", err
	}
	return requireMember(ctx, s.store, boardID, userID)
}

// UpdateMemberRole changes another member's role. The owner can neither
// demote themselves nor hand out OWNER.
func (s *BoardService) UpdateMemberRole(ctx context.Context, userID, boardID, memberID string, role board.Role) error {
	if memberID == userID {
		return invalid("memberId", "owners cannot change their own role")
	}
	if err := validateGrant(role); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx database.Store) error {
		if err := authorize(ctx, tx, userID, boardID, requireOwner); err != nil {
			return err
		}
		current, err := lookupMember(ctx, tx, boardID, memberID)
		if err != nil {
			return err
		}
		if current == board.RoleOwner {
			return invalid("memberId", "the board owner's role cannot be changed")
		}
		return tx.SetMemberRole(ctx, boardID, memberID, role)
	})
}

// RemoveMember revokes another member's access. The owner cannot be
// removed.
func (s *BoardService) RemoveMember(ctx context.Context, userID, boardID, memberID string) error {
	if memberID == userID {
		return invalid("memberId", "owners cannot remove themselves")
	}
	return s.store.WithTx(ctx, func(tx database.Store) error {
		if err := authorize(ctx, tx, userID, boardID, requireOwner); err != nil {
			return err
		}
		current, err := lookupMember(ctx, tx, boardID, memberID)
		if err != nil {
			return err
		}
		if current == board.RoleOwner {
			return invalid("memberId", "the board owner cannot be removed")
		}
		return tx.RemoveMember(ctx, boardID, memberID)
	})
}

// CheckAccess fails with a NotFoundError for an unknown board and a
// ForbiddenError when userID is not a member.
func (s *BoardService) CheckAccess(ctx context.Context, userID, boardID string) error {
	return authorize(ctx, s.store, userID, boardID, requireMember)
}

type roleCheck func(ctx context.Context, store database.Store, boardID, userID string) (board.Role, error)

// authorize fails with a NotFoundError for an unknown board before check
// gets to look at the caller's role.
func authorize(ctx context.Context, store database.Store, userID, boardID string, check roleCheck) error {
	if _, err := store.Board(ctx, boardID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return boardNotFound(boardID)
		}
		return err
	}
	_, err := check(ctx, store, boardID, userID)
	return err
}

// Snapshot returns the board with its lists and every list's cards.
func (s *BoardService) Snapshot(ctx context.Context, userID, boardID string) (board.Snapshot, error) {
	if err := s.CheckAccess(ctx, userID, boardID); err != nil {
		return board.Snapshot{}, err
	}
	return loadSnapshot(ctx, s.store, boardID)
}

func loadSnapshot(ctx context.Context, store database.Store, boardID string) (board.Snapshot, error) {
	b, err := store.Board(ctx, boardID)
	if errors.Is(err, database.ErrNotFound) {
		return board.Snapshot{}, boardNotFound(boardID)
	}
	if err != nil {
		return board.Snapshot{}, err
	}
	lists, err := store.Lists(ctx, boardID)
	if err != nil {
		return board.Snapshot{}, err
	}
	snap := board.Snapshot{Board: b, Lists: lists, CardsByListID: make(map[string][]board.Card, len(lists))}
	for _, l := range lists {
		cards, err := store.Cards(ctx, l.ID)
		if err != nil {
			return board.Snapshot{}, err
		}
		snap.CardsByListID[l.ID] = cards
	}
	return snap, nil
}

func (s *BoardService) CreateList(ctx context.Context, userID, boardID, name string, wipLimit *int) (board.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return board.List{}, invalid("name", "must not be blank")
	}
	if wipLimit != nil && *wipLimit <= 0 {
		return board.List{}, invalid("wipLimit", "must be positive")
	}

	var created board.List
	err := s.store.WithTx(ctx, func(tx database.Store) error {
		if err := authorize(ctx, tx, userID, boardID, requireWrite); err != nil {
			return err
		}
		lists, err := tx.Lists(ctx, boardID)
		if err != nil {
			return err
		}
		created = board.List{ID: uuid.NewString(), BoardID: boardID, Name: name, Position: len(lists), WIPLimit: wipLimit}
		return tx.InsertList(ctx, created)
	})
	if err != nil {
		return board.List{}, err
	}

	s.publish(boardID, board.Event{Type: board.ListCreated, List: &created})
	return created, nil
}

// DeleteList removes a list with all its cards and closes the gap in the
// board's list order.
func (s *BoardService) DeleteList(ctx context.Context, userID, listID string) error {
	var boardID string
	err := s.store.WithTx(ctx, func(tx database.Store) error {
		l, err := lookupList(ctx, tx, listID)
		if err != nil {
			return err
		}
		boardID = l.BoardID
		if _, err := requireWrite(ctx, tx, boardID, userID); err != nil {
			return err
		}
		if err := tx.DeleteList(ctx, listID); err != nil {
			return err
		}
		rest, err := tx.Lists(ctx, boardID)
		if err != nil {
			return err
		}
		return tx.SetListPositions(ctx, board.Renumber(rest))
	})
	if err != nil {
		return err
	}

	s.publish(boardID, board.Event{Type: board.ListDeleted, ListID: listID})
	return nil
}

// CreateCard appends a card to the end of a list.
func (s *BoardService) CreateCard(ctx context.Context, userID, listID string, in CardInput) (board.Card, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return board.Card{}, invalid("title", "must not be blank")
	}
	priority := in.Priority
	if priority == "" {
		priority = board.PriorityMedium
	}
	if !priority.Valid() {
		return board.Card{}, invalid("priority", "must be LOW, MEDIUM or HIGH")
	}

	var (
		created board.Card
		boardID string
	)
	err := s.store.WithTx(ctx, func(tx database.Store) error {
		l, err := lookupList(ctx, tx, listID)
		if err != nil {
			return err
		}
		boardID = l.BoardID
		if _, err := requireWrite(ctx, tx, boardID, userID); err != nil {
			return err
		}
		cards, err := tx.Cards(ctx, listID)
		if err != nil {
			return err
		}
		if l.WIPLimit != nil && len(cards) >= *l.WIPLimit {
			return &WIPLimitError{ListID: listID, Limit: *l.WIPLimit}
		}
		if err := requireUser(ctx, tx, in.AssigneeUserID); err != nil {
			return err
		}

		created = board.Card{
			ID:              uuid.NewString(),
			ListID:          listID,
			Title:           title,
			Description:     strings.TrimSpace(in.Description),
			Position:        len(cards),
			Version:         1,
			UpdatedAt:       s.now(),
			Priority:        priority,
			DueDate:         in.DueDate,
			CreatedByUserID: userID,
			AssigneeUserID:  in.AssigneeUserID,
		}
		return tx.InsertCard(ctx, created)
	})
	if err != nil {
		return board.Card{}, err
	}

	s.publish(boardID, board.Event{Type: board.CardCreated, Card: &created})
	return created, nil
}

// PatchCard applies patch if the card is still at expectedVersion.
func (s *BoardService) PatchCard(ctx context.Context, userID, cardID string, expectedVersion int64, patch board.CardPatch) (board.Card, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return board.Card{}, invalid("title", "must not be blank")
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return board.Card{}, invalid("priority", "must be LOW, MEDIUM or HIGH")
	}

	var (
		updated board.Card
		boardID string
	)
	err := s.store.WithTx(ctx, func(tx database.Store) error {
		c, l, err := lookupCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		boardID = l.BoardID
		if _, err := requireWrite(ctx, tx, boardID, userID); err != nil {
			return err
		}
		if c.Version != expectedVersion {
			return &ConflictError{Latest: c}
		}
		if patch.AssigneeUserID.Set {
			if err := requireUser(ctx, tx, patch.AssigneeUserID.Value); err != nil {
				return err
			}
		}

		updated = patch.Apply(c)
		updated.Title = strings.TrimSpace(updated.Title)
		updated.Description = strings.TrimSpace(updated.Description)
		updated.Version++
		updated.UpdatedAt = s.now()
		return tx.UpdateCard(ctx, updated)
	})
	if err != nil {
		return board.Card{}, err
	}

	s.publish(boardID, board.Event{Type: board.CardUpdated, Card: &updated})
	return updated, nil
}

// MoveCard moves a card within its board. The target position is clamped
// to the destination list; moving a card onto its own slot changes
// nothing and returns it as stored.
func (s *BoardService) MoveCard(ctx context.Context, userID, cardID, toListID string, toPosition int, expectedVersion int64) (board.Card, error) {
	var (
		moved   board.Card
		ev      board.Event
		noop    bool
		boardID string
	)
	err := s.store.WithTx(ctx, func(tx database.Store) error {
		c, from, err := lookupCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		boardID = from.BoardID
		if _, err := requireWrite(ctx, tx, boardID, userID); err != nil {
			return err
		}
		to, err := lookupList(ctx, tx, toListID)
		if err != nil {
			return err
		}
		if to.BoardID != from.BoardID {
			return invalid("toListId", "cannot move cards across boards")
		}
		if c.Version != expectedVersion {
			return &ConflictError{Latest: c}
		}

		fromCards, err := tx.Cards(ctx, from.ID)
		if err != nil {
			return err
		}
		destCards := fromCards
		if to.ID != from.ID {
			if destCards, err = tx.Cards(ctx, to.ID); err != nil {
				return err
			}
			if to.WIPLimit != nil && len(destCards) >= *to.WIPLimit {
				return &WIPLimitError{ListID: to.ID, Limit: *to.WIPLimit}
			}
		}

		fromPos := c.Position
		if to.ID == from.ID {
			pos := clampPosition(toPosition, len(fromCards)-1)
			if pos == fromPos {
				moved, noop = c, true
				return nil
			}
			rest, _, _ := board.RemoveByID(fromCards, cardID)
			c.Version++
			c.UpdatedAt = s.now()
			reordered := board.InsertAt(rest, c, pos)
			if err := tx.SetCardPositions(ctx, reordered); err != nil {
				return err
			}
			moved = reordered[pos]
		} else {
			pos := clampPosition(toPosition, len(destCards))
			rest, _, _ := board.RemoveByID(fromCards, cardID)
			if err := tx.SetCardPositions(ctx, rest); err != nil {
				return err
			}
			c.ListID = to.ID
			c.Version++
			c.UpdatedAt = s.now()
			dest := board.InsertAt(destCards, c, pos)
			if err := tx.SetCardPositions(ctx, dest); err != nil {
				return err
			}
			moved = dest[pos]
		}
		if err := tx.UpdateCard(ctx, moved); err != nil {
			return err
		}
		ev = board.Event{
			Type:         board.CardMoved,
			Card:         &moved,
			FromListID:   from.ID,
			FromPosition: fromPos,
			ToListID:     to.ID,
			ToPosition:   moved.Position,
		}
		return nil
	})
	if err != nil {
		return board.Card{}, err
	}

	if !noop {
		s.publish(boardID, ev)
	}
	return moved, nil
}

// DeleteCard removes a card if it is still at expectedVersion and closes
// the gap in its list.
func (s *BoardService) DeleteCard(ctx context.Context, userID, cardID string, expectedVersion int64) error {
	var (
		ev      board.Event
		boardID string
	)
	err := s.store.WithTx(ctx, func(tx database.Store) error {
		c, l, err := lookupCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		boardID = l.BoardID
		if _, err := requireWrite(ctx, tx, boardID, userID); err != nil {
			return err
		}
		if c.Version != expectedVersion {
			return &ConflictError{Latest: c}
		}
		if err := tx.DeleteCard(ctx, cardID); err != nil {
			return err
		}
		rest, err := tx.Cards(ctx, l.ID)
		if err != nil {
			return err
		}
		if err := tx.SetCardPositions(ctx, board.Renumber(rest)); err != nil {
			return err
		}
		ev = board.Event{Type: board.CardDeleted, CardID: cardID, FromListID: l.ID, FromPosition: c.Position}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(boardID, ev)
	return nil
}

func clampPosition(pos, hi int) int {
	if pos < 0 {
		return 0
	}
	if pos > hi {
		return hi
	}
	return pos
}

func requireMember(ctx context.Context, store database.Store, boardID, userID string) (board.Role, error) {
	role, err := store.MemberRole(ctx, boardID, userID)
	if errors.Is(err, database.ErrNotFound) {
		return "", notMember()
	}
	return role, err
}

// requireWrite lets owners and editors through; viewers only read.
func requireWrite(ctx context.Context, store database.Store, boardID, userID string) (board.Role, error) {
	role, err := requireMember(ctx, store, boardID, userID)
	if err != nil {
		return "", err
	}
	if !role.CanWrite() {
		return "", insufficientRole()
	}
	return role, nil
}

func requireOwner(ctx context.Context, store database.Store, boardID, userID string) (board.Role, error) {
	role, err := requireMember(ctx, store, boardID, userID)
	if err != nil {
		return "", err
	}
	if role != board.RoleOwner {
		return "", ownerRequired()
	}
	return role, nil
}

func lookupMember(ctx context.Context, store database.Store, boardID, userID string) (board.Role, error) {
	role, err := store.MemberRole(ctx, boardID, userID)
	if errors.Is(err, database.ErrNotFound) {
		return "", memberNotFound(userID)
	}
	return role, err
}

// validateGrant accepts the roles an owner may hand out.
func validateGrant(role board.Role) error {
	if role == board.RoleOwner {
		return invalid("role", "OWNER cannot be granted")
	}
	if !role.Valid() {
		return invalid("role", "must be EDITOR or VIEWER")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func requireUser(ctx context.Context, store database.Store, userID *string) error {
	if userID == nil {
		return nil
	}
	if _, err := store.UserByID(ctx, *userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return userNotFound(*userID)
		}
		return err
	}
	return nil
}

func lookupList(ctx context.Context, store database.Store, listID string) (board.List, error) {
	l, err := store.List(ctx, listID)
	if errors.Is(err, database.ErrNotFound) {
		return board.List{}, listNotFound(listID)
	}
	return l, err
}

func lookupCard(ctx context.Context, store database.Store, cardID string) (board.Card, board.List, error) {
	c, err := store.Card(ctx, cardID)
	if errors.Is(err, database.ErrNotFound) {
		return board.Card{}, board.List{}, cardNotFound(cardID)
	}
	if err != nil {
		return board.Card{}, board.List{}, err
	}
	l, err := store.List(ctx, c.ListID)
	if err != nil {
		return board.Card{}, board.List{}, fmt.Errorf("failed to load list of card %s: %w", cardID, err)
	}
	return c, l, nil
}
