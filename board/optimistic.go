package board

import (
	"bytes"
	"encoding/json"
	"time"
)

// Nullable is a patch field with three states: the zero value leaves the
// target untouched, Set with a nil Value clears it, Set with a Value
// replaces it. In JSON an absent key is untouched and null clears.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// Value returns a Nullable that replaces the target with v.
func Value[T any](v T) Nullable[T] { return Nullable[T]{Set: true, Value: &v} }

// Null returns a Nullable that clears the target.
func Null[T any]() Nullable[T] { return Nullable[T]{Set: true} }

func (n Nullable[T]) apply(old *T) *T {
	if !n.Set {
		return old
	}
	return n.Value
}

func (n Nullable[T]) IsZero() bool { return !n.Set }

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

// UnmarshalJSON only runs when the key is present, so any call marks the
// field as set.
func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// CardPatch carries the editable fields of a card. Nil pointers and unset
// Nullables leave the current value in place.
type CardPatch struct {
	Title          *string             `json:"title,omitempty"`
	Description    *string             `json:"description,omitempty"`
	Priority       *Priority           `json:"priority,omitempty"`
	DueDate        Nullable[time.Time] `json:"dueDate,omitzero"`
	AssigneeUserID Nullable[string]    `json:"assigneeUserId,omitzero"`
}

// Apply returns c with the patch applied.
func (p CardPatch) Apply(c Card) Card {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Priority != nil {
		c.Priority = *p.Priority
	}
	c.DueDate = p.DueDate.apply(c.DueDate)
	c.AssigneeUserID = p.AssigneeUserID.apply(c.AssigneeUserID)
	return c
}

// UpdateCardLocally applies patch to the card with the given id. The
// snapshot is returned unchanged when the card is unknown.
func UpdateCardLocally(s Snapshot, cardID string, patch CardPatch) Snapshot {
	listID, idx, ok := s.locate(cardID)
	if !ok {
		return s
	}
	cards := s.CardsByListID[listID]
	updated := make([]Card, len(cards))
	copy(updated, cards)
	updated[idx] = patch.Apply(cards[idx])

	next := s.clone()
	next.CardsByListID[listID] = SortByPosition(updated)
	return next
}

// MoveCardLocally moves a card to toListID at toPosition, clamped to the
// destination length, renumbering both lists. It returns the id of the list
// the card left, or "" with s unchanged when the card is unknown.
func MoveCardLocally(s Snapshot, cardID, toListID string, toPosition int) (Snapshot, string) {
	fromListID, idx, ok := s.locate(cardID)
	if !ok {
		return s, ""
	}
	card := s.CardsByListID[fromListID][idx]

	next := s.clone()
	next.CardsByListID[fromListID], _, _ = RemoveByID(next.CardsByListID[fromListID], cardID)

	card.ListID = toListID
	dest := next.CardsByListID[toListID]
	if toListID != fromListID {
		// A stale copy pushed into the destination must not survive the move.
		dest, _, _ = RemoveByID(dest, cardID)
	}
	next.CardsByListID[toListID] = InsertAt(dest, card, toPosition)
	return next, fromListID
}

// DeleteCardLocally removes a card and renumbers the rest of its list. The
// removed card is nil when the id is unknown.
func DeleteCardLocally(s Snapshot, cardID string) (Snapshot, *Card) {
	listID, _, ok := s.locate(cardID)
	if !ok {
		return s, nil
	}
	rest, removed, _ := RemoveByID(s.CardsByListID[listID], cardID)
	next := s.clone()
	next.CardsByListID[listID] = rest
	return next, &removed
}

// RemoveListLocally drops a list and its whole card bucket, renumbering the
// remaining lists.
func RemoveListLocally(s Snapshot, listID string) Snapshot {
	_, hasList := s.List(listID)
	_, hasBucket := s.CardsByListID[listID]
	if !hasList && !hasBucket {
		return s
	}
	next := s.clone()
	next.Lists, _, _ = RemoveByID(next.Lists, listID)
	delete(next.CardsByListID, listID)
	return next
}
