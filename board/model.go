// Package board holds the client-side mirror of one collaborative board and
// the pure functions that evolve it: the push-event reducer, the optimistic
// mutators and the conflict resolver. None of them modify their input
// snapshot, so a caller can always keep the previous value as a rollback
// point.
package board

import (
	"encoding/json"
	"sort"
	"time"
)

// Priority of a card.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Role is a member's access level on one board.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleEditor Role = "EDITOR"
	RoleViewer Role = "VIEWER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// CanWrite reports whether members with role r may change lists and cards.
func (r Role) CanWrite() bool { return r == RoleOwner || r == RoleEditor }

// Board represents a shared board that users collaborate on.
type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// List represents an ordered column of cards on a board.
type List struct {
	ID       string `json:"id"`
	BoardID  string `json:"boardId"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	// WIPLimit is nil when the list accepts any number of cards.
	WIPLimit *int `json:"wipLimit"`
}

// Card represents a single work item held in a list. Version increases on
// every server-side change and guards concurrent edits.
type Card struct {
	ID              string     `json:"id"`
	ListID          string     `json:"listId"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Position        int        `json:"position"`
	Version         int64      `json:"version"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Priority        Priority   `json:"priority"`
	DueDate         *time.Time `json:"dueDate"`
	CreatedByUserID string     `json:"createdByUserId"`
	AssigneeUserID  *string    `json:"assigneeUserId"`
}

// Snapshot is the full mirror of one board. Lists are ordered by position
// and every bucket in CardsByListID is ordered by card position.
type Snapshot struct {
	Board         Board             `json:"board"`
	Lists         []List            `json:"lists"`
	CardsByListID map[string][]Card `json:"cardsByListId"`
}

// UnmarshalJSON guarantees a non-nil bucket map and an empty bucket for
// every list, whatever the server left out.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type plain Snapshot
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.CardsByListID == nil {
		p.CardsByListID = make(map[string][]Card)
	}
	if p.Lists == nil {
		p.Lists = []List{}
	}
	for _, l := range p.Lists {
		if p.CardsByListID[l.ID] == nil {
			p.CardsByListID[l.ID] = []Card{}
		}
	}
	*s = Snapshot(p)
	return nil
}

// List returns the list with the given id.
func (s Snapshot) List(listID string) (List, bool) {
	for _, l := range s.Lists {
		if l.ID == listID {
			return l, true
		}
	}
	return List{}, false
}

// Cards returns the bucket of a list. The returned slice is shared with the
// snapshot and must not be modified.
func (s Snapshot) Cards(listID string) []Card {
	return s.CardsByListID[listID]
}

// FindCard scans the buckets in list order and returns the first card with
// the given id.
func (s Snapshot) FindCard(cardID string) (Card, bool) {
	listID, idx, ok := s.locate(cardID)
	if !ok {
		return Card{}, false
	}
	return s.CardsByListID[listID][idx], true
}

func (s Snapshot) locate(cardID string) (string, int, bool) {
	for _, listID := range s.bucketOrder() {
		if idx := indexOf(s.CardsByListID[listID], cardID); idx >= 0 {
			return listID, idx, true
		}
	}
	return "", -1, false
}

// bucketOrder lists bucket keys in board list order, followed by any bucket
// that has no list entry, sorted, so lookups never depend on map order.
func (s Snapshot) bucketOrder() []string {
	keys := make([]string, 0, len(s.CardsByListID))
	seen := make(map[string]bool, len(s.Lists))
	for _, l := range s.Lists {
		if _, ok := s.CardsByListID[l.ID]; ok && !seen[l.ID] {
			keys = append(keys, l.ID)
		}
		seen[l.ID] = true
	}
	var orphans []string
	for id := range s.CardsByListID {
		if !seen[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	return append(keys, orphans...)
}

// clone copies the top-level containers so buckets can be replaced without
// touching the receiver. Buckets themselves are still shared; callers
// replace a bucket slice rather than writing into it.
func (s Snapshot) clone() Snapshot {
	next := Snapshot{
		Board:         s.Board,
		Lists:         make([]List, len(s.Lists)),
		CardsByListID: make(map[string][]Card, len(s.CardsByListID)+1),
	}
	copy(next.Lists, s.Lists)
	for k, v := range s.CardsByListID {
		next.CardsByListID[k] = v
	}
	return next
}
