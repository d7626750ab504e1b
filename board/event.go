package board

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names the kind of change a push event describes.
type EventType string

const (
	CardCreated EventType = "CARD_CREATED"
	CardUpdated EventType = "CARD_UPDATED"
	CardMoved   EventType = "CARD_MOVED"
	CardDeleted EventType = "CARD_DELETED"
	ListCreated EventType = "LIST_CREATED"
	ListDeleted EventType = "LIST_DELETED"
)

// Event is one push notification about a change made on a board. Only the
// fields relevant to Type are set.
type Event struct {
	ID      string
	TS      time.Time
	BoardID string
	Type    EventType

	// CARD_CREATED, CARD_UPDATED, CARD_MOVED
	Card *Card
	// CARD_MOVED, CARD_DELETED
	FromListID   string
	FromPosition int
	// CARD_MOVED
	ToListID   string
	ToPosition int
	// CARD_DELETED
	CardID string
	// LIST_CREATED
	List *List
	// LIST_DELETED
	ListID string
}

type envelope struct {
	EventID string          `json:"eventId"`
	TS      time.Time       `json:"ts"`
	BoardID string          `json:"boardId"`
	Type    EventType       `json:"type"`
	Data    json.RawMessage `json:"data"`
}

type cardData struct {
	Card *Card `json:"card"`
}

type cardMovedData struct {
	Card         *Card  `json:"card"`
	FromListID   string `json:"fromListId"`
	FromPosition int    `json:"fromPosition"`
	ToListID     string `json:"toListId"`
	ToPosition   int    `json:"toPosition"`
}

type cardDeletedData struct {
	CardID       string `json:"cardId"`
	FromListID   string `json:"fromListId"`
	FromPosition int    `json:"fromPosition"`
}

type listData struct {
	List *List `json:"list"`
}

type listDeletedData struct {
	ListID string `json:"listId"`
}

// MarshalJSON encodes the event as {eventId, ts, boardId, type, data}.
func (e Event) MarshalJSON() ([]byte, error) {
	var data any
	switch e.Type {
	case CardCreated, CardUpdated:
		data = cardData{Card: e.Card}
	case CardMoved:
		data = cardMovedData{
			Card:         e.Card,
			FromListID:   e.FromListID,
			FromPosition: e.FromPosition,
			ToListID:     e.ToListID,
			ToPosition:   e.ToPosition,
		}
	case CardDeleted:
		data = cardDeletedData{CardID: e.CardID, FromListID: e.FromListID, FromPosition: e.FromPosition}
	case ListCreated:
		data = listData{List: e.List}
	case ListDeleted:
		data = listDeletedData{ListID: e.ListID}
	default:
		data = struct{}{}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		EventID: e.ID,
		TS:      e.TS,
		BoardID: e.BoardID,
		Type:    e.Type,
		Data:    raw,
	})
}

// UnmarshalJSON decodes an envelope. Unknown event types decode without
// error and keep only the envelope fields.
func (e *Event) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	ev := Event{ID: env.EventID, TS: env.TS, BoardID: env.BoardID, Type: env.Type}

	decode := func(v any) error {
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return fmt.Errorf("event %s: missing data", env.Type)
		}
		if err := json.Unmarshal(env.Data, v); err != nil {
			return fmt.Errorf("event %s: %w", env.Type, err)
		}
		return nil
	}

	switch env.Type {
	case CardCreated, CardUpdated:
		var d cardData
		if err := decode(&d); err != nil {
			return err
		}
		if d.Card == nil {
			return fmt.Errorf("event %s: missing card", env.Type)
		}
		ev.Card = d.Card
	case CardMoved:
		var d cardMovedData
		if err := decode(&d); err != nil {
			return err
		}
		if d.Card == nil {
			return fmt.Errorf("event %s: missing card", env.Type)
		}
		ev.Card = d.Card
		ev.FromListID = d.FromListID
		ev.FromPosition = d.FromPosition
		ev.ToListID = d.ToListID
		ev.ToPosition = d.ToPosition
	case CardDeleted:
		var d cardDeletedData
		if err := decode(&d); err != nil {
			return err
		}
		ev.CardID = d.CardID
		ev.FromListID = d.FromListID
		ev.FromPosition = d.FromPosition
	case ListCreated:
		var d listData
		if err := decode(&d); err != nil {
			return err
		}
		if d.List == nil {
			return fmt.Errorf("event %s: missing list", env.Type)
		}
		ev.List = d.List
	case ListDeleted:
		var d listDeletedData
		if err := decode(&d); err != nil {
			return err
		}
		ev.ListID = d.ListID
	}

	*e = ev
	return nil
}
