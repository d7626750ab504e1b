package board

import (
	"reflect"
	"testing"
)

func cardEvent(typ EventType, c Card) Event {
	return Event{ID: "e1", TS: testTime, BoardID: "b1", Type: typ, Card: &c}
}

func TestApplyEventIdempotent(t *testing.T) {
	base := fixture([]string{"L1", "L2"}, map[string][]string{"L1": {"c1", "c2", "c3"}, "L2": {"c4"}})

	updated := card("c2", "L1", 1)
	updated.Title = "edited"
	updated.Version = 2
	moved := card("c1", "L2", 0)
	moved.Version = 2
	newList := List{ID: "L3", BoardID: "b1", Name: "New", Position: 2}

	events := map[string]Event{
		"created": cardEvent(CardCreated, card("c9", "L2", 1)),
		"updated": cardEvent(CardUpdated, updated),
		"moved": func() Event {
			ev := cardEvent(CardMoved, moved)
			ev.FromListID = "L1"
			ev.FromPosition = 0
			ev.ToListID = "L2"
			return ev
		}(),
		"deleted":      {BoardID: "b1", Type: CardDeleted, CardID: "c3", FromListID: "L1", FromPosition: 2},
		"list created": {BoardID: "b1", Type: ListCreated, List: &newList},
		"list deleted": {BoardID: "b1", Type: ListDeleted, ListID: "L2"},
	}

	for name, ev := range events {
		t.Run(name, func(t *testing.T) {
			once := ApplyEvent(base, ev)
			twice := ApplyEvent(once, ev)
			if mustJSON(t, once) != mustJSON(t, twice) {
				t.Errorf("not idempotent:\nonce  %s\ntwice %s", mustJSON(t, once), mustJSON(t, twice))
			}
			assertDense(t, once)
		})
	}
}

func TestApplyEventIgnoresOtherBoards(t *testing.T) {
	base := fixture([]string{"L1"}, map[string][]string{"L1": {"c1"}})
	for _, typ := range []EventType{CardCreated, CardUpdated, CardMoved} {
		ev := cardEvent(typ, card("c2", "L1", 0))
		ev.BoardID = "other"
		ev.FromListID = "L1"
		if got := ApplyEvent(base, ev); !reflect.DeepEqual(got, base) {
			t.Errorf("%s from another board changed the snapshot", typ)
		}
	}
	ev := Event{BoardID: "other", Type: ListDeleted, ListID: "L1"}
	if got := ApplyEvent(base, ev); !reflect.DeepEqual(got, base) {
		t.Error("LIST_DELETED from another board changed the snapshot")
	}
}

func TestApplyEventUnknownType(t *testing.T) {
	base := fixture([]string{"L1"}, map[string][]string{"L1": {"c1"}})
	got := ApplyEvent(base, Event{BoardID: "b1", Type: "BOARD_RENAMED"})
	if !reflect.DeepEqual(got, base) {
		t.Error("unknown event changed the snapshot")
	}
}

func TestApplyEventCardCreatedTwiceIsByteEqual(t *testing.T) {
	base := fixture([]string{"L1"}, map[string][]string{"L1": {"c1", "c2"}})
	existing := base.CardsByListID["L1"][1]
	ev := cardEvent(CardCreated, existing)

	first := ApplyEvent(base, ev)
	second := ApplyEvent(first, ev)
	if mustJSON(t, base) != mustJSON(t, first) || mustJSON(t, first) != mustJSON(t, second) {
		t.Errorf("snapshots differ:\n%s\n%s\n%s", mustJSON(t, base), mustJSON(t, first), mustJSON(t, second))
	}
}

func TestApplyEventCardCreated(t *testing.T) {
	base := fixture([]string{"L1"}, map[string][]string{"L1": {"c1", "c2"}})

	got := ApplyEvent(base, cardEvent(CardCreated, card("c3", "L1", 2)))
	assertIDs(t, got, "L1", "c1", "c2", "c3")
	assertIDs(t, base, "L1", "c1", "c2")

	// A card for a list the mirror has no bucket for yet still lands.
	got = ApplyEvent(base, cardEvent(CardCreated, card("c4", "L9", 0)))
	assertIDs(t, got, "L9", "c4")
}

func TestApplyEventCardUpdatedReplaces(t *testing.T) {
	base := fixture([]string{"L1"}, map[string][]string{"L1": {"c1", "c2"}})
	c := card("c1", "L1", 0)
	c.Title = "renamed"
	c.Version = 7

	got := ApplyEvent(base, cardEvent(CardUpdated, c))
	assertIDs(t, got, "L1", "c1", "c2")
	if g, _ := got.FindCard("c1"); g.Title != "renamed" || g.Version != 7 {
		t.Errorf("c1 = %+v", g)
	}
	if g, _ := base.FindCard("c1"); g.Title == "renamed" {
		t.Error("input snapshot modified")
	}
}

func TestApplyEventCardMoved(t *testing.T) {
	base := fixture([]string{"L1", "L2"}, map[string][]string{"L1": {"c1", "c2", "c3"}, "L2": {"c4"}})

	t.Run("across lists", func(t *testing.T) {
		ev := cardEvent(CardMoved, card("c2", "L2", 0))
		ev.FromListID = "L1"
		got := ApplyEvent(base, ev)
		assertIDs(t, got, "L1", "c1", "c3")
		assertIDs(t, got, "L2", "c2", "c4")
		assertDense(t, got)
	})
	t.Run("within list", func(t *testing.T) {
		ev := cardEvent(CardMoved, card("c1", "L1", 2))
		ev.FromListID = "L1"
		got := ApplyEvent(base, ev)
		assertIDs(t, got, "L1", "c2", "c3", "c1")
		assertDense(t, got)
	})
}

func TestApplyEventCardDeleted(t *testing.T) {
	base := fixture([]string{"L1"}, map[string][]string{"L1": {"c1", "c2", "c3"}})

	got := ApplyEvent(base, Event{BoardID: "b1", Type: CardDeleted, CardID: "c1", FromListID: "L1"})
	assertIDs(t, got, "L1", "c2", "c3")
	assertDense(t, got)

	unchanged := ApplyEvent(base, Event{BoardID: "b1", Type: CardDeleted, CardID: "c1", FromListID: "L7"})
	if !reflect.DeepEqual(unchanged, base) {
		t.Error("delete from unknown list changed the snapshot")
	}
}

func TestApplyEventListLifecycle(t *testing.T) {
	base := fixture([]string{"L1", "L2"}, map[string][]string{"L1": {"c1"}, "L2": {"c2"}})

	front := List{ID: "L0", BoardID: "b1", Name: "Inbox", Position: 0}
	got := ApplyEvent(base, Event{BoardID: "b1", Type: ListCreated, List: &front})
	if len(got.Lists) != 3 || got.Lists[0].ID != "L0" {
		t.Fatalf("lists = %+v", got.Lists)
	}
	if b, ok := got.CardsByListID["L0"]; !ok || len(b) != 0 {
		t.Errorf("L0 bucket = %#v", b)
	}
	assertDense(t, got)

	renamed := List{ID: "L1", BoardID: "b1", Name: "Renamed", Position: 1}
	got = ApplyEvent(got, Event{BoardID: "b1", Type: ListCreated, List: &renamed})
	if l, _ := got.List("L1"); l.Name != "Renamed" {
		t.Errorf("L1 = %+v", l)
	}
	assertIDs(t, got, "L1", "c1")

	got = ApplyEvent(got, Event{BoardID: "b1", Type: ListDeleted, ListID: "L1"})
	if _, ok := got.List("L1"); ok {
		t.Error("L1 still listed")
	}
	if _, ok := got.CardsByListID["L1"]; ok {
		t.Error("L1 bucket still present")
	}
	assertDense(t, got)
}
