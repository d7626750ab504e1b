package board

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func card(id, listID string, pos int) Card {
	return Card{
		ID:              id,
		ListID:          listID,
		Title:           "title " + id,
		Position:        pos,
		Version:         1,
		UpdatedAt:       testTime,
		Priority:        PriorityMedium,
		CreatedByUserID: "u1",
	}
}

// fixture builds a board "b1" with the given list ids, in order, and fills
// each bucket with cards named by the map.
func fixture(lists []string, cards map[string][]string) Snapshot {
	s := Snapshot{
		Board:         Board{ID: "b1", Name: "Board"},
		Lists:         []List{},
		CardsByListID: map[string][]Card{},
	}
	for i, id := range lists {
		s.Lists = append(s.Lists, List{ID: id, BoardID: "b1", Name: "list " + id, Position: i})
		bucket := []Card{}
		for j, cid := range cards[id] {
			bucket = append(bucket, card(cid, id, j))
		}
		s.CardsByListID[id] = bucket
	}
	return s
}

func ids(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func assertDense(t *testing.T, s Snapshot) {
	t.Helper()
	for i, l := range s.Lists {
		if l.Position != i {
			t.Errorf("list %s at index %d has position %d", l.ID, i, l.Position)
		}
	}
	for listID, cards := range s.CardsByListID {
		for i, c := range cards {
			if c.Position != i {
				t.Errorf("card %s at index %d of %s has position %d", c.ID, i, listID, c.Position)
			}
			if c.ListID != listID {
				t.Errorf("card %s in bucket %s claims list %s", c.ID, listID, c.ListID)
			}
		}
	}
}

func assertIDs(t *testing.T, s Snapshot, listID string, want ...string) {
	t.Helper()
	got := ids(s.CardsByListID[listID])
	if len(want) == 0 {
		want = []string{}
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("list %s = %v, want %v", listID, got, want)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestSnapshotUnmarshalFillsBuckets(t *testing.T) {
	raw := `{"board":{"id":"b1","name":"B"},"lists":[{"id":"L1","boardId":"b1","name":"Todo","position":0,"wipLimit":null},{"id":"L2","boardId":"b1","name":"Done","position":1,"wipLimit":3}],"cardsByListId":{"L1":[{"id":"c1","listId":"L1","title":"T","description":"","position":0,"version":2,"updatedAt":"2024-05-01T12:00:00Z","priority":"HIGH","dueDate":null,"createdByUserId":"u1","assigneeUserId":null}]}}`

	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := s.CardsByListID["L2"]; got == nil || len(got) != 0 {
		t.Fatalf("L2 bucket = %#v, want empty", got)
	}
	l2, ok := s.List("L2")
	if !ok || l2.WIPLimit == nil || *l2.WIPLimit != 3 {
		t.Fatalf("L2 = %+v", l2)
	}
	c, ok := s.FindCard("c1")
	if !ok || c.Priority != PriorityHigh || c.Version != 2 {
		t.Fatalf("c1 = %+v", c)
	}
}

func TestFindCardIgnoresMapOrder(t *testing.T) {
	s := fixture([]string{"L1", "L2"}, map[string][]string{"L1": {"c1"}, "L2": {"c2"}})
	// A stale duplicate in a later list must never win over the first list.
	s.CardsByListID["L2"] = append(s.CardsByListID["L2"], card("c1", "L2", 1))
	for i := 0; i < 20; i++ {
		c, ok := s.FindCard("c1")
		if !ok || c.ListID != "L1" {
			t.Fatalf("FindCard = %+v, %v", c, ok)
		}
	}
	if _, ok := s.FindCard("nope"); ok {
		t.Fatal("found unknown card")
	}
}

func decodeJSON(raw string, v any) error {
	return json.Unmarshal([]byte(raw), v)
}
