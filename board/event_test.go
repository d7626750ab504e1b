package board

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestEventJSONEnvelope(t *testing.T) {
	c := card("c1", "L2", 0)
	ev := Event{
		ID:           "e1",
		TS:           testTime,
		BoardID:      "b1",
		Type:         CardMoved,
		Card:         &c,
		FromListID:   "L1",
		FromPosition: 3,
		ToListID:     "L2",
	}
	raw := mustJSON(t, ev)
	for _, want := range []string{`"eventId":"e1"`, `"boardId":"b1"`, `"type":"CARD_MOVED"`, `"fromListId":"L1"`, `"fromPosition":3`, `"card":{"id":"c1"`} {
		if !strings.Contains(raw, want) {
			t.Errorf("%s missing %s", raw, want)
		}
	}

	var back Event
	if err := json.Unmarshal([]byte(raw), &back); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, ev) {
		t.Errorf("decoded %+v, want %+v", back, ev)
	}
}

func TestEventDecodePayloads(t *testing.T) {
	tests := []struct {
		raw   string
		check func(Event) bool
	}{
		{
			`{"eventId":"e","ts":"2024-05-01T12:00:00Z","boardId":"b1","type":"CARD_DELETED","data":{"cardId":"c1","fromListId":"L1","fromPosition":2}}`,
			func(e Event) bool { return e.CardID == "c1" && e.FromListID == "L1" && e.FromPosition == 2 },
		},
		{
			`{"eventId":"e","ts":"2024-05-01T12:00:00Z","boardId":"b1","type":"LIST_CREATED","data":{"list":{"id":"L1","boardId":"b1","name":"N","position":0,"wipLimit":2}}}`,
			func(e Event) bool { return e.List != nil && e.List.ID == "L1" && *e.List.WIPLimit == 2 },
		},
		{
			`{"eventId":"e","ts":"2024-05-01T12:00:00Z","boardId":"b1","type":"LIST_DELETED","data":{"listId":"L1"}}`,
			func(e Event) bool { return e.ListID == "L1" },
		},
		{
			`{"eventId":"e","ts":"2024-05-01T12:00:00Z","boardId":"b1","type":"BOARD_RENAMED","data":{"name":"x"}}`,
			func(e Event) bool { return e.Type == "BOARD_RENAMED" && e.BoardID == "b1" && e.Card == nil },
		},
	}
	for _, tt := range tests {
		var ev Event
		if err := json.Unmarshal([]byte(tt.raw), &ev); err != nil {
			t.Errorf("%s: %v", tt.raw, err)
			continue
		}
		if !tt.check(ev) {
			t.Errorf("%s decoded to %+v", tt.raw, ev)
		}
	}
}

func TestEventDecodeRejectsMissingCard(t *testing.T) {
	var ev Event
	err := json.Unmarshal([]byte(`{"eventId":"e","boardId":"b1","type":"CARD_CREATED","data":{}}`), &ev)
	if err == nil {
		t.Fatal("expected error")
	}
}
