package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/CrowderSoup/collab-board/board"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func receive(t *testing.T, c *Client) board.Event {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var ev board.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("decode %s: %v", msg, err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
	return board.Event{}
}

func TestHubRoutesByBoard(t *testing.T) {
	hub, _ := startHub(t)

	alice := NewClient(hub, nil, "alice", "b1")
	bob := NewClient(hub, nil, "bob", "b1")
	carol := NewClient(hub, nil, "carol", "b2")
	hub.Register(alice)
	hub.Register(bob)
	hub.Register(carol)

	hub.Publish(board.Event{ID: "e1", BoardID: "b1", Type: board.ListDeleted, ListID: "l1"})
	hub.Publish(board.Event{ID: "e2", BoardID: "b2", Type: board.ListDeleted, ListID: "l2"})

	for _, c := range []*Client{alice, bob} {
		if ev := receive(t, c); ev.ID != "e1" || ev.ListID != "l1" {
			t.Errorf("%s got %+v", c.UserID, ev)
		}
	}
	if ev := receive(t, carol); ev.ID != "e2" {
		t.Errorf("carol got %+v", ev)
	}

	select {
	case msg := <-carol.Send:
		t.Errorf("carol got a second message: %s", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub, _ := startHub(t)

	c := NewClient(hub, nil, "alice", "b1")
	hub.Register(c)
	hub.Unregister(c)
	// A second unregister is harmless.
	hub.Unregister(c)

	select {
	case _, ok := <-c.Send:
		if ok {
			t.Error("unexpected message")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}

	hub.Publish(board.Event{ID: "e1", BoardID: "b1", Type: board.ListDeleted, ListID: "l1"})
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub, cancel := startHub(t)

	c := NewClient(hub, nil, "alice", "b1")
	hub.Register(c)
	cancel()

	select {
	case _, ok := <-c.Send:
		if ok {
			t.Error("unexpected message")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed on shutdown")
	}

	// After shutdown nothing blocks.
	late := NewClient(hub, nil, "bob", "b1")
	hub.Register(late)
	if _, ok := <-late.Send; ok {
		t.Error("late client got a message")
	}
	hub.Publish(board.Event{ID: "e1", BoardID: "b1"})
}
