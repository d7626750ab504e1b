package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CrowderSoup/collab-board/board"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func created(boardID, cardID string) board.Event {
	return board.Event{
		ID:      "e-" + cardID,
		TS:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		BoardID: boardID,
		Type:    board.CardCreated,
		Card:    &board.Card{ID: cardID, ListID: "l1", Title: cardID, Version: 1},
	}
}

func frame(t *testing.T, events ...board.Event) []byte {
	t.Helper()
	parts := make([]string, len(events))
	for i, ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal event: %v", err)
		}
		parts[i] = string(raw)
	}
	return []byte(strings.Join(parts, "\n"))
}

// testServer upgrades every request and hands the connection to serve along
// with its 1-based connection count.
func testServer(t *testing.T, serve func(n int, r *http.Request, conn *websocket.Conn)) *url.URL {
	t.Helper()
	var (
		mu sync.Mutex
		n  int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		mu.Lock()
		n++
		count := n
		mu.Unlock()
		serve(count, r, conn)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

// hold keeps a server connection open until the client goes away.
func hold(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func newTestChannel(u *url.URL) *Channel {
	ch := NewChannel(u, "tok")
	ch.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	ch.ReconnectDelay = 10 * time.Millisecond
	return ch
}

func next(t *testing.T, sub *Subscription) board.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("events closed early")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return board.Event{}
}

func TestSubscribeDecodesBatchedFrames(t *testing.T) {
	var gotPath, gotAuth string
	var mu sync.Mutex
	u := testServer(t, func(n int, r *http.Request, conn *websocket.Conn) {
		mu.Lock()
		gotPath, gotAuth = r.URL.Path, r.Header.Get("Authorization")
		mu.Unlock()
		conn.WriteMessage(websocket.TextMessage, frame(t, created("b1", "c1"), created("b1", "c2")))
		conn.WriteMessage(websocket.TextMessage, frame(t, created("b1", "c3")))
		hold(conn)
	})

	sub, err := newTestChannel(u).Subscribe(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	for _, want := range []string{"c1", "c2", "c3"} {
		ev := next(t, sub)
		if ev.Type != board.CardCreated || ev.Card == nil || ev.Card.ID != want {
			t.Fatalf("event = %+v, want CARD_CREATED %s", ev, want)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/api/boards/b1/ws" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("authorization = %q", gotAuth)
	}
}

func TestSubscribeSkipsUndecodableFrames(t *testing.T) {
	u := testServer(t, func(n int, r *http.Request, conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"eventId":"bad","type":"CARD_CREATED","boardId":"b1"}`))
		conn.WriteMessage(websocket.TextMessage, frame(t, created("b1", "c1")))
		hold(conn)
	})

	sub, err := newTestChannel(u).Subscribe(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if ev := next(t, sub); ev.Card == nil || ev.Card.ID != "c1" {
		t.Fatalf("event = %+v, want c1", ev)
	}
}

func TestSubscribeKeepsGoodEventsAroundBadLine(t *testing.T) {
	bad := `{"eventId":"bad","type":"CARD_CREATED","boardId":"b1"}`
	good1 := string(frame(t, created("b1", "c1")))
	good2 := string(frame(t, created("b1", "c2")))
	u := testServer(t, func(n int, r *http.Request, conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(good1+"\n"+bad+"\n\n"+good2+"\n"))
		hold(conn)
	})

	sub, err := newTestChannel(u).Subscribe(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	for _, want := range []string{"c1", "c2"} {
		if ev := next(t, sub); ev.Card == nil || ev.Card.ID != want {
			t.Fatalf("event = %+v, want %s", ev, want)
		}
	}
}

func TestSubscribeSameBoardTwice(t *testing.T) {
	u := testServer(t, func(n int, r *http.Request, conn *websocket.Conn) { hold(conn) })
	ch := newTestChannel(u)

	sub, err := ch.Subscribe(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if _, err := ch.Subscribe(context.Background(), "b1"); !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("err = %v, want ErrAlreadySubscribed", err)
	}
}

func TestSubscribeOtherBoardClosesPrevious(t *testing.T) {
	u := testServer(t, func(n int, r *http.Request, conn *websocket.Conn) { hold(conn) })
	ch := newTestChannel(u)

	first, err := ch.Subscribe(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Subscribe b1: %v", err)
	}
	second, err := ch.Subscribe(context.Background(), "b2")
	if err != nil {
		t.Fatalf("Subscribe b2: %v", err)
	}
	defer second.Close()

	select {
	case <-first.Done():
	default:
		t.Fatal("b1 subscription still running after switching to b2")
	}
	if _, ok := <-first.Events(); ok {
		t.Error("b1 events channel still open")
	}
	if second.BoardID() != "b2" {
		t.Errorf("board = %s, want b2", second.BoardID())
	}
}

func TestSubscriptionReconnects(t *testing.T) {
	u := testServer(t, func(n int, r *http.Request, conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, frame(t, created("b1", "c"+string(rune('0'+n)))))
		if n == 1 {
			return
		}
		hold(conn)
	})

	var (
		mu       sync.Mutex
		statuses []Status
	)
	ch := newTestChannel(u)
	ch.OnStatus = func(boardID string, s Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	}

	sub, err := ch.Subscribe(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if ev := next(t, sub); ev.Card.ID != "c1" {
		t.Fatalf("first event = %s, want c1", ev.Card.ID)
	}
	if ev := next(t, sub); ev.Card.ID != "c2" {
		t.Fatalf("second event = %s, want c2", ev.Card.ID)
	}

	sub.Close()

	mu.Lock()
	defer mu.Unlock()
	want := []Status{StatusConnected, StatusDisconnected, StatusConnected, StatusClosed}
	if len(statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", statuses, want)
		}
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	u := testServer(t, func(n int, r *http.Request, conn *websocket.Conn) { hold(conn) })
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := newTestChannel(u).Subscribe(ctx, "b1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop after cancel")
	}
}
