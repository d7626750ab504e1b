package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CrowderSoup/collab-board/api"
	"github.com/CrowderSoup/collab-board/board"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, "tok")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "::nope", "localhost:3001"} {
		if _, err := New(raw, ""); err == nil {
			t.Errorf("New(%q) succeeded", raw)
		}
	}
}

func TestLoadSnapshot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/boards/b1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		io.WriteString(w, `{"board":{"id":"b1","name":"B"},"lists":[{"id":"l1","boardId":"b1","name":"Todo","position":0}]}`)
	})

	snap, err := c.LoadSnapshot(context.Background(), "b1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.Board.ID != "b1" || len(snap.Lists) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if bucket, ok := snap.CardsByListID["l1"]; !ok || bucket == nil {
		t.Errorf("bucket for l1 missing")
	}
}

func TestUpdateCardSendsExpectedVersion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/cards/c1" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body["expectedVersion"] != float64(4) || body["title"] != "T" {
			t.Errorf("body = %v", body)
		}
		if v, ok := body["dueDate"]; !ok || v != nil {
			t.Errorf("dueDate = %v (present %v), want explicit null", v, ok)
		}
		if _, ok := body["assigneeUserId"]; ok {
			t.Errorf("assigneeUserId sent although untouched")
		}
		writeJSON(w, http.StatusOK, board.Card{ID: "c1", ListID: "l1", Title: "T", Version: 5})
	})

	title := "T"
	card, err := c.UpdateCard(context.Background(), "c1", 4, board.CardPatch{Title: &title, DueDate: board.Null[time.Time]()})
	if err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}
	if card.Version != 5 {
		t.Errorf("version = %d, want 5", card.Version)
	}
}

func TestErrorKinds(t *testing.T) {
	latest := board.Card{ID: "c1", ListID: "l2", Version: 7}

	tests := []struct {
		name   string
		status int
		body   any
		kind   Kind
		check  func(t *testing.T, e *Error)
	}{
		{
			name:   "conflict carries latest",
			status: http.StatusConflict,
			body:   api.ConflictResponse{Code: api.CodeVersionConflict, Message: "Card was updated by someone else", Latest: &latest},
			kind:   KindConflict,
			check: func(t *testing.T, e *Error) {
				if e.Latest == nil || e.Latest.Version != 7 || e.Latest.ListID != "l2" {
					t.Errorf("latest = %+v", e.Latest)
				}
			},
		},
		{
			name:   "wip limit carries limit",
			status: http.StatusConflict,
			body:   api.Error{Error: api.CodeWIPLimit, Message: "WIP limit reached", Details: map[string]any{"limit": 3}},
			kind:   KindWIPLimit,
			check: func(t *testing.T, e *Error) {
				if e.Limit != 3 {
					t.Errorf("limit = %d, want 3", e.Limit)
				}
			},
		},
		{
			name:   "validation keeps field errors",
			status: http.StatusBadRequest,
			body:   api.Error{Error: api.CodeValidation, Message: "invalid", FieldErrors: map[string]string{"title": "required"}},
			kind:   KindValidation,
			check: func(t *testing.T, e *Error) {
				if e.FieldErrors["title"] != "required" {
					t.Errorf("field errors = %v", e.FieldErrors)
				}
			},
		},
		{name: "unauthorized", status: http.StatusUnauthorized, body: api.Error{Error: api.CodeUnauthorized}, kind: KindUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, body: api.Error{Error: api.CodeForbidden}, kind: KindForbidden},
		{name: "not found", status: http.StatusNotFound, body: api.Error{Error: api.CodeCardNotFound, Message: "Card not found"}, kind: KindNotFound},
		{name: "server error", status: http.StatusInternalServerError, body: api.Error{Error: api.CodeInternal}, kind: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := c.MoveCard(context.Background(), "c1", "l2", 0, 6)
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if e.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", e.Kind, tt.kind)
			}
			if e.Status != tt.status {
				t.Errorf("status = %d, want %d", e.Status, tt.status)
			}
			if tt.check != nil {
				tt.check(t, e)
			}
		})
	}
}

func TestPlainTextErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	err := c.DeleteCard(context.Background(), "c1", 1)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if e.Message != "upstream exploded" {
		t.Errorf("message = %q", e.Message)
	}
	if _, ok := AsConflict(err); ok {
		t.Error("plain 502 reported as a conflict")
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.ListBoards(context.Background())
	if KindOf(err) != KindTransport {
		t.Fatalf("kind = %s, want transport (%v)", KindOf(err), err)
	}
	if IsUnauthorized(err) {
		t.Error("transport error reported as unauthorized")
	}
}
