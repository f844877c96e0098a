package realtime

import (
	"encoding/json"
	"testing"
)

type sessionRow struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

func drain(c *Client) []Event {
	var out []Event
	for {
		select {
		case ev := <-c.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestPublishDeliversToMatchingFilter(t *testing.T) {
	h := NewHub()
	c := h.Register()
	defer h.Drop(c)
	c.Watch("chat_sessions", Filter{Column: "user_id", Value: "u1"})

	h.Publish("chat_sessions", EventInsert, sessionRow{ID: "s1", UserID: "u1", Title: "mine"})
	h.Publish("chat_sessions", EventInsert, sessionRow{ID: "s2", UserID: "u2", Title: "someone else's"})

	events := drain(c)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	var row sessionRow
	if err := json.Unmarshal(events[0].Row, &row); err != nil {
		t.Fatalf("row did not decode: %v", err)
	}
	if row.ID != "s1" {
		t.Errorf("expected row s1, got %s", row.ID)
	}
}

func TestPublishIgnoresUnwatchedCollections(t *testing.T) {
	h := NewHub()
	c := h.Register()
	defer h.Drop(c)
	c.Watch("chat_sessions", Filter{Column: "user_id", Value: "u1"})

	h.Publish("messages", EventInsert, map[string]string{"id": "m1", "user_id": "u1"})

	if events := drain(c); len(events) != 0 {
		t.Errorf("expected no events for unwatched collection, got %d", len(events))
	}
}

func TestUnwatchStopsDelivery(t *testing.T) {
	h := NewHub()
	c := h.Register()
	defer h.Drop(c)
	c.Watch("chat_sessions", Filter{Column: "user_id", Value: "u1"})
	c.Unwatch("chat_sessions")

	h.Publish("chat_sessions", EventInsert, sessionRow{ID: "s1", UserID: "u1"})

	if events := drain(c); len(events) != 0 {
		t.Errorf("expected no events after unwatch, got %d", len(events))
	}
}

func TestEmptyColumnMatchesEverything(t *testing.T) {
	h := NewHub()
	c := h.Register()
	defer h.Drop(c)
	c.Watch("messages", Filter{})

	h.Publish("messages", EventInsert, map[string]string{"id": "m1", "chat_session_id": "s1"})
	h.Publish("messages", EventInsert, map[string]string{"id": "m2", "chat_session_id": "s2"})

	if events := drain(c); len(events) != 2 {
		t.Errorf("expected 2 events, got %d", len(events))
	}
}

func TestSlowClientDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	c := h.Register()
	defer h.Drop(c)
	c.Watch("messages", Filter{})

	for i := 0; i < clientBuffer+10; i++ {
		h.Publish("messages", EventInsert, map[string]string{"id": "m", "n": "x"})
	}

	if events := drain(c); len(events) != clientBuffer {
		t.Errorf("expected buffer-sized backlog %d, got %d", clientBuffer, len(events))
	}
}

func TestDropClosesEventChannel(t *testing.T) {
	h := NewHub()
	c := h.Register()
	h.Drop(c)
	h.Drop(c) // safe to repeat

	if _, ok := <-c.Events(); ok {
		t.Error("expected closed channel after drop")
	}
}
