package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"BetPulse/internal/domain/models"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversDecisions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(time.Second, 8, nil)
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.ServeWS(w, r)
	}))
	defer srv.Close()

	all := dial(t, srv, "")
	defer all.Close()
	only := dial(t, srv, "?fixture_id=f2")
	defer only.Close()
	waitClients(t, h, 2)

	h.Broadcast(&models.DecisionRecord{ID: "r1", FixtureID: "f1"})
	h.Broadcast(&models.DecisionRecord{ID: "r2", FixtureID: "f2"})

	read := func(conn *websocket.Conn) Message {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m Message
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return m
	}

	if m := read(all); m.Type != "decision" || m.Data.ID != "r1" {
		t.Fatalf("first frame = %+v", m)
	}
	if m := read(all); m.Data.ID != "r2" {
		t.Fatalf("second frame = %+v", m)
	}
	if m := read(only); m.FixtureID != "f2" || m.Data.ID != "r2" {
		t.Fatalf("filtered frame = %+v", m)
	}
}

func TestHubUnregistersOnClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(time.Second, 8, nil)
	go h.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.ServeWS(w, r)
	}))
	defer srv.Close()

	conn := dial(t, srv, "")
	waitClients(t, h, 1)
	_ = conn.Close()
	waitClients(t, h, 0)
}
