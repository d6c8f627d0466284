package sim_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/atmx/ddp-sim/internal/amm"
	"github.com/atmx/ddp-sim/internal/sim"
	"github.com/atmx/ddp-sim/internal/store"
)

func TestWSHub_BroadcastsExecutedOperations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := sim.NewWSHub()
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	svc, err := sim.NewService(store.NewMemoryStore(), defaults(), amm.DefaultFeeRate, nil, hub)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	r := chi.NewRouter()
	r.Get("/ws", hub.HandleWS)
	r.Route("/api/v1", svc.Routes)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	view := setupSession(t, r)
	if w := execute(t, r, view.ID, map[string]interface{}{
		"type": "swap", "participant_id": 1, "token": "DDP", "amount": 1_000,
	}); w.Code != 200 {
		t.Fatalf("swap: %d %s", w.Code, w.Body.String())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var seen []string
	for len(seen) < 2 {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v (seen %v)", err, seen)
		}
		var msg sim.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.SessionID != view.ID {
			t.Errorf("message for session %q, want %q", msg.SessionID, view.ID)
		}
		if msg.Type == "operation_executed" && (msg.Result == nil || msg.Pool == nil) {
			t.Error("operation message should carry the result and pool")
		}
		seen = append(seen, msg.Type)
	}
	if seen[0] != "session_created" || seen[1] != "operation_executed" {
		t.Errorf("unexpected message order %v", seen)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	if hub.Clients() != 0 {
		t.Errorf("expected no clients after shutdown, got %d", hub.Clients())
	}
}
