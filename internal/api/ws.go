package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// JSON-over-WebSocket bridge to stream plan events to browser clients that
// cannot hold an SSE connection.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	PlanID string   `json:"planId"`
	Types  []string `json:"types,omitempty"`
}

// PlanEventsWSHandler handles /v1/ws
func (s *Server) PlanEventsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
    defer func() { _ = conn.Close() }()

	// Track subscriptions: id -> planID and channel
	type sub struct {
		planID string
		ch     chan SSEEvent
	}
	subs := map[string]sub{}

	// Read loop
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// Write helper
	write := func(v any) error { return conn.WriteJSON(v) }

	// Expect connection_init first
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "connection_init":
			// Acknowledge
			_ = write(wsMessage{Type: "connection_ack"})
			// Start keepalive
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for range ticker.C {
					if err := write(wsMessage{Type: "ping"}); err != nil {
						return
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl subscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			if pl.PlanID == "" {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"planId required"}`)})
				_ = write(wsMessage{Type: "complete", ID: msg.ID})
				continue
			}
			// RBAC: admin/planner or the plan's owner
			pr := s.getPrincipal(r)
			if !(pr.IsAdmin() || pr.Role == "planner") {
				_, tenant := s.withTenant(r)
				p, err := s.Store.GetPlan(r.Context(), tenant, pl.PlanID)
				if err != nil || pr.UserID == "" || p.UserID == "" || pr.UserID != p.UserID {
					// send error and complete
					_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"forbidden"}`)})
					_ = write(wsMessage{Type: "complete", ID: msg.ID})
					continue
				}
			}
			wanted := map[string]struct{}{}
			for _, t := range pl.Types {
				wanted[t] = struct{}{}
			}
			ch := s.Broker.Subscribe(pl.PlanID)
			subs[msg.ID] = sub{planID: pl.PlanID, ch: ch}
			// Fanout goroutine
			go func(id string, c chan SSEEvent) {
				for evt := range c {
					if len(wanted) > 0 {
						if _, ok := wanted[evt.Type]; !ok {
							continue
						}
					}
					payload, _ := json.Marshal(map[string]any{"event": evt.Type, "data": evt.Data})
					_ = write(wsMessage{Type: "next", ID: id, Payload: payload})
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch)
		case "complete":
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(s0.planID, s0.ch)
				delete(subs, msg.ID)
			}
		default:
			// ignore
		}
	}
	// Cleanup
	for id, s0 := range subs {
		s.Broker.Unsubscribe(s0.planID, s0.ch)
		delete(subs, id)
	}
}
