// Package main runs a demo WebSocket client for plan events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func post(base, path string, body []byte) (*http.Response, error) {
	req, _ := http.NewRequest(http.MethodPost, base+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	return http.DefaultClient.Do(req)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Submit a survey then generate a plan for the demo user
	survey := []byte(`{"userId":"u_demo","totalBudget":200000,"durationDays":2,"styleRank":{"food":1,"relax":2}}`)
	resp, err := post(base, "/v1/surveys", survey)
	if err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()

	resp, err = post(base, "/v1/plans", []byte(`{"userId":"u_demo"}`))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var planResp struct {
		Plan struct {
			ID string `json:"id"`
		} `json:"plan"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&planResp); err != nil {
		log.Fatal(err)
	}
	if planResp.Plan.ID == "" {
		log.Fatal("no plan returned")
	}
	planID := planResp.Plan.ID
	log.Printf("Plan ID: %s", planID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// connection_init
	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	// subscribe to the plan's event stream
	pl, _ := json.Marshal(map[string]any{"planId": planID})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Regenerating the plan publishes a fresh plan.created; this stream only
	// carries events for planID, so expect keepalives plus any later events.
	time.Sleep(500 * time.Millisecond)
	resp2, err := post(base, "/v1/plans", []byte(`{"userId":"u_demo"}`))
	if err == nil {
		_ = resp2.Body.Close()
	}

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
