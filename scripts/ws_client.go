// Package main runs a demo WebSocket client for map session events.
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

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Open a getAddress session
	body := []byte(`{"mode":"getAddress"}`)
	resp, err := http.Post(base+"/v1/map/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var sess struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		log.Fatal(err)
	}
	if sess.ID == "" {
		log.Fatalf("no session returned (status %d)", resp.StatusCode)
	}
	log.Printf("Session ID: %s", sess.ID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/map/sessions/" + sess.ID + "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "events"}); err != nil {
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
			log.Printf("WS <- %s %s: %s", m.Type, m.ID, string(m.Payload))
		}
	}()

	// Grant access, report a fix, then pan the map
	send := func(typ, id string, payload any) {
		b, _ := json.Marshal(payload)
		if err := c.WriteJSON(wsMessage{Type: typ, ID: id, Payload: b}); err != nil {
			log.Printf("write %s: %v", typ, err)
		}
	}
	time.Sleep(200 * time.Millisecond)
	send("authorization", "1", map[string]any{"status": "authorizedWhenInUse"})
	send("location", "2", map[string]any{"lat": 40.7484, "lng": -73.9857})
	time.Sleep(500 * time.Millisecond)
	send("region", "3", map[string]any{"lat": 40.7580, "lng": -73.9855})

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
