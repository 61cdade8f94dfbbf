package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/odysseyatlas/atlas/internal/adapters/nats"
	"github.com/odysseyatlas/atlas/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to feeds.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "tours" | "walk" (default: tours)
	Tour    string `json:"tour"`    // tour ID, required for the walk channel
}

// WebSocketHandler returns a handler that upgrades to WebSocket and relays
// NATS events to connected clients. Every client receives newly planned
// tours; {"action":"subscribe","channel":"walk","tour":"<id>"} adds the
// step and status events of walks along that tour.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		log := slog.With("remote", remoteAddr)
		log.Info("ws client connected")

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		if nc == nil {
			_ = c.WriteJSON(map[string]string{"error": "event stream unavailable"})
			return
		}

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		relay := func(msg *nats.Msg) {
			_ = writeJSON(json.RawMessage(msg.Data))
		}

		sub, err := nc.Subscribe(natsadapter.SubjectToursPlanned, relay)
		if err != nil {
			log.Error("ws default subscribe failed", "error", err)
			return
		}
		subs[natsadapter.SubjectToursPlanned] = sub

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subjects, errMsg := wsSubjects(m)
			if errMsg != "" {
				_ = writeJSON(map[string]string{"error": errMsg})
				continue
			}

			switch m.Action {
			case "subscribe":
				for _, subject := range subjects {
					if _, exists := subs[subject]; exists {
						_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
						continue
					}
					s, err := nc.Subscribe(subject, relay)
					if err != nil {
						_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
						continue
					}
					subs[subject] = s
					_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})
				}

			case "unsubscribe":
				for _, subject := range subjects {
					if s, exists := subs[subject]; exists {
						_ = s.Unsubscribe()
						delete(subs, subject)
						_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
					} else {
						_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
					}
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		log.Info("ws client disconnected")
	}
}

// wsSubjects maps a client message to NATS subjects, or returns an error
// message for the client.
func wsSubjects(m wsMessage) ([]string, string) {
	switch m.Channel {
	case "", "tours":
		return []string{natsadapter.SubjectToursPlanned}, ""
	case "walk":
		// Tour IDs become subject tokens, so only UUIDs are accepted.
		if _, err := uuid.Parse(m.Tour); err != nil {
			return nil, "walk channel requires a valid tour id"
		}
		return []string{
			natsadapter.WalkStepSubject(m.Tour),
			natsadapter.WalkStatusSubject(m.Tour),
		}, ""
	default:
		return nil, "unknown channel: " + m.Channel
	}
}
