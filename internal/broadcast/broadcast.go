// Package broadcast turns core mutation events into client-facing push
// messages and hands them to the WebSocket hub.
package broadcast

import (
	"encoding/json"
	"log"

	"hideseek/internal/events"
	"hideseek/internal/wshub"
)

// Envelope is the push message format: an event name plus its payload.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Notifier bridges the event bus to the hub. The core never formats or
// delivers notifications itself; it only signals that a mutation
// happened, and the notifier does the rest.
type Notifier struct {
	hub *wshub.Hub
}

func NewNotifier(bus *events.Bus, hub *wshub.Hub) *Notifier {
	n := &Notifier{hub: hub}
	go func() {
		for ev := range bus.Questions {
			n.push(ev.GameID, Envelope{Event: "question", Data: ev})
		}
	}()
	go func() {
		for ev := range bus.Phases {
			if ev.Silent {
				continue
			}
			n.push(ev.GameID, Envelope{Event: "phase", Data: ev})
		}
	}()
	return n
}

func (n *Notifier) push(gameID string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("[Notify] Marshal error: %v\n", err)
		return
	}
	n.hub.Broadcast(gameID, data)
}
