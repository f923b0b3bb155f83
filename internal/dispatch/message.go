package dispatch

import (
	"encoding/json"
	"time"
)

// Message is the envelope for every event exchanged with the dispatch
// server over the WebSocket.
type Message struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewMessage wraps a payload in an envelope with the current timestamp
func NewMessage(eventType string, payload interface{}) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}
