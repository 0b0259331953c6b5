package websocket

import (
	"encoding/json"

	"github.com/isdelr/bookshare-be/internal/models"
)

// Message actions sent to clients.
const (
	ActionEvent = "event"
	ActionPong  = "pong"
	ActionError = "error"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewEventMessage wraps a notification event.
func NewEventMessage(event models.Event) Message {
	return Message{Action: ActionEvent, Payload: event}
}

// NewErrorMessage encodes an error message for a single client.
func NewErrorMessage(text string) []byte {
	b, _ := json.Marshal(Message{Action: ActionError, Payload: map[string]string{"error": text}})
	return b
}

// NewPongMessage encodes the reply to a client "ping" action.
func NewPongMessage() []byte {
	b, _ := json.Marshal(Message{Action: ActionPong})
	return b
}
