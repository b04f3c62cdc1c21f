package server

import (
	"encoding/json"
	"time"

	"github.com/battlelinehq/battleline/internal/game"
	"github.com/battlelinehq/battleline/internal/session"
)

// MessageType labels a websocket wire message.
type MessageType string

const (
	// Server → client
	MessageTypeState     MessageType = "state"
	MessageTypeGameEnded MessageType = "game_ended"
	MessageTypeError     MessageType = "error"

	// Client → server
	MessageTypeMove MessageType = "move"
)

// Message is the websocket wire envelope in both directions.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps data in an envelope with the current timestamp.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// MoveData is a human player's move submitted over the socket.
type MoveData struct {
	Seat  int    `json:"seat"`
	Color string `json:"color"`
	Rank  int    `json:"rank"`
	Flag  int    `json:"flag"`
}

// Move converts the wire form into an engine move.
func (d MoveData) Move() game.Move {
	return game.Move{
		Seat: d.Seat,
		Card: game.Card{Color: game.Color(d.Color), Rank: d.Rank},
		Flag: d.Flag,
	}
}

// ErrorData reports a failure to the client.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// messageFromEvent converts a session event into its wire envelope.
func messageFromEvent(ev session.Event) (*Message, error) {
	messageType := MessageTypeState
	if ev.Type == session.EventGameEnded {
		messageType = MessageTypeGameEnded
	}
	return NewMessage(messageType, ev)
}
