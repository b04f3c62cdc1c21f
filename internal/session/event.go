package session

import "encoding/json"

// EventType labels a state-transition event on a session's topic.
type EventType string

const (
	// EventStateUpdated is published after every accepted, non-terminal move.
	EventStateUpdated EventType = "state_updated"

	// EventGameEnded is published once, for the move that ends the game.
	EventGameEnded EventType = "game_ended"
)

// Event is the message fanned out to a session's subscribers. It carries
// the full serialized state so a viewer can re-render without a follow-up
// query; workers only need Turn to decide whether to act. There is no
// history: subscribers see only events published while they are attached.
type Event struct {
	Type    EventType       `json:"type"`
	Session uint64          `json:"session"`
	Seq     uint64          `json:"seq"`
	Turn    int             `json:"turn"`
	Winner  int             `json:"winner,omitempty"`
	State   json.RawMessage `json:"state,omitempty"`
}
