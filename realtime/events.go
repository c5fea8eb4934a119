// Package realtime pushes conversation events to websocket clients grouped
// in per-game rooms.
package realtime

import (
	"encoding/json"

	cmodels "tabletop-chat/backend/conversation/models"
)

// Event types
const (
	EventJoinGame       = "joinGame"
	EventLeaveGame      = "leaveGame"
	EventPing           = "ping"
	EventPong           = "pong"
	EventGameJoined     = "game.joined"
	EventGameLeft       = "game.left"
	EventMessageCreated = "message.created"
	EventError          = "error"
)

// Event is the wire frame exchanged with clients
type Event struct {
	Type    string `json:"type"`
	GameID  string `json:"gameId,omitempty"`
	Content any    `json:"content,omitempty"`
}

// inbound is what clients send
type inbound struct {
	Type   string `json:"type"`
	GameID string `json:"gameId"`
}

func encodeMessageCreated(msg *cmodels.Message) ([]byte, error) {
	return json.Marshal(Event{Type: EventMessageCreated, Content: msg})
}
