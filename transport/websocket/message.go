package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-history/internal/tictactoe"
)

const (
	actionConnect = "connect"
	actionPlay    = "game:play"
	actionJump    = "game:jump"
	actionSort    = "game:sort"
	actionError   = "error"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type RequestPayload struct {
	SessionID string `json:"session_id,omitempty"`
	Cell      *int   `json:"cell,omitempty"`
	Move      *int   `json:"move,omitempty"`
}

type ResponsePayload struct {
	SessionID string          `json:"session_id,omitempty"`
	View      *tictactoe.View `json:"view,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func (that *client) sendMessage(action string, payload ResponsePayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	response := Message{
		Action:  action,
		Payload: payloadJSON,
	}

	if err = that.conn.WriteJSON(response); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *client) sendView(action string, view tictactoe.View) error {
	return that.sendMessage(action, ResponsePayload{SessionID: that.sessionID, View: &view})
}

func (that *client) sendErrorResponse(action, message string) error {
	return that.sendMessage(action, ResponsePayload{SessionID: that.sessionID, Error: message})
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
