package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-history/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-history/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-history/internal/usecase"
)

func decodePayload(msg *Message) (RequestPayload, error) {
	var payload RequestPayload

	if len(msg.Payload) == 0 {
		return payload, nil
	}

	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return payload, nil
}

func (that *Server) handleConnect(ctx context.Context, msg *Message, conn *client) error {
	log := that.logger.With("method", "handleConnect")

	payload, err := decodePayload(msg)
	if err != nil {
		return conn.sendErrorResponse(msg.Action, "malformed payload")
	}

	sessionID, view, err := that.sessionUseCase.GetOrCreate(ctx, payload.SessionID)
	if errors.Is(err, apperror.ErrInvalidSessionID) {
		log.Warn("invalid session id", "sessionID", payload.SessionID)
		return conn.sendErrorResponse(msg.Action, "invalid session id")
	}

	if err != nil {
		log.Error("failed to get or create session", "error", err)
		return conn.sendErrorResponse(msg.Action, "failed to start the game")
	}

	conn.sessionID = sessionID

	log.Info("successfully connected session", "sessionID", sessionID)

	return conn.sendView(msg.Action, view)
}

func (that *Server) handlePlay(ctx context.Context, msg *Message, conn *client) error {
	payload, err := decodePayload(msg)
	if err != nil || payload.Cell == nil {
		return conn.sendErrorResponse(msg.Action, "cell is required")
	}

	return that.applyTransition(msg, conn, func(sessionID string) (tictactoe.View, error) {
		return that.sessionUseCase.Play(ctx, sessionID, *payload.Cell)
	})
}

func (that *Server) handleJump(ctx context.Context, msg *Message, conn *client) error {
	payload, err := decodePayload(msg)
	if err != nil || payload.Move == nil {
		return conn.sendErrorResponse(msg.Action, "move is required")
	}

	return that.applyTransition(msg, conn, func(sessionID string) (tictactoe.View, error) {
		return that.sessionUseCase.JumpTo(ctx, sessionID, *payload.Move)
	})
}

func (that *Server) handleSort(ctx context.Context, msg *Message, conn *client) error {
	return that.applyTransition(msg, conn, func(sessionID string) (tictactoe.View, error) {
		return that.sessionUseCase.ToggleSortOrder(ctx, sessionID)
	})
}

// applyTransition - runs a transition for the connected session. Rejected
// transitions answer with the unchanged view.
func (that *Server) applyTransition(msg *Message, conn *client, transition func(sessionID string) (tictactoe.View, error)) error {
	log := that.logger.With("method", "applyTransition", "action", msg.Action, "sessionID", conn.sessionID)

	if conn.sessionID == "" {
		return conn.sendErrorResponse(msg.Action, "not connected to a game")
	}

	view, err := transition(conn.sessionID)
	if usecase.IsRejected(err) {
		log.Debug("transition ignored", "reason", err)
		return conn.sendView(msg.Action, view)
	}

	if err != nil {
		log.Error("transition failed", "error", err)
		return conn.sendErrorResponse(msg.Action, "failed to update the game")
	}

	return conn.sendView(msg.Action, view)
}
