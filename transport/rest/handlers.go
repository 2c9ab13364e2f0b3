package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/matryer/way"
	"github.com/rocketscienceinc/tictactoe-history/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-history/internal/tictactoe"
)

type gameResponse struct {
	ID   string         `json:"id"`
	View tictactoe.View `json:"view"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (that *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleCreateGame")

	id, view, err := that.sessionUseCase.GetOrCreate(r.Context(), "")
	if err != nil {
		log.Error("failed to create game", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create game"})
		return
	}

	writeJSON(w, http.StatusCreated, gameResponse{ID: id, View: view})
}

func (that *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleGetGame")

	id := way.Param(r.Context(), "id")

	view, err := that.sessionUseCase.GetView(r.Context(), id)
	if errors.Is(err, apperror.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "game not found"})
		return
	}

	if err != nil {
		log.Error("failed to get game", "sessionID", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to get game"})
		return
	}

	writeJSON(w, http.StatusOK, gameResponse{ID: id, View: view})
}

// handleDeleteGame - drops the session so its id can no longer be resumed.
func (that *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleDeleteGame")

	id := way.Param(r.Context(), "id")

	err := that.sessionUseCase.Delete(r.Context(), id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, apperror.ErrInvalidSessionID):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid game id"})
	case errors.Is(err, apperror.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "game not found"})
	default:
		log.Error("failed to delete game", "sessionID", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to delete game"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
