package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/jwebster45206/narrative-engine/pkg/chat"
)

// ChoicesResponse wraps generated action candidates for on-demand requests.
type ChoicesResponse struct {
	SessionID string        `json:"session_id"`
	Choices   []chat.Choice `json:"choices"`
}

func (h *SessionHandler) handleMessage(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	var req chat.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in message request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	if err := req.Validate(); err != nil {
		h.logger.Warn("Invalid message request", "error", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.engine.HandleMessage(r.Context(), sessionID, req.Role, req.Text)
	if err != nil {
		h.writeEngineError(w, err, sessionID)
		return
	}

	h.logger.Debug("Message processed",
		"session_id", sessionID.String(),
		"role", req.Role,
		"inline_choices", len(resp.Choices),
		"generated_choices", len(resp.Generated))

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode message response", "error", err)
	}
}

func (h *SessionHandler) handleChoices(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	choices, err := h.engine.GenerateChoices(r.Context(), sessionID)
	if err != nil {
		h.writeEngineError(w, err, sessionID)
		return
	}
	if choices == nil {
		choices = []chat.Choice{}
	}

	response := ChoicesResponse{
		SessionID: sessionID.String(),
		Choices:   choices,
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode choices response", "error", err)
	}
}
