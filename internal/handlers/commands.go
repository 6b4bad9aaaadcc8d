package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jwebster45206/narrative-engine/pkg/world"
)

// Command names accepted by the commands endpoint.
const (
	CommandAddItem            = "add_item"
	CommandRemoveItem         = "remove_item"
	CommandUpdateRelationship = "update_relationship"
	CommandSetLocation        = "set_location"
	CommandAdvanceTime        = "advance_time"
)

// CommandRequest is an explicit world mutation issued by the host
// application, bypassing narrative text parsing.
type CommandRequest struct {
	Command string `json:"command"`

	// add_item, remove_item
	Item        string `json:"item,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
	Description string `json:"description,omitempty"`

	// update_relationship
	Name      string `json:"name,omitempty"`
	Category  string `json:"category,omitempty"`
	Affection int    `json:"affection,omitempty"`

	// set_location
	Location string `json:"location,omitempty"`
	Region   string `json:"region,omitempty"`

	// advance_time
	Minutes int `json:"minutes,omitempty"`
}

func (req *CommandRequest) Validate() error {
	switch req.Command {
	case CommandAddItem, CommandRemoveItem:
		if req.Item == "" {
			return fmt.Errorf("item is required for %s", req.Command)
		}
	case CommandUpdateRelationship:
		if req.Name == "" {
			return fmt.Errorf("name is required for %s", req.Command)
		}
	case CommandSetLocation:
		if req.Location == "" {
			return fmt.Errorf("location is required for %s", req.Command)
		}
	case CommandAdvanceTime:
		if req.Minutes <= 0 {
			return fmt.Errorf("minutes must be positive for %s", req.Command)
		}
	case "":
		return fmt.Errorf("command is required")
	default:
		return fmt.Errorf("unknown command: %s", req.Command)
	}
	return nil
}

func (h *SessionHandler) handleCommand(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in command request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	if err := req.Validate(); err != nil {
		h.logger.Warn("Invalid command request", "error", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var st *world.State
	var err error
	switch req.Command {
	case CommandAddItem:
		st, err = h.engine.AddItem(r.Context(), sessionID, req.Item, req.Quantity, req.Description)
	case CommandRemoveItem:
		st, err = h.engine.RemoveItem(r.Context(), sessionID, req.Item, req.Quantity)
	case CommandUpdateRelationship:
		st, err = h.engine.UpdateRelationship(r.Context(), sessionID, req.Name, req.Category, req.Affection)
	case CommandSetLocation:
		st, err = h.engine.SetLocation(r.Context(), sessionID, req.Location, req.Region)
	case CommandAdvanceTime:
		st, err = h.engine.AdvanceTime(r.Context(), sessionID, req.Minutes)
	}
	if err != nil {
		h.writeEngineError(w, err, sessionID)
		return
	}

	h.logger.Debug("Command applied", "session_id", sessionID.String(), "command", req.Command)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(st); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}
