package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/narrative-engine/internal/engine"
	"github.com/jwebster45206/narrative-engine/pkg/world"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// maxImportSize caps save blobs accepted on import.
const maxImportSize = 1 << 20

type SessionHandler struct {
	engine *engine.Processor
	logger *slog.Logger
}

func NewSessionHandler(engine *engine.Processor, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		engine: engine,
		logger: logger,
	}
}

// ServeHTTP handles HTTP requests for session operations
// Routes:
// POST /v1/sessions                  - Create new session
// GET /v1/sessions/{id}              - Read full world state
// DELETE /v1/sessions/{id}           - Delete session
// POST /v1/sessions/{id}/reset       - Reset world to fresh defaults
// GET /v1/sessions/{id}/snapshot     - Read derived snapshot
// GET /v1/sessions/{id}/export       - Export save blob
// POST /v1/sessions/{id}/import      - Import save blob
// POST /v1/sessions/{id}/message     - Process a narrative message
// POST /v1/sessions/{id}/commands    - Apply an explicit command
// POST /v1/sessions/{id}/choices     - Generate action choices
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")

	if path == "" {
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Use POST to create a session")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	sessionID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, sessionID)
		case http.MethodDelete:
			h.handleDelete(w, r, sessionID)
		default:
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
		}
		return
	}

	switch {
	case parts[1] == "reset" && r.Method == http.MethodPost:
		h.handleReset(w, r, sessionID)
	case parts[1] == "snapshot" && r.Method == http.MethodGet:
		h.handleSnapshot(w, r, sessionID)
	case parts[1] == "export" && r.Method == http.MethodGet:
		h.handleExport(w, r, sessionID)
	case parts[1] == "import" && r.Method == http.MethodPost:
		h.handleImport(w, r, sessionID)
	case parts[1] == "message" && r.Method == http.MethodPost:
		h.handleMessage(w, r, sessionID)
	case parts[1] == "commands" && r.Method == http.MethodPost:
		h.handleCommand(w, r, sessionID)
	case parts[1] == "choices" && r.Method == http.MethodPost:
		h.handleChoices(w, r, sessionID)
	default:
		h.writeError(w, http.StatusNotFound, "Unknown session operation: "+parts[1])
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Creating new session")

	st := h.engine.CreateSession(r.Context())

	h.logger.Info("Session created", "session_id", st.ID.String())
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(st); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

func (h *SessionHandler) handleRead(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	st, err := h.engine.GetState(r.Context(), sessionID)
	if err != nil {
		h.writeEngineError(w, err, sessionID)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(st); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	if err := h.engine.DeleteSession(r.Context(), sessionID); err != nil {
		h.logger.Error("Failed to delete session", "error", err, "session_id", sessionID.String())
		h.writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	h.logger.Debug("Session deleted", "session_id", sessionID.String())
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleReset(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	st, err := h.engine.Reset(r.Context(), sessionID)
	if err != nil {
		h.writeEngineError(w, err, sessionID)
		return
	}

	h.logger.Info("Session reset", "session_id", sessionID.String())
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(st); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

func (h *SessionHandler) handleSnapshot(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	snap, err := h.engine.Snapshot(r.Context(), sessionID)
	if err != nil {
		h.writeEngineError(w, err, sessionID)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.logger.Error("Failed to encode snapshot response", "error", err)
	}
}

func (h *SessionHandler) handleExport(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	blob, err := h.engine.Export(r.Context(), sessionID)
	if err != nil {
		h.writeEngineError(w, err, sessionID)
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(blob); err != nil {
		h.logger.Error("Failed to write export response", "error", err)
	}
}

func (h *SessionHandler) handleImport(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	blob, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		h.logger.Warn("Failed to read import body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	st, err := h.engine.Import(r.Context(), sessionID, blob)
	if err != nil {
		if errors.Is(err, world.ErrDeserialization) {
			h.logger.Warn("Rejected malformed save data", "session_id", sessionID.String(), "error", err)
			h.writeError(w, http.StatusBadRequest, "Invalid save data: "+err.Error())
			return
		}
		h.writeEngineError(w, err, sessionID)
		return
	}

	h.logger.Info("Session state imported", "session_id", sessionID.String())
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(st); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

// writeEngineError maps engine errors onto HTTP status codes.
func (h *SessionHandler) writeEngineError(w http.ResponseWriter, err error, sessionID uuid.UUID) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		h.logger.Warn("Session not found", "session_id", sessionID.String())
		h.writeError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, engine.ErrBusy):
		h.logger.Warn("Session busy", "session_id", sessionID.String())
		h.writeError(w, http.StatusConflict, "Session is processing another message")
	default:
		h.logger.Error("Session operation failed", "error", err, "session_id", sessionID.String())
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *SessionHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
