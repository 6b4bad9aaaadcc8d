package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/jwebster45206/narrative-engine/internal/engine"
	"github.com/jwebster45206/narrative-engine/internal/services"
	"github.com/jwebster45206/narrative-engine/pkg/storage"
	"github.com/jwebster45206/narrative-engine/pkg/world"
)

func setupTestHandler(t *testing.T) (*SessionHandler, *engine.Processor) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
	p := engine.NewProcessor(storage.NewMockStorage(), services.NewMockChoiceGenerator(), engine.Options{
		AutoGenerateChoices: true,
		NumChoices:          4,
		EnableTimeTracking:  true,
		TimeProgressionRate: 30,
	}, logger)
	return NewSessionHandler(p, logger), p
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp
}

func TestSessionHandler_Create(t *testing.T) {
	handler, _ := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", rr.Header().Get("Content-Type"))
	}

	var st world.State
	if err := json.NewDecoder(rr.Body).Decode(&st); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if st.ID == uuid.Nil {
		t.Error("Expected a session ID in the response")
	}
	if st.Location != world.DefaultLocation {
		t.Errorf("Expected default location, got %q", st.Location)
	}
}

func TestSessionHandler_CreateMethodNotAllowed(t *testing.T) {
	handler, _ := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
	}
}

func TestSessionHandler_InvalidID(t *testing.T) {
	handler, _ := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if resp := decodeError(t, rr); resp.Error != "Invalid session ID format" {
		t.Errorf("Unexpected error message: %q", resp.Error)
	}
}

func TestSessionHandler_ReadNotFound(t *testing.T) {
	handler, _ := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+uuid.New().String(), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestSessionHandler_ReadAndDelete(t *testing.T) {
	handler, p := setupTestHandler(t)
	st := p.CreateSession(t.Context())

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+st.ID.String(), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+st.ID.String(), nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected status %d, got %d", http.StatusNoContent, rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/"+st.ID.String(), nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status %d after delete, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestSessionHandler_Reset(t *testing.T) {
	handler, p := setupTestHandler(t)
	ctx := t.Context()
	st := p.CreateSession(ctx)
	if _, err := p.AddItem(ctx, st.ID, "Lantern", 1, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+st.ID.String()+"/reset", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var got world.State
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.ID != st.ID {
		t.Error("Expected reset to keep the session ID")
	}
	if len(got.Inventory) != 0 {
		t.Errorf("Expected empty inventory after reset, got %d items", len(got.Inventory))
	}
}

func TestSessionHandler_Snapshot(t *testing.T) {
	handler, p := setupTestHandler(t)
	ctx := t.Context()
	st := p.CreateSession(ctx)
	if _, err := p.AddItem(ctx, st.ID, "Torch", 2, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+st.ID.String()+"/snapshot", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var snap world.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if snap.InventoryCount != 1 {
		t.Errorf("Expected inventory count 1, got %d", snap.InventoryCount)
	}
	if snap.Date != "1st of Spring, Year 1" {
		t.Errorf("Unexpected date: %q", snap.Date)
	}
	if snap.TimeOfDay != "Morning" {
		t.Errorf("Unexpected time of day: %q", snap.TimeOfDay)
	}
}

func TestSessionHandler_ExportImport(t *testing.T) {
	handler, p := setupTestHandler(t)
	ctx := t.Context()
	st := p.CreateSession(ctx)
	if _, err := p.AddItem(ctx, st.ID, "Compass", 1, "Brass"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+st.ID.String()+"/export", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	blob := rr.Body.Bytes()

	other := p.CreateSession(ctx)
	req = httptest.NewRequest(http.MethodPost, "/v1/sessions/"+other.ID.String()+"/import", bytes.NewReader(blob))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var got world.State
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.ID != other.ID {
		t.Errorf("Expected imported state under session %s, got %s", other.ID, got.ID)
	}
	if len(got.Inventory) != 1 || got.Inventory[0].Name != "Compass" {
		t.Errorf("Expected imported inventory, got %+v", got.Inventory)
	}
}

func TestSessionHandler_ImportMalformed(t *testing.T) {
	handler, p := setupTestHandler(t)
	st := p.CreateSession(t.Context())

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+st.ID.String()+"/import", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestSessionHandler_UnknownOperation(t *testing.T) {
	handler, p := setupTestHandler(t)
	st := p.CreateSession(t.Context())

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+st.ID.String()+"/teleport", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestSessionHandler_Choices(t *testing.T) {
	handler, p := setupTestHandler(t)
	st := p.CreateSession(t.Context())

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+st.ID.String()+"/choices", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp ChoicesResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.SessionID != st.ID.String() {
		t.Errorf("Expected session ID %s, got %s", st.ID, resp.SessionID)
	}
	if len(resp.Choices) != 4 {
		t.Errorf("Expected 4 choices, got %d", len(resp.Choices))
	}
	for _, c := range resp.Choices {
		if c.Action == "" {
			t.Error("Expected every choice to carry an action")
		}
	}
}
