package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom/internal/runner"
	"github.com/storyloom/storyloom/internal/services"
	"github.com/storyloom/storyloom/internal/storage"
	"github.com/storyloom/storyloom/pkg/flow"
	"github.com/storyloom/storyloom/pkg/memory"
	"github.com/storyloom/storyloom/pkg/state"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateSessionRequest struct {
	StoryFile string `json:"story_file"`
}

type StepRequest struct {
	Input string `json:"input"`
}

type SessionResponse struct {
	ID           uuid.UUID   `json:"id"`
	StoryFile    string      `json:"story_file,omitempty"`
	StoryName    string      `json:"story_name"`
	CurrentScene string      `json:"current_scene"`
	Vars         state.State `json:"vars,omitempty"`
	IsComplete   bool        `json:"is_complete"`
	EndingID     string      `json:"ending_id,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type StepResponse struct {
	Step    runner.StepResult `json:"step"`
	Session SessionResponse   `json:"session"`
}

// SessionHandler manages playthrough sessions. Each request rehydrates the
// session from storage, runs the operation and persists the result, so the
// API stays stateless between requests.
type SessionHandler struct {
	storage    storage.Storage
	generator  services.Generator
	summarizer memory.Summarizer
	logger     *slog.Logger

	compactionInterval  int
	highWaterImportance int
}

func NewSessionHandler(st storage.Storage, gen services.Generator, summ memory.Summarizer, compactionInterval, highWaterImportance int, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		storage:             st,
		generator:           gen,
		summarizer:          summ,
		logger:              logger,
		compactionInterval:  compactionInterval,
		highWaterImportance: highWaterImportance,
	}
}

// ServeHTTP handles HTTP requests for session operations
// Routes:
// POST /v1/sessions             - Create a new session
// GET /v1/sessions/{id}         - Read session state by ID
// DELETE /v1/sessions/{id}      - Delete a session by ID
// POST /v1/sessions/{id}/step   - Run one turn of the session
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.Split(path, "/")
	sessionID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleRead(w, r, sessionID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDelete(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "step":
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleStep(w, r, sessionID)
	case len(parts) == 1:
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
	default:
		h.writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.StoryFile) == "" {
		h.writeError(w, http.StatusBadRequest, "story_file is required")
		return
	}

	ctx := r.Context()
	st, err := h.storage.GetStory(ctx, req.StoryFile)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			h.writeError(w, http.StatusNotFound, "Story not found")
			return
		}
		h.logger.Error("Failed to load story", "error", err, "story_file", req.StoryFile)
		h.writeError(w, http.StatusInternalServerError, "Failed to load story")
		return
	}

	game, err := flow.NewGame(st, h.logger)
	if err != nil {
		h.logger.Error("Failed to start session", "error", err, "story_file", req.StoryFile)
		h.writeError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	rn, err := runner.New(game, h.newMemoryStore(), h.generator, h.logger)
	if err != nil {
		h.logger.Error("Failed to build runner", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	data := rn.Save()
	data.StoryFile = req.StoryFile
	sess := rn.Session()
	if err := h.storage.SaveGame(ctx, sess.ID, data); err != nil {
		h.logger.Error("Failed to save session", "error", err, "session_id", sess.ID)
		h.writeError(w, http.StatusInternalServerError, "Failed to save session")
		return
	}

	h.logger.Info("Session created", "session_id", sess.ID, "story_file", req.StoryFile)
	h.writeJSON(w, http.StatusCreated, sessionResponse(req.StoryFile, &sess))
}

func (h *SessionHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	data, err := h.storage.LoadGame(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load session", "error", err, "session_id", id)
		h.writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}
	if data == nil {
		h.writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	h.writeJSON(w, http.StatusOK, sessionResponse(data.StoryFile, data.Flow.Session))
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.storage.DeleteGame(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete session", "error", err, "session_id", id)
		h.writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	h.logger.Info("Session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleStep(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	data, err := h.storage.LoadGame(ctx, id)
	if err != nil {
		h.logger.Error("Failed to load session", "error", err, "session_id", id)
		h.writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}
	if data == nil {
		h.writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	st, err := h.storage.GetStory(ctx, data.StoryFile)
	if err != nil {
		h.logger.Error("Failed to load story for session", "error", err,
			"session_id", id, "story_file", data.StoryFile)
		h.writeError(w, http.StatusInternalServerError, "Failed to load story for session")
		return
	}

	rn, err := runner.Load(st, data, h.newMemoryStore(), h.generator, h.logger)
	if err != nil {
		h.logger.Error("Failed to restore session", "error", err, "session_id", id)
		h.writeError(w, http.StatusInternalServerError, "Failed to restore session")
		return
	}

	step, err := rn.Step(ctx, req.Input)
	if err != nil {
		if errors.Is(err, flow.ErrSessionComplete) {
			h.writeError(w, http.StatusConflict, "Session is already complete")
			return
		}
		// Failed turns mutate nothing, so the client can retry the same
		// directive.
		h.logger.Warn("Step failed", "error", err, "session_id", id)
		h.writeError(w, http.StatusBadGateway, "Turn failed, no state was changed. Retry the request.")
		return
	}

	saved := rn.Save()
	saved.StoryFile = data.StoryFile
	if err := h.storage.SaveGame(ctx, id, saved); err != nil {
		h.logger.Error("Failed to save session after step", "error", err, "session_id", id)
		h.writeError(w, http.StatusInternalServerError, "Failed to save session")
		return
	}

	sess := rn.Session()
	h.writeJSON(w, http.StatusOK, StepResponse{
		Step:    *step,
		Session: sessionResponse(data.StoryFile, &sess),
	})
}

func (h *SessionHandler) newMemoryStore() *memory.Store {
	return memory.NewStore(h.summarizer,
		memory.WithCompactionInterval(h.compactionInterval),
		memory.WithHighWaterImportance(h.highWaterImportance),
		memory.WithLogger(h.logger))
}

func sessionResponse(storyFile string, sess *state.Session) SessionResponse {
	return SessionResponse{
		ID:           sess.ID,
		StoryFile:    storyFile,
		StoryName:    sess.StoryName,
		CurrentScene: sess.CurrentScene,
		Vars:         sess.Vars,
		IsComplete:   sess.IsComplete,
		EndingID:     sess.EndingID,
		CreatedAt:    sess.CreatedAt,
		UpdatedAt:    sess.UpdatedAt,
	}
}

func (h *SessionHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *SessionHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
