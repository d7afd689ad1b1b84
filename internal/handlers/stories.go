package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/storyloom/storyloom/internal/storage"
)

type StoryInfo struct {
	File string `json:"file"`
	Name string `json:"name"`
}

// StoryHandler serves the story catalog.
// Routes:
// GET /v1/stories        - List available stories
// GET /v1/stories/{file} - Fetch one story definition
type StoryHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewStoryHandler(st storage.Storage, logger *slog.Logger) *StoryHandler {
	return &StoryHandler{
		storage: st,
		logger:  logger,
	}
}

func (h *StoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filename := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/stories"), "/")
	if filename == "" {
		h.handleList(w, r)
		return
	}
	h.handleGet(w, r, filename)
}

func (h *StoryHandler) handleList(w http.ResponseWriter, r *http.Request) {
	stories, err := h.storage.ListStories(r.Context())
	if err != nil {
		h.logger.Error("Failed to list stories", "error", err)
		http.Error(w, "Failed to list stories", http.StatusInternalServerError)
		return
	}

	list := make([]StoryInfo, 0, len(stories))
	for file, name := range stories {
		list = append(list, StoryInfo{File: file, Name: name})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].File < list[j].File })

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		h.logger.Error("Failed to encode story list", "error", err)
	}
}

func (h *StoryHandler) handleGet(w http.ResponseWriter, r *http.Request, filename string) {
	if strings.Contains(filename, "..") || strings.Contains(filename, "/") {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}

	st, err := h.storage.GetStory(r.Context(), filename)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, "Story not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to get story", "error", err, "filename", filename)
		http.Error(w, "Failed to retrieve story", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		h.logger.Error("Failed to encode story", "error", err, "filename", filename)
	}
}
