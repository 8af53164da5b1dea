package notes

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler serves the notes CRUD API.
type Handler struct {
	store  *Store
	logger *slog.Logger
}

// NewHandler creates the notes handler.
func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Routes mounts the notes API on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleAdd)
	r.Get("/{userID}", h.handleList)
	r.Delete("/{userID}/{noteID}", h.handleDelete)
	return r
}

type addNoteRequest struct {
	UserID   string `json:"userId"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "userId and content are required")
		return
	}

	note, err := h.store.Add(r.Context(), req.UserID, req.Content, req.Category)
	if err != nil {
		h.logger.Error("failed to add note", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to save note")
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	category := r.URL.Query().Get("category")

	notes, err := h.store.List(r.Context(), userID, category)
	if err != nil {
		h.logger.Error("failed to list notes", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}
	if notes == nil {
		notes = []*Note{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	noteID := chi.URLParam(r, "noteID")

	if err := h.store.Delete(r.Context(), userID, noteID); err != nil {
		h.logger.Error("failed to delete note", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete note")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
