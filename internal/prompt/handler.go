package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/advicechat/relay/internal/profile"
)

// ProfileSource loads stored profiles for prompt personalization.
type ProfileSource interface {
	Get(ctx context.Context, id string) (*profile.Profile, error)
}

// Handler serves rendered system prompts.
type Handler struct {
	profiles ProfileSource
	logger   *slog.Logger
}

// NewHandler creates the prompt handler. profiles may be nil, in which case
// every render uses the unavailable-profile placeholder.
func NewHandler(profiles ProfileSource, logger *slog.Logger) *Handler {
	return &Handler{profiles: profiles, logger: logger}
}

// Routes mounts the prompt API on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Get("/{name}", h.handleGet)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"prompts": Names()})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	profileText := h.profileText(r.Context(), r.URL.Query().Get("userId"))

	rendered, ok := Get(name, profileText)
	if !ok {
		writeError(w, http.StatusNotFound, "prompt not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"name":   name,
		"prompt": rendered,
	})
}

// profileText resolves the profile block for a render. Lookup failures fall
// back to the unavailable-profile placeholder so a broken store never blocks
// prompt delivery.
func (h *Handler) profileText(ctx context.Context, userID string) string {
	if userID == "" || h.profiles == nil {
		return ""
	}

	p, err := h.profiles.Get(ctx, userID)
	if errors.Is(err, profile.ErrNotFound) {
		return profile.FormatForPrompt(nil)
	}
	if err != nil {
		h.logger.Warn("failed to load profile for prompt",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return profile.FormatForPrompt(nil)
	}
	return profile.FormatForPrompt(p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
