// Package chat exposes the chat API: an asynchronous relay trigger that fans
// the runtime's answer out over the events channel, and a synchronous invoke
// endpoint that returns the buffered answer directly.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/advicechat/relay/internal/agentcore"
	"github.com/advicechat/relay/internal/dispatch"
	"github.com/advicechat/relay/internal/relay"
	"github.com/advicechat/relay/internal/server"
	"github.com/advicechat/relay/internal/tokens"
)

// Handler serves the chat endpoints.
type Handler struct {
	runtime         relay.Runtime
	dispatcher      *dispatch.Dispatcher
	counter         *tokens.Counter
	maxPromptTokens int
	logger          *slog.Logger
}

// NewHandler wires the chat handler. maxPromptTokens of zero disables the
// token budget.
func NewHandler(runtime relay.Runtime, dispatcher *dispatch.Dispatcher, counter *tokens.Counter, maxPromptTokens int, logger *slog.Logger) *Handler {
	return &Handler{
		runtime:         runtime,
		dispatcher:      dispatcher,
		counter:         counter,
		maxPromptTokens: maxPromptTokens,
		logger:          logger,
	}
}

// Routes mounts the chat API on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/relay", h.handleRelay)
	r.Post("/invoke", h.handleInvoke)
	return r
}

// handleRelay validates the trigger and queues one relay run. The answer
// arrives on the session's events channel, not in this response.
func (h *Handler) handleRelay(w http.ResponseWriter, r *http.Request) {
	var req relay.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := req.Validate(); err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := h.dispatcher.Enqueue(req)
	if err != nil {
		server.AddError(r.Context(), err)
		if errors.Is(err, dispatch.ErrQueueFull) {
			writeError(w, http.StatusTooManyRequests, "relay queue is full, try again shortly")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "relay unavailable")
		return
	}

	server.AddLogField(r.Context(), "session_id", req.RuntimeSessionID)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"jobId":   jobID,
		"channel": relay.Channel(req.RuntimeSessionID),
	})
}

// handleInvoke calls the runtime synchronously and returns its buffered
// payload, enforcing the prompt token budget first.
func (h *Handler) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req relay.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := req.Validate(); err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.maxPromptTokens > 0 {
		count, err := h.counter.Count(req.Prompt)
		if err != nil {
			h.logger.Warn("token counting unavailable", slog.String("error", err.Error()))
		} else if count > h.maxPromptTokens {
			server.AddLogField(r.Context(), "prompt_tokens", fmt.Sprint(count))
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("prompt is %d tokens, budget is %d", count, h.maxPromptTokens))
			return
		}
	}

	resp, err := h.runtime.Invoke(r.Context(), req.RuntimeSessionID, &agentcore.InvokeRequest{Prompt: req.Prompt})
	if err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer resp.Body.Close()

	server.AddLogField(r.Context(), "session_id", req.RuntimeSessionID)

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusBadGateway, "failed to read runtime response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
