package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/advicechat/relay/internal/agentcore"
	"github.com/advicechat/relay/internal/stream"
)

// MinSessionIDLength is imposed by the runtime's session addressing.
const MinSessionIDLength = 33

// terminalPublishTimeout bounds the best-effort terminal publish attempted
// after the job's own deadline has already passed.
const terminalPublishTimeout = 5 * time.Second

// Request is the inbound trigger for one relay run.
type Request struct {
	Prompt           string `json:"prompt"`
	RuntimeSessionID string `json:"runtimeSessionId"`
}

// ValidationError marks a malformed trigger. It is fatal to the run and no
// upstream call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// Validate checks the trigger before any upstream work.
func (r *Request) Validate() error {
	if r.Prompt == "" {
		return &ValidationError{Field: "prompt", Reason: "is required"}
	}
	if r.RuntimeSessionID == "" {
		return &ValidationError{Field: "runtimeSessionId", Reason: "is required"}
	}
	if len(r.RuntimeSessionID) < MinSessionIDLength {
		return &ValidationError{
			Field:  "runtimeSessionId",
			Reason: fmt.Sprintf("must be at least %d characters", MinSessionIDLength),
		}
	}
	return nil
}

// Runtime is the upstream collaborator that answers prompts.
type Runtime interface {
	Invoke(ctx context.Context, sessionID string, req *agentcore.InvokeRequest) (*agentcore.InvokeResponse, error)
}

// Publisher delivers serialized events to one session channel. The interface
// accepts a batch but the orchestrator always sends one event per call so a
// failed publish isolates to a single event.
type Publisher interface {
	Publish(ctx context.Context, channel string, events [][]byte) error
}

// Orchestrator owns the per-request relay lifecycle: invoke the runtime,
// drive decode, classify and publish, and bracket the session with start and
// end markers. A session channel always receives either a full start..end
// bracket or a single error event.
type Orchestrator struct {
	runtime   Runtime
	publisher Publisher
	logger    *slog.Logger
}

// New wires an orchestrator. Collaborators are constructed once per process
// and injected so tests can substitute fakes.
func New(runtime Runtime, publisher Publisher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		runtime:   runtime,
		publisher: publisher,
		logger:    logger,
	}
}

// Run executes one relay. Validation failures are returned without touching
// the runtime; upstream failures are converted into a single published error
// event and also returned to the caller.
func (o *Orchestrator) Run(ctx context.Context, req *Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	sessionID := req.RuntimeSessionID
	channel := Channel(sessionID)

	o.logger.Info("invoking agent runtime",
		slog.String("session_id", sessionID),
		slog.Int("prompt_length", len(req.Prompt)),
	)

	resp, err := o.runtime.Invoke(ctx, sessionID, &agentcore.InvokeRequest{Prompt: req.Prompt})
	if err != nil {
		// The only path that bypasses the start/end bracket: subscribers get
		// a single terminal error instead.
		o.publish(ctx, channel, ErrorEvent(err.Error()))
		return fmt.Errorf("runtime invocation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.Streaming {
		return o.drainStream(ctx, channel, sessionID, resp.Body)
	}
	return o.relayBuffered(ctx, channel, sessionID, resp.Body)
}

// drainStream publishes the start marker, relays every classified event in
// receipt order, and closes the bracket. An empty stream still produces a
// well-formed start/end pair.
func (o *Orchestrator) drainStream(ctx context.Context, channel, sessionID string, body io.Reader) error {
	o.publish(ctx, channel, StartEvent(sessionID))

	decoder := stream.NewDecoder(body, o.logger)
	published := 0
	for {
		record, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Transport failure mid-stream: close the session with a terminal
			// error so subscribers are not left waiting on a stalled bracket.
			o.publish(ctx, channel, ErrorEvent(err.Error()))
			return fmt.Errorf("stream aborted: %w", err)
		}

		event, ok := Classify(sessionID, record)
		if !ok {
			continue
		}
		o.publish(ctx, channel, event)
		published++
	}

	o.publish(ctx, channel, EndEvent(sessionID))

	o.logger.Info("relay complete",
		slog.String("session_id", sessionID),
		slog.Int("events", published),
	)
	return nil
}

// relayBuffered handles a non-streaming runtime response: one content event
// carrying the full payload, inside the usual bracket.
func (o *Orchestrator) relayBuffered(ctx context.Context, channel, sessionID string, body io.Reader) error {
	payload, err := io.ReadAll(body)
	if err != nil {
		o.publish(ctx, channel, ErrorEvent(err.Error()))
		return fmt.Errorf("failed to read runtime response: %w", err)
	}

	if len(payload) == 0 || !json.Valid(payload) {
		// The content field must stay valid JSON even when the runtime
		// answers with something that isn't
		quoted, _ := json.Marshal(string(payload))
		payload = quoted
	}

	o.publish(ctx, channel, StartEvent(sessionID))
	o.publish(ctx, channel, BufferedContentEvent(sessionID, json.RawMessage(payload)))
	o.publish(ctx, channel, EndEvent(sessionID))

	o.logger.Info("relay complete",
		slog.String("session_id", sessionID),
		slog.Bool("buffered", true),
	)
	return nil
}

// publish serializes and delivers one event. Delivery is at-most-once: a
// failed publish is logged and the run moves on to the next event.
func (o *Orchestrator) publish(ctx context.Context, channel string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		o.logger.Error("failed to serialize event",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}

	// If the job deadline already passed, still attempt the publish on a
	// short detached context so terminal markers go out best-effort.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), terminalPublishTimeout)
		defer cancel()
	}

	if err := o.publisher.Publish(ctx, channel, [][]byte{payload}); err != nil {
		o.logger.Error("failed to publish event",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
