package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/advicechat/relay/internal/agentcore"
)

const sid = "abcdefghijklmnopqrstuvwxyz0123456"

type fakeRuntime struct {
	resp    *agentcore.InvokeResponse
	err     error
	invoked int
}

func (f *fakeRuntime) Invoke(ctx context.Context, sessionID string, req *agentcore.InvokeRequest) (*agentcore.InvokeResponse, error) {
	f.invoked++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type published struct {
	channel string
	event   map[string]any
}

type fakePublisher struct {
	events  []published
	failAt  int // 1-based index of the publish call that fails; 0 means never
	calls   int
	lastCtx context.Context
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, events [][]byte) error {
	f.calls++
	f.lastCtx = ctx
	if f.failAt != 0 && f.calls == f.failAt {
		return errors.New("injected publish failure")
	}
	for _, e := range events {
		var decoded map[string]any
		if err := json.Unmarshal(e, &decoded); err != nil {
			return fmt.Errorf("unmarshal published event: %w", err)
		}
		f.events = append(f.events, published{channel: channel, event: decoded})
	}
	return nil
}

func streamResponse(body string) *agentcore.InvokeResponse {
	return &agentcore.InvokeResponse{
		ContentType: "text/event-stream",
		Streaming:   true,
		Body:        io.NopCloser(strings.NewReader(body)),
	}
}

func bufferedResponse(body string) *agentcore.InvokeResponse {
	return &agentcore.InvokeResponse{
		ContentType: "application/json",
		Streaming:   false,
		Body:        io.NopCloser(strings.NewReader(body)),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func eventTypes(events []published) []string {
	types := make([]string, len(events))
	for i, p := range events {
		if t, ok := p.event["type"].(string); ok {
			types[i] = t
		} else if s, ok := p.event["status"].(string); ok {
			types[i] = s
		}
	}
	return types
}

func assertTypes(t *testing.T, events []published, want ...string) {
	t.Helper()
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("event types = %v, want %v", got, want)
		}
	}
}

func TestRunValidation(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
	}{
		{"missing prompt", &Request{RuntimeSessionID: sid}},
		{"missing session id", &Request{Prompt: "hello"}},
		{"short session id", &Request{Prompt: "", RuntimeSessionID: "abc"}},
		{"session id below minimum", &Request{Prompt: "hello", RuntimeSessionID: strings.Repeat("a", 32)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &fakeRuntime{}
			pub := &fakePublisher{}
			o := New(rt, pub, testLogger())

			err := o.Run(context.Background(), tt.req)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Run() error = %v, want ValidationError", err)
			}
			if rt.invoked != 0 {
				t.Errorf("runtime invoked %d times before validation", rt.invoked)
			}
			if len(pub.events) != 0 {
				t.Errorf("published %d events for invalid request", len(pub.events))
			}
		})
	}
}

func TestRunStreamingBracket(t *testing.T) {
	body := "data: {\"event\":{\"contentBlockDelta\":{\"delta\":{\"text\":\"one\"}}}}\n" +
		"data: {\"event\":{\"contentBlockStart\":{\"start\":{\"toolUse\":{\"name\":\"kb_search\"}}}}}\n" +
		"data: {\"event\":{\"contentBlockDelta\":{\"delta\":{\"text\":\"two\"}}}}\n"

	rt := &fakeRuntime{resp: streamResponse(body)}
	pub := &fakePublisher{}
	o := New(rt, pub, testLogger())

	if err := o.Run(context.Background(), &Request{Prompt: "q", RuntimeSessionID: sid}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertTypes(t, pub.events, "start", "content", "tool_use", "content", "end")

	for _, p := range pub.events {
		if p.channel != "chat/"+sid {
			t.Errorf("channel = %q, want %q", p.channel, "chat/"+sid)
		}
	}

	if pub.events[1].event["text"] != "one" || pub.events[3].event["text"] != "two" {
		t.Errorf("content order broken: %v", pub.events)
	}
	if pub.events[2].event["text"] != "Using tool: kb_search" {
		t.Errorf("tool use text = %v", pub.events[2].event["text"])
	}
}

func TestRunEmptyStreamStillBracketed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty stream", ""},
		{"only keep-alives", ": ping\n\n: ping\n"},
		{"all malformed lines", "data: nope\ndata: {{{\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &fakeRuntime{resp: streamResponse(tt.body)}
			pub := &fakePublisher{}
			o := New(rt, pub, testLogger())

			if err := o.Run(context.Background(), &Request{Prompt: "q", RuntimeSessionID: sid}); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			assertTypes(t, pub.events, "start", "end")
		})
	}
}

func TestRunOrderPreservation(t *testing.T) {
	const n = 20
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "data: {\"event\":{\"contentBlockDelta\":{\"delta\":{\"text\":\"chunk-%02d\"}}}}\n", i)
	}

	rt := &fakeRuntime{resp: streamResponse(sb.String())}
	pub := &fakePublisher{}
	o := New(rt, pub, testLogger())

	if err := o.Run(context.Background(), &Request{Prompt: "q", RuntimeSessionID: sid}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(pub.events) != n+2 {
		t.Fatalf("published %d events, want %d", len(pub.events), n+2)
	}
	for i := 0; i < n; i++ {
		want := fmt.Sprintf("chunk-%02d", i)
		if got := pub.events[i+1].event["text"]; got != want {
			t.Errorf("event %d text = %v, want %s", i+1, got, want)
		}
	}
}

func TestRunDecodeFaultIsolation(t *testing.T) {
	valid := "data: {\"event\":{\"contentBlockDelta\":{\"delta\":{\"text\":\"a\"}}}}\n" +
		"data: {\"event\":{\"contentBlockDelta\":{\"delta\":{\"text\":\"b\"}}}}\n"
	withMalformed := "data: {\"event\":{\"contentBlockDelta\":{\"delta\":{\"text\":\"a\"}}}}\n" +
		"data: {broken\n" +
		"data: {\"event\":{\"contentBlockDelta\":{\"delta\":{\"text\":\"b\"}}}}\n"

	run := func(body string) []published {
		rt := &fakeRuntime{resp: streamResponse(body)}
		pub := &fakePublisher{}
		o := New(rt, pub, testLogger())
		if err := o.Run(context.Background(), &Request{Prompt: "q", RuntimeSessionID: sid}); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return pub.events
	}

	cleanEvents := run(valid)
	faultyEvents := run(withMalformed)

	if len(cleanEvents) != len(faultyEvents) {
		t.Fatalf("got %d events with malformed line, %d without", len(faultyEvents), len(cleanEvents))
	}
	for i := range cleanEvents {
		if fmt.Sprint(cleanEvents[i].event) != fmt.Sprint(faultyEvents[i].event) {
			t.Errorf("event %d differs: %v vs %v", i, cleanEvents[i].event, faultyEvents[i].event)
		}
	}
}

// abortingReader yields its data then fails with err, like a connection
// dropped mid-stream.
type abortingReader struct {
	data []byte
	err  error
}

func (r *abortingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestRunStreamAbortTerminatesWithError(t *testing.T) {
	body := "data: {\"event\":{\"contentBlockDelta\":{\"delta\":{\"text\":\"partial\"}}}}\n"
	rt := &fakeRuntime{resp: &agentcore.InvokeResponse{
		ContentType: "text/event-stream",
		Streaming:   true,
		Body:        io.NopCloser(&abortingReader{data: []byte(body), err: errors.New("connection reset")}),
	}}
	pub := &fakePublisher{}
	o := New(rt, pub, testLogger())

	err := o.Run(context.Background(), &Request{Prompt: "q", RuntimeSessionID: sid})
	if err == nil {
		t.Fatal("Run() expected error for aborted stream")
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("Run() error = %v", err)
	}

	// Events before the drop still land, then the bracket closes with a
	// terminal error instead of end.
	assertTypes(t, pub.events, "start", "content", "error")
	if pub.events[1].event["text"] != "partial" {
		t.Errorf("content before abort = %v", pub.events[1].event)
	}
	if msg, _ := pub.events[2].event["error"].(string); !strings.Contains(msg, "connection reset") {
		t.Errorf("terminal error message = %q", msg)
	}
}

func TestRunPublishFaultIsolation(t *testing.T) {
	body := "data: {\"event\":{\"contentBlockDelta\":{\"delta\":{\"text\":\"a\"}}}}\n" +
		"data: {\"event\":{\"contentBlockDelta\":{\"delta\":{\"text\":\"b\"}}}}\n" +
		"data: {\"event\":{\"contentBlockDelta\":{\"delta\":{\"text\":\"c\"}}}}\n"

	// Fail the third publish call (content "b"); later events must still land.
	rt := &fakeRuntime{resp: streamResponse(body)}
	pub := &fakePublisher{failAt: 3}
	o := New(rt, pub, testLogger())

	if err := o.Run(context.Background(), &Request{Prompt: "q", RuntimeSessionID: sid}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertTypes(t, pub.events, "start", "content", "content", "end")
	if pub.events[1].event["text"] != "a" || pub.events[2].event["text"] != "c" {
		t.Errorf("surviving events wrong: %v", pub.events)
	}
	if pub.calls != 5 {
		t.Errorf("publish calls = %d, want 5", pub.calls)
	}
}

func TestRunBufferedPath(t *testing.T) {
	rt := &fakeRuntime{resp: bufferedResponse(`{"answer":"hello"}`)}
	pub := &fakePublisher{}
	o := New(rt, pub, testLogger())

	if err := o.Run(context.Background(), &Request{Prompt: "q", RuntimeSessionID: sid}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertTypes(t, pub.events, "start", "content", "end")

	content, ok := pub.events[1].event["content"].(map[string]any)
	if !ok {
		t.Fatalf("content event payload = %v", pub.events[1].event)
	}
	if content["answer"] != "hello" {
		t.Errorf("content = %v, want full payload", content)
	}

	for _, p := range pub.events {
		if p.channel != "chat/"+sid {
			t.Errorf("channel = %q", p.channel)
		}
	}
}

func TestRunUpstreamFailure(t *testing.T) {
	rt := &fakeRuntime{err: errors.New("model unavailable")}
	pub := &fakePublisher{}
	o := New(rt, pub, testLogger())

	err := o.Run(context.Background(), &Request{Prompt: "q", RuntimeSessionID: sid})
	if err == nil {
		t.Fatal("Run() expected error for upstream failure")
	}

	assertTypes(t, pub.events, "error")
	if pub.events[0].event["error"] != "model unavailable" {
		t.Errorf("error message = %v", pub.events[0].event["error"])
	}
}

func TestRunTerminalPublishAfterDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rt := &fakeRuntime{err: errors.New("model unavailable")}
	pub := &fakePublisher{}
	o := New(rt, pub, testLogger())

	if err := o.Run(ctx, &Request{Prompt: "q", RuntimeSessionID: sid}); err == nil {
		t.Fatal("Run() expected error")
	}

	// The terminal error still goes out, on a context that is alive.
	assertTypes(t, pub.events, "error")
	if pub.lastCtx.Err() != nil {
		t.Errorf("terminal publish context already dead: %v", pub.lastCtx.Err())
	}
}
