package agentcore_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/advicechat/relay/internal/agentcore"
	"github.com/advicechat/relay/internal/testutil"
)

func TestInvokeBuffered(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "invoke_buffered")
	defer cleanup()

	client := agentcore.NewClient("https://runtime.test", "agent-runtime-1",
		agentcore.WithHTTPClient(testutil.VCRHTTPClient(r)),
	)

	resp, err := client.Invoke(context.Background(), strings.Repeat("s", 33),
		&agentcore.InvokeRequest{Prompt: "How do I appeal a benefit decision?"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.Streaming {
		t.Error("Streaming = true for buffered response")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "mandatory reconsideration") {
		t.Errorf("body = %s", body)
	}
}

func TestInvokeStreaming(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "invoke_streaming")
	defer cleanup()

	client := agentcore.NewClient("https://runtime.test", "agent-runtime-1",
		agentcore.WithHTTPClient(testutil.VCRHTTPClient(r)),
	)

	resp, err := client.Invoke(context.Background(), strings.Repeat("s", 33),
		&agentcore.InvokeRequest{Prompt: "How do I appeal a benefit decision?"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	defer resp.Body.Close()

	if !resp.Streaming {
		t.Errorf("Streaming = false for content type %q", resp.ContentType)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "contentBlockDelta") {
		t.Errorf("stream body = %s", body)
	}
}

func TestInvokeSendsSessionHeader(t *testing.T) {
	var gotSession, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.Header.Get("X-Runtime-Session-Id")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := agentcore.NewClient(srv.URL, "agent-runtime-1")

	sid := strings.Repeat("x", 33)
	resp, err := client.Invoke(context.Background(), sid, &agentcore.InvokeRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	resp.Body.Close()

	if gotSession != sid {
		t.Errorf("session header = %q, want %q", gotSession, sid)
	}
	if gotPath != "/runtimes/agent-runtime-1/invocations" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestInvokeNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"throttled"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := agentcore.NewClient(srv.URL, "agent-runtime-1")

	_, err := client.Invoke(context.Background(), strings.Repeat("x", 33),
		&agentcore.InvokeRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("Invoke() expected error for 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v, want status in message", err)
	}
}

func TestInvokeBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := agentcore.NewClient(srv.URL, "agent-runtime-1", agentcore.WithAPIKey("rk-123"))

	resp, err := client.Invoke(context.Background(), strings.Repeat("x", 33),
		&agentcore.InvokeRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer rk-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}
