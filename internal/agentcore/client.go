// Package agentcore is a thin HTTP client for the managed agent runtime.
// The runtime answers a prompt either with a single buffered JSON payload or
// with a line-oriented event stream, signalled by the response content type.
package agentcore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

const streamContentType = "text/event-stream"

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAPIKey sets a bearer token for the runtime endpoint.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// Client invokes an agent runtime over HTTP.
type Client struct {
	baseURL    string
	runtimeARN string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a runtime client for one agent runtime.
func NewClient(baseURL, runtimeARN string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		runtimeARN: runtimeARN,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InvokeRequest is the payload handed to the runtime.
type InvokeRequest struct {
	Prompt string `json:"prompt"`
}

// InvokeResponse is the runtime's answer. Body is a buffered payload when
// Streaming is false and a live event stream when it is true. The caller owns
// Body and must close it.
type InvokeResponse struct {
	ContentType string
	Streaming   bool
	Body        io.ReadCloser
}

// Invoke calls the runtime for one session. The session id addresses runtime
// state, so it is sent verbatim as a header.
func (c *Client) Invoke(ctx context.Context, sessionID string, req *InvokeRequest) (*InvokeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/runtimes/%s/invocations", c.baseURL, url.PathEscape(c.runtimeARN))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	httpReq.Header.Set("X-Runtime-Session-Id", sessionID)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("runtime error (status %d): %s", resp.StatusCode, string(respBody))
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	return &InvokeResponse{
		ContentType: contentType,
		Streaming:   mediaType == streamContentType,
		Body:        resp.Body,
	}, nil
}
