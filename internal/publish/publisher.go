// Package publish delivers serialized session events to the external events
// API with a single authenticated POST per call.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Signer authenticates one outbound request. Signing is a capability injected
// at construction; the publisher never computes credentials itself.
type Signer interface {
	Sign(req *http.Request, body []byte) error
}

// Option configures the publisher.
type Option func(*Publisher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(p *Publisher) {
		p.httpClient = httpClient
	}
}

// Publisher posts event batches to the events endpoint. It reports every
// network, signing and status condition as an error value and never panics;
// retrying is the caller's decision.
type Publisher struct {
	endpoint   string
	signer     Signer
	logger     *slog.Logger
	httpClient *http.Client
}

// New creates a publisher for one events endpoint.
func New(endpoint string, signer Signer, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		endpoint:   endpoint,
		signer:     signer,
		logger:     logger,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// publishRequest is the wire form accepted by the events API.
type publishRequest struct {
	Channel string   `json:"channel"`
	Events  []string `json:"events"`
}

// Publish delivers one batch of serialized events to a channel. The relay
// sends a single event per batch for fault isolation, but larger batches are
// accepted.
func (p *Publisher) Publish(ctx context.Context, channel string, events [][]byte) error {
	if p.endpoint == "" {
		return fmt.Errorf("events endpoint not configured")
	}

	serialized := make([]string, len(events))
	for i, e := range events {
		serialized[i] = string(e)
	}

	body, err := json.Marshal(publishRequest{Channel: channel, Events: serialized})
	if err != nil {
		return fmt.Errorf("failed to marshal publish request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if p.signer != nil {
		if err := p.signer.Sign(req, body); err != nil {
			return fmt.Errorf("failed to sign request: %w", err)
		}
	}

	p.logger.Info("publishing to events channel",
		slog.String("channel", channel),
		slog.Int("events", len(events)),
	)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error("events API request failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("events API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Error("events API rejected publish",
			slog.String("channel", channel),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(respBody)),
		)
		return fmt.Errorf("events API returned status %d", resp.StatusCode)
	}

	return nil
}
