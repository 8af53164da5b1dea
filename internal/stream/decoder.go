// Package stream decodes the line-oriented event-stream encoding used by the
// agent runtime: lines prefixed "data: " carry one JSON record each, every
// other line is a keep-alive or comment.
package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const dataPrefix = "data: "

// Decoder yields decoded JSON records from a raw event stream. It is a lazy,
// non-restartable view over the reader: records are pulled one at a time and
// the stream cannot be rewound.
type Decoder struct {
	scanner *bufio.Scanner
	logger  *slog.Logger
}

// NewDecoder wraps a raw event-stream body.
func NewDecoder(r io.Reader, logger *slog.Logger) *Decoder {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for potentially large chunks
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	return &Decoder{scanner: scanner, logger: logger}
}

// Next returns the next well-formed record. A frame-prefixed line that fails
// to parse is logged and skipped; it never aborts the rest of the stream.
// Next returns io.EOF on clean end of input.
func (d *Decoder) Next() (json.RawMessage, error) {
	for d.scanner.Scan() {
		line := d.scanner.Text()

		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		data := strings.TrimPrefix(line, dataPrefix)
		if !json.Valid([]byte(data)) {
			d.logger.Warn("skipping malformed stream line",
				slog.Int("length", len(data)),
			)
			continue
		}

		return json.RawMessage(data), nil
	}

	if err := d.scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream read error: %w", err)
	}
	return nil, io.EOF
}
