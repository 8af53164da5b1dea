// Package tokens estimates prompt sizes so the invoke API can enforce a
// token budget before work reaches the runtime.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts prompt tokens with a tiktoken codec. The runtime's models
// use their own vocabulary, so this is an estimate, but it is close enough
// for budget enforcement.
type Counter struct {
	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewCounter creates a lazy counter. The codec is loaded on first use.
func NewCounter() *Counter {
	return &Counter{}
}

// Count returns the token count of text.
func (c *Counter) Count(text string) (int, error) {
	c.once.Do(func() {
		c.codec, c.err = tokenizer.Get(tokenizer.O200kBase)
	})
	if c.err != nil {
		return 0, fmt.Errorf("failed to load tokenizer: %w", c.err)
	}

	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to encode text: %w", err)
	}
	return len(ids), nil
}
