// Package tokenizer provides token cost counting for context budgeting.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Counter reports the token cost of a piece of text. Implementations must be
// deterministic and safe for concurrent use.
type Counter interface {
	Count(text string) int
}

// Tiktoken counts tokens with the cl100k_base BPE encoding, matching what
// the completion service bills for gpt-3.5 class models.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the cl100k_base encoding.
func NewTiktoken() (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load cl100k_base encoding: %w", err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Heuristic estimates roughly four bytes per token. It is the fallback when
// the tiktoken encoding cannot be loaded at startup.
type Heuristic struct{}

// Count returns the estimated token count for text.
func (Heuristic) Count(text string) int {
	return (len(text) + 3) / 4
}
