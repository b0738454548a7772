package usecase

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"wanderbot/internal/domain"
)

// turnOverhead approximates the framing tokens the Converse API wraps around
// each message.
const turnOverhead = 4

// TokenCounter estimates token counts for history budgeting. The Bedrock
// tokenizer is not public, so cl100k_base stands in; when the encoding cannot
// be loaded at all, a character heuristic keeps counting.
type TokenCounter struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenCounter creates a counter backed by the named tiktoken encoding.
// Empty selects cl100k_base.
func NewTokenCounter(encoding string) *TokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TokenCounter{encoding: encoding}
}

// CountText returns the estimated token count of text.
func (c *TokenCounter) CountText(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err == nil {
			c.enc = enc
		}
	})
	if c.enc == nil {
		// Roughly four characters per token.
		return len(text)/4 + 1
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountTurns returns the estimated token count of the turns including framing.
func (c *TokenCounter) CountTurns(turns []domain.Turn) int {
	total := 0
	for _, t := range turns {
		total += c.CountText(t.Text) + turnOverhead
	}
	return total
}
