// Package tokenizer implements the deterministic tokenizer contract used by
// the Chunker for token-count invariants and by the RAG Engine for
// context-window budgeting and encode-slice-decode truncation.
package tokenizer

import (
	"github.com/pkoukk/tiktoken-go"
)

// defaultContextLimit is used for any model name not present in the
// table below.
const defaultContextLimit = 8192

// contextLimits maps known model names to their context windows.
var contextLimits = map[string]int{
	"gpt-4":             8192,
	"gpt-4-turbo":        128000,
	"gpt-4o":             128000,
	"gpt-4o-mini":        128000,
	"gpt-3.5-turbo":      16385,
	"claude-3-haiku":     200000,
	"claude-3-sonnet":    200000,
	"claude-3-opus":      200000,
	"gemini-1.5-pro":     1048576,
	"gemini-1.5-flash":   1048576,
	"nomic-embed-text":   8192,
}

// Tokenizer wraps a single tiktoken BPE encoding. Every model name shares
// the same encoding (cl100k_base); the per-model distinction that matters
// for this system is the context limit, not the byte-pair-encoding table,
// since the embedding/generation providers in use (Ollama, Gemini) do not
// ship their own public tokenizer tables.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

// New constructs a Tokenizer backed by the cl100k_base encoding.
func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		return nil, err
	}
	return &Tokenizer{encoding: enc}, nil
}

// CountTokens returns the number of tokens text encodes to.
func (t *Tokenizer) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// Encode returns text's token ids.
func (t *Tokenizer) Encode(text string) []int {
	return t.encoding.Encode(text, nil, nil)
}

// Decode reconstructs text from token ids.
func (t *Tokenizer) Decode(ids []int) string {
	return t.encoding.Decode(ids)
}

// ContextLimit returns modelName's context window, or the default (8192)
// for unrecognized models.
func (t *Tokenizer) ContextLimit(modelName string) int {
	if limit, ok := contextLimits[modelName]; ok {
		return limit
	}
	return defaultContextLimit
}

// TruncateToContext truncates text to fit within
// context_limit(modelName) - reservedTokens, using an encode -> slice ->
// decode round trip. If text already fits, it is returned unchanged.
func (t *Tokenizer) TruncateToContext(text, modelName string, reservedTokens int) string {
	maxTokens := t.ContextLimit(modelName) - reservedTokens
	if maxTokens < 0 {
		maxTokens = 0
	}
	ids := t.Encode(text)
	if len(ids) <= maxTokens {
		return text
	}
	return t.Decode(ids[:maxTokens])
}
