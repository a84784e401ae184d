package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLimit_KnownAndUnknownModels(t *testing.T) {
	tk, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8192, tk.ContextLimit("gpt-4"))
	assert.Equal(t, 128000, tk.ContextLimit("gpt-4o"))
	assert.Equal(t, 200000, tk.ContextLimit("claude-3-opus"))
	assert.Equal(t, defaultContextLimit, tk.ContextLimit("some-unreleased-model"))
}

func TestTruncateToContext_RoundTripMatchesBudget(t *testing.T) {
	tk, err := New()
	require.NoError(t, err)

	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 2000)
	full := tk.Encode(text)
	require.Greater(t, len(full), 100)

	reserved := tk.ContextLimit("gpt-4") - 50
	truncated := tk.TruncateToContext(text, "gpt-4", reserved)
	gotTokens := tk.CountTokens(truncated)
	assert.Equal(t, 50, gotTokens)
}

func TestTruncateToContext_ShortTextUnchanged(t *testing.T) {
	tk, err := New()
	require.NoError(t, err)

	text := "short text"
	assert.Equal(t, text, tk.TruncateToContext(text, "gpt-4", 100))
}
