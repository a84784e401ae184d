package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/reposync/internal/core"
)

// wordTokenizer is a deterministic stand-in for the BPE tokenizer: one
// token per whitespace-separated word plus one per newline, with a
// reversible encode/decode so hard-split round trips stay checkable. The
// newline charge matters: the real BPE tokenizer bills for the newline
// joinWindow re-inserts between units, so the budget tests must see that
// cost too.
type wordTokenizer struct{}

func (wordTokenizer) CountTokens(text string) int {
	return len(strings.Fields(text)) + strings.Count(text, "\n")
}

func (t wordTokenizer) Encode(text string) []int {
	ids := make([]int, t.CountTokens(text))
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// Decode yields placeholder words; the tests only depend on the decoded
// token count matching the slice length, not on byte-level fidelity.
func (wordTokenizer) Decode(ids []int) string {
	words := make([]string, len(ids))
	for i := range words {
		words[i] = "w"
	}
	return strings.Join(words, " ")
}

func (wordTokenizer) ContextLimit(string) int { return 8192 }

func newTestChunker() *Chunker {
	return New(wordTokenizer{}, nil)
}

func TestSelectVariant(t *testing.T) {
	cases := []struct {
		name string
		file core.FileRecord
		want chunkVariant
	}{
		{"go source gets the AST splitter", core.FileRecord{Path: "main.go", Kind: core.FileKindCode, Lang: "go"}, variantCodeAST},
		{"python falls back to token windows", core.FileRecord{Path: "app.py", Kind: core.FileKindCode, Lang: "python"}, variantCodeToken},
		{"markdown doc is heading-aware", core.FileRecord{Path: "docs/guide.md", Kind: core.FileKindDoc}, variantMarkup},
		{"rst doc is heading-aware", core.FileRecord{Path: "index.rst", Kind: core.FileKindDoc}, variantMarkup},
		{"plain text doc windows by sentence", core.FileRecord{Path: "NOTICE.txt", Kind: core.FileKindDoc}, variantPlaintext},
		{"config files window by sentence", core.FileRecord{Path: "config.yaml", Kind: core.FileKindConfig}, variantPlaintext},
		{"other files window by sentence", core.FileRecord{Path: "Makefile", Kind: core.FileKindOther}, variantPlaintext},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, selectVariant(tc.file))
		})
	}
}

const goSource = `// Package calc adds numbers.
package calc

// Add returns a+b.
func Add(a, b int) int {
	return a + b
}

type Counter struct{ n int }

// Incr bumps the counter.
func (c *Counter) Incr() { c.n++ }
`

func TestSplit_GoSource_OneChunkPerDeclaration(t *testing.T) {
	c := newTestChunker()
	file := core.FileRecord{Path: "calc.go", Kind: core.FileKindCode, Lang: "go"}

	chunks, err := c.Split(context.Background(), file, []byte(goSource))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var headings []string
	for _, ch := range chunks {
		assert.Equal(t, "code_ast", ch.Variant)
		assert.Equal(t, "calc.go", ch.Path)
		assert.LessOrEqual(t, ch.TokenCount, ch.MaxTokens)
		headings = append(headings, ch.Heading)
	}
	assert.Contains(t, headings, "package calc")
	assert.Contains(t, headings, "Add")
	assert.Contains(t, headings, "Counter.Incr", "method chunks carry receiver-qualified names")
}

func TestSplit_MalformedGo_FallsBackToTokenWindows(t *testing.T) {
	c := newTestChunker()
	file := core.FileRecord{Path: "broken.go", Kind: core.FileKindCode, Lang: "go"}

	chunks, err := c.Split(context.Background(), file, []byte("func {{{ not go at all"))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, "code_token", ch.Variant)
	}
}

func TestSplit_Markdown_PreservesSectionHeadings(t *testing.T) {
	c := newTestChunker()
	file := core.FileRecord{Path: "README.md", Kind: core.FileKindDoc}
	content := "intro line before any heading.\n\n# Install\n\nRun the installer.\n\n## Usage\n\nCall the binary.\n"

	chunks, err := c.Split(context.Background(), file, []byte(content))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "", chunks[0].Heading, "preamble before the first heading is untitled")
	assert.Equal(t, "Install", chunks[1].Heading)
	assert.Equal(t, "Usage", chunks[2].Heading)
	for _, ch := range chunks {
		assert.Equal(t, "markup", ch.Variant)
	}
}

func TestSplit_EmptyContent_YieldsNoChunks(t *testing.T) {
	c := newTestChunker()
	chunks, err := c.Split(context.Background(), core.FileRecord{Path: "empty.txt", Kind: core.FileKindDoc}, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_TokenBudgetInvariantHoldsAcrossVariants(t *testing.T) {
	c := newTestChunker()

	sentence := "This sentence repeats to fill the window with prose. "
	longProse := strings.Repeat(sentence, 200)
	longLine := strings.Repeat("word ", 3*PresetCode.MaxTokens) // a single line over the whole budget
	longCode := strings.Repeat("x := compute(a, b, c)\n", 400)

	cases := []struct {
		name    string
		file    core.FileRecord
		content string
	}{
		{"plaintext", core.FileRecord{Path: "notes.txt", Kind: core.FileKindDoc}, longProse},
		{"markup", core.FileRecord{Path: "doc.md", Kind: core.FileKindDoc}, "# One\n" + longProse + "\n# Two\n" + longProse},
		{"code token windows", core.FileRecord{Path: "big.py", Kind: core.FileKindCode, Lang: "python"}, longCode},
		{"oversized single line", core.FileRecord{Path: "minified.js", Kind: core.FileKindCode, Lang: "javascript"}, longLine},
		// a window packed to the budget from one-token lines recounts
		// almost double once the join separators are billed; this is the
		// worst case for the separator accounting
		{"many short lines", core.FileRecord{Path: "braces.c", Kind: core.FileKindCode, Lang: "c"}, strings.Repeat("x\n", 2000)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks, err := c.Split(context.Background(), tc.file, []byte(tc.content))
			require.NoError(t, err)
			require.NotEmpty(t, chunks)
			for i, ch := range chunks {
				assert.LessOrEqualf(t, ch.TokenCount, ch.MaxTokens, "chunk %d exceeds its token budget", i)
				assert.NotEmpty(t, ch.Text)
			}
		})
	}
}

func TestPresetByName_FallsBackToCode(t *testing.T) {
	assert.Equal(t, PresetDocumentation, PresetByName("documentation"))
	assert.Equal(t, PresetEnterprise, PresetByName("enterprise"))
	assert.Equal(t, PresetCode, PresetByName(""))
	assert.Equal(t, PresetCode, PresetByName("no-such-preset"))
}
