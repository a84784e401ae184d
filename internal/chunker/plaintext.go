package chunker

import (
	"regexp"

	"github.com/sevigo/reposync/internal/core"
)

// sentenceBoundary matches a sentence terminator followed by whitespace,
// the split points for the plain-text variant's sentence-aware window.
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// sentenceUnits splits content into one unit per sentence, preserving
// byte offsets. Text after the last terminator (or a whole file with no
// terminator) becomes a single unit; it is not split by line here, and
// windowUnits hard-splits such a unit when it exceeds the budget.
func sentenceUnits(content []byte) []unit {
	var out []unit
	start := 0
	locs := sentenceBoundary.FindAllIndex(content, -1)
	for _, loc := range locs {
		end := loc[1]
		out = append(out, unit{text: string(content[start:end]), start: start, end: end})
		start = end
	}
	if start < len(content) {
		out = append(out, unit{text: string(content[start:]), start: start, end: len(content)})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// plaintextChunker is the sentence-aware windowed splitter used for
// plain text, Config-kind files, and any Doc file the markup splitter
// doesn't recognize as heading-structured.
type plaintextChunker struct {
	tok core.Tokenizer
}

func (c *plaintextChunker) split(file core.FileRecord, content []byte, preset Preset) []core.Chunk {
	units := sentenceUnits(content)
	windows := windowUnits(units, c.tok, preset.MaxTokens, preset.Overlap)
	out := make([]core.Chunk, 0, len(windows))
	for _, w := range windows {
		text, start, end := joinWindow(w)
		out = append(out, core.Chunk{
			Path:       file.Path,
			StartByte:  start,
			EndByte:    end,
			Text:       text,
			TokenCount: c.tok.CountTokens(text),
			MaxTokens:  preset.MaxTokens,
			Variant:    "plaintext",
			Language:   file.Lang,
		})
	}
	return out
}
