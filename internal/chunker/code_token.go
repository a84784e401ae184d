package chunker

import "github.com/sevigo/reposync/internal/core"

// codeTokenChunker is the token-bounded windowed splitter with
// line-boundary snapping, used for every code file without an AST
// splitter (every language but Go; see DESIGN.md for why no other
// language has one in this tree).
type codeTokenChunker struct {
	tok core.Tokenizer
}

func (c *codeTokenChunker) split(file core.FileRecord, content []byte, preset Preset) []core.Chunk {
	windows := windowUnits(lineUnits(content), c.tok, preset.MaxTokens, preset.Overlap)
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
			Variant:    "code_token",
			Language:   file.Lang,
		})
	}
	return out
}
