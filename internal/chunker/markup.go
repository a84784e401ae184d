package chunker

import (
	"regexp"
	"strings"

	"github.com/sevigo/reposync/internal/core"
)

var (
	mdHeadingRe    = regexp.MustCompile(`^#{1,6}\s+`)
	rstUnderlineRe = regexp.MustCompile(`^[=\-~^"'` + "`" + `*+#]{3,}$`)
)

// section is one heading-delimited span of a markup document.
type section struct {
	heading    string
	start, end int
}

// headingSections splits content at heading boundaries: a Markdown ATX
// heading (`^#{1,6}\s`) or a Sphinx-style RST title, whose underline is a
// line of three or more characters drawn from the RST punctuation set
// (=-~^"'`*+#); the underline's length is not compared with the title's,
// and mixed characters are accepted. A document with no detected headings is returned as a single,
// untitled section so the caller always has something to window.
func headingSections(content []byte) []section {
	lines := lineUnits(content)
	var headingIdx []int
	for i, l := range lines {
		text := strings.TrimRight(l.text, "\r")
		if mdHeadingRe.MatchString(text) {
			headingIdx = append(headingIdx, i)
			continue
		}
		if i+1 < len(lines) {
			title := strings.TrimSpace(text)
			underline := strings.TrimSpace(strings.TrimRight(lines[i+1].text, "\r"))
			if title != "" && len(underline) >= 3 && rstUnderlineRe.MatchString(underline) {
				headingIdx = append(headingIdx, i)
			}
		}
	}
	if len(headingIdx) == 0 {
		return []section{{start: 0, end: len(content)}}
	}

	var out []section
	if headingIdx[0] > 0 {
		out = append(out, section{start: 0, end: lines[headingIdx[0]].start})
	}
	for k, idx := range headingIdx {
		end := len(content)
		if k+1 < len(headingIdx) {
			end = lines[headingIdx[k+1]].start
		}
		heading := strings.TrimSpace(strings.TrimLeft(strings.TrimRight(lines[idx].text, "\r"), "# "))
		out = append(out, section{heading: heading, start: lines[idx].start, end: end})
	}
	return out
}

// markupChunker preserves section hierarchy: split at heading boundaries
// first, then within any oversized section by sentence.
type markupChunker struct {
	tok core.Tokenizer
}

func (c *markupChunker) split(file core.FileRecord, content []byte, preset Preset) []core.Chunk {
	var out []core.Chunk
	for _, s := range headingSections(content) {
		body := content[s.start:s.end]
		if c.tok.CountTokens(string(body)) <= preset.MaxTokens {
			out = append(out, core.Chunk{
				Path:       file.Path,
				StartByte:  s.start,
				EndByte:    s.end,
				Text:       string(body),
				TokenCount: c.tok.CountTokens(string(body)),
				MaxTokens:  preset.MaxTokens,
				Variant:    "markup",
				Language:   file.Lang,
				Heading:    s.heading,
			})
			continue
		}
		// sentenceUnits returns offsets relative to body; rebase onto the
		// full file's byte offsets before windowing.
		windows := windowUnits(rebase(sentenceUnits(body), s.start), c.tok, preset.MaxTokens, preset.Overlap)
		for _, w := range windows {
			text, start, end := joinWindow(w)
			out = append(out, core.Chunk{
				Path:       file.Path,
				StartByte:  start,
				EndByte:    end,
				Text:       text,
				TokenCount: c.tok.CountTokens(text),
				MaxTokens:  preset.MaxTokens,
				Variant:    "markup",
				Language:   file.Lang,
				Heading:    s.heading,
			})
		}
	}
	return out
}

// rebase shifts every unit's byte offsets by base, converting a
// sub-slice's local offsets back into the original file's coordinates.
func rebase(units []unit, base int) []unit {
	out := make([]unit, len(units))
	for i, u := range units {
		out[i] = unit{text: u.text, start: u.start + base, end: u.end + base}
	}
	return out
}
