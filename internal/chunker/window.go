package chunker

import (
	"strings"

	"github.com/sevigo/reposync/internal/core"
)

// unit is one line- or sentence-sized fragment considered as a windowing
// boundary, carrying its byte offsets within the original content so the
// resulting Chunk.StartByte/EndByte stay accurate.
type unit struct {
	text  string
	start int
	end   int
}

// windowUnits packs units into chunks bounded by maxTokens, snapping
// every cut to a unit boundary (never mid-line, never mid-sentence), and
// carries back trailing units from the end of one chunk into the start
// of the next until the overlap token budget is spent. Shared by the
// non-AST code variant (line units) and the plaintext/markup variants
// (sentence units).
//
// joinWindow re-inserts a newline between every pair of units, and the
// tokenizer charges for those newlines, so the packing decision budgets
// one separator per join; otherwise a window of many short lines would
// recount well over maxTokens once joined.
func windowUnits(units []unit, tok core.Tokenizer, maxTokens, overlapTokens int) [][]unit {
	if len(units) == 0 {
		return nil
	}
	sep := tok.CountTokens("\n")
	var windows [][]unit
	var current []unit
	currentTokens := 0
	carried := false // current holds only an overlap carry, already flushed once

	flush := func() {
		if len(current) == 0 {
			return
		}
		windows = append(windows, current)
	}

	i := 0
	for i < len(units) {
		u := units[i]
		t := tok.CountTokens(u.text)
		if t > maxTokens {
			// A single unit over the whole budget can't snap to a
			// boundary; hard-split it by token so the per-chunk
			// token_count <= max_tokens invariant still holds.
			if !carried {
				flush()
			}
			for _, piece := range hardSplit(u, tok, maxTokens) {
				windows = append(windows, []unit{piece})
			}
			current = nil
			currentTokens = 0
			carried = false
			i++
			continue
		}
		cost := t
		if len(current) > 0 {
			cost += sep
		}
		if len(current) > 0 && currentTokens+cost > maxTokens {
			if carried {
				// The overlap carry alone can't absorb the next unit;
				// drop it rather than flush the same window twice.
				current = nil
				currentTokens = 0
				carried = false
				continue
			}
			flush()
			current = overlapTail(current, tok, overlapTokens)
			currentTokens = sumTokens(current, tok)
			carried = len(current) > 0
			continue
		}
		current = append(current, u)
		currentTokens += cost
		carried = false
		i++
	}
	if !carried {
		flush()
	}
	return windows
}

// hardSplit slices one oversized unit into token-budget-sized pieces via
// the tokenizer's encode -> slice -> decode round trip, keeping byte
// offsets contiguous with the original unit.
func hardSplit(u unit, tok core.Tokenizer, maxTokens int) []unit {
	ids := tok.Encode(u.text)
	var out []unit
	start := u.start
	for len(ids) > 0 {
		n := maxTokens
		if n > len(ids) {
			n = len(ids)
		}
		text := tok.Decode(ids[:n])
		end := start + len(text)
		out = append(out, unit{text: text, start: start, end: end})
		ids = ids[n:]
		start = end
	}
	return out
}

// overlapTail returns the trailing units of a just-flushed window whose
// combined token count is closest to (without exceeding) overlapTokens,
// seeding the next window's context.
func overlapTail(window []unit, tok core.Tokenizer, overlapTokens int) []unit {
	if overlapTokens <= 0 {
		return nil
	}
	sep := tok.CountTokens("\n")
	total := 0
	cut := len(window)
	for cut > 0 {
		t := tok.CountTokens(window[cut-1].text)
		if cut < len(window) {
			t += sep
		}
		if total+t > overlapTokens {
			break
		}
		total += t
		cut--
	}
	return append([]unit{}, window[cut:]...)
}

// sumTokens totals units the way joinWindow will render them: text tokens
// plus one newline separator per join.
func sumTokens(units []unit, tok core.Tokenizer) int {
	if len(units) == 0 {
		return 0
	}
	total := (len(units) - 1) * tok.CountTokens("\n")
	for _, u := range units {
		total += tok.CountTokens(u.text)
	}
	return total
}

// joinWindow concatenates a window's units back into chunk text and byte
// span.
func joinWindow(window []unit) (text string, start, end int) {
	if len(window) == 0 {
		return "", 0, 0
	}
	var b strings.Builder
	for i, u := range window {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(u.text)
	}
	return b.String(), window[0].start, window[len(window)-1].end
}

// lineUnits splits content into one unit per line, preserving byte
// offsets, for the line-boundary-snapping code_token variant.
func lineUnits(content []byte) []unit {
	var out []unit
	start := 0
	for i := 0; i <= len(content); i++ {
		if i == len(content) || content[i] == '\n' {
			out = append(out, unit{text: string(content[start:i]), start: start, end: i})
			start = i + 1
		}
	}
	return out
}
