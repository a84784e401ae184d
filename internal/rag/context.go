package rag

import (
	"fmt"
	"strings"

	"github.com/sevigo/reposync/internal/core"
)

// boundHistory keeps at most maxMessages of the most recent conversation
// turns, then trims the joined string down to maxChars by dropping from
// the front (oldest content first).
func boundHistory(history []string, maxMessages, maxChars int) string {
	if maxMessages > 0 && len(history) > maxMessages {
		history = history[len(history)-maxMessages:]
	}
	joined := strings.Join(history, "\n")
	if maxChars > 0 && len(joined) > maxChars {
		joined = joined[len(joined)-maxChars:]
	}
	return joined
}

// buildContext renders one labeled block per retrieved chunk,
// deduplicating on path+span so a chunk retrieved twice (e.g. via
// overlapping queries) only contributes one block.
func buildContext(chunks []core.ScoredChunk) string {
	var b strings.Builder
	seen := make(map[string]struct{})

	for _, sc := range chunks {
		key := fmt.Sprintf("%s:%d:%d", sc.Chunk.Path, sc.Chunk.StartByte, sc.Chunk.EndByte)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		b.WriteString("---\n")
		fmt.Fprintf(&b, "File: %s (bytes %d-%d)\n", sc.Chunk.Path, sc.Chunk.StartByte, sc.Chunk.EndByte)
		if sc.Chunk.Heading != "" {
			fmt.Fprintf(&b, "Section: %s\n", sc.Chunk.Heading)
		}
		b.WriteString("\n")
		b.WriteString(sc.Chunk.Text)
		b.WriteString("\n---\n\n")
	}
	return b.String()
}

func citationsFor(chunks []core.ScoredChunk) []core.Citation {
	out := make([]core.Citation, len(chunks))
	for i, sc := range chunks {
		out[i] = core.Citation{
			Path:  sc.Chunk.Path,
			Start: sc.Chunk.StartByte,
			End:   sc.Chunk.EndByte,
			Score: sc.Score,
		}
	}
	return out
}

// meanScore returns the mean Score across chunks, clamped to [0,1].
// Zero chunks reports zero confidence.
func meanScore(chunks []core.ScoredChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var sum float64
	for _, sc := range chunks {
		sum += sc.Score
	}
	mean := sum / float64(len(chunks))
	if mean < 0 {
		return 0
	}
	if mean > 1 {
		return 1
	}
	return mean
}
