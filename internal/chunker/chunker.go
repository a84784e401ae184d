// Package chunker splits one acquired file into token-bounded,
// retrieval-ready chunks using one of four variants selected by file
// kind and language. Token counting goes through the core.Tokenizer
// interface so the same model-keyed budgets apply everywhere.
package chunker

import (
	"context"
	"path"
	"strings"

	"github.com/sevigo/reposync/internal/core"
)

// chunkVariant names the selector probed by selectVariant, recorded on
// every Chunk for test verification.
type chunkVariant string

const (
	variantCodeAST    chunkVariant = "code_ast"
	variantCodeToken  chunkVariant = "code_token"
	variantMarkup     chunkVariant = "markup"
	variantPlaintext  chunkVariant = "plaintext"
)

// astCapableLangs lists the code languages with a working AST splitter.
// Only Go; see DESIGN.md for why no other language gets one in this
// tree.
var astCapableLangs = map[string]bool{"go": true}

// markupExts are the Doc-kind extensions the heading-boundary splitter
// understands; everything else Doc-kind (including extensionless README
// files and .txt) falls through to the plaintext splitter.
var markupExts = map[string]bool{"md": true, "markdown": true, "rst": true}

func selectVariant(file core.FileRecord) chunkVariant {
	switch file.Kind {
	case core.FileKindCode:
		if astCapableLangs[file.Lang] {
			return variantCodeAST
		}
		return variantCodeToken
	case core.FileKindDoc:
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(file.Path), "."))
		if markupExts[ext] {
			return variantMarkup
		}
		return variantPlaintext
	default:
		return variantPlaintext
	}
}

// Chunker dispatches to one of the four variant splitters and implements
// core.Chunker.
type Chunker struct {
	tok            core.Tokenizer
	codeAST        *codeASTChunker
	codeToken      *codeTokenChunker
	markup         *markupChunker
	plaintext      *plaintextChunker
	presetForKind  func(core.FileKind) Preset
}

// New builds a Chunker. presetForKind, if nil, uses PresetCode for Code
// files and PresetDocumentation for everything else, the default
// mapping a caller overrides to honor a repository-scoped preset
// selection.
func New(tok core.Tokenizer, presetForKind func(core.FileKind) Preset) *Chunker {
	if presetForKind == nil {
		presetForKind = defaultPresetForKind
	}
	return &Chunker{
		tok:           tok,
		codeAST:       &codeASTChunker{tok: tok},
		codeToken:     &codeTokenChunker{tok: tok},
		markup:        &markupChunker{tok: tok},
		plaintext:     &plaintextChunker{tok: tok},
		presetForKind: presetForKind,
	}
}

func defaultPresetForKind(kind core.FileKind) Preset {
	if kind == core.FileKindCode {
		return PresetCode
	}
	return PresetDocumentation
}

// Split implements core.Chunker. A Go-AST parse failure (malformed
// source) falls back to the token-windowed splitter rather than failing
// the whole file, since a syntax error in one file shouldn't abort
// indexing a repository (the spec's local-recovery policy for acquired
// files extends naturally to chunking failures of the same shape).
func (c *Chunker) Split(_ context.Context, file core.FileRecord, content []byte) ([]core.Chunk, error) {
	if len(content) == 0 {
		return nil, nil
	}
	preset := c.presetForKind(file.Kind)
	variant := selectVariant(file)

	var chunks []core.Chunk
	switch variant {
	case variantCodeAST:
		var err error
		chunks, err = c.codeAST.split(file, content, preset)
		if err != nil {
			chunks = c.codeToken.split(file, content, preset)
			variant = variantCodeToken
		}
	case variantCodeToken:
		chunks = c.codeToken.split(file, content, preset)
	case variantMarkup:
		chunks = c.markup.split(file, content, preset)
	default:
		chunks = c.plaintext.split(file, content, preset)
	}

	for i := range chunks {
		chunks[i].Variant = string(variant)
	}
	return chunks, nil
}
