// Package llmclient implements the Generator component: a uniform
// core.Generator call surface over the Ollama and Gemini chat/completion
// APIs, mirroring internal/embedder's provider-dispatch shape for the
// embeddings call surface.
package llmclient

import (
	"context"
	"fmt"

	"github.com/sevigo/reposync/internal/core"
)

// Kind names the backing generation provider.
type Kind string

const (
	KindOllama Kind = "ollama"
	KindGemini Kind = "gemini"
)

// Config parameterizes New.
type Config struct {
	Kind      Kind
	Model     string
	OllamaURL string
	GeminiKey string
}

// New builds a core.Generator for the configured provider.
func New(ctx context.Context, cfg Config) (core.Generator, error) {
	switch cfg.Kind {
	case KindOllama:
		return NewOllama(cfg.OllamaURL, cfg.Model), nil
	case KindGemini:
		return NewGemini(ctx, cfg.GeminiKey, cfg.Model)
	default:
		return nil, fmt.Errorf("llmclient: unsupported kind %q", cfg.Kind)
	}
}
