package embedder

import (
	"context"
	"fmt"

	"github.com/sevigo/reposync/internal/core"
)

// Kind names the backing embedding provider. Provider choice lives in
// configuration, not on the repository descriptor, since embeddings are
// a deployment-wide concern.
type Kind string

const (
	KindOllama Kind = "ollama"
	KindGemini Kind = "gemini"
)

// Config parameterizes New.
type Config struct {
	Kind       Kind
	Model      string
	Dimension  int
	OllamaURL  string
	GeminiKey  string
	BatchSize  int
	Concurrency int
}

// New builds a batched core.Embedder for the configured provider.
func New(ctx context.Context, cfg Config) (core.Embedder, error) {
	var inner core.Embedder
	switch cfg.Kind {
	case KindOllama:
		inner = NewOllama(cfg.OllamaURL, cfg.Model, cfg.Dimension)
	case KindGemini:
		var err error
		inner, err = NewGemini(ctx, cfg.GeminiKey, cfg.Model, cfg.Dimension)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("embedder: unsupported kind %q", cfg.Kind)
	}

	var opts []Option
	if cfg.BatchSize > 0 {
		opts = append(opts, WithBatchSize(cfg.BatchSize))
	}
	if cfg.Concurrency > 0 {
		opts = append(opts, WithConcurrency(cfg.Concurrency))
	}
	return NewBatched(inner, opts...), nil
}
