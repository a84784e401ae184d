package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/sevigo/reposync/internal/core"
)

// Kind names the backing store, mirroring embedder.Kind's
// dispatch-by-configuration shape.
type Kind string

const (
	KindMemory Kind = "memory"
	KindQdrant Kind = "qdrant"
)

// Config parameterizes New.
type Config struct {
	Kind       Kind
	QdrantHost string
	QdrantPort int
	QdrantKey  string
	QdrantTLS  bool
	Embedder   string // embedder model name, fed into collection naming
	Dimension  int
}

// New builds a core.VectorStore for the configured backend.
func New(_ context.Context, cfg Config) (core.VectorStore, error) {
	switch cfg.Kind {
	case "", KindMemory:
		return NewMemory(), nil
	case KindQdrant:
		client, err := qdrant.NewClient(&qdrant.Config{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			APIKey: cfg.QdrantKey,
			UseTLS: cfg.QdrantTLS,
		})
		if err != nil {
			return nil, core.NewError(core.KindConfig, "vectorstore.new", err)
		}
		return NewQdrant(client, cfg.Embedder, cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("vectorstore: unsupported kind %q", cfg.Kind)
	}
}
