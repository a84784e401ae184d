// Package embedder batches text into provider calls and returns
// fixed-dimension, unit-normalized vectors.
package embedder

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/retry"
)

const defaultBatchSize = 500

// Batched wraps a single-call core.Embedder (one HTTP/SDK round trip per
// Embed invocation) with batching, bounded concurrency, per-batch retry,
// and unit normalization. Batch dispatch fans out through an
// errgroup.SetLimit-bounded group.
type Batched struct {
	inner       core.Embedder
	batchSize   int
	concurrency int
	retryCfg    retry.Config
}

// Option configures a Batched embedder.
type Option func(*Batched)

// WithBatchSize overrides the default batch size of 500.
func WithBatchSize(n int) Option {
	return func(b *Batched) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithConcurrency bounds how many batches are in flight at once.
func WithConcurrency(n int) Option {
	return func(b *Batched) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithRetry overrides the default retry discipline.
func WithRetry(cfg retry.Config) Option {
	return func(b *Batched) { b.retryCfg = cfg }
}

// NewBatched wraps inner (an ollamaEmbedder or geminiEmbedder) with
// batching/retry/normalization.
func NewBatched(inner core.Embedder, opts ...Option) *Batched {
	b := &Batched{inner: inner, batchSize: defaultBatchSize, concurrency: 4, retryCfg: retry.DefaultConfig()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Embed implements core.Embedder: input batch is an ordered sequence of
// text blobs; output batch preserves that order regardless of which
// internal batch/goroutine produced each vector.
func (b *Batched) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batches := chunkStrings(texts, b.batchSize)
	results := make([][][]float32, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			var vecs [][]float32
			err := retry.Do(gctx, b.retryCfg, core.IsRetryable, func(ctx context.Context) error {
				v, embedErr := b.inner.Embed(ctx, batch)
				if embedErr != nil {
					return embedErr
				}
				vecs = v
				return nil
			})
			if err != nil {
				return fmt.Errorf("embed batch %d: %w", i, err)
			}
			results[i] = normalizeAll(vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (b *Batched) Dimension() int  { return b.inner.Dimension() }
func (b *Batched) ModelName() string { return b.inner.ModelName() }

func chunkStrings(texts []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(texts); i += size {
		end := i + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[i:end])
	}
	return out
}

// normalizeAll unit-normalizes every vector so cosine-similarity search
// (Vector Store's TopK) can use a plain dot product.
func normalizeAll(vecs [][]float32) [][]float32 {
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		out[i] = normalize(v)
	}
	return out
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
