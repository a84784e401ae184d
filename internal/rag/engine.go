// Package rag implements the RAG Engine: given a repository id and a
// question, it embeds the question, retrieves the repository's most
// relevant chunks, assembles a bounded prompt, and calls an LLM for either
// a single answer or a stream of frames.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/repomanager"
)

const (
	defaultTopK                 = 5
	defaultReservedOutputTokens = 1024
	defaultMaxContextMessages   = 20
	defaultMaxContextChars      = 8000
)

// Config parameterizes New. Zero values fall back to the defaults above.
type Config struct {
	TopK                 int
	ScoreThreshold        float64
	Temperature           float64
	MaxOutputTokens       int
	ReservedOutputTokens  int
	MaxContextMessages    int
	MaxContextChars       int
	Provider              ModelProvider
}

// Engine answers questions about a registered, fully-indexed
// repository.
type Engine struct {
	manager   repomanager.RepositoryManager
	embedder  core.Embedder
	store     core.VectorStore
	generator core.Generator
	tokenizer core.Tokenizer
	prompts   *promptManager
	cfg       Config
}

// New builds an Engine, loading its embedded prompt templates.
func New(
	manager repomanager.RepositoryManager,
	embedder core.Embedder,
	store core.VectorStore,
	generator core.Generator,
	tokenizer core.Tokenizer,
	cfg Config,
) (*Engine, error) {
	prompts, err := newPromptManager()
	if err != nil {
		return nil, fmt.Errorf("rag: %w", err)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.ReservedOutputTokens <= 0 {
		cfg.ReservedOutputTokens = defaultReservedOutputTokens
	}
	if cfg.MaxContextMessages <= 0 {
		cfg.MaxContextMessages = defaultMaxContextMessages
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = defaultMaxContextChars
	}
	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	return &Engine{
		manager:   manager,
		embedder:  embedder,
		store:     store,
		generator: generator,
		tokenizer: tokenizer,
		prompts:   prompts,
		cfg:       cfg,
	}, nil
}

// Answer runs the full retrieve-and-generate algorithm and returns one
// completed response.
func (e *Engine) Answer(ctx context.Context, req core.QueryRequest) (*core.QueryResponse, error) {
	prompt, chunks, err := e.prepare(ctx, req)
	if errors.Is(err, errNoIndexedContent) {
		return &core.QueryResponse{Answer: noIndexedContentAnswer}, nil
	}
	if err != nil {
		return nil, err
	}

	answer, usage, err := e.generator.Generate(ctx, prompt, e.cfg.Temperature, e.cfg.MaxOutputTokens)
	if err != nil {
		return nil, err
	}

	return &core.QueryResponse{
		Answer:     answer,
		Citations:  citationsFor(chunks),
		Confidence: meanScore(chunks),
		TokenUsage: usage,
	}, nil
}

// Stream runs the same algorithm but emits frames as the LLM produces
// them: a Source frame per citation once retrieval completes, Content
// frames as they arrive, and a terminal Complete or Error frame. The
// returned channel is always closed by the driving goroutine.
func (e *Engine) Stream(ctx context.Context, req core.QueryRequest) <-chan core.StreamFrame {
	out := make(chan core.StreamFrame)

	go func() {
		defer close(out)

		prompt, chunks, err := e.prepare(ctx, req)
		if errors.Is(err, errNoIndexedContent) {
			out <- core.StreamFrame{Kind: core.StreamContent, Content: noIndexedContentAnswer}
			out <- core.StreamFrame{Kind: core.StreamComplete, IsFinal: true}
			return
		}
		if err != nil {
			out <- core.StreamFrame{Kind: core.StreamError, Err: err, IsFinal: true}
			return
		}

		for _, c := range citationsFor(chunks) {
			c := c
			select {
			case out <- core.StreamFrame{Kind: core.StreamSource, Source: &c}:
			case <-ctx.Done():
				return
			}
		}

		content, errc := e.generator.Stream(ctx, prompt, e.cfg.Temperature, e.cfg.MaxOutputTokens)
		for content != nil || errc != nil {
			select {
			case text, ok := <-content:
				if !ok {
					content = nil
					continue
				}
				select {
				case out <- core.StreamFrame{Kind: core.StreamContent, Content: text}:
				case <-ctx.Done():
					return
				}
			case genErr, ok := <-errc:
				if !ok {
					errc = nil
					continue
				}
				if genErr != nil {
					out <- core.StreamFrame{Kind: core.StreamError, Err: genErr, IsFinal: true}
					return
				}
			}
		}

		out <- core.StreamFrame{Kind: core.StreamComplete, IsFinal: true}
	}()

	return out
}

// prepare runs everything the algorithm shares between Answer and Stream:
// the readiness/mismatch checks, question embedding, retrieval, and
// bounded prompt assembly.
func (e *Engine) prepare(ctx context.Context, req core.QueryRequest) (string, []core.ScoredChunk, error) {
	record, err := e.manager.Get(ctx, req.RepositoryID)
	if err != nil {
		return "", nil, err
	}
	// A record is queryable once it has a committed index. During a
	// reindex the status is Indexing again but IndexedAt is still set
	// from the prior run, and the store keeps serving that run's
	// committed state until the new run commits; only a repository
	// that has never completed is NotReady.
	if record.Status != core.StatusCompleted && record.IndexedAt == nil {
		return "", nil, core.NewErrorf(core.KindNotReady, "rag.answer", "repository %s is not ready (status %s)", record.ID, record.Status)
	}
	if e.embedder.ModelName() != record.EmbedderModel {
		return "", nil, core.NewErrorf(core.KindConfig, "rag.answer", "embedder model %q does not match %q used to index repository %s", e.embedder.ModelName(), record.EmbedderModel, record.ID)
	}

	vectors, err := e.embedder.Embed(ctx, []string{req.Question})
	if err != nil {
		return "", nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	chunks, err := e.store.TopK(ctx, record.ID.String(), vectors[0], topK, e.cfg.ScoreThreshold)
	if err != nil {
		return "", nil, err
	}
	if len(chunks) == 0 {
		return "", nil, errNoIndexedContent
	}

	return e.assemble(req, record.Descriptor, chunks)
}

// errNoIndexedContent signals prepare found nothing to ground an answer
// on, handled by Answer/Stream as an empty-citations answer rather than
// surfaced as a query error.
var errNoIndexedContent = fmt.Errorf("no indexed content")

const noIndexedContentAnswer = "I don't have any indexed content to answer that question from."

// assemble renders the prompt, truncating the middle of the chunk list
// until it fits context_limit(model) - reserved_output_tokens.
func (e *Engine) assemble(req core.QueryRequest, desc core.RepositoryDescriptor, chunks []core.ScoredChunk) (string, []core.ScoredChunk, error) {
	history := boundHistory(req.Context, e.cfg.MaxContextMessages, e.cfg.MaxContextChars)
	limit := e.tokenizer.ContextLimit(e.generator.ModelName()) - e.cfg.ReservedOutputTokens
	if limit < 0 {
		limit = 0
	}

	// Repository-scoped custom instructions ride ahead of the context
	// blocks when the descriptor carries them.
	var instructions string
	if desc.Config != nil && len(desc.Config.CustomInstructions) > 0 {
		instructions = strings.Join(desc.Config.CustomInstructions, "\n")
	}

	var prompt string
	for {
		data := questionPromptData{Question: req.Question, Context: buildContext(chunks), History: history, Instructions: instructions}
		rendered, err := e.prompts.render(e.cfg.Provider, data)
		if err != nil {
			return "", nil, err
		}
		prompt = rendered
		if e.tokenizer.CountTokens(prompt) <= limit || len(chunks) <= 1 {
			break
		}
		chunks = dropMiddle(chunks)
	}

	if e.tokenizer.CountTokens(prompt) > limit {
		ids := e.tokenizer.Encode(prompt)
		if len(ids) > limit {
			prompt = e.tokenizer.Decode(ids[:limit])
		}
	}
	return prompt, chunks, nil
}

// dropMiddle removes the element at the midpoint of chunks, trimming the
// list from the center outward so both the strongest and weakest matches
// survive longest.
func dropMiddle(chunks []core.ScoredChunk) []core.ScoredChunk {
	mid := len(chunks) / 2
	out := make([]core.ScoredChunk, 0, len(chunks)-1)
	out = append(out, chunks[:mid]...)
	out = append(out, chunks[mid+1:]...)
	return out
}
