package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/repomanager"
)

type fakeManager struct {
	record *core.RepositoryRecord
	err    error
}

func (f *fakeManager) Register(context.Context, core.RepositoryDescriptor, repomanager.RegisterOptions, string) (*core.RepositoryRecord, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeManager) Get(_ context.Context, id uuid.UUID) (*core.RepositoryRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}
func (f *fakeManager) List(context.Context) ([]*core.RepositoryRecord, error) { return nil, nil }
func (f *fakeManager) Delete(context.Context, uuid.UUID, string) error       { return nil }
func (f *fakeManager) Reindex(context.Context, uuid.UUID, string) error      { return nil }
func (f *fakeManager) Subscribe(context.Context, uuid.UUID) (<-chan core.IndexingUpdate, func(), error) {
	return nil, nil, nil
}
func (f *fakeManager) Stop() {}

type fakeEmbedder struct {
	model string
	vec   []float32
}

func (e *fakeEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return [][]float32{e.vec}, nil
}
func (e *fakeEmbedder) Dimension() int    { return len(e.vec) }
func (e *fakeEmbedder) ModelName() string { return e.model }

type fakeStore struct {
	chunks []core.ScoredChunk
}

func (s *fakeStore) BeginRun(context.Context, string) error    { return nil }
func (s *fakeStore) Upsert(context.Context, string, core.Chunk, []float32) error { return nil }
func (s *fakeStore) CommitRun(context.Context, string) error   { return nil }
func (s *fakeStore) DiscardRun(context.Context, string) error  { return nil }
func (s *fakeStore) DeleteByRepository(context.Context, string) error { return nil }
func (s *fakeStore) TopK(context.Context, string, []float32, int, float64) ([]core.ScoredChunk, error) {
	return s.chunks, nil
}
func (s *fakeStore) CountVectors(context.Context, string) (int, error) { return len(s.chunks), nil }

type fakeGenerator struct {
	model  string
	answer string
}

func (g *fakeGenerator) Generate(context.Context, string, float64, int) (string, core.TokenUsage, error) {
	return g.answer, core.TokenUsage{PromptTokens: 10, CompletionTokens: 5}, nil
}
func (g *fakeGenerator) Stream(context.Context, string, float64, int) (<-chan string, <-chan error) {
	content := make(chan string, 1)
	errc := make(chan error, 1)
	content <- g.answer
	close(content)
	close(errc)
	return content, errc
}
func (g *fakeGenerator) ModelName() string { return g.model }

type fakeTokenizer struct{}

func (fakeTokenizer) CountTokens(text string) int { return len(text) }
func (fakeTokenizer) Encode(text string) []int {
	ids := make([]int, len(text))
	for i, r := range []byte(text) {
		ids[i] = int(r)
	}
	return ids
}
func (fakeTokenizer) Decode(ids []int) string {
	b := make([]byte, len(ids))
	for i, id := range ids {
		b[i] = byte(id)
	}
	return string(b)
}
func (fakeTokenizer) ContextLimit(string) int { return 1000 }

func newTestEngine(t *testing.T, status core.Status, embedderModel string, chunks []core.ScoredChunk) *Engine {
	t.Helper()
	record := &core.RepositoryRecord{
		ID:            uuid.New(),
		Status:        status,
		EmbedderModel: embedderModel,
	}
	e, err := New(
		&fakeManager{record: record},
		&fakeEmbedder{model: "nomic-embed-text", vec: []float32{0.1, 0.2}},
		&fakeStore{chunks: chunks},
		&fakeGenerator{model: "gpt-4", answer: "the answer"},
		fakeTokenizer{},
		Config{ReservedOutputTokens: 100},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestAnswer_NotReadyWhenIndexingIncomplete(t *testing.T) {
	e := newTestEngine(t, core.StatusIndexing, "nomic-embed-text", nil)
	_, err := e.Answer(context.Background(), core.QueryRequest{RepositoryID: uuid.New(), Question: "how does this work?"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if core.KindOf(err) != core.KindNotReady {
		t.Fatalf("expected KindNotReady, got %v", core.KindOf(err))
	}
}

func TestAnswer_EmbedderMismatchIsFatal(t *testing.T) {
	e := newTestEngine(t, core.StatusCompleted, "a-different-model", nil)
	_, err := e.Answer(context.Background(), core.QueryRequest{RepositoryID: uuid.New(), Question: "how does this work?"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if core.KindOf(err) != core.KindConfig {
		t.Fatalf("expected KindConfig, got %v", core.KindOf(err))
	}
}

func TestAnswer_ReturnsCitationsAndClampedConfidence(t *testing.T) {
	chunks := []core.ScoredChunk{
		{Chunk: core.Chunk{Path: "a.go", StartByte: 0, EndByte: 10, Text: "package a"}, Score: 0.9},
		{Chunk: core.Chunk{Path: "b.go", StartByte: 0, EndByte: 10, Text: "package b"}, Score: 0.7},
	}
	e := newTestEngine(t, core.StatusCompleted, "nomic-embed-text", chunks)

	resp, err := e.Answer(context.Background(), core.QueryRequest{RepositoryID: uuid.New(), Question: "what does a.go do?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.Answer != "the answer" {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if len(resp.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(resp.Citations))
	}
	want := (0.9 + 0.7) / 2
	if resp.Confidence != want {
		t.Fatalf("confidence = %v, want %v", resp.Confidence, want)
	}
}

func TestAssemble_TruncatesMiddleOfChunkListUnderTightBudget(t *testing.T) {
	chunks := make([]core.ScoredChunk, 5)
	for i := range chunks {
		chunks[i] = core.ScoredChunk{Chunk: core.Chunk{Path: "f.go", Text: "some chunk body text that takes up space"}, Score: 1}
	}
	e := newTestEngine(t, core.StatusCompleted, "nomic-embed-text", chunks)
	e.cfg.ReservedOutputTokens = 1000 - 50 // leave a tight budget against the 1000-char fake context limit

	prompt, kept, err := e.assemble(core.QueryRequest{Question: "q"}, core.RepositoryDescriptor{}, chunks)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(kept) >= len(chunks) {
		t.Fatalf("expected truncation, kept %d of %d chunks", len(kept), len(chunks))
	}
	if prompt == "" {
		t.Fatal("expected non-empty prompt")
	}
}

func TestStream_EmitsSourceContentAndComplete(t *testing.T) {
	chunks := []core.ScoredChunk{{Chunk: core.Chunk{Path: "a.go"}, Score: 0.5}}
	e := newTestEngine(t, core.StatusCompleted, "nomic-embed-text", chunks)

	var kinds []core.StreamFrameKind
	for frame := range e.Stream(context.Background(), core.QueryRequest{RepositoryID: uuid.New(), Question: "q"}) {
		kinds = append(kinds, frame.Kind)
	}

	if len(kinds) < 3 {
		t.Fatalf("expected at least source+content+complete frames, got %v", kinds)
	}
	if kinds[0] != core.StreamSource {
		t.Fatalf("expected first frame to be Source, got %v", kinds[0])
	}
	if kinds[len(kinds)-1] != core.StreamComplete {
		t.Fatalf("expected last frame to be Complete, got %v", kinds[len(kinds)-1])
	}
}
