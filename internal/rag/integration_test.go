package rag

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/vectorstore"
)

// TestAnswer_SingleDocumentRepository walks the full retrieve-and-generate
// path against the real in-memory store: a repository whose only indexed
// file says "The answer is 42." must be the single citation for a
// question about the answer.
func TestAnswer_SingleDocumentRepository(t *testing.T) {
	ctx := context.Background()
	repoID := uuid.New()
	store := vectorstore.NewMemory()

	chunk := core.Chunk{
		ID:           uuid.New(),
		RepositoryID: repoID,
		Path:         "answer.txt",
		EndByte:      18,
		Text:         "The answer is 42.",
		TokenCount:   5,
		MaxTokens:    400,
		Variant:      "plaintext",
	}
	if err := store.BeginRun(ctx, repoID.String()); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.Upsert(ctx, repoID.String(), chunk, []float32{1, 0}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.CommitRun(ctx, repoID.String()); err != nil {
		t.Fatalf("CommitRun: %v", err)
	}

	indexedAt := time.Now().UTC()
	record := &core.RepositoryRecord{
		ID:            repoID,
		Status:        core.StatusCompleted,
		EmbedderModel: "nomic-embed-text",
		IndexedAt:     &indexedAt,
	}

	e, err := New(
		&fakeManager{record: record},
		&fakeEmbedder{model: "nomic-embed-text", vec: []float32{1, 0}},
		store,
		&fakeGenerator{model: "gpt-4", answer: "The answer is 42."},
		fakeTokenizer{},
		Config{ScoreThreshold: 0.3, ReservedOutputTokens: 100},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := e.Answer(ctx, core.QueryRequest{RepositoryID: repoID, Question: "What is the answer?", TopK: 3})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if !strings.Contains(resp.Answer, "42") {
		t.Fatalf("answer %q does not contain %q", resp.Answer, "42")
	}
	if len(resp.Citations) != 1 {
		t.Fatalf("expected exactly one citation, got %d", len(resp.Citations))
	}
	if resp.Citations[0].Path != "answer.txt" {
		t.Fatalf("citation path = %q, want %q", resp.Citations[0].Path, "answer.txt")
	}
	if resp.Confidence < 0.99 || resp.Confidence > 1.0 {
		t.Fatalf("confidence = %v, want ~1.0", resp.Confidence)
	}
}

// TestAnswer_CitationsStayScopedToTheQueriedRepository indexes two
// repositories into one shared store and checks each query only ever
// cites its own repository's files.
func TestAnswer_CitationsStayScopedToTheQueriedRepository(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemory()
	indexedAt := time.Now().UTC()

	seed := func(repoID uuid.UUID, path, text string) {
		t.Helper()
		if err := store.BeginRun(ctx, repoID.String()); err != nil {
			t.Fatalf("BeginRun: %v", err)
		}
		chunk := core.Chunk{ID: uuid.New(), RepositoryID: repoID, Path: path, Text: text, TokenCount: 3, MaxTokens: 400}
		if err := store.Upsert(ctx, repoID.String(), chunk, []float32{1, 0}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if err := store.CommitRun(ctx, repoID.String()); err != nil {
			t.Fatalf("CommitRun: %v", err)
		}
	}

	repoA := uuid.New()
	repoB := uuid.New()
	seed(repoA, "a/server.go", "repository A serves HTTP")
	seed(repoB, "b/worker.go", "repository B runs workers")

	ask := func(repoID uuid.UUID) *core.QueryResponse {
		t.Helper()
		record := &core.RepositoryRecord{ID: repoID, Status: core.StatusCompleted, EmbedderModel: "nomic-embed-text", IndexedAt: &indexedAt}
		e, err := New(
			&fakeManager{record: record},
			&fakeEmbedder{model: "nomic-embed-text", vec: []float32{1, 0}},
			store,
			&fakeGenerator{model: "gpt-4", answer: "answer"},
			fakeTokenizer{},
			Config{ScoreThreshold: 0.3, ReservedOutputTokens: 100},
		)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		resp, err := e.Answer(ctx, core.QueryRequest{RepositoryID: repoID, Question: "what does this repo do?"})
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		return resp
	}

	respA := ask(repoA)
	respB := ask(repoB)

	if len(respA.Citations) != 1 || respA.Citations[0].Path != "a/server.go" {
		t.Fatalf("repo A citations leaked: %+v", respA.Citations)
	}
	if len(respB.Citations) != 1 || respB.Citations[0].Path != "b/worker.go" {
		t.Fatalf("repo B citations leaked: %+v", respB.Citations)
	}
}

func TestAnswer_UnknownRepositoryID_SurfacesNotFound(t *testing.T) {
	e, err := New(
		&fakeManager{err: core.NewErrorf(core.KindNotFound, "repomanager.get", "repository not found")},
		&fakeEmbedder{model: "nomic-embed-text", vec: []float32{1, 0}},
		&fakeStore{},
		&fakeGenerator{model: "gpt-4", answer: "never"},
		fakeTokenizer{},
		Config{},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = e.Answer(context.Background(), core.QueryRequest{RepositoryID: uuid.New(), Question: "anyone home?"})
	if err == nil {
		t.Fatal("expected error for unknown repository id")
	}
	if core.KindOf(err) != core.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", core.KindOf(err))
	}
}

func TestAnswer_QueryableDuringReindex(t *testing.T) {
	// a record mid-reindex has status Indexing but a committed prior run
	// (IndexedAt set); queries keep answering from that committed state
	indexedAt := time.Now().UTC()
	record := &core.RepositoryRecord{
		ID:            uuid.New(),
		Status:        core.StatusIndexing,
		EmbedderModel: "nomic-embed-text",
		IndexedAt:     &indexedAt,
	}
	chunks := []core.ScoredChunk{{Chunk: core.Chunk{Path: "a.go", Text: "package a"}, Score: 0.8}}

	e, err := New(
		&fakeManager{record: record},
		&fakeEmbedder{model: "nomic-embed-text", vec: []float32{0.1, 0.2}},
		&fakeStore{chunks: chunks},
		&fakeGenerator{model: "gpt-4", answer: "still answering"},
		fakeTokenizer{},
		Config{},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := e.Answer(context.Background(), core.QueryRequest{RepositoryID: record.ID, Question: "q"})
	if err != nil {
		t.Fatalf("Answer during reindex: %v", err)
	}
	if resp.Answer != "still answering" {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
}

func TestAnswer_EmptyIndexReturnsLabeledAnswer(t *testing.T) {
	e := newTestEngine(t, core.StatusCompleted, "nomic-embed-text", nil)

	resp, err := e.Answer(context.Background(), core.QueryRequest{RepositoryID: uuid.New(), Question: "anything at all?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(resp.Citations) != 0 {
		t.Fatalf("expected no citations, got %d", len(resp.Citations))
	}
	if !strings.Contains(resp.Answer, "indexed content") {
		t.Fatalf("expected the no-indexed-content label, got %q", resp.Answer)
	}
}
