package core

import (
	"context"
)

// RepositoryMetadata is the provider-reported metadata for one repository.
type RepositoryMetadata struct {
	Name          string
	Description   string
	DefaultBranch string
	Language      string
	Private       bool
}

// TreeEntry is one blob-like entry returned by a Provider's Tree call; tree
// (directory) entries are excluded by the adapter before this type is built.
type TreeEntry struct {
	Path string
	Size int64
	SHA  string
}

// Provider is the uniform capability set implemented by every hosting
// platform adapter (GitHub, GitLab, Bitbucket, Gitea, Local).
type Provider interface {
	Metadata(ctx context.Context, owner, repo string) (RepositoryMetadata, error)
	Tree(ctx context.Context, owner, repo, branch string) ([]TreeEntry, error)
	File(ctx context.Context, owner, repo, path, branch string) ([]byte, error)
	Readme(ctx context.Context, owner, repo, branch string) ([]byte, string, error)
	Exists(ctx context.Context, owner, repo string) (bool, error)
	DefaultBranch(ctx context.Context, owner, repo string) (string, error)
}

// AcquiredFile is one entry of the Source Acquirer's lazy output sequence.
type AcquiredFile struct {
	Path  string
	Bytes []byte
	Kind  FileKind
	Lang  string
}

// Acquirer selects an access mode for a descriptor and yields the
// repository's files.
type Acquirer interface {
	Acquire(ctx context.Context, desc RepositoryDescriptor, cfg AccessConfig) (RepositoryAccess, <-chan AcquiredFile, <-chan error)
}

// Chunker splits one acquired file's bytes into chunks.
type Chunker interface {
	Split(ctx context.Context, file FileRecord, content []byte) ([]Chunk, error)
}

// Embedder batches text and returns fixed-dimension, unit-normalized vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelName() string
}

// ScoredChunk is one Vector Store retrieval result.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// VectorStore is the per-repository vector collection contract. BeginRun
// and CommitRun bracket one indexing run's upserts so concurrent readers
// never observe a partial commit.
type VectorStore interface {
	BeginRun(ctx context.Context, repositoryID string) error
	Upsert(ctx context.Context, repositoryID string, chunk Chunk, vector []float32) error
	CommitRun(ctx context.Context, repositoryID string) error
	DiscardRun(ctx context.Context, repositoryID string) error
	DeleteByRepository(ctx context.Context, repositoryID string) error
	TopK(ctx context.Context, repositoryID string, query []float32, k int, threshold float64) ([]ScoredChunk, error)
	CountVectors(ctx context.Context, repositoryID string) (int, error)
}

// Tokenizer is the deterministic tokenizer contract used by the Chunker for
// token-count invariants and by the RAG Engine for context-window budgeting.
type Tokenizer interface {
	CountTokens(text string) int
	Encode(text string) []int
	Decode(ids []int) string
	ContextLimit(modelName string) int
}

// Generator is the LLM call surface the RAG Engine invokes once the prompt
// is assembled.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, TokenUsage, error)
	Stream(ctx context.Context, prompt string, temperature float64, maxTokens int) (<-chan string, <-chan error)
	ModelName() string
}

// AuthzFunc is the permission predicate the Repository Manager accepts at
// construction time. It does not interpret principal; it is only called
// before mutating operations.
type AuthzFunc func(action, principal string) bool

// Action names passed to AuthzFunc.
const (
	ActionRegister = "register"
	ActionDelete   = "delete"
	ActionReindex  = "reindex"
	ActionCancel   = "cancel"
)

// ProgressWriter is implemented by things (the Repository Manager) that can
// report weighted stage-completion progress for one indexing run.
type ProgressWriter interface {
	ReportProgress(ctx context.Context, repositoryID string, stageWeight, stageFraction float64, message string)
}
