// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"time"

	"github.com/google/uuid"
)

// ProviderKind identifies which hosting platform a repository lives on.
type ProviderKind string

const (
	ProviderGitHub    ProviderKind = "github"
	ProviderGitLab    ProviderKind = "gitlab"
	ProviderBitbucket ProviderKind = "bitbucket"
	ProviderGitea     ProviderKind = "gitea"
	ProviderLocal     ProviderKind = "local"
)

// AccessMode identifies how the Source Acquirer obtained a repository's bytes.
type AccessMode string

const (
	AccessModeAPI      AccessMode = "api"
	AccessModeClone    AccessMode = "clone"
	AccessModeLocalDir AccessMode = "local_dir"
)

// Status is a RepositoryRecord's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusIndexing  Status = "indexing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// FileKind classifies a file for chunker-variant selection.
type FileKind string

const (
	FileKindCode   FileKind = "code"
	FileKindDoc    FileKind = "doc"
	FileKindConfig FileKind = "config"
	FileKindOther  FileKind = "other"
)

// RepositoryDescriptor is client-supplied, immutable once created.
type RepositoryDescriptor struct {
	Provider      ProviderKind
	Owner         string
	Name          string
	URL           string
	AccessToken   string
	PreferredMode AccessMode
	Config        *RepoConfig
}

// FullName is the conventional "owner/name" identifier used for collection
// naming and logging.
func (d RepositoryDescriptor) FullName() string {
	if d.Owner == "" {
		return d.Name
	}
	return d.Owner + "/" + d.Name
}

// AccessConfig parameterizes the Source Acquirer's mode-selection algorithm.
type AccessConfig struct {
	PreferredMode   AccessMode
	Token           string
	ForceMode       AccessMode
	CloneDepth      int
	CustomLocalPath string
}

// RepositoryAccess is materialized by the Source Acquirer once a mode is chosen.
type RepositoryAccess struct {
	Descriptor RepositoryDescriptor
	Mode       AccessMode
	LocalPath  string
	Ready      bool
}

// SkippedFile records a per-file acquisition failure tolerated by the
// Acquirer's local-recovery policy (see ERROR HANDLING DESIGN).
type SkippedFile struct {
	Path   string
	Reason string
}

// RepositoryRecord is the Repository Manager's owned, mutable handle for one
// registered repository. It carries no lock of its own; the Manager mutates
// it only under the per-record lock of the entry that wraps it.
type RepositoryRecord struct {
	ID         uuid.UUID
	Descriptor RepositoryDescriptor

	Status   Status
	Progress float64

	EmbedderModel        string
	QdrantCollectionName string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	IndexedAt  *time.Time

	LastError string
	OwnerID   string

	SkippedFiles []SkippedFile
	Metadata     map[string]string
}

// FileRecord describes one acquired file prior to chunking.
type FileRecord struct {
	Path string
	Size int64
	Hash string
	Kind FileKind
	Lang string // set when Kind == FileKindCode
}

// Chunk is a bounded text fragment, the unit of retrieval.
type Chunk struct {
	ID           uuid.UUID
	RepositoryID uuid.UUID
	Path         string
	StartByte    int
	EndByte      int
	Text         string
	TokenCount   int
	MaxTokens    int
	Variant      string // selector name, e.g. "code_ast", "code_token", "markup", "plaintext"
	Language     string
	Heading      string
}

// Vector pairs a Chunk with its fixed-dimension embedding.
type Vector struct {
	ChunkID      uuid.UUID
	RepositoryID uuid.UUID
	Values       []float32
}

// IndexingUpdate is an ephemeral progress or terminal-state message fanned
// out to a repository's subscribers.
type IndexingUpdate struct {
	RepositoryID uuid.UUID
	Status       Status
	Progress     float64
	Message      string
	Timestamp    time.Time
}

// Citation is one retrieved chunk used to ground an answer.
type Citation struct {
	Path  string
	Start int
	End   int
	Score float64
}

// QueryRequest is one call into the RAG Engine.
type QueryRequest struct {
	RepositoryID uuid.UUID
	Question     string
	TopK         int
	Context      []string
	Filters      map[string]string
}

// TokenUsage reports the token accounting for one completed query.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// QueryResponse is the RAG Engine's non-streaming result.
type QueryResponse struct {
	Answer     string
	Citations  []Citation
	Confidence float64
	TokenUsage TokenUsage
}

// StreamFrameKind tags a StreamFrame's payload, the sum type described in
// the design note on streaming answers.
type StreamFrameKind string

const (
	StreamContent  StreamFrameKind = "content"
	StreamSource   StreamFrameKind = "source"
	StreamError    StreamFrameKind = "error"
	StreamComplete StreamFrameKind = "complete"
)

// StreamFrame is one frame of a streaming query answer.
type StreamFrame struct {
	Kind    StreamFrameKind
	Content string
	Source  *Citation
	Err     error
	IsFinal bool
}
