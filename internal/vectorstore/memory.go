package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/sevigo/reposync/internal/core"
)

// memoryEntry is one committed or staged vector alongside its chunk.
type memoryEntry struct {
	chunk  core.Chunk
	vector []float32
}

// repoCollection holds one repository's live (searchable) vectors plus the
// staging slice an in-progress indexing run accumulates into. CommitRun
// swaps staging into live under the write lock in one assignment, so a
// concurrent TopK reader holding the read lock either sees the fully old
// set or the fully new one, never a mix.
type repoCollection struct {
	mu      sync.RWMutex
	live    []memoryEntry
	staging []memoryEntry
	inRun   bool
}

// memoryStore is the mandatory in-process core.VectorStore implementation.
// It requires no external service, so every other package's tests can run
// against it without network access.
type memoryStore struct {
	mu          sync.Mutex
	collections map[string]*repoCollection
}

// NewMemory builds an in-memory core.VectorStore.
func NewMemory() core.VectorStore {
	return &memoryStore{collections: make(map[string]*repoCollection)}
}

func (s *memoryStore) collection(repositoryID string) *repoCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[repositoryID]
	if !ok {
		c = &repoCollection{}
		s.collections[repositoryID] = c
	}
	return c
}

func (s *memoryStore) BeginRun(_ context.Context, repositoryID string) error {
	c := s.collection(repositoryID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staging = nil
	c.inRun = true
	return nil
}

func (s *memoryStore) Upsert(_ context.Context, repositoryID string, chunk core.Chunk, vector []float32) error {
	c := s.collection(repositoryID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inRun {
		return core.NewErrorf(core.KindValidation, "vectorstore.upsert", "no active run for repository %q", repositoryID)
	}
	v := make([]float32, len(vector))
	copy(v, vector)
	c.staging = append(c.staging, memoryEntry{chunk: chunk, vector: v})
	return nil
}

func (s *memoryStore) CommitRun(_ context.Context, repositoryID string) error {
	c := s.collection(repositoryID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inRun {
		return core.NewErrorf(core.KindValidation, "vectorstore.commit", "no active run for repository %q", repositoryID)
	}
	c.live = c.staging
	c.staging = nil
	c.inRun = false
	return nil
}

func (s *memoryStore) DiscardRun(_ context.Context, repositoryID string) error {
	c := s.collection(repositoryID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staging = nil
	c.inRun = false
	return nil
}

func (s *memoryStore) DeleteByRepository(_ context.Context, repositoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, repositoryID)
	return nil
}

func (s *memoryStore) TopK(_ context.Context, repositoryID string, query []float32, k int, threshold float64) ([]core.ScoredChunk, error) {
	c := s.collection(repositoryID)
	c.mu.RLock()
	defer c.mu.RUnlock()

	scored := make([]core.ScoredChunk, 0, len(c.live))
	for _, e := range c.live {
		score := clampUnit(dotProduct(query, e.vector))
		if score < threshold {
			continue
		}
		scored = append(scored, core.ScoredChunk{Chunk: e.chunk, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *memoryStore) CountVectors(_ context.Context, repositoryID string) (int, error) {
	c := s.collection(repositoryID)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.live), nil
}

// clampUnit pins a cosine similarity into the [0,1] score range; opposed
// vectors score 0 rather than surfacing a negative similarity.
func clampUnit(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// dotProduct assumes both vectors are already unit-normalized (the Embedder's
// contract), so the dot product equals cosine similarity directly.
func dotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
