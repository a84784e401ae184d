package vectorstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/sevigo/reposync/internal/core"
)

// qdrantRun buffers one repository's in-flight upserts until CommitRun, so a
// crashed or discarded run never touches the live collection. This mirrors
// memoryStore's staging-slice-swap semantics at the application layer, since
// the wire protocol has no native multi-point transaction.
type qdrantRun struct {
	points []*qdrant.PointStruct
	active bool
}

// qdrantStore is the optional, externally-hosted core.VectorStore backend.
// One Qdrant collection holds one repository's vectors; the collection name
// is derived from the repository ID and embedder model via
// GenerateCollectionName so a reindex under a different embedder lands in a
// fresh collection instead of mixing incompatible dimensions.
type qdrantStore struct {
	client    *qdrant.Client
	embedder  string
	dimension int

	mu    sync.Mutex
	runs  map[string]*qdrantRun
	count map[string]int
}

// NewQdrant builds a core.VectorStore backed by a Qdrant server. embedderName
// feeds collection naming; dimension sizes newly-created collections.
func NewQdrant(client *qdrant.Client, embedderName string, dimension int) core.VectorStore {
	return &qdrantStore{
		client:    client,
		embedder:  embedderName,
		dimension: dimension,
		runs:      make(map[string]*qdrantRun),
		count:     make(map[string]int),
	}
}

func (s *qdrantStore) collectionName(repositoryID string) string {
	return GenerateCollectionName(repositoryID, s.embedder)
}

func (s *qdrantStore) ensureCollection(ctx context.Context, name string) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return core.NewError(core.KindNetwork, "qdrant.ensure_collection", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return core.NewError(core.KindNetwork, "qdrant.ensure_collection", err)
	}
	return nil
}

func (s *qdrantStore) BeginRun(ctx context.Context, repositoryID string) error {
	if err := s.ensureCollection(ctx, s.collectionName(repositoryID)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[repositoryID] = &qdrantRun{active: true}
	return nil
}

func (s *qdrantStore) Upsert(_ context.Context, repositoryID string, chunk core.Chunk, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[repositoryID]
	if !ok || !run.active {
		return core.NewErrorf(core.KindValidation, "qdrant.upsert", "no active run for repository %q", repositoryID)
	}
	payload, err := qdrant.TryValueMap(map[string]any{
		"repository_id": repositoryID,
		"path":          chunk.Path,
		"start_byte":    chunk.StartByte,
		"end_byte":      chunk.EndByte,
		"language":      chunk.Language,
		"heading":       chunk.Heading,
		"variant":       chunk.Variant,
	})
	if err != nil {
		return core.NewError(core.KindValidation, "qdrant.upsert", err)
	}
	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(chunk.ID.String()),
		Vectors: qdrant.NewVectors(vector...),
		Payload: payload,
	}
	run.points = append(run.points, point)
	return nil
}

// CommitRun deletes the repository's previously-committed points, then
// upserts the staged batch in one call. This is not a single atomic
// operation at the wire level; a reader racing the delete can briefly see
// zero results. memoryStore is the backend that gives the exact
// never-see-a-partial-commit guarantee (see DESIGN.md); this backend trades
// that for durability across process restarts.
func (s *qdrantStore) CommitRun(ctx context.Context, repositoryID string) error {
	s.mu.Lock()
	run, ok := s.runs[repositoryID]
	s.mu.Unlock()
	if !ok || !run.active {
		return core.NewErrorf(core.KindValidation, "qdrant.commit", "no active run for repository %q", repositoryID)
	}

	name := s.collectionName(repositoryID)
	if err := s.deleteByRepositoryFilter(ctx, name, repositoryID); err != nil {
		return err
	}
	if len(run.points) > 0 {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Points:         run.points,
		})
		if err != nil {
			return core.NewError(core.KindNetwork, "qdrant.commit", err)
		}
	}

	s.mu.Lock()
	s.count[repositoryID] = len(run.points)
	delete(s.runs, repositoryID)
	s.mu.Unlock()
	return nil
}

func (s *qdrantStore) DiscardRun(_ context.Context, repositoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, repositoryID)
	return nil
}

func (s *qdrantStore) deleteByRepositoryFilter(ctx context.Context, collectionName, repositoryID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeyword("repository_id", repositoryID),
			},
		}),
	})
	if err != nil {
		return core.NewError(core.KindNetwork, "qdrant.delete", err)
	}
	return nil
}

func (s *qdrantStore) DeleteByRepository(ctx context.Context, repositoryID string) error {
	name := s.collectionName(repositoryID)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return core.NewError(core.KindNetwork, "qdrant.delete", err)
	}
	if !exists {
		return nil
	}
	if err := s.deleteByRepositoryFilter(ctx, name, repositoryID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.count, repositoryID)
	s.mu.Unlock()
	return nil
}

func (s *qdrantStore) TopK(ctx context.Context, repositoryID string, query []float32, k int, threshold float64) ([]core.ScoredChunk, error) {
	name := s.collectionName(repositoryID)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, core.NewError(core.KindNetwork, "qdrant.topk", err)
	}
	if !exists {
		return nil, nil
	}

	limit := uint64(k)
	if limit == 0 {
		limit = 10
	}
	scoreThreshold := float32(threshold)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		ScoreThreshold: &scoreThreshold,
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchKeyword("repository_id", repositoryID)},
		},
	})
	if err != nil {
		return nil, core.NewError(core.KindNetwork, "qdrant.topk", err)
	}

	results := make([]core.ScoredChunk, 0, len(points))
	for _, p := range points {
		results = append(results, core.ScoredChunk{
			Chunk: chunkFromPayload(p),
			Score: clampUnit(float64(p.GetScore())),
		})
	}
	return results, nil
}

func (s *qdrantStore) CountVectors(_ context.Context, repositoryID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count[repositoryID], nil
}

func chunkFromPayload(p *qdrant.ScoredPoint) core.Chunk {
	c := core.Chunk{}
	if id := p.GetId(); id != nil {
		if parsed, err := uuid.Parse(id.GetUuid()); err == nil {
			c.ID = parsed
		}
	}
	payload := p.GetPayload()
	if payload == nil {
		return c
	}
	if v, ok := payload["path"]; ok {
		c.Path = v.GetStringValue()
	}
	if v, ok := payload["repository_id"]; ok {
		if parsed, err := uuid.Parse(v.GetStringValue()); err == nil {
			c.RepositoryID = parsed
		}
	}
	if v, ok := payload["start_byte"]; ok {
		c.StartByte = int(v.GetIntegerValue())
	}
	if v, ok := payload["end_byte"]; ok {
		c.EndByte = int(v.GetIntegerValue())
	}
	if v, ok := payload["language"]; ok {
		c.Language = v.GetStringValue()
	}
	if v, ok := payload["heading"]; ok {
		c.Heading = v.GetStringValue()
	}
	if v, ok := payload["variant"]; ok {
		c.Variant = v.GetStringValue()
	}
	return c
}
