package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/reposync/internal/core"
)

const testRepoID = "repo-1"

// seedEntry is one (text, vector) pair a test commits into the store.
type seedEntry struct {
	text string
	vec  []float32
}

// commitEntries runs one full BeginRun/Upsert/CommitRun cycle so tests can
// populate the store the same way an indexing run does.
func commitEntries(t *testing.T, s core.VectorStore, repoID string, entries ...seedEntry) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, repoID))
	for i, e := range entries {
		chunk := core.Chunk{Path: fmt.Sprintf("file%d.go", i), Text: e.text, TokenCount: 1, MaxTokens: 10}
		require.NoError(t, s.Upsert(ctx, repoID, chunk, e.vec))
	}
	require.NoError(t, s.CommitRun(ctx, repoID))
}

func TestTopK_ScoresNonIncreasingAndAboveThreshold(t *testing.T) {
	s := NewMemory()
	commitEntries(t, s, testRepoID,
		seedEntry{"orthogonal", []float32{0, 1}},
		seedEntry{"close", []float32{0.8, 0.6}},
		seedEntry{"exact", []float32{1, 0}},
	)

	got, err := s.TopK(context.Background(), testRepoID, []float32{1, 0}, 10, 0.3)
	require.NoError(t, err)

	// the orthogonal vector scores 0 and must be filtered even though k
	// was not reached
	require.Len(t, got, 2)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	assert.InDelta(t, 0.8, got[1].Score, 1e-6)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i].Score, got[i-1].Score)
		assert.GreaterOrEqual(t, got[i].Score, 0.3)
	}
}

func TestTopK_TruncatesToK(t *testing.T) {
	s := NewMemory()
	commitEntries(t, s, testRepoID,
		seedEntry{"a", []float32{1, 0}},
		seedEntry{"b", []float32{0.9, 0.43589}},
		seedEntry{"c", []float32{0.8, 0.6}},
	)

	got, err := s.TopK(context.Background(), testRepoID, []float32{1, 0}, 2, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestTopK_StableTieBreakOnInsertionOrder(t *testing.T) {
	s := NewMemory()
	commitEntries(t, s, testRepoID,
		seedEntry{"first", []float32{1, 0}},
		seedEntry{"second", []float32{1, 0}},
		seedEntry{"third", []float32{1, 0}},
	)

	got, err := s.TopK(context.Background(), testRepoID, []float32{1, 0}, 3, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Chunk.Text)
	assert.Equal(t, "second", got[1].Chunk.Text)
	assert.Equal(t, "third", got[2].Chunk.Text)
}

func TestSelfSimilarity_IsApproximatelyOne(t *testing.T) {
	s := NewMemory()
	v := []float32{0.6, 0.8}
	commitEntries(t, s, testRepoID, seedEntry{"the only document", v})

	got, err := s.TopK(context.Background(), testRepoID, v, 1, 0.3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	assert.Equal(t, "the only document", got[0].Chunk.Text)
}

func TestUpsert_RequiresActiveRun(t *testing.T) {
	s := NewMemory()
	err := s.Upsert(context.Background(), testRepoID, core.Chunk{Text: "x"}, []float32{1})
	require.Error(t, err)
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestCommitRun_StagedVectorsInvisibleUntilCommit(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.BeginRun(ctx, testRepoID))
	require.NoError(t, s.Upsert(ctx, testRepoID, core.Chunk{Text: "staged"}, []float32{1, 0}))

	got, err := s.TopK(ctx, testRepoID, []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, got, "staged vectors must not be visible before commit")

	count, err := s.CountVectors(ctx, testRepoID)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, s.CommitRun(ctx, testRepoID))

	got, err = s.TopK(ctx, testRepoID, []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCommitRun_ReplacesPreviousRunAtomically(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	commitEntries(t, s, testRepoID, seedEntry{"old", []float32{1, 0}})

	// stage a replacement run; readers keep seeing the old state
	require.NoError(t, s.BeginRun(ctx, testRepoID))
	require.NoError(t, s.Upsert(ctx, testRepoID, core.Chunk{Text: "new-a"}, []float32{1, 0}))
	require.NoError(t, s.Upsert(ctx, testRepoID, core.Chunk{Text: "new-b"}, []float32{0, 1}))

	got, err := s.TopK(ctx, testRepoID, []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "old", got[0].Chunk.Text)

	require.NoError(t, s.CommitRun(ctx, testRepoID))

	got, err = s.TopK(ctx, testRepoID, []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new-a", got[0].Chunk.Text)
}

func TestDiscardRun_DropsStagedVectors(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	commitEntries(t, s, testRepoID, seedEntry{"committed", []float32{1, 0}})

	require.NoError(t, s.BeginRun(ctx, testRepoID))
	require.NoError(t, s.Upsert(ctx, testRepoID, core.Chunk{Text: "doomed"}, []float32{0, 1}))
	require.NoError(t, s.DiscardRun(ctx, testRepoID))

	count, err := s.CountVectors(ctx, testRepoID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "discard must leave the committed state intact")
}

func TestDeleteByRepository_LeavesNoVectors(t *testing.T) {
	s := NewMemory()
	commitEntries(t, s, testRepoID, seedEntry{"doc", []float32{1, 0}})

	require.NoError(t, s.DeleteByRepository(context.Background(), testRepoID))

	count, err := s.CountVectors(context.Background(), testRepoID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTopK_ConcurrentReadersNeverSeePartialRun(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	commitEntries(t, s, testRepoID,
		seedEntry{"a", []float32{1, 0}},
		seedEntry{"b", []float32{1, 0}},
	)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			got, err := s.TopK(ctx, testRepoID, []float32{1, 0}, 10, 0)
			assert.NoError(t, err)
			// every observation is a full committed run: 2 (old) or 3 (new)
			if len(got) != 2 && len(got) != 3 {
				t.Errorf("observed partial run of %d vectors", len(got))
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		require.NoError(t, s.BeginRun(ctx, testRepoID))
		for j := 0; j < 3; j++ {
			require.NoError(t, s.Upsert(ctx, testRepoID, core.Chunk{Text: "n"}, []float32{1, 0}))
		}
		require.NoError(t, s.CommitRun(ctx, testRepoID))

		require.NoError(t, s.BeginRun(ctx, testRepoID))
		for j := 0; j < 2; j++ {
			require.NoError(t, s.Upsert(ctx, testRepoID, core.Chunk{Text: "o"}, []float32{1, 0}))
		}
		require.NoError(t, s.CommitRun(ctx, testRepoID))
	}
	close(stop)
	wg.Wait()
}

func TestTopK_NegativeSimilarityClampsToZero(t *testing.T) {
	s := NewMemory()
	commitEntries(t, s, testRepoID, seedEntry{"opposed", []float32{-1, 0}})

	got, err := s.TopK(context.Background(), testRepoID, []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 1, "a zero threshold admits the clamped score")
	assert.Zero(t, got[0].Score, "cosine similarity is clamped to [0,1], never negative")
}

func TestGenerateCollectionName_SanitizesAndScopesByEmbedder(t *testing.T) {
	name := GenerateCollectionName("Owner/Repo.Name", "nomic-embed-text:latest")
	assert.Equal(t, "repo-owner-reponame-nomic-embed-text", name)
}
