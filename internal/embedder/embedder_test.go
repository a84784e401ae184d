package embedder

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/retry"
	"github.com/sevigo/reposync/mocks"
)

// fastRetry keeps retry tests from sleeping for real.
func fastRetry(attempts int) retry.Config {
	return retry.Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

// indexedVectors answers each text "t<i>" with a vector whose direction
// encodes i, so order preservation survives normalization.
func indexedVectors(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		n, err := strconv.Atoi(strings.TrimPrefix(text, "t"))
		if err != nil {
			return nil, fmt.Errorf("unexpected text %q", text)
		}
		out[i] = []float32{float32(n), 1}
	}
	return out, nil
}

func TestEmbed_PreservesOrderAcrossBatches(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockEmbedder(ctrl)
	inner.EXPECT().Embed(gomock.Any(), gomock.Any()).DoAndReturn(indexedVectors).Times(3)

	b := NewBatched(inner, WithBatchSize(2), WithConcurrency(4), WithRetry(fastRetry(1)))

	texts := []string{"t0", "t1", "t2", "t3", "t4"}
	got, err := b.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, got, len(texts))

	for i, v := range got {
		require.Len(t, v, 2)
		// after unit normalization the ratio x/y still recovers the index
		ratio := float64(v[0] / v[1])
		assert.InDeltaf(t, float64(i), ratio, 1e-3, "vector %d out of order", i)
	}
}

func TestEmbed_UnitNormalizesVectors(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockEmbedder(ctrl)
	inner.EXPECT().Embed(gomock.Any(), []string{"doc"}).Return([][]float32{{3, 4}}, nil)

	b := NewBatched(inner, WithRetry(fastRetry(1)))
	got, err := b.Embed(context.Background(), []string{"doc"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.InDelta(t, 0.6, float64(got[0][0]), 1e-6)
	assert.InDelta(t, 0.8, float64(got[0][1]), 1e-6)

	var norm float64
	for _, x := range got[0] {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestEmbed_RetriesTransientFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockEmbedder(ctrl)
	gomock.InOrder(
		inner.EXPECT().Embed(gomock.Any(), gomock.Any()).
			Return(nil, core.NewErrorf(core.KindNetwork, "test.embed", "connection reset")),
		inner.EXPECT().Embed(gomock.Any(), gomock.Any()).
			Return(nil, core.NewErrorf(core.KindRateLimited, "test.embed", "slow down")),
		inner.EXPECT().Embed(gomock.Any(), gomock.Any()).Return([][]float32{{1, 0}}, nil),
	)

	b := NewBatched(inner, WithRetry(fastRetry(5)))
	got, err := b.Embed(context.Background(), []string{"doc"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestEmbed_NonRetryableFailsImmediately(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockEmbedder(ctrl)
	inner.EXPECT().Embed(gomock.Any(), gomock.Any()).
		Return(nil, core.NewErrorf(core.KindMalformed, "test.embed", "bad response shape")).
		Times(1)

	b := NewBatched(inner, WithRetry(fastRetry(5)))
	_, err := b.Embed(context.Background(), []string{"doc"})
	require.Error(t, err)
	assert.Equal(t, core.KindMalformed, core.KindOf(err))
}

func TestEmbed_ExhaustedRetriesFailTheRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockEmbedder(ctrl)
	inner.EXPECT().Embed(gomock.Any(), gomock.Any()).
		Return(nil, core.NewErrorf(core.KindNetwork, "test.embed", "still down")).
		Times(3)

	b := NewBatched(inner, WithRetry(fastRetry(3)))
	_, err := b.Embed(context.Background(), []string{"doc"})
	require.Error(t, err)
	assert.Equal(t, core.KindNetwork, core.KindOf(err))
}

func TestEmbed_EmptyInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockEmbedder(ctrl)

	b := NewBatched(inner)
	got, err := b.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
