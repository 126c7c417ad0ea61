package catalog

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	t.Run("deterministic", func(t *testing.T) {
		a, err := e.GenerateEmbedding(ctx, "smoky jazz trio from new orleans")
		require.NoError(t, err)
		b, err := e.GenerateEmbedding(ctx, "smoky jazz trio from new orleans")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("unit length", func(t *testing.T) {
		vec, err := e.GenerateEmbedding(ctx, "indie rock four-piece")
		require.NoError(t, err)
		require.Len(t, vec, 64)

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, norm, 1e-4)
	})

	t.Run("batch matches single", func(t *testing.T) {
		batch, err := e.GenerateEmbeddings(ctx, []string{"folk duo", "metal band"})
		require.NoError(t, err)
		require.Len(t, batch, 2)

		single, err := e.GenerateEmbedding(ctx, "folk duo")
		require.NoError(t, err)
		assert.Equal(t, single, batch[0])
	})

	t.Run("zero dimension falls back to default", func(t *testing.T) {
		assert.Equal(t, 256, NewHashEmbedder(0).Dimension())
	})
}

func TestSemanticSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("disabled until indexed", func(t *testing.T) {
		_, err := store.SemanticSearchArtists(ctx, "jazz", 5)
		assert.Error(t, err)
	})

	require.NoError(t, store.EnableSemanticSearch(ctx, NewHashEmbedder(128)))

	t.Run("identical text ranks its own artist first", func(t *testing.T) {
		artist, err := store.GetArtist(ctx, "artist_1")
		require.NoError(t, err)
		require.NotNil(t, artist)

		matches, err := store.SemanticSearchArtists(ctx, artist.Name+". "+artist.Bio, 3)
		require.NoError(t, err)
		require.NotEmpty(t, matches)
		assert.Equal(t, "artist_1", matches[0].ID)
		assert.InDelta(t, 1.0, matches[0].Similarity, 1e-3)
	})

	t.Run("respects limit and similarity bounds", func(t *testing.T) {
		matches, err := store.SemanticSearchVenues(ctx, "rock club with a big stage", 4)
		require.NoError(t, err)
		require.Len(t, matches, 4)
		for _, m := range matches {
			assert.GreaterOrEqual(t, m.Similarity, -1.0-1e-6)
			assert.LessOrEqual(t, m.Similarity, 1.0+1e-6)
			if !math.IsNaN(m.Similarity) {
				assert.NotEmpty(t, m.ID)
			}
		}
	})

	t.Run("reindex is idempotent", func(t *testing.T) {
		require.NoError(t, store.EnableSemanticSearch(ctx, NewHashEmbedder(128)))
		matches, err := store.SemanticSearchArtists(ctx, "jazz", 2)
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})
}
