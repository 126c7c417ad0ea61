package memory

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrefStore(t *testing.T) *PreferenceStore {
	t.Helper()
	store, err := NewPreferenceStore(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPreferenceStore(t *testing.T) {
	t.Run("unknown user gets an empty record", func(t *testing.T) {
		store := newTestPrefStore(t)

		prefs, err := store.Get("u1")

		require.NoError(t, err)
		assert.Equal(t, "u1", prefs.UserID)
		assert.Empty(t, prefs.Genres)
		assert.Equal(t, "No known preferences.", prefs.ContextString())
	})

	t.Run("save and reload", func(t *testing.T) {
		store := newTestPrefStore(t)
		require.NoError(t, store.Save(&UserPreferences{
			UserID:      "u1",
			Genres:      []string{"jazz"},
			Locations:   []string{"Portland"},
			CapacityMin: 100,
			CapacityMax: 500,
		}))

		prefs, err := store.Get("u1")

		require.NoError(t, err)
		assert.Equal(t, []string{"jazz"}, prefs.Genres)
		assert.Equal(t, []string{"Portland"}, prefs.Locations)
		assert.Equal(t, 500, prefs.CapacityMax)
		assert.False(t, prefs.UpdatedAt.IsZero())
	})

	t.Run("update merges without duplicates", func(t *testing.T) {
		store := newTestPrefStore(t)
		require.NoError(t, store.Update("u1", PreferenceUpdate{Genres: []string{"jazz"}}))
		require.NoError(t, store.Update("u1", PreferenceUpdate{
			Genres:    []string{"Jazz", "blues"},
			Locations: []string{"Portland"},
			Note:      "prefers weekend shows",
		}))

		prefs, err := store.Get("u1")

		require.NoError(t, err)
		assert.Equal(t, []string{"jazz", "blues"}, prefs.Genres)
		assert.Equal(t, []string{"Portland"}, prefs.Locations)
		assert.Equal(t, []string{"prefers weekend shows"}, prefs.Notes)
	})

	t.Run("context string includes all facets", func(t *testing.T) {
		store := newTestPrefStore(t)
		require.NoError(t, store.Update("u1", PreferenceUpdate{
			Genres:      []string{"indie rock"},
			CapacityMin: 200,
			CapacityMax: 800,
		}))

		ctx, err := store.Context("u1")

		require.NoError(t, err)
		assert.Contains(t, ctx, "indie rock")
		assert.Contains(t, ctx, "200-800")
	})

	t.Run("clear removes the record", func(t *testing.T) {
		store := newTestPrefStore(t)
		require.NoError(t, store.Update("u1", PreferenceUpdate{Genres: []string{"jazz"}}))
		require.NoError(t, store.Clear("u1"))

		prefs, err := store.Get("u1")

		require.NoError(t, err)
		assert.Empty(t, prefs.Genres)
	})
}
