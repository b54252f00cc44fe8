package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"pricecmp/model"
	"pricecmp/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(t *testing.T, backend store.Backend) (*Ledger, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.UnixMilli(1_700_000_000_000))
	s := store.New(backend, testLogger())
	return New(s, Options{Clock: mock}, testLogger()), mock
}

func TestAddToHistory_IgnoresShortQueries(t *testing.T) {
	l, _ := newTestLedger(t, store.NewMemoryBackend())

	require.False(t, l.AddToHistory("a", 3))
	require.False(t, l.AddToHistory("   b  ", 3))
	require.Empty(t, l.History())
	require.Equal(t, 0, l.Statistics().TotalSearches)
}

func TestAddToHistory_MovesDuplicateToFront(t *testing.T) {
	l, mock := newTestLedger(t, store.NewMemoryBackend())

	l.AddToHistory("Pizza", 4)
	mock.Add(time.Second)
	l.AddToHistory("burger", 2)
	mock.Add(time.Second)
	l.AddToHistory("  pizza ", 7)

	h := l.History()
	require.Len(t, h, 2)
	require.Equal(t, "pizza", h[0].Query)
	require.Equal(t, 7, h[0].ResultCount)
	require.Equal(t, "burger", h[1].Query)
	require.Equal(t, mock.Now().UnixMilli(), h[0].Timestamp)
}

func TestAddToHistory_CapsLength(t *testing.T) {
	l, _ := newTestLedger(t, store.NewMemoryBackend())

	for i := 0; i < 30; i++ {
		l.AddToHistory(fmt.Sprintf("query %d", i), i)
	}

	h := l.History()
	require.Len(t, h, DefaultHistoryLimit)
	require.Equal(t, "query 29", h[0].Query)
	require.Equal(t, "query 10", h[len(h)-1].Query)

	seen := map[string]bool{}
	for _, e := range h {
		key := normalizeQuery(e.Query)
		require.False(t, seen[key], "duplicate %q", key)
		seen[key] = true
	}
}

func TestUpdateStatistics_SmoothsAverage(t *testing.T) {
	l, mock := newTestLedger(t, store.NewMemoryBackend())

	l.UpdateStatistics("kebab", 10)
	require.Equal(t, 5, l.Statistics().AverageResultCount)

	l.UpdateStatistics("kebab", 4)
	// round((5 + 4) / 2) rounds half up
	require.Equal(t, 5, l.Statistics().AverageResultCount)

	l.UpdateStatistics("Kebab ", 0)
	stats := l.Statistics()
	require.Equal(t, 3, stats.AverageResultCount)
	require.Equal(t, 3, stats.TotalSearches)
	require.Equal(t, 3, stats.PopularQueries["kebab"])
	require.NotNil(t, stats.LastSearchTime)
	require.Equal(t, mock.Now().UnixMilli(), *stats.LastSearchTime)
}

func TestAddToHistory_UpdatesStatistics(t *testing.T) {
	l, _ := newTestLedger(t, store.NewMemoryBackend())

	l.AddToHistory("برگر", 8)
	stats := l.Statistics()
	require.Equal(t, 1, stats.TotalSearches)
	require.Equal(t, 4, stats.AverageResultCount)
	require.Equal(t, 1, stats.PopularQueries["برگر"])
}

func TestToggleFavorite_ParityDecidesMembership(t *testing.T) {
	l, _ := newTestLedger(t, store.NewMemoryBackend())

	require.True(t, l.ToggleFavorite("پیتزا", model.PageSnappfoodMenu))
	require.True(t, l.IsFavorite("پیتزا"))
	require.False(t, l.ToggleFavorite("پیتزا", model.PageSnappfoodMenu))
	require.False(t, l.IsFavorite("پیتزا"))
	require.True(t, l.ToggleFavorite("پیتزا", ""))

	favs := l.Favorites()
	require.Len(t, favs, 1)
	require.Nil(t, favs[0].Source)
}

func TestToggleFavorite_ExactMatchOnly(t *testing.T) {
	l, _ := newTestLedger(t, store.NewMemoryBackend())

	l.ToggleFavorite("Pizza", model.PageTapsifoodMenu)
	require.False(t, l.IsFavorite("pizza"))
	require.Equal(t, model.PageTapsifoodMenu, *l.Favorites()[0].Source)
}

func TestToggleFavorite_DropsOldestOnOverflow(t *testing.T) {
	l, _ := newTestLedger(t, store.NewMemoryBackend())

	for i := 0; i < DefaultFavoritesLimit+1; i++ {
		l.ToggleFavorite(fmt.Sprintf("item %d", i), model.PageUnknown)
	}

	favs := l.Favorites()
	require.Len(t, favs, DefaultFavoritesLimit)
	require.False(t, l.IsFavorite("item 0"))
	require.True(t, l.IsFavorite("item 50"))
	require.Equal(t, "item 1", favs[0].Name)
}

func TestLedger_PersistsAcrossReload(t *testing.T) {
	backend := store.NewMemoryBackend()
	l, _ := newTestLedger(t, backend)

	l.AddToHistory("kebab", 3)
	l.ToggleFavorite("kebab", model.PageSnappfoodMenu)

	reloaded, _ := newTestLedger(t, backend)
	require.Equal(t, l.History(), reloaded.History())
	require.True(t, reloaded.IsFavorite("kebab"))
	require.Equal(t, 1, reloaded.Statistics().TotalSearches)
}

func TestNew_HealsCorruptStatistics(t *testing.T) {
	cases := map[string]string{
		"not json":           "{{{",
		"array":              `[1,2,3]`,
		"missing popular":    `{"totalSearches":4}`,
		"popular not object": `{"totalSearches":4,"popularQueries":[]}`,
		"wrong types":        `{"totalSearches":"four","popularQueries":{}}`,
		"null":               `null`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			backend := store.NewMemoryBackend()
			require.NoError(t, backend.Put(context.Background(), store.KeyStatistics, []byte(raw)))

			l, _ := newTestLedger(t, backend)
			stats := l.Statistics()
			require.Equal(t, 0, stats.TotalSearches)
			require.Equal(t, 0, stats.AverageResultCount)
			require.Empty(t, stats.PopularQueries)
			require.NotNil(t, stats.PopularQueries)
			require.Nil(t, stats.LastSearchTime)

			data, ok, err := backend.Get(context.Background(), store.KeyStatistics)
			require.NoError(t, err)
			require.True(t, ok)
			require.JSONEq(t, `{"totalSearches":0,"averageResultCount":0,"popularQueries":{},"lastSearchTime":null}`, string(data))
		})
	}
}

func TestNew_AcceptsLegacyStringEntries(t *testing.T) {
	backend := store.NewMemoryBackend()
	ctx := context.Background()
	require.NoError(t, backend.Put(ctx, store.KeyHistory, []byte(`["kebab", {"query":"pizza","timestamp":5,"resultCount":2}]`)))
	require.NoError(t, backend.Put(ctx, store.KeyFavorites, []byte(`["burger"]`)))

	l, _ := newTestLedger(t, backend)
	h := l.History()
	require.Len(t, h, 2)
	require.Equal(t, "kebab", h[0].Query)
	require.Equal(t, "pizza", h[1].Query)
	require.True(t, l.IsFavorite("burger"))

	l.AddToHistory("KEBAB", 1)
	require.Len(t, l.History(), 2)
}

func TestResetAndClear(t *testing.T) {
	l, _ := newTestLedger(t, store.NewMemoryBackend())
	l.AddToHistory("kebab", 3)

	l.ClearHistory()
	require.Empty(t, l.History())
	require.Equal(t, 1, l.Statistics().TotalSearches)

	l.ResetStatistics()
	require.Equal(t, model.DefaultStatistics(), l.Statistics())
}

func TestOnChange_FiresOnMutations(t *testing.T) {
	calls := 0
	s := store.New(store.NewMemoryBackend(), testLogger())
	l := New(s, Options{OnChange: func() { calls++ }}, testLogger())

	l.AddToHistory("kebab", 1)
	l.ToggleFavorite("kebab", "")
	l.ResetStatistics()

	require.Equal(t, 3, calls)
	require.Equal(t, uint64(3), l.Revision())
}

func TestSuggest_FuzzyMatchesHistory(t *testing.T) {
	l, _ := newTestLedger(t, store.NewMemoryBackend())
	l.AddToHistory("pepperoni pizza", 2)
	l.AddToHistory("burger", 2)
	l.AddToHistory("pizza", 2)

	got := l.Suggest("piz", 5)
	require.Len(t, got, 2)
	for _, e := range got {
		require.Contains(t, e.Query, "pizza")
	}

	recent := l.Suggest("", 2)
	require.Len(t, recent, 2)
	require.Equal(t, "pizza", recent[0].Query)
}
