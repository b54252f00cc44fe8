// Package ledger keeps the user's search history, favorites and aggregate
// search statistics, persisting every mutation immediately.
package ledger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/sahilm/fuzzy"

	"pricecmp/model"
	"pricecmp/store"
)

const (
	DefaultHistoryLimit   = 20
	DefaultFavoritesLimit = 50

	minQueryRunes = 2
)

type Options struct {
	HistoryLimit   int
	FavoritesLimit int
	Clock          clock.Clock
	// OnChange runs after statistics or favorites change, outside the lock.
	OnChange func()
}

type Ledger struct {
	store *store.Store
	log   *slog.Logger
	clock clock.Clock

	historyLimit   int
	favoritesLimit int
	onChange       func()

	mu        sync.Mutex
	history   []model.SearchHistoryEntry
	favorites []model.FavoriteEntry
	stats     model.SearchStatistics
	revision  uint64
}

// New loads the ledger state from s. Missing or corrupt documents load as
// empty state; corrupt statistics are repaired and written back.
func New(s *store.Store, opts Options, logger *slog.Logger) *Ledger {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.FavoritesLimit <= 0 {
		opts.FavoritesLimit = DefaultFavoritesLimit
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	l := &Ledger{
		store:          s,
		log:            logger,
		clock:          opts.Clock,
		historyLimit:   opts.HistoryLimit,
		favoritesLimit: opts.FavoritesLimit,
		onChange:       opts.OnChange,
	}

	l.history = store.Load(s, store.KeyHistory, []model.SearchHistoryEntry{})
	l.favorites = store.Load(s, store.KeyFavorites, []model.FavoriteEntry{})

	stats, healed := decodeStatistics(s.Raw(store.KeyStatistics))
	if healed {
		l.log.Warn("search statistics missing or malformed, resetting")
		s.Save(store.KeyStatistics, stats)
	}
	l.stats = stats

	l.log.Info("ledger loaded",
		"history", len(l.history),
		"favorites", len(l.favorites),
		"total_searches", l.stats.TotalSearches,
	)
	return l
}

// AddToHistory records a query at the front of the history and updates the
// statistics. Queries shorter than two characters are ignored and false is
// returned.
func (l *Ledger) AddToHistory(query string, resultCount int) bool {
	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < minQueryRunes {
		return false
	}
	key := normalizeQuery(trimmed)

	l.mu.Lock()
	next := make([]model.SearchHistoryEntry, 0, len(l.history)+1)
	next = append(next, model.SearchHistoryEntry{
		Query:       trimmed,
		Timestamp:   l.nowMs(),
		ResultCount: resultCount,
	})
	for _, e := range l.history {
		if normalizeQuery(e.Query) != key {
			next = append(next, e)
		}
	}
	if len(next) > l.historyLimit {
		next = next[:l.historyLimit]
	}
	l.history = next
	l.store.Save(store.KeyHistory, l.history)
	l.mu.Unlock()

	l.UpdateStatistics(trimmed, resultCount)
	return true
}

// UpdateStatistics counts one search execution. The average is smoothed as
// round((previous + current) / 2), not a true running mean.
func (l *Ledger) UpdateStatistics(query string, currentResultCount int) {
	l.mu.Lock()
	now := l.nowMs()
	l.stats.TotalSearches++
	l.stats.LastSearchTime = &now
	l.stats.AverageResultCount = int(math.Round(float64(l.stats.AverageResultCount+currentResultCount) / 2))
	if key := normalizeQuery(query); key != "" {
		l.stats.PopularQueries[key]++
	}
	l.revision++
	l.store.Save(store.KeyStatistics, l.stats)
	l.mu.Unlock()

	l.notify()
}

// ToggleFavorite removes name if present, otherwise appends it. When the
// list grows past capacity the oldest entry is dropped. Returns whether
// name is a favorite afterwards.
func (l *Ledger) ToggleFavorite(name string, source model.PageType) bool {
	l.mu.Lock()
	idx := l.favoriteIndex(name)
	added := idx < 0
	if added {
		entry := model.FavoriteEntry{Name: name, Timestamp: l.nowMs()}
		if source != "" {
			src := source
			entry.Source = &src
		}
		l.favorites = append(l.favorites, entry)
		if len(l.favorites) > l.favoritesLimit {
			l.favorites = append([]model.FavoriteEntry(nil), l.favorites[len(l.favorites)-l.favoritesLimit:]...)
		}
	} else {
		l.favorites = append(l.favorites[:idx:idx], l.favorites[idx+1:]...)
	}
	l.revision++
	l.store.Save(store.KeyFavorites, l.favorites)
	l.mu.Unlock()

	l.log.Debug("favorite toggled", "name", name, "added", added)
	l.notify()
	return added
}

func (l *Ledger) IsFavorite(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.favoriteIndex(name) >= 0
}

func (l *Ledger) ClearHistory() {
	l.mu.Lock()
	l.history = []model.SearchHistoryEntry{}
	l.revision++
	l.store.Save(store.KeyHistory, l.history)
	l.mu.Unlock()

	l.log.Info("search history cleared")
	l.notify()
}

func (l *Ledger) ResetStatistics() {
	l.mu.Lock()
	l.stats = model.DefaultStatistics()
	l.revision++
	l.store.Save(store.KeyStatistics, l.stats)
	l.mu.Unlock()

	l.log.Info("search statistics reset")
	l.notify()
}

func (l *Ledger) History() []model.SearchHistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.SearchHistoryEntry(nil), l.history...)
}

func (l *Ledger) Favorites() []model.FavoriteEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.FavoriteEntry(nil), l.favorites...)
}

func (l *Ledger) Statistics() model.SearchStatistics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats.Clone()
}

// Revision increases on every mutation.
func (l *Ledger) Revision() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.revision
}

type historySource []model.SearchHistoryEntry

func (h historySource) String(i int) string { return h[i].Query }
func (h historySource) Len() int            { return len(h) }

// Suggest returns history entries whose query fuzzily matches the typed
// prefix, best first. An empty prefix yields the most recent entries.
func (l *Ledger) Suggest(prefix string, limit int) []model.SearchHistoryEntry {
	history := l.History()
	prefix = strings.TrimSpace(prefix)

	var out []model.SearchHistoryEntry
	if prefix == "" {
		out = history
	} else {
		for _, m := range fuzzy.FindFrom(prefix, historySource(history)) {
			out = append(out, history[m.Index])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (l *Ledger) favoriteIndex(name string) int {
	for i, f := range l.favorites {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (l *Ledger) nowMs() int64 {
	return l.clock.Now().UnixMilli()
}

func (l *Ledger) notify() {
	if l.onChange != nil {
		l.onChange()
	}
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// decodeStatistics parses a stored statistics document, reporting whether
// it had to fall back to defaults.
func decodeStatistics(raw []byte) (model.SearchStatistics, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return model.DefaultStatistics(), true
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return model.DefaultStatistics(), true
	}
	pq := bytes.TrimSpace(fields["popularQueries"])
	if len(pq) == 0 || pq[0] != '{' {
		return model.DefaultStatistics(), true
	}

	var stats model.SearchStatistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		return model.DefaultStatistics(), true
	}
	if stats.PopularQueries == nil {
		stats.PopularQueries = map[string]int{}
	}
	return stats, false
}
