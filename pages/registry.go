// Package pages keeps the open page sessions. Each page owns a coordinator
// searching a dataset chosen by the page URL.
package pages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"pricecmp/coordinator"
	"pricecmp/filtersort"
	"pricecmp/model"
	"pricecmp/router"
	"pricecmp/source"
)

var ErrNotFound = errors.New("page not found")

type Options struct {
	MaxSessions  int
	IdleTTL      time.Duration
	Debounce     time.Duration
	FormatStatus func(count int, elapsed time.Duration) string
	Clock        clock.Clock
}

// Deps are the shared collaborators every page's coordinator uses.
type Deps struct {
	Provider   source.Provider
	Ledger     coordinator.Ledger
	Ranker     coordinator.Ranker
	FilterSort *filtersort.Engine
	Analytics  coordinator.AnalyticsSink
}

type Registry struct {
	deps Deps
	opts Options
	log  *slog.Logger

	// mu serializes Open and Reload against Sweep; lookups go straight to
	// the LRU, which has its own lock.
	mu    sync.Mutex
	pages *lru.Cache
}

func NewRegistry(deps Deps, opts Options, logger *slog.Logger) (*Registry, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 256
	}
	r := &Registry{deps: deps, opts: opts, log: logger}

	cache, err := lru.NewWithEvict(opts.MaxSessions, func(key, value interface{}) {
		page := value.(*Page)
		page.coord.Close()
		r.log.Debug("page session closed", "page", key)
	})
	if err != nil {
		return nil, fmt.Errorf("create page registry: %w", err)
	}
	r.pages = cache
	return r, nil
}

// Open creates a session for url and runs its initial, unfiltered search.
// A menu page whose comparison cannot be loaded falls back to the vendor
// directory.
func (r *Registry) Open(ctx context.Context, url string) (*Page, error) {
	pt, code, ds, err := r.load(ctx, url)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate page id: %w", err)
	}
	now := r.opts.Clock.Now()
	page := &Page{
		ID:         id.String(),
		url:        url,
		pageType:   pt,
		vendorCode: code,
		createdAt:  now,
		lastUsed:   now,
	}
	page.coord = coordinator.New(coordinator.Config{
		Debounce:     r.opts.Debounce,
		Clock:        r.opts.Clock,
		PageType:     pt,
		Ranker:       r.deps.Ranker,
		FilterSort:   r.deps.FilterSort,
		Ledger:       r.deps.Ledger,
		Render:       page,
		Status:       page,
		Analytics:    r.deps.Analytics,
		FormatStatus: r.opts.FormatStatus,
		Logger:       r.log.With("page", page.ID),
	}, ds)

	r.mu.Lock()
	r.pages.Add(page.ID, page)
	r.mu.Unlock()

	page.coord.Refresh()
	r.log.Info("page session opened", "page", page.ID, "page_type", pt, "vendor", code, "products", ds.HasProductData())
	return page, nil
}

func (r *Registry) Get(id string) (*Page, error) {
	v, ok := r.pages.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	page := v.(*Page)
	page.touch(r.opts.Clock.Now())
	return page, nil
}

func (r *Registry) Close(id string) error {
	if !r.pages.Remove(id) {
		return ErrNotFound
	}
	return nil
}

// Reload navigates page id to url, or reloads its current url when url is
// empty. The session starts over.
func (r *Registry) Reload(ctx context.Context, id, url string) (*Page, error) {
	page, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if url == "" {
		url = page.View().URL
	}

	pt, code, ds, err := r.load(ctx, url)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.pages.Contains(id) {
		return nil, ErrNotFound
	}
	page.navigate(url, pt, code)
	page.coord.Reset(ds, pt)
	page.coord.Refresh()
	return page, nil
}

func (r *Registry) Len() int {
	return r.pages.Len()
}

// Each calls fn for every open page, most recently used first.
func (r *Registry) Each(fn func(*Page)) {
	keys := r.pages.Keys()
	for i := len(keys) - 1; i >= 0; i-- {
		if v, ok := r.pages.Peek(keys[i]); ok {
			fn(v.(*Page))
		}
	}
}

// RefreshWhere re-runs the search of every page whose session matches pred
// and reports how many it refreshed.
func (r *Registry) RefreshWhere(pred func(coordinator.Snapshot) bool) int {
	n := 0
	r.Each(func(p *Page) {
		if pred(p.coord.Snapshot()) {
			p.coord.Refresh()
			n++
		}
	})
	return n
}

// Sweep closes pages idle for longer than the idle TTL and reports how many
// it closed.
func (r *Registry) Sweep() int {
	if r.opts.IdleTTL <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.opts.Clock.Now().Add(-r.opts.IdleTTL)
	closed := 0
	for _, key := range r.pages.Keys() {
		v, ok := r.pages.Peek(key)
		if !ok {
			continue
		}
		if v.(*Page).idleSince().Before(cutoff) {
			r.pages.Remove(key)
			closed++
		}
	}
	return closed
}

// CloseAll closes every page, e.g. on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages.Purge()
}

func (r *Registry) load(ctx context.Context, url string) (model.PageType, string, *model.Dataset, error) {
	pt, code, ok := router.Resolve(url)
	if router.IsMenu(pt) && ok {
		ds, err := r.deps.Provider.Comparison(ctx, router.PlatformOf(pt), code)
		if err == nil {
			return pt, code, &ds, nil
		}
		r.log.Warn("comparison unavailable, falling back to vendor directory",
			"page_type", pt, "vendor", code, "err", err)
	}

	ds, err := r.deps.Provider.VendorDirectory(ctx)
	if err != nil {
		return pt, code, nil, fmt.Errorf("load vendor directory: %w", err)
	}
	return pt, code, &ds, nil
}

// LogAnalytics records search analytics as structured log lines.
type LogAnalytics struct {
	Log *slog.Logger
}

func (a LogAnalytics) Track(ev model.AnalyticsEvent) {
	a.Log.Info("search analytics",
		"query", ev.Query,
		"result_count", ev.ResultCount,
		"search_time_ms", ev.SearchTimeMs,
		"timestamp", ev.Timestamp,
		"page_type", ev.PageType,
		"has_product_data", ev.HasProductData,
	)
}
