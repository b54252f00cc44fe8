// Package coordinator sequences one page session's searches: it debounces
// typed queries, runs rank, filter and sort, publishes results and records
// usage statistics.
package coordinator

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"pricecmp/filtersort"
	"pricecmp/model"
)

const DefaultDebounce = 150 * time.Millisecond

type State int

const (
	Idle State = iota
	Debouncing
	Searching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Debouncing:
		return "debouncing"
	case Searching:
		return "searching"
	default:
		return "unknown"
	}
}

// RenderSink receives each published result list. empty is true when the
// list has no entries.
type RenderSink interface {
	Render(results []model.Hit, empty bool)
}

// StatusSink receives human-readable status lines.
type StatusSink interface {
	Status(text string)
}

type AnalyticsSink interface {
	Track(ev model.AnalyticsEvent)
}

// Ledger is the slice of the usage ledger a session needs.
type Ledger interface {
	AddToHistory(query string, resultCount int) bool
	UpdateStatistics(query string, resultCount int)
	IsFavorite(name string) bool
}

type Ranker interface {
	Rank(query string, cands []model.Candidate) []model.Hit
}

type Config struct {
	Debounce     time.Duration
	Clock        clock.Clock
	PageType     model.PageType
	Ranker       Ranker
	FilterSort   *filtersort.Engine
	Ledger       Ledger
	Render       RenderSink
	Status       StatusSink
	Analytics    AnalyticsSink
	FormatStatus func(count int, elapsed time.Duration) string
	Logger       *slog.Logger
}

// Session is the transient search state of one page context.
type Session struct {
	Query    string
	Category model.Category
	Sort     model.SortKey
	MaxPrice *int64
	Results  []model.Hit
	Token    uint64
}

type Snapshot struct {
	Query          string         `json:"query"`
	Category       model.Category `json:"category"`
	Sort           model.SortKey  `json:"sort"`
	MaxPrice       *int64         `json:"max_price"`
	State          string         `json:"state"`
	ResultCount    int            `json:"result_count"`
	HasProductData bool           `json:"has_product_data"`
	PageType       model.PageType `json:"page_type"`
	Token          uint64         `json:"token"`
}

type Coordinator struct {
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	dataset  *model.Dataset
	pageType model.PageType
	session  Session
	state    State
	timer    *clock.Timer
	closed   bool
}

func New(cfg Config, dataset *model.Dataset) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	if cfg.FormatStatus == nil {
		cfg.FormatStatus = StatusFormatter("en")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		cfg:      cfg,
		log:      cfg.Logger,
		dataset:  dataset,
		pageType: cfg.PageType,
		session:  newSession(),
	}
}

func newSession() Session {
	return Session{Category: model.CategoryAll, Sort: model.SortRelevance}
}

// SetQuery records a typed query. Non-empty queries run after the debounce
// window unless superseded; an empty query runs at once.
func (c *Coordinator) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.cancelPendingLocked()
	c.session.Query = q
	c.session.Token++

	if strings.TrimSpace(q) == "" || c.cfg.Debounce == 0 {
		c.runLocked()
		return
	}

	token := c.session.Token
	c.state = Debouncing
	c.timer = c.cfg.Clock.AfterFunc(c.cfg.Debounce, func() { c.fire(token) })
}

// SetCategory switches the filter and runs at once with the current query.
// Leaving high-savings drops the price ceiling.
func (c *Coordinator) SetCategory(cat model.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.session.Category = cat
	if cat != model.CategoryHighSavings {
		c.session.MaxPrice = nil
	}
	c.runNowLocked()
}

func (c *Coordinator) SetSort(key model.SortKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.session.Sort = key
	c.runNowLocked()
}

// SetMaxPrice sets or clears the high-savings price ceiling. Results only
// change when that category is active.
func (c *Coordinator) SetMaxPrice(p *int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if p != nil {
		v := *p
		p = &v
	}
	c.session.MaxPrice = p
	if c.session.Category == model.CategoryHighSavings {
		c.runNowLocked()
	}
}

// Refresh re-runs the current session immediately, e.g. after favorites
// change.
func (c *Coordinator) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.runNowLocked()
}

// Reset starts a fresh session over dataset, as on page navigation.
// Pending work is cancelled and no search runs until the next change.
func (c *Coordinator) Reset(dataset *model.Dataset, pageType model.PageType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelPendingLocked()
	token := c.session.Token + 1
	c.session = newSession()
	c.session.Token = token
	c.dataset = dataset
	c.pageType = pageType
	c.state = Idle
}

// Close cancels pending work; later changes are ignored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelPendingLocked()
	c.session.Token++
	c.closed = true
	c.state = Idle
}

func (c *Coordinator) Results() []model.Hit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Hit(nil), c.session.Results...)
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) Dataset() *model.Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dataset
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Query:          c.session.Query,
		Category:       c.session.Category,
		Sort:           c.session.Sort,
		MaxPrice:       c.session.MaxPrice,
		State:          c.state.String(),
		ResultCount:    len(c.session.Results),
		HasProductData: c.dataset.HasProductData(),
		PageType:       c.pageType,
		Token:          c.session.Token,
	}
}

func (c *Coordinator) runNowLocked() {
	c.cancelPendingLocked()
	c.session.Token++
	c.runLocked()
}

func (c *Coordinator) fire(token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || token != c.session.Token {
		c.log.Debug("discarding superseded search", "token", token, "current", c.session.Token)
		return
	}
	c.timer = nil
	c.runLocked()
}

func (c *Coordinator) cancelPendingLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.state == Debouncing {
		c.state = Idle
	}
}

func (c *Coordinator) runLocked() {
	c.state = Searching
	start := c.cfg.Clock.Now()

	hasProductData := c.dataset.HasProductData()
	query := strings.TrimSpace(c.session.Query)

	cands := c.dataset.Candidates()
	var hits []model.Hit
	if query != "" {
		hits = c.cfg.Ranker.Rank(query, cands)
	} else {
		hits = model.Unscored(cands)
	}

	hits = c.cfg.FilterSort.ApplyCategory(hits, c.session.Category, hasProductData, filtersort.Options{
		MaxPrice:   c.session.MaxPrice,
		IsFavorite: c.cfg.Ledger.IsFavorite,
	})
	hits = c.cfg.FilterSort.ApplySort(hits, c.session.Sort, hasProductData)
	c.session.Results = hits

	elapsed := c.cfg.Clock.Since(start)

	if c.cfg.Render != nil {
		c.cfg.Render.Render(hits, len(hits) == 0)
	}
	if c.cfg.Status != nil {
		c.cfg.Status.Status(c.cfg.FormatStatus(len(hits), elapsed))
	}

	if query != "" {
		if !c.cfg.Ledger.AddToHistory(query, len(hits)) {
			c.cfg.Ledger.UpdateStatistics(query, len(hits))
		}
		if c.cfg.Analytics != nil {
			c.cfg.Analytics.Track(model.AnalyticsEvent{
				Query:          query,
				ResultCount:    len(hits),
				SearchTimeMs:   float64(elapsed.Microseconds()) / 1000,
				Timestamp:      c.cfg.Clock.Now().UnixMilli(),
				PageType:       c.pageType,
				HasProductData: hasProductData,
			})
		}
	}

	c.log.Debug("search published",
		"query", query,
		"category", c.session.Category,
		"sort", c.session.Sort,
		"results", len(hits),
		"elapsed", elapsed,
	)
	c.state = Idle
}
