package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"pricecmp/config"
	"pricecmp/coordinator"
	"pricecmp/filtersort"
	"pricecmp/heartbeat"
	"pricecmp/ledger"
	"pricecmp/model"
	"pricecmp/pages"
	"pricecmp/ranking"
	"pricecmp/scheduler"
	"pricecmp/source"
	"pricecmp/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	down atomic.Bool
}

func (f *fakeProvider) VendorDirectory(context.Context) (model.Dataset, error) {
	if f.down.Load() {
		return model.Dataset{}, errors.New("connection refused")
	}
	rating := 4.8
	return model.Dataset{
		Vendors: []model.VendorRecord{
			{VendorMapping: model.VendorMapping{SFCode: "abc", SFName: "Pizza Place", TFCode: "xyz", TFName: "Pizza Place"}, Rating: &rating},
			{VendorMapping: model.VendorMapping{SFCode: "def", SFName: "Kebab House", TFCode: "uvw", TFName: "Kebab House"}},
		},
		Stats: model.DirectoryStats{TotalVendors: 2},
	}, nil
}

func (f *fakeProvider) Comparison(_ context.Context, _ model.Platform, code string) (model.Dataset, error) {
	if code == "missing" {
		return model.Dataset{}, source.ErrNotFound
	}
	pair := func(name string, base, counterpart int64) model.ComparisonRecord {
		return model.NewComparison(model.Product{Name: name, Price: base}, model.Product{Name: name, Price: counterpart})
	}
	return model.Dataset{
		VendorInfo: &model.VendorMapping{SFCode: code, TFCode: "xyz"},
		Comparisons: []model.ComparisonRecord{
			pair("pizza margherita", 100000, 90000),
			pair("burger", 20000, 26000),
			pair("pepperoni pizza", 30000, 30000),
		},
	}, nil
}

func (f *fakeProvider) Health(context.Context) error {
	if f.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

type countingCache struct{ invalidations atomic.Int32 }

func (c *countingCache) Invalidate() { c.invalidations.Add(1) }

type countingRefresher struct{ calls atomic.Int32 }

func (c *countingRefresher) RefreshDirectory(context.Context) error {
	c.calls.Add(1)
	return nil
}

type noopCleaner struct{}

func (noopCleaner) Cleanup() int { return 0 }

type testEnv struct {
	srv       *Server
	http      *httptest.Server
	ledger    *ledger.Ledger
	cache     *countingCache
	refresher *countingRefresher
	provider  *fakeProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Search.Locale = "en"

	provider := &fakeProvider{}
	l := ledger.New(store.New(store.NewMemoryBackend(), testLogger()), ledger.Options{}, testLogger())
	ranker := ranking.New(ranking.Options{Threshold: ranking.DefaultThreshold})
	fs := filtersort.New(language.Persian)

	reg, err := pages.NewRegistry(pages.Deps{
		Provider:   provider,
		Ledger:     l,
		Ranker:     ranker,
		FilterSort: fs,
		Analytics:  pages.LogAnalytics{Log: testLogger()},
	}, pages.Options{MaxSessions: 8, FormatStatus: func(n int, _ time.Duration) string {
		return coordinator.StatusFormatter("en")(n, 0)
	}}, testLogger())
	require.NoError(t, err)
	t.Cleanup(reg.CloseAll)

	hb := heartbeat.New(time.Hour, testLogger())
	hb.Register(heartbeat.ComponentSource, heartbeat.SourceCheck(provider))

	refresher := &countingRefresher{}
	cc := &countingCache{}
	srv := NewServer(Deps{
		Config:     cfg,
		Pages:      reg,
		Ledger:     l,
		Provider:   provider,
		Ranker:     ranker,
		FilterSort: fs,
		Cache:      cc,
		Scheduler:  scheduler.New(&cfg.Scheduler, noopCleaner{}, refresher, reg, testLogger()),
		Heartbeat:  hb,
		Logger:     testLogger(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, http: ts, ledger: l, cache: cc, refresher: refresher, provider: provider}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.http.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) openPage(t *testing.T, url string) pages.View {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/pages", map[string]string{"url": url})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var v pages.View
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func (e *testEnv) results(t *testing.T, id string) resultsResponse {
	t.Helper()
	resp, body := e.do(t, http.MethodGet, "/api/pages/"+id+"/results", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out resultsResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func names(rs []resultDTO) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

const menuURL = "https://snappfood.ir/restaurant/menu/pizza-place-r-abc/"

func TestPages_OpenQueryAndResults(t *testing.T) {
	env := newTestEnv(t)
	v := env.openPage(t, menuURL)
	require.Equal(t, model.PageSnappfoodMenu, v.PageType)
	require.True(t, v.Session.HasProductData)

	resp, body := env.do(t, http.MethodPost, "/api/pages/"+v.ID+"/query", map[string]string{"query": "pizza"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	var snap coordinator.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	require.Equal(t, "pizza", snap.Query)

	require.Eventually(t, func() bool {
		return len(env.results(t, v.ID).Results) == 2
	}, 2*time.Second, 10*time.Millisecond)

	got := env.results(t, v.ID)
	require.Equal(t, []string{"pepperoni pizza", "pizza margherita"}, names(got.Results))
	require.Equal(t, "2 results in 0 ms", got.Status)
	require.Equal(t, "comparison", got.Results[0].Kind)

	require.Eventually(t, func() bool {
		return len(env.ledger.History()) == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, "pizza", env.ledger.History()[0].Query)
}

func TestPages_CategoryAndSort(t *testing.T) {
	env := newTestEnv(t)
	v := env.openPage(t, menuURL)

	resp, _ := env.do(t, http.MethodPost, "/api/pages/"+v.ID+"/category", map[string]string{"category": "tf-cheaper"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, []string{"pizza margherita"}, names(env.results(t, v.ID).Results))

	env.do(t, http.MethodPost, "/api/pages/"+v.ID+"/category", map[string]string{"category": "all"})
	resp, _ = env.do(t, http.MethodPost, "/api/pages/"+v.ID+"/sort", map[string]string{"sort": "price-asc"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, []string{"burger", "pepperoni pizza", "pizza margherita"}, names(env.results(t, v.ID).Results))
}

func TestPages_MaxPriceAppliesToHighSavings(t *testing.T) {
	env := newTestEnv(t)
	v := env.openPage(t, menuURL)

	env.do(t, http.MethodPost, "/api/pages/"+v.ID+"/category", map[string]string{"category": "high-savings"})
	require.Len(t, env.results(t, v.ID).Results, 2)

	resp, body := env.do(t, http.MethodPost, "/api/pages/"+v.ID+"/max-price", map[string]any{"max_price": 50000})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var snap coordinator.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	require.NotNil(t, snap.MaxPrice)
	require.Equal(t, []string{"burger"}, names(env.results(t, v.ID).Results))

	resp, _ = env.do(t, http.MethodPost, "/api/pages/"+v.ID+"/max-price", map[string]any{"max_price": -1})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPages_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	v := env.openPage(t, menuURL)

	resp, _ := env.do(t, http.MethodPost, "/api/pages/"+v.ID+"/category", map[string]string{"category": "cheap"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/pages/"+v.ID+"/sort", map[string]string{"sort": "random"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/pages", map[string]string{"url": " "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/pages/nope/results", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var er model.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	require.Equal(t, "NOT_FOUND", er.Error.Code)
	require.NotEmpty(t, er.Error.RequestID)
}

func TestPages_ReloadAndClose(t *testing.T) {
	env := newTestEnv(t)
	v := env.openPage(t, menuURL)

	resp, body := env.do(t, http.MethodPost, "/api/pages/"+v.ID+"/reload", map[string]string{"url": "https://snappfood.ir/"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var reloaded pages.View
	require.NoError(t, json.Unmarshal(body, &reloaded))
	require.Equal(t, model.PageSnappfoodHomepage, reloaded.PageType)
	require.False(t, reloaded.Session.HasProductData)
	require.Equal(t, "vendor", env.results(t, v.ID).Results[0].Kind)

	resp, _ = env.do(t, http.MethodDelete, "/api/pages/"+v.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/pages/"+v.ID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPages_OpenFailsWhenSourceDown(t *testing.T) {
	env := newTestEnv(t)
	env.provider.down.Store(true)
	resp, body := env.do(t, http.MethodPost, "/api/pages", map[string]string{"url": "https://snappfood.ir/"})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode, string(body))
}

func TestResults_TextFormat(t *testing.T) {
	env := newTestEnv(t)
	v := env.openPage(t, menuURL)

	resp, body := env.do(t, http.MethodGet, "/api/pages/"+v.ID+"/results?format=text", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	require.Contains(t, string(body), "## 3 results in 0 ms")
	require.Contains(t, string(body), "1. pizza margherita: 100000 / 90000")
}

func TestFavorites_ToggleRefreshesFavoritesPages(t *testing.T) {
	env := newTestEnv(t)
	v := env.openPage(t, menuURL)
	env.do(t, http.MethodPost, "/api/pages/"+v.ID+"/category", map[string]string{"category": "favorites"})
	require.Empty(t, env.results(t, v.ID).Results)

	resp, body := env.do(t, http.MethodPost, "/api/favorites/toggle", map[string]string{"name": "burger", "page_id": v.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, true, out["favorite"])
	require.EqualValues(t, 1, out["refreshed"])

	require.Equal(t, []string{"burger"}, names(env.results(t, v.ID).Results))

	favs := env.ledger.Favorites()
	require.Len(t, favs, 1)
	require.NotNil(t, favs[0].Source)
	require.Equal(t, model.PageSnappfoodMenu, *favs[0].Source)

	resp, _ = env.do(t, http.MethodPost, "/api/favorites/toggle", map[string]string{"name": ""})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryAndStats(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.AddToHistory("pizza", 2)
	env.ledger.AddToHistory("pasta", 1)

	resp, body := env.do(t, http.MethodGet, "/api/history/suggest?q=piz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var suggestions []model.SearchHistoryEntry
	require.NoError(t, json.Unmarshal(body, &suggestions))
	require.NotEmpty(t, suggestions)
	require.Equal(t, "pizza", suggestions[0].Query)

	resp, body = env.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats statsResponse
	require.NoError(t, json.Unmarshal(body, &stats))
	require.Equal(t, 2, stats.TotalSearches)
	require.Equal(t, uint64(2), stats.Revision)

	resp, _ = env.do(t, http.MethodDelete, "/api/history", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Empty(t, env.ledger.History())

	_, body = env.do(t, http.MethodGet, "/api/stats", nil)
	require.NoError(t, json.Unmarshal(body, &stats))
	require.Equal(t, uint64(3), stats.Revision, "clearing history bumps the revision")

	resp, _ = env.do(t, http.MethodDelete, "/api/stats", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Zero(t, env.ledger.Statistics().TotalSearches)
}

func TestSearch_Stateless(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/search?q=pizza&url="+menuURL+"&limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out struct {
		Results []resultDTO `json:"results"`
		Total   int         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, 2, out.Total)
	require.Len(t, out.Results, 1)
	require.Empty(t, env.ledger.History())

	resp, _ = env.do(t, http.MethodGet, "/api/search?url=https://snappfood.ir/restaurant/menu/x-r-missing/", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/search?sort=random", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminAndHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/admin/cache/clear", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.EqualValues(t, 1, env.cache.invalidations.Load())

	resp, _ = env.do(t, http.MethodPost, "/api/admin/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, env.refresher.calls.Load())

	resp, body = env.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st statusResponse
	require.NoError(t, json.Unmarshal(body, &st))
	require.NotNil(t, st.LastRefresh)
	require.Equal(t, "en", st.Locale)

	env.srv.heartbeat.CheckNow(context.Background())
	resp, _ = env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env.provider.down.Store(true)
	env.srv.heartbeat.CheckNow(context.Background())
	resp, body = env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "degraded still serves")
	require.Contains(t, string(body), "cached_only")
}
