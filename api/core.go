package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pricecmp/filtersort"
	"pricecmp/internal/searchutil"
	"pricecmp/model"
	"pricecmp/router"
	"pricecmp/source"
)

var errInvalidArgument = errors.New("invalid argument")

type searchCoreRequest struct {
	Query    string
	URL      string
	Category model.Category
	Sort     model.SortKey
	MaxPrice *int64
	Limit    int
	TraceID  string
}

type searchCoreResult struct {
	Results        []resultDTO
	Total          int
	HasProductData bool
	PageType       model.PageType
	VendorCode     string
	TraceID        string
	LatencyMs      int64
}

// executeSearchCore runs one search against the dataset the URL selects,
// without a page session. Usage statistics are not recorded.
func (s *Server) executeSearchCore(ctx context.Context, req searchCoreRequest) (*searchCoreResult, error) {
	start := time.Now()
	traceID := normalizeTraceID(req.TraceID)

	if req.Category == "" {
		req.Category = model.CategoryAll
	}
	if req.Sort == "" {
		req.Sort = model.SortRelevance
	}
	if !req.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", errInvalidArgument, req.Category)
	}
	if !req.Sort.Valid() {
		return nil, fmt.Errorf("%w: unknown sort %q", errInvalidArgument, req.Sort)
	}

	pt, code, ok := router.Resolve(req.URL)
	var ds model.Dataset
	var err error
	if ok && router.IsMenu(pt) {
		ds, err = s.provider.Comparison(ctx, router.PlatformOf(pt), code)
	} else {
		ds, err = s.provider.VendorDirectory(ctx)
	}
	if err != nil {
		return nil, err
	}

	hasProductData := ds.HasProductData()
	cands := ds.Candidates()
	query := strings.TrimSpace(req.Query)
	var hits []model.Hit
	if query != "" {
		hits = s.ranker.Rank(query, cands)
	} else {
		hits = model.Unscored(cands)
	}
	hits = s.filterSort.ApplyCategory(hits, req.Category, hasProductData, filtersort.Options{
		MaxPrice:   req.MaxPrice,
		IsFavorite: s.ledger.IsFavorite,
	})
	hits = s.filterSort.ApplySort(hits, req.Sort, hasProductData)
	total := len(hits)
	hits = searchutil.Limit(hits, req.Limit)

	res := &searchCoreResult{
		Results:        newResultFormatter(s.locale, pt).convert(hits),
		Total:          total,
		HasProductData: hasProductData,
		PageType:       pt,
		VendorCode:     code,
		TraceID:        traceID,
		LatencyMs:      time.Since(start).Milliseconds(),
	}
	s.log.Info("search served",
		"trace_id", traceID,
		"page_type", pt,
		"vendor", code,
		"hits", total,
		"latency_ms", res.LatencyMs,
	)
	return res, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, source.ErrNotFound)
}
