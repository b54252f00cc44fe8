package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"pricecmp/coordinator"
	"pricecmp/model"
	"pricecmp/pages"
)

type pageRequest struct {
	URL string `json:"url"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type categoryRequest struct {
	Category model.Category `json:"category"`
}

type sortRequest struct {
	Sort model.SortKey `json:"sort"`
}

type maxPriceRequest struct {
	MaxPrice *int64 `json:"max_price"`
}

type resultsResponse struct {
	Results []resultDTO `json:"results"`
	Empty   bool        `json:"empty"`
	Status  string      `json:"status"`
	State   string      `json:"state"`
}

func (s *Server) handleOpenPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "url is required")
		return
	}

	page, err := s.pages.Open(r.Context(), req.URL)
	if err != nil {
		s.writePageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, page.View())
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	page, ok := s.lookupPage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, page.View())
}

func (s *Server) handleClosePage(w http.ResponseWriter, r *http.Request) {
	if err := s.pages.Close(chi.URLParam(r, "id")); err != nil {
		s.writePageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReloadPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON body: "+err.Error())
			return
		}
	}
	page, err := s.pages.Reload(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.URL))
	if err != nil {
		s.writePageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page.View())
}

func (s *Server) handleSetQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON body: "+err.Error())
		return
	}
	s.withCoordinator(w, r, func(c *coordinator.Coordinator) { c.SetQuery(req.Query) })
}

func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON body: "+err.Error())
		return
	}
	if !req.Category.Valid() {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown category: "+string(req.Category))
		return
	}
	s.withCoordinator(w, r, func(c *coordinator.Coordinator) { c.SetCategory(req.Category) })
}

func (s *Server) handleSetSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON body: "+err.Error())
		return
	}
	if !req.Sort.Valid() {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown sort: "+string(req.Sort))
		return
	}
	s.withCoordinator(w, r, func(c *coordinator.Coordinator) { c.SetSort(req.Sort) })
}

func (s *Server) handleSetMaxPrice(w http.ResponseWriter, r *http.Request) {
	var req maxPriceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON body: "+err.Error())
		return
	}
	if req.MaxPrice != nil && *req.MaxPrice < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "max_price must not be negative")
		return
	}
	s.withCoordinator(w, r, func(c *coordinator.Coordinator) { c.SetMaxPrice(req.MaxPrice) })
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	page, ok := s.lookupPage(w, r)
	if !ok {
		return
	}
	v := page.View()
	results := newResultFormatter(s.locale, v.PageType).convert(v.Results)

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(renderResultsText(results, v.Status)))
		return
	}
	writeJSON(w, http.StatusOK, resultsResponse{
		Results: results,
		Empty:   v.Empty,
		Status:  v.Status,
		State:   v.Session.State,
	})
}

// withCoordinator applies a session change and answers 202 with the
// session snapshot. Debounced queries publish later.
func (s *Server) withCoordinator(w http.ResponseWriter, r *http.Request, fn func(*coordinator.Coordinator)) {
	page, ok := s.lookupPage(w, r)
	if !ok {
		return
	}
	c := page.Coordinator()
	fn(c)
	writeJSON(w, http.StatusAccepted, c.Snapshot())
}

func (s *Server) lookupPage(w http.ResponseWriter, r *http.Request) (*pages.Page, bool) {
	page, err := s.pages.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writePageError(w, err)
		return nil, false
	}
	return page, true
}

func (s *Server) writePageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pages.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		s.log.Error("page operation failed", "err", err)
		writeError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", err.Error())
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := searchCoreRequest{
		Query:    q.Get("q"),
		URL:      q.Get("url"),
		Category: model.Category(q.Get("category")),
		Sort:     model.SortKey(q.Get("sort")),
		TraceID:  r.Header.Get("X-Trace-Id"),
	}
	if v := q.Get("max_price"); v != "" {
		p, err := parseInt64(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "max_price must be an integer")
			return
		}
		req.MaxPrice = &p
	}
	if v := q.Get("limit"); v != "" {
		n, err := parseInt64(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "limit must be a non-negative integer")
			return
		}
		req.Limit = int(n)
	}

	res, err := s.executeSearchCore(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidArgument):
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		case isNotFound(err):
			writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		default:
			writeError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":          res.Results,
		"total":            res.Total,
		"has_product_data": res.HasProductData,
		"page_type":        res.PageType,
		"trace_id":         res.TraceID,
		"latency_ms":       res.LatencyMs,
	})
}
