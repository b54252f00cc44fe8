package api

import (
	"net/http"
	"strconv"
	"strings"

	"pricecmp/coordinator"
	"pricecmp/model"
)

const defaultSuggestLimit = 8

type toggleFavoriteRequest struct {
	Name   string `json:"name"`
	PageID string `json:"page_id,omitempty"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.History())
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.ledger.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	limit := defaultSuggestLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.ledger.Suggest(r.URL.Query().Get("q"), limit))
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Favorites())
}

// handleToggleFavorite flips a favorite and re-runs every open session that
// is filtering by favorites.
func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req toggleFavoriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "name is required")
		return
	}

	var origin model.PageType
	if req.PageID != "" {
		page, err := s.pages.Get(req.PageID)
		if err != nil {
			s.writePageError(w, err)
			return
		}
		origin = page.PageType()
	}

	added := s.ledger.ToggleFavorite(req.Name, origin)
	refreshed := s.pages.RefreshWhere(func(snap coordinator.Snapshot) bool {
		return snap.Category == model.CategoryFavorites
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      req.Name,
		"favorite":  added,
		"refreshed": refreshed,
	})
}

type statsResponse struct {
	model.SearchStatistics
	Revision uint64 `json:"revision"`
}

// handleStats also reports the ledger revision so clients can tell when
// history, favorites or statistics changed since their last poll.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		SearchStatistics: s.ledger.Statistics(),
		Revision:         s.ledger.Revision(),
	})
}

func (s *Server) handleResetStats(w http.ResponseWriter, r *http.Request) {
	s.ledger.ResetStatistics()
	w.WriteHeader(http.StatusNoContent)
}

func parseInt64(v string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
}
