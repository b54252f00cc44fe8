package model

import (
	"bytes"
	"encoding/json"
)

type SearchHistoryEntry struct {
	Query       string `json:"query"`
	Timestamp   int64  `json:"timestamp"`
	ResultCount int    `json:"resultCount"`
}

// UnmarshalJSON also accepts the legacy shape where an entry is a bare
// query string.
func (e *SearchHistoryEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var q string
		if err := json.Unmarshal(data, &q); err != nil {
			return err
		}
		*e = SearchHistoryEntry{Query: q}
		return nil
	}
	type plain SearchHistoryEntry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = SearchHistoryEntry(p)
	return nil
}

type FavoriteEntry struct {
	Name      string    `json:"name"`
	Timestamp int64     `json:"timestamp"`
	Source    *PageType `json:"source"`
}

// UnmarshalJSON also accepts the legacy shape where a favorite is a bare
// name string.
func (f *FavoriteEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*f = FavoriteEntry{Name: name}
		return nil
	}
	type plain FavoriteEntry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = FavoriteEntry(p)
	return nil
}

type SearchStatistics struct {
	TotalSearches      int            `json:"totalSearches"`
	AverageResultCount int            `json:"averageResultCount"`
	PopularQueries     map[string]int `json:"popularQueries"`
	LastSearchTime     *int64         `json:"lastSearchTime"`
}

func DefaultStatistics() SearchStatistics {
	return SearchStatistics{PopularQueries: map[string]int{}}
}

func (s SearchStatistics) Clone() SearchStatistics {
	out := s
	out.PopularQueries = make(map[string]int, len(s.PopularQueries))
	for k, v := range s.PopularQueries {
		out.PopularQueries[k] = v
	}
	if s.LastSearchTime != nil {
		t := *s.LastSearchTime
		out.LastSearchTime = &t
	}
	return out
}
