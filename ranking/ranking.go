// Package ranking scores candidates against a free-text query and keeps the
// ones that clear a threshold, best first.
//
// Scoring, per candidate, over its lowercased searchable text:
//
//	+1000  text contains the whole query
//	+100   per query word contained in the text
//	+50    per such word at the start of the text or after a space
//	+sim   per word not contained: Similarity(word, text)
//	length adjustment, see LengthPolicy
//
// Candidates scoring above the threshold are kept and stably sorted by score
// descending.
package ranking

import (
	"cmp"
	"slices"
	"strings"

	"pricecmp/internal/textutil"
	"pricecmp/model"
)

const (
	DefaultThreshold = 10

	exactMatchScore   = 1000
	wordMatchScore    = 100
	wordStartScore    = 50
	subsequenceScore  = 10
	completionBonus   = 20
	tokenMatchScore   = 20
	lengthPenaltyRate = 2
	shortTextRunes    = 50
	shortTextBonus    = 10
)

type LengthPolicy int

const (
	// LengthPenalty subtracts 2 points per rune of length difference
	// between query and searchable text.
	LengthPenalty LengthPolicy = iota
	// LengthBonus adds 10 points when the searchable text is under 50 runes.
	LengthBonus
)

func ParseLengthPolicy(s string) LengthPolicy {
	if s == "bonus" {
		return LengthBonus
	}
	return LengthPenalty
}

type Options struct {
	Threshold          int
	LengthPolicy       LengthPolicy
	IncludeVendorCodes bool
}

type Engine struct {
	opts Options
}

func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Rank returns the candidates matching query with their scores. An empty or
// all-whitespace query returns every candidate unscored in input order.
func (e *Engine) Rank(query string, cands []model.Candidate) []model.Hit {
	lowerQuery := strings.ToLower(strings.TrimSpace(query))
	words := textutil.Fields(lowerQuery)
	if len(words) == 0 {
		return model.Unscored(cands)
	}

	hits := make([]model.Hit, 0, len(cands))
	for _, c := range cands {
		text := strings.ToLower(c.SearchText(e.opts.IncludeVendorCodes))
		score := e.score(lowerQuery, words, text)
		if score > e.opts.Threshold {
			hits = append(hits, model.Hit{Candidate: c, Score: score, Scored: true})
		}
	}

	slices.SortStableFunc(hits, func(a, b model.Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return hits
}

// Score computes the relevance of a single candidate, ignoring the
// threshold.
func (e *Engine) Score(query string, c model.Candidate) int {
	lowerQuery := strings.ToLower(strings.TrimSpace(query))
	text := strings.ToLower(c.SearchText(e.opts.IncludeVendorCodes))
	return e.score(lowerQuery, textutil.Fields(lowerQuery), text)
}

func (e *Engine) score(lowerQuery string, words []string, text string) int {
	score := 0
	if strings.Contains(text, lowerQuery) {
		score += exactMatchScore
	}

	for _, word := range words {
		if strings.Contains(text, word) {
			score += wordMatchScore
			if strings.HasPrefix(text, word) || strings.Contains(text, " "+word) {
				score += wordStartScore
			}
			continue
		}
		score += Similarity(word, text)
	}

	textLen := textutil.RuneLen(text)
	switch e.opts.LengthPolicy {
	case LengthBonus:
		if textLen < shortTextRunes {
			score += shortTextBonus
		}
	default:
		diff := textutil.RuneLen(lowerQuery) - textLen
		if diff < 0 {
			diff = -diff
		}
		score -= lengthPenaltyRate * diff
	}
	return score
}

// Similarity scores how well word survives as an ordered, gap-tolerant
// subsequence of text after script folding: 10 per matched rune, 20 when
// the whole word matched, and 20 per multi-rune token of the word found
// verbatim in the text.
func Similarity(word, text string) int {
	w := []rune(textutil.Fold(word))
	t := textutil.Fold(text)

	score, matched := 0, 0
	for _, r := range t {
		if matched >= len(w) {
			break
		}
		if r == w[matched] {
			score += subsequenceScore
			matched++
		}
	}
	if len(w) > 0 && matched == len(w) {
		score += completionBonus
	}

	for _, tok := range textutil.Fields(string(w)) {
		if textutil.RuneLen(tok) > 1 && strings.Contains(t, tok) {
			score += tokenMatchScore
		}
	}
	return score
}
