package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	reStarRating     = regexp.MustCompile(`(\d+\.?\d*)\s*(?:\(.*امتیاز\)|★|⭐)`)
	reFractionRating = regexp.MustCompile(`(\d+\.?\d*)\s*(?:از\s*\d+|/\d+)`)
	rePersianRating  = regexp.MustCompile(`(?i)امتیاز[:\s]*(\d+\.?\d*)`)
	reSpaces         = regexp.MustCompile(`\s+`)
)

// ParseRating extracts a 0..10 rating from free text such as "۴.۵ ★",
// "4.2 از 5" or "امتیاز: 4". Patterns are tried most common first.
func ParseRating(text string) (float64, bool) {
	if strings.TrimSpace(text) == "" {
		return 0, false
	}
	western := PersianToWestern(text)
	for _, re := range []*regexp.Regexp{reStarRating, reFractionRating, rePersianRating} {
		m := re.FindStringSubmatch(western)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if v >= 0 && v <= 10 {
			return v, true
		}
	}
	return 0, false
}

// CleanName collapses whitespace and applies a rune-safe max length.
func CleanName(s string, maxLen int) string {
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		rs := []rune(s)
		if maxLen <= 3 {
			return string(rs[:maxLen])
		}
		cut := maxLen - 3
		// Prefer cutting at a word boundary.
		for i := cut - 1; i > cut/2; i-- {
			if rs[i] == ' ' {
				cut = i
				break
			}
		}
		s = strings.TrimSpace(string(rs[:cut])) + "..."
	}
	return s
}
