package textutil

import (
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const foldCacheSize = 4096

var foldCache *lru.Cache

func init() {
	foldCache, _ = lru.New(foldCacheSize)
}

// Fold maps visually equivalent Arabic-script variants to their Persian
// form, unifies digits, strips diacritics and lowercases. Results are
// memoized.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	if v, ok := foldCache.Get(s); ok {
		return v.(string)
	}
	t := transform.Chain(
		norm.NFKC,
		runes.Remove(runes.Predicate(isIgnorable)),
		runes.Map(foldRune),
		cases.Lower(language.Und),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = strings.ToLower(s)
	}
	foldCache.Add(s, out)
	return out
}

func isIgnorable(r rune) bool {
	// tatweel and harakat
	return r == 0x0640 || (r >= 0x064B && r <= 0x0652) || r == 0x0670
}

func foldRune(r rune) rune {
	switch r {
	case 'ي', 'ى', 'ئ':
		return 'ی'
	case 'ك':
		return 'ک'
	case 'ة', 'ۀ':
		return 'ه'
	case 'أ', 'إ', 'ٱ':
		return 'ا'
	case 'ؤ':
		return 'و'
	case 0x200C:
		return ' '
	}
	if d, ok := digitValue(r); ok {
		return '0' + d
	}
	return r
}

func digitValue(r rune) (rune, bool) {
	switch {
	case r >= '۰' && r <= '۹':
		return r - '۰', true
	case r >= '٠' && r <= '٩':
		return r - '٠', true
	}
	return 0, false
}

// PersianToWestern converts Persian and Arabic-Indic digits to ASCII digits
// and leaves everything else untouched.
func PersianToWestern(s string) string {
	return strings.Map(func(r rune) rune {
		if d, ok := digitValue(r); ok {
			return '0' + d
		}
		return r
	}, s)
}

// RuneLen counts runes, which is what the scoring rules measure.
func RuneLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// Fields splits on Unicode whitespace, dropping empty tokens.
func Fields(s string) []string {
	return strings.FieldsFunc(s, unicode.IsSpace)
}
