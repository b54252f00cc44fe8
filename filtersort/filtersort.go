package filtersort

import (
	"cmp"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"pricecmp/model"
)

// Options carries the inputs a category predicate may need besides the
// records themselves.
type Options struct {
	// MaxPrice bounds baseProduct.price for the high-savings category when
	// set.
	MaxPrice   *int64
	IsFavorite func(name string) bool
}

// Engine applies category filters and sort keys. It never mutates its
// input slices.
type Engine struct {
	locale language.Tag
}

func New(locale language.Tag) *Engine {
	return &Engine{locale: locale}
}

// ParseLocale falls back to Persian when tag is empty or invalid.
func ParseLocale(tag string) language.Tag {
	t, err := language.Parse(tag)
	if err != nil || tag == "" {
		return language.Persian
	}
	return t
}

// ApplyCategory keeps the hits the category admits. Vendor data is only
// filtered by favorites; unknown categories pass everything through.
func (e *Engine) ApplyCategory(hits []model.Hit, category model.Category, hasProductData bool, opts Options) []model.Hit {
	if !hasProductData {
		if category != model.CategoryFavorites || opts.IsFavorite == nil {
			return hits
		}
		return keep(hits, func(h model.Hit) bool {
			return opts.IsFavorite(h.Candidate.PrimaryName())
		})
	}

	var pred func(c *model.ComparisonRecord) bool
	switch category {
	case model.CategoryTFCheaper:
		pred = func(c *model.ComparisonRecord) bool { return c.PriceDiff > 0 }
	case model.CategorySFCheaper:
		pred = func(c *model.ComparisonRecord) bool { return c.PriceDiff < 0 }
	case model.CategorySamePrice:
		pred = func(c *model.ComparisonRecord) bool { return c.PriceDiff == 0 }
	case model.CategoryHighSavings:
		pred = func(c *model.ComparisonRecord) bool {
			if model.AbsDiff(c.PriceDiff) <= model.HighSavingsThreshold {
				return false
			}
			return opts.MaxPrice == nil || c.BaseProduct.Price <= *opts.MaxPrice
		}
	case model.CategoryFavorites:
		if opts.IsFavorite == nil {
			return hits
		}
		pred = func(c *model.ComparisonRecord) bool { return opts.IsFavorite(c.BaseProduct.Name) }
	default:
		return hits
	}

	return keep(hits, func(h model.Hit) bool {
		c, ok := h.Candidate.(*model.ComparisonRecord)
		return ok && pred(c)
	})
}

// ApplySort returns a stably sorted copy. Relevance and unknown keys keep
// the incoming order; vendor data only sorts by name.
func (e *Engine) ApplySort(hits []model.Hit, key model.SortKey, hasProductData bool) []model.Hit {
	var less func(a, b model.Hit) int

	switch key {
	case model.SortNameAsc, model.SortNameDesc:
		col := collate.New(e.locale)
		sign := 1
		if key == model.SortNameDesc {
			sign = -1
		}
		less = func(a, b model.Hit) int {
			return sign * col.CompareString(a.Candidate.PrimaryName(), b.Candidate.PrimaryName())
		}
	case model.SortPriceAsc, model.SortPriceDesc, model.SortSavingsDesc, model.SortPercentDesc:
		if !hasProductData {
			return hits
		}
		less = comparisonOrder(key)
	default:
		return hits
	}

	out := slices.Clone(hits)
	slices.SortStableFunc(out, less)
	return out
}

func comparisonOrder(key model.SortKey) func(a, b model.Hit) int {
	field := func(h model.Hit) *model.ComparisonRecord {
		c, _ := h.Candidate.(*model.ComparisonRecord)
		if c == nil {
			return &model.ComparisonRecord{}
		}
		return c
	}
	switch key {
	case model.SortPriceAsc:
		return func(a, b model.Hit) int {
			return cmp.Compare(field(a).BaseProduct.Price, field(b).BaseProduct.Price)
		}
	case model.SortPriceDesc:
		return func(a, b model.Hit) int {
			return cmp.Compare(field(b).BaseProduct.Price, field(a).BaseProduct.Price)
		}
	case model.SortSavingsDesc:
		return func(a, b model.Hit) int {
			return cmp.Compare(model.AbsDiff(field(b).PriceDiff), model.AbsDiff(field(a).PriceDiff))
		}
	default:
		return func(a, b model.Hit) int {
			return cmp.Compare(field(b).PercentDiff, field(a).PercentDiff)
		}
	}
}

func keep(hits []model.Hit, pred func(model.Hit) bool) []model.Hit {
	out := make([]model.Hit, 0, len(hits))
	for _, h := range hits {
		if pred(h) {
			out = append(out, h)
		}
	}
	return out
}
