// Package compare pairs the products of one vendor across the two platforms
// and words the resulting price differences.
package compare

import (
	"slices"

	"golang.org/x/text/message"

	"pricecmp/model"
)

type Result struct {
	Comparisons      []model.ComparisonRecord
	FoundMappings    int
	ValidComparisons int
}

// Build pairs every base product that has an item mapping to an existing
// counterpart product. Bases priced at zero or less are skipped. Records come
// out in ascending base id order.
func Build(base, counterpart map[int64]model.Product, itemMappings map[int64]int64) Result {
	ids := make([]int64, 0, len(base))
	for id := range base {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var res Result
	for _, id := range ids {
		cid, ok := itemMappings[id]
		if !ok || cid == 0 {
			continue
		}
		res.FoundMappings++

		cp, ok := counterpart[cid]
		if !ok {
			continue
		}
		bp := base[id]
		if bp.Price <= 0 {
			continue
		}
		res.Comparisons = append(res.Comparisons, model.NewComparison(bp, cp))
		res.ValidComparisons++
	}
	return res
}

const (
	ClassSamePrice = "sp-vs-tp-same-price"
	ClassCheaper   = "sp-vs-tp-cheaper"
	ClassExpensive = "sp-vs-tp-expensive"
)

// Description is the badge shown next to a product on its menu page.
type Description struct {
	Text  string `json:"text"`
	Class string `json:"class"`
}

func PlatformLabel(p model.Platform) string {
	switch p {
	case model.PlatformSnappfood:
		return "اسنپ‌فود"
	case model.PlatformTapsifood:
		return "تپسی‌فود"
	default:
		return string(p)
	}
}

// Describe words rec from the base side's point of view: whether ordering
// on the counterpart platform is cheaper, dearer or the same.
func Describe(rec *model.ComparisonRecord, counterpart model.Platform, p *message.Printer) Description {
	label := PlatformLabel(counterpart)
	abs := model.AbsDiff(rec.PriceDiff)

	switch {
	case rec.PriceDiff == 0:
		return Description{
			Text:  p.Sprintf("سفارش از %s (پیک رایگان)", label),
			Class: ClassSamePrice,
		}
	case rec.PriceDiff > 0:
		return Description{
			Text:  p.Sprintf("%d%% ارزان‌تر در %s (%d تومان کمتر)", rec.PercentDiff, label, abs),
			Class: ClassCheaper,
		}
	default:
		return Description{
			Text:  p.Sprintf("%d%% گران‌تر در %s (%d تومان بیشتر)", rec.PercentDiff, label, abs),
			Class: ClassExpensive,
		}
	}
}

// Summary is the shorter line used in result lists, with a savings class of
// "savings", "expensive" or "equal".
func Summary(rec *model.ComparisonRecord, p *message.Printer) (text, class string) {
	abs := model.AbsDiff(rec.PriceDiff)
	switch {
	case rec.PriceDiff == 0:
		return "قیمت برابر", "equal"
	case rec.PriceDiff > 0:
		text = p.Sprintf("%d تومان ارزان‌تر", abs)
		class = "savings"
	default:
		text = p.Sprintf("%d تومان گران‌تر", abs)
		class = "expensive"
	}
	if rec.PercentDiff > 0 {
		text += p.Sprintf(" (%d%%)", rec.PercentDiff)
	}
	return text, class
}

// Counterpart returns the platform on the other side of base.
func Counterpart(base model.Platform) model.Platform {
	if base == model.PlatformTapsifood {
		return model.PlatformSnappfood
	}
	return model.PlatformTapsifood
}
