package api

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"pricecmp/compare"
	"pricecmp/internal/textutil"
	"pricecmp/model"
	"pricecmp/router"
)

const maxNameRunes = 80

type resultDTO struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Scored bool   `json:"scored"`

	BasePrice        int64                `json:"base_price,omitempty"`
	CounterpartPrice int64                `json:"counterpart_price,omitempty"`
	PriceDiff        int64                `json:"price_diff,omitempty"`
	PercentDiff      int                  `json:"percent_diff,omitempty"`
	Badge            *compare.Description `json:"badge,omitempty"`
	Summary          string               `json:"summary,omitempty"`
	SavingsClass     string               `json:"savings_class,omitempty"`

	Vendor      *model.VendorMapping `json:"vendor,omitempty"`
	ItemCount   int                  `json:"item_count,omitempty"`
	Rating      *float64             `json:"rating,omitempty"`
	Recommended bool                 `json:"recommended,omitempty"`
}

type resultFormatter struct {
	printer     *message.Printer
	counterpart model.Platform
}

// newResultFormatter prepares wording for results shown on a page of type
// pt. Printers are not safe for concurrent use, so each request builds one.
func newResultFormatter(locale language.Tag, pt model.PageType) resultFormatter {
	return resultFormatter{
		printer:     message.NewPrinter(locale),
		counterpart: compare.Counterpart(router.PlatformOf(pt)),
	}
}

func (f resultFormatter) convert(hits []model.Hit) []resultDTO {
	out := make([]resultDTO, 0, len(hits))
	for _, h := range hits {
		dto := resultDTO{
			Name:   textutil.CleanName(h.Candidate.PrimaryName(), maxNameRunes),
			Score:  h.Score,
			Scored: h.Scored,
		}
		switch c := h.Candidate.(type) {
		case *model.ComparisonRecord:
			desc := compare.Describe(c, f.counterpart, f.printer)
			dto.Kind = "comparison"
			dto.BasePrice = c.BaseProduct.Price
			dto.CounterpartPrice = c.CounterpartProduct.Price
			dto.PriceDiff = c.PriceDiff
			dto.PercentDiff = c.PercentDiff
			dto.Badge = &desc
			dto.Summary, dto.SavingsClass = compare.Summary(c, f.printer)
		case *model.VendorRecord:
			m := c.VendorMapping
			dto.Kind = "vendor"
			dto.Vendor = &m
			dto.ItemCount = c.ItemCount
			dto.Rating = c.Rating
			dto.Recommended = c.HighRating()
		}
		out = append(out, dto)
	}
	return out
}

// renderResultsText lays results out as plain lines for terminal clients.
func renderResultsText(results []resultDTO, status string) string {
	var b strings.Builder
	if status != "" {
		fmt.Fprintf(&b, "## %s\n\n", status)
	}
	if len(results) == 0 {
		b.WriteString("نتیجه‌ای یافت نشد")
		return b.String()
	}
	for i, r := range results {
		switch r.Kind {
		case "comparison":
			fmt.Fprintf(&b, "%d. %s: %d / %d (%s)\n", i+1, r.Name, r.BasePrice, r.CounterpartPrice, r.Summary)
		case "vendor":
			fmt.Fprintf(&b, "%d. %s [%s / %s]", i+1, r.Name, r.Vendor.SFCode, r.Vendor.TFCode)
			if r.Rating != nil {
				fmt.Fprintf(&b, " ★%.1f", *r.Rating)
			}
			if r.Recommended {
				b.WriteString(" (پیشنهادی)")
			}
			b.WriteString("\n")
		default:
			fmt.Fprintf(&b, "%d. %s\n", i+1, r.Name)
		}
	}
	return strings.TrimSpace(b.String())
}
