package api

import (
	"strings"
	"testing"

	"golang.org/x/text/language"

	"pricecmp/compare"
	"pricecmp/model"
)

func TestConvert_ComparisonUsesCounterpartOfPage(t *testing.T) {
	rec := model.NewComparison(
		model.Product{Name: "pizza   margherita", Price: 100000},
		model.Product{Name: "pizza", Price: 90000},
	)
	f := newResultFormatter(language.English, model.PageSnappfoodMenu)
	out := f.convert([]model.Hit{{Candidate: &rec, Score: 1100, Scored: true}})

	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
	r := out[0]
	if r.Kind != "comparison" || r.Name != "pizza margherita" {
		t.Fatalf("expected cleaned comparison name, got %+v", r)
	}
	if r.Badge == nil || r.Badge.Class != compare.ClassCheaper {
		t.Fatalf("expected cheaper badge, got %+v", r.Badge)
	}
	if !strings.Contains(r.Badge.Text, compare.PlatformLabel(model.PlatformTapsifood)) {
		t.Fatalf("expected tapsifood label in badge, got %q", r.Badge.Text)
	}
	if r.SavingsClass != "savings" || r.PriceDiff != 10000 || r.PercentDiff != 10 {
		t.Fatalf("unexpected savings fields: %+v", r)
	}
}

func TestConvert_VendorRecord(t *testing.T) {
	rating := 4.7
	v := model.VendorRecord{
		VendorMapping: model.VendorMapping{SFCode: "abc", SFName: "Pizza Place", TFCode: "xyz"},
		ItemCount:     12,
		Rating:        &rating,
	}
	out := newResultFormatter(language.English, model.PageSnappfoodHomepage).convert([]model.Hit{{Candidate: &v}})
	if out[0].Kind != "vendor" || out[0].Vendor.TFCode != "xyz" || out[0].ItemCount != 12 {
		t.Fatalf("unexpected vendor result: %+v", out[0])
	}
	if out[0].Badge != nil {
		t.Fatalf("expected no badge for vendors")
	}
	if !out[0].Recommended {
		t.Fatalf("expected a 4.7 rating to be recommended")
	}
}

func TestConvert_RecommendationThresholdIsExclusive(t *testing.T) {
	f := newResultFormatter(language.English, model.PageSnappfoodHomepage)
	cases := []struct {
		rating *float64
		want   bool
	}{
		{nil, false},
		{ptr(4.4), false},
		{ptr(4.5), false},
		{ptr(4.51), true},
	}
	for i, tc := range cases {
		v := model.VendorRecord{VendorMapping: model.VendorMapping{SFName: "Shila"}, Rating: tc.rating}
		if got := f.convert([]model.Hit{{Candidate: &v}})[0].Recommended; got != tc.want {
			t.Fatalf("case %d: expected recommended=%v, got %v", i, tc.want, got)
		}
	}
}

func ptr(f float64) *float64 { return &f }

func TestRenderResultsText(t *testing.T) {
	rating := 4.5
	out := renderResultsText([]resultDTO{
		{Kind: "comparison", Name: "pizza", BasePrice: 100000, CounterpartPrice: 90000, Summary: "10,000 تومان ارزان‌تر (10%)"},
		{Kind: "vendor", Name: "Pizza Place", Vendor: &model.VendorMapping{SFCode: "abc", TFCode: "xyz"}, Rating: &rating},
		{Kind: "vendor", Name: "Shila", Vendor: &model.VendorMapping{SFCode: "a1", TFCode: "b1"}, Recommended: true},
	}, "3 results in 3 ms")

	for _, want := range []string{"## 3 results in 3 ms", "1. pizza: 100000 / 90000", "2. Pizza Place [abc / xyz] ★4.5\n", "3. Shila [a1 / b1] (پیشنهادی)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got: %q", want, out)
		}
	}
}

func TestRenderResultsText_Empty(t *testing.T) {
	if out := renderResultsText(nil, ""); out != "نتیجه‌ای یافت نشد" {
		t.Fatalf("expected empty-state text, got %q", out)
	}
}
