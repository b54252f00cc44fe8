package router

import (
	"testing"

	"pricecmp/model"
)

func TestDetectPageType(t *testing.T) {
	cases := []struct {
		url  string
		want model.PageType
	}{
		{"https://snappfood.ir/restaurant/menu/burger-kabab-r-0xyz12/", model.PageSnappfoodMenu},
		{"https://tapsi.food/vendor/ab12CD", model.PageTapsifoodMenu},
		{"https://snappfood.ir/service/restaurant/city/tehran", model.PageSnappfoodService},
		{"https://snappfood.ir/", model.PageSnappfoodHomepage},
		{"https://www.snappfood.ir", model.PageSnappfoodHomepage},
		{"http://snappfood.ir/?utm=x", model.PageSnappfoodHomepage},
		{"https://snappfood.ir/search?q=pizza", model.PageUnknown},
		{"https://example.com/", model.PageUnknown},
		{"", model.PageUnknown},
	}
	for _, tc := range cases {
		if got := DetectPageType(tc.url); got != tc.want {
			t.Fatalf("DetectPageType(%q) = %s, want %s", tc.url, got, tc.want)
		}
	}
}

func TestExtractVendorCode(t *testing.T) {
	code, ok := ExtractVendorCode("https://snappfood.ir/restaurant/menu/pizza-r-3xk9pq/", model.PlatformSnappfood)
	if !ok || code != "3xk9pq" {
		t.Fatalf("expected 3xk9pq, got %q (%v)", code, ok)
	}

	code, ok = ExtractVendorCode("https://tapsi.food/vendor/Zr7Q1?ref=home", model.PlatformTapsifood)
	if !ok || code != "Zr7Q1" {
		t.Fatalf("expected Zr7Q1, got %q (%v)", code, ok)
	}

	if _, ok := ExtractVendorCode("https://snappfood.ir/restaurant/menu/", model.PlatformSnappfood); ok {
		t.Fatalf("expected no code")
	}
	if _, ok := ExtractVendorCode("https://tapsi.food/vendor/x", model.Platform("other")); ok {
		t.Fatalf("expected no code for unknown platform")
	}
}

func TestResolve(t *testing.T) {
	pt, code, ok := Resolve("https://tapsi.food/vendor/abc123")
	if pt != model.PageTapsifoodMenu || code != "abc123" || !ok {
		t.Fatalf("unexpected resolve: %s %q %v", pt, code, ok)
	}
	if PlatformOf(pt) != model.PlatformTapsifood || !IsMenu(pt) {
		t.Fatalf("expected tapsifood menu")
	}

	pt, code, ok = Resolve("https://snappfood.ir/")
	if pt != model.PageSnappfoodHomepage || code != "" || !ok || IsMenu(pt) {
		t.Fatalf("unexpected resolve for homepage: %s %q %v", pt, code, ok)
	}

	if _, _, ok := Resolve("https://snappfood.ir/restaurant/menu/no-code"); ok {
		t.Fatalf("expected menu page without code to fail")
	}
}
