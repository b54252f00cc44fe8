// Package router classifies platform page URLs and pulls vendor codes out of
// them.
package router

import (
	"regexp"
	"strings"

	"pricecmp/model"
)

type pagePattern struct {
	page    model.PageType
	pattern *regexp.Regexp
}

// First match wins.
var pagePatterns = []pagePattern{
	{model.PageSnappfoodMenu, regexp.MustCompile(`snappfood\.ir/restaurant/menu/`)},
	{model.PageTapsifoodMenu, regexp.MustCompile(`tapsi\.food/vendor/`)},
	{model.PageSnappfoodService, regexp.MustCompile(`snappfood\.ir/service/.+/city/`)},
	{model.PageSnappfoodHomepage, regexp.MustCompile(`^https?://(www\.)?snappfood\.ir/?(\?.*)?$`)},
}

var vendorCodePatterns = map[model.Platform]*regexp.Regexp{
	model.PlatformSnappfood: regexp.MustCompile(`-r-([a-zA-Z0-9]+)/?`),
	model.PlatformTapsifood: regexp.MustCompile(`tapsi\.food/vendor/([a-zA-Z0-9]+)`),
}

func DetectPageType(url string) model.PageType {
	url = strings.TrimSpace(url)
	for _, p := range pagePatterns {
		if p.pattern.MatchString(url) {
			return p.page
		}
	}
	return model.PageUnknown
}

func ExtractVendorCode(url string, platform model.Platform) (string, bool) {
	re, ok := vendorCodePatterns[platform]
	if !ok {
		return "", false
	}
	m := re.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// PlatformOf reports which platform serves pages of type pt. Unknown pages
// are treated as snappfood, whose directory is the default view.
func PlatformOf(pt model.PageType) model.Platform {
	if pt == model.PageTapsifoodMenu {
		return model.PlatformTapsifood
	}
	return model.PlatformSnappfood
}

func IsMenu(pt model.PageType) bool {
	return pt == model.PageSnappfoodMenu || pt == model.PageTapsifoodMenu
}

// Resolve classifies url and, for menu pages, extracts the vendor code.
// ok is false for a menu page whose code cannot be found.
func Resolve(url string) (pt model.PageType, code string, ok bool) {
	pt = DetectPageType(url)
	if !IsMenu(pt) {
		return pt, "", true
	}
	code, ok = ExtractVendorCode(url, PlatformOf(pt))
	return pt, code, ok
}
