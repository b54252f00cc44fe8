package model

import (
	"math"
	"strings"
	"time"
)

type Platform string

const (
	PlatformSnappfood Platform = "snappfood"
	PlatformTapsifood Platform = "tapsifood"
)

type PageType string

const (
	PageSnappfoodMenu     PageType = "snappfood-menu"
	PageTapsifoodMenu     PageType = "tapsifood-menu"
	PageSnappfoodService  PageType = "snappfood-service"
	PageSnappfoodHomepage PageType = "snappfood-homepage"
	PageUnknown           PageType = "unknown"
)

type Category string

const (
	CategoryAll         Category = "all"
	CategoryTFCheaper   Category = "tf-cheaper"
	CategorySFCheaper   Category = "sf-cheaper"
	CategorySamePrice   Category = "same-price"
	CategoryHighSavings Category = "high-savings"
	CategoryFavorites   Category = "favorites"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryAll, CategoryTFCheaper, CategorySFCheaper, CategorySamePrice, CategoryHighSavings, CategoryFavorites:
		return true
	}
	return false
}

type SortKey string

const (
	SortRelevance   SortKey = "relevance"
	SortPriceAsc    SortKey = "price-asc"
	SortPriceDesc   SortKey = "price-desc"
	SortSavingsDesc SortKey = "savings-desc"
	SortPercentDesc SortKey = "percent-desc"
	SortNameAsc     SortKey = "name-asc"
	SortNameDesc    SortKey = "name-desc"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortRelevance, SortPriceAsc, SortPriceDesc, SortSavingsDesc, SortPercentDesc, SortNameAsc, SortNameDesc:
		return true
	}
	return false
}

// HighSavingsThreshold is the absolute price difference a comparison must
// exceed to count as a large saving.
const HighSavingsThreshold = 5000

type Product struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	OriginalPrice int64  `json:"originalPrice,omitempty"`
	Discount      int64  `json:"discount,omitempty"`
	DiscountRatio int    `json:"discountRatio,omitempty"`
}

type ComparisonRecord struct {
	BaseProduct        Product `json:"baseProduct"`
	CounterpartProduct Product `json:"counterpartProduct"`
	PriceDiff          int64   `json:"priceDiff"`
	PercentDiff        int     `json:"percentDiff"`
	IsCheaper          bool    `json:"isCheaper"`
	IsMoreExpensive    bool    `json:"isMoreExpensive"`
	IsSamePrice        bool    `json:"isSamePrice"`
}

// NewComparison derives the price difference and flags for a pair of
// products. Exactly one of the three flags is set.
func NewComparison(base, counterpart Product) ComparisonRecord {
	diff := base.Price - counterpart.Price
	rec := ComparisonRecord{
		BaseProduct:        base,
		CounterpartProduct: counterpart,
		PriceDiff:          diff,
		IsCheaper:          diff > 0,
		IsMoreExpensive:    diff < 0,
		IsSamePrice:        diff == 0,
	}
	if base.Price > 0 {
		pct := math.Round(float64(AbsDiff(diff)) / float64(base.Price) * 100)
		rec.PercentDiff = int(min(pct, 100))
	}
	return rec
}

func (c *ComparisonRecord) SearchText(bool) string {
	return c.BaseProduct.Name + " " + c.CounterpartProduct.Name
}

func (c *ComparisonRecord) PrimaryName() string {
	return c.BaseProduct.Name
}

type VendorMapping struct {
	SFCode       string `json:"sf_code"`
	SFName       string `json:"sf_name"`
	TFCode       string `json:"tf_code"`
	TFName       string `json:"tf_name"`
	BusinessLine string `json:"business_line,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

type VendorRecord struct {
	VendorMapping VendorMapping `json:"vendor_mapping"`
	ItemCount     int           `json:"item_count"`
	Rating        *float64      `json:"rating,omitempty"`
}

func (v *VendorRecord) SearchText(includeCodes bool) string {
	m := v.VendorMapping
	parts := []string{m.SFName, m.TFName}
	if includeCodes {
		parts = append(parts, m.SFCode, m.TFCode)
	}
	return strings.Join(parts, " ")
}

func (v *VendorRecord) PrimaryName() string {
	return v.VendorMapping.SFName
}

// HighRatingThreshold is exclusive: a vendor rated exactly 4.5 is not
// recommended.
const HighRatingThreshold = 4.5

func (v *VendorRecord) HighRating() bool {
	return v.Rating != nil && *v.Rating > HighRatingThreshold
}

// Candidate is a record the ranking and filtering passes can work on.
// Implemented by *ComparisonRecord and *VendorRecord.
type Candidate interface {
	SearchText(includeCodes bool) string
	PrimaryName() string
}

// Hit is a candidate plus the relevance score it earned. Scored is false
// when no ranking pass ran over the candidate.
type Hit struct {
	Candidate Candidate
	Score     int
	Scored    bool
}

func Unscored(cands []Candidate) []Hit {
	hits := make([]Hit, len(cands))
	for i, c := range cands {
		hits[i] = Hit{Candidate: c}
	}
	return hits
}

type DirectoryStats struct {
	TotalVendors    int `json:"totalVendors"`
	TotalItems      int `json:"totalItems"`
	UniqueSFVendors int `json:"uniqueSfVendors"`
	UniqueTFVendors int `json:"uniqueTfVendors"`
}

// Dataset is what a page session searches over: either a set of price
// comparisons for one vendor, or the vendor directory.
type Dataset struct {
	Comparisons []ComparisonRecord `json:"comparisons,omitempty"`
	VendorInfo  *VendorMapping     `json:"vendor_info,omitempty"`
	Vendors     []VendorRecord     `json:"vendors,omitempty"`
	Stats       DirectoryStats     `json:"stats"`
	FetchedAt   time.Time          `json:"fetched_at"`
}

func (d *Dataset) HasProductData() bool {
	return d != nil && len(d.Comparisons) > 0
}

// Candidates returns pointers into the dataset. Callers must not mutate
// the records.
func (d *Dataset) Candidates() []Candidate {
	if d == nil {
		return nil
	}
	if d.HasProductData() {
		out := make([]Candidate, len(d.Comparisons))
		for i := range d.Comparisons {
			out[i] = &d.Comparisons[i]
		}
		return out
	}
	out := make([]Candidate, len(d.Vendors))
	for i := range d.Vendors {
		out[i] = &d.Vendors[i]
	}
	return out
}

func AbsDiff(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

type AnalyticsEvent struct {
	Query          string   `json:"query"`
	ResultCount    int      `json:"resultCount"`
	SearchTimeMs   float64  `json:"searchTime"`
	Timestamp      int64    `json:"timestamp"`
	PageType       PageType `json:"pageType"`
	HasProductData bool     `json:"hasProductData"`
}

type HealthLevel int

const (
	Healthy   HealthLevel = 0
	Degraded  HealthLevel = 1
	Unhealthy HealthLevel = 2
	Critical  HealthLevel = 3
)

func (h HealthLevel) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

type ComponentHealth struct {
	Name        string      `json:"name"`
	Level       HealthLevel `json:"level"`
	LevelStr    string      `json:"level_str"`
	LastCheck   time.Time   `json:"last_check"`
	LastHealthy time.Time   `json:"last_healthy"`
	Message     string      `json:"message"`
	FailCount   int         `json:"fail_count"`
}

type SystemHealth struct {
	Overall    HealthLevel                 `json:"overall"`
	OverallStr string                      `json:"overall_str"`
	Components map[string]*ComponentHealth `json:"components"`
	StartedAt  time.Time                   `json:"started_at"`
	UptimeSec  int64                       `json:"uptime_sec"`
	Mode       string                      `json:"mode"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id"`
	Details   map[string]string `json:"details,omitempty"`
}
