package source

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"pricecmp/internal/searchutil"
	"pricecmp/internal/textutil"
	"pricecmp/model"
)

type rawVendor struct {
	VendorMapping *model.VendorMapping `json:"vendor_mapping"`
	ItemCount     *int                 `json:"item_count"`
	Rating        json.RawMessage      `json:"rating"`

	SFCode       string `json:"sf_code"`
	SFName       string `json:"sf_name"`
	TFCode       string `json:"tf_code"`
	TFName       string `json:"tf_name"`
	BusinessLine string `json:"business_line"`
	CreatedAt    string `json:"created_at"`
}

// NormalizeVendor accepts both the nested record shape and the flat legacy
// one. An object of any other shape is decoded as far as it goes and
// logged. ok is false when raw is not a JSON object at all.
func NormalizeVendor(raw json.RawMessage, log *slog.Logger) (rec model.VendorRecord, ok bool) {
	var rv rawVendor
	if err := json.Unmarshal(raw, &rv); err != nil {
		log.Warn("skipping malformed vendor record", "err", err, "raw", truncate(raw))
		return model.VendorRecord{}, false
	}

	switch {
	case rv.VendorMapping != nil:
		rec.VendorMapping = *rv.VendorMapping
	case rv.SFCode != "" || rv.TFCode != "" || rv.SFName != "" || rv.TFName != "":
		rec.VendorMapping = model.VendorMapping{
			SFCode:       rv.SFCode,
			SFName:       rv.SFName,
			TFCode:       rv.TFCode,
			TFName:       rv.TFName,
			BusinessLine: rv.BusinessLine,
			CreatedAt:    rv.CreatedAt,
		}
	default:
		log.Warn("unrecognized vendor record", "raw", truncate(raw))
	}

	if rv.ItemCount != nil {
		rec.ItemCount = *rv.ItemCount
	}
	if r, ok := parseRating(rv.Rating); ok {
		rec.Rating = &r
	}
	return rec, true
}

// NormalizeVendors normalizes raws, skips malformed entries and drops
// repeated pairings.
func NormalizeVendors(raws []json.RawMessage, log *slog.Logger) []model.VendorRecord {
	out := make([]model.VendorRecord, 0, len(raws))
	for _, raw := range raws {
		if rec, ok := NormalizeVendor(raw, log); ok {
			out = append(out, rec)
		}
	}
	return searchutil.DedupVendors(out)
}

func parseRating(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, f >= 0 && f <= 10
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, false
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(textutil.PersianToWestern(text)), 64); err == nil {
		return f, f >= 0 && f <= 10
	}
	return textutil.ParseRating(text)
}

func truncate(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
