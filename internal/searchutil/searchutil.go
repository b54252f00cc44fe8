package searchutil

import (
	"strings"

	"pricecmp/model"
)

// DedupVendors drops repeated (sf_code, tf_code) pairs, keeping the first
// occurrence. Records without either code are keyed by their names.
func DedupVendors(vendors []model.VendorRecord) []model.VendorRecord {
	seen := make(map[string]struct{}, len(vendors))
	deduped := make([]model.VendorRecord, 0, len(vendors))
	for _, v := range vendors {
		m := v.VendorMapping
		key := strings.TrimSpace(m.SFCode) + "|" + strings.TrimSpace(m.TFCode)
		if key == "|" {
			key = "name:" + strings.TrimSpace(m.SFName) + "|" + strings.TrimSpace(m.TFName)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, v)
	}
	return deduped
}

// Limit truncates hits to topK when topK is positive.
func Limit(hits []model.Hit, topK int) []model.Hit {
	if topK > 0 && len(hits) > topK {
		return hits[:topK]
	}
	return hits
}
