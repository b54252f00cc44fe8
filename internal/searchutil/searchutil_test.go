package searchutil

import (
	"testing"

	"pricecmp/model"
)

func vendor(sf, tf, name string) model.VendorRecord {
	return model.VendorRecord{VendorMapping: model.VendorMapping{SFCode: sf, TFCode: tf, SFName: name}}
}

func TestDedupVendors_KeepsFirstOccurrence(t *testing.T) {
	in := []model.VendorRecord{
		vendor("a1", "b1", "first"),
		vendor("a1", "b1", "second"),
		vendor("a2", "b2", "third"),
	}

	out := DedupVendors(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 vendors, got %d", len(out))
	}
	if out[0].VendorMapping.SFName != "first" {
		t.Fatalf("expected first occurrence kept, got %q", out[0].VendorMapping.SFName)
	}
}

func TestDedupVendors_FallsBackToNames(t *testing.T) {
	in := []model.VendorRecord{
		vendor("", "", "x"),
		vendor("", "", "y"),
		vendor("", "", "x"),
	}

	out := DedupVendors(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 vendors, got %d", len(out))
	}
}

func TestLimit(t *testing.T) {
	hits := make([]model.Hit, 5)
	if got := Limit(hits, 3); len(got) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(got))
	}
	if got := Limit(hits, 0); len(got) != 5 {
		t.Fatalf("expected unlimited, got %d", len(got))
	}
}
