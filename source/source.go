// Package source loads the datasets page sessions search over: the vendor
// directory and per-vendor price comparisons.
package source

import (
	"context"
	"errors"

	"pricecmp/model"
)

var ErrNotFound = errors.New("vendor not found")

// Provider loads datasets for page sessions.
type Provider interface {
	VendorDirectory(ctx context.Context) (model.Dataset, error)
	Comparison(ctx context.Context, platform model.Platform, vendorCode string) (model.Dataset, error)
	Health(ctx context.Context) error
}

// MenuSource returns one vendor's menu on one platform keyed by product id.
type MenuSource interface {
	Menu(ctx context.Context, platform model.Platform, vendorCode string) (map[int64]model.Product, error)
}
