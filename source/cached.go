package source

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"pricecmp/cache"
	"pricecmp/model"
)

// Cached serves datasets from the cache while fresh. Concurrent misses for
// the same key share one upstream fetch.
type Cached struct {
	next      Provider
	cache     *cache.Cache
	vendorTTL time.Duration
	listTTL   time.Duration
	group     singleflight.Group
	log       *slog.Logger
}

func NewCached(next Provider, c *cache.Cache, vendorTTL, listTTL time.Duration, logger *slog.Logger) *Cached {
	return &Cached{
		next:      next,
		cache:     c,
		vendorTTL: vendorTTL,
		listTTL:   listTTL,
		log:       logger,
	}
}

func (c *Cached) Health(ctx context.Context) error {
	return c.next.Health(ctx)
}

func (c *Cached) VendorDirectory(ctx context.Context) (model.Dataset, error) {
	key := cache.MakeCacheKey(cache.KindVendorList, "", "")
	return c.load(key, cache.KindVendorList, c.listTTL, func() (model.Dataset, error) {
		return c.next.VendorDirectory(ctx)
	})
}

func (c *Cached) Comparison(ctx context.Context, platform model.Platform, vendorCode string) (model.Dataset, error) {
	key := cache.MakeCacheKey(cache.KindVendor, platform, vendorCode)
	return c.load(key, cache.KindVendor, c.vendorTTL, func() (model.Dataset, error) {
		return c.next.Comparison(ctx, platform, vendorCode)
	})
}

// RefreshDirectory refetches the vendor directory regardless of freshness.
func (c *Cached) RefreshDirectory(ctx context.Context) error {
	key := cache.MakeCacheKey(cache.KindVendorList, "", "")
	ds, err := c.next.VendorDirectory(ctx)
	if err != nil {
		return err
	}
	c.cache.Put(key, cache.Entry{Dataset: ds, Kind: cache.KindVendorList}, c.listTTL)
	return nil
}

// Invalidate drops every cached dataset, e.g. after menu files change.
func (c *Cached) Invalidate() {
	gen := c.cache.Invalidate()
	c.log.Info("dataset cache invalidated", "generation", gen)
}

func (c *Cached) load(key, kind string, ttl time.Duration, fetch func() (model.Dataset, error)) (model.Dataset, error) {
	if e, ok := c.cache.Get(key); ok {
		return e.Dataset, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		ds, err := fetch()
		if err != nil {
			return model.Dataset{}, err
		}
		c.cache.Put(key, cache.Entry{Dataset: ds, Kind: kind}, ttl)
		return ds, nil
	})
	if err != nil {
		return model.Dataset{}, err
	}
	if shared {
		c.log.Debug("shared dataset fetch", "kind", kind)
	}
	return v.(model.Dataset), nil
}
