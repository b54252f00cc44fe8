package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"pricecmp/compare"
	"pricecmp/config"
	"pricecmp/model"
)

// HTTPProvider talks to the local aggregation service that knows which
// vendors and items are paired across platforms.
type HTTPProvider struct {
	baseURL string
	limit   int
	client  *http.Client
	menus   MenuSource
	log     *slog.Logger
}

func NewHTTP(cfg *config.SourceConfig, menus MenuSource, client *http.Client, logger *slog.Logger) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		limit:   cfg.VendorLimit,
		client:  client,
		menus:   menus,
		log:     logger,
	}
}

func (p *HTTPProvider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("aggregation health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("aggregation health check returned %d: %s", resp.StatusCode, truncate(body))
	}
	return nil
}

type apiStats struct {
	TotalVendors    int `json:"total_vendors"`
	TotalItems      int `json:"total_items"`
	UniqueSFVendors int `json:"unique_sf_vendors"`
	UniqueTFVendors int `json:"unique_tf_vendors"`
}

// VendorDirectory fetches the vendor list and directory stats concurrently.
// A stats failure degrades to zero stats; a vendor list failure fails the
// call.
func (p *HTTPProvider) VendorDirectory(ctx context.Context) (model.Dataset, error) {
	var (
		raws  []json.RawMessage
		stats apiStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path := "/vendors?limit=" + fmt.Sprint(p.limit)
		if err := p.getJSON(gctx, path, &raws); err != nil {
			return fmt.Errorf("fetch vendor list: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := p.getJSON(gctx, "/stats", &stats); err != nil {
			p.log.Warn("directory stats unavailable", "err", err)
			stats = apiStats{}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Dataset{}, err
	}

	vendors := NormalizeVendors(raws, p.log)
	p.log.Debug("vendor directory loaded", "vendors", len(vendors), "raw", len(raws))
	return model.Dataset{
		Vendors: vendors,
		Stats: model.DirectoryStats{
			TotalVendors:    stats.TotalVendors,
			TotalItems:      stats.TotalItems,
			UniqueSFVendors: stats.UniqueSFVendors,
			UniqueTFVendors: stats.UniqueTFVendors,
		},
		FetchedAt: time.Now(),
	}, nil
}

type vendorData struct {
	VendorInfo   *model.VendorMapping `json:"vendor_info"`
	ItemMappings map[int64]int64      `json:"item_mappings"`
}

// Comparison loads the vendor pairing for vendorCode on platform, fetches
// both menus concurrently and pairs them with platform as the base side.
func (p *HTTPProvider) Comparison(ctx context.Context, platform model.Platform, vendorCode string) (model.Dataset, error) {
	var vd vendorData
	path := fmt.Sprintf("/extension/vendor-data/%s/%s", url.PathEscape(string(platform)), url.PathEscape(vendorCode))
	if err := p.getJSON(ctx, path, &vd); err != nil {
		return model.Dataset{}, fmt.Errorf("fetch vendor data %s/%s: %w", platform, vendorCode, err)
	}
	if vd.VendorInfo == nil {
		return model.Dataset{}, fmt.Errorf("vendor data %s/%s: %w", platform, vendorCode, ErrNotFound)
	}

	var sf, tf map[int64]model.Product
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sf, err = p.menus.Menu(gctx, model.PlatformSnappfood, vd.VendorInfo.SFCode)
		return err
	})
	g.Go(func() error {
		var err error
		tf, err = p.menus.Menu(gctx, model.PlatformTapsifood, vd.VendorInfo.TFCode)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Dataset{}, fmt.Errorf("fetch product data: %w", err)
	}

	base, counterpart := sf, tf
	if platform == model.PlatformTapsifood {
		base, counterpart = tf, sf
	}
	res := compare.Build(base, counterpart, vd.ItemMappings)
	p.log.Info("comparison built",
		"platform", platform,
		"vendor", vendorCode,
		"sf_products", len(sf),
		"tf_products", len(tf),
		"mappings", len(vd.ItemMappings),
		"found_mappings", res.FoundMappings,
		"valid_comparisons", res.ValidComparisons,
	)

	info := *vd.VendorInfo
	return model.Dataset{
		Comparisons: res.Comparisons,
		VendorInfo:  &info,
		FetchedAt:   time.Now(),
	}, nil
}

func (p *HTTPProvider) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("aggregation request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read aggregation response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("aggregation %s returned %d: %s", path, resp.StatusCode, truncate(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parse aggregation response %s: %w", path, err)
	}
	return nil
}
