package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"pricecmp/model"
)

// flexNum decodes a JSON number or a numeric string.
type flexNum struct {
	v   float64
	set bool
}

func (n *flexNum) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parse number %q: %w", s, err)
		}
		n.v, n.set = f, true
		return nil
	}
	if err := json.Unmarshal(data, &n.v); err != nil {
		return err
	}
	n.set = true
	return nil
}

func (n flexNum) int64() int64 { return int64(math.Round(n.v)) }

type snappfoodMenu struct {
	Data *struct {
		Menus []struct {
			Products []json.RawMessage `json:"products"`
		} `json:"menus"`
	} `json:"data"`
}

type snappfoodProduct struct {
	ID            flexNum `json:"id"`
	Title         *string `json:"title"`
	Price         flexNum `json:"price"`
	Discount      flexNum `json:"discount"`
	DiscountRatio flexNum `json:"discountRatio"`
}

// ParseSnappfoodMenu reads data.menus[].products[]. The final price is the
// list price minus the discount.
func ParseSnappfoodMenu(data []byte, log *slog.Logger) (map[int64]model.Product, error) {
	var menu snappfoodMenu
	if err := json.Unmarshal(data, &menu); err != nil {
		return nil, fmt.Errorf("decode snappfood menu: %w", err)
	}
	if menu.Data == nil || menu.Data.Menus == nil {
		return nil, fmt.Errorf("invalid snappfood menu: data.menus array not found")
	}

	products := make(map[int64]model.Product)
	skipped := 0
	for _, section := range menu.Data.Menus {
		for _, raw := range section.Products {
			var p snappfoodProduct
			if err := json.Unmarshal(raw, &p); err != nil || p.ID.int64() == 0 || p.Title == nil || !p.Price.set {
				skipped++
				continue
			}
			original := p.Price.int64()
			discount := p.Discount.int64()
			products[p.ID.int64()] = model.Product{
				ID:            p.ID.int64(),
				Name:          strings.TrimSpace(*p.Title),
				Price:         original - discount,
				OriginalPrice: original,
				Discount:      discount,
				DiscountRatio: int(p.DiscountRatio.int64()),
			}
		}
	}
	if skipped > 0 {
		log.Warn("skipped malformed menu products", "platform", model.PlatformSnappfood, "count", skipped)
	}
	if len(products) == 0 {
		log.Warn("menu parsed but no products extracted", "platform", model.PlatformSnappfood)
	}
	return products, nil
}

type tapsifoodMenu struct {
	Data *struct {
		Categories []struct {
			Products []json.RawMessage `json:"products"`
		} `json:"categories"`
	} `json:"data"`
}

type tapsifoodProduct struct {
	ProductID   flexNum `json:"productId"`
	ProductName string  `json:"productName"`
	Variations  []struct {
		Price              flexNum `json:"price"`
		PriceAfterDiscount flexNum `json:"priceAfterDiscount"`
		DiscountRatio      flexNum `json:"discountRatio"`
	} `json:"productVariations"`
}

// ParseTapsifoodMenu reads data.categories[].products[], pricing each
// product from its first variation.
func ParseTapsifoodMenu(data []byte, log *slog.Logger) (map[int64]model.Product, error) {
	var menu tapsifoodMenu
	if err := json.Unmarshal(data, &menu); err != nil {
		return nil, fmt.Errorf("decode tapsifood menu: %w", err)
	}
	if menu.Data == nil || menu.Data.Categories == nil {
		return nil, fmt.Errorf("invalid tapsifood menu: data.categories array not found")
	}

	products := make(map[int64]model.Product)
	skipped := 0
	for _, category := range menu.Data.Categories {
		for _, raw := range category.Products {
			var p tapsifoodProduct
			if err := json.Unmarshal(raw, &p); err != nil || len(p.Variations) == 0 || p.ProductID.int64() == 0 {
				skipped++
				continue
			}
			v := p.Variations[0]
			original := v.Price.int64()
			final := v.PriceAfterDiscount.int64()
			if final == 0 {
				final = original
			}
			prod := model.Product{
				ID:            p.ProductID.int64(),
				Name:          strings.TrimSpace(p.ProductName),
				Price:         final,
				OriginalPrice: original,
				DiscountRatio: int(v.DiscountRatio.int64()),
			}
			if original > final {
				prod.Discount = original - final
			}
			products[prod.ID] = prod
		}
	}
	if skipped > 0 {
		log.Warn("skipped malformed menu products", "platform", model.PlatformTapsifood, "count", skipped)
	}
	return products, nil
}

// ParseMenu dispatches on platform.
func ParseMenu(platform model.Platform, data []byte, log *slog.Logger) (map[int64]model.Product, error) {
	switch platform {
	case model.PlatformSnappfood:
		return ParseSnappfoodMenu(data, log)
	case model.PlatformTapsifood:
		return ParseTapsifoodMenu(data, log)
	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
}
