package catalog

import (
	"sort"
	"strings"

	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
)

const categoryAll = "All"

// Apply filters products and orders them by key. The input slice is not modified.
func Apply(products []*domain.Product, filter domain.ProductFilter, key domain.SortKey) []*domain.Product {
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	out := make([]*domain.Product, 0, len(products))
	for _, p := range products {
		if filter.OnlyAvailable && !p.IsAvailable {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		if filter.Category != "" && filter.Category != categoryAll && !strings.EqualFold(p.Tag, filter.Category) {
			continue
		}
		if filter.Size != "" && !hasSize(p, filter.Size) {
			continue
		}
		out = append(out, p)
	}

	switch key {
	case domain.SortPriceLow:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case domain.SortPriceHigh:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	case domain.SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	// featured keeps catalog order
	return out
}

func hasSize(p *domain.Product, size string) bool {
	for _, s := range p.Sizes {
		if strings.EqualFold(s, size) {
			return true
		}
	}
	return false
}
