package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultProductTag = "NEW DROP"

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	LuxuryPrice decimal.Decimal `json:"luxury_price"`
	Price       decimal.Decimal `json:"jungli_price"`
	ImageURL    string          `json:"image_url"`
	VideoURL    string          `json:"video_url,omitempty"`
	Tag         string          `json:"tag"`
	Description string          `json:"description,omitempty"`
	Sizes       []string        `json:"sizes"`
	IsAvailable bool            `json:"is_available"`
	CreatedAt   time.Time       `json:"created_at"`
}

type SortKey string

const (
	SortFeatured  SortKey = "featured"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	SortNewest    SortKey = "newest"
)

func ParseSortKey(s string) SortKey {
	switch k := SortKey(s); k {
	case SortPriceLow, SortPriceHigh, SortNewest:
		return k
	}
	return SortFeatured
}

type ProductFilter struct {
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	// Category is matched against Tag; "" and "All" mean no filter.
	Category string
	Size     string
	// OnlyAvailable hides products switched off in the admin console.
	OnlyAvailable bool
}

type InventoryStats struct {
	Revenue        decimal.Decimal `json:"revenue"`
	ActiveProducts int             `json:"active_products"`
	TotalOrders    int             `json:"total_orders"`
}
