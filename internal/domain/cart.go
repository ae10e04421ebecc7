package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one (product, size) entry in a cart.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageRef  string          `json:"image_ref"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
}

// Key identifies the merge slot of a line.
func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Size: l.Size}
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type LineKey struct {
	ProductID string
	Size      string
}

// CartSnapshot represents the full cart state at checkout time
type CartSnapshot struct {
	Lines      []CartLine      `json:"lines"`
	Total      decimal.Decimal `json:"total"`
	CapturedAt time.Time       `json:"captured_at"`
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

// SumLines is the derived cart total.
func SumLines(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
