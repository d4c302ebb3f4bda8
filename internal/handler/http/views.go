package http

import "github.com/BeoGonzalez/gamershop/internal/domain"

// CartView is the cart response shape: the stored cart plus its derived
// totals, computed server-side so the storefront never re-derives prices.
type CartView struct {
	*domain.Cart
	TotalAmount int64 `json:"total_amount"`
	LineCount   int   `json:"line_count"`
	UnitCount   int   `json:"unit_count"`
}

func cartView(c *domain.Cart) CartView {
	return CartView{
		Cart:        c,
		TotalAmount: c.TotalAmount(),
		LineCount:   c.LineCount(),
		UnitCount:   c.UnitCount(),
	}
}
