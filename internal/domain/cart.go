package domain

import "time"

// Cart is a user's shopping cart. The owner key is the signed-in username;
// anonymous visitors have no cart.
type Cart struct {
	OwnerKey  string     `json:"owner_key"`
	Lines     []CartLine `json:"lines"`
	Currency  string     `json:"currency"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartLine is a single product-variant entry in the cart. UnitPrice and
// StockCeiling are snapshots taken from the catalog at the moment the line
// was added; they are not refreshed on later quantity changes.
type CartLine struct {
	ProductID    string `json:"product_id"`
	VariantKey   string `json:"variant_key"`
	Name         string `json:"name"`
	UnitPrice    int64  `json:"unit_price"`
	Quantity     int    `json:"quantity"`
	StockCeiling int    `json:"stock_ceiling"`
	ImageURL     string `json:"image_url,omitempty"`
}

// NewCart creates an empty cart for the given owner.
func NewCart(ownerKey string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		OwnerKey:  ownerKey,
		Lines:     []CartLine{},
		Currency:  "CLP",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TotalAmount calculates the total price of the cart in minor currency units.
func (c *Cart) TotalAmount() int64 {
	var total int64
	for _, line := range c.Lines {
		total += line.UnitPrice * int64(line.Quantity)
	}
	return total
}

// LineCount returns the number of distinct lines in the cart.
func (c *Cart) LineCount() int {
	return len(c.Lines)
}

// UnitCount returns the total number of units across all lines.
func (c *Cart) UnitCount() int {
	var count int
	for _, line := range c.Lines {
		count += line.Quantity
	}
	return count
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// FindLine returns the index of the line matching the given product ID and
// variant key, or -1 if no such line exists. The empty variant key is a valid
// key and only matches lines added without a variant.
func (c *Cart) FindLine(productID, variantKey string) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID && c.Lines[i].VariantKey == variantKey {
			return i
		}
	}
	return -1
}
