package domain

// Product is a read-only snapshot of a catalog product. The catalog API
// serves Spanish field names; the JSON tags follow its wire format.
type Product struct {
	ID       string           `json:"id"`
	Name     string           `json:"nombre"`
	Price    int64            `json:"precio"`
	Stock    int              `json:"stock"`
	Category string           `json:"categoria"`
	ImageURL string           `json:"imagen"`
	Variants []ProductVariant `json:"variantes,omitempty"`
}

// ProductVariant is a selectable variation of a product, keyed by its
// variant key (a color or SKU suffix).
type ProductVariant struct {
	Key      string `json:"clave"`
	Label    string `json:"etiqueta"`
	ImageURL string `json:"imagen,omitempty"`
}

// HasVariant reports whether the product declares the given variant key.
// The empty key is always valid: it selects the base product.
func (p *Product) HasVariant(key string) bool {
	if key == "" {
		return true
	}
	for _, v := range p.Variants {
		if v.Key == key {
			return true
		}
	}
	return false
}
