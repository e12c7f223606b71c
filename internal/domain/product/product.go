package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Products are reference data: the storefront
// never changes them.
type Product struct {
	ID      int64           `json:"product_id"`
	Color   string          `json:"color"`
	Variant string          `json:"variant"`
	Price   decimal.Decimal `json:"price"`
}

// Name is the display name of the product.
func (p Product) Name() string {
	if p.Variant == "" {
		return p.Color
	}
	return p.Color + " " + p.Variant
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	// GetByIDs returns the products matching ids. Unknown ids are omitted.
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
}
