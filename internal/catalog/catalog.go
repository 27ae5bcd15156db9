package catalog

import (
	"context"
	"errors"

	"github.com/Zyrax101/ThreadHeaven/internal/domain"
)

// Catalog supplies the purchasable products, newest first.
// Consumers define this interface, not the implementations.
type Catalog interface {
	ListActive(ctx context.Context) ([]domain.Product, error)
}

var ErrProductNotFound = errors.New("product not found")

// FindActive scans a catalog listing for a product id. The storefront
// catalog is small enough that a scan beats carrying a second lookup
// method on every implementation.
func FindActive(ctx context.Context, c Catalog, productID int64) (domain.Product, error) {
	products, err := c.ListActive(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	for _, p := range products {
		if p.ID == productID {
			return p, nil
		}
	}
	return domain.Product{}, ErrProductNotFound
}
