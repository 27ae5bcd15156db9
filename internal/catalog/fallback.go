package catalog

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Zyrax101/ThreadHeaven/internal/domain"
)

// builtinProducts is the fixed catalog the storefront falls back to
// when the real catalog is unreachable, so browsing keeps working with
// zero external dependencies. Listed newest first.
var builtinProducts = []domain.Product{
	{ID: 6, Name: "Silk Pocket Square", Material: "mulberry silk", Price: 42, ImageURL: "/assets/products/silk-pocket-square.jpg", RotationHint: "1.2deg", Active: true},
	{ID: 5, Name: "Cotton Canvas Tote", Material: "organic cotton", Price: 28, ImageURL: "/assets/products/canvas-tote.jpg", RotationHint: "-1.8deg", Active: true},
	{ID: 4, Name: "Alpaca Beanie", Material: "alpaca", Price: 35, ImageURL: "/assets/products/alpaca-beanie.jpg", RotationHint: "2.4deg", Active: true},
	{ID: 3, Name: "Cashmere Scarf", Material: "cashmere", Price: 75, ImageURL: "/assets/products/cashmere-scarf.jpg", RotationHint: "-0.6deg", Active: true},
	{ID: 2, Name: "Linen Summer Shirt", Material: "linen", Price: 55, ImageURL: "/assets/products/linen-shirt.jpg", RotationHint: "1.5deg", Active: true},
	{ID: 1, Name: "Aran Cable Sweater", Material: "merino wool", Price: 120, ImageURL: "/assets/products/aran-sweater.jpg", RotationHint: "-2deg", Active: true},
}

// Builtin returns a copy of the fixed six-item catalog.
func Builtin() []domain.Product {
	out := make([]domain.Product, len(builtinProducts))
	copy(out, builtinProducts)
	return out
}

// Fallback decorates a catalog with the built-in product list: any
// failure of the wrapped catalog degrades to the fixed six entries
// with a WARN log instead of an error. Concurrent listings are
// collapsed into a single upstream fetch.
type Fallback struct {
	next Catalog
	log  *logrus.Logger
	sfg  singleflight.Group // Prevents upstream stampede
}

func NewFallback(next Catalog, log *logrus.Logger) *Fallback {
	return &Fallback{next: next, log: log}
}

func (f *Fallback) ListActive(ctx context.Context) ([]domain.Product, error) {
	v, err, _ := f.sfg.Do("list-active", func() (interface{}, error) {
		return f.next.ListActive(ctx)
	})
	if err != nil {
		f.log.WithError(err).WithField("fallback_items", len(builtinProducts)).
			Warn("catalog unavailable, serving built-in products")
		return Builtin(), nil
	}
	return v.([]domain.Product), nil
}
