package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Products *ProductHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Geo      *GeoHandler
	// Admin is nil when the catalog is remote and has no writable
	// local repository behind it.
	Admin *AdminHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(RequestIDMiddleware)
	r.Use(SessionMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", cfg.Products.List)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cfg.Cart.Get)
			r.Delete("/", cfg.Cart.Clear)
			r.Post("/items", cfg.Cart.AddItem)
			r.Put("/items/{index}", cfg.Cart.UpdateQuantity)
			r.Delete("/items/{index}", cfg.Cart.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", cfg.Checkout.Begin)
			r.Get("/", cfg.Checkout.State)
			r.Post("/fields", cfg.Checkout.SetField)
			r.Post("/submit", cfg.Checkout.Submit)
			r.Post("/reset", cfg.Checkout.Reset)
		})

		r.Get("/address/suggest", cfg.Geo.Suggest)

		if cfg.Admin != nil {
			r.Route("/admin/products", func(r chi.Router) {
				r.Post("/", cfg.Admin.CreateProduct)
				r.Delete("/{id}", cfg.Admin.DeactivateProduct)
			})
		}
	})

	return r
}
