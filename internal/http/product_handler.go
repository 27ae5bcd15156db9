package http

import (
	"net/http"
	"time"

	"github.com/Zyrax101/ThreadHeaven/internal/catalog"
	"github.com/Zyrax101/ThreadHeaven/internal/domain"
)

type ProductHandler struct {
	catalog catalog.Catalog
	timeout time.Duration
}

func NewProductHandler(c catalog.Catalog, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: c,
		timeout: timeout,
	}
}

type ProductDTO struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Material     string   `json:"material"`
	Description  string   `json:"description,omitempty"`
	Price        float64  `json:"price"`
	ImageURL     string   `json:"image_url"`
	RotationHint string   `json:"rotation_hint,omitempty"`
	Sizes        []string `json:"sizes"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	products, err := h.catalog.ListActive(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "catalog_unavailable", "catalog is unavailable")
		return
	}

	dtos := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, ProductDTO{
			ID:           p.ID,
			Name:         p.Name,
			Material:     p.Material,
			Description:  p.Description,
			Price:        p.Price,
			ImageURL:     p.ImageURL,
			RotationHint: p.RotationHint,
			Sizes:        domain.Sizes,
		})
	}

	respondJSON(w, http.StatusOK, dtos)
}
