package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Zyrax101/ThreadHeaven/internal/catalog"
	"github.com/Zyrax101/ThreadHeaven/internal/domain"
)

// ProductWriter is the mutable side of the catalog; only the local
// repository implements it.
type ProductWriter interface {
	CreateProduct(ctx context.Context, p *domain.Product) error
	DeactivateProduct(ctx context.Context, id int64) error
}

type AdminHandler struct {
	products ProductWriter
	timeout  time.Duration
}

func NewAdminHandler(products ProductWriter, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		products: products,
		timeout:  timeout,
	}
}

type CreateProductRequest struct {
	Name         string  `json:"name"`
	Material     string  `json:"material"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price"`
	ImageURL     string  `json:"image_url"`
	RotationHint string  `json:"rotation_hint,omitempty"`
}

func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	if req.Price < 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "price must not be negative")
		return
	}

	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	p := domain.Product{
		Name:         req.Name,
		Material:     req.Material,
		Description:  req.Description,
		Price:        req.Price,
		ImageURL:     req.ImageURL,
		RotationHint: req.RotationHint,
		Active:       true,
	}
	if err := h.products.CreateProduct(ctx, &p); err != nil {
		respondError(w, http.StatusInternalServerError, "catalog_write_failed", "failed to create product")
		return
	}

	respondJSON(w, http.StatusCreated, ProductDTO{
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

func (h *AdminHandler) DeactivateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "product id must be an integer")
		return
	}

	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	if err := h.products.DeactivateProduct(ctx, id); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "product_not_found", "product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "catalog_write_failed", "failed to deactivate product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
