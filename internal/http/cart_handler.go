package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Zyrax101/ThreadHeaven/internal/cart"
	"github.com/Zyrax101/ThreadHeaven/internal/catalog"
	"github.com/Zyrax101/ThreadHeaven/internal/domain"
)

type CartHandler struct {
	carts   *cart.Manager
	catalog catalog.Catalog
	timeout time.Duration
}

func NewCartHandler(carts *cart.Manager, c catalog.Catalog, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: c,
		timeout: timeout,
	}
}

type AddItemRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	Items     []domain.LineItem `json:"items"`
	Total     float64           `json:"total"`
	ItemCount int               `json:"item_count"`
}

// NoticeDTO tells the client how to stage the added-to-cart toast.
type NoticeDTO struct {
	Message      string `json:"message"`
	VisibleMs    int64  `json:"visible_ms"`
	TransitionMs int64  `json:"transition_ms"`
}

type AddItemResponse struct {
	Cart   CartResponse `json:"cart"`
	Notice NoticeDTO    `json:"notice"`
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.carts.Ledger(ctx, getSessionID(ctx))
	respondJSON(w, http.StatusOK, cartResponse(l))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	product, err := catalog.FindActive(ctx, h.catalog, req.ProductID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "catalog_unavailable", "catalog is unavailable")
		return
	}

	l := h.carts.Ledger(ctx, getSessionID(ctx))
	if err := l.AddItem(ctx, product, req.Quantity, req.Size); err != nil {
		switch {
		case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrInvalidSize):
			respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "cart_unavailable", "failed to update cart")
		}
		return
	}

	respondJSON(w, http.StatusOK, AddItemResponse{
		Cart: cartResponse(l),
		Notice: NoticeDTO{
			Message:      product.Name + " added to cart",
			VisibleMs:    cart.NoticeVisible.Milliseconds(),
			TransitionMs: cart.NoticeTransition.Milliseconds(),
		},
	})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	l := h.carts.Ledger(ctx, getSessionID(ctx))
	if err := l.UpdateQuantity(ctx, index, req.Quantity); err != nil {
		respondCartMutationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(l))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	l := h.carts.Ledger(ctx, getSessionID(ctx))
	if err := l.RemoveItem(ctx, index); err != nil {
		respondCartMutationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(l))
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	l := h.carts.Ledger(ctx, getSessionID(ctx))
	if err := l.Clear(ctx); err != nil {
		respondError(w, http.StatusInternalServerError, "cart_unavailable", "failed to clear cart")
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(l))
}

func lineIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "line item index must be an integer")
		return 0, false
	}
	return index, true
}

func respondCartMutationError(w http.ResponseWriter, err error) {
	if errors.Is(err, cart.ErrIndexOutOfRange) {
		respondError(w, http.StatusNotFound, "index_out_of_range", err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, "cart_unavailable", "failed to update cart")
}

func cartResponse(l *cart.Ledger) CartResponse {
	return CartResponse{
		Items:     l.Items(),
		Total:     l.Total(),
		ItemCount: l.ItemCount(),
	}
}
