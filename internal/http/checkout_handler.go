package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Zyrax101/ThreadHeaven/internal/checkout"
	"github.com/Zyrax101/ThreadHeaven/internal/domain"
)

type CheckoutHandler struct {
	registry *checkout.Registry
	timeout  time.Duration
}

func NewCheckoutHandler(registry *checkout.Registry, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		registry: registry,
		timeout:  timeout,
	}
}

type BeginCheckoutRequest struct {
	// Profile optionally prefills the shipping form. Fields the user
	// already typed into are left alone.
	Profile *domain.CustomerProfile `json:"profile,omitempty"`
}

type SetFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type CheckoutStateResponse struct {
	State       string                 `json:"state"`
	Items       []domain.LineItem      `json:"items,omitempty"`
	Total       float64                `json:"total"`
	Form        domain.ShippingAddress `json:"form"`
	Email       string                 `json:"email,omitempty"`
	Error       string                 `json:"error,omitempty"`
	OrderNumber string                 `json:"order_number,omitempty"`
	PaymentURL  string                 `json:"payment_url,omitempty"`
}

// Begin snapshots the cart, shows the summary and immediately opens
// the shipping form.
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	var req BeginCheckoutRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}
	}

	orch := h.registry.Get(getSessionID(r.Context()))
	if err := orch.Begin(); err != nil {
		respondCheckoutError(w, err)
		return
	}
	if err := orch.ShowForm(); err != nil {
		respondCheckoutError(w, err)
		return
	}
	if req.Profile != nil {
		orch.Prefill(*req.Profile)
	}

	respondJSON(w, http.StatusOK, stateResponse(orch))
}

// State reports the checkout as it stands, whatever phase it is in.
func (h *CheckoutHandler) State(w http.ResponseWriter, r *http.Request) {
	orch := h.registry.Get(getSessionID(r.Context()))
	respondJSON(w, http.StatusOK, stateResponse(orch))
}

// SetField records a single shipping form edit.
func (h *CheckoutHandler) SetField(w http.ResponseWriter, r *http.Request) {
	var req SetFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	orch := h.registry.Get(getSessionID(r.Context()))
	if err := orch.SetField(req.Field, req.Value); err != nil {
		respondError(w, http.StatusBadRequest, "unknown_field", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stateResponse(orch))
}

// Submit places the order. The response carries the terminal state:
// Succeeded with the order number and payment URL, or FormShown again
// with a user-facing error message.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	orch := h.registry.Get(getSessionID(r.Context()))
	_, err := orch.Submit(ctx)

	var ve *checkout.ValidationError
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, stateResponse(orch))
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   ve.Error(),
			Code:    "validation_failed",
			Details: ve.Field,
		})
	case errors.Is(err, checkout.ErrSubmitInProgress),
		errors.Is(err, checkout.ErrIllegalTransition),
		errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "checkout_conflict", err.Error())
	default:
		respondJSON(w, http.StatusBadGateway, stateResponse(orch))
	}
}

// Reset discards the session's checkout so the next Begin starts from
// Idle. A submission in flight cannot be reset out from under itself.
func (h *CheckoutHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sessionID := getSessionID(r.Context())
	orch := h.registry.Get(sessionID)
	if orch.State() == domain.CheckoutStateSubmitting {
		respondError(w, http.StatusConflict, "checkout_conflict", checkout.ErrSubmitInProgress.Error())
		return
	}
	h.registry.Discard(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func respondCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrIllegalTransition), errors.Is(err, checkout.ErrSubmitInProgress):
		respondError(w, http.StatusConflict, "checkout_conflict", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "checkout_failed", "checkout failed")
	}
}

func stateResponse(orch *checkout.Orchestrator) CheckoutStateResponse {
	items, total := orch.Summary()
	form, email := orch.Form()
	resp := CheckoutStateResponse{
		State: orch.State().String(),
		Items: items,
		Total: total,
		Form:  form,
		Email: email,
		Error: orch.LastError(),
	}
	if ord, paymentURL := orch.Result(); ord != nil {
		resp.OrderNumber = ord.Number
		resp.PaymentURL = paymentURL
	}
	return resp
}
