package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Zyrax101/ThreadHeaven/internal/cart"
	"github.com/Zyrax101/ThreadHeaven/internal/domain"
	"github.com/Zyrax101/ThreadHeaven/internal/order"
	"github.com/Zyrax101/ThreadHeaven/internal/store"
)

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition = errors.New("illegal transition of checkout state")
	ErrSubmitInProgress  = errors.New("a submission is already in progress")
)

// Event is emitted on every state transition. Presentation subscribes
// and renders; the orchestrator itself never touches a view.
type Event struct {
	From        domain.CheckoutState
	To          domain.CheckoutState
	OrderNumber string
	Email       string
	PaymentURL  string
	Message     string
}

type Config struct {
	Ledger     *cart.Ledger
	Sink       order.Sink
	Publisher  order.EventPublisher // optional
	Store      store.Store
	PendingKey string
	// PaymentBaseURL is the hosted payment page; Succeeded events carry
	// PaymentBaseURL/<order id>. The order stays PENDING until the
	// external provider confirms, which this system never observes.
	PaymentBaseURL string
	Logger         *logrus.Logger
	Now            func() time.Time
}

// Orchestrator drives one session's checkout: Idle, SummaryShown,
// FormShown, Submitting, then Succeeded or back to FormShown on
// failure. The snapshot taken at Begin is what gets ordered; cart
// mutations after that point do not leak into the checkout.
type Orchestrator struct {
	mu  sync.Mutex
	cfg Config
	log *logrus.Entry

	state    domain.CheckoutState
	snapshot []domain.LineItem
	total    float64
	// idempotencyKey is fixed at Begin so user-initiated retries of a
	// failed submission cannot create duplicate remote orders.
	idempotencyKey string

	form    domain.ShippingAddress
	email   string
	edited  map[string]bool
	lastErr string

	result     *domain.Order
	paymentURL string

	subs []func(Event)
}

func New(cfg Config) *Orchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		cfg:    cfg,
		log:    cfg.Logger.WithField("component", "checkout"),
		state:  domain.CheckoutStateIdle,
		edited: make(map[string]bool),
	}
}

func (o *Orchestrator) Subscribe(fn func(Event)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subs = append(o.subs, fn)
}

// Begin snapshots the cart and shows the order summary. An empty cart
// never leaves Idle.
func (o *Orchestrator) Begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !domain.CanTransitionTo(o.state, domain.CheckoutStateSummaryShown) {
		return ErrIllegalTransition
	}

	items := o.cfg.Ledger.Items()
	if len(items) == 0 {
		return ErrEmptyCart
	}

	o.snapshot = items
	// Total comes from the snapshot, not a second read of the live
	// ledger, so Amount always agrees with Items even if the cart
	// mutates mid-Begin.
	c := domain.Cart{Items: items}
	o.total = c.Total()
	o.idempotencyKey = uuid.NewString()
	o.transition(domain.CheckoutStateSummaryShown, Event{})
	return nil
}

// ShowForm moves from the summary to the shipping form.
func (o *Orchestrator) ShowForm() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !domain.CanTransitionTo(o.state, domain.CheckoutStateFormShown) {
		return ErrIllegalTransition
	}
	o.transition(domain.CheckoutStateFormShown, Event{})
	return nil
}

// SetField records a user edit to a shipping form field. Edited fields
// are pinned: a later Prefill never overwrites them.
func (o *Orchestrator) SetField(field, value string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch field {
	case FieldFullName:
		o.form.FullName = value
	case FieldEmail:
		o.email = value
	case FieldStreet:
		o.form.Street = value
	case FieldCity:
		o.form.City = value
	case FieldPostalCode:
		o.form.PostalCode = value
	case FieldCountry:
		o.form.Country = value
	default:
		return fmt.Errorf("unknown form field %q", field)
	}
	o.edited[field] = true
	return nil
}

// Prefill fills form fields from a known customer profile, skipping
// any field the user has already edited.
func (o *Orchestrator) Prefill(p domain.CustomerProfile) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.edited[FieldFullName] && p.FullName != "" {
		o.form.FullName = p.FullName
	}
	if !o.edited[FieldEmail] && p.Email != "" {
		o.email = p.Email
	}
	if !o.edited[FieldStreet] && p.Street != "" {
		o.form.Street = p.Street
	}
	if !o.edited[FieldCity] && p.City != "" {
		o.form.City = p.City
	}
	if !o.edited[FieldPostalCode] && p.PostalCode != "" {
		o.form.PostalCode = p.PostalCode
	}
	if !o.edited[FieldCountry] && p.Country != "" {
		o.form.Country = p.Country
	}
}

// Submit validates the form, constructs the order once and hands it to
// the sink. A second Submit while one is in flight is rejected without
// constructing anything. Failures surface a generic message and return
// the checkout to the editable form.
func (o *Orchestrator) Submit(ctx context.Context) (*domain.Order, error) {
	o.mu.Lock()

	if o.state == domain.CheckoutStateSubmitting {
		o.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	if !domain.CanTransitionTo(o.state, domain.CheckoutStateSubmitting) {
		o.mu.Unlock()
		return nil, ErrIllegalTransition
	}

	if err := ValidateShippingForm(o.form, o.email); err != nil {
		o.lastErr = err.Error()
		o.mu.Unlock()
		return nil, err
	}

	ord := o.buildOrder()
	o.lastErr = ""
	o.transition(domain.CheckoutStateSubmitting, Event{})
	o.mu.Unlock()

	o.writePendingSnapshot(ctx, ord)

	accepted, err := o.cfg.Sink.Submit(ctx, ord)
	if err != nil {
		o.mu.Lock()
		o.lastErr = "We could not place your order. Please try again."
		o.transition(domain.CheckoutStateFormShown, Event{Message: o.lastErr})
		o.mu.Unlock()
		o.log.WithError(err).WithField("order_number", ord.Number).Error("order submission failed")
		return nil, fmt.Errorf("submit order: %w", err)
	}
	if accepted == nil {
		accepted = ord
	}

	if err := o.cfg.Ledger.Clear(ctx); err != nil {
		// The order is placed; a cart that refuses to clear must not
		// fail the checkout.
		o.log.WithError(err).Warn("failed to clear cart after checkout")
	}

	if o.cfg.Publisher != nil {
		if err := o.cfg.Publisher.Publish(ctx, accepted); err != nil {
			o.log.WithError(err).WithField("order_number", accepted.Number).Warn("failed to publish order event")
		}
	}

	o.mu.Lock()
	o.result = accepted
	o.paymentURL = o.cfg.PaymentBaseURL + "/" + accepted.ID.String()
	o.transition(domain.CheckoutStateSucceeded, Event{
		OrderNumber: accepted.Number,
		Email:       accepted.CustomerEmail,
		PaymentURL:  o.paymentURL,
	})
	o.mu.Unlock()

	o.log.WithFields(logrus.Fields{
		"order_number": accepted.Number,
		"amount":       accepted.Amount,
	}).Info("order placed")
	return accepted, nil
}

// State returns the current checkout state.
func (o *Orchestrator) State() domain.CheckoutState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Summary returns the snapshot taken at Begin.
func (o *Orchestrator) Summary() ([]domain.LineItem, float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	items := make([]domain.LineItem, len(o.snapshot))
	copy(items, o.snapshot)
	return items, o.total
}

// Form returns the current form contents and email.
func (o *Orchestrator) Form() (domain.ShippingAddress, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.form, o.email
}

// LastError is the user-facing message from the most recent failure,
// empty when there is none.
func (o *Orchestrator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Result returns the accepted order and payment URL after Succeeded.
func (o *Orchestrator) Result() (*domain.Order, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result, o.paymentURL
}

func (o *Orchestrator) buildOrder() *domain.Order {
	id := uuid.New()
	now := o.cfg.Now()
	items := make([]domain.LineItem, len(o.snapshot))
	copy(items, o.snapshot)

	return &domain.Order{
		ID: id,
		// Display label only; collision-safe identity is the uuid.
		Number:          fmt.Sprintf("TH-%d-%s", now.UnixMilli(), id.String()[:4]),
		IdempotencyKey:  o.idempotencyKey,
		CustomerEmail:   o.email,
		Amount:          o.total,
		Currency:        "EUR",
		Status:          domain.OrderStatusPending,
		Items:           items,
		ShippingAddress: o.form,
		CreatedAt:       now,
	}
}

// writePendingSnapshot records the order intent before the payment
// handoff so it could be recovered after a redirect. Nothing reads it
// back today; failure to write it must not block the checkout.
func (o *Orchestrator) writePendingSnapshot(ctx context.Context, ord *domain.Order) {
	pending := domain.PendingOrder{
		Email:     ord.CustomerEmail,
		Address:   ord.ShippingAddress,
		Items:     ord.Items,
		Total:     ord.Amount,
		CreatedAt: o.cfg.Now(),
	}
	data, err := json.Marshal(&pending)
	if err != nil {
		o.log.WithError(err).Warn("failed to marshal pending order")
		return
	}
	if err := o.cfg.Store.Set(ctx, o.cfg.PendingKey, data); err != nil {
		o.log.WithError(err).Warn("failed to write pending order snapshot")
	}
}

// transition must be called with the mutex held.
func (o *Orchestrator) transition(to domain.CheckoutState, e Event) {
	e.From = o.state
	e.To = to
	o.state = to
	for _, fn := range o.subs {
		fn(e)
	}
}
