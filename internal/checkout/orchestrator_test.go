package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zyrax101/ThreadHeaven/internal/cart"
	"github.com/Zyrax101/ThreadHeaven/internal/domain"
	"github.com/Zyrax101/ThreadHeaven/internal/store"
)

var (
	sweater = domain.Product{ID: 1, Name: "Aran Cable Sweater", Material: "merino wool", Price: 120}
	shirt   = domain.Product{ID: 2, Name: "Linen Summer Shirt", Material: "linen", Price: 55}
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

type mockSink struct {
	mu      sync.Mutex
	submits atomic.Int64
	err     error
	block   chan struct{} // when set, Submit waits until closed
	last    *domain.Order
}

func (m *mockSink) Submit(_ context.Context, o *domain.Order) (*domain.Order, error) {
	m.submits.Add(1)
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.last = o
	return o, nil
}

type fixture struct {
	orch   *Orchestrator
	ledger *cart.Ledger
	sink   *mockSink
	st     *store.MemoryStore
}

func setupCheckout(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	ledger := cart.NewLedger(context.Background(), st, cart.Key("s"), testLogger())
	sink := &mockSink{}
	orch := New(Config{
		Ledger:         ledger,
		Sink:           sink,
		Store:          st,
		PendingKey:     "pending-order:s",
		PaymentBaseURL: "https://pay.example.com/session",
		Logger:         testLogger(),
	})
	return &fixture{orch: orch, ledger: ledger, sink: sink, st: st}
}

func fillForm(t *testing.T, o *Orchestrator) {
	t.Helper()
	require.NoError(t, o.SetField(FieldFullName, "Ada Lovelace"))
	require.NoError(t, o.SetField(FieldEmail, "ada@example.com"))
	require.NoError(t, o.SetField(FieldStreet, "12 Analytical Way"))
	require.NoError(t, o.SetField(FieldCity, "London"))
	require.NoError(t, o.SetField(FieldPostalCode, "N1 9GU"))
	require.NoError(t, o.SetField(FieldCountry, "GB"))
}

func TestBegin_EmptyCartStaysIdle(t *testing.T) {
	f := setupCheckout(t)

	err := f.orch.Begin()
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, domain.CheckoutStateIdle, f.orch.State())
}

func TestBegin_SummaryTotalMatchesSnapshotUnderConcurrentMutation(t *testing.T) {
	st := store.NewMemoryStore()
	ledger := cart.NewLedger(context.Background(), st, cart.Key("s"), testLogger())
	ctx := context.Background()
	require.NoError(t, ledger.AddItem(ctx, sweater, 1, "L"))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q := 1
		for {
			select {
			case <-stop:
				return
			default:
			}
			q = q%5 + 1
			_ = ledger.UpdateQuantity(ctx, 0, q)
		}
	}()

	// Whatever state Begin snapshots, its total must be the total of
	// that snapshot, never a re-read of the moving cart.
	for i := 0; i < 200; i++ {
		orch := New(Config{
			Ledger:         ledger,
			Sink:           &mockSink{},
			Store:          st,
			PendingKey:     "pending-order:s",
			PaymentBaseURL: "https://pay.example.com/session",
			Logger:         testLogger(),
		})
		require.NoError(t, orch.Begin())

		items, total := orch.Summary()
		snapshot := domain.Cart{Items: items}
		require.Equal(t, snapshot.Total(), total)
	}

	close(stop)
	wg.Wait()
}

func TestBegin_SnapshotIsImmuneToLaterCartMutations(t *testing.T) {
	f := setupCheckout(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.AddItem(ctx, shirt, 2, "M"))
	require.NoError(t, f.orch.Begin())

	// Mutate the live cart mid-checkout.
	require.NoError(t, f.ledger.AddItem(ctx, sweater, 5, "L"))

	items, total := f.orch.Summary()
	require.Len(t, items, 1)
	assert.Equal(t, 110.0, total)

	require.NoError(t, f.orch.ShowForm())
	fillForm(t, f.orch)
	ord, err := f.orch.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 110.0, ord.Amount)
	assert.Len(t, ord.Items, 1)
}

func TestCheckout_HappyPath(t *testing.T) {
	f := setupCheckout(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.AddItem(ctx, shirt, 2, "M"))
	require.NoError(t, f.ledger.AddItem(ctx, sweater, 1, "L"))

	var events []Event
	f.orch.Subscribe(func(e Event) { events = append(events, e) })

	require.NoError(t, f.orch.Begin())
	require.NoError(t, f.orch.ShowForm())
	fillForm(t, f.orch)

	ord, err := f.orch.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStateSucceeded, f.orch.State())

	assert.Equal(t, 230.0, ord.Amount)
	assert.Equal(t, domain.OrderStatusPending, ord.Status)
	assert.Equal(t, "ada@example.com", ord.CustomerEmail)
	assert.NotEmpty(t, ord.IdempotencyKey)
	assert.Regexp(t, `^TH-\d+-[0-9a-f]{4}$`, ord.Number)

	// Cart cleared on success.
	assert.Equal(t, 0, f.ledger.ItemCount())

	// Terminal event carries what the success screen shows.
	last := events[len(events)-1]
	assert.Equal(t, domain.CheckoutStateSucceeded, last.To)
	assert.Equal(t, ord.Number, last.OrderNumber)
	assert.Equal(t, "https://pay.example.com/session/"+ord.ID.String(), last.PaymentURL)

	// Pending snapshot was written before the handoff.
	data, err := f.st.Get(ctx, "pending-order:s")
	require.NoError(t, err)
	var pending domain.PendingOrder
	require.NoError(t, json.Unmarshal(data, &pending))
	assert.Equal(t, 230.0, pending.Total)
	assert.Len(t, pending.Items, 2)
}

func TestSubmit_ValidationFailures(t *testing.T) {
	f := setupCheckout(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.AddItem(ctx, shirt, 1, ""))
	require.NoError(t, f.orch.Begin())
	require.NoError(t, f.orch.ShowForm())

	// Missing required fields.
	_, err := f.orch.Submit(ctx)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldFullName, verr.Field)
	assert.Equal(t, domain.CheckoutStateFormShown, f.orch.State())

	// Email without an @.
	fillForm(t, f.orch)
	require.NoError(t, f.orch.SetField(FieldEmail, "not-an-email"))
	_, err = f.orch.Submit(ctx)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldEmail, verr.Field)

	// Nothing reached the sink and the form stays editable.
	assert.Equal(t, int64(0), f.sink.submits.Load())
	assert.Equal(t, domain.CheckoutStateFormShown, f.orch.State())
}

func TestSubmit_FailureReturnsToFormAndRetryWorks(t *testing.T) {
	f := setupCheckout(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.AddItem(ctx, shirt, 1, ""))
	require.NoError(t, f.orch.Begin())
	require.NoError(t, f.orch.ShowForm())
	fillForm(t, f.orch)

	f.sink.mu.Lock()
	f.sink.err = errors.New("sink down")
	f.sink.mu.Unlock()

	_, err := f.orch.Submit(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.CheckoutStateFormShown, f.orch.State())
	assert.NotEmpty(t, f.orch.LastError())
	// Cart untouched on failure.
	assert.Equal(t, 1, f.ledger.ItemCount())

	f.sink.mu.Lock()
	f.sink.err = nil
	f.sink.mu.Unlock()

	ord, err := f.orch.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStateSucceeded, f.orch.State())
	assert.Empty(t, f.orch.LastError())

	// The retry reuses the idempotency key fixed at Begin, so the sink
	// can collapse the attempts.
	assert.Equal(t, int64(2), f.sink.submits.Load())
	assert.Equal(t, f.sink.last.IdempotencyKey, ord.IdempotencyKey)
}

func TestSubmit_SecondSubmitWhileSubmittingIsRejected(t *testing.T) {
	f := setupCheckout(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.AddItem(ctx, shirt, 1, ""))
	require.NoError(t, f.orch.Begin())
	require.NoError(t, f.orch.ShowForm())
	fillForm(t, f.orch)

	f.sink.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Submit(ctx)
		done <- err
	}()

	// Wait for the first submission to be in flight.
	require.Eventually(t, func() bool {
		return f.orch.State() == domain.CheckoutStateSubmitting
	}, time.Second, time.Millisecond)

	_, err := f.orch.Submit(ctx)
	assert.ErrorIs(t, err, ErrSubmitInProgress)

	close(f.sink.block)
	require.NoError(t, <-done)

	// Exactly one order reached the sink.
	assert.Equal(t, int64(1), f.sink.submits.Load())
}

func TestSubmit_IllegalBeforeFormShown(t *testing.T) {
	f := setupCheckout(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.AddItem(ctx, shirt, 1, ""))

	_, err := f.orch.Submit(ctx)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	require.NoError(t, f.orch.Begin())
	_, err = f.orch.Submit(ctx)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestPrefill_NeverOverwritesUserEdits(t *testing.T) {
	f := setupCheckout(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.AddItem(ctx, shirt, 1, ""))
	require.NoError(t, f.orch.Begin())
	require.NoError(t, f.orch.ShowForm())

	require.NoError(t, f.orch.SetField(FieldEmail, "edited@example.com"))

	f.orch.Prefill(domain.CustomerProfile{
		FullName: "Ada Lovelace",
		Email:    "profile@example.com",
		City:     "London",
	})

	form, email := f.orch.Form()
	assert.Equal(t, "edited@example.com", email)
	assert.Equal(t, "Ada Lovelace", form.FullName)
	assert.Equal(t, "London", form.City)
}

func TestSetField_UnknownField(t *testing.T) {
	f := setupCheckout(t)
	assert.Error(t, f.orch.SetField("phone", "123"))
}

func TestRegistry_PerSessionLifecycle(t *testing.T) {
	st := store.NewMemoryStore()
	reg := NewRegistry(func(sessionID string) *Orchestrator {
		ledger := cart.NewLedger(context.Background(), st, cart.Key(sessionID), testLogger())
		return New(Config{
			Ledger:     ledger,
			Sink:       &mockSink{},
			Store:      st,
			PendingKey: "pending-order:" + sessionID,
			Logger:     testLogger(),
		})
	})
	defer reg.Close()

	a := reg.Get("s1")
	assert.Same(t, a, reg.Get("s1"))
	assert.NotSame(t, a, reg.Get("s2"))

	reg.Discard("s1")
	fresh := reg.Get("s1")
	assert.NotSame(t, a, fresh)
	assert.Equal(t, domain.CheckoutStateIdle, fresh.State())
}
