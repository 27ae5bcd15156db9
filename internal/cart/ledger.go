package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Zyrax101/ThreadHeaven/internal/domain"
	"github.com/Zyrax101/ThreadHeaven/internal/store"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrIndexOutOfRange = errors.New("line item index out of range")
	ErrInvalidSize     = errors.New("unknown size label")
	ErrNegativePrice   = errors.New("product price must not be negative")
)

// Notice timings are the display contract for the added-to-cart toast:
// 300ms slide in, NoticeVisible on screen, 300ms fade out. The ledger
// only reports them; rendering is the client's problem.
const (
	NoticeVisible    = 3000 * time.Millisecond
	NoticeTransition = 300 * time.Millisecond
)

type EventKind string

const (
	EventItemAdded   EventKind = "ITEM_ADDED"
	EventItemRemoved EventKind = "ITEM_REMOVED"
	EventCleared     EventKind = "CLEARED"
)

// Event is emitted after every successful mutation. ItemCount feeds the
// cart badge; Added is set only for ITEM_ADDED.
type Event struct {
	Kind      EventKind
	ItemCount int
	Added     *domain.LineItem
}

// Ledger owns one session's cart. Every mutation is a critical section:
// the new state is serialized and written to the store before the
// in-memory slice is swapped, so a failed write leaves the cart exactly
// as it was and the persisted blob never trails a visible mutation.
type Ledger struct {
	mu    sync.Mutex
	st    store.Store
	key   string
	items []domain.LineItem
	log   *logrus.Entry
	subs  []func(Event)
}

// NewLedger hydrates a ledger from the store. A missing key yields an
// empty cart; so does a malformed blob, which is logged and discarded
// rather than propagated.
func NewLedger(ctx context.Context, st store.Store, key string, log *logrus.Logger) *Ledger {
	l := &Ledger{
		st:  st,
		key: key,
		log: log.WithField("cart_key", key),
	}

	data, err := st.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return l
	}
	if err != nil {
		l.log.WithError(err).Warn("cart hydration failed, starting empty")
		return l
	}

	var c domain.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		l.log.WithError(err).Warn("persisted cart is malformed, starting empty")
		return l
	}
	for _, li := range c.Items {
		if li.Quantity < 1 {
			l.log.WithField("product_id", li.ProductID).Warn("persisted cart violates quantity invariant, starting empty")
			return l
		}
	}
	l.items = c.Items
	return l
}

// Subscribe registers a change listener. Listeners run synchronously
// after the mutation is persisted and must not call back into the
// ledger.
func (l *Ledger) Subscribe(fn func(Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, fn)
}

// AddItem merges quantity into an existing line item with the same
// (product, size) identity, or appends a new one.
func (l *Ledger) AddItem(ctx context.Context, p domain.Product, quantity int, size string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !domain.ValidSize(size) {
		return fmt.Errorf("%w: %q", ErrInvalidSize, size)
	}
	if p.Price < 0 {
		return ErrNegativePrice
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.cloneItems()
	merged := false
	for i := range next {
		if next[i].SameIdentity(p.ID, size) {
			next[i].Quantity += quantity
			merged = true
			break
		}
	}
	var added domain.LineItem
	if !merged {
		added = domain.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			ImageURL:  p.ImageURL,
			Material:  p.Material,
			Size:      size,
			Quantity:  quantity,
		}
		next = append(next, added)
	} else {
		for _, li := range next {
			if li.SameIdentity(p.ID, size) {
				added = li
			}
		}
	}

	if err := l.persist(ctx, next); err != nil {
		return err
	}
	l.items = next
	l.emit(Event{Kind: EventItemAdded, ItemCount: l.itemCount(), Added: &added})
	return nil
}

// RemoveItem deletes the line item at index (0-based). An out-of-range
// index is an explicit error, not a silent no-op.
func (l *Ledger) RemoveItem(ctx context.Context, index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.removeLocked(ctx, index)
}

// UpdateQuantity sets the quantity of the line item at index. A
// quantity of zero or less removes the item instead of storing a
// non-positive value.
func (l *Ledger) UpdateQuantity(ctx context.Context, index, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if quantity <= 0 {
		return l.removeLocked(ctx, index)
	}
	if index < 0 || index >= len(l.items) {
		return ErrIndexOutOfRange
	}

	next := l.cloneItems()
	next[index].Quantity = quantity
	if err := l.persist(ctx, next); err != nil {
		return err
	}
	l.items = next
	return nil
}

// Clear empties the ledger and persists the empty cart.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.persist(ctx, nil); err != nil {
		return err
	}
	l.items = nil
	l.emit(Event{Kind: EventCleared, ItemCount: 0})
	return nil
}

// Items returns a copy of the line items in insertion order.
func (l *Ledger) Items() []domain.LineItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cloneItems()
}

// Total is the unrounded sum of unit price times quantity.
func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := domain.Cart{Items: l.items}
	return c.Total()
}

// ItemCount is the sum of quantities.
func (l *Ledger) ItemCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.itemCount()
}

func (l *Ledger) removeLocked(ctx context.Context, index int) error {
	if index < 0 || index >= len(l.items) {
		return ErrIndexOutOfRange
	}

	next := l.cloneItems()
	next = append(next[:index], next[index+1:]...)
	if err := l.persist(ctx, next); err != nil {
		return err
	}
	l.items = next
	l.emit(Event{Kind: EventItemRemoved, ItemCount: l.itemCount()})
	return nil
}

func (l *Ledger) persist(ctx context.Context, items []domain.LineItem) error {
	c := domain.Cart{Items: items, UpdatedAt: time.Now()}
	data, err := json.Marshal(&c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := l.st.Set(ctx, l.key, data); err != nil {
		return fmt.Errorf("persist cart failed: %w", err)
	}
	return nil
}

func (l *Ledger) cloneItems() []domain.LineItem {
	out := make([]domain.LineItem, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Ledger) itemCount() int {
	c := domain.Cart{Items: l.items}
	return c.ItemCount()
}

func (l *Ledger) emit(e Event) {
	for _, fn := range l.subs {
		fn(e)
	}
}
