package domain

import (
	"math"
	"time"
)

// LineItem is one product/size/quantity entry in a cart. Two line items
// are the same entry iff they share (ProductID, Size); an empty Size
// means the product is unsized.
type LineItem struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	ImageURL  string  `json:"image_url"`
	Material  string  `json:"material"`
	Size      string  `json:"size,omitempty"`
	Quantity  int     `json:"quantity"`
}

// SameIdentity reports whether other merges into this line item.
func (li LineItem) SameIdentity(productID int64, size string) bool {
	return li.ProductID == productID && li.Size == size
}

// Subtotal is unit price times quantity, unrounded.
func (li LineItem) Subtotal() float64 {
	return li.UnitPrice * float64(li.Quantity)
}

type Cart struct {
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Total sums unit price times quantity across all line items. The value
// is kept unrounded; rounding happens only at display time.
func (c *Cart) Total() float64 {
	var total float64
	for _, li := range c.Items {
		total += li.Subtotal()
	}
	return total
}

// ItemCount sums quantities across all line items.
func (c *Cart) ItemCount() int {
	var count int
	for _, li := range c.Items {
		count += li.Quantity
	}
	return count
}

// DisplayTotal rounds a total to whole currency units for presentation.
func DisplayTotal(total float64) int64 {
	return int64(math.Round(total))
}

// Sizes is the enumerated set of size labels a line item may carry.
var Sizes = []string{"XS", "S", "M", "L", "XL"}

// ValidSize reports whether s is an allowed size label. The empty
// string is valid and means the product is unsized.
func ValidSize(s string) bool {
	if s == "" {
		return true
	}
	for _, known := range Sizes {
		if s == known {
			return true
		}
	}
	return false
}
