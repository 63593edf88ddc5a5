package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one product in a cart. UnitPrice is the price captured when the
// line was created or last explicitly updated.
type LineItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Aggregate is the cart for one session key. Totals are always derived from Items.
type Aggregate struct {
	SessionKey    string          `json:"session_key"`
	Items         []LineItem      `json:"items"`
	TotalItems    int             `json:"total_items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	LastTouchedAt time.Time       `json:"last_touched_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewAggregate returns an empty cart with zero totals.
func NewAggregate(sessionKey string) *Aggregate {
	return &Aggregate{
		SessionKey:  sessionKey,
		Items:       []LineItem{},
		TotalAmount: decimal.Zero,
	}
}

// RecomputeTotals returns the quantity sum and the sum of quantity times unit price.
func RecomputeTotals(items []LineItem) (int, decimal.Decimal) {
	count := 0
	amount := decimal.Zero
	for _, item := range items {
		count += item.Quantity
		amount = amount.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return count, amount
}

// Recompute overwrites the derived totals from the current items.
func (a *Aggregate) Recompute() {
	a.TotalItems, a.TotalAmount = RecomputeTotals(a.Items)
}

// FindLine returns the index of the line for productID.
func (a *Aggregate) FindLine(productID uuid.UUID) (int, bool) {
	for i, item := range a.Items {
		if item.ProductID == productID {
			return i, true
		}
	}
	return -1, false
}

// RemoveLine drops the line at idx, keeping the order of the rest.
func (a *Aggregate) RemoveLine(idx int) {
	a.Items = append(a.Items[:idx:idx], a.Items[idx+1:]...)
}

// Expired reports whether the idle horizon has passed at now.
// A cart that was never persisted has no horizon and never expires.
func (a *Aggregate) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}

// Touch records activity at now and pushes the horizon to now+ttl.
func (a *Aggregate) Touch(now time.Time, ttl time.Duration) {
	a.LastTouchedAt = now
	a.ExpiresAt = now.Add(ttl)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
}

// Clone returns a deep copy so mutations can be discarded on failure.
func (a *Aggregate) Clone() *Aggregate {
	if a == nil {
		return nil
	}
	out := *a
	out.Items = make([]LineItem, len(a.Items))
	copy(out.Items, a.Items)
	return &out
}

// ProductIDs lists the products in the cart, in line order.
func (a *Aggregate) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(a.Items))
	for _, item := range a.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
