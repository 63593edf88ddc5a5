package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the persisted header of a session cart.
type Cart struct {
	SessionKey    string          `gorm:"column:session_key;size:128;primaryKey"`
	TotalItems    int             `gorm:"column:total_items;not null"`
	TotalAmount   decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	LastTouchedAt time.Time       `gorm:"column:last_touched_at;not null"`
	ExpiresAt     time.Time       `gorm:"column:expires_at;not null;index"`
	Items         []CartItem      `gorm:"foreignKey:SessionKey;references:SessionKey;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

// CartItem is one line of a Cart. Position keeps insertion order stable.
type CartItem struct {
	SessionKey string          `gorm:"column:session_key;size:128;primaryKey"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;primaryKey"`
	Position   int             `gorm:"column:position;not null"`
	Quantity   int             `gorm:"column:quantity;not null"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
}

// All lists every model owned by the schema, in dependency order.
func All() []any {
	return []any{&Product{}, &Cart{}, &CartItem{}}
}
