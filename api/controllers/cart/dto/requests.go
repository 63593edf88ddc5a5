package cartdto

import "github.com/google/uuid"

// AddItemRequest adds quantity of a product. An empty session_id starts a new cart.
// A single request never moves more than 999 units.
type AddItemRequest struct {
	SessionID string    `json:"session_id" validate:"omitempty,session_key"`
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  *int      `json:"quantity" validate:"required,gte=1,lte=999"`
}

// UpdateItemRequest sets an absolute quantity; zero removes the line.
type UpdateItemRequest struct {
	SessionID string    `json:"session_id" validate:"required,session_key"`
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  *int      `json:"quantity" validate:"required,gte=0,lte=999"`
}

// RemoveItemRequest drops a line from the cart.
type RemoveItemRequest struct {
	SessionID string    `json:"session_id" validate:"required,session_key"`
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}
