package cart

import (
	"errors"

	pkgerrors "github.com/angelmondragon/localstore-backend/pkg/errors"
	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when no record exists for a session key.
var ErrNotFound = errors.New("cart record not found")

func errProductUnavailable(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeProductUnavailable, "product not found or unavailable").
		WithDetails(map[string]any{"product_id": productID.String()})
}

func errInsufficientStock(productID uuid.UUID, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"product_id": productID.String(),
			"requested":  requested,
			"available":  available,
		})
}

func errCartNotFound() error {
	return pkgerrors.New(pkgerrors.CodeCartNotFound, "cart not found")
}

func errItemNotFound(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeItemNotFound, "item not found in cart").
		WithDetails(map[string]any{"product_id": productID.String()})
}

func errValidation(msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg)
}
