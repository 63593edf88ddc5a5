package enums

// CartOperation names a cart engine entry point, used as a metrics and log label.
type CartOperation string

const (
	CartOperationGet    CartOperation = "get"
	CartOperationAdd    CartOperation = "add_item"
	CartOperationUpdate CartOperation = "update_item"
	CartOperationRemove CartOperation = "remove_item"
	CartOperationClear  CartOperation = "clear_cart"
)

// String implements fmt.Stringer.
func (o CartOperation) String() string {
	return string(o)
}
