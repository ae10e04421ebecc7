package checkout

import "errors"

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition  = errors.New("illegal transition of checkout status")
	ErrCheckoutInProgress = errors.New("a payment attempt is already in progress")
	ErrAlreadyResolved    = errors.New("payment result already received for this intent")
	ErrUnknownIntent      = errors.New("payment result does not match the pending intent")
	ErrAmountMismatch     = errors.New("intent amount does not match the cart total")
	ErrMissingReference   = errors.New("successful payment without a payment reference")
)
