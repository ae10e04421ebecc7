package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError is returned when user input is missing or malformed.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

// GatewayError is returned when the payment gateway could not create an intent
// or reported a failed payment. The cart is always left untouched.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("payment gateway: %s", e.Op)
	}
	return fmt.Sprintf("payment gateway: %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// PersistenceError is returned when a captured payment could not be turned into
// an order record. PaymentReference must be shown to the customer so the order can
// be recovered by hand.
type PersistenceError struct {
	PaymentReference string
	Err              error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("order not saved for payment %s: %v", e.PaymentReference, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// RecoveryMessage is the text shown to a customer whose payment went through but
// whose order record is missing.
func (e *PersistenceError) RecoveryMessage() string {
	return fmt.Sprintf("Payment successful but failed to save order details. Please keep this reference and contact support: %s", e.PaymentReference)
}

// AuthRequiredError is not a failure: the caller must sign in and retry.
type AuthRequiredError struct {
	Redirect string
}

func (e *AuthRequiredError) Error() string {
	return "authentication required"
}

// NotFoundError is returned when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// InvalidStateTransitionError is returned when a status change is not allowed.
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsGateway(err error) bool {
	var g *GatewayError
	return errors.As(err, &g)
}

func IsAuthRequired(err error) bool {
	var a *AuthRequiredError
	return errors.As(err, &a)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}
