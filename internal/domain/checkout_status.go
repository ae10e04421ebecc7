package domain

type CheckoutStatus string

const (
	CheckoutStatusIdle                  CheckoutStatus = "IDLE"
	CheckoutStatusCollectingDetails     CheckoutStatus = "COLLECTING_DETAILS"
	CheckoutStatusAwaitingAuth          CheckoutStatus = "AWAITING_AUTH"
	CheckoutStatusRequestingIntent      CheckoutStatus = "REQUESTING_INTENT"
	CheckoutStatusAwaitingGatewayResult CheckoutStatus = "AWAITING_GATEWAY_RESULT"
	CheckoutStatusSubmitting            CheckoutStatus = "SUBMITTING"
	CheckoutStatusSuccess               CheckoutStatus = "SUCCESS"
	CheckoutStatusFailed                CheckoutStatus = "FAILED"
)

var checkoutTransitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusIdle:                  {CheckoutStatusCollectingDetails, CheckoutStatusAwaitingAuth},
	CheckoutStatusAwaitingAuth:          {CheckoutStatusCollectingDetails, CheckoutStatusAwaitingAuth, CheckoutStatusIdle},
	CheckoutStatusCollectingDetails:     {CheckoutStatusRequestingIntent, CheckoutStatusAwaitingAuth, CheckoutStatusIdle},
	CheckoutStatusRequestingIntent:      {CheckoutStatusAwaitingGatewayResult, CheckoutStatusFailed},
	CheckoutStatusAwaitingGatewayResult: {CheckoutStatusSubmitting, CheckoutStatusCollectingDetails, CheckoutStatusFailed},
	CheckoutStatusSubmitting:            {CheckoutStatusSuccess, CheckoutStatusFailed},
	CheckoutStatusSuccess:               {CheckoutStatusIdle},
	CheckoutStatusFailed:                {CheckoutStatusCollectingDetails, CheckoutStatusAwaitingAuth, CheckoutStatusIdle},
}

// CanTransitionTo reports whether the checkout workflow permits moving from s to next.
func (s CheckoutStatus) CanTransitionTo(next CheckoutStatus) bool {
	for _, allowed := range checkoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsBusy is true while a payment attempt is in flight.
func (s CheckoutStatus) IsBusy() bool {
	switch s {
	case CheckoutStatusRequestingIntent, CheckoutStatusAwaitingGatewayResult, CheckoutStatusSubmitting:
		return true
	}
	return false
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}
