package domain

const CurrencyINR = "INR"

// PaymentIntent is a single-use, gateway-side order awaiting payment.
type PaymentIntent struct {
	IntentID         string `json:"intent_id"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
	Receipt          string `json:"receipt"`
}

type GatewayOutcome string

const (
	OutcomeSucceeded GatewayOutcome = "succeeded"
	OutcomeCancelled GatewayOutcome = "cancelled"
	OutcomeFailed    GatewayOutcome = "failed"
)

func (o GatewayOutcome) Valid() bool {
	switch o {
	case OutcomeSucceeded, OutcomeCancelled, OutcomeFailed:
		return true
	}
	return false
}

// GatewayResult is what the hosted payment UI reports back, exactly once per intent.
type GatewayResult struct {
	Outcome          GatewayOutcome `json:"outcome"`
	IntentID         string         `json:"intent_id"`
	PaymentReference string         `json:"payment_reference,omitempty"`
	Signature        string         `json:"signature,omitempty"`
	Reason           string         `json:"reason,omitempty"`
}
