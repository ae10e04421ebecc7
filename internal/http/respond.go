package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JUNGLI-STORE/jungli-store/internal/auth"
	"github.com/JUNGLI-STORE/jungli-store/internal/cart"
	"github.com/JUNGLI-STORE/jungli-store/internal/checkout"
	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	"github.com/JUNGLI-STORE/jungli-store/internal/media"
	apperrors "github.com/JUNGLI-STORE/jungli-store/pkg/errors"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code,omitempty"`
	Details   string            `json:"details,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Redirect  string            `json:"redirect,omitempty"`
	PaymentID string            `json:"payment_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps domain and adapter errors onto HTTP responses.
func handleError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		authErr    *apperrors.AuthRequiredError
		persistErr *apperrors.PersistenceError
		gatewayErr *apperrors.GatewayError
		validErr   *apperrors.ValidationError
		notFound   *apperrors.NotFoundError
		transErr   *apperrors.InvalidStateTransitionError
	)

	switch {
	case errors.As(err, &authErr):
		respondJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:    authErr.Error(),
			Code:     "auth_required",
			Redirect: authErr.Redirect,
		})
	case errors.As(err, &persistErr):
		logger.Error("paid order not saved",
			zap.String("payment_id", persistErr.PaymentReference),
			zap.Error(persistErr.Err),
		)
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:     persistErr.RecoveryMessage(),
			Code:      "order_not_saved",
			PaymentID: persistErr.PaymentReference,
		})
	case errors.As(err, &gatewayErr):
		logger.Warn("payment gateway error", zap.Error(err))
		respondError(w, http.StatusBadGateway, "payment_gateway_error", "Payment could not be started. Please try again.")
	case errors.As(err, &validErr):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  validErr.Error(),
			Code:   "validation_failed",
			Fields: validErr.Fields,
		})
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, "empty_cart", err.Error())
	case errors.Is(err, cart.ErrInvalidLine):
		respondError(w, http.StatusUnprocessableEntity, "invalid_line", err.Error())
	case errors.As(err, &notFound), errors.Is(err, media.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		respondError(w, http.StatusBadRequest, "invalid_token", err.Error())
	case errors.Is(err, checkout.ErrIllegalTransition),
		errors.Is(err, checkout.ErrCheckoutInProgress),
		errors.Is(err, checkout.ErrAlreadyResolved),
		errors.Is(err, checkout.ErrUnknownIntent),
		errors.Is(err, domain.ErrDuplicatePayment),
		errors.As(err, &transErr):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	default:
		logger.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
