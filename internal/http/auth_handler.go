package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/JUNGLI-STORE/jungli-store/internal/auth"
	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	apperrors "github.com/JUNGLI-STORE/jungli-store/pkg/errors"
	"go.uber.org/zap"
)

type Authenticator interface {
	RequestMagicLink(ctx context.Context, email string) error
	ConsumeMagicLink(w http.ResponseWriter, r *http.Request, token string) (domain.Identity, error)
	SignOut(w http.ResponseWriter, r *http.Request) error
}

type RoleChecker interface {
	CurrentIdentity(ctx context.Context) (domain.Identity, bool)
	HasRole(identity domain.Identity, role string) bool
}

type AuthHandler struct {
	auth   Authenticator
	guard  RoleChecker
	logger *zap.Logger
}

func NewAuthHandler(authn Authenticator, guard RoleChecker, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: authn, guard: guard, logger: logger}
}

type MagicLinkRequestDTO struct {
	Email string `json:"email"`
}

type MeResponseDTO struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// POST /api/v1/auth/magic-link
func (h *AuthHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req MagicLinkRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.auth.RequestMagicLink(r.Context(), req.Email); err != nil {
		if apperrors.IsValidation(err) {
			handleError(w, h.logger, err)
			return
		}
		// do not reveal delivery problems to the caller
		h.logger.Error("failed to send magic link", zap.Error(err))
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"message": "Check your email for a sign-in link."})
}

// GET /api/v1/auth/callback?token=
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	_, err := h.auth.ConsumeMagicLink(w, r, r.URL.Query().Get("token"))
	if errors.Is(err, auth.ErrInvalidToken) {
		http.Redirect(w, r, auth.LoginPath+"?error=invalid_link", http.StatusSeeOther)
		return
	}
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(w, r); err != nil {
		handleError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.guard.CurrentIdentity(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: "auth_required", Redirect: auth.LoginPath})
		return
	}
	respondJSON(w, http.StatusOK, MeResponseDTO{
		UserID:  identity.UserID,
		Email:   identity.Email,
		IsAdmin: h.guard.HasRole(identity, domain.RoleAdmin),
	})
}
