package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	apperrors "github.com/JUNGLI-STORE/jungli-store/pkg/errors"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sessionName = "jungli-session"

var ErrInvalidToken = errors.New("invalid or expired sign-in link")

type SessionConfig struct {
	BaseURL      string
	MagicLinkTTL time.Duration
}

// SessionAuth owns the session cookie and the magic-link sign-in flow.
type SessionAuth struct {
	store  sessions.Store
	redis  *redis.Client
	mailer Mailer
	guard  *Guard
	cfg    SessionConfig
	logger *zap.Logger
}

func NewSessionAuth(store sessions.Store, rdb *redis.Client, mailer Mailer, guard *Guard, cfg SessionConfig, logger *zap.Logger) *SessionAuth {
	if cfg.MagicLinkTTL == 0 {
		cfg.MagicLinkTTL = time.Hour
	}
	return &SessionAuth{
		store:  store,
		redis:  rdb,
		mailer: mailer,
		guard:  guard,
		cfg:    cfg,
		logger: logger,
	}
}

// NewCookieStore configures the gorilla cookie store used for sessions.
func NewCookieStore(key []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(key)
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.Path = "/"
	store.Options.MaxAge = 30 * 24 * 60 * 60
	return store
}

// Middleware makes sure every visitor has a session id and puts the session
// id and signed-in identity into the request context.
func (a *SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := a.store.Get(r, sessionName)
		if err != nil {
			// tampered or rotated-key cookie; start over with a fresh one
			a.logger.Debug("discarding unreadable session", zap.Error(err))
		}

		sid, _ := session.Values["sid"].(string)
		if sid == "" {
			sid = uuid.NewString()
			session.Values["sid"] = sid
			if err := session.Save(r, w); err != nil {
				a.logger.Error("failed to save session", zap.Error(err))
				http.Error(w, "Failed to save session", http.StatusInternalServerError)
				return
			}
		}

		ctx := WithSessionID(r.Context(), sid)
		email, _ := session.Values["email"].(string)
		userID, _ := session.Values["user_id"].(string)
		if email != "" {
			ctx = WithIdentity(ctx, a.guard.resolve(userID, email))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestMagicLink stores a one-time sign-in token and mails the link.
func (a *SessionAuth) RequestMagicLink(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return &apperrors.ValidationError{Fields: map[string]string{"email": "invalid email address"}}
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	if err := a.redis.Set(ctx, magicLinkKey(token), email, a.cfg.MagicLinkTTL).Err(); err != nil {
		return fmt.Errorf("store magic link: %w", err)
	}

	link := fmt.Sprintf("%s/api/v1/auth/callback?token=%s", a.cfg.BaseURL, url.QueryEscape(token))
	if err := a.mailer.SendMagicLink(ctx, email, link); err != nil {
		return fmt.Errorf("send magic link: %w", err)
	}
	return nil
}

// ConsumeMagicLink signs the session in with the token's email. Tokens are single use.
func (a *SessionAuth) ConsumeMagicLink(w http.ResponseWriter, r *http.Request, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	email, err := a.redis.GetDel(r.Context(), magicLinkKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Identity{}, ErrInvalidToken
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("load magic link: %w", err)
	}

	session, _ := a.store.Get(r, sessionName)
	sid, _ := session.Values["sid"].(string)
	if sid == "" {
		sid = uuid.NewString()
		session.Values["sid"] = sid
	}
	userID := userIDFor(email)
	session.Values["user_id"] = userID
	session.Values["email"] = email
	if err := session.Save(r, w); err != nil {
		return domain.Identity{}, fmt.Errorf("save session: %w", err)
	}

	identity := a.guard.resolve(userID, email)
	a.logger.Info("user signed in", zap.String("session_id", sid), zap.String("user_id", userID))
	a.guard.notify(IdentityChange{SessionID: sid, Identity: identity, SignedIn: true})
	return identity, nil
}

// SignOut drops the identity but keeps the session id, so the cart survives.
func (a *SessionAuth) SignOut(w http.ResponseWriter, r *http.Request) error {
	session, _ := a.store.Get(r, sessionName)
	sid, _ := session.Values["sid"].(string)
	email, _ := session.Values["email"].(string)
	userID, _ := session.Values["user_id"].(string)

	delete(session.Values, "email")
	delete(session.Values, "user_id")
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if email != "" {
		a.logger.Info("user signed out", zap.String("session_id", sid), zap.String("user_id", userID))
		a.guard.notify(IdentityChange{SessionID: sid, Identity: domain.Identity{UserID: userID, Email: email}, SignedIn: false})
	}
	return nil
}

func magicLinkKey(token string) string {
	return fmt.Sprintf("magic_link:%s", token)
}

// userIDFor derives a stable user id from an email address.
func userIDFor(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
