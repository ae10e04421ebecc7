package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
)

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	identityKey
)

const LoginPath = "/login"

// IdentityChange is pushed to subscribers whenever a session signs in or out.
type IdentityChange struct {
	SessionID string
	Identity  domain.Identity
	SignedIn  bool
}

// RoleResolver maps a verified email to its roles.
type RoleResolver interface {
	RolesFor(email string) []string
}

// AllowList grants the admin role to a fixed set of emails.
type AllowList struct {
	admins map[string]struct{}
}

func NewAllowList(emails []string) *AllowList {
	a := &AllowList{admins: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		a.admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return a
}

func (a *AllowList) RolesFor(email string) []string {
	if _, ok := a.admins[strings.ToLower(strings.TrimSpace(email))]; ok {
		return []string{domain.RoleAdmin}
	}
	return nil
}

// Guard answers "who is this request" and fans identity changes out to subscribers.
type Guard struct {
	roles RoleResolver

	mu     sync.RWMutex
	nextID int
	subs   map[int]func(IdentityChange)
}

func NewGuard(roles RoleResolver) *Guard {
	return &Guard{
		roles: roles,
		subs:  make(map[int]func(IdentityChange)),
	}
}

func (g *Guard) CurrentIdentity(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domain.Identity)
	return id, ok
}

// Subscribe registers fn for identity changes. The returned func unsubscribes
// and may be called any number of times.
func (g *Guard) Subscribe(fn func(IdentityChange)) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = fn
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs, id)
			g.mu.Unlock()
		})
	}
}

func (g *Guard) notify(change IdentityChange) {
	g.mu.RLock()
	subs := make([]func(IdentityChange), 0, len(g.subs))
	for _, fn := range g.subs {
		subs = append(subs, fn)
	}
	g.mu.RUnlock()

	for _, fn := range subs {
		fn(change)
	}
}

func (g *Guard) HasRole(identity domain.Identity, role string) bool {
	if identity.Email == "" {
		return false
	}
	for _, r := range g.roles.RolesFor(identity.Email) {
		if r == role {
			return true
		}
	}
	return false
}

func (g *Guard) resolve(userID, email string) domain.Identity {
	return domain.Identity{UserID: userID, Email: email, Roles: g.roles.RolesFor(email)}
}

// RequireIdentity rejects anonymous API calls with 401 and a login redirect hint.
func (g *Guard) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := g.CurrentIdentity(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":    "authentication required",
				"code":     "auth_required",
				"redirect": LoginPath,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole sends callers without role back to the storefront.
func (g *Guard) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := g.CurrentIdentity(r.Context())
			if !ok || !g.HasRole(identity, role) {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionID returns the browser session id set by SessionAuth.Middleware.
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}

func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sid)
}

func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}
