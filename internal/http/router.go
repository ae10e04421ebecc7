package http

import (
	"net/http"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Guard interface {
	RequireIdentity(next http.Handler) http.Handler
	RequireRole(role string) func(http.Handler) http.Handler
}

type RouterConfig struct {
	Logger         *zap.Logger
	RequestTimeout time.Duration
	MaxBodySize    int64
	// TrustProxy takes the client address from X-Forwarded-For and friends.
	// Only set it behind a proxy that overwrites those headers.
	TrustProxy bool

	// Session resolves the browser session and identity for every API call.
	Session func(http.Handler) http.Handler
	Guard   Guard
	// MagicLinkLimiter throttles sign-in mails; optional.
	MagicLinkLimiter *RateLimiter

	Cart     *CartHandler
	Checkout *CheckoutHandler
	Products *ProductHandler
	Orders   *OrdersHandler
	Admin    *AdminHandler
	Media    *MediaHandler
	Auth     *AuthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	health := func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
	r.Get("/health", health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health)
		r.Get("/media/{id}", cfg.Media.Serve)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Session)
			r.Use(middleware.Compress(5, "application/json"))

			r.Get("/products", cfg.Products.List)
			r.Get("/products/{id}", cfg.Products.Get)

			r.Group(func(r chi.Router) {
				r.Use(MaxBodyMiddleware(cfg.MaxBodySize))

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", cfg.Cart.GetCart)
					r.Delete("/", cfg.Cart.ClearCart)
					r.Post("/items", cfg.Cart.AddItem)
					r.Delete("/items/{product_id}", cfg.Cart.RemoveItem)
					r.Post("/open", cfg.Cart.SetOpen)
				})

				r.Route("/checkout", func(r chi.Router) {
					r.Get("/", cfg.Checkout.GetState)
					r.Post("/start", cfg.Checkout.Start)
					r.Post("/pay", cfg.Checkout.Pay)
					r.Post("/callback", cfg.Checkout.Callback)
					r.Post("/cancel", cfg.Checkout.Cancel)
					r.Post("/reset", cfg.Checkout.Reset)
					r.Post("/sandbox/charge", cfg.Checkout.SandboxCharge)
				})

				r.Route("/auth", func(r chi.Router) {
					if cfg.MagicLinkLimiter != nil {
						r.With(cfg.MagicLinkLimiter.Middleware).Post("/magic-link", cfg.Auth.RequestMagicLink)
					} else {
						r.Post("/magic-link", cfg.Auth.RequestMagicLink)
					}
					r.Get("/callback", cfg.Auth.Callback)
					r.Post("/signout", cfg.Auth.SignOut)
					r.Get("/me", cfg.Auth.Me)
				})

				r.With(cfg.Guard.RequireIdentity).Get("/me/orders", cfg.Orders.MyOrders)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(cfg.Guard.RequireIdentity)
				r.Use(cfg.Guard.RequireRole(domain.RoleAdmin))

				// multipart uploads are capped by the handler
				r.Post("/products", cfg.Admin.CreateProduct)

				r.Group(func(r chi.Router) {
					r.Use(MaxBodyMiddleware(cfg.MaxBodySize))

					r.Get("/orders", cfg.Orders.ListOrders)
					r.Patch("/orders/{id}/status", cfg.Orders.UpdateStatus)
					r.Get("/products", cfg.Admin.ListProducts)
					r.Patch("/products/{id}/availability", cfg.Admin.SetAvailability)
					r.Delete("/products/{id}", cfg.Admin.DeleteProduct)
					r.Get("/stats", cfg.Admin.Stats)
				})
			})
		})
	})

	return r
}
