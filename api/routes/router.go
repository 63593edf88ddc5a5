package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/localstore-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/localstore-backend/api/controllers/cart"
	"github.com/angelmondragon/localstore-backend/api/middleware"
	"github.com/angelmondragon/localstore-backend/internal/cart"
	"github.com/angelmondragon/localstore-backend/internal/catalog"
	"github.com/angelmondragon/localstore-backend/pkg/config"
	"github.com/angelmondragon/localstore-backend/pkg/db"
	"github.com/angelmondragon/localstore-backend/pkg/logger"
	"github.com/angelmondragon/localstore-backend/pkg/redis"
)

// Dependencies are the collaborators the HTTP surface needs. Redis is
// optional; without it idempotency replay and rate limiting are disabled.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	Catalog     catalog.Service
	Cart        cart.Service
	TaxRate     decimal.Decimal
	MetricsPath string
	Gatherer    prometheus.Gatherer
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	checks := []controllers.ReadinessCheck{{Name: "db", Pinger: deps.DB}}
	var (
		idempotencyStore redis.IdempotencyStore
		limiter          middleware.FixedWindowLimiter
	)
	if deps.Redis != nil {
		checks = append(checks, controllers.ReadinessCheck{Name: "redis", Pinger: deps.Redis})
		idempotencyStore = deps.Redis
		limiter = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks...))
	})

	if deps.Gatherer != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	cartPolicy := middleware.NewRateLimitPolicy("cart", cfg.RateLimit.CartWindow, cfg.RateLimit.CartIPLimit)
	cartHandlers := cartcontrollers.Handlers{Service: deps.Cart, Products: deps.Catalog, TaxRate: deps.TaxRate, Logger: logg}

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Catalog, logg))
			r.Get("/categories", controllers.ProductCategories(deps.Catalog, logg))
			r.Get("/featured", controllers.FeaturedProducts(deps.Catalog, logg))
			r.Get("/{productId}", controllers.ProductDetail(deps.Catalog, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Idempotency(idempotencyStore, logg))
				r.Post("/", controllers.CreateProduct(deps.Catalog, logg))
				r.Put("/{productId}", controllers.UpdateProduct(deps.Catalog, logg))
				r.Delete("/{productId}", controllers.DeleteProduct(deps.Catalog, logg))
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.RateLimit(cartPolicy, limiter, logg))
			r.Get("/{sessionId}", cartHandlers.Fetch())

			r.Group(func(r chi.Router) {
				r.Use(middleware.Idempotency(idempotencyStore, logg))
				r.Post("/add", cartHandlers.AddItem())
				r.Put("/update", cartHandlers.UpdateItem())
				r.Delete("/remove", cartHandlers.RemoveItem())
				r.Delete("/clear/{sessionId}", cartHandlers.Clear())
			})
		})
	})

	return r
}
