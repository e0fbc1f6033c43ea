package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mekongcart/storefront-backend/api/controllers"
	"github.com/mekongcart/storefront-backend/api/middleware"
	checkoutsvc "github.com/mekongcart/storefront-backend/internal/checkout"
	"github.com/mekongcart/storefront-backend/internal/orders"
	"github.com/mekongcart/storefront-backend/internal/payments"
	"github.com/mekongcart/storefront-backend/pkg/config"
	"github.com/mekongcart/storefront-backend/pkg/db"
	"github.com/mekongcart/storefront-backend/pkg/logger"
	"github.com/mekongcart/storefront-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Registry   *prometheus.Registry
	Checkout   checkoutsvc.Service
	OrdersRepo orders.Repository
	Reconciler payments.Reconciler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", controllers.PaymentCallback(deps.Reconciler, deps.Redis, cfg.Checkout.CallbackDedupe, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Post("/", controllers.CreateOrder(deps.Checkout, logg))
		r.Get("/", controllers.ListOrders(deps.OrdersRepo, logg))
		r.Get("/{id}", controllers.GetOrder(deps.OrdersRepo, logg))
		r.Post("/{id}/payment", controllers.RetryPayment(deps.Checkout, logg))
	})

	return r
}
