package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-payouts/api/controllers"
	holidaycontrollers "github.com/angelmondragon/packfinderz-payouts/api/controllers/holidays"
	ledgercontrollers "github.com/angelmondragon/packfinderz-payouts/api/controllers/ledger"
	payoutcontrollers "github.com/angelmondragon/packfinderz-payouts/api/controllers/payouts"
	revenuecontrollers "github.com/angelmondragon/packfinderz-payouts/api/controllers/revenue"
	webhookcontrollers "github.com/angelmondragon/packfinderz-payouts/api/controllers/webhooks"
	"github.com/angelmondragon/packfinderz-payouts/api/middleware"
	pkgAuth "github.com/angelmondragon/packfinderz-payouts/pkg/auth"
	"github.com/angelmondragon/packfinderz-payouts/pkg/config"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
)

// Cache is the Redis surface the router needs for idempotency and readiness.
type Cache interface {
	middleware.IdempotencyStore
	controllers.Pinger
}

// Params collects everything NewRouter wires into handlers.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Cache    Cache
	Gatherer prometheus.Gatherer
	Now      func() time.Time

	Payouts   payoutcontrollers.Service
	Ledger    ledgercontrollers.Service
	Revenue   revenuecontrollers.Service
	Holidays  holidaycontrollers.Lister
	Callbacks webhookcontrollers.GatewayCallbackService
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger
	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    p.DB,
			"redis": p.Cache,
		}))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(p.Callbacks, cfg.Gateway.WebhookSecret, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, pkgAuth.RoleAdmin))
		r.Use(middleware.Idempotency(p.Cache, logg))

		r.Route("/payouts", func(r chi.Router) {
			r.Get("/", payoutcontrollers.List(p.Payouts, logg))
			r.Post("/", payoutcontrollers.Create(p.Payouts, logg))
			r.Post("/calculate", payoutcontrollers.Calculate(p.Payouts, logg))
			r.Route("/{payoutId}", func(r chi.Router) {
				r.Get("/", payoutcontrollers.Get(p.Payouts, logg))
				r.Delete("/", payoutcontrollers.Archive(p.Payouts, logg))
				r.Get("/tds-certificate", payoutcontrollers.TDSCertificate(p.Payouts, logg))
				r.Post("/process", payoutcontrollers.Process(p.Payouts, logg))
				r.Post("/complete", payoutcontrollers.Complete(p.Payouts, logg))
				r.Post("/fail", payoutcontrollers.Fail(p.Payouts, logg))
				r.Post("/cancel", payoutcontrollers.Cancel(p.Payouts, logg))
				r.Post("/release", payoutcontrollers.Release(p.Payouts, logg))
			})
		})

		r.Route("/vendors/{vendorId}/wallet", func(r chi.Router) {
			r.Get("/", ledgercontrollers.Wallet(p.Ledger, logg))
			r.Get("/transactions", ledgercontrollers.Transactions(p.Ledger, logg))
			r.Get("/verify", ledgercontrollers.Verify(p.Ledger, logg))
			r.Post("/adjustments", ledgercontrollers.Adjust(p.Ledger, logg))
		})

		r.Route("/revenue", func(r chi.Router) {
			r.Get("/", revenuecontrollers.List(p.Revenue, logg))
			r.Post("/", revenuecontrollers.Create(p.Revenue, logg))
			r.Get("/summary", revenuecontrollers.Summary(p.Revenue, logg, p.Now))
		})

		r.Get("/holidays", holidaycontrollers.List(p.Holidays, logg, p.Now))
	})

	r.Route("/api/internal/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, pkgAuth.RoleSystem))

		r.Post("/ledger/order-payments", ledgercontrollers.RecordOrderPayment(p.Ledger, logg))
		r.Post("/ledger/refunds", ledgercontrollers.RecordRefund(p.Ledger, logg))
	})

	return r
}
