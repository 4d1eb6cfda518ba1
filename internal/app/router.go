package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/loom-erp/loom-erp/internal/account"
	"github.com/loom-erp/loom-erp/internal/auth"
	"github.com/loom-erp/loom-erp/internal/catalog"
	"github.com/loom-erp/loom-erp/internal/ledger"
	"github.com/loom-erp/loom-erp/internal/observability"
	"github.com/loom-erp/loom-erp/internal/purchase"
	"github.com/loom-erp/loom-erp/internal/voucher"
	"github.com/loom-erp/loom-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AuthHandler     *auth.Handler
	CatalogHandler  *catalog.Handler
	LedgerHandler   *ledger.Handler
	PurchaseHandler *purchase.Handler
	VoucherHandler  *voucher.Handler
	AccountHandler  *account.Handler
	JobsHandler     *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with the API surface.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(params.AuthHandler.Middleware)
			params.CatalogHandler.MountRoutes(r)
			params.LedgerHandler.MountRoutes(r)
			params.PurchaseHandler.MountRoutes(r)
			params.VoucherHandler.MountRoutes(r)
			params.AccountHandler.MountRoutes(r)
			if params.JobsHandler != nil {
				params.JobsHandler.MountRoutes(r)
			}
		})
	})

	return r
}
