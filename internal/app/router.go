package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stockyard-wms/stockyard/internal/creditnotes"
	"github.com/stockyard-wms/stockyard/internal/masterdata/packaging"
	"github.com/stockyard-wms/stockyard/internal/masterdata/products"
	"github.com/stockyard-wms/stockyard/internal/masterdata/suppliers"
	"github.com/stockyard-wms/stockyard/internal/masterdata/units"
	"github.com/stockyard-wms/stockyard/internal/masterdata/warehouses"
	"github.com/stockyard-wms/stockyard/internal/observability"
	"github.com/stockyard-wms/stockyard/internal/orders"
	"github.com/stockyard-wms/stockyard/internal/receiving"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	UnitsHandler       *units.Handler
	PackagingHandler   *packaging.Handler
	ProductsHandler    *products.Handler
	WarehousesHandler  *warehouses.Handler
	SuppliersHandler   *suppliers.Handler
	OrdersHandler      *orders.Handler
	CreditNotesHandler *creditnotes.Handler
	ReceivingHandler   *receiving.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
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

	r.Route("/api/v1", func(r chi.Router) {
		params.UnitsHandler.MountRoutes(r)
		params.PackagingHandler.MountRoutes(r)
		params.ProductsHandler.MountRoutes(r)
		params.WarehousesHandler.MountRoutes(r)
		params.SuppliersHandler.MountRoutes(r)
		params.OrdersHandler.MountRoutes(r)
		params.CreditNotesHandler.MountRoutes(r)
		params.ReceivingHandler.MountRoutes(r)
	})

	return r
}
