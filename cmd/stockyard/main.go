package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/stockyard-wms/stockyard/internal/app"
	"github.com/stockyard-wms/stockyard/internal/creditnotes"
	"github.com/stockyard-wms/stockyard/internal/masterdata/packaging"
	"github.com/stockyard-wms/stockyard/internal/masterdata/products"
	"github.com/stockyard-wms/stockyard/internal/masterdata/suppliers"
	"github.com/stockyard-wms/stockyard/internal/masterdata/units"
	"github.com/stockyard-wms/stockyard/internal/masterdata/warehouses"
	"github.com/stockyard-wms/stockyard/internal/observability"
	"github.com/stockyard-wms/stockyard/internal/orders"
	"github.com/stockyard-wms/stockyard/internal/platform/cache"
	"github.com/stockyard-wms/stockyard/internal/platform/db"
	"github.com/stockyard-wms/stockyard/internal/receiving"
	internalShared "github.com/stockyard-wms/stockyard/internal/shared"
)

// Thin adapters bridging service APIs onto the narrow ports the order
// and receiving services consume.

type supplierDirectory struct{ svc *suppliers.Service }

func (d supplierDirectory) SupplierExists(ctx context.Context, code string) (bool, error) {
	_, err := d.svc.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, internalShared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type productCatalog struct{ svc *products.Service }

func (c productCatalog) ProductExists(ctx context.Context, code string) (bool, error) {
	_, err := c.svc.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, internalShared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c productCatalog) GetProduct(ctx context.Context, code string) (products.Product, error) {
	return c.svc.GetByCode(ctx, code)
}

type orderDirectory struct{ svc *orders.Service }

func (d orderDirectory) GetPurchaseOrder(ctx context.Context, code string) (orders.PurchaseOrder, error) {
	return d.svc.Get(ctx, code)
}

type packageCatalog struct{ svc *packaging.Service }

func (c packageCatalog) GetPackage(ctx context.Context, name string) (packaging.PackageType, error) {
	return c.svc.GetByName(ctx, name)
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, availability cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	validate := validator.New()
	auditLogger := internalShared.NewAuditLogger(pool)

	unitsService := units.NewService(units.NewRepository(pool))
	unitsHandler := units.NewHandler(logger, unitsService, validate)

	packagingService := packaging.NewService(packaging.NewRepository(pool))
	packagingHandler := packaging.NewHandler(logger, packagingService, unitsService, validate)

	productsService := products.NewService(products.NewRepository(pool))
	productsHandler := products.NewHandler(logger, productsService, unitsService, validate)

	warehousesService := warehouses.NewService(warehouses.NewRepository(pool))
	warehousesHandler := warehouses.NewHandler(logger, warehousesService, validate)

	suppliersService := suppliers.NewService(suppliers.NewRepository(pool))
	suppliersHandler := suppliers.NewHandler(logger, suppliersService, validate)

	ordersService := orders.NewService(
		orders.NewRepository(pool),
		supplierDirectory{svc: suppliersService},
		productCatalog{svc: productsService},
		auditLogger,
	)
	ordersHandler := orders.NewHandler(logger, ordersService, validate)

	creditNotesService := creditnotes.NewService(creditnotes.NewRepository(pool))
	creditNotesHandler := creditnotes.NewHandler(logger, creditNotesService)

	availabilityCache := receiving.NewAvailabilityCache(redisClient)
	receivingService := receiving.NewService(
		receiving.NewRepository(pool),
		productCatalog{svc: productsService},
		warehousesService,
		orderDirectory{svc: ordersService},
		packageCatalog{svc: packagingService},
		creditNotesService,
		auditLogger,
		availabilityCache,
	)
	receivingHandler := receiving.NewHandler(logger, receivingService, validate)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		UnitsHandler:       unitsHandler,
		PackagingHandler:   packagingHandler,
		ProductsHandler:    productsHandler,
		WarehousesHandler:  warehousesHandler,
		SuppliersHandler:   suppliersHandler,
		OrdersHandler:      ordersHandler,
		CreditNotesHandler: creditNotesHandler,
		ReceivingHandler:   receivingHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
