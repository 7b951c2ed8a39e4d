package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dynamic-pricing/internal/cache"
	"dynamic-pricing/internal/config"
	"dynamic-pricing/internal/httpapi"
	"dynamic-pricing/internal/logging"
	"dynamic-pricing/internal/pricing"
	"dynamic-pricing/internal/service"
	"dynamic-pricing/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app")}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) openCache() (cache.DiscountCache, func()) {
	if a.Config.Redis.Addr == "" {
		return nil, nil
	}
	redisCache := cache.NewRedisCache(a.Config.Redis)
	closer := func() {
		if err := redisCache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	return redisCache, closer
}

func (a *App) newService(store *storage.Store, discounts cache.DiscountCache) (*service.Service, error) {
	engine, err := pricing.New(a.Config.Pricing, a.Logger)
	if err != nil {
		return nil, err
	}

	stores := service.Stores{
		Spends:      store,
		Txns:        store,
		Customers:   store,
		Adjustments: store,
		Referrals:   store,
	}
	return service.New(a.Config.Pricing, engine, stores, discounts, a.Logger), nil
}

// Serve runs the HTTP API until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn is required to serve")
	}
	defer closeStore()

	discounts, closeCache := a.openCache()
	if discounts == nil {
		a.Logger.Warn().Msg("redis.addr not configured; discount caching disabled")
	}
	if closeCache != nil {
		defer closeCache()
	}

	svc, err := a.newService(store, discounts)
	if err != nil {
		return err
	}
	if err := svc.RestoreMultiplier(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("failed to restore multiplier state; starting neutral")
	}

	server := &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      httpapi.NewRouter(httpapi.NewHandler(svc)),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	a.Logger.Info().Str("addr", a.Config.Server.Addr).Msg("pricing API listening")

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error().Err(err).Msg("graceful shutdown failed")
			return err
		}
	}

	a.Logger.Info().Msg("pricing API stopped")
	return nil
}

// ExportOptions hold parameters for exporting multiplier history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SeedOptions configure synthetic data generation.
type SeedOptions struct {
	Customers int
	Days      int
}
