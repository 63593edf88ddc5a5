package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/localstore-backend/api/routes"
	"github.com/angelmondragon/localstore-backend/internal/cart"
	"github.com/angelmondragon/localstore-backend/internal/catalog"
	"github.com/angelmondragon/localstore-backend/internal/cron"
	"github.com/angelmondragon/localstore-backend/pkg/config"
	"github.com/angelmondragon/localstore-backend/pkg/db"
	"github.com/angelmondragon/localstore-backend/pkg/instance"
	"github.com/angelmondragon/localstore-backend/pkg/logger"
	"github.com/angelmondragon/localstore-backend/pkg/metrics"
	"github.com/angelmondragon/localstore-backend/pkg/migrate"
	"github.com/angelmondragon/localstore-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() || cfg.Cart.NeedsRedis() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), dbClient, cfg.Catalog)
	if err != nil {
		return err
	}

	store, err := newCartStore(cfg.Cart, dbClient, redisClient)
	if err != nil {
		return err
	}
	locker, err := newCartLocker(cfg.Cart, redisClient, logg)
	if err != nil {
		return err
	}
	taxRate, err := cfg.Cart.TaxRate()
	if err != nil {
		return err
	}

	cartMetrics := metrics.NewCartMetrics(prometheus.DefaultRegisterer)
	cartService, err := cart.NewService(store, catalogService, locker, cart.Options{
		TTL:     cfg.Cart.TTL,
		Metrics: cartMetrics,
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"cart_store": cfg.Cart.Store,
		"cart_lock":  cfg.Cart.Lock,
		"instance":   instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Catalog:  catalogService,
			Cart:     cartService,
			TaxRate:  taxRate,
			Gatherer: prometheus.DefaultGatherer,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var reaper *cron.Service
	if sweeper, ok := inProcessSweeper(cfg.Cart, store); ok {
		reaper, err = newReaper(cfg, logg, sweeper, cartMetrics, prometheus.DefaultRegisterer)
		if err != nil {
			return err
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(groupCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(ctx, "api server shutting down")
		return server.Shutdown(shutdownCtx)
	})
	if reaper != nil {
		group.Go(func() error {
			if err := reaper.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return group.Wait()
}

// newReaper runs the cart-expiry job inside the api process for stores no
// other process can reach.
func newReaper(cfg *config.Config, logg *logger.Logger, sweeper cron.CartSweeper, cartMetrics *metrics.CartMetrics, reg prometheus.Registerer) (*cron.Service, error) {
	job, err := cron.NewCartExpiryJob(cron.CartExpiryJobParams{
		Logger:   logg,
		Sweepers: []cron.CartSweeper{sweeper},
		Metrics:  cartMetrics,
	})
	if err != nil {
		return nil, err
	}
	registry, err := cron.NewRegistry(job)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     &cron.LocalLock{},
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Cron.Interval,
	})
}
