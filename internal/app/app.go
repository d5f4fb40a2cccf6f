package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HuyVanh/my-backend-api-movie/internal/config"
	"github.com/HuyVanh/my-backend-api-movie/internal/payment"
	"github.com/HuyVanh/my-backend-api-movie/internal/postgres"
	redisx "github.com/HuyVanh/my-backend-api-movie/internal/redis"
	"github.com/HuyVanh/my-backend-api-movie/internal/repository/memory"
	postgresrepo "github.com/HuyVanh/my-backend-api-movie/internal/repository/postgres"
	redisrepo "github.com/HuyVanh/my-backend-api-movie/internal/repository/redis"
	"github.com/HuyVanh/my-backend-api-movie/internal/service"
	"github.com/HuyVanh/my-backend-api-movie/internal/service/booking"
	"github.com/HuyVanh/my-backend-api-movie/internal/service/reservation"
	"github.com/HuyVanh/my-backend-api-movie/internal/sweeper"
	httpgin "github.com/HuyVanh/my-backend-api-movie/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	sweeper    *sweeper.Sweeper
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	stores, err := newStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rdb, err := redisx.New(ctx, redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	cache := redisrepo.New(rdb)
	events := redisx.NewBookingPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, redisx.KeyRateLimit("holds"), 10, 1*time.Minute)
	idem := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	var gateway payment.Gateway
	if cfg.Stripe.SecretKey != "" {
		gateway, err = payment.NewStripeGateway(cfg.Stripe.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize stripe: %w", err)
		}
	} else {
		logger.Warn("no stripe key configured, using mock payment gateway")
		gateway = payment.NewMockGateway()
	}

	services := service.New(logger, stores, cache, events, limiter, service.Config{
		Reservation: reservation.Config{
			DefaultHoldTTL: cfg.Booking.DefaultHoldTTL,
			MinHoldTTL:     cfg.Booking.MinHoldTTL,
			MaxHoldTTL:     cfg.Booking.MaxHoldTTL,
		},
		Booking: booking.Config{
			PaymentWindow: cfg.Booking.PaymentWindow,
		},
	})

	router := httpgin.NewRouter(services, idem, gateway, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		sweeper: sweeper.New(logger, services.Reservation, cfg.Booking.SweepInterval),
	}, nil
}

func newStores(ctx context.Context, cfg *config.Config) (service.Stores, error) {
	if cfg.Storage.Driver == "memory" {
		return service.Stores{
			SeatStates: memory.NewSeatStateStore(),
			Tickets:    memory.NewTicketStore(),
			Showtimes:  memory.NewShowtimeStore(),
			Catalog:    memory.NewCatalogStore(),
		}, nil
	}

	pool, err := postgres.New(ctx, postgres.Config{DSN: cfg.Postgres.DSN()})
	if err != nil {
		return service.Stores{}, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	store := postgresrepo.NewStore(pool)

	return service.Stores{
		SeatStates: store.SeatStates(),
		Tickets:    store.Tickets(),
		Showtimes:  store.Showtimes(),
		Catalog:    store.Catalog(),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.logger.Info("sweeper started", "interval", a.cfg.Booking.SweepInterval)
		if err := a.sweeper.Run(gCtx); err != nil && err != context.Canceled {
			return fmt.Errorf("sweeper stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
