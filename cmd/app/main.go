package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/railbooking/api"
	"github.com/Domenick1991/railbooking/config"
	reservationsapi "github.com/Domenick1991/railbooking/internal/api/reservations_service_api"
	"github.com/Domenick1991/railbooking/internal/bootstrap"
	"github.com/Domenick1991/railbooking/internal/cache"
	"github.com/Domenick1991/railbooking/internal/clock"
	"github.com/Domenick1991/railbooking/internal/keylock"
	"github.com/Domenick1991/railbooking/internal/logger"
	gateway "github.com/Domenick1991/railbooking/internal/payment"
	"github.com/Domenick1991/railbooking/internal/service/payment"
	"github.com/Domenick1991/railbooking/internal/service/reservation"
	"github.com/Domenick1991/railbooking/internal/service/trains"
	"github.com/Domenick1991/railbooking/internal/sweeper"
	"github.com/Domenick1991/railbooking/internal/telemetry"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(cfg.Tracing, zl)

	store, err := bootstrap.OpenStore(ctx, cfg.Database, zl)
	if err != nil {
		zl.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	var (
		locker     reservation.Locker = keylock.New()
		trainCache trains.Cache
	)
	if cfg.Redis.Enabled {
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Redis.CacheTTL)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			zl.Fatal("connect redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		locker, trainCache = redisCache, redisCache
		zl.Info("redis enabled for train run cache and reservation locks", zap.String("addr", cfg.Redis.Addr))
	}

	notifier := bootstrap.NewNotifier(ctx, cfg, zl)

	opts := []reservation.Option{
		reservation.WithLocker(locker),
		reservation.WithLogger(zl),
		reservation.WithRefundPercent(cfg.Booking.RefundPercent),
	}
	if notifier.Dispatcher != nil {
		opts = append(opts, reservation.WithNotifier(notifier.Dispatcher))
	}
	reservationService := reservation.NewService(store.Tx, store.TrainRuns, store.Reservations, store.Cancellations, opts...)

	paymentService := payment.NewService(
		reservationService,
		store.Payments,
		gateway.NewMockGateway(gateway.WithLatency(cfg.Payment.MinLatency, cfg.Payment.MaxLatency)),
		payment.WithTimeout(cfg.Payment.Timeout),
		payment.WithLogger(zl),
	)
	trainService := trains.NewService(store.TrainRuns, trainCache, zl)

	// An in-memory store is invisible to the worker process, so it is always swept here.
	if cfg.Worker.SweepInApp || !store.Persistent {
		sw := sweeper.New(store.Reservations, reservationService, sweeper.Config{
			HoldTimeout: cfg.Booking.HoldTimeout,
			Interval:    cfg.Worker.SweepInterval,
			BatchSize:   cfg.Worker.SweepBatchSize,
			Concurrency: cfg.Worker.SweepConcurrency,
		}, clock.Real{}, zl)
		if err := sw.Start(ctx); err != nil {
			zl.Fatal("start sweeper", zap.Error(err))
		}
		notifier.Attach(sw)
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Handlers{
		Reservations: api.NewReservationHandler(reservationService),
		Payments:     api.NewPaymentHandler(paymentService),
		Trains:       api.NewTrainHandler(trainService),
	}, api.RouterConfig{
		JWTSecret:      cfg.Auth.JWTSecret,
		CallbackSecret: cfg.Payment.CallbackSecret,
	}, zl)

	grpcService := reservationsapi.NewServer(reservationService, paymentService, trainService, zl)
	servers := bootstrap.NewServers(cfg, router, grpcService, zl)

	zl.Info("railbooking starting", zap.String("http", cfg.HTTP.Address), zap.String("grpc", cfg.GRPC.Address))
	if err := servers.Run(ctx, cfg.GRPC.Address, cfg.HTTP.ShutdownTimeout); err != nil {
		zl.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := notifier.Close(shutdownCtx); err != nil {
		zl.Warn("notifier did not drain", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zl.Warn("tracer provider shutdown", zap.Error(err))
	}
	zl.Info("railbooking stopped")
}
