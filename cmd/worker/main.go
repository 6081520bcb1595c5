package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/railbooking/config"
	"github.com/Domenick1991/railbooking/internal/bootstrap"
	"github.com/Domenick1991/railbooking/internal/cache"
	"github.com/Domenick1991/railbooking/internal/clock"
	"github.com/Domenick1991/railbooking/internal/email"
	"github.com/Domenick1991/railbooking/internal/kafka"
	"github.com/Domenick1991/railbooking/internal/logger"
	"github.com/Domenick1991/railbooking/internal/notify"
	"github.com/Domenick1991/railbooking/internal/rabbitmq"
	"github.com/Domenick1991/railbooking/internal/service/reservation"
	"github.com/Domenick1991/railbooking/internal/sweeper"
	"github.com/Domenick1991/railbooking/internal/telemetry"
	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
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

	g, gctx := errgroup.WithContext(ctx)
	sender := email.NewSender(email.LogMailer{Log: zl}, cfg.Worker.EmailDomain)
	handle := func(ctx context.Context, body []byte) error {
		var event notify.Event
		if err := json.Unmarshal(body, &event); err != nil {
			zl.Warn("skipping undecodable notification", zap.Error(err))
			return nil
		}
		return sender.Send(ctx, event)
	}

	switch cfg.Notifier.Transport {
	case "kafka":
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, zl)
		defer consumer.Close()
		g.Go(func() error {
			return consumer.Consume(gctx, func(ctx context.Context, msg kafkaGo.Message) error {
				return handle(ctx, msg.Value)
			})
		})
	case "amqp":
		consumer := rabbitmq.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, zl)
		g.Go(func() error {
			return consumer.Consume(gctx, handle)
		})
	default:
		zl.Info("notifications disabled, not consuming")
	}

	var notifier *bootstrap.Notifier
	if cfg.Worker.SweepInApp || cfg.Database.Driver == "memory" {
		zl.Info("expiry sweep runs in the API process")
	} else {
		store, err := bootstrap.OpenStore(ctx, cfg.Database, zl)
		if err != nil {
			zl.Fatal("open store", zap.Error(err))
		}
		defer store.Close()

		opts := []reservation.Option{
			reservation.WithLogger(zl),
			reservation.WithRefundPercent(cfg.Booking.RefundPercent),
		}
		if cfg.Redis.Enabled {
			redisCache := cache.NewRedisCache(cfg.Redis, cfg.Redis.CacheTTL)
			defer redisCache.Close()
			opts = append(opts, reservation.WithLocker(redisCache))
		} else {
			zl.Warn("redis disabled, sweeper locks are local to this process")
		}
		notifier = bootstrap.NewNotifier(ctx, cfg, zl)
		if notifier.Dispatcher != nil {
			opts = append(opts, reservation.WithNotifier(notifier.Dispatcher))
		}
		lifecycle := reservation.NewService(store.Tx, store.TrainRuns, store.Reservations, store.Cancellations, opts...)

		sw := sweeper.New(store.Reservations, lifecycle, sweeper.Config{
			HoldTimeout: cfg.Booking.HoldTimeout,
			Interval:    cfg.Worker.SweepInterval,
			BatchSize:   cfg.Worker.SweepBatchSize,
			Concurrency: cfg.Worker.SweepConcurrency,
		}, clock.Real{}, zl)
		if err := sw.Start(gctx); err != nil {
			zl.Fatal("start sweeper", zap.Error(err))
		}
		notifier.Attach(sw)
	}

	zl.Info("worker started", zap.String("transport", cfg.Notifier.Transport))
	<-gctx.Done()
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		zl.Error("consumer failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if notifier != nil {
		if err := notifier.Close(shutdownCtx); err != nil {
			zl.Warn("notifier did not drain", zap.Error(err))
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zl.Warn("tracer provider shutdown", zap.Error(err))
	}
	zl.Info("worker stopped")
}
