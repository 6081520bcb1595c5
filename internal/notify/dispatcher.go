// Package notify delivers reservation events to a message broker without
// blocking the lifecycle that produced them.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/railbooking/internal/domain"
	"go.uber.org/zap"
)

// Publisher is implemented by the Kafka producer and the AMQP publisher.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

type Config struct {
	Topic          string
	QueueSize      int
	Workers        int
	PublishTimeout time.Duration
	MaxRetries     int
}

func DefaultConfig() Config {
	return Config{
		Topic:          "reservation-notifications",
		QueueSize:      1024,
		Workers:        2,
		PublishTimeout: 5 * time.Second,
		MaxRetries:     3,
	}
}

// Dispatcher is a bounded asynchronous queue in front of a Publisher.
// A full queue drops the event with a warning.
type Dispatcher struct {
	pub     Publisher
	cfg     Config
	log     *zap.Logger
	backoff time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	wg     sync.WaitGroup
}

func NewDispatcher(pub Publisher, cfg Config, log *zap.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.Topic == "" {
		cfg.Topic = def.Topic
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		pub:     pub,
		cfg:     cfg,
		log:     log,
		backoff: 200 * time.Millisecond,
		queue:   make(chan Event, cfg.QueueSize),
	}
	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) NotifyBookingConfirmed(_ context.Context, r domain.Reservation) {
	d.enqueue(BookingConfirmedEvent(r))
}

func (d *Dispatcher) NotifyCancelled(_ context.Context, r domain.Reservation, c domain.Cancellation) {
	d.enqueue(CancelledEvent(r, c))
}

func (d *Dispatcher) enqueue(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("notifier closed, dropping event", zap.String("type", ev.Type), zap.String("pnr", ev.PNR))
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.log.Warn("notification queue full, dropping event",
			zap.String("type", ev.Type), zap.String("pnr", ev.PNR), zap.Int("queue_size", d.cfg.QueueSize))
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	var err error
	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PublishTimeout)
		err = d.pub.Publish(ctx, d.cfg.Topic, ev.PNR, ev)
		cancel()
		if err == nil {
			d.log.Debug("event published", zap.String("type", ev.Type), zap.String("pnr", ev.PNR))
			return
		}
		if attempt < d.cfg.MaxRetries {
			time.Sleep(time.Duration(attempt) * d.backoff)
		}
	}
	d.log.Error("failed to publish event",
		zap.String("type", ev.Type), zap.String("pnr", ev.PNR), zap.Int("attempts", d.cfg.MaxRetries), zap.Error(err))
}

// Close stops accepting events and waits for queued ones until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.log.Warn("notifier shutdown timed out", zap.Int("pending", len(d.queue)))
		return ctx.Err()
	}
}
