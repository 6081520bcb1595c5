package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/railbooking/config"
	"github.com/Domenick1991/railbooking/internal/kafka"
	"github.com/Domenick1991/railbooking/internal/notify"
	"github.com/Domenick1991/railbooking/internal/rabbitmq"
	"go.uber.org/zap"
)

// Producer is a background component that emits events, such as the expiry sweeper.
type Producer interface {
	Stop()
}

// Notifier is the outbound event path. Dispatcher is nil when the transport is "none".
type Notifier struct {
	Dispatcher *notify.Dispatcher
	closePub   func() error
	producers  []Producer
}

// NewNotifier builds the event dispatcher over the configured broker.
func NewNotifier(ctx context.Context, cfg *config.Config, log *zap.Logger) *Notifier {
	var (
		pub     notify.Publisher
		topic   string
		closeFn func() error
	)
	switch cfg.Notifier.Transport {
	case "kafka":
		p := kafka.NewProducer(cfg.Kafka.Brokers, log)
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := p.CheckConnection(checkCtx); err != nil {
			log.Warn("kafka unreachable at startup, events will be retried", zap.Error(err))
		}
		cancel()
		pub, topic, closeFn = p, cfg.Kafka.NotificationsTopic, p.Close
	case "amqp":
		p := rabbitmq.NewPublisher(cfg.AMQP.URL, log)
		pub, topic, closeFn = p, cfg.AMQP.Queue, p.Close
	default:
		log.Info("reservation notifications disabled")
		return &Notifier{}
	}

	d := notify.NewDispatcher(pub, notify.Config{
		Topic:          topic,
		QueueSize:      cfg.Notifier.QueueSize,
		Workers:        cfg.Notifier.Workers,
		PublishTimeout: cfg.Notifier.PublishTimeout,
		MaxRetries:     cfg.Notifier.MaxRetries,
	}, log)
	log.Info("reservation notifications enabled", zap.String("transport", cfg.Notifier.Transport), zap.String("topic", topic))
	return &Notifier{Dispatcher: d, closePub: closeFn}
}

// Attach registers p to be stopped by Close before the queue is drained.
func (n *Notifier) Attach(p Producer) {
	n.producers = append(n.producers, p)
}

// Close stops attached producers so their last events are queued, drains
// queued events, then closes the broker connection.
func (n *Notifier) Close(ctx context.Context) error {
	for _, p := range n.producers {
		p.Stop()
	}
	n.producers = nil
	if n.Dispatcher == nil {
		return nil
	}
	return errors.Join(n.Dispatcher.Close(ctx), n.closePub())
}
