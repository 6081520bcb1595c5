package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	topics []string
	failN  int
	block  chan struct{}
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failN > 0 {
		p.failN--
		return errors.New("broker unavailable")
	}
	ev := payload.(Event)
	if key != ev.PNR {
		return errors.New("unexpected key")
	}
	p.events = append(p.events, ev)
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) published() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func sampleReservation() domain.Reservation {
	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	return domain.Reservation{
		PNR:            "0AB12C0001",
		UserID:         "user-9",
		TrainRunID:     3,
		JourneyDate:    time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC),
		PassengerCount: 2,
		TotalFare:      domain.Rupees(2000),
		Status:         domain.ReservationStatusConfirmed,
		BookedAt:       at,
		UpdatedAt:      at,
	}
}

func TestDispatcher_DeliversEvents(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, Config{Topic: "notifications", Workers: 1}, nil)

	r := sampleReservation()
	d.NotifyBookingConfirmed(context.Background(), r)
	r.Status = domain.ReservationStatusCancelled
	d.NotifyCancelled(context.Background(), r, domain.Cancellation{
		PNR: r.PNR, Reason: "payment timeout", RefundAmount: domain.Rupees(1600), CancelledBy: domain.InitiatorSystem,
	})
	require.NoError(t, d.Close(context.Background()))

	events := pub.published()
	require.Len(t, events, 2)
	assert.Equal(t, EventBookingConfirmed, events[0].Type)
	assert.Equal(t, EventCancelled, events[1].Type)
	assert.Equal(t, domain.Rupees(1600), events[1].RefundAmount)
	assert.Equal(t, "SYSTEM", events[1].CancelledBy)
	assert.Equal(t, []string{"notifications", "notifications"}, pub.topics)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	pub := &recordingPublisher{failN: 2}
	d := NewDispatcher(pub, Config{Workers: 1, MaxRetries: 3}, nil)
	d.backoff = time.Millisecond

	d.NotifyBookingConfirmed(context.Background(), sampleReservation())
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, pub.published(), 1)
}

func TestDispatcher_GivesUpAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	pub := &recordingPublisher{failN: 10}
	d := NewDispatcher(pub, Config{Workers: 1, MaxRetries: 2}, zap.New(core))
	d.backoff = time.Millisecond

	d.NotifyBookingConfirmed(context.Background(), sampleReservation())
	require.NoError(t, d.Close(context.Background()))

	assert.Empty(t, pub.published())
	assert.Equal(t, 1, logs.FilterMessage("failed to publish event").Len())
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	pub := &recordingPublisher{block: make(chan struct{})}
	d := NewDispatcher(pub, Config{Workers: 1, QueueSize: 1, PublishTimeout: time.Second}, zap.New(core))

	start := time.Now()
	for i := 0; i < 10; i++ {
		d.NotifyBookingConfirmed(context.Background(), sampleReservation())
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond, "notify must not block")
	assert.Positive(t, logs.FilterMessage("notification queue full, dropping event").Len())

	close(pub.block)
	require.NoError(t, d.Close(context.Background()))
	assert.LessOrEqual(t, len(pub.published()), 2)
}

func TestDispatcher_CloseIsIdempotentAndRejectsLateEvents(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, Config{}, zap.New(core))

	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))
	d.NotifyBookingConfirmed(context.Background(), sampleReservation())

	assert.Empty(t, pub.published())
	assert.Equal(t, 1, logs.FilterMessage("notifier closed, dropping event").Len())
}

func TestDispatcher_CloseHonoursDeadline(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	defer close(pub.block)
	d := NewDispatcher(pub, Config{Workers: 1, PublishTimeout: time.Minute}, nil)
	d.NotifyBookingConfirmed(context.Background(), sampleReservation())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
}
