// Package sweeper cancels reservations whose payment window has lapsed.
package sweeper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Domenick1991/railbooking/internal/clock"
	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/Domenick1991/railbooking/internal/service/reservation"
	"github.com/Domenick1991/railbooking/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	// HoldTimeout is how long a reservation may stay unpaid.
	HoldTimeout time.Duration
	// Interval between sweeps.
	Interval    time.Duration
	BatchSize   int
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		HoldTimeout: 5 * time.Minute,
		Interval:    time.Minute,
		BatchSize:   100,
		Concurrency: 4,
	}
}

// PendingLister is the store query the sweeper needs.
type PendingLister interface {
	ListPendingBefore(ctx context.Context, cutoff time.Time, after domain.PendingCursor, limit int) ([]domain.Reservation, error)
}

type Canceller interface {
	Cancel(ctx context.Context, pnr, reason string, by reservation.Initiator) (*domain.Cancellation, error)
}

type Stats struct {
	Running        bool      `json:"running"`
	Sweeps         int64     `json:"sweeps"`
	Expired        int64     `json:"expired"`
	AlreadySettled int64     `json:"already_settled"`
	Failures       int64     `json:"failures"`
	LastSweep      time.Time `json:"last_sweep"`
}

type Sweeper struct {
	store     PendingLister
	lifecycle Canceller
	cfg       Config
	clock     clock.Clock
	log       *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	sweeps    atomic.Int64
	expired   atomic.Int64
	settled   atomic.Int64
	failures  atomic.Int64
	lastSweep atomic.Int64
}

func New(store PendingLister, lifecycle Canceller, cfg Config, c clock.Clock, log *zap.Logger) *Sweeper {
	def := DefaultConfig()
	if cfg.HoldTimeout <= 0 {
		cfg.HoldTimeout = def.HoldTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if c == nil {
		c = clock.Real{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{store: store, lifecycle: lifecycle, cfg: cfg, clock: c, log: log}
}

// SweepOnce cancels expired reservations and returns how many it cancelled.
// It works one batch at a time. When every hold in a batch refuses to cancel,
// it pages past them so newer expired holds are not starved.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "sweeper.sweep_once")
	defer span.End()

	now := s.clock.Now()
	s.sweeps.Add(1)
	s.lastSweep.Store(now.UnixNano())
	cutoff := now.Add(-s.cfg.HoldTimeout)

	var (
		after     domain.PendingCursor
		cancelled int
		batches   int
	)
	for {
		expired, err := s.store.ListPendingBefore(ctx, cutoff, after, s.cfg.BatchSize)
		if err != nil {
			s.log.Error("failed to list expired reservations", zap.Error(err))
			telemetry.Fail(span, err)
			return cancelled, err
		}
		if len(expired) == 0 {
			break
		}
		batches++
		s.log.Info("expiring unpaid reservations", zap.Int("count", len(expired)))

		done, settled := s.expire(ctx, expired)
		cancelled += done
		if done+settled > 0 || len(expired) < s.cfg.BatchSize || ctx.Err() != nil {
			break
		}
		after = domain.CursorAt(&expired[len(expired)-1])
		s.log.Warn("no reservation in batch could be expired, paging past it",
			zap.String("after_pnr", after.PNR), zap.Time("after_booked_at", after.BookedAt))
	}
	span.SetAttributes(attribute.Int("sweep.expired", cancelled), attribute.Int("sweep.batches", batches))
	return cancelled, nil
}

// expire cancels one batch and reports how many were cancelled and how many
// had already left PENDING_PAYMENT.
func (s *Sweeper) expire(ctx context.Context, batch []domain.Reservation) (int, int) {
	var cancelled, settled atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, r := range batch {
		pnr := r.PNR
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			_, err := s.lifecycle.Cancel(gctx, pnr, reservation.ExpiryReason, reservation.BySystem())
			switch {
			case err == nil:
				cancelled.Add(1)
				s.expired.Add(1)
			case domain.IsBenignTransition(err):
				settled.Add(1)
				s.settled.Add(1)
				s.log.Debug("reservation settled before expiry", zap.String("pnr", pnr), zap.Error(err))
			case errors.Is(err, context.Canceled):
			default:
				s.failures.Add(1)
				s.log.Error("failed to expire reservation", zap.String("pnr", pnr), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(cancelled.Load()), int(settled.Load())
}

// Start runs sweeps every Interval until Stop or ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("sweeper already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	s.log.Info("expiry sweeper started",
		zap.Duration("interval", s.cfg.Interval), zap.Duration("hold_timeout", s.cfg.HoldTimeout))
	go s.run(ctx, s.done)
	return nil
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		// A stop request lets the current batch finish.
		_, _ = s.SweepOnce(context.WithoutCancel(ctx))
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.cfg.Interval):
		}
	}
}

// Stop ends the loop and waits for the in-flight batch to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Info("expiry sweeper stopped")
}

func (s *Sweeper) Stats() Stats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	st := Stats{
		Running:        running,
		Sweeps:         s.sweeps.Load(),
		Expired:        s.expired.Load(),
		AlreadySettled: s.settled.Load(),
		Failures:       s.failures.Load(),
	}
	if ns := s.lastSweep.Load(); ns != 0 {
		st.LastSweep = time.Unix(0, ns).UTC()
	}
	return st
}
