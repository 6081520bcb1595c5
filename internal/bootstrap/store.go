package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/railbooking/config"
	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/Domenick1991/railbooking/internal/repository"
	"github.com/Domenick1991/railbooking/internal/repository/memory"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store groups the repositories one process works against.
type Store struct {
	Tx            repository.Transactor
	TrainRuns     repository.TrainRunRepository
	Reservations  repository.ReservationRepository
	Cancellations repository.CancellationRepository
	Payments      repository.PaymentRepository
	Persistent    bool

	close func()
}

func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore connects to PostgreSQL, or builds a seeded in-memory store when
// the driver is "memory".
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	if cfg.Driver == "memory" {
		log.Warn("using in-memory store, data is lost on exit")
		return NewMemoryStore(SampleTrainRuns()...), nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Info("connected to postgres", zap.String("host", cfg.Host), zap.String("database", cfg.Name))

	return &Store{
		Tx:            repository.NewTransactor(pool),
		TrainRuns:     repository.NewTrainRunRepository(pool),
		Reservations:  repository.NewReservationRepository(pool),
		Cancellations: repository.NewCancellationRepository(pool),
		Payments:      repository.NewPaymentRepository(pool),
		Persistent:    true,
		close:         pool.Close,
	}, nil
}

func NewMemoryStore(runs ...domain.TrainRun) *Store {
	reservations := memory.NewReservations()
	return &Store{
		Tx:            memory.NewTransactor(),
		TrainRuns:     memory.NewTrainRuns(runs...),
		Reservations:  reservations,
		Cancellations: memory.NewCancellations(),
		Payments:      memory.NewPayments(reservations),
	}
}

// SampleTrainRuns mirrors the rows seeded by migrations/0002_seed.up.sql.
func SampleTrainRuns() []domain.TrainRun {
	return []domain.TrainRun{
		{ID: 1, Number: "12951", Name: "Mumbai Rajdhani", Source: "NDLS", Destination: "MMCT", DepartureTime: "16:55", ArrivalTime: "08:35", Class: "3A", TotalSeats: 72, AvailableSeats: 72, Fare: domain.Rupees(2450)},
		{ID: 2, Number: "12951", Name: "Mumbai Rajdhani", Source: "NDLS", Destination: "MMCT", DepartureTime: "16:55", ArrivalTime: "08:35", Class: "2A", TotalSeats: 48, AvailableSeats: 48, Fare: domain.Rupees(3350)},
		{ID: 3, Number: "12002", Name: "Bhopal Shatabdi", Source: "NDLS", Destination: "RKMP", DepartureTime: "06:00", ArrivalTime: "14:25", Class: "CC", TotalSeats: 78, AvailableSeats: 78, Fare: domain.Rupees(1235)},
		{ID: 4, Number: "12627", Name: "Karnataka Express", Source: "NDLS", Destination: "SBC", DepartureTime: "21:15", ArrivalTime: "06:40", Class: "SL", TotalSeats: 80, AvailableSeats: 80, Fare: domain.Rupees(865)},
		{ID: 5, Number: "22691", Name: "Bengaluru Rajdhani", Source: "SBC", Destination: "NZM", DepartureTime: "20:00", ArrivalTime: "05:55", Class: "1A", TotalSeats: 24, AvailableSeats: 24, Fare: domain.Rupees(7810)},
	}
}
