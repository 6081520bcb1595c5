package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/Domenick1991/railbooking/internal/repository"
)

type runState struct {
	mu  sync.Mutex
	run domain.TrainRun
}

// TrainRuns is a seat inventory with one mutex per run.
type TrainRuns struct {
	mu   sync.RWMutex
	runs map[int64]*runState
}

func NewTrainRuns(runs ...domain.TrainRun) *TrainRuns {
	t := &TrainRuns{runs: make(map[int64]*runState)}
	for _, r := range runs {
		t.Put(r)
	}
	return t
}

// Put adds or replaces a run.
func (t *TrainRuns) Put(r domain.TrainRun) {
	t.mu.Lock()
	t.runs[r.ID] = &runState{run: r}
	t.mu.Unlock()
}

func (t *TrainRuns) state(id int64) (*runState, error) {
	t.mu.RLock()
	s, ok := t.runs[id]
	t.mu.RUnlock()
	if !ok {
		return nil, domain.ErrTrainRunNotFound
	}
	return s, nil
}

func (t *TrainRuns) List(_ context.Context) ([]domain.TrainRun, error) {
	t.mu.RLock()
	states := make([]*runState, 0, len(t.runs))
	for _, s := range t.runs {
		states = append(states, s)
	}
	t.mu.RUnlock()

	out := make([]domain.TrainRun, 0, len(states))
	for _, s := range states {
		s.mu.Lock()
		out = append(out, s.run)
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepartureTime != out[j].DepartureTime {
			return out[i].DepartureTime < out[j].DepartureTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *TrainRuns) Search(ctx context.Context, source, destination string) ([]domain.TrainRun, error) {
	all, err := t.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TrainRun, 0)
	for _, r := range all {
		if strings.EqualFold(r.Source, source) && strings.EqualFold(r.Destination, destination) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *TrainRuns) SearchByNumber(ctx context.Context, number string) ([]domain.TrainRun, error) {
	all, err := t.List(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(number)
	out := make([]domain.TrainRun, 0)
	for _, r := range all {
		if strings.Contains(strings.ToLower(r.Number), needle) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *TrainRuns) GetByID(_ context.Context, id int64) (*domain.TrainRun, error) {
	s, err := t.state(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	return &r, nil
}

func (t *TrainRuns) Reserve(ctx context.Context, id int64, count int) error {
	if count <= 0 {
		return domain.NewValidationError("count", "must be positive")
	}
	s, err := t.state(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run.AvailableSeats < count {
		return domain.ErrInsufficientSeats
	}
	s.run.AvailableSeats -= count
	onRollback(ctx, func() {
		s.mu.Lock()
		s.run.AvailableSeats += count
		s.mu.Unlock()
	})
	return nil
}

func (t *TrainRuns) Release(ctx context.Context, id int64, count int) error {
	if count <= 0 {
		return domain.NewValidationError("count", "must be positive")
	}
	s, err := t.state(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run.AvailableSeats+count > s.run.TotalSeats {
		return fmt.Errorf("release %d seats on run %d with %d/%d available: %w",
			count, id, s.run.AvailableSeats, s.run.TotalSeats, domain.ErrInventoryInconsistency)
	}
	s.run.AvailableSeats += count
	onRollback(ctx, func() {
		s.mu.Lock()
		s.run.AvailableSeats -= count
		s.mu.Unlock()
	})
	return nil
}

var _ repository.TrainRunRepository = (*TrainRuns)(nil)
