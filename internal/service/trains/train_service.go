package trains

import (
	"context"
	"strings"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/Domenick1991/railbooking/internal/repository"
	"go.uber.org/zap"
)

type UseCase interface {
	List(ctx context.Context) ([]domain.TrainRun, error)
	GetByID(ctx context.Context, id int64) (*domain.TrainRun, error)
	Search(ctx context.Context, source, destination string) ([]domain.TrainRun, error)
	ByNumber(ctx context.Context, number string) ([]domain.TrainRun, error)
}

// Cache holds the train-run listing. Entries go stale for at most their TTL.
type Cache interface {
	GetTrainRuns(ctx context.Context) ([]domain.TrainRun, error)
	SetTrainRuns(ctx context.Context, runs []domain.TrainRun) error
}

type Service struct {
	repo  repository.TrainRunRepository
	cache Cache
	log   *zap.Logger
}

// NewService accepts a nil cache.
func NewService(repo repository.TrainRunRepository, cache Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, cache: cache, log: log}
}

func (s *Service) List(ctx context.Context) ([]domain.TrainRun, error) {
	if s.cache != nil {
		cached, err := s.cache.GetTrainRuns(ctx)
		if err != nil {
			s.log.Warn("train run cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	runs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetTrainRuns(ctx, runs); err != nil {
			s.log.Warn("train run cache write failed", zap.Error(err))
		}
	}
	return runs, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*domain.TrainRun, error) {
	if id <= 0 {
		return nil, domain.NewValidationError("id", "must be positive")
	}
	return s.repo.GetByID(ctx, id)
}

// Search finds runs on a route. Station names match case-insensitively.
func (s *Service) Search(ctx context.Context, source, destination string) ([]domain.TrainRun, error) {
	source, destination = strings.TrimSpace(source), strings.TrimSpace(destination)
	if source == "" {
		return nil, domain.NewValidationError("source", "is required")
	}
	if destination == "" {
		return nil, domain.NewValidationError("destination", "is required")
	}
	return s.repo.Search(ctx, source, destination)
}

func (s *Service) ByNumber(ctx context.Context, number string) ([]domain.TrainRun, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, domain.NewValidationError("number", "is required")
	}
	return s.repo.SearchByNumber(ctx, number)
}

var _ UseCase = (*Service)(nil)
