package trains

import (
	"context"
	"errors"
	"testing"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockTrainRunRepository struct {
	mock.Mock
}

func (m *MockTrainRunRepository) List(ctx context.Context) ([]domain.TrainRun, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.TrainRun), args.Error(1)
}

func (m *MockTrainRunRepository) GetByID(ctx context.Context, id int64) (*domain.TrainRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TrainRun), args.Error(1)
}

func (m *MockTrainRunRepository) Search(ctx context.Context, source, destination string) ([]domain.TrainRun, error) {
	args := m.Called(ctx, source, destination)
	return args.Get(0).([]domain.TrainRun), args.Error(1)
}

func (m *MockTrainRunRepository) SearchByNumber(ctx context.Context, number string) ([]domain.TrainRun, error) {
	args := m.Called(ctx, number)
	return args.Get(0).([]domain.TrainRun), args.Error(1)
}

func (m *MockTrainRunRepository) Reserve(ctx context.Context, id int64, count int) error {
	return m.Called(ctx, id, count).Error(0)
}

func (m *MockTrainRunRepository) Release(ctx context.Context, id int64, count int) error {
	return m.Called(ctx, id, count).Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetTrainRuns(ctx context.Context) ([]domain.TrainRun, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.TrainRun), args.Error(1)
}

func (m *MockCache) SetTrainRuns(ctx context.Context, runs []domain.TrainRun) error {
	return m.Called(ctx, runs).Error(0)
}

func sampleRuns() []domain.TrainRun {
	return []domain.TrainRun{
		{
			ID:             4,
			Number:         "12301",
			Name:           "Howrah Rajdhani",
			Source:         "HWH",
			Destination:    "NDLS",
			DepartureTime:  "16:50",
			ArrivalTime:    "10:00",
			Class:          "2A",
			TotalSeats:     54,
			AvailableSeats: 53,
			Fare:           domain.Rupees(2895),
		},
	}
}

func TestService_List_CacheMiss(t *testing.T) {
	repo := &MockTrainRunRepository{}
	cache := &MockCache{}
	svc := NewService(repo, cache, nil)
	ctx := context.Background()
	runs := sampleRuns()

	cache.On("GetTrainRuns", ctx).Return(([]domain.TrainRun)(nil), nil).Once()
	repo.On("List", ctx).Return(runs, nil).Once()
	cache.On("SetTrainRuns", ctx, runs).Return(nil).Once()

	result, err := svc.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, runs, result)
	cache.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestService_List_CacheHit(t *testing.T) {
	repo := &MockTrainRunRepository{}
	cache := &MockCache{}
	svc := NewService(repo, cache, nil)
	ctx := context.Background()
	runs := sampleRuns()

	cache.On("GetTrainRuns", ctx).Return(runs, nil).Once()

	result, err := svc.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, runs, result)
	repo.AssertNotCalled(t, "List", mock.Anything)
	cache.AssertNotCalled(t, "SetTrainRuns", mock.Anything, mock.Anything)
}

func TestService_List_CacheErrorFallsBackToRepository(t *testing.T) {
	repo := &MockTrainRunRepository{}
	cache := &MockCache{}
	svc := NewService(repo, cache, nil)
	ctx := context.Background()
	runs := sampleRuns()

	cache.On("GetTrainRuns", ctx).Return(([]domain.TrainRun)(nil), errors.New("cache error")).Once()
	repo.On("List", ctx).Return(runs, nil).Once()
	cache.On("SetTrainRuns", ctx, runs).Return(errors.New("cache error")).Once()

	result, err := svc.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, runs, result)
	cache.AssertExpectations(t)
}

func TestService_List_RepositoryError(t *testing.T) {
	repo := &MockTrainRunRepository{}
	cache := &MockCache{}
	svc := NewService(repo, cache, nil)
	ctx := context.Background()
	expectedErr := errors.New("database error")

	cache.On("GetTrainRuns", ctx).Return(([]domain.TrainRun)(nil), nil).Once()
	repo.On("List", ctx).Return([]domain.TrainRun{}, expectedErr).Once()

	result, err := svc.List(ctx)

	assert.Nil(t, result)
	assert.Equal(t, expectedErr, err)
	cache.AssertNotCalled(t, "SetTrainRuns", mock.Anything, mock.Anything)
}

func TestService_List_NoCache(t *testing.T) {
	repo := &MockTrainRunRepository{}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	runs := sampleRuns()

	repo.On("List", ctx).Return(runs, nil).Once()

	result, err := svc.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, runs, result)
	repo.AssertExpectations(t)
}

func TestService_GetByID(t *testing.T) {
	repo := &MockTrainRunRepository{}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	run := &sampleRuns()[0]

	repo.On("GetByID", ctx, int64(4)).Return(run, nil).Once()
	repo.On("GetByID", ctx, int64(999)).Return(nil, domain.ErrTrainRunNotFound).Once()

	got, err := svc.GetByID(ctx, 4)
	assert.NoError(t, err)
	assert.Equal(t, run, got)

	_, err = svc.GetByID(ctx, 999)
	assert.True(t, domain.IsNotFound(err))

	_, err = svc.GetByID(ctx, 0)
	assert.True(t, domain.IsValidation(err))
}

func TestService_Search(t *testing.T) {
	repo := &MockTrainRunRepository{}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	runs := sampleRuns()
	repo.On("Search", ctx, "hwh", "ndls").Return(runs, nil).Once()

	result, err := svc.Search(ctx, " hwh ", "ndls")

	assert.NoError(t, err)
	assert.Equal(t, runs, result)
	repo.AssertExpectations(t)
}

func TestService_Search_RequiresStations(t *testing.T) {
	repo := &MockTrainRunRepository{}
	svc := NewService(repo, nil, nil)

	_, err := svc.Search(context.Background(), "", "NDLS")
	assert.True(t, domain.IsValidation(err))
	_, err = svc.Search(context.Background(), "HWH", "  ")
	assert.True(t, domain.IsValidation(err))
	repo.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ByNumber(t *testing.T) {
	repo := &MockTrainRunRepository{}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	runs := sampleRuns()
	repo.On("SearchByNumber", ctx, "123").Return(runs, nil).Once()

	result, err := svc.ByNumber(ctx, "123")
	assert.NoError(t, err)
	assert.Equal(t, runs, result)

	_, err = svc.ByNumber(ctx, " ")
	assert.True(t, domain.IsValidation(err))
	repo.AssertExpectations(t)
}
