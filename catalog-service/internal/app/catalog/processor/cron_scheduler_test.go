package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRatingCacheWarmer мок для RatingCacheWarmer
type MockRatingCacheWarmer struct {
	mock.Mock
}

func (m *MockRatingCacheWarmer) WarmRatingCache(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestNewCronScheduler(t *testing.T) {
	warmer := new(MockRatingCacheWarmer)

	scheduler := NewCronScheduler(warmer)

	assert.NotNil(t, scheduler)
	assert.NotNil(t, scheduler.cron)
	assert.Equal(t, warmer, scheduler.warmer)
	assert.Empty(t, scheduler.GetEntries())
}

func TestCronScheduler_Start_InitialWarm(t *testing.T) {
	warmer := new(MockRatingCacheWarmer)
	scheduler := NewCronScheduler(warmer)

	warmer.On("WarmRatingCache", mock.Anything).Return(nil)

	err := scheduler.Start(context.Background(), "*/5 * * * *")

	require.NoError(t, err)
	assert.Len(t, scheduler.GetEntries(), 1)

	scheduler.Stop()
	warmer.AssertNumberOfCalls(t, "WarmRatingCache", 1)
}

func TestCronScheduler_Start_InvalidSchedule(t *testing.T) {
	warmer := new(MockRatingCacheWarmer)
	scheduler := NewCronScheduler(warmer)

	err := scheduler.Start(context.Background(), "invalid cron expression")

	assert.Error(t, err)
	warmer.AssertNotCalled(t, "WarmRatingCache", mock.Anything)
}

func TestCronScheduler_Start_InitialWarmError_ContinuesWork(t *testing.T) {
	warmer := new(MockRatingCacheWarmer)
	scheduler := NewCronScheduler(warmer)

	warmer.On("WarmRatingCache", mock.Anything).Return(errors.New("redis unavailable"))

	err := scheduler.Start(context.Background(), "*/5 * * * *")

	assert.NoError(t, err)
	assert.Len(t, scheduler.GetEntries(), 1)

	scheduler.Stop()
}

func TestCronScheduler_JobExecution(t *testing.T) {
	warmer := new(MockRatingCacheWarmer)
	scheduler := NewCronScheduler(warmer)

	// initial + хотя бы один запуск по расписанию
	warmer.On("WarmRatingCache", mock.Anything).Return(nil)

	err := scheduler.Start(context.Background(), "@every 1s")
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)
	scheduler.Stop()

	calls := 0
	for _, c := range warmer.Calls {
		if c.Method == "WarmRatingCache" {
			calls++
		}
	}
	assert.GreaterOrEqual(t, calls, 2)
}

func TestCronScheduler_JobExecution_WithError(t *testing.T) {
	warmer := new(MockRatingCacheWarmer)
	scheduler := NewCronScheduler(warmer)

	warmer.On("WarmRatingCache", mock.Anything).Return(errors.New("db error"))

	err := scheduler.Start(context.Background(), "@every 1s")
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)
	scheduler.Stop()

	// несмотря на ошибки, запуски продолжаются
	assert.GreaterOrEqual(t, len(warmer.Calls), 2)
}
