package processor

import (
	"context"
	"fmt"

	"storefront/pkg/logger"
	"storefront/pkg/metrics"

	"github.com/robfig/cron/v3"
)

// RatingCacheWarmer пересчитывает агрегаты отзывов и кладет их в кеш
type RatingCacheWarmer interface {
	WarmRatingCache(ctx context.Context) error
}

// CronScheduler периодически прогревает кеш агрегатов отзывов,
// чтобы одиночные запросы товара шли по заранее посчитанному пути
type CronScheduler struct {
	cron   *cron.Cron
	warmer RatingCacheWarmer
}

func NewCronScheduler(warmer RatingCacheWarmer) *CronScheduler {
	cronLog := cronLogger{}
	c := cron.New(
		cron.WithLogger(cronLog),
		// Следующий запуск пропускается, пока предыдущий не закончился
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	return &CronScheduler{
		cron:   c,
		warmer: warmer,
	}
}

// Start регистрирует задачу, запускает планировщик и сразу делает первый прогрев.
// Ошибка первого прогрева не останавливает сервис
func (s *CronScheduler) Start(ctx context.Context, schedule string) error {
	logger.Info().Str("schedule", schedule).Msg("Starting rating cache scheduler")

	_, err := s.cron.AddFunc(schedule, func() {
		s.warm(ctx, "scheduled")
	})
	if err != nil {
		return fmt.Errorf("invalid cache warm schedule %q: %w", schedule, err)
	}

	s.cron.Start()

	s.warm(ctx, "initial")
	return nil
}

func (s *CronScheduler) warm(ctx context.Context, trigger string) {
	if err := s.warmer.WarmRatingCache(ctx); err != nil {
		metrics.RatingCacheWarmRuns.WithLabelValues("error").Inc()
		logger.Error().Err(err).Str("trigger", trigger).Msg("Failed to warm rating cache")
		return
	}
	metrics.RatingCacheWarmRuns.WithLabelValues("success").Inc()
}

// Stop ждет завершения уже запущенной задачи
func (s *CronScheduler) Stop() {
	logger.Info().Msg("Stopping rating cache scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info().Msg("Rating cache scheduler stopped")
}

func (s *CronScheduler) GetEntries() []cron.Entry {
	return s.cron.Entries()
}

// cronLogger направляет логи cron в zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
