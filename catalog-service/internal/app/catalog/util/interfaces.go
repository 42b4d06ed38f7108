package util

import (
	"context"
	"time"

	"storefront/catalog-service/internal/app/catalog/entity"

	"github.com/google/uuid"
)

// RatingCache - кеш агрегатов отзывов по товарам.
// GetRatingSummary возвращает nil, nil при промахе.
// Запись условная: агрегат сохраняется, только если версия товара, прочитанная
// через RatingVersions до подсчета, не изменилась. DeleteRatingSummary поднимает версию
type RatingCache interface {
	GetRatingSummary(ctx context.Context, productID uuid.UUID) (*entity.RatingSummary, error)
	RatingVersions(ctx context.Context, productIDs ...uuid.UUID) (map[uuid.UUID]int64, error)
	SetRatingSummary(ctx context.Context, summary entity.RatingSummary, version int64, ttl time.Duration) error
	SetRatingSummaries(ctx context.Context, summaries []entity.RatingSummary, versions map[uuid.UUID]int64, ttl time.Duration) error
	DeleteRatingSummary(ctx context.Context, productIDs ...uuid.UUID) error
	Close() error
}

// MessagePublisher интерфейс для отправки сообщений в очередь (Kafka)
type MessagePublisher interface {
	PublishMessage(ctx context.Context, key string, value []byte) error
	Close() error
}
