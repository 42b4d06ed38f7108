package serializer

import (
	"context"

	"github.com/google/uuid"
)

// ReviewAggregator считает агрегаты отзывов одного товара.
// AverageRating возвращает nil, если отзывов нет
type ReviewAggregator interface {
	AverageRating(ctx context.Context, productID uuid.UUID) (*float64, error)
	CountReviews(ctx context.Context, productID uuid.UUID) (int64, error)
}

// ProductLookup проверяет существование товара, на который ссылается отзыв
type ProductLookup interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// ReviewLookup - проверка "этот пользователь уже оставил отзыв на товар"
type ReviewLookup interface {
	ExistsByProductAndUser(ctx context.Context, productID uuid.UUID, userID string) (bool, error)
}
