package repository

import (
	"context"
	"errors"

	"storefront/catalog-service/internal/app/catalog/entity"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrReviewNotFound      = errors.New("review not found")
	ErrReviewAlreadyExists = errors.New("review for this product by this user already exists")
)

const serviceName = "catalog-service"

type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Product, error)
	GetAll(ctx context.Context) ([]entity.Product, error)
	Update(ctx context.Context, product *entity.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// ReviewRepository реализуется двумя хранилищами: PostgreSQL (GORM) и MongoDB.
// Уникальность (product_id, user_id) обеспечивается индексом в обоих;
// её нарушение при записи возвращается как ErrReviewAlreadyExists
type ReviewRepository interface {
	Create(ctx context.Context, review *entity.Review) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Review, error)
	GetByProductID(ctx context.Context, productID uuid.UUID) ([]entity.Review, error)
	GetByUserID(ctx context.Context, userID string) ([]entity.Review, error)
	Update(ctx context.Context, review *entity.Review) error
	Delete(ctx context.Context, id uuid.UUID) error

	ExistsByProductAndUser(ctx context.Context, productID uuid.UUID, userID string) (bool, error)
	AverageRating(ctx context.Context, productID uuid.UUID) (*float64, error)
	CountReviews(ctx context.Context, productID uuid.UUID) (int64, error)
	// SummariesByProducts - агрегаты сразу по списку товаров одним запросом.
	// Товары без отзывов в результат не попадают
	SummariesByProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]entity.RatingSummary, error)
}
