package service

import (
	"context"

	"storefront/catalog-service/internal/app/catalog/entity"

	"github.com/google/uuid"
)

type CatalogServiceInterface interface {
	CreateProduct(ctx context.Context, req *entity.CreateProductRequest) (*entity.ProductRepresentation, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*entity.ProductRepresentation, error)
	GetAllProducts(ctx context.Context) ([]entity.ProductRepresentation, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req *entity.UpdateProductRequest) (*entity.ProductRepresentation, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type ReviewServiceInterface interface {
	CreateReview(ctx context.Context, user entity.UserRef, input *entity.ReviewInput) (*entity.ReviewRepresentation, error)
	GetReview(ctx context.Context, id uuid.UUID) (*entity.ReviewRepresentation, error)
	GetReviewsByProduct(ctx context.Context, productID uuid.UUID) ([]entity.ReviewRepresentation, error)
	GetUserReviews(ctx context.Context, userID string) ([]entity.ReviewRepresentation, error)
	UpdateReview(ctx context.Context, user entity.UserRef, id uuid.UUID, input *entity.ReviewInput) (*entity.ReviewRepresentation, error)
	DeleteReview(ctx context.Context, user entity.UserRef, id uuid.UUID) error
}
