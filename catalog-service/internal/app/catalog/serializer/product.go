package serializer

import (
	"context"
	"fmt"

	"storefront/catalog-service/internal/app/catalog/entity"
	"storefront/pkg/metrics"
)

// ProductSerializer превращает товар в представление для API
// и добавляет вычисляемые поля avg_rating и reviews_count
type ProductSerializer struct {
	aggregator ReviewAggregator
}

func NewProductSerializer(aggregator ReviewAggregator) *ProductSerializer {
	return &ProductSerializer{aggregator: aggregator}
}

// Represent строит представление одного товара.
// Каждое из двух вычисляемых полей берётся из товара, если оно уже посчитано,
// иначе считается по отзывам товара
func (s *ProductSerializer) Represent(ctx context.Context, product *entity.Product) (*entity.ProductRepresentation, error) {
	avgRating, err := s.avgRating(ctx, product)
	if err != nil {
		return nil, err
	}

	reviewsCount, err := s.reviewsCount(ctx, product)
	if err != nil {
		return nil, err
	}

	metrics.RecordRatingSummarySource(product.AvgRating != nil && product.ReviewsCount != nil)

	return &entity.ProductRepresentation{
		ID:           product.ID,
		Name:         product.Name,
		Price:        product.Price,
		CreatedAt:    product.CreatedAt,
		AvgRating:    avgRating,
		ReviewsCount: reviewsCount,
	}, nil
}

// RepresentMany - то же для списка, порядок сохраняется
func (s *ProductSerializer) RepresentMany(ctx context.Context, products []entity.Product) ([]entity.ProductRepresentation, error) {
	result := make([]entity.ProductRepresentation, 0, len(products))
	for i := range products {
		repr, err := s.Represent(ctx, &products[i])
		if err != nil {
			return nil, err
		}
		result = append(result, *repr)
	}
	return result, nil
}

func (s *ProductSerializer) avgRating(ctx context.Context, product *entity.Product) (float64, error) {
	if product.AvgRating != nil {
		return *product.AvgRating, nil
	}

	avg, err := s.aggregator.AverageRating(ctx, product.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to compute avg rating for product %s: %w", product.ID, err)
	}
	if avg == nil {
		return 0.0, nil
	}

	return entity.RoundRating(*avg), nil
}

func (s *ProductSerializer) reviewsCount(ctx context.Context, product *entity.Product) (int64, error) {
	if product.ReviewsCount != nil {
		return *product.ReviewsCount, nil
	}

	count, err := s.aggregator.CountReviews(ctx, product.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews for product %s: %w", product.ID, err)
	}

	return count, nil
}
