package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/catalog-service/internal/app/catalog/entity"
	"storefront/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const reviewsTable = "reviews"

// reviewRepository хранит отзывы в PostgreSQL через GORM
type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository создает репозиторий отзывов поверх PostgreSQL
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

// Create сохраняет отзыв. Гонку двух одновременных отзывов одного пользователя
// закрывает уникальный индекс idx_reviews_product_user
func (r *reviewRepository) Create(ctx context.Context, review *entity.Review) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpInsert, reviewsTable)
	defer timer.ObserveDuration()

	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrReviewAlreadyExists
		}
		metrics.RecordDbError(serviceName, metrics.DbOpInsert)
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

func (r *reviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Review, error) {
	var review entity.Review
	result := r.db.WithContext(ctx).First(&review, "id = ?", id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to get review: %w", result.Error)
	}

	return &review, nil
}

func (r *reviewRepository) GetByProductID(ctx context.Context, productID uuid.UUID) ([]entity.Review, error) {
	var reviews []entity.Review
	result := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&reviews)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to find reviews: %w", result.Error)
	}

	return reviews, nil
}

func (r *reviewRepository) GetByUserID(ctx context.Context, userID string) ([]entity.Review, error) {
	var reviews []entity.Review
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reviews)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to find reviews: %w", result.Error)
	}

	return reviews, nil
}

// Update меняет только изменяемые поля; user и created_at не трогаются
func (r *reviewRepository) Update(ctx context.Context, review *entity.Review) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpdate, reviewsTable)
	defer timer.ObserveDuration()

	result := r.db.WithContext(ctx).Model(&entity.Review{}).Where("id = ?", review.ID).Updates(map[string]interface{}{
		"product_id": review.ProductID,
		"rating":     review.Rating,
		"comment":    review.Comment,
		"updated_at": review.UpdatedAt,
	})

	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return ErrReviewAlreadyExists
		}
		metrics.RecordDbError(serviceName, metrics.DbOpUpdate)
		return fmt.Errorf("failed to update review: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrReviewNotFound
	}

	return nil
}

func (r *reviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&entity.Review{}, "id = ?", id)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpDelete)
		return fmt.Errorf("failed to delete review: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrReviewNotFound
	}

	return nil
}

func (r *reviewRepository) ExistsByProductAndUser(ctx context.Context, productID uuid.UUID, userID string) (bool, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, reviewsTable)
	defer timer.ObserveDuration()

	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Review{}).
		Where("product_id = ? AND user_id = ?", productID, userID).
		Count(&count).Error
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return false, fmt.Errorf("failed to check review existence: %w", err)
	}

	return count > 0, nil
}

// AverageRating - AVG(rating) по отзывам товара; nil, если отзывов нет
func (r *reviewRepository) AverageRating(ctx context.Context, productID uuid.UUID) (*float64, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpAggregate, reviewsTable)
	defer timer.ObserveDuration()

	var avg sql.NullFloat64
	err := r.db.WithContext(ctx).
		Model(&entity.Review{}).
		Select("AVG(rating)").
		Where("product_id = ?", productID).
		Row().
		Scan(&avg)
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpAggregate)
		return nil, fmt.Errorf("failed to aggregate rating: %w", err)
	}

	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

func (r *reviewRepository) CountReviews(ctx context.Context, productID uuid.UUID) (int64, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpAggregate, reviewsTable)
	defer timer.ObserveDuration()

	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Review{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpAggregate)
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	return count, nil
}

type ratingSummaryRow struct {
	ProductID    uuid.UUID
	AvgRating    float64
	ReviewsCount int64
}

// SummariesByProducts считает AVG/COUNT для всех товаров одним GROUP BY
func (r *reviewRepository) SummariesByProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]entity.RatingSummary, error) {
	summaries := make(map[uuid.UUID]entity.RatingSummary, len(productIDs))
	if len(productIDs) == 0 {
		return summaries, nil
	}

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpAggregate, reviewsTable)
	defer timer.ObserveDuration()

	var rows []ratingSummaryRow
	err := r.db.WithContext(ctx).
		Model(&entity.Review{}).
		Select("product_id, AVG(rating) AS avg_rating, COUNT(*) AS reviews_count").
		Where("product_id IN ?", productIDs).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpAggregate)
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}

	for _, row := range rows {
		summaries[row.ProductID] = entity.RatingSummary{
			ProductID:    row.ProductID,
			AvgRating:    entity.RoundRating(row.AvgRating),
			ReviewsCount: row.ReviewsCount,
		}
	}

	return summaries, nil
}

// isUniqueViolation распознаёт unique_violation от PostgreSQL (pgx)
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
