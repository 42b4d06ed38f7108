package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/catalog-service/internal/app/catalog/entity"
	"storefront/catalog-service/internal/app/catalog/repository"
	"storefront/catalog-service/internal/app/catalog/serializer"
	"storefront/catalog-service/internal/app/catalog/util"
	"storefront/pkg/logger"
	"storefront/pkg/metrics"

	"github.com/google/uuid"
)

var (
	ErrReviewNotFound = errors.New("review not found")
	ErrForbidden      = errors.New("only the author can modify this review")
)

// ReviewService - запись и чтение отзывов.
// После каждой записи сбрасывает кеш агрегатов товара и публикует событие в Kafka
type ReviewService struct {
	reviewRepo  repository.ReviewRepository
	productRepo repository.ProductRepository
	serializer  *serializer.ReviewSerializer
	ratingCache util.RatingCache
	publisher   util.MessagePublisher
}

func NewReviewService(
	reviewRepo repository.ReviewRepository,
	productRepo repository.ProductRepository,
	ratingCache util.RatingCache,
	publisher util.MessagePublisher,
) *ReviewService {
	return &ReviewService{
		reviewRepo:  reviewRepo,
		productRepo: productRepo,
		serializer:  serializer.NewReviewSerializer(productRepo, reviewRepo),
		ratingCache: ratingCache,
		publisher:   publisher,
	}
}

// CreateReview создает отзыв от имени пользователя из токена.
// Ошибки валидации возвращаются как *serializer.ValidationError
func (s *ReviewService) CreateReview(ctx context.Context, user entity.UserRef, input *entity.ReviewInput) (*entity.ReviewRepresentation, error) {
	fields, err := s.serializer.Validate(ctx, input, serializer.ValidationContext{
		Operation:  serializer.OperationCreate,
		ActingUser: &user,
	})
	if err != nil {
		return nil, err
	}

	review := &entity.Review{
		ID:        uuid.New(),
		ProductID: *fields.ProductID,
		User:      user,
		Rating:    *fields.Rating,
	}
	if fields.Comment != nil {
		review.Comment = *fields.Comment
	}

	if err := s.reviewRepo.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrReviewAlreadyExists) {
			// Параллельный запрос успел записать отзыв после проверки
			return nil, serializer.NewDuplicateReviewError()
		}
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	metrics.ReviewsCreated.Inc()
	metrics.ReviewsRating.Observe(float64(review.Rating))

	s.afterWrite(ctx, entity.EventReviewCreated, review)

	logger.Info().
		Str("review_id", review.ID.String()).
		Str("product_id", review.ProductID.String()).
		Str("user_id", user.ID).
		Int("rating", review.Rating).
		Msg("Review created")

	repr := s.serializer.Represent(review)
	return &repr, nil
}

func (s *ReviewService) GetReview(ctx context.Context, id uuid.UUID) (*entity.ReviewRepresentation, error) {
	review, err := s.getReview(ctx, id)
	if err != nil {
		return nil, err
	}

	repr := s.serializer.Represent(review)
	return &repr, nil
}

// GetReviewsByProduct возвращает отзывы товара, новые первыми
func (s *ReviewService) GetReviewsByProduct(ctx context.Context, productID uuid.UUID) ([]entity.ReviewRepresentation, error) {
	exists, err := s.productRepo.Exists(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to check product: %w", err)
	}
	if !exists {
		return nil, ErrProductNotFound
	}

	reviews, err := s.reviewRepo.GetByProductID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews: %w", err)
	}

	return s.serializer.RepresentMany(reviews), nil
}

func (s *ReviewService) GetUserReviews(ctx context.Context, userID string) ([]entity.ReviewRepresentation, error) {
	reviews, err := s.reviewRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews: %w", err)
	}

	return s.serializer.RepresentMany(reviews), nil
}

// UpdateReview - частичное обновление rating/comment. Менять может только автор.
// Товар у существующего отзыва не меняется, проверка на повтор не выполняется
func (s *ReviewService) UpdateReview(ctx context.Context, user entity.UserRef, id uuid.UUID, input *entity.ReviewInput) (*entity.ReviewRepresentation, error) {
	review, err := s.getReview(ctx, id)
	if err != nil {
		return nil, err
	}

	if review.User.ID != user.ID {
		return nil, ErrForbidden
	}

	fields, err := s.serializer.Validate(ctx, input, serializer.ValidationContext{
		Operation:  serializer.OperationUpdate,
		ActingUser: &user,
	})
	if err != nil {
		return nil, err
	}

	if fields.Rating != nil {
		review.Rating = *fields.Rating
	}
	if fields.Comment != nil {
		review.Comment = *fields.Comment
	}
	review.UpdatedAt = time.Now()

	if err := s.reviewRepo.Update(ctx, review); err != nil {
		switch {
		case errors.Is(err, repository.ErrReviewNotFound):
			return nil, ErrReviewNotFound
		case errors.Is(err, repository.ErrReviewAlreadyExists):
			return nil, serializer.NewDuplicateReviewError()
		}
		return nil, fmt.Errorf("failed to update review: %w", err)
	}

	s.afterWrite(ctx, entity.EventReviewUpdated, review)

	repr := s.serializer.Represent(review)
	return &repr, nil
}

func (s *ReviewService) DeleteReview(ctx context.Context, user entity.UserRef, id uuid.UUID) error {
	review, err := s.getReview(ctx, id)
	if err != nil {
		return err
	}

	if review.User.ID != user.ID {
		return ErrForbidden
	}

	if err := s.reviewRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("failed to delete review: %w", err)
	}

	s.afterWrite(ctx, entity.EventReviewDeleted, review)
	return nil
}

func (s *ReviewService) getReview(ctx context.Context, id uuid.UUID) (*entity.Review, error) {
	review, err := s.reviewRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return review, nil
}

// afterWrite сбрасывает кеш агрегатов товара и публикует событие.
// Отзыв уже записан, поэтому ошибки только логируются
func (s *ReviewService) afterWrite(ctx context.Context, eventType string, review *entity.Review) {
	productID := review.ProductID
	if err := s.ratingCache.DeleteRatingSummary(ctx, productID); err != nil {
		logger.Warn().Err(err).Str("product_id", productID.String()).Msg("Failed to invalidate rating cache")
	}

	event := entity.ReviewEvent{
		EventType: eventType,
		ReviewID:  review.ID,
		ProductID: productID,
		UserID:    review.User.ID,
		Rating:    review.Rating,
		Timestamp: time.Now(),
	}
	if err := s.publishReviewEvent(ctx, event); err != nil {
		logger.Error().Err(err).
			Str("event_type", eventType).
			Str("review_id", review.ID.String()).
			Msg("Failed to publish review event")
	}
}

// publishReviewEvent отправляет событие в Kafka; key = ProductID для партиционирования
func (s *ReviewService) publishReviewEvent(ctx context.Context, event entity.ReviewEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal review event: %w", err)
	}

	if err := s.publisher.PublishMessage(ctx, event.ProductID.String(), eventData); err != nil {
		return fmt.Errorf("failed to publish to kafka: %w", err)
	}

	return nil
}
