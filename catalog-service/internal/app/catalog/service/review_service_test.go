package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"storefront/catalog-service/internal/app/catalog/entity"
	"storefront/catalog-service/internal/app/catalog/repository"
	"storefront/catalog-service/internal/app/catalog/repository/mocks"
	"storefront/catalog-service/internal/app/catalog/serializer"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type reviewMocks struct {
	products  *mocks.MockProductRepository
	reviews   *mocks.MockReviewRepository
	cache     *mocks.MockRatingCache
	publisher *mocks.MockMessagePublisher
}

func newReviewServiceWithMocks() (*ReviewService, reviewMocks) {
	m := reviewMocks{
		products:  new(mocks.MockProductRepository),
		reviews:   new(mocks.MockReviewRepository),
		cache:     new(mocks.MockRatingCache),
		publisher: new(mocks.MockMessagePublisher),
	}
	return NewReviewService(m.reviews, m.products, m.cache, m.publisher), m
}

func strPtr(v string) *string           { return &v }
func ratingJSON(v int) json.RawMessage { return json.RawMessage(strconv.Itoa(v)) }

var alice = entity.UserRef{ID: "user-1", Username: "alice"}

func newTestReview(productID uuid.UUID, author entity.UserRef) *entity.Review {
	return &entity.Review{
		ID:        uuid.New(),
		ProductID: productID,
		User:      author,
		Rating:    4,
		Comment:   "nice",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// ==================== CreateReview ====================

func TestReviewService_CreateReview_Success(t *testing.T) {
	ctx := context.Background()
	svc, m := newReviewServiceWithMocks()
	productID := uuid.New()

	m.products.On("Exists", ctx, productID).Return(true, nil)
	m.reviews.On("ExistsByProductAndUser", ctx, productID, alice.ID).Return(false, nil)
	m.reviews.On("Create", ctx, mock.MatchedBy(func(r *entity.Review) bool {
		return r.ProductID == productID && r.User == alice && r.Rating == 5 && r.Comment == "great"
	})).Return(nil)
	m.cache.On("DeleteRatingSummary", ctx, []uuid.UUID{productID}).Return(nil)
	m.publisher.On("PublishMessage", ctx, productID.String(), mock.MatchedBy(func(data []byte) bool {
		var event entity.ReviewEvent
		return json.Unmarshal(data, &event) == nil && event.EventType == entity.EventReviewCreated
	})).Return(nil)

	repr, err := svc.CreateReview(ctx, alice, &entity.ReviewInput{
		Product: strPtr(productID.String()),
		Rating:  ratingJSON(5),
		Comment: strPtr("great"),
	})

	require.NoError(t, err)
	assert.Equal(t, "alice", repr.User)
	assert.Equal(t, productID, repr.Product)
	assert.Equal(t, 5, repr.Rating)

	m.reviews.AssertExpectations(t)
	m.cache.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
}

func TestReviewService_CreateReview_ValidationError(t *testing.T) {
	ctx := context.Background()
	svc, m := newReviewServiceWithMocks()
	productID := uuid.New()

	m.products.On("Exists", ctx, productID).Return(true, nil)

	repr, err := svc.CreateReview(ctx, alice, &entity.ReviewInput{
		Product: strPtr(productID.String()),
		Rating:  ratingJSON(7),
	})

	assert.Nil(t, repr)
	verr, ok := serializer.AsValidationError(err)
	require.True(t, ok)
	assert.True(t, verr.Has("rating", serializer.MsgRatingOutOfRange))
	m.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReviewService_CreateReview_Duplicate(t *testing.T) {
	ctx := context.Background()
	svc, m := newReviewServiceWithMocks()
	productID := uuid.New()

	m.products.On("Exists", ctx, productID).Return(true, nil)
	m.reviews.On("ExistsByProductAndUser", ctx, productID, alice.ID).Return(true, nil)

	_, err := svc.CreateReview(ctx, alice, &entity.ReviewInput{
		Product: strPtr(productID.String()),
		Rating:  ratingJSON(4),
	})

	verr, ok := serializer.AsValidationError(err)
	require.True(t, ok)
	assert.True(t, verr.Has(serializer.NonFieldErrorsKey, serializer.MsgDuplicateReview))
	m.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReviewService_CreateReview_UniqueViolationIsDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, m := newReviewServiceWithMocks()
	productID := uuid.New()

	// Проверка прошла, но параллельный запрос успел записать отзыв
	m.products.On("Exists", ctx, productID).Return(true, nil)
	m.reviews.On("ExistsByProductAndUser", ctx, productID, alice.ID).Return(false, nil)
	m.reviews.On("Create", ctx, mock.Anything).Return(repository.ErrReviewAlreadyExists)

	_, err := svc.CreateReview(ctx, alice, &entity.ReviewInput{
		Product: strPtr(productID.String()),
		Rating:  ratingJSON(4),
	})

	verr, ok := serializer.AsValidationError(err)
	require.True(t, ok)
	assert.True(t, verr.Has(serializer.NonFieldErrorsKey, serializer.MsgDuplicateReview))
	m.publisher.AssertNotCalled(t, "PublishMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewService_CreateReview_KafkaErrorIgnored(t *testing.T) {
	ctx := context.Background()
	svc, m := newReviewServiceWithMocks()
	productID := uuid.New()

	m.products.On("Exists", ctx, productID).Return(true, nil)
	m.reviews.On("ExistsByProductAndUser", ctx, productID, alice.ID).Return(false, nil)
	m.reviews.On("Create", ctx, mock.Anything).Return(nil)
	m.cache.On("DeleteRatingSummary", ctx, mock.Anything).Return(errors.New("redis down"))
	m.publisher.On("PublishMessage", ctx, productID.String(), mock.Anything).Return(errors.New("kafka down"))

	repr, err := svc.CreateReview(ctx, alice, &entity.ReviewInput{
		Product: strPtr(productID.String()),
		Rating:  ratingJSON(3),
	})

	require.NoError(t, err)
	assert.Equal(t, 3, repr.Rating)
}

// ==================== Read ====================

func TestReviewService_GetReview_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, m := newReviewServiceWithMocks()
	id := uuid.New()

	m.reviews.On("GetByID", ctx, id).Return(nil, repository.ErrReviewNotFound)

	repr, err := svc.GetReview(ctx, id)

	assert.ErrorIs(t, err, ErrReviewNotFound)
	assert.Nil(t, repr)
}

func TestReviewService_GetReviewsByProduct(t *testing.T) {
	ctx := context.Background()
	svc, m := newReviewServiceWithMocks()
	productID := uuid.New()
	bob := entity.UserRef{ID: "user-2"}

	m.products.On("Exists", ctx, productID).Return(true, nil)
	m.reviews.On("GetByProductID", ctx, productID).Return([]entity.Review{
		*newTestReview(productID, alice),
		*newTestReview(productID, bob),
	}, nil)

	result, err := svc.GetReviewsByProduct(ctx, productID)

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "alice", result[0].User)
	// без username показывается id пользователя
	assert.Equal(t, "user-2", result[1].User)
}

func TestReviewService_GetReviewsByProduct_UnknownProduct(t *testing.T) {
	ctx := context.Background()
	svc, m := newReviewServiceWithMocks()
	productID := uuid.New()

	m.products.On("Exists", ctx, productID).Return(false, nil)

	result, err := svc.GetReviewsByProduct(ctx, productID)

	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Nil(t, result)
}

func TestReviewService_GetUserReviews(t *testing.T) {
	ctx := context.Background()
	svc, m := newReviewServiceWithMocks()

	m.reviews.On("GetByUserID", ctx, alice.ID).Return([]entity.Review{*newTestReview(uuid.New(), alice)}, nil)

	result, err := svc.GetUserReviews(ctx, alice.ID)

	require.NoError(t, err)
	assert.Len(t, result, 1)
}

// ==================== UpdateReview ====================

func TestReviewService_UpdateReview_NoDuplicateCheck(t *testing.T) {
	ctx := context.Background()
	svc, m := newReviewServiceWithMocks()
	review := newTestReview(uuid.New(), alice)

	m.reviews.On("GetByID", ctx, review.ID).Return(review, nil)
	m.reviews.On("Update", ctx, mock.MatchedBy(func(r *entity.Review) bool {
		return r.Rating == 2 && r.Comment == "nice"
	})).Return(nil)
	m.cache.On("DeleteRatingSummary", ctx, []uuid.UUID{review.ProductID}).Return(nil)
	m.publisher.On("PublishMessage", ctx, review.ProductID.String(), mock.Anything).Return(nil)

	repr, err := svc.UpdateReview(ctx, alice, review.ID, &entity.ReviewInput{Rating: ratingJSON(2)})

	require.NoError(t, err)
	assert.Equal(t, 2, repr.Rating)
	m.reviews.AssertNotCalled(t, "ExistsByProductAndUser", mock.Anything, mock.Anything, mock.Anything)
	m.reviews.AssertExpectations(t)
}

func TestReviewService_UpdateReview_NotAuthor(t *testing.T) {
	ctx := context.Background()
	svc, m := newReviewServiceWithMocks()
	review := newTestReview(uuid.New(), alice)

	m.reviews.On("GetByID", ctx, review.ID).Return(review, nil)

	repr, err := svc.UpdateReview(ctx, entity.UserRef{ID: "user-2"}, review.ID, &entity.ReviewInput{Rating: ratingJSON(1)})

	assert.ErrorIs(t, err, ErrForbidden)
	assert.Nil(t, repr)
	m.reviews.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestReviewService_UpdateReview_InvalidRating(t *testing.T) {
	ctx := context.Background()
	svc, m := newReviewServiceWithMocks()
	review := newTestReview(uuid.New(), alice)

	m.reviews.On("GetByID", ctx, review.ID).Return(review, nil)

	_, err := svc.UpdateReview(ctx, alice, review.ID, &entity.ReviewInput{Rating: ratingJSON(0)})

	verr, ok := serializer.AsValidationError(err)
	require.True(t, ok)
	assert.True(t, verr.Has("rating", serializer.MsgRatingOutOfRange))
}

// ==================== DeleteReview ====================

func TestReviewService_DeleteReview_Success(t *testing.T) {
	ctx := context.Background()
	svc, m := newReviewServiceWithMocks()
	review := newTestReview(uuid.New(), alice)

	m.reviews.On("GetByID", ctx, review.ID).Return(review, nil)
	m.reviews.On("Delete", ctx, review.ID).Return(nil)
	m.cache.On("DeleteRatingSummary", ctx, []uuid.UUID{review.ProductID}).Return(nil)
	m.publisher.On("PublishMessage", ctx, review.ProductID.String(), mock.MatchedBy(func(data []byte) bool {
		var event entity.ReviewEvent
		return json.Unmarshal(data, &event) == nil && event.EventType == entity.EventReviewDeleted
	})).Return(nil)

	err := svc.DeleteReview(ctx, alice, review.ID)

	require.NoError(t, err)
	m.publisher.AssertExpectations(t)
}

func TestReviewService_DeleteReview_NotAuthor(t *testing.T) {
	ctx := context.Background()
	svc, m := newReviewServiceWithMocks()
	review := newTestReview(uuid.New(), alice)

	m.reviews.On("GetByID", ctx, review.ID).Return(review, nil)

	err := svc.DeleteReview(ctx, entity.UserRef{ID: "user-2"}, review.ID)

	assert.ErrorIs(t, err, ErrForbidden)
	m.reviews.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
