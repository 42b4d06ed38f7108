package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/catalog-service/internal/app/catalog/entity"
	"storefront/catalog-service/internal/app/catalog/repository/mocks"
	"storefront/catalog-service/internal/app/catalog/serializer"
	"storefront/catalog-service/internal/app/catalog/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) CreateReview(ctx context.Context, user entity.UserRef, input *entity.ReviewInput) (*entity.ReviewRepresentation, error) {
	args := m.Called(ctx, user, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ReviewRepresentation), args.Error(1)
}

func (m *MockReviewService) GetReview(ctx context.Context, id uuid.UUID) (*entity.ReviewRepresentation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ReviewRepresentation), args.Error(1)
}

func (m *MockReviewService) GetReviewsByProduct(ctx context.Context, productID uuid.UUID) ([]entity.ReviewRepresentation, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ReviewRepresentation), args.Error(1)
}

func (m *MockReviewService) GetUserReviews(ctx context.Context, userID string) ([]entity.ReviewRepresentation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ReviewRepresentation), args.Error(1)
}

func (m *MockReviewService) UpdateReview(ctx context.Context, user entity.UserRef, id uuid.UUID, input *entity.ReviewInput) (*entity.ReviewRepresentation, error) {
	args := m.Called(ctx, user, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ReviewRepresentation), args.Error(1)
}

func (m *MockReviewService) DeleteReview(ctx context.Context, user entity.UserRef, id uuid.UUID) error {
	args := m.Called(ctx, user, id)
	return args.Error(0)
}

var testAlice = entity.UserRef{ID: "user-1", Username: "alice"}

func TestCreateReview_Success_UserFromToken(t *testing.T) {
	reviewSvc := new(MockReviewService)
	router := setupTestRouter(new(MockCatalogService), reviewSvc)
	productID := uuid.New()

	reviewSvc.On("CreateReview", mock.Anything, testAlice, mock.MatchedBy(func(in *entity.ReviewInput) bool {
		return in.Product != nil && *in.Product == productID.String() && string(in.Rating) == "5"
	})).Return(&entity.ReviewRepresentation{ID: uuid.New(), Product: productID, User: "alice", Rating: 5}, nil)

	// user в теле запроса игнорируется
	w := doRequest(router, http.MethodPost, "/reviews", signToken(t, "user-1", "alice", "user"),
		map[string]interface{}{"product": productID.String(), "rating": 5, "user": "mallory"})

	require.Equal(t, http.StatusCreated, w.Code)
	var body entity.ReviewRepresentation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.User)
	reviewSvc.AssertExpectations(t)
}

func TestCreateReview_ValidationErrorBody(t *testing.T) {
	reviewSvc := new(MockReviewService)
	router := setupTestRouter(new(MockCatalogService), reviewSvc)

	verr := &serializer.ValidationError{Errors: map[string][]string{
		"rating": {serializer.MsgRatingOutOfRange},
	}}
	reviewSvc.On("CreateReview", mock.Anything, testAlice, mock.Anything).Return(nil, verr)

	w := doRequest(router, http.MethodPost, "/reviews", signToken(t, "user-1", "alice", "user"),
		map[string]interface{}{"product": uuid.NewString(), "rating": 7})

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{serializer.MsgRatingOutOfRange}, body["rating"])
}

func TestCreateReview_DuplicateBody(t *testing.T) {
	reviewSvc := new(MockReviewService)
	router := setupTestRouter(new(MockCatalogService), reviewSvc)

	reviewSvc.On("CreateReview", mock.Anything, testAlice, mock.Anything).Return(nil, serializer.NewDuplicateReviewError())

	w := doRequest(router, http.MethodPost, "/reviews", signToken(t, "user-1", "alice", "user"),
		map[string]interface{}{"product": uuid.NewString(), "rating": 4})

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{serializer.MsgDuplicateReview}, body[serializer.NonFieldErrorsKey])
}

// Рейтинг любого JSON типа доходит до сериализатора и получает ошибку поля rating
func TestCreateReview_NonIntegerRating(t *testing.T) {
	for _, rating := range []interface{}{4.5, "five", 1e30, true} {
		productRepo := new(mocks.MockProductRepository)
		reviewRepo := new(mocks.MockReviewRepository)
		productID := uuid.New()
		productRepo.On("Exists", mock.Anything, productID).Return(true, nil)

		reviewSvc := service.NewReviewService(reviewRepo, productRepo, new(mocks.MockRatingCache), new(mocks.MockMessagePublisher))
		router := setupTestRouter(new(MockCatalogService), reviewSvc)

		w := doRequest(router, http.MethodPost, "/reviews", signToken(t, "user-1", "alice", "user"),
			map[string]interface{}{"product": productID.String(), "rating": rating})

		require.Equal(t, http.StatusBadRequest, w.Code, "rating %v", rating)
		var body map[string][]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "rating %v", rating)
		assert.Equal(t, []string{serializer.MsgRatingOutOfRange}, body["rating"], "rating %v", rating)
		reviewRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	}
}

func TestCreateReview_MalformedBody(t *testing.T) {
	router := setupTestRouter(new(MockCatalogService), new(MockReviewService))

	req := httptest.NewRequest(http.MethodPost, "/reviews", strings.NewReader(`{"rating": 5,`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", "alice", "user"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{serializer.MsgInvalidBody}, body[serializer.NonFieldErrorsKey])
}

func TestUpdateReview_WrongFieldType(t *testing.T) {
	router := setupTestRouter(new(MockCatalogService), new(MockReviewService))

	w := doRequest(router, http.MethodPatch, "/reviews/"+uuid.NewString(), signToken(t, "user-1", "alice", "user"),
		map[string]interface{}{"comment": 42})

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, serializer.NonFieldErrorsKey)
}

func TestGetMyReviews(t *testing.T) {
	reviewSvc := new(MockReviewService)
	router := setupTestRouter(new(MockCatalogService), reviewSvc)

	reviewSvc.On("GetUserReviews", mock.Anything, "user-1").Return([]entity.ReviewRepresentation{{ID: uuid.New(), User: "alice", Rating: 3}}, nil)

	w := doRequest(router, http.MethodGet, "/reviews/me", signToken(t, "user-1", "alice", "user"), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	reviewSvc.AssertExpectations(t)
}

func TestGetReviewsByProduct_UnknownProduct(t *testing.T) {
	reviewSvc := new(MockReviewService)
	router := setupTestRouter(new(MockCatalogService), reviewSvc)
	productID := uuid.New()

	reviewSvc.On("GetReviewsByProduct", mock.Anything, productID).Return(nil, service.ErrProductNotFound)

	w := doRequest(router, http.MethodGet, "/reviews/product/"+productID.String(), signToken(t, "user-1", "alice", "user"), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateReview_Forbidden(t *testing.T) {
	reviewSvc := new(MockReviewService)
	router := setupTestRouter(new(MockCatalogService), reviewSvc)
	id := uuid.New()

	reviewSvc.On("UpdateReview", mock.Anything, mock.Anything, id, mock.Anything).Return(nil, service.ErrForbidden)

	w := doRequest(router, http.MethodPatch, "/reviews/"+id.String(), signToken(t, "user-2", "bob", "user"),
		map[string]interface{}{"rating": 1})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeleteReview_NotFound(t *testing.T) {
	reviewSvc := new(MockReviewService)
	router := setupTestRouter(new(MockCatalogService), reviewSvc)
	id := uuid.New()

	reviewSvc.On("DeleteReview", mock.Anything, testAlice, id).Return(service.ErrReviewNotFound)

	w := doRequest(router, http.MethodDelete, "/reviews/"+id.String(), signToken(t, "user-1", "alice", "user"), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthenticate_UsernameFallsBackToEmail(t *testing.T) {
	reviewSvc := new(MockReviewService)
	router := setupTestRouter(new(MockCatalogService), reviewSvc)

	expected := entity.UserRef{ID: "user-3", Username: "user-3@example.com"}
	reviewSvc.On("CreateReview", mock.Anything, expected, mock.Anything).
		Return(&entity.ReviewRepresentation{ID: uuid.New(), User: expected.Username, Rating: 4}, nil)

	w := doRequest(router, http.MethodPost, "/reviews", signToken(t, "user-3", "", "user"),
		map[string]interface{}{"product": uuid.NewString(), "rating": 4})

	assert.Equal(t, http.StatusCreated, w.Code)
	reviewSvc.AssertExpectations(t)
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	router := setupTestRouter(new(MockCatalogService), new(MockReviewService))

	w := doRequest(router, http.MethodGet, "/reviews/me", "not.a.token", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
