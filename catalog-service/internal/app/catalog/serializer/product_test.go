package serializer

import (
	"context"
	"errors"
	"testing"

	"storefront/catalog-service/internal/app/catalog/entity"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReviewAggregator struct {
	mock.Mock
}

func (m *MockReviewAggregator) AverageRating(ctx context.Context, productID uuid.UUID) (*float64, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*float64), args.Error(1)
}

func (m *MockReviewAggregator) CountReviews(ctx context.Context, productID uuid.UUID) (int64, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(int64), args.Error(1)
}

func float64Ptr(v float64) *float64 { return &v }

func int64Ptr(v int64) *int64 { return &v }

func newProduct(name string) entity.Product {
	return entity.Product{ID: uuid.New(), Name: name, Price: decimal.NewFromInt(10)}
}

func TestProductRepresent_ComputesFromReviews(t *testing.T) {
	ctx := context.Background()
	aggregator := new(MockReviewAggregator)
	s := NewProductSerializer(aggregator)
	widget := newProduct("Widget")

	// отзывы с рейтингами 4 и 5
	aggregator.On("AverageRating", ctx, widget.ID).Return(float64Ptr(4.5), nil)
	aggregator.On("CountReviews", ctx, widget.ID).Return(int64(2), nil)

	repr, err := s.Represent(ctx, &widget)

	require.NoError(t, err)
	assert.Equal(t, widget.ID, repr.ID)
	assert.Equal(t, "Widget", repr.Name)
	assert.True(t, widget.Price.Equal(repr.Price))
	assert.Equal(t, 4.5, repr.AvgRating)
	assert.Equal(t, int64(2), repr.ReviewsCount)
	aggregator.AssertExpectations(t)
}

func TestProductRepresent_NoReviews(t *testing.T) {
	ctx := context.Background()
	aggregator := new(MockReviewAggregator)
	s := NewProductSerializer(aggregator)
	gadget := newProduct("Gadget")

	aggregator.On("AverageRating", ctx, gadget.ID).Return(nil, nil)
	aggregator.On("CountReviews", ctx, gadget.ID).Return(int64(0), nil)

	repr, err := s.Represent(ctx, &gadget)

	require.NoError(t, err)
	assert.Equal(t, 0.0, repr.AvgRating)
	assert.Equal(t, int64(0), repr.ReviewsCount)
}

func TestProductRepresent_RoundsAverage(t *testing.T) {
	tests := []struct {
		name     string
		avg      float64
		expected float64
	}{
		{"one third", 4.0 + 1.0/3.0, 4.33},
		{"two thirds", 3.0 + 2.0/3.0, 3.67},
		{"exact", 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			aggregator := new(MockReviewAggregator)
			s := NewProductSerializer(aggregator)
			p := newProduct("Widget")

			aggregator.On("AverageRating", ctx, p.ID).Return(float64Ptr(tt.avg), nil)
			aggregator.On("CountReviews", ctx, p.ID).Return(int64(3), nil)

			repr, err := s.Represent(ctx, &p)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, repr.AvgRating)
		})
	}
}

func TestProductRepresent_PrecomputedValuesUsedAsIs(t *testing.T) {
	ctx := context.Background()
	aggregator := new(MockReviewAggregator)
	s := NewProductSerializer(aggregator)
	p := newProduct("Widget")
	// предпосчитанное значение не округляется повторно
	p.AvgRating = float64Ptr(4.333333)
	p.ReviewsCount = int64Ptr(3)

	repr, err := s.Represent(ctx, &p)

	require.NoError(t, err)
	assert.Equal(t, 4.333333, repr.AvgRating)
	assert.Equal(t, int64(3), repr.ReviewsCount)
	aggregator.AssertNotCalled(t, "AverageRating", mock.Anything, mock.Anything)
	aggregator.AssertNotCalled(t, "CountReviews", mock.Anything, mock.Anything)
}

func TestProductRepresent_OnlyOneFieldPrecomputed(t *testing.T) {
	ctx := context.Background()
	aggregator := new(MockReviewAggregator)
	s := NewProductSerializer(aggregator)
	p := newProduct("Widget")
	p.ReviewsCount = int64Ptr(7)

	aggregator.On("AverageRating", ctx, p.ID).Return(float64Ptr(2), nil)

	repr, err := s.Represent(ctx, &p)

	require.NoError(t, err)
	assert.Equal(t, 2.0, repr.AvgRating)
	assert.Equal(t, int64(7), repr.ReviewsCount)
	aggregator.AssertNotCalled(t, "CountReviews", mock.Anything, mock.Anything)
}

func TestProductRepresent_AggregatorError(t *testing.T) {
	ctx := context.Background()
	aggregator := new(MockReviewAggregator)
	s := NewProductSerializer(aggregator)
	p := newProduct("Widget")
	dbErr := errors.New("connection refused")

	aggregator.On("AverageRating", ctx, p.ID).Return(nil, dbErr)

	repr, err := s.Represent(ctx, &p)

	assert.Nil(t, repr)
	assert.ErrorIs(t, err, dbErr)
	_, isValidation := AsValidationError(err)
	assert.False(t, isValidation)
}

func TestProductRepresentMany_KeepsOrder(t *testing.T) {
	ctx := context.Background()
	aggregator := new(MockReviewAggregator)
	s := NewProductSerializer(aggregator)

	widget := newProduct("Widget")
	widget.Annotate(entity.RatingSummary{ProductID: widget.ID, AvgRating: 4.5, ReviewsCount: 2})
	gadget := newProduct("Gadget")
	gadget.Annotate(entity.RatingSummary{ProductID: gadget.ID})

	reprs, err := s.RepresentMany(ctx, []entity.Product{widget, gadget})

	require.NoError(t, err)
	require.Len(t, reprs, 2)
	assert.Equal(t, "Widget", reprs[0].Name)
	assert.Equal(t, 4.5, reprs[0].AvgRating)
	assert.Equal(t, "Gadget", reprs[1].Name)
	assert.Equal(t, int64(0), reprs[1].ReviewsCount)
	aggregator.AssertNotCalled(t, "AverageRating", mock.Anything, mock.Anything)
}

func TestProductRepresentMany_Empty(t *testing.T) {
	s := NewProductSerializer(new(MockReviewAggregator))

	reprs, err := s.RepresentMany(context.Background(), nil)

	require.NoError(t, err)
	assert.NotNil(t, reprs)
	assert.Empty(t, reprs)
}
