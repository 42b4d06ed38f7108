package handler

import (
	"errors"
	"net/http"

	"storefront/catalog-service/internal/app/catalog/entity"
	"storefront/catalog-service/internal/app/catalog/serializer"
	"storefront/catalog-service/internal/app/catalog/service"
	"storefront/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ReviewHandler struct {
	reviewService service.ReviewServiceInterface
}

func NewReviewHandler(reviewService service.ReviewServiceInterface) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
	}
}

// CreateReview обрабатывает POST /reviews. Автор берется из токена
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var input entity.ReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, serializer.NewInvalidBodyError().Errors)
		return
	}

	review, err := h.reviewService.CreateReview(c.Request.Context(), user, &input)
	if err != nil {
		h.respondError(c, err, "Failed to create review")
		return
	}

	c.JSON(http.StatusCreated, review)
}

// GetReview обрабатывает GET /reviews/:review_id
func (h *ReviewHandler) GetReview(c *gin.Context) {
	id, ok := parseUUIDParam(c, "review_id", "Invalid review ID")
	if !ok {
		return
	}

	review, err := h.reviewService.GetReview(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get review")
		return
	}

	c.JSON(http.StatusOK, review)
}

// GetReviewsByProduct обрабатывает GET /reviews/product/:product_id
func (h *ReviewHandler) GetReviewsByProduct(c *gin.Context) {
	productID, ok := parseUUIDParam(c, "product_id", "Invalid product ID")
	if !ok {
		return
	}

	reviews, err := h.reviewService.GetReviewsByProduct(c.Request.Context(), productID)
	if err != nil {
		h.respondError(c, err, "Failed to get reviews")
		return
	}

	c.JSON(http.StatusOK, entity.ReviewListResponse{
		Reviews: reviews,
		Total:   len(reviews),
	})
}

// GetMyReviews обрабатывает GET /reviews/me
func (h *ReviewHandler) GetMyReviews(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	reviews, err := h.reviewService.GetUserReviews(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err, "Failed to get reviews")
		return
	}

	c.JSON(http.StatusOK, entity.ReviewListResponse{
		Reviews: reviews,
		Total:   len(reviews),
	})
}

// UpdateReview обрабатывает PATCH /reviews/:review_id
func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	id, ok := parseUUIDParam(c, "review_id", "Invalid review ID")
	if !ok {
		return
	}

	var input entity.ReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, serializer.NewInvalidBodyError().Errors)
		return
	}

	review, err := h.reviewService.UpdateReview(c.Request.Context(), user, id, &input)
	if err != nil {
		h.respondError(c, err, "Failed to update review")
		return
	}

	c.JSON(http.StatusOK, review)
}

// DeleteReview обрабатывает DELETE /reviews/:review_id
func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	id, ok := parseUUIDParam(c, "review_id", "Invalid review ID")
	if !ok {
		return
	}

	if err := h.reviewService.DeleteReview(c.Request.Context(), user, id); err != nil {
		h.respondError(c, err, "Failed to delete review")
		return
	}

	c.JSON(http.StatusOK, entity.SuccessResponse{
		Message: "Review deleted successfully",
	})
}

// respondError: ошибки валидации отдаются как карта поле -> сообщения
func (h *ReviewHandler) respondError(c *gin.Context, err error, message string) {
	if verr, ok := serializer.AsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, verr.Errors)
		return
	}

	switch {
	case errors.Is(err, service.ErrReviewNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	default:
		logger.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
