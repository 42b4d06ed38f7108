package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Поля id, created_at, avg_rating, reviews_count в запросах отсутствуют:
// попытка передать их просто игнорируется при биндинге JSON

type CreateProductRequest struct {
	Name  string          `json:"name" validate:"required,min=2,max=200"`
	Price decimal.Decimal `json:"price" validate:"required,gt=0"`
}

type UpdateProductRequest struct {
	Name  string           `json:"name" validate:"omitempty,min=2,max=200"`
	Price *decimal.Decimal `json:"price" validate:"omitempty,gt=0"`
}

// ReviewInput - тело запроса на создание/изменение отзыва.
// user и created_at назначаются системой и здесь отсутствуют.
// Rating принимается как есть (4.5, "5", 1e30), тип проверяет сериализатор
type ReviewInput struct {
	Product *string         `json:"product"`
	Rating  json.RawMessage `json:"rating"`
	Comment *string         `json:"comment"`
}

// ReviewFields - провалидированные и нормализованные поля отзыва.
// nil означает, что поле не передавалось (частичное обновление)
type ReviewFields struct {
	ProductID *uuid.UUID
	Rating    *int
	Comment   *string
}

// ProductRepresentation - представление товара в ответах API
type ProductRepresentation struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	CreatedAt    time.Time       `json:"created_at"`
	AvgRating    float64         `json:"avg_rating"`
	ReviewsCount int64           `json:"reviews_count"`
}

// ReviewRepresentation - представление отзыва; user - отображаемое имя автора
type ReviewRepresentation struct {
	ID        uuid.UUID `json:"id"`
	Product   uuid.UUID `json:"product"`
	User      string    `json:"user"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ProductListResponse struct {
	Products []ProductRepresentation `json:"products"`
	Total    int                     `json:"total"`
}

type ReviewListResponse struct {
	Reviews []ReviewRepresentation `json:"reviews"`
	Total   int                    `json:"total"`
}
