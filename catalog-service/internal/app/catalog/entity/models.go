package entity

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product представляет товар в каталоге
type Product struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string          `json:"name" gorm:"type:varchar(200);not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"` // Цена > 0, проверяется в DTO
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
	Reviews   []Review        `json:"-" gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	// Агрегаты по отзывам. Заполняются только там, где они уже посчитаны
	// (bulk-агрегация для списка, кеш Redis). nil - значит считать по запросу
	AvgRating    *float64 `json:"-" gorm:"-"`
	ReviewsCount *int64   `json:"-" gorm:"-"`
}

// TableName указывает имя таблицы для GORM
func (Product) TableName() string {
	return "products"
}

// Annotate проставляет заранее посчитанные агрегаты отзывов
func (p *Product) Annotate(summary RatingSummary) {
	avg := summary.AvgRating
	count := summary.ReviewsCount
	p.AvgRating = &avg
	p.ReviewsCount = &count
}

// UserRef - автор отзыва. Берётся из JWT токена, клиент его не передаёт
type UserRef struct {
	ID       string `json:"id" gorm:"type:varchar(64);not null;uniqueIndex:idx_reviews_product_user,priority:2;index:idx_reviews_user"`
	Username string `json:"username" gorm:"type:varchar(150)"`
}

// String - отображаемое имя пользователя
func (u UserRef) String() string {
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}

// Review - отзыв пользователя о товаре. Один отзыв на пару (товар, пользователь)
type Review struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID `json:"product_id" gorm:"type:uuid;not null;uniqueIndex:idx_reviews_product_user,priority:1"`
	User      UserRef   `json:"user" gorm:"embedded;embeddedPrefix:user_"`
	Rating    int       `json:"rating" gorm:"not null;check:chk_reviews_rating,rating >= 1 AND rating <= 5"`
	Comment   string    `json:"comment" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы для GORM
func (Review) TableName() string {
	return "reviews"
}

// RatingSummary - агрегаты отзывов по одному товару
type RatingSummary struct {
	ProductID    uuid.UUID `json:"product_id"`
	AvgRating    float64   `json:"avg_rating"`
	ReviewsCount int64     `json:"reviews_count"`
}

// RoundRating округляет средний рейтинг до 2 знаков после запятой
func RoundRating(avg float64) float64 {
	return math.Round(avg*100) / 100
}

// ReviewEvent представляет событие изменения отзыва для Kafka
type ReviewEvent struct {
	EventType string    `json:"event_type"` // REVIEW_CREATED, REVIEW_UPDATED, REVIEW_DELETED
	ReviewID  uuid.UUID `json:"review_id"`
	ProductID uuid.UUID `json:"product_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventReviewCreated = "REVIEW_CREATED"
	EventReviewUpdated = "REVIEW_UPDATED"
	EventReviewDeleted = "REVIEW_DELETED"
)
