package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/catalog-service/internal/app/catalog/entity"
	"storefront/pkg/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const reviewsCollection = "reviews"

// reviewDocument - представление отзыва в MongoDB. UUID храним строками,
// чтобы документы читались без кастомных кодеков
type reviewDocument struct {
	ID        string    `bson:"_id"`
	ProductID string    `bson:"product_id"`
	UserID    string    `bson:"user_id"`
	Username  string    `bson:"username"`
	Rating    int       `bson:"rating"`
	Comment   string    `bson:"comment"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func newReviewDocument(review *entity.Review) reviewDocument {
	return reviewDocument{
		ID:        review.ID.String(),
		ProductID: review.ProductID.String(),
		UserID:    review.User.ID,
		Username:  review.User.Username,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt,
		UpdatedAt: review.UpdatedAt,
	}
}

func (d reviewDocument) toEntity() (entity.Review, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return entity.Review{}, fmt.Errorf("invalid review id %q: %w", d.ID, err)
	}
	productID, err := uuid.Parse(d.ProductID)
	if err != nil {
		return entity.Review{}, fmt.Errorf("invalid product id %q: %w", d.ProductID, err)
	}

	return entity.Review{
		ID:        id,
		ProductID: productID,
		User:      entity.UserRef{ID: d.UserID, Username: d.Username},
		Rating:    d.Rating,
		Comment:   d.Comment,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

type mongoReviewRepository struct {
	collection *mongo.Collection
}

// NewMongoReviewRepository создает репозиторий отзывов поверх MongoDB.
// Создает уникальный индекс (product_id, user_id) и индекс по user_id
func NewMongoReviewRepository(ctx context.Context, db *mongo.Database) (ReviewRepository, error) {
	collection := db.Collection(reviewsCollection)

	indexCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(indexCtx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "product_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetName("product_user_uniq").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("user_id_idx"),
		},
	})
	if err != nil {
		// Без уникального индекса гонка повторных отзывов не закрыта - это ошибка запуска
		return nil, fmt.Errorf("failed to create review indexes: %w", err)
	}

	return &mongoReviewRepository{collection: collection}, nil
}

func (r *mongoReviewRepository) Create(ctx context.Context, review *entity.Review) error {
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, newReviewDocument(review)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrReviewAlreadyExists
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

func (r *mongoReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Review, error) {
	var doc reviewDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	review, err := doc.toEntity()
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *mongoReviewRepository) GetByProductID(ctx context.Context, productID uuid.UUID) ([]entity.Review, error) {
	return r.find(ctx, bson.M{"product_id": productID.String()})
}

func (r *mongoReviewRepository) GetByUserID(ctx context.Context, userID string) ([]entity.Review, error) {
	return r.find(ctx, bson.M{"user_id": userID})
}

func (r *mongoReviewRepository) find(ctx context.Context, filter bson.M) ([]entity.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reviews: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []reviewDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}

	reviews := make([]entity.Review, 0, len(docs))
	for _, doc := range docs {
		review, err := doc.toEntity()
		if err != nil {
			// Битый документ не должен ломать весь список
			logger.Warn().Err(err).Str("review_id", doc.ID).Msg("Skipping malformed review document")
			continue
		}
		reviews = append(reviews, review)
	}

	return reviews, nil
}

func (r *mongoReviewRepository) Update(ctx context.Context, review *entity.Review) error {
	review.UpdatedAt = time.Now().UTC()

	update := bson.M{
		"$set": bson.M{
			"product_id": review.ProductID.String(),
			"rating":     review.Rating,
			"comment":    review.Comment,
			"updated_at": review.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": review.ID.String()}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrReviewAlreadyExists
		}
		return fmt.Errorf("failed to update review: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrReviewNotFound
	}

	return nil
}

func (r *mongoReviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrReviewNotFound
	}

	return nil
}

func (r *mongoReviewRepository) ExistsByProductAndUser(ctx context.Context, productID uuid.UUID, userID string) (bool, error) {
	filter := bson.M{"product_id": productID.String(), "user_id": userID}

	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check review existence: %w", err)
	}

	return count > 0, nil
}

type ratingGroup struct {
	ProductID string   `bson:"_id"`
	AvgRating *float64 `bson:"avg_rating"`
	Count     int64    `bson:"reviews_count"`
}

func (r *mongoReviewRepository) aggregateRatings(ctx context.Context, match bson.M) ([]ratingGroup, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$product_id"},
			{Key: "avg_rating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
			{Key: "reviews_count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []ratingGroup
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode rating aggregation: %w", err)
	}

	return groups, nil
}

func (r *mongoReviewRepository) AverageRating(ctx context.Context, productID uuid.UUID) (*float64, error) {
	groups, err := r.aggregateRatings(ctx, bson.M{"product_id": productID.String()})
	if err != nil {
		return nil, err
	}

	if len(groups) == 0 {
		return nil, nil
	}
	return groups[0].AvgRating, nil
}

func (r *mongoReviewRepository) CountReviews(ctx context.Context, productID uuid.UUID) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"product_id": productID.String()})
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}

func (r *mongoReviewRepository) SummariesByProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]entity.RatingSummary, error) {
	summaries := make(map[uuid.UUID]entity.RatingSummary, len(productIDs))
	if len(productIDs) == 0 {
		return summaries, nil
	}

	ids := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		ids = append(ids, id.String())
	}

	groups, err := r.aggregateRatings(ctx, bson.M{"product_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}

	for _, g := range groups {
		productID, err := uuid.Parse(g.ProductID)
		if err != nil {
			continue
		}
		summary := entity.RatingSummary{ProductID: productID, ReviewsCount: g.Count}
		if g.AvgRating != nil {
			summary.AvgRating = entity.RoundRating(*g.AvgRating)
		}
		summaries[productID] = summary
	}

	return summaries, nil
}
