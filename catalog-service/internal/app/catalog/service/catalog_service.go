package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/catalog-service/internal/app/catalog/entity"
	"storefront/catalog-service/internal/app/catalog/repository"
	"storefront/catalog-service/internal/app/catalog/serializer"
	"storefront/catalog-service/internal/app/catalog/util"
	"storefront/pkg/logger"

	"github.com/google/uuid"
)

var (
	// Ошибки бизнес-логики для обработки в handlers
	ErrProductNotFound = errors.New("product not found")
)

// CatalogService обрабатывает бизнес-логику товаров.
// Агрегаты отзывов для одного товара берутся из Redis, для списка - одним GROUP BY
type CatalogService struct {
	productRepo repository.ProductRepository
	reviewRepo  repository.ReviewRepository
	ratingCache util.RatingCache
	serializer  *serializer.ProductSerializer
	ratingTTL   time.Duration
}

// NewCatalogService создает новый сервис каталога с внедрением зависимостей
func NewCatalogService(
	productRepo repository.ProductRepository,
	reviewRepo repository.ReviewRepository,
	ratingCache util.RatingCache,
	ratingTTL time.Duration,
) *CatalogService {
	return &CatalogService{
		productRepo: productRepo,
		reviewRepo:  reviewRepo,
		ratingCache: ratingCache,
		serializer:  serializer.NewProductSerializer(reviewRepo),
		ratingTTL:   ratingTTL,
	}
}

// CreateProduct создает новый товар. У нового товара отзывов нет,
// поэтому агрегаты проставляются сразу нулями без запросов к БД
func (s *CatalogService) CreateProduct(ctx context.Context, req *entity.CreateProductRequest) (*entity.ProductRepresentation, error) {
	product := &entity.Product{
		ID:        uuid.New(),
		Name:      req.Name,
		Price:     req.Price,
		CreatedAt: time.Now(),
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	product.Annotate(entity.RatingSummary{ProductID: product.ID})

	logger.Info().
		Str("product_id", product.ID.String()).
		Str("name", product.Name).
		Msg("Product created")

	return s.serializer.Represent(ctx, product)
}

// GetProduct получает товар по ID
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*entity.ProductRepresentation, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return s.representCached(ctx, product)
}

// representCached: при попадании в кеш агрегаты считаются посчитанными заранее,
// при промахе их считает сериализатор, а результат кладется в кеш.
// Версия читается до подсчета: если отзыв изменится раньше записи, кеш не обновится
func (s *CatalogService) representCached(ctx context.Context, product *entity.Product) (*entity.ProductRepresentation, error) {
	summary, err := s.ratingCache.GetRatingSummary(ctx, product.ID)
	if err != nil {
		// Кеш недоступен - считаем из БД
		logger.Warn().Err(err).Str("product_id", product.ID.String()).Msg("Failed to read rating cache")
	}

	if summary != nil {
		product.Annotate(*summary)
		return s.serializer.Represent(ctx, product)
	}

	versions, versionErr := s.ratingCache.RatingVersions(ctx, product.ID)

	repr, err := s.serializer.Represent(ctx, product)
	if err != nil {
		return nil, err
	}

	if versionErr != nil {
		logger.Warn().Err(versionErr).Str("product_id", product.ID.String()).Msg("Failed to read rating version, skipping cache")
		return repr, nil
	}

	computed := entity.RatingSummary{
		ProductID:    product.ID,
		AvgRating:    repr.AvgRating,
		ReviewsCount: repr.ReviewsCount,
	}
	if err := s.ratingCache.SetRatingSummary(ctx, computed, versions[product.ID], s.ratingTTL); err != nil {
		logger.Warn().Err(err).Str("product_id", product.ID.String()).Msg("Failed to cache rating summary")
	}

	return repr, nil
}

// GetAllProducts получает все товары. Агрегаты считаются одним запросом на весь список
func (s *CatalogService) GetAllProducts(ctx context.Context) ([]entity.ProductRepresentation, error) {
	products, err := s.productRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	if _, err := s.annotateAll(ctx, products); err != nil {
		return nil, err
	}

	return s.serializer.RepresentMany(ctx, products)
}

// annotateAll проставляет агрегаты всем товарам; товары без отзывов получают нули
func (s *CatalogService) annotateAll(ctx context.Context, products []entity.Product) ([]entity.RatingSummary, error) {
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}

	found, err := s.reviewRepo.SummariesByProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}

	summaries := make([]entity.RatingSummary, 0, len(products))
	for i := range products {
		summary, ok := found[products[i].ID]
		if !ok {
			summary = entity.RatingSummary{ProductID: products[i].ID}
		}
		products[i].Annotate(summary)
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// UpdateProduct обновляет только переданные поля
func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, req *entity.UpdateProductRequest) (*entity.ProductRepresentation, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if req.Name != "" {
		product.Name = req.Name
	}
	if req.Price != nil {
		product.Price = *req.Price
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return s.representCached(ctx, product)
}

// DeleteProduct удаляет товар вместе с отзывами и сбрасывает кеш агрегатов
func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if err := s.ratingCache.DeleteRatingSummary(ctx, id); err != nil {
		logger.Warn().Err(err).Str("product_id", id.String()).Msg("Failed to invalidate rating cache")
	}

	return nil
}

// WarmRatingCache пересчитывает агрегаты всех товаров и записывает их в Redis.
// Товары, чьи отзывы изменились во время прогона, пропускаются.
// Вызывается по расписанию из processor.CronScheduler
func (s *CatalogService) WarmRatingCache(ctx context.Context) error {
	products, err := s.productRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to get products: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	versions, err := s.ratingCache.RatingVersions(ctx, ids...)
	if err != nil {
		return fmt.Errorf("failed to read rating versions: %w", err)
	}

	summaries, err := s.annotateAll(ctx, products)
	if err != nil {
		return err
	}

	if err := s.ratingCache.SetRatingSummaries(ctx, summaries, versions, s.ratingTTL); err != nil {
		return fmt.Errorf("failed to store rating summaries: %w", err)
	}

	logger.Info().Int("products", len(summaries)).Msg("Rating cache warmed")
	return nil
}
