package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront/catalog-service/internal/app/catalog/entity"
	"storefront/pkg/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	ratingKeyPrefix  = "product_rating"
	versionKeyPrefix = "product_rating_version"
	serviceName      = "catalog-service"

	// версия должна жить дольше любого подсчета агрегатов
	ratingVersionTTL = 24 * time.Hour
	maxWatchRetries  = 3
)

func ratingKey(productID uuid.UUID) string {
	return ratingKeyPrefix + ":" + productID.String()
}

func versionKeys(productIDs []uuid.UUID) []string {
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, versionKeyPrefix+":"+id.String())
	}
	return keys
}

// parseVersion разбирает значение из MGET: nil означает, что версии еще нет
func parseVersion(value interface{}) (int64, error) {
	raw, ok := value.(string)
	if !ok {
		return 0, nil
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rating version %q: %w", raw, err)
	}
	return version, nil
}

type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// NewRedisClientFromClient оборачивает готовый клиент (используется в тестах с miniredis)
func NewRedisClientFromClient(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

func (r *RedisClient) GetRatingSummary(ctx context.Context, productID uuid.UUID) (*entity.RatingSummary, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpGet)
	defer timer.ObserveDuration()

	data, err := r.client.Get(ctx, ratingKey(productID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheMiss(serviceName, ratingKeyPrefix)
			return nil, nil
		}
		metrics.RecordRedisError(serviceName, metrics.RedisOpGet)
		return nil, fmt.Errorf("failed to get rating summary from cache: %w", err)
	}

	var summary entity.RatingSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rating summary: %w", err)
	}

	metrics.RecordCacheHit(serviceName, ratingKeyPrefix)
	return &summary, nil
}

// RatingVersions возвращает версии агрегатов товаров. Отсутствующая версия равна 0.
// Версию нужно прочитать до подсчета агрегатов и передать в SetRatingSummary
func (r *RedisClient) RatingVersions(ctx context.Context, productIDs ...uuid.UUID) (map[uuid.UUID]int64, error) {
	versions := make(map[uuid.UUID]int64, len(productIDs))
	if len(productIDs) == 0 {
		return versions, nil
	}

	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpGet)
	defer timer.ObserveDuration()

	values, err := r.client.MGet(ctx, versionKeys(productIDs)...).Result()
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpGet)
		return nil, fmt.Errorf("failed to get rating versions from cache: %w", err)
	}

	for i, id := range productIDs {
		version, err := parseVersion(values[i])
		if err != nil {
			return nil, err
		}
		versions[id] = version
	}
	return versions, nil
}

// SetRatingSummary пишет агрегат, только если версия товара не менялась с момента чтения
func (r *RedisClient) SetRatingSummary(ctx context.Context, summary entity.RatingSummary, version int64, ttl time.Duration) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpSet)
	defer timer.ObserveDuration()

	versions := map[uuid.UUID]int64{summary.ProductID: version}
	if err := r.setIfUnchanged(ctx, []entity.RatingSummary{summary}, versions, ttl); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpSet)
		return fmt.Errorf("failed to set rating summary in cache: %w", err)
	}

	return nil
}

// SetRatingSummaries пишет агрегаты пачкой; товары с изменившейся версией пропускаются
func (r *RedisClient) SetRatingSummaries(ctx context.Context, summaries []entity.RatingSummary, versions map[uuid.UUID]int64, ttl time.Duration) error {
	if len(summaries) == 0 {
		return nil
	}

	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpPipeline)
	defer timer.ObserveDuration()

	if err := r.setIfUnchanged(ctx, summaries, versions, ttl); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpPipeline)
		return fmt.Errorf("failed to set rating summaries in cache: %w", err)
	}

	return nil
}

// setIfUnchanged: WATCH на ключи версий, затем MULTI/EXEC только для актуальных агрегатов.
// Если версию изменили между чтением и EXEC, транзакция повторяется
func (r *RedisClient) setIfUnchanged(ctx context.Context, summaries []entity.RatingSummary, versions map[uuid.UUID]int64, ttl time.Duration) error {
	ids := make([]uuid.UUID, 0, len(summaries))
	payloads := make([][]byte, 0, len(summaries))
	for _, summary := range summaries {
		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to marshal rating summary: %w", err)
		}
		ids = append(ids, summary.ProductID)
		payloads = append(payloads, data)
	}
	keys := versionKeys(ids)

	txf := func(tx *redis.Tx) error {
		current, err := tx.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, id := range ids {
				version, err := parseVersion(current[i])
				if err != nil {
					return err
				}
				if version != versions[id] {
					// отзыв изменился после подсчета, агрегат устарел
					continue
				}
				pipe.Set(ctx, ratingKey(id), payloads[i], ttl)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := r.client.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

// DeleteRatingSummary сбрасывает агрегаты и поднимает версии товаров,
// чтобы уже начатые подсчеты не записали устаревшее значение
func (r *RedisClient) DeleteRatingSummary(ctx context.Context, productIDs ...uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}

	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpDel)
	defer timer.ObserveDuration()

	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, ratingKey(id))
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		for _, key := range versionKeys(productIDs) {
			pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, ratingVersionTTL)
		}
		return nil
	})
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpDel)
		return fmt.Errorf("failed to delete rating summary from cache: %w", err)
	}
	return nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
