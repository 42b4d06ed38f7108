package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ReviewsStorePostgres = "postgres"
	ReviewsStoreMongo    = "mongo"
)

// Config содержит все настройки Catalog Service
type Config struct {
	Server            ServerConfig
	Database          DatabaseConfig
	MongoDB           MongoDBConfig
	Redis             RedisConfig
	Kafka             KafkaConfig
	JWT               JWTConfig
	ReviewsStore      string // postgres или mongo
	CacheWarmSchedule string // расписание cron для прогрева кеша рейтингов
	LogLevel          string
	LogstashAddr      string
}

type ServerConfig struct {
	Host string // Адрес хоста (по умолчанию 0.0.0.0)
	Port string // Порт сервера (по умолчанию 8081)
}

// DatabaseConfig - подключение к PostgreSQL (товары и, по умолчанию, отзывы)
type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

// MongoDBConfig используется только при REVIEWS_STORE=mongo
type MongoDBConfig struct {
	URI      string
	Database string
}

// RedisConfig - кеш агрегатов рейтинга
type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	RatingTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string // Список брокеров Kafka (формат: host:port)
	Topic   string   // Топик для событий REVIEW_CREATED, REVIEW_UPDATED, REVIEW_DELETED
}

type JWTConfig struct {
	Secret string // Должен совпадать с секретом сервиса, выпускающего токены
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	// .env необязателен, в контейнере переменные приходят из окружения
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB value: %w", err)
	}

	ratingTTL, err := time.ParseDuration(getEnv("RATING_CACHE_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATING_CACHE_TTL value: %w", err)
	}

	autoMigrate, err := strconv.ParseBool(getEnv("DB_AUTO_MIGRATE", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_AUTO_MIGRATE value: %w", err)
	}

	reviewsStore := strings.ToLower(getEnv("REVIEWS_STORE", ReviewsStorePostgres))
	if reviewsStore != ReviewsStorePostgres && reviewsStore != ReviewsStoreMongo {
		return nil, fmt.Errorf("invalid REVIEWS_STORE value %q: expected %s or %s",
			reviewsStore, ReviewsStorePostgres, ReviewsStoreMongo)
	}

	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8081"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "catalog_service"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: autoMigrate,
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "catalog_reviews"),
		},
		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        redisDB,
			RatingTTL: ratingTTL,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getEnv("KAFKA_TOPIC", "review_events"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-this-in-production"),
		},
		ReviewsStore:      reviewsStore,
		CacheWarmSchedule: getEnv("CACHE_WARM_SCHEDULE", "@every 10m"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogstashAddr:      getEnv("LOGSTASH_ADDR", ""),
	}, nil
}

// DSN возвращает строку подключения к PostgreSQL в формате libpq
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c *RedisConfig) Address() string {
	return c.Host + ":" + c.Port
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
