package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"storefront/catalog-service/internal/app/catalog/config"
	"storefront/catalog-service/internal/app/catalog/entity"
	"storefront/catalog-service/internal/app/catalog/handler"
	"storefront/catalog-service/internal/app/catalog/processor"
	"storefront/catalog-service/internal/app/catalog/repository"
	"storefront/catalog-service/internal/app/catalog/service"
	"storefront/catalog-service/internal/app/catalog/util"
	"storefront/pkg/logger"
)

const serviceName = "catalog-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(serviceName, cfg.LogLevel)
	if cfg.LogstashAddr != "" {
		if err := logger.InitLogstash(cfg.LogstashAddr, serviceName, cfg.LogLevel); err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Logstash, using stdout only")
		} else {
			logger.Info().Str("logstash_addr", cfg.LogstashAddr).Msg("Connected to Logstash")
		}
	}

	db, err := connectDB(cfg.Database, cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	logger.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.DBName).
		Msg("Connected to PostgreSQL")

	if cfg.Database.AutoMigrate {
		models := []interface{}{&entity.Product{}}
		if cfg.ReviewsStore == config.ReviewsStorePostgres {
			models = append(models, &entity.Review{})
		}
		if err := db.AutoMigrate(models...); err != nil {
			logger.Fatal().Err(err).Msg("Failed to migrate database schema")
		}
	}

	productRepo := repository.NewProductRepository(db)

	var reviewRepo repository.ReviewRepository
	switch cfg.ReviewsStore {
	case config.ReviewsStoreMongo:
		mongoClient, err := connectMongoDB(cfg.MongoDB)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := mongoClient.Disconnect(ctx); err != nil {
				logger.Error().Err(err).Msg("Error disconnecting from MongoDB")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		reviewRepo, err = repository.NewMongoReviewRepository(ctx, mongoClient.Database(cfg.MongoDB.Database))
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize MongoDB review store")
		}
		logger.Info().
			Str("database", cfg.MongoDB.Database).
			Msg("Reviews are stored in MongoDB")
	default:
		reviewRepo = repository.NewReviewRepository(db)
		logger.Info().Msg("Reviews are stored in PostgreSQL")
	}

	redisClient, err := util.NewRedisClient(cfg.Redis.Address(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	logger.Info().
		Str("address", cfg.Redis.Address()).
		Dur("rating_ttl", cfg.Redis.RatingTTL).
		Msg("Connected to Redis")

	kafkaProducer := util.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer kafkaProducer.Close()
	logger.Info().
		Str("topic", cfg.Kafka.Topic).
		Msg("Initialized Kafka producer")

	catalogService := service.NewCatalogService(productRepo, reviewRepo, redisClient, cfg.Redis.RatingTTL)
	reviewService := service.NewReviewService(reviewRepo, productRepo, redisClient, kafkaProducer)

	scheduler := processor.NewCronScheduler(catalogService)
	if err := scheduler.Start(context.Background(), cfg.CacheWarmSchedule); err != nil {
		// без прогрева кеш заполняется при чтении
		logger.Error().Err(err).Msg("Failed to start rating cache warmer")
	}
	defer scheduler.Stop()

	authMiddleware := handler.NewAuthMiddleware(cfg.JWT.Secret)
	router := handler.SetupRoutes(
		handler.NewCatalogHandler(catalogService),
		handler.NewReviewHandler(reviewService),
		authMiddleware,
	)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("Starting Catalog Service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Catalog Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
		return
	}

	logger.Info().Msg("Catalog Service stopped gracefully")
}

// connectDB открывает gorm поверх pgx с повторными попытками: в Docker PostgreSQL поднимается позже сервиса
func connectDB(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	gormLevel := gormlogger.Warn
	if logLevel == "debug" {
		gormLevel = gormlogger.Info
	}
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLevel),
	}

	var db *gorm.DB
	var err error

	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
		if err == nil {
			sqlDB, sqlErr := db.DB()
			if sqlErr != nil {
				err = sqlErr
			} else if err = sqlDB.Ping(); err == nil {
				sqlDB.SetMaxOpenConns(25)
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
				sqlDB.SetConnMaxIdleTime(1 * time.Minute)
				return db, nil
			}
		}
		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to database, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
}

func connectMongoDB(cfg config.MongoDBConfig) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(cfg.URI)

	var client *mongo.Client
	var err error

	for i := 0; i < 10; i++ {
		client, err = tryConnectMongoDB(clientOptions)
		if err == nil {
			return client, nil
		}
		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to MongoDB, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect to MongoDB after 10 attempts: %w", err)
}

func tryConnectMongoDB(clientOptions *options.ClientOptions) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}
