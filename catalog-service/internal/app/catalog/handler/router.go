package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/pkg/logger"
	"storefront/pkg/metrics"
)

// SetupRoutes настраивает все маршруты Catalog Service
func SetupRoutes(catalogHandler *CatalogHandler, reviewHandler *ReviewHandler, authMiddleware *AuthMiddleware) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(logger.GinLoggerMiddleware())
	router.Use(metrics.GinPrometheusMiddleware("catalog-service"))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowWildcard:    true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", logger.RequestIDHeader},
		ExposeHeaders:    []string{logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint - публичный, без аутентификации
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "catalog-service",
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	products := router.Group("/products")
	products.Use(authMiddleware.Authenticate())
	{
		products.GET("", catalogHandler.GetAllProducts)
		products.GET("/:id", catalogHandler.GetProduct)

		// Изменять каталог могут только manager и admin
		products.POST("", authMiddleware.RequireRole("manager", "admin"), catalogHandler.CreateProduct)
		products.PUT("/:id", authMiddleware.RequireRole("manager", "admin"), catalogHandler.UpdateProduct)
		products.DELETE("/:id", authMiddleware.RequireRole("admin"), catalogHandler.DeleteProduct)
	}

	// Отзывы оставляет любой аутентифицированный пользователь
	reviews := router.Group("/reviews")
	reviews.Use(authMiddleware.Authenticate())
	{
		reviews.POST("", reviewHandler.CreateReview)
		reviews.GET("/me", reviewHandler.GetMyReviews)
		reviews.GET("/product/:product_id", reviewHandler.GetReviewsByProduct)
		reviews.GET("/:review_id", reviewHandler.GetReview)
		reviews.PATCH("/:review_id", reviewHandler.UpdateReview)
		reviews.DELETE("/:review_id", reviewHandler.DeleteReview)
	}

	return router
}
