// Package api provides the HTTP interface of the demo server.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tombstone/internal/domain/audit"
	"tombstone/internal/domain/product"
	"tombstone/pkg/logger"
)

// Config holds router dependencies.
type Config struct {
	// Logger for request logging
	Logger *logger.Logger

	// Products is the soft-deletable catalog service
	Products *product.Service

	// Audit is the append-only event service
	Audit *audit.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(Recovery())
	router.Use(Logger(cfg.Logger))
	router.Use(ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	base := NewBaseHandler()
	products := NewProductHandler(base, cfg.Products)
	events := NewAuditHandler(base, cfg.Audit)

	v1 := router.Group("/api/v1")
	{
		p := v1.Group("/products")
		{
			p.POST("", products.Create)
			p.GET("", products.List)
			p.GET("/:id", products.Get)
			p.PUT("/:id", products.Update)
			p.DELETE("/:id", products.Delete)
			p.POST("/:id/restore", products.Restore)
		}

		a := v1.Group("/audit-events")
		{
			a.POST("", events.Record)
			a.GET("", events.List)
			a.DELETE("/:id", events.Purge)
		}
	}

	return router
}
