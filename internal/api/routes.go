package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/api/handlers"
	"github.com/codyseavey/tcg-inventory/internal/config"
	"github.com/codyseavey/tcg-inventory/internal/services"
)

// Services bundles what the HTTP layer serves
type Services struct {
	Collection *services.CollectionService
	Templates  *services.TemplateService
	Snapshots  *services.SnapshotService
	Cards      handlers.CardSearcher
}

func SetupRouter(cfg config.ServerConfig, svc Services, log logrus.FieldLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log), requestMetrics())

	serveFrontend := cfg.FrontendPath != "" && dirExists(cfg.FrontendPath)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", handlers.OwnerHeader}
	corsConfig.AllowCredentials = false
	router.Use(cors.New(corsConfig))

	// Initialize handlers
	importHandler := handlers.NewImportHandler(svc.Collection, cfg.MaxUploadBytes, log)
	collectionHandler := handlers.NewCollectionHandler(svc.Collection, svc.Snapshots, log)
	priceHandler := handlers.NewPriceHandler(svc.Collection, log)
	templateHandler := handlers.NewTemplateHandler(svc.Templates, log)
	cardHandler := handlers.NewCardHandler(svc.Cards, log)

	api := router.Group("/api", handlers.RequireOwner())
	{
		imports := api.Group("/imports")
		{
			imports.POST("", importHandler.Import)
			imports.POST("/analyze", importHandler.Analyze)
		}
		api.GET("/progress", importHandler.Progress)

		inventory := api.Group("/inventory")
		{
			inventory.GET("", collectionHandler.GetInventory)
			inventory.POST("", collectionHandler.AddCard)
			inventory.DELETE("", collectionHandler.DeleteAll)
			inventory.GET("/stats", collectionHandler.GetStats)
			inventory.GET("/history", collectionHandler.GetValueHistory)
			inventory.POST("/refresh-missing", collectionHandler.RefreshMissing)
			inventory.POST("/refresh-all", collectionHandler.RefreshAll)
			inventory.POST("/refresh", collectionHandler.RefreshSelection)
			inventory.POST("/delete", collectionHandler.BulkDelete)
			inventory.GET("/:id", collectionHandler.GetCard)
			inventory.PUT("/:id", collectionHandler.UpdateCard)
			inventory.DELETE("/:id", collectionHandler.DeleteCard)
		}

		alerts := api.Group("/alerts")
		{
			alerts.GET("", priceHandler.GetAlerts)
			alerts.POST("/:id/read", priceHandler.MarkAlertRead)
		}

		templates := api.Group("/templates")
		{
			templates.GET("", templateHandler.GetTemplates)
			templates.POST("/:id/import", templateHandler.ImportTemplate)
		}

		api.GET("/cards/search", cardHandler.SearchCards)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Serve frontend static files
	if serveFrontend {
		indexPath := filepath.Join(cfg.FrontendPath, "index.html")
		router.Static("/assets", filepath.Join(cfg.FrontendPath, "assets"))
		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.File(indexPath)
		})
	}

	return router
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
