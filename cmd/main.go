package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"document-archive-platform/internal/ai"
	"document-archive-platform/internal/config"
	"document-archive-platform/internal/logger"
	"document-archive-platform/internal/store/mongodb"
	"document-archive-platform/internal/telemetry"
	"document-archive-platform/middleware"
	"document-archive-platform/routes"
	"document-archive-platform/services"
)

const serviceName = "document-archive-platform"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	st, err := mongodb.NewStore(mongoClient, cfg.DBName, cfg.EmbeddingDimensions)
	if err != nil {
		log.Fatal("Failed to initialize store:", err)
	}

	// Redis backs rate limiting and the stats cache; both degrade to
	// no-ops without it.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting and stats caching disabled", "error", err)
		rdb = nil
	}

	var metrics *telemetry.Metrics
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer(serviceName, cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
		if metrics, err = telemetry.InitMetrics(); err != nil {
			logger.Warn("Metrics disabled", "error", err)
			metrics = nil
		}
	}

	embedder := ai.NewEmbeddingClient(cfg, metrics)
	searchService := services.NewSearchService(st, st, embedder)
	importService := services.NewImportService(st, st, st, st, metrics,
		time.Duration(cfg.AttachmentFetchTimeout)*time.Second, cfg.AttachmentMaxSize)
	exportService := services.NewExportService(st)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware(serviceName))
	}
	if rdb != nil {
		router.Use(middleware.RateLimit(rdb, cfg))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	routes.SetupSearchRoutes(router, st, searchService, metrics)
	routes.SetupArticleRoutes(router, st)
	routes.SetupDocumentRoutes(router, cfg, st, st)
	routes.SetupStatsRoutes(router, cfg, st, st, rdb)
	routes.SetupImportRoutes(router, cfg, importService, metrics)
	routes.SetupExportRoutes(router, exportService)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
