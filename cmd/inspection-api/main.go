package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"aero-portal/maintenance-portal/inspection-backend/internal/config"
	"aero-portal/maintenance-portal/inspection-backend/internal/documents"
	"aero-portal/maintenance-portal/inspection-backend/internal/inspection"
	"aero-portal/maintenance-portal/inspection-backend/pkg/cache"
	"aero-portal/maintenance-portal/inspection-backend/pkg/logger"
	"aero-portal/maintenance-portal/inspection-backend/pkg/middleware"
	"aero-portal/maintenance-portal/inspection-backend/pkg/pdf"
	"aero-portal/maintenance-portal/inspection-backend/pkg/storage"
)

func main() {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Environment, cfg.Logging.Level)
	defer log.Sync()

	ctx := context.Background()

	// Connect to database
	db, err := sqlx.Connect(cfg.Database.Driver, cfg.Database.GetDatabaseURL())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	if cfg.Database.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	if err := inspection.Migrate(ctx, db); err != nil {
		log.Fatal("Failed to migrate schema", zap.Error(err))
	}

	// Document storage
	var objects storage.S3Client
	switch cfg.Storage.Provider {
	case "s3":
		objects, err = storage.NewS3Client(ctx, storage.S3Options{
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
		})
		if err != nil {
			log.Fatal("Failed to initialize S3 client", zap.Error(err))
		}
	default:
		log.Warn("Using in-memory document storage; rendered forms are lost on restart")
		objects = storage.NewMemoryClient()
	}

	// Check definitions cache
	var definitionsCache cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer redisCache.Close()
		definitionsCache = redisCache
	} else {
		memoryCache := cache.NewMemoryCache(time.Minute)
		defer memoryCache.Close()
		definitionsCache = memoryCache
	}

	// Initialize inspection module
	repo := inspection.NewSQLRepository(db)
	definitions := inspection.NewCachedDefinitionSource(repo, definitionsCache, cfg.Inspection.DefinitionsCacheTTL, log)
	renderer := documents.NewRenderer(
		documents.NewPDFService(pdf.NewGenerator(pdf.DefaultOptions())),
		documents.NewStorageProvider(objects, cfg.Storage.Bucket),
		log,
	)
	sessions := inspection.NewSessionStore()
	service := inspection.NewService(repo, definitions, renderer, sessions, inspection.ServiceConfig{
		UpstreamTimeout:   cfg.Inspection.UpstreamTimeout,
		DownloadURLExpiry: cfg.Inspection.DownloadURLExpiry,
	}, log)
	handler := inspection.NewHandler(service, log)

	if cfg.Inspection.SessionSweepSchedule != "" {
		janitor := inspection.NewSessionJanitor(repo, sessions, cfg.Inspection.UpstreamTimeout, log)
		if err := janitor.Start(ctx, cfg.Inspection.SessionSweepSchedule); err != nil {
			log.Fatal("Failed to start session janitor", zap.Error(err))
		}
		defer janitor.Stop()
	}

	// Setup Router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(logger.GinMiddleware(log))
	router.Use(middleware.CORS())

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		state := "healthy"
		if err := db.PingContext(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		c.JSON(status, gin.H{
			"status":    state,
			"timestamp": time.Now(),
		})
	})

	api := router.Group("/api/v1")
	api.Use(middleware.Auth([]byte(cfg.Security.JWTSecret), log))
	handler.RegisterRoutes(api)

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("addr", srv.Addr), zap.String("environment", cfg.Environment))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exiting")
}
