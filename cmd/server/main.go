package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	app "github.com/pymeadmin/backend/internal/application/treasury"
	"github.com/pymeadmin/backend/internal/domain/retention"
	"github.com/pymeadmin/backend/internal/infrastructure/auth"
	"github.com/pymeadmin/backend/internal/infrastructure/config"
	"github.com/pymeadmin/backend/internal/infrastructure/lock"
	"github.com/pymeadmin/backend/internal/infrastructure/logger"
	"github.com/pymeadmin/backend/internal/infrastructure/pdf"
	"github.com/pymeadmin/backend/internal/infrastructure/persistence"
	"github.com/pymeadmin/backend/internal/infrastructure/rates"
	"github.com/pymeadmin/backend/internal/interfaces/http/handler"
	"github.com/pymeadmin/backend/internal/interfaces/http/middleware"
	"github.com/pymeadmin/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting treasury backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	certificateRepo := persistence.NewGormCertificateRepository(db.DB)
	txManager := persistence.NewGormTxManager(db.DB)

	// Load the withholding rate table and build the engine
	table, err := rates.Load(cfg.Retention.RateTablePath, log)
	if err != nil {
		log.Fatal("Failed to load withholding rate table", zap.Error(err))
	}
	retentionEngine, err := retention.NewEngine(table)
	if err != nil {
		log.Fatal("Invalid withholding rate table", zap.Error(err))
	}

	// Monthly aggregation lock: redis serializes across instances,
	// memory is only valid for a single process
	monthlyLock, err := newMonthlyLock(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize monthly lock", zap.Error(err))
	}

	// Initialize application services
	paymentService := app.NewPaymentService(paymentRepo, txManager, retentionEngine, monthlyLock, log)

	// Initialize JWT service
	jwtService := auth.NewJWTService(cfg.JWT)

	// Certificate PDF renderer carries the withholding agent identity
	renderer := pdf.NewCertificateRenderer(cfg.Retention.AgentName, cfg.Retention.AgentTaxID)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack: request ID first so everything downstream logs it
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.HTTP.CORSAllowOrigins,
		AllowMethods: cfg.HTTP.CORSAllowMethods,
		AllowHeaders: cfg.HTTP.CORSAllowHeaders,
		MaxAge:       12 * time.Hour,
	}))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/health",
			"/api/v1/retention/categories",
			"/api/v1/retention/preview",
		},
	}))

	r.Register(handler.NewPaymentHandler(paymentService)).
		Register(handler.NewRetentionHandler(paymentService, table)).
		Register(handler.NewCertificateHandler(certificateRepo, renderer))

	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newMonthlyLock builds the lock backend selected in configuration
func newMonthlyLock(cfg *config.Config, log *zap.Logger) (lock.MonthlyLock, error) {
	if cfg.Retention.LockBackend == "redis" {
		redisLock, err := lock.NewRedisMonthlyLock(lock.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Retention.LockTTL)
		if err != nil {
			return nil, err
		}
		log.Info("Using redis monthly lock",
			zap.String("addr", cfg.Redis.Host),
			zap.Duration("ttl", cfg.Retention.LockTTL),
		)
		return redisLock, nil
	}
	log.Info("Using in-memory monthly lock")
	return lock.NewInMemoryMonthlyLock(), nil
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
