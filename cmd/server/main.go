package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-mps/internal/config"
	"github.com/bitfantasy/nimo-mps/internal/handler"
	"github.com/bitfantasy/nimo-mps/internal/middleware"
	"github.com/bitfantasy/nimo-mps/internal/repository"
	"github.com/bitfantasy/nimo-mps/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-mps service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := repository.Migrate(db); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// 初始化Redis（BOM状态缓存，可关闭）
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = initRedis(cfg.Redis)
	}

	// 初始化MinIO（导入文件归档，可关闭）
	var minioClient *minio.Client
	if cfg.MinIO.Enabled {
		minioClient, err = initMinIO(cfg.MinIO)
		if err != nil {
			zapLogger.Fatal("Failed to connect to minio", zap.Error(err))
		}
	}

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, rdb, minioClient, cfg)
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func initMinIO(cfg config.MinIOConfig) (*minio.Client, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 物料管理
		items := v1.Group("/items")
		{
			items.GET("", h.Item.List)
			items.POST("", h.Item.Create)
			items.GET("/:id", h.Item.Get)
			items.PUT("/:id", h.Item.Update)
			items.DELETE("/:id", h.Item.Delete)
			items.GET("/:id/parent-candidates", h.Item.ParentCandidates)
			items.GET("/:id/children", h.Item.Children)
			items.GET("/:id/hierarchy", h.Item.Hierarchy)
		}

		// BOM管理
		boms := v1.Group("/boms")
		{
			boms.GET("", h.BOM.List)
			boms.POST("", h.BOM.Create)
			boms.GET("/expand", h.BOM.Expand)
			boms.POST("/import-matrix", h.BOM.ImportMatrix)
			boms.GET("/export-matrix", h.BOM.ExportMatrix)
			boms.GET("/:id", h.BOM.Get)
			boms.PUT("/:id", h.BOM.Update)
			boms.DELETE("/:id", h.BOM.Delete)
			boms.POST("/:id/lines", h.BOM.AddLine)
			boms.PUT("/:id/lines/:lineId", h.BOM.UpdateLine)
			boms.DELETE("/:id/lines/:lineId", h.BOM.DeleteLine)
			boms.GET("/:id/status", h.BOM.Status)
			boms.GET("/:id/validate", h.BOM.Validate)
		}

		// 操作历史
		history := v1.Group("/history")
		{
			history.GET("", h.History.List)
			history.GET("/export", h.History.Export)
		}

		// 物料需求计划
		v1.POST("/mrp/plan", h.Planner.Calculate)

		// 排产管理
		orders := v1.Group("/scheduling/orders")
		{
			orders.GET("", h.Scheduling.ListOrders)
			orders.POST("", h.Scheduling.CreateOrder)
			orders.GET("/:id", h.Scheduling.GetOrder)
			orders.PUT("/:id", h.Scheduling.UpdateOrder)
			orders.DELETE("/:id", h.Scheduling.DeleteOrder)
			orders.POST("/:id/products", h.Scheduling.AddProduct)
			orders.DELETE("/:id/products/:itemId", h.Scheduling.RemoveProduct)
			orders.POST("/:id/lines", h.Scheduling.UpsertLines)
			orders.GET("/:id/kanban", h.Scheduling.Kanban)
			orders.POST("/:id/ingest", h.Scheduling.Ingest)
		}
	}
}
