// Package main 是应用程序的入口点。
package main

import (
	"context"
	"file-processor/internal/config"
	"file-processor/internal/handler"
	"file-processor/internal/middleware"
	"file-processor/internal/pipeline"
	"file-processor/internal/repository"
	"file-processor/internal/schema"
	"file-processor/internal/service"
	"file-processor/pkg/database"
	"file-processor/pkg/kafka"
	"file-processor/pkg/log"
	"file-processor/pkg/pathutil"
	"file-processor/pkg/token"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	database.InitMySQL(cfg.Database.MySQL.DSN)
	defer database.Close()
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	// 4. 初始化 Repository
	fileRepo := repository.NewFileRepository(database.DB)
	schemaRepo := repository.NewSchemaRepository(database.DB)
	outcomeRepo := repository.NewOutcomeRepository(database.RDB)

	// 5. 初始化上传完成流程
	fs := afero.NewOsFs()
	if !cfg.ClamAV.Enabled {
		log.Warnf("ClamAV 扫描已关闭，上传文件将不经扫描直接入库")
	}
	processor := pipeline.NewProcessor(
		pipeline.NewMalwareGate(cfg.ClamAV.Enabled, pipeline.NewClamAV(cfg.ClamAV.Binary, cfg.ClamAV.Timeout)),
		pipeline.NewDirectoryPreparer(fs),
		pipeline.NewRelocator(fs),
		pipeline.NewMetadataPersister(fileRepo, pipeline.RetryPolicy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
			Retryable:       repository.IsTransient,
		}),
	)

	// 6. 初始化 Service (依赖注入)
	paths := pathutil.Builder{TempRoot: cfg.Storage.TempRoot, DestRoot: cfg.Storage.DestRoot}
	resolver := schema.NewResolver(schemaRepo, database.RDB, cfg.Schema.CacheTTL)
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()
	uploadService := service.NewUploadService(resolver, processor, outcomeRepo, producer, paths, fs)
	reconcileService := service.NewReconcileService(fileRepo, paths, fs, cfg.Reconcile.GracePeriod)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)

	// 7. 启动后台 Kafka 消费者
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		kafka.StartConsumer(consumerCtx, cfg.Kafka, uploadService)
	}()

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		fp := apiV1.Group("/file-processor")
		fp.Use(middleware.AuthMiddleware(jwtManager))
		{
			fp.POST("/upload", handler.NewUploadHandler(uploadService).FinalizeUpload)
		}

		admin := apiV1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtManager), middleware.AdminAuthMiddleware())
		{
			admin.GET("/orphans", handler.NewAdminHandler(reconcileService, resolver).ListOrphans)
			admin.POST("/schema/invalidate", handler.NewAdminHandler(reconcileService, resolver).InvalidateSchema)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 已开始的流程不响应取消，这里只是停止拉取新消息。
	stopConsumer()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("等待 Kafka 消费者退出超时")
	}
	log.Info("服务已优雅关闭")
}
