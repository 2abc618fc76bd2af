package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bpmn-backend/internal/bpmn"
	"bpmn-backend/internal/config"
	"bpmn-backend/internal/handler"
	"bpmn-backend/internal/llm"
	"bpmn-backend/internal/middleware"
	"bpmn-backend/internal/ocr"
	"bpmn-backend/internal/service"
	"bpmn-backend/internal/storage"
	"bpmn-backend/internal/utils"
	"bpmn-backend/pkg/logger"
	"bpmn-backend/pkg/tracer"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	shutdownTracer, err := tracer.Init(context.Background(), tracer.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Enabled:     cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatalf("Failed to init tracer: %v", err)
	}

	// 存储
	store, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to create storage: %v", err)
	}
	if err := store.Init(); err != nil {
		logger.Fatalf("Failed to init storage: %v", err)
	}

	// 流程图流水线
	client := llm.NewClient(cfg.LLM)
	prompts, err := bpmn.NewPrompts(cfg.LLM.SystemPrompt)
	if err != nil {
		logger.Fatalf("Failed to load prompts: %v", err)
	}
	renderer := bpmn.NewCommandRenderer(cfg.Renderer)

	var opts []bpmn.Option
	if cfg.Renderer.Archive {
		archive := storage.NewDiagramDisk(cfg.Storage.DataDir)
		if err := archive.Init(); err != nil {
			logger.Fatalf("Failed to init diagram archive: %v", err)
		}
		opts = append(opts, bpmn.WithArchive(archive))
	}
	pipeline := bpmn.NewPipeline(client, renderer, prompts, cfg.Pipeline, renderer.Format(), opts...)

	// 初始化服务
	jwt := utils.NewJWTManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL)
	authService := service.NewAuthService(store, jwt)
	chatService := service.NewChatService(store)

	deps := handler.RouterDeps{Users: authService}
	var rdb *redis.Client
	if cfg.RateLimit.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warnf("Redis unavailable, rate limiting will fail open: %v", err)
		}
		deps.Limiter = middleware.NewRedisRateLimiter(rdb)
	}

	// 创建路由
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = logger.Writer()
	router := handler.NewRouter(cfg, handler.Handlers{
		BPMN: handler.NewBPMNHandler(pipeline),
		LLM:  handler.NewLLMHandler(client),
		Auth: handler.NewAuthHandler(authService),
		Chat: handler.NewChatHandler(chatService),
		OCR:  handler.NewOCRHandler(ocr.NewService(cfg.OCR)),
	}, deps)

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// 启动服务器
	go func() {
		logger.Infof("服务器启动在端口 %d (model=%s, storage=%s)", cfg.Server.Port, cfg.LLM.Model, cfg.Storage.Type)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待信号优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务器正在关闭...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("服务器关闭失败: %v", err)
	}
	if rdb != nil {
		rdb.Close()
	}
	if err := store.Close(); err != nil {
		logger.Errorf("存储关闭失败: %v", err)
	}
	if err := shutdownTracer(ctx); err != nil {
		logger.Errorf("Tracer 关闭失败: %v", err)
	}
	logger.Info("服务器已关闭")
}
