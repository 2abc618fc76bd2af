package handler

import (
	"time"

	"bpmn-backend/internal/config"
	"bpmn-backend/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	BPMN *BPMNHandler
	LLM  *LLMHandler
	Auth *AuthHandler
	Chat *ChatHandler
	OCR  *OCRHandler
}

// RouterDeps limiter 为 nil 时不限流
type RouterDeps struct {
	Users   middleware.UserResolver
	Limiter middleware.RateLimiter
}

func NewRouter(cfg *config.Config, h Handlers, deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/health", "/metrics"))
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}))

	router.GET("/health", h.BPMN.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var limited gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.RateLimit.Enabled {
		limited = middleware.RateLimit(deps.Limiter, cfg.RateLimit.RequestsPerMinute)
	}

	// 流程图与模型调用
	gen := router.Group("/", limited)
	{
		gen.POST("/process_bpmn", h.BPMN.ProcessBPMN)
		gen.POST("/determine_request_type", h.BPMN.DetermineRequestType)
		gen.POST("/recommendations", h.BPMN.Recommendations)
		gen.POST("/api/bpmn/generate", h.BPMN.GenerateDiagram)
		gen.POST("/api/llm", h.LLM.Generate)
		gen.POST("/api/llm/stream", h.LLM.Stream)
		gen.POST("/ocr", h.OCR.Recognize)
	}

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/token", h.Auth.Token)
		auth.GET("/users/me", middleware.Auth(deps.Users), h.Auth.Me)
	}

	chat := router.Group("/chat", middleware.Auth(deps.Users))
	{
		chat.GET("/chats", h.Chat.ListChats)
		chat.POST("/chats", h.Chat.CreateChat)
		chat.PUT("/chats/:id", h.Chat.UpdateChat)
		chat.DELETE("/chats/:id", h.Chat.DeleteChat)
		chat.GET("/chat", h.Chat.ListEntries)
		chat.POST("/chat", h.Chat.AddEntry)
		chat.GET("/chat/:id", h.Chat.GetEntry)
	}

	return router
}
