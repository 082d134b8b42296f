// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"laodong-rag-go/internal/config"
	"laodong-rag-go/internal/handler"
	"laodong-rag-go/internal/middleware"
	"laodong-rag-go/internal/repository"
	"laodong-rag-go/internal/service"
	"laodong-rag-go/pkg/database"
	"laodong-rag-go/pkg/embedding"
	"laodong-rag-go/pkg/es"
	"laodong-rag-go/pkg/llm"
	"laodong-rag-go/pkg/log"
	"laodong-rag-go/pkg/scrape"
	"laodong-rag-go/pkg/token"
	"laodong-rag-go/pkg/websearch"
)

func main() {
	// 1. 初始化配置
	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化 Redis 与 Elasticsearch
	rdb, err := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}
	esClient, err := es.NewClient(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}

	// 4. 初始化 Repository
	memoryRepo := repository.NewMemoryRepository(repository.NewRedisKV(rdb))

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Algorithm)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	searchClient := websearch.NewClient(cfg.WebSearch)
	scraper := scrape.NewScraper()

	retrieverService := service.NewRetrieverService(embeddingClient, esClient)
	generatorService := service.NewGeneratorService(llmClient)
	webContextService := service.NewWebContextService(searchClient, scraper, cfg.WebSearch)
	ragService := service.NewRAGService(retrieverService, generatorService, webContextService, memoryRepo)
	refreshService := service.NewRefreshService(scraper, esClient, embeddingClient, cfg.Knowledge, cfg.Embedding.Model)

	// 6. 启动后台知识库更新任务：启动时跑一次，之后每天凌晨定时执行
	refreshCtx, cancelRefresh := context.WithCancel(context.Background())
	defer cancelRefresh()
	go refreshService.Start(refreshCtx)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), middleware.CORS(), gin.Recovery())

	// 8. 注册路由
	r.POST("/chat", middleware.AuthMiddleware(jwtManager), handler.NewChatHandler(ragService).Chat)
	r.POST("/generate", handler.NewGenerateHandler(ragService).Generate)

	// 9. 启动 HTTP 服务器并实现优雅停机
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

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 先停掉后台更新任务，再关闭 HTTP 服务器
	cancelRefresh()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
