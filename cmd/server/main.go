package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"k8s.io/klog/v2"

	"github.com/peerspark/backend/config"
	"github.com/peerspark/backend/internal/eventbus"
	"github.com/peerspark/backend/internal/handler"
	"github.com/peerspark/backend/internal/pkg/database"
	"github.com/peerspark/backend/internal/pkg/llm"
	"github.com/peerspark/backend/internal/pkg/transcript"
	"github.com/peerspark/backend/internal/repository"
	"github.com/peerspark/backend/internal/router"
	"github.com/peerspark/backend/internal/service"
	"github.com/peerspark/backend/internal/service/coursegen"
	"github.com/peerspark/backend/internal/service/orchestrator"
	"github.com/peerspark/backend/internal/subscriber"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// 初始化数据库
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化 Repository
	runRepo := repository.NewRunRepository(db)
	unitRepo := repository.NewUnitRepository(db)

	// 事件总线与订阅者
	bus := eventbus.NewRunEventBus()
	subscriber.NewRunEventSubscriber().Register(bus)

	// 生成客户端按配置选择实现
	client, err := buildGenerationClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize generation client: %v", err)
	}

	fetcher := transcript.NewHTTPFetcher(cfg.Generation.TranscriptLimit)

	// 初始化 Service
	runService := service.NewRunService(cfg, runRepo, unitRepo, client, fetcher, bus)

	// 初始化全局编排器
	// workers 不宜过大，避免打爆 LLM 配额
	runExecutor := &runExecutorAdapter{runService: runService}
	if err := orchestrator.InitGlobalOrchestrator(cfg.Generation.Workers, runExecutor); err != nil {
		log.Fatalf("Failed to initialize orchestrator: %v", err)
	}
	runService.SetScheduler(orchestrator.GetGlobalOrchestrator())
	defer orchestrator.ShutdownGlobalOrchestrator()

	// 启动时回收滞留在生成态的运行
	cleanupStuckRuns(runService)

	// 初始化 Handler
	runHandler := handler.NewRunHandler(runService)
	configHandler := handler.NewConfigHandler(cfg)

	// 设置路由
	r := router.Setup(cfg, runHandler, configHandler)

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// buildGenerationClient 按 provider 选择生成客户端实现
func buildGenerationClient(cfg *config.Config) (coursegen.GenerationClient, error) {
	switch cfg.LLM.Provider {
	case "eino":
		return llm.NewEinoModel(cfg)
	default:
		return llm.NewClient(cfg), nil
	}
}

// cleanupStuckRuns 清理启动前滞留的运行
func cleanupStuckRuns(runService *service.RunService) {
	timeout := 30 * time.Minute

	if err := runService.CleanupStuckRuns(context.Background(), timeout); err != nil {
		klog.V(6).Infof("清理滞留运行失败: %v", err)
	}
}
