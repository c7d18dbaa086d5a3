package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github-star-organizer/internal/adapter/feishu"
	"github-star-organizer/internal/adapter/gemini"
	"github-star-organizer/internal/adapter/github"
	"github-star-organizer/internal/adapter/heuristic"
	"github-star-organizer/internal/adapter/repository"
	"github-star-organizer/internal/adapter/storage"
	"github-star-organizer/internal/config"
	"github-star-organizer/internal/domain"
	"github-star-organizer/internal/port"
	"github-star-organizer/internal/service"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	// 1. 命令行参数
	mode := flag.String("mode", "sync", "运行模式: sync (同步) / stats (统计) / export (导出)")
	fetchMode := flag.String("fetch", "", "抓取模式: full 或 incremental，默认读配置")
	skipClassify := flag.Bool("skip-classify", false, "跳过 AI 分类，只同步数据")
	concurrency := flag.Int("concurrency", 0, "分类并发数，默认读配置")
	cronSpec := flag.String("cron", "", "定时执行的 cron 表达式，为空则只执行一次")
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	output := flag.String("out", "", "导出文件路径 (仅 export 模式)")
	format := flag.String("format", "json", "导出格式: json 或 csv (仅 export 模式)")
	category := flag.String("category", "", "只导出指定分类 (仅 export 模式)")
	flag.Parse()

	// 2. 加载 .env 和配置文件
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ 配置加载失败: %v", err)
	}
	if *fetchMode != "" {
		cfg.FetchMode = *fetchMode
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}
	if cfg.FetchMode != domain.FetchModeFull && cfg.FetchMode != domain.FetchModeIncremental {
		log.Fatalf("❌ 未知的抓取模式: %s", cfg.FetchMode)
	}

	// 环境变量优先于配置文件
	if username := os.Getenv("GITHUB_USERNAME"); username != "" {
		cfg.Username = username
	}
	if cfg.Username == "" {
		log.Fatal("❌ 未配置 GitHub 用户名 (config.yaml 的 username 或 GITHUB_USERNAME 环境变量)")
	}

	store := storage.NewJSONStore(cfg)

	// 3. 根据模式分流
	switch *mode {
	case "sync":
		runSync(cfg, store, *skipClassify, *cronSpec)
	case "stats":
		runStats(store)
	case "export":
		runExport(store, *output, *format, *category)
	default:
		fmt.Println("❌ 未知模式，请使用 -mode=sync / stats / export")
	}
}

// buildSyncService 组装同步流水线的全部依赖
func buildSyncService(ctx context.Context, cfg *config.Config, store port.Store) (*service.SyncService, *storage.ClassificationCache) {
	githubToken := os.Getenv("GH_PAT")
	if githubToken == "" {
		log.Println("⚠️ 未设置 GH_PAT，使用匿名访问 (限制 60次/小时)")
	}
	fetcher := github.NewFetcher(githubToken, cfg.Username, cfg)

	// AI 分类器：没有密钥时为 nil，所有记录走启发式兜底
	var classifier port.Classifier
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		log.Println("⚠️ 未设置 GEMINI_API_KEY，将使用启发式方法进行分类")
	} else {
		geminiClassifier, err := gemini.NewClassifier(ctx, geminiKey, cfg.GeminiModel, cfg.Categories)
		if err != nil {
			log.Fatalf("❌ AI 初始化失败: %v", err)
		}
		classifier = geminiClassifier
	}

	fallback := heuristic.NewClassifier(cfg.KeywordRules, cfg.FallbackCategory())
	cache := storage.NewClassificationCache(cfg.CacheFile, 0)
	classifyService := service.NewClassifyService(classifier, fallback, cache, cfg)

	// 可选的数据库归档
	var archiver port.Archiver
	if cfg.PostgresDSN != "" {
		archive, err := repository.NewPostgresArchive(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("❌ 数据库初始化失败: %v", err)
		}
		archiver = archive
	}

	// 可选的飞书推送
	var notifier port.Notifier
	if cfg.FeishuWebhook != "" {
		notifier = feishu.NewNotifier(cfg.FeishuWebhook)
	}

	return service.NewSyncService(fetcher, store, classifyService, archiver, notifier, cfg.Username), cache
}

// runSync 执行同步，cronSpec 非空时按计划周期执行
func runSync(cfg *config.Config, store port.Store, skipClassify bool, cronSpec string) {
	ctx := context.Background()
	syncService, cache := buildSyncService(ctx, cfg, store)

	executeOnce := func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		if err := syncService.Run(runCtx, cfg.FetchMode, skipClassify); err != nil {
			log.Printf("❌ 同步失败: %v", err)
		}
		cache.Save()
	}

	if cronSpec == "" {
		executeOnce()
		return
	}

	// 定时执行模式
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cronSpec, executeOnce); err != nil {
		log.Fatalf("❌ cron 表达式无效 %q: %v", cronSpec, err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("⏰ 定时执行模式已启动 (cron: %s)\n", cronSpec)
	fmt.Println("按下 Ctrl+C 可以优雅停止程序")

	// 立即执行一次，之后按计划跑
	executeOnce()
	scheduler.Start()

	<-sigChan
	fmt.Println("\n👋 收到停止信号，正在退出...")
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
}

// runStats 打印当前数据集的统计信息
func runStats(store port.Store) {
	if _, err := store.Load(); err != nil {
		log.Fatalf("❌ 加载数据集失败: %v", err)
	}

	stats := store.Statistics()
	raw, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		log.Fatalf("❌ 序列化统计信息失败: %v", err)
	}
	fmt.Println(string(raw))
}

// runExport 导出数据集
func runExport(store port.Store, output, format, category string) {
	if output == "" {
		fmt.Println("⚠️ 请通过 -out 指定导出文件路径")
		return
	}

	if _, err := store.Load(); err != nil {
		log.Fatalf("❌ 加载数据集失败: %v", err)
	}

	exporter, ok := store.(interface {
		Export(outputFile, format, category string) error
	})
	if !ok {
		log.Fatal("❌ 当前存储不支持导出")
	}

	if err := exporter.Export(output, format, category); err != nil {
		log.Fatalf("❌ 导出失败: %v", err)
	}
	fmt.Printf("✅ 已导出到 %s (%s)\n", output, format)
}
