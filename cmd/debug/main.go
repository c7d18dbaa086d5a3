package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github-star-organizer/internal/adapter/gemini"
	"github-star-organizer/internal/adapter/github"
	"github-star-organizer/internal/adapter/heuristic"
	"github-star-organizer/internal/config"
	"github-star-organizer/internal/domain"

	"github.com/joho/godotenv"
)

// 手动冒烟：抓一页 Star 列表，对前 3 个做一次分类，什么都不落盘
func main() {
	_ = godotenv.Load()

	githubToken := os.Getenv("GH_PAT")
	geminiKey := os.Getenv("GEMINI_API_KEY")
	username := os.Getenv("GITHUB_USERNAME")
	if username == "" {
		log.Fatal("❌ 请设置 GITHUB_USERNAME")
	}

	cfg := config.Default()
	cfg.Username = username
	cfg.MaxStars = 10

	ctx := context.Background()

	fetcher := github.NewFetcher(githubToken, username, cfg)
	repos, err := fetcher.FetchStarred(ctx, domain.FetchModeFull, nil)
	if err != nil {
		log.Fatalf("❌ 抓取失败: %v", err)
	}
	fmt.Printf("✅ 抓取到 %d 个项目\n", len(repos))

	fallback := heuristic.NewClassifier(cfg.KeywordRules, cfg.FallbackCategory())

	for i, repo := range repos {
		if i >= 3 {
			break
		}
		fmt.Printf("\n--- %s (%s) ---\n", repo.FullName, repo.Language)
		fmt.Printf("描述: %s\n", repo.Description)

		if geminiKey != "" {
			classifier, err := gemini.NewClassifier(ctx, geminiKey, cfg.GeminiModel, cfg.Categories)
			if err != nil {
				log.Fatalf("❌ AI 初始化失败: %v", err)
			}
			result, err := classifier.Classify(ctx, repo)
			if err != nil {
				fmt.Printf("⚠️ AI 分类失败: %v\n", err)
			} else {
				fmt.Printf("AI 分类: %s\n摘要: %s\n", result.Category, result.Summary)
				continue
			}
		}

		result := fallback.Classify(repo)
		fmt.Printf("启发式分类: %s\n", result.Category)
	}
}
