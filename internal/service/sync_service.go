package service

import (
	"context"
	"fmt"
	"log"

	"github-star-organizer/internal/domain"
	"github-star-organizer/internal/port"
)

// SyncService 同步流水线
// 抓取 -> 合并 -> 落盘 -> 分类 -> 写回 -> 落盘 -> 统计
// 合并和分类都是幂等的，中断后重跑增量模式即可恢复
type SyncService struct {
	fetcher  port.Fetcher
	store    port.Store
	classify *ClassifyService
	archiver port.Archiver // 可选，nil 表示不归档
	notifier port.Notifier // 可选，nil 表示不推送
	username string
}

// NewSyncService 创建同步服务
func NewSyncService(
	fetcher port.Fetcher,
	store port.Store,
	classify *ClassifyService,
	archiver port.Archiver,
	notifier port.Notifier,
	username string,
) *SyncService {
	return &SyncService{
		fetcher:  fetcher,
		store:    store,
		classify: classify,
		archiver: archiver,
		notifier: notifier,
		username: username,
	}
}

// Run 执行一次完整同步
// 抓取阶段的认证/格式错误直接中止 (不落任何新数据)；
// 分类阶段的失败按记录隔离，失败的留到下次运行
func (s *SyncService) Run(ctx context.Context, mode string, skipClassification bool) error {
	fmt.Printf("🚀 开始同步 Star 项目 (模式: %s)...\n", mode)

	// 1. 加载数据集
	dataset, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("加载数据集失败: %w", err)
	}
	fmt.Printf("📂 已加载数据集: %d 个项目\n", dataset.Metadata.TotalCount)

	// 2. 抓取
	var cursor = s.store.Cursor()
	if mode == domain.FetchModeFull {
		cursor = nil
	}
	fmt.Println("📥 正在抓取 Star 列表...")
	fetched, err := s.fetcher.FetchStarred(ctx, mode, cursor)
	if err != nil {
		return fmt.Errorf("抓取 Star 列表失败: %w", err)
	}
	fmt.Printf("✅ 本次抓取到 %d 个项目\n", len(fetched))

	// 3. 合并并落盘
	merge, err := s.store.Merge(fetched)
	if err != nil {
		return fmt.Errorf("合并数据集失败: %w", err)
	}
	s.store.SetFetchMode(mode, s.username)
	fmt.Printf("🔀 合并完成: 新增 %d | 更新 %d | 未变化 %d\n", merge.Added, merge.Updated, merge.Unchanged)

	if err := s.store.Persist(); err != nil {
		return fmt.Errorf("保存数据集失败: %w", err)
	}

	// 4. 分类未处理的记录
	if skipClassification {
		fmt.Println("⏭️ 已跳过 AI 分类")
	} else {
		pending := s.store.PendingClassification()
		if len(pending) == 0 {
			fmt.Println("✅ 没有待分类的项目")
		} else {
			results := s.classify.ClassifyAll(ctx, pending)
			s.store.ApplyClassifications(results)

			if err := s.store.Persist(); err != nil {
				return fmt.Errorf("保存分类结果失败: %w", err)
			}
		}
	}

	// 5. 统计
	stats := s.store.Statistics()
	fmt.Printf("📊 数据集概况: 共 %d 个项目，已分类 %d 个 (%.1f%%)\n",
		stats.Basic.TotalRepositories,
		stats.Basic.ClassifiedRepositories,
		stats.Basic.ClassificationRate)

	// 6. 归档到数据库 (可选，失败不影响主流程)
	if s.archiver != nil {
		s.archiveClassified(ctx)
	}

	// 7. 推送执行摘要 (可选)
	if s.notifier != nil {
		if err := s.notifier.NotifySummary(ctx, stats, merge); err != nil {
			log.Printf("⚠️ 推送执行摘要失败: %v", err)
		}
	}

	fmt.Println("🎉 本轮同步完成")
	return nil
}

// archiveClassified 把已分类的仓库逐条镜像到数据库
// 单条失败只跳过，不影响其他记录
func (s *SyncService) archiveClassified(ctx context.Context) {
	fmt.Println("💾 正在归档已分类的项目...")

	archived := 0
	for _, repo := range s.store.Classified() {
		select {
		case <-ctx.Done():
			fmt.Println("⏰ 执行时间过长，提前结束归档")
			return
		default:
		}

		if err := s.archiver.Archive(ctx, repo); err != nil {
			log.Printf("❌ 归档项目 %s 失败: %v", repo.FullName, err)
			continue
		}
		archived++
	}

	fmt.Printf("✅ 已归档 %d 个项目\n", archived)
}
