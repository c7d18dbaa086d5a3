package port

import (
	"context"
	"time"

	"github-star-organizer/internal/domain"
)

// Fetcher (采集员): 负责从 GitHub 拉取用户的 Star 仓库列表
// 全量模式翻完整个列表，增量模式遇到游标之前的记录就停
type Fetcher interface {
	// cursor 为 nil 时退化为全量抓取
	// 返回序列按 Star 时间倒序 (最新的在前)
	FetchStarred(ctx context.Context, mode string, cursor *time.Time) ([]*domain.Repo, error)
}

// Classifier (鉴定师): 负责调用 LLM 对单个仓库做分类和摘要
// 远程调用的重试/兜底由上层分类引擎负责
type Classifier interface {
	Classify(ctx context.Context, repo *domain.Repo) (*domain.Classification, error)
}

// Store (仓库管理员): 持有磁盘上的数据集，是唯一可以改它的人
type Store interface {
	// Load 读入数据集，文件损坏时尝试从备份恢复
	Load() (*domain.Dataset, error)

	// Merge 合并一批新抓取的仓库，幂等
	Merge(incoming []*domain.Repo) (domain.MergeResult, error)

	// PendingClassification 返回未分类的仓库
	PendingClassification() []*domain.Repo

	// Classified 返回已分类的仓库
	Classified() []*domain.Repo

	// ApplyClassifications 写回分类结果，未知 id 只告警不报错
	ApplyClassifications(results map[int64]domain.Classification)

	// Cursor 返回数据集中最新的 Star 时间，作为增量抓取的游标
	Cursor() *time.Time

	// SetFetchMode 记录本次运行使用的抓取模式和用户名
	SetFetchMode(mode, username string)

	// Persist 先备份旧快照再落盘，任何退出路径都不会留下不可读的数据
	Persist() error

	// Statistics 对当前数据集做纯统计
	Statistics() *domain.Statistics
}

// Cache 分类结果缓存，按内容指纹索引
// 只是优化层：丢了只多花几次 AI 调用，不影响正确性
type Cache interface {
	Get(fingerprint string) (*domain.Classification, bool)
	Put(fingerprint string, c *domain.Classification)
}

// Archiver (档案员): 把已分类的仓库镜像到数据库，供查询使用
type Archiver interface {
	Archive(ctx context.Context, repo *domain.Repo) error
	ByCategory(ctx context.Context, category string) ([]*domain.Repo, error)
	Search(ctx context.Context, query string) ([]*domain.Repo, error)
}

// Notifier (信使): 把一次同步的执行摘要推送出去
type Notifier interface {
	NotifySummary(ctx context.Context, stats *domain.Statistics, merge domain.MergeResult) error
}
