package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github-star-organizer/internal/common"
	"github-star-organizer/internal/config"
	"github-star-organizer/internal/domain"
)

// JSONStore 实现了 port.Store 接口
// 数据集以 JSON 文件形式落盘，每次覆盖前先做一份轮转备份，
// 写坏了也能从备份恢复
type JSONStore struct {
	dataFile    string
	backupDir   string
	keepBackups int
	recentN     int

	mu      sync.Mutex
	dataset *domain.Dataset
	nowFunc func() time.Time // 便于测试注入当前时间
}

// NewJSONStore 创建数据集存储
func NewJSONStore(cfg *config.Config) *JSONStore {
	return &JSONStore{
		dataFile:    cfg.DataFile,
		backupDir:   cfg.BackupDir,
		keepBackups: cfg.KeepBackups,
		recentN:     cfg.RecentCount,
		nowFunc:     time.Now,
	}
}

// Load 读入数据集
// 文件不存在 -> 新建空数据集；文件损坏 -> 尝试从最新备份恢复
func (s *JSONStore) Load() (*domain.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.dataFile)
	if os.IsNotExist(err) {
		log.Printf("📂 数据文件不存在，创建空数据集: %s", s.dataFile)
		s.dataset = domain.NewDataset()
		return s.dataset, nil
	}
	if err != nil {
		return nil, common.WrapError(common.ErrCodeStorage, common.KindInternal, "读取数据文件失败", err)
	}

	var dataset domain.Dataset
	if err := json.Unmarshal(raw, &dataset); err != nil {
		log.Printf("⚠️ 数据文件损坏，尝试从备份恢复: %v", err)
		restored, restoreErr := s.restoreFromBackup()
		if restoreErr != nil {
			return nil, restoreErr
		}
		s.dataset = restored
		return s.dataset, nil
	}

	s.dataset = &dataset
	return s.dataset, nil
}

// Merge 把一批新抓取的仓库合并进数据集，幂等
func (s *JSONStore) Merge(incoming []*domain.Repo) (domain.MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dataset == nil {
		return domain.MergeResult{}, common.NewError(common.ErrCodeStorage, common.KindInternal, "数据集尚未加载")
	}

	result := s.dataset.Merge(incoming)
	now := s.nowFunc().UTC()
	s.dataset.Metadata.LastFetchTime = &now
	return result, nil
}

// PendingClassification 返回所有未分类的仓库
func (s *JSONStore) PendingClassification() []*domain.Repo {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dataset == nil {
		return nil
	}
	return s.dataset.Pending()
}

// Classified 返回所有已分类的仓库
func (s *JSONStore) Classified() []*domain.Repo {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dataset == nil {
		return nil
	}
	var classified []*domain.Repo
	for _, repo := range s.dataset.Repositories {
		if repo.IsClassified {
			classified = append(classified, repo)
		}
	}
	return classified
}

// ApplyClassifications 写回分类结果，未知 id 只告警不报错
func (s *JSONStore) ApplyClassifications(results map[int64]domain.Classification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dataset == nil || len(results) == 0 {
		return
	}

	unknown := s.dataset.ApplyClassifications(results)
	for _, id := range unknown {
		log.Printf("⚠️ 分类结果中的仓库 %d 不在数据集中，已忽略", id)
	}
	now := s.nowFunc().UTC()
	s.dataset.Metadata.LastClassificationTime = &now
}

// Cursor 返回增量抓取的游标
func (s *JSONStore) Cursor() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dataset == nil {
		return nil
	}
	return s.dataset.Cursor()
}

// SetFetchMode 记录本次运行使用的抓取模式
func (s *JSONStore) SetFetchMode(mode, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dataset == nil {
		return
	}
	s.dataset.Metadata.FetchMode = mode
	s.dataset.Metadata.Username = username
}

// Persist 落盘：先备份旧快照，再写临时文件并原子替换
// 整个写入过程持锁，任何退出路径都不会留下不可读的数据
func (s *JSONStore) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dataset == nil {
		return common.NewError(common.ErrCodeStorage, common.KindInternal, "数据集尚未加载")
	}

	now := s.nowFunc().UTC()
	s.dataset.Metadata.LastUpdateTime = &now

	if err := os.MkdirAll(filepath.Dir(s.dataFile), 0o755); err != nil {
		return common.WrapError(common.ErrCodeStorage, common.KindInternal, "创建数据目录失败", err)
	}

	// 旧快照存在时先备份
	if _, err := os.Stat(s.dataFile); err == nil {
		if err := s.createBackup(); err != nil {
			return err
		}
	}

	raw, err := json.MarshalIndent(s.dataset, "", "  ")
	if err != nil {
		return common.WrapError(common.ErrCodeStorage, common.KindInternal, "序列化数据集失败", err)
	}

	tmp := s.dataFile + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return common.WrapError(common.ErrCodeStorage, common.KindInternal, "写入临时文件失败", err)
	}
	if err := os.Rename(tmp, s.dataFile); err != nil {
		os.Remove(tmp)
		return common.WrapError(common.ErrCodeStorage, common.KindInternal, "替换数据文件失败", err)
	}

	return nil
}

// Statistics 对当前数据集做纯统计
func (s *JSONStore) Statistics() *domain.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dataset == nil {
		return domain.ComputeStatistics(domain.NewDataset(), s.recentN)
	}
	return domain.ComputeStatistics(s.dataset, s.recentN)
}

// Export 导出数据集到文件，支持 json 和 csv 两种格式
// category 非空时只导出该分类下已分类的仓库
func (s *JSONStore) Export(outputFile, format, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dataset == nil {
		return common.NewError(common.ErrCodeStorage, common.KindInternal, "数据集尚未加载")
	}

	repos := s.dataset.Repositories
	if category != "" {
		repos = domain.ByCategory(repos, category)
	}

	switch strings.ToLower(format) {
	case "json":
		payload := &domain.Dataset{
			Metadata:     s.dataset.Metadata,
			Repositories: repos,
		}
		raw, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return common.WrapError(common.ErrCodeStorage, common.KindInternal, "序列化导出数据失败", err)
		}
		if err := os.WriteFile(outputFile, raw, 0o644); err != nil {
			return common.WrapError(common.ErrCodeStorage, common.KindInternal, "写入导出文件失败", err)
		}
	case "csv":
		if err := exportCSV(outputFile, repos); err != nil {
			return err
		}
	default:
		return common.NewError(common.ErrCodeInvalidInput, common.KindValidation,
			fmt.Sprintf("不支持的导出格式: %s", format))
	}

	return nil
}

func exportCSV(outputFile string, repos []*domain.Repo) error {
	f, err := os.Create(outputFile)
	if err != nil {
		return common.WrapError(common.ErrCodeStorage, common.KindInternal, "创建导出文件失败", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"id", "full_name", "html_url", "description", "language",
		"stargazers_count", "forks_count", "starred_at",
		"is_classified", "category", "summary",
	}
	if err := w.Write(header); err != nil {
		return common.WrapError(common.ErrCodeStorage, common.KindInternal, "写入 CSV 表头失败", err)
	}

	for _, repo := range repos {
		row := []string{
			strconv.FormatInt(repo.ID, 10),
			repo.FullName,
			repo.HTMLURL,
			repo.Description,
			repo.Language,
			strconv.Itoa(repo.StargazersCount),
			strconv.Itoa(repo.ForksCount),
			repo.StarredAt.UTC().Format(time.RFC3339),
			strconv.FormatBool(repo.IsClassified),
			repo.Category,
			repo.Summary,
		}
		if err := w.Write(row); err != nil {
			return common.WrapError(common.ErrCodeStorage, common.KindInternal, "写入 CSV 行失败", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return common.WrapError(common.ErrCodeStorage, common.KindInternal, "刷新 CSV 失败", err)
	}
	return nil
}

// createBackup 复制当前快照到备份目录并轮转旧备份
func (s *JSONStore) createBackup() error {
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return common.WrapError(common.ErrCodeStorage, common.KindInternal, "创建备份目录失败", err)
	}

	raw, err := os.ReadFile(s.dataFile)
	if err != nil {
		return common.WrapError(common.ErrCodeStorage, common.KindInternal, "读取旧快照失败", err)
	}

	name := fmt.Sprintf("stars_data_backup_%s.json", s.nowFunc().UTC().Format("20060102T150405.000"))
	backupFile := filepath.Join(s.backupDir, name)
	if err := os.WriteFile(backupFile, raw, 0o644); err != nil {
		return common.WrapError(common.ErrCodeStorage, common.KindInternal, "写入备份失败", err)
	}

	s.pruneBackups()
	return nil
}

// pruneBackups 只保留最近的 keepBackups 份
func (s *JSONStore) pruneBackups() {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return
	}

	var backups []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "stars_data_backup_") {
			backups = append(backups, entry.Name())
		}
	}
	// 文件名里带时间戳，字典序即时间序
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))

	for _, name := range backups[min(len(backups), s.keepBackups):] {
		if err := os.Remove(filepath.Join(s.backupDir, name)); err != nil {
			log.Printf("⚠️ 删除旧备份 %s 失败: %v", name, err)
		}
	}
}

// restoreFromBackup 从最新的可读备份恢复
func (s *JSONStore) restoreFromBackup() (*domain.Dataset, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		log.Println("⚠️ 没有可用备份，创建空数据集")
		return domain.NewDataset(), nil
	}

	var backups []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "stars_data_backup_") {
			backups = append(backups, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))

	for _, name := range backups {
		raw, err := os.ReadFile(filepath.Join(s.backupDir, name))
		if err != nil {
			continue
		}
		var dataset domain.Dataset
		if err := json.Unmarshal(raw, &dataset); err != nil {
			log.Printf("⚠️ 备份 %s 也已损坏，尝试更早的", name)
			continue
		}
		log.Printf("✅ 已从备份恢复数据集: %s", name)
		return &dataset, nil
	}

	log.Println("⚠️ 没有可用备份，创建空数据集")
	return domain.NewDataset(), nil
}
