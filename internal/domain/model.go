package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Repo 代表一个来自 GitHub 的 Star 仓库
type Repo struct {
	// 基础信息 (来自 GitHub，每次重新抓取时刷新)
	ID              int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	FullName        string    `json:"full_name"` // 例如 "gohugoio/hugo"
	HTMLURL         string    `json:"html_url"`
	Description     string    `json:"description"`
	Language        string    `json:"language"`
	Topics          []string  `json:"topics" gorm:"serializer:json"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	StarredAt       time.Time `json:"starred_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// --- 分类状态 (由分类引擎维护) ---

	// 是否已经分类成功
	IsClassified bool `json:"is_classified"`

	// 分类结果：配置的分类集合中的一个名称
	Category string `json:"category,omitempty"`

	// AI 生成的中文摘要
	Summary string `json:"summary,omitempty" gorm:"type:text"`

	// 项目的主要特点 (3-5 条)
	KeyFeatures []string `json:"key_features,omitempty" gorm:"serializer:json"`

	// 内容指纹：描述/语言/主题变化时需要重新分类
	ContentFingerprint string `json:"content_fingerprint"`
}

// Fingerprint 计算仓库的内容指纹
// 只覆盖与分类相关的字段，元数据刷新后指纹不变则无需重新分类
func (r *Repo) Fingerprint() string {
	topics := make([]string, len(r.Topics))
	copy(topics, r.Topics)
	sort.Strings(topics)

	h := sha256.New()
	h.Write([]byte(r.Description))
	h.Write([]byte{0})
	h.Write([]byte(r.Language))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(topics, ",")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// NeedsClassification 判断仓库是否需要(重新)分类
func (r *Repo) NeedsClassification() bool {
	return !r.IsClassified || r.ContentFingerprint != r.Fingerprint()
}

// Classification 一条分类结果
type Classification struct {
	Category    string   `json:"category"`
	Summary     string   `json:"summary"`
	KeyFeatures []string `json:"key_features"`
}

// Metadata 数据集元数据
type Metadata struct {
	TotalCount             int        `json:"total_count"`
	ClassifiedCount        int        `json:"classified_count"`
	UnclassifiedCount      int        `json:"unclassified_count"`
	LastFetchTime          *time.Time `json:"last_fetch_time"`
	LastClassificationTime *time.Time `json:"last_classification_time"`
	LastUpdateTime         *time.Time `json:"last_update_time"`
	FetchMode              string     `json:"fetch_mode"`
	Username               string     `json:"username"`
	Version                string     `json:"version"`
}

// Dataset 全量数据集：元数据 + 仓库列表
// 只能通过 Store 的 merge/apply 操作修改
type Dataset struct {
	Metadata     Metadata `json:"metadata"`
	Repositories []*Repo  `json:"repositories"`
}

// NewDataset 创建空数据集
func NewDataset() *Dataset {
	return &Dataset{
		Metadata: Metadata{
			FetchMode: FetchModeIncremental,
			Version:   "1.0.0",
		},
		Repositories: []*Repo{},
	}
}

// 抓取模式
const (
	FetchModeFull        = "full"
	FetchModeIncremental = "incremental"
)

// MergeResult 合并结果统计
type MergeResult struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Merge 把一批新抓取的仓库合并进数据集
//   - id 不存在：作为未分类的新记录插入
//   - id 已存在：刷新镜像字段并重算指纹，指纹变了就重置分类状态
//   - 内容完全一致：不动，保证合并幂等
func (d *Dataset) Merge(incoming []*Repo) MergeResult {
	index := make(map[int64]int, len(d.Repositories))
	for i, repo := range d.Repositories {
		index[repo.ID] = i
	}

	var result MergeResult
	for _, in := range incoming {
		pos, ok := index[in.ID]
		if !ok {
			record := cloneRepo(in)
			record.IsClassified = false
			record.Category = ""
			record.Summary = ""
			record.KeyFeatures = nil
			record.ContentFingerprint = record.Fingerprint()
			d.Repositories = append(d.Repositories, record)
			index[record.ID] = len(d.Repositories) - 1
			result.Added++
			continue
		}

		existing := d.Repositories[pos]
		updated := cloneRepo(in)
		// 保留已有的分类字段
		updated.IsClassified = existing.IsClassified
		updated.Category = existing.Category
		updated.Summary = existing.Summary
		updated.KeyFeatures = existing.KeyFeatures
		updated.ContentFingerprint = updated.Fingerprint()

		// 指纹变化说明描述/语言/主题变了，需要重新分类
		if updated.ContentFingerprint != existing.ContentFingerprint {
			updated.IsClassified = false
			updated.Category = ""
			updated.Summary = ""
			updated.KeyFeatures = nil
		}

		if repoEqual(existing, updated) {
			result.Unchanged++
			continue
		}

		d.Repositories[pos] = updated
		result.Updated++
	}

	d.refreshCounts()
	return result
}

// ApplyClassifications 写回分类结果，未知 id 忽略并返回其列表
func (d *Dataset) ApplyClassifications(results map[int64]Classification) []int64 {
	index := make(map[int64]*Repo, len(d.Repositories))
	for _, repo := range d.Repositories {
		index[repo.ID] = repo
	}

	var unknown []int64
	for id, c := range results {
		repo, ok := index[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		repo.Category = c.Category
		repo.Summary = c.Summary
		repo.KeyFeatures = c.KeyFeatures
		repo.ContentFingerprint = repo.Fingerprint()
		repo.IsClassified = true
	}

	d.refreshCounts()
	return unknown
}

// Pending 返回所有未分类的仓库
func (d *Dataset) Pending() []*Repo {
	var pending []*Repo
	for _, repo := range d.Repositories {
		if !repo.IsClassified {
			pending = append(pending, repo)
		}
	}
	return pending
}

// Cursor 返回数据集中最新的 Star 时间，作为增量抓取的游标
func (d *Dataset) Cursor() *time.Time {
	var latest *time.Time
	for _, repo := range d.Repositories {
		if repo.StarredAt.IsZero() {
			continue
		}
		if latest == nil || repo.StarredAt.After(*latest) {
			t := repo.StarredAt
			latest = &t
		}
	}
	return latest
}

func (d *Dataset) refreshCounts() {
	classified := 0
	for _, repo := range d.Repositories {
		if repo.IsClassified {
			classified++
		}
	}
	d.Metadata.TotalCount = len(d.Repositories)
	d.Metadata.ClassifiedCount = classified
	d.Metadata.UnclassifiedCount = len(d.Repositories) - classified
}

func cloneRepo(r *Repo) *Repo {
	c := *r
	if r.Topics != nil {
		c.Topics = append([]string(nil), r.Topics...)
	}
	if r.KeyFeatures != nil {
		c.KeyFeatures = append([]string(nil), r.KeyFeatures...)
	}
	return &c
}

func repoEqual(a, b *Repo) bool {
	if a.ID != b.ID ||
		a.FullName != b.FullName ||
		a.HTMLURL != b.HTMLURL ||
		a.Description != b.Description ||
		a.Language != b.Language ||
		a.StargazersCount != b.StargazersCount ||
		a.ForksCount != b.ForksCount ||
		!a.StarredAt.Equal(b.StarredAt) ||
		!a.UpdatedAt.Equal(b.UpdatedAt) ||
		a.IsClassified != b.IsClassified ||
		a.Category != b.Category ||
		a.Summary != b.Summary ||
		a.ContentFingerprint != b.ContentFingerprint {
		return false
	}
	if len(a.Topics) != len(b.Topics) {
		return false
	}
	for i := range a.Topics {
		if a.Topics[i] != b.Topics[i] {
			return false
		}
	}
	if len(a.KeyFeatures) != len(b.KeyFeatures) {
		return false
	}
	for i := range a.KeyFeatures {
		if a.KeyFeatures[i] != b.KeyFeatures[i] {
			return false
		}
	}
	return true
}
