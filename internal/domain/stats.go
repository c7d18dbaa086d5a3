package domain

import (
	"math"
	"sort"
)

// Statistics 数据集的统计信息，纯计算结果，供下游模板渲染使用
type Statistics struct {
	Basic      BasicStats      `json:"basic"`
	Categories []CategoryCount `json:"categories"`
	Languages  []LanguageShare `json:"languages"`
	Stars      StarStats       `json:"stars"`
	MostRecent []*Repo         `json:"most_recent"`
}

// BasicStats 基础统计
type BasicStats struct {
	TotalRepositories        int     `json:"total_repositories"`
	ClassifiedRepositories   int     `json:"classified_repositories"`
	UnclassifiedRepositories int     `json:"unclassified_repositories"`
	ClassificationRate       float64 `json:"classification_rate"` // 百分比
}

// CategoryCount 单个分类的项目数量
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// LanguageShare 单个语言的数量与占比
type LanguageShare struct {
	Language string  `json:"language"`
	Count    int     `json:"count"`
	Percent  float64 `json:"percent"` // 四舍五入到一位小数，合计允许有舍入误差
}

// StarStats 星数统计
type StarStats struct {
	Average float64 `json:"average"`
	Maximum int     `json:"maximum"`
	Minimum int     `json:"minimum"`
	Total   int     `json:"total"`
}

// 未识别语言的占位名，与原始数据保持一致
const UnknownLanguage = "未知"

// ComputeStatistics 对数据集快照做一次纯统计
// 无副作用，同一快照上重复调用结果完全一致
func ComputeStatistics(d *Dataset, recentN int) *Statistics {
	repos := d.Repositories
	total := len(repos)

	stats := &Statistics{}

	// 基础统计
	classified := 0
	for _, repo := range repos {
		if repo.IsClassified {
			classified++
		}
	}
	stats.Basic = BasicStats{
		TotalRepositories:        total,
		ClassifiedRepositories:   classified,
		UnclassifiedRepositories: total - classified,
	}
	if total > 0 {
		stats.Basic.ClassificationRate = round1(float64(classified) / float64(total) * 100)
	}

	// 分类统计：只统计已分类的记录，按数量降序，数量相同按名称排序
	categoryCounts := make(map[string]int)
	for _, repo := range repos {
		if repo.IsClassified {
			categoryCounts[repo.Category]++
		}
	}
	for category, count := range categoryCounts {
		stats.Categories = append(stats.Categories, CategoryCount{Category: category, Count: count})
	}
	sort.Slice(stats.Categories, func(i, j int) bool {
		if stats.Categories[i].Count != stats.Categories[j].Count {
			return stats.Categories[i].Count > stats.Categories[j].Count
		}
		return stats.Categories[i].Category < stats.Categories[j].Category
	})

	// 语言统计
	languageCounts := make(map[string]int)
	for _, repo := range repos {
		language := repo.Language
		if language == "" {
			language = UnknownLanguage
		}
		languageCounts[language]++
	}
	for language, count := range languageCounts {
		share := LanguageShare{Language: language, Count: count}
		if total > 0 {
			share.Percent = round1(float64(count) / float64(total) * 100)
		}
		stats.Languages = append(stats.Languages, share)
	}
	sort.Slice(stats.Languages, func(i, j int) bool {
		if stats.Languages[i].Count != stats.Languages[j].Count {
			return stats.Languages[i].Count > stats.Languages[j].Count
		}
		return stats.Languages[i].Language < stats.Languages[j].Language
	})

	// 星数统计
	for i, repo := range repos {
		stars := repo.StargazersCount
		stats.Stars.Total += stars
		if i == 0 || stars > stats.Stars.Maximum {
			stats.Stars.Maximum = stars
		}
		if i == 0 || stars < stats.Stars.Minimum {
			stats.Stars.Minimum = stars
		}
	}
	if total > 0 {
		stats.Stars.Average = round2(float64(stats.Stars.Total) / float64(total))
	}

	// 最近 Star 的 N 个项目
	stats.MostRecent = MostRecent(repos, recentN)

	return stats
}

// MostRecent 按 Star 时间倒序取前 n 个，不修改入参
func MostRecent(repos []*Repo, n int) []*Repo {
	if n <= 0 {
		return nil
	}
	sorted := make([]*Repo, len(repos))
	copy(sorted, repos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StarredAt.After(sorted[j].StarredAt)
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// ByCategory 返回指定分类下已分类的仓库
func ByCategory(repos []*Repo, category string) []*Repo {
	var matched []*Repo
	for _, repo := range repos {
		if repo.IsClassified && repo.Category == category {
			matched = append(matched, repo)
		}
	}
	return matched
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
