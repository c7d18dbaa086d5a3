package heuristic

import (
	"strings"
	"unicode/utf8"

	"github-star-organizer/internal/config"
	"github-star-organizer/internal/domain"
)

// 兜底摘要的最大长度 (按字符数，不是字节数)
const maxSummaryRunes = 100

// Classifier 本地启发式分类器
// AI 不可用时的兜底：按顺序匹配关键词规则表，第一条命中的生效
type Classifier struct {
	rules    []config.KeywordRule
	fallback string
}

// NewClassifier 创建启发式分类器
func NewClassifier(rules []config.KeywordRule, fallback string) *Classifier {
	return &Classifier{rules: rules, fallback: fallback}
}

// Classify 纯本地计算，永远成功
// 没有任何关键词命中时归入兜底分类，摘要取描述的截断
func (h *Classifier) Classify(repo *domain.Repo) *domain.Classification {
	// 合并描述、语言和主题，统一转小写后匹配
	parts := []string{strings.ToLower(repo.Description), strings.ToLower(repo.Language)}
	for _, topic := range repo.Topics {
		parts = append(parts, strings.ToLower(topic))
	}
	text := strings.Join(parts, " ")

	category := h.fallback
	for _, rule := range h.rules {
		if matchAny(text, rule.Keywords) {
			category = rule.Category
			break
		}
	}

	return &domain.Classification{
		Category:    category,
		Summary:     fallbackSummary(repo),
		KeyFeatures: nil,
	}
}

func matchAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(text, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// fallbackSummary 用原始描述的截断当摘要
func fallbackSummary(repo *domain.Repo) string {
	summary := strings.TrimSpace(repo.Description)
	if summary == "" {
		summary = "无描述"
	}
	if utf8.RuneCountInString(summary) > maxSummaryRunes {
		runes := []rune(summary)
		summary = string(runes[:maxSummaryRunes]) + "..."
	}
	return summary
}
