package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github-star-organizer/internal/common"
	"github-star-organizer/internal/domain"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Classifier 实现了 port.Classifier 接口，调用 Gemini 做分类和摘要
type Classifier struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	categories []string
}

// 接收 AI 返回的 JSON
type aiResponse struct {
	Category    string   `json:"category"`
	Summary     string   `json:"summary"`
	KeyFeatures []string `json:"key_features"`
}

// NewClassifier 初始化 Gemini 客户端
func NewClassifier(ctx context.Context, apiKey, modelName string, categories []string) (*Classifier, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(modelName)
	// 强制要求返回 JSON，降低解析错误的概率
	model.ResponseMIMEType = "application/json"

	return &Classifier{
		client:     client,
		model:      model,
		categories: categories,
	}, nil
}

// Classify 对单个仓库做一次远程分类
// 重试和启发式兜底由上层分类引擎负责，这里只报告成功或失败
func (g *Classifier) Classify(ctx context.Context, repo *domain.Repo) (*domain.Classification, error) {
	prompt := buildPrompt(repo, g.categories)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, common.WrapError(common.ErrCodeAIProcessing, common.KindTransient, "AI 调用失败", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, common.NewError(common.ErrCodeMalformed, common.KindMalformed, "AI 返回内容为空")
	}

	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(genai.Text)
	if !ok {
		return nil, common.NewError(common.ErrCodeMalformed, common.KindMalformed, "AI 返回格式错误")
	}

	return parseResponse(string(text))
}

// parseResponse 解析 AI 返回的文本
// 即使返回 "```json { ... } ```"，也能精准抠出中间的 { ... }
func parseResponse(raw string) (*domain.Classification, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")

	if start == -1 || end == -1 || end <= start {
		return nil, common.WrapError(common.ErrCodeMalformed, common.KindMalformed,
			"无法提取 JSON", fmt.Errorf("AI 原文: %s", raw))
	}

	var res aiResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &res); err != nil {
		return nil, common.WrapError(common.ErrCodeMalformed, common.KindMalformed, "JSON 解析失败", err)
	}

	if res.Category == "" {
		return nil, common.NewError(common.ErrCodeMalformed, common.KindMalformed, "AI 返回的分类为空")
	}
	// 已分类的记录必须带非空摘要
	if strings.TrimSpace(res.Summary) == "" {
		return nil, common.NewError(common.ErrCodeMalformed, common.KindMalformed, "AI 返回的摘要为空")
	}

	return &domain.Classification{
		Category:    strings.TrimSpace(res.Category),
		Summary:     strings.TrimSpace(res.Summary),
		KeyFeatures: res.KeyFeatures,
	}, nil
}

// buildPrompt 构造分类提示词，包含仓库元数据和封闭的分类集合
func buildPrompt(repo *domain.Repo, categories []string) string {
	description := repo.Description
	if description == "" {
		description = "无描述"
	}
	language := repo.Language
	if language == "" {
		language = "未知"
	}
	topics := "无"
	if len(repo.Topics) > 0 {
		topics = strings.Join(repo.Topics, ", ")
	}

	return fmt.Sprintf(`请分析以下GitHub项目，并提供分类和摘要：

项目名称: %s
项目描述: %s
主要语言: %s
项目主题: %s
Star数量: %d
Fork数量: %d
项目URL: %s

请从以下类别中选择最合适的一个：%s

请以JSON格式返回以下内容：
1. category: 从上述类别中选择的最合适分类
2. summary: 项目的简短中文摘要（不超过100字）
3. key_features: 项目的主要特点（列出3-5点）

只返回JSON格式的结果，不要有其他文字。`,
		repo.FullName, description, language, topics,
		repo.StargazersCount, repo.ForksCount, repo.HTMLURL,
		strings.Join(categories, "、"))
}

// Close 释放底层连接
func (g *Classifier) Close() error {
	return g.client.Close()
}
