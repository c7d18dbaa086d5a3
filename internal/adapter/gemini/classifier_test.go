package gemini

import (
	"testing"

	"github-star-organizer/internal/common"
	"github-star-organizer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		expectError bool
		expected    *domain.Classification
	}{
		{
			name: "标准JSON",
			raw:  `{"category": "开发工具", "summary": "一个好用的工具", "key_features": ["快", "小"]}`,
			expected: &domain.Classification{
				Category:    "开发工具",
				Summary:     "一个好用的工具",
				KeyFeatures: []string{"快", "小"},
			},
		},
		{
			name: "带Markdown围栏的JSON",
			raw:  "```json\n{\"category\": \"人工智能/机器学习\", \"summary\": \"深度学习框架\"}\n```",
			expected: &domain.Classification{
				Category: "人工智能/机器学习",
				Summary:  "深度学习框架",
			},
		},
		{
			name: "JSON前后夹杂解释文字",
			raw:  `好的，分析结果如下：{"category": "前端开发", "summary": "UI 组件库"} 希望对你有帮助！`,
			expected: &domain.Classification{
				Category: "前端开发",
				Summary:  "UI 组件库",
			},
		},
		{
			name: "分类和摘要两侧的空白被去掉",
			raw:  `{"category": "  开发工具  ", "summary": "  摘要  "}`,
			expected: &domain.Classification{
				Category: "开发工具",
				Summary:  "摘要",
			},
		},
		{
			name:        "完全不是JSON",
			raw:         "抱歉，我无法处理这个请求",
			expectError: true,
		},
		{
			name:        "JSON语法错误",
			raw:         `{"category": "开发工具", "summary": `,
			expectError: true,
		},
		{
			name:        "分类为空",
			raw:         `{"category": "", "summary": "有摘要但没有分类"}`,
			expectError: true,
		},
		{
			name:        "摘要为空",
			raw:         `{"category": "开发工具", "summary": ""}`,
			expectError: true,
		},
		{
			name:        "摘要只有空白",
			raw:         `{"category": "开发工具", "summary": "   "}`,
			expectError: true,
		},
		{
			name:        "空字符串",
			raw:         "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseResponse(tt.raw)

			if tt.expectError {
				require.Error(t, err)
				// 解析失败都算格式错误，不触发重试
				assert.Equal(t, common.KindMalformed, common.KindOf(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	repo := &domain.Repo{
		FullName:        "gohugoio/hugo",
		HTMLURL:         "https://github.com/gohugoio/hugo",
		Description:     "The fastest static site generator",
		Language:        "Go",
		Topics:          []string{"static-site", "hugo"},
		StargazersCount: 70000,
		ForksCount:      7000,
	}
	categories := []string{"开发工具", "其他"}

	prompt := buildPrompt(repo, categories)

	assert.Contains(t, prompt, "gohugoio/hugo")
	assert.Contains(t, prompt, "The fastest static site generator")
	assert.Contains(t, prompt, "Go")
	assert.Contains(t, prompt, "static-site, hugo")
	assert.Contains(t, prompt, "开发工具、其他")
	assert.Contains(t, prompt, "JSON")
}

func TestBuildPrompt_EmptyFields(t *testing.T) {
	prompt := buildPrompt(&domain.Repo{FullName: "a/b"}, []string{"其他"})

	// 空字段用占位文案，避免提示词里出现空洞
	assert.Contains(t, prompt, "无描述")
	assert.Contains(t, prompt, "未知")
	assert.Contains(t, prompt, "项目主题: 无")
}
