package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github-star-organizer/internal/common"
	"github-star-organizer/internal/domain"
)

// Notifier 实现了 port.Notifier 接口，推送飞书卡片消息 (Schema 2.0)
type Notifier struct {
	webhookURL string
}

// NewNotifier 创建通知器，webhook 为空时推送会直接失败
func NewNotifier(webhook string) *Notifier {
	if webhook == "" {
		log.Println("⚠️ 警告: 飞书 Webhook 为空，推送功能将无法工作！")
	}
	return &Notifier{webhookURL: webhook}
}

// NotifySummary 把一次同步的执行摘要推送到飞书
func (n *Notifier) NotifySummary(ctx context.Context, stats *domain.Statistics, merge domain.MergeResult) error {
	if n.webhookURL == "" {
		return fmt.Errorf("Webhook URL 为空")
	}

	title := fmt.Sprintf("⭐ Star 同步完成: 新增 %d 个项目", merge.Added)

	var categoryLines []string
	for i, c := range stats.Categories {
		if i >= 5 {
			break
		}
		categoryLines = append(categoryLines, fmt.Sprintf("- %s: %d", c.Category, c.Count))
	}
	if len(categoryLines) == 0 {
		categoryLines = append(categoryLines, "- 暂无分类数据")
	}

	mdContent := fmt.Sprintf(`**📥 本次合并:** 新增 %d | 更新 %d | 未变化 %d

**📊 数据集概况:**
共 %d 个项目，已分类 %d 个 (%.1f%%)

**🏷️ Top 分类:**
%s
`,
		merge.Added, merge.Updated, merge.Unchanged,
		stats.Basic.TotalRepositories, stats.Basic.ClassifiedRepositories,
		stats.Basic.ClassificationRate,
		strings.Join(categoryLines, "\n"))

	payload := map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"schema": "2.0",
			"config": map[string]interface{}{
				"update_multi": true,
			},
			"header": map[string]interface{}{
				"title": map[string]interface{}{
					"tag":     "plain_text",
					"content": title,
				},
				"template": "blue",
			},
			"body": map[string]interface{}{
				"direction": "vertical",
				"elements": []map[string]interface{}{
					{
						"tag":       "markdown",
						"content":   mdContent,
						"text_size": "normal",
					},
				},
			},
		},
	}

	body, _ := json.Marshal(payload)
	err := common.Do(ctx, func() error {
		resp, postErr := http.Post(n.webhookURL, "application/json", bytes.NewBuffer(body))
		if postErr != nil {
			return postErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			return fmt.Errorf("飞书 API 报错: 状态码 %d", resp.StatusCode)
		}
		return nil
	},
		common.WithMaxRetries(3),
		common.WithInitialDelay(500*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}

	return nil
}
