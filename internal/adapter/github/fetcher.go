package github

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github-star-organizer/internal/common"
	"github-star-organizer/internal/config"
	"github-star-organizer/internal/domain"

	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Fetcher 实现了 port.Fetcher 接口
type Fetcher struct {
	client     *github.Client
	username   string
	perPage    int
	maxStars   int
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
}

// NewFetcher 初始化 GitHub 客户端
// token 为空时匿名访问 (限制 60次/小时)，正常使用必须带 token
func NewFetcher(token, username string, cfg *config.Config) *Fetcher {
	var client *github.Client

	if token == "" {
		client = github.NewClient(nil)
	} else {
		ctx := context.Background()
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc := oauth2.NewClient(ctx, ts)
		client = github.NewClient(tc)
	}

	return &Fetcher{
		client:     client,
		username:   username,
		perPage:    cfg.PerPage,
		maxStars:   cfg.MaxStars,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay(),
		// 认证后核心限额 5000 次/小时，主动限速避免撞线
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// FetchStarred 拉取 Star 仓库列表，按 Star 时间倒序返回
//   - 全量模式：翻到空页或达到 maxStars 为止
//   - 增量模式：遇到 starred_at <= cursor 的记录立即停止，
//     依赖服务端按 Star 时间倒序的稳定排序
func (f *Fetcher) FetchStarred(ctx context.Context, mode string, cursor *time.Time) ([]*domain.Repo, error) {
	if mode == domain.FetchModeIncremental && cursor == nil {
		// 没有游标的增量抓取等价于全量
		mode = domain.FetchModeFull
	}

	var out []*domain.Repo
	page := 1

	for {
		starred, err := f.listPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(starred) == 0 {
			break
		}

		stop := false
		for _, item := range starred {
			starredAt := item.GetStarredAt().Time
			if mode == domain.FetchModeIncremental && !starredAt.After(*cursor) {
				// 这条及之后的都在上次同步时见过了
				stop = true
				break
			}
			out = append(out, toRepo(item))
			if f.maxStars > 0 && len(out) >= f.maxStars {
				stop = true
				break
			}
		}
		if stop {
			break
		}
		page++
	}

	return out, nil
}

// listPage 拉取一页，瞬时错误按策略重试，限流则等配额恢复后继续
func (f *Fetcher) listPage(ctx context.Context, page int) ([]*github.StarredRepository, error) {
	opts := &github.ActivityListStarredOptions{
		Sort:      "created",
		Direction: "desc",
		ListOptions: github.ListOptions{
			Page:    page,
			PerPage: f.perPage,
		},
	}

	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var starred []*github.StarredRepository
		err := common.Do(ctx, func() error {
			var apiErr error
			starred, _, apiErr = f.client.Activity.ListStarred(ctx, f.username, opts)
			if apiErr != nil {
				return wrapGitHubError(apiErr)
			}
			return nil
		},
			common.WithMaxRetries(f.maxRetries),
			common.WithInitialDelay(f.retryDelay),
			common.WithRetryIf(retryableGitHubError),
		)
		if err == nil {
			return starred, nil
		}

		// 限流不消耗重试预算，等到配额重置再继续
		if wait, ok := rateLimitWait(err); ok {
			log.Printf("⏳ 触发 GitHub 限流，等待 %s 后继续", wait.Round(time.Second))
			if sleepErr := sleepCtx(ctx, wait); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		return nil, fmt.Errorf("拉取第 %d 页 Star 列表失败: %w", page, err)
	}
}

// retryableGitHubError 判断错误是否该在重试预算内重试
// 限流错误不占预算，第一次出现就交给上层等配额恢复
func retryableGitHubError(err error) bool {
	if _, ok := rateLimitWait(err); ok {
		return false
	}
	return common.IsTransient(err)
}

// wrapGitHubError 把 go-github 的错误归类为可重试/不可重试
func wrapGitHubError(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return common.WrapError(common.ErrCodeRateLimit, common.KindTransient, "GitHub API 配额耗尽", err)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return common.WrapError(common.ErrCodeRateLimit, common.KindTransient, "触发 GitHub 二级限流", err)
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch status := respErr.Response.StatusCode; {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return common.WrapError(common.ErrCodeAuth, common.KindAuthorization, "GitHub 认证失败", err)
		case status >= 500:
			return common.WrapError(common.ErrCodeGitHubAPI, common.KindTransient, "GitHub 服务端错误", err)
		default:
			return common.WrapError(common.ErrCodeMalformed, common.KindMalformed, "GitHub 响应异常", err)
		}
	}
	// 网络层错误 (超时/连接失败) 按瞬时处理
	return common.WrapError(common.ErrCodeGitHubAPI, common.KindTransient, "GitHub API 调用失败", err)
}

// rateLimitWait 从限流错误里取出需要等待的时长
func rateLimitWait(err error) (time.Duration, bool) {
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		if abuseErr.RetryAfter != nil {
			return *abuseErr.RetryAfter, true
		}
		return time.Minute, true
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		wait := time.Until(rateErr.Rate.Reset.Time)
		if wait < 0 {
			wait = 0
		}
		return wait + time.Second, true
	}
	return 0, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func toRepo(item *github.StarredRepository) *domain.Repo {
	repo := item.GetRepository()
	return &domain.Repo{
		ID:              repo.GetID(),
		FullName:        repo.GetFullName(),
		HTMLURL:         repo.GetHTMLURL(),
		Description:     repo.GetDescription(),
		Language:        repo.GetLanguage(),
		Topics:          repo.Topics,
		StargazersCount: repo.GetStargazersCount(),
		ForksCount:      repo.GetForksCount(),
		StarredAt:       item.GetStarredAt().Time,
		UpdatedAt:       repo.GetUpdatedAt().Time,
	}
}
