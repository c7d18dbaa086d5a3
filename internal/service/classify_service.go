package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github-star-organizer/internal/adapter/heuristic"
	"github-star-organizer/internal/common"
	"github-star-organizer/internal/config"
	"github-star-organizer/internal/domain"
	"github-star-organizer/internal/port"
)

// ClassifyService 分类引擎
// 缓存命中直接用；否则调 AI (带重试)；AI 彻底不行走启发式兜底
// 单条记录的失败不会影响其他记录
type ClassifyService struct {
	classifier    port.Classifier
	fallback      *heuristic.Classifier
	cache         port.Cache
	cfg           *config.Config
	maxGoroutines int // 最大并发数
}

// NewClassifyService 创建分类引擎
// classifier 可以为 nil (未配置 AI 密钥)，此时所有记录都走启发式
func NewClassifyService(classifier port.Classifier, fallback *heuristic.Classifier, cache port.Cache, cfg *config.Config) *ClassifyService {
	return &ClassifyService{
		classifier:    classifier,
		fallback:      fallback,
		cache:         cache,
		cfg:           cfg,
		maxGoroutines: cfg.Concurrency,
	}
}

// SetMaxGoroutines 设置最大并发数
func (s *ClassifyService) SetMaxGoroutines(max int) {
	if max > 0 {
		s.maxGoroutines = max
	}
}

// classifyResult 单条分类的产出
type classifyResult struct {
	id             int64
	classification *domain.Classification
}

// ClassifyAll 并发分类一批仓库
// 返回成功分类的结果集合；失败的记录不在其中，留给下次运行重试
func (s *ClassifyService) ClassifyAll(ctx context.Context, repos []*domain.Repo) map[int64]domain.Classification {
	results := make(map[int64]domain.Classification, len(repos))
	if len(repos) == 0 {
		return results
	}

	fmt.Printf("🤖 开始分类，共 %d 个项目，最大并发数: %d\n", len(repos), s.maxGoroutines)

	jobs := make(chan *domain.Repo, len(repos))
	out := make(chan classifyResult, len(repos))
	errs := make(chan error, len(repos))

	var wg sync.WaitGroup
	for i := 0; i < s.maxGoroutines; i++ {
		wg.Add(1)
		go s.classifyWorker(ctx, jobs, out, errs, &wg, i+1)
	}

	for _, repo := range repos {
		jobs <- repo
	}
	close(jobs)

	wg.Wait()
	close(out)
	close(errs)

	for r := range out {
		results[r.id] = *r.classification
	}

	if len(errs) > 0 {
		fmt.Printf("⚠️ 共有 %d 个项目分类失败，下次运行时重试:\n", len(errs))
		for err := range errs {
			fmt.Printf("   错误: %v\n", err)
		}
	}

	fmt.Printf("✅ 分类完成: 成功 %d / %d\n", len(results), len(repos))
	return results
}

// classifyWorker 工作协程，处理单个仓库的分类
func (s *ClassifyService) classifyWorker(
	ctx context.Context,
	jobs <-chan *domain.Repo,
	out chan<- classifyResult,
	errs chan<- error,
	wg *sync.WaitGroup,
	workerID int,
) {
	defer wg.Done()

	for repo := range jobs {
		fmt.Printf("   [Worker-%d] 正在分类 %s...\n", workerID, repo.FullName)

		classification, err := s.ClassifyOne(ctx, repo)
		if err != nil {
			fmt.Printf("   [Worker-%d] ❌ %s 分类失败: %v\n", workerID, repo.FullName, err)
			errs <- fmt.Errorf("分类 %s 失败: %w", repo.FullName, err)
			continue
		}

		fmt.Printf("   [Worker-%d] ✅ %s -> %s\n", workerID, repo.FullName, classification.Category)
		out <- classifyResult{id: repo.ID, classification: classification}
	}
}

// ClassifyOne 分类单个仓库
//  1. 缓存命中 (同指纹) 直接返回，不发远程调用
//  2. 调远程 AI，瞬时错误按指数退避重试
//  3. 返回的分类不在集合里就纠正到兜底分类
//  4. 重试耗尽或响应格式错误时走启发式兜底
//  5. 结果先写缓存再返回
//
// 认证错误和 context 取消不走兜底，直接报错，记录保持未分类
func (s *ClassifyService) ClassifyOne(ctx context.Context, repo *domain.Repo) (*domain.Classification, error) {
	fingerprint := repo.Fingerprint()

	if cached, ok := s.cache.Get(fingerprint); ok {
		return cached, nil
	}

	classification, err := s.classifyRemote(ctx, repo)
	if err != nil {
		switch common.KindOf(err) {
		case common.KindAuthorization:
			return nil, err
		default:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// 瞬时错误耗尽重试 / 响应格式错误 -> 启发式兜底
			log.Printf("⚠️ %s 远程分类失败，使用启发式兜底: %v", repo.FullName, err)
			classification = s.fallback.Classify(repo)
		}
	}

	s.cache.Put(fingerprint, classification)
	return classification, nil
}

// classifyRemote 调远程 AI，带重试和分类纠正
func (s *ClassifyService) classifyRemote(ctx context.Context, repo *domain.Repo) (*domain.Classification, error) {
	if s.classifier == nil {
		return nil, common.NewError(common.ErrCodeAIProcessing, common.KindMalformed, "未配置 AI 分类器")
	}

	delay := s.cfg.RetryDelay()
	if delay <= 0 {
		delay = time.Millisecond
	}

	var classification *domain.Classification
	err := common.Do(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout())
		defer cancel()

		result, callErr := s.classifier.Classify(callCtx, repo)
		if callErr != nil {
			return callErr
		}
		classification = result
		return nil
	},
		common.WithMaxRetries(s.cfg.MaxRetries),
		common.WithInitialDelay(delay),
		common.WithRetryIf(common.IsTransient),
	)
	if err != nil {
		return nil, err
	}

	// 分类非空但摘要为空同样算格式错误，交给启发式兜底
	if strings.TrimSpace(classification.Summary) == "" {
		return nil, common.NewError(common.ErrCodeAIProcessing, common.KindMalformed, "AI 返回的摘要为空")
	}

	// 集合外的分类名纠正到兜底分类，不算失败
	if !s.cfg.HasCategory(classification.Category) {
		log.Printf("⚠️ %s 返回了集合外的分类 %q，纠正为 %q",
			repo.FullName, classification.Category, s.cfg.FallbackCategory())
		classification.Category = s.cfg.FallbackCategory()
	}

	return classification, nil
}
