package storage

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github-star-organizer/internal/domain"
)

// CacheEntry 一条缓存的分类结果，按内容指纹索引
type CacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	Category    string    `json:"category"`
	Summary     string    `json:"summary"`
	KeyFeatures []string  `json:"key_features,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ClassificationCache 分类结果缓存
// 纯优化层：丢了只多花几次 AI 调用，不影响正确性
// 读共享、写互斥，支持分类引擎的并发访问
type ClassificationCache struct {
	file    string
	ttl     time.Duration // 0 表示永不过期
	mu      sync.RWMutex
	entries map[string]CacheEntry
	nowFunc func() time.Time
}

// NewClassificationCache 创建缓存并尝试加载已有内容
// 缓存文件缺失或损坏都不算错误，从空缓存开始即可
func NewClassificationCache(file string, ttl time.Duration) *ClassificationCache {
	cache := &ClassificationCache{
		file:    file,
		ttl:     ttl,
		entries: make(map[string]CacheEntry),
		nowFunc: time.Now,
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return cache
	}
	if err := json.Unmarshal(raw, &cache.entries); err != nil {
		log.Printf("⚠️ 分类缓存损坏，已丢弃: %v", err)
		cache.entries = make(map[string]CacheEntry)
	}
	return cache
}

// Get 按指纹查缓存，过期条目视为不存在
func (c *ClassificationCache) Get(fingerprint string) (*domain.Classification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.nowFunc().Sub(entry.CreatedAt) > c.ttl {
		return nil, false
	}

	return &domain.Classification{
		Category:    entry.Category,
		Summary:     entry.Summary,
		KeyFeatures: entry.KeyFeatures,
	}, true
}

// Put 写入一条分类结果，同指纹的并发写由互斥锁串行化
func (c *ClassificationCache) Put(fingerprint string, result *domain.Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[fingerprint] = CacheEntry{
		Fingerprint: fingerprint,
		Category:    result.Category,
		Summary:     result.Summary,
		KeyFeatures: result.KeyFeatures,
		CreatedAt:   c.nowFunc().UTC(),
	}
}

// Len 当前缓存条数
func (c *ClassificationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Save 把缓存落盘，失败只告警：缓存不是正确性的一部分
func (c *ClassificationCache) Save() {
	c.mu.RLock()
	raw, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		log.Printf("⚠️ 序列化分类缓存失败: %v", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(c.file), 0o755); err != nil {
		log.Printf("⚠️ 创建缓存目录失败: %v", err)
		return
	}
	if err := os.WriteFile(c.file, raw, 0o644); err != nil {
		log.Printf("⚠️ 写入分类缓存失败: %v", err)
	}
}
