package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github-star-organizer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetPut(t *testing.T) {
	cache := NewClassificationCache(filepath.Join(t.TempDir(), "cache.json"), 0)

	_, ok := cache.Get("fp-1")
	assert.False(t, ok)

	cache.Put("fp-1", &domain.Classification{
		Category:    "开发工具",
		Summary:     "一个工具",
		KeyFeatures: []string{"快"},
	})

	result, ok := cache.Get("fp-1")
	require.True(t, ok)
	assert.Equal(t, "开发工具", result.Category)
	assert.Equal(t, "一个工具", result.Summary)
	assert.Equal(t, []string{"快"}, result.KeyFeatures)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := NewClassificationCache(filepath.Join(t.TempDir(), "cache.json"), time.Hour)

	// 注入可控时钟
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.nowFunc = func() time.Time { return current }

	cache.Put("fp-1", &domain.Classification{Category: "开发工具", Summary: "ok"})

	_, ok := cache.Get("fp-1")
	assert.True(t, ok)

	// 过了 TTL 就视为不存在
	current = current.Add(2 * time.Hour)
	_, ok = cache.Get("fp-1")
	assert.False(t, ok)
}

func TestCache_SaveAndReload(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cache.json")

	cache := NewClassificationCache(file, 0)
	cache.Put("fp-1", &domain.Classification{Category: "开发工具", Summary: "ok"})
	cache.Put("fp-2", &domain.Classification{Category: "其他", Summary: "其他东西"})
	cache.Save()

	reloaded := NewClassificationCache(file, 0)
	assert.Equal(t, 2, reloaded.Len())

	result, ok := reloaded.Get("fp-1")
	require.True(t, ok)
	assert.Equal(t, "开发工具", result.Category)
}

func TestCache_CorruptFileStartsEmpty(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(file, []byte("not json at all"), 0644))

	cache := NewClassificationCache(file, 0)
	assert.Equal(t, 0, cache.Len())
}
