package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "incremental", cfg.FetchMode)
	assert.Equal(t, 100, cfg.PerPage)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, "data/stars_data.json", cfg.DataFile)
	assert.Equal(t, 5, cfg.KeepBackups)

	// 分类集合必须包含兜底分类
	assert.Contains(t, cfg.Categories, "其他")
	assert.NotEmpty(t, cfg.KeywordRules)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, Default().PerPage, cfg.PerPage)
	assert.Equal(t, Default().Categories, cfg.Categories)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	content := `
username: octocat
fetch_mode: full
per_page: 50
max_retries: 1
retry_delay: 2
concurrency: 8
data_file: /tmp/test_stars.json
categories:
  - 开发工具
  - 其他
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "octocat", cfg.Username)
	assert.Equal(t, "full", cfg.FetchMode)
	assert.Equal(t, 50, cfg.PerPage)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay())
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "/tmp/test_stars.json", cfg.DataFile)
	assert.Equal(t, []string{"开发工具", "其他"}, cfg.Categories)

	// 文件里没写的字段保持默认值
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.NotEmpty(t, cfg.KeywordRules)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("username: [invalid"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_NormalizesBadValues(t *testing.T) {
	content := `
per_page: 1000
max_retries: -1
retry_delay: -5
request_timeout: 0
concurrency: 0
keep_backups: -3
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.PerPage)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, time.Duration(0), cfg.RetryDelay())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 1, cfg.KeepBackups)
}

func TestFallbackCategory(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "其他", cfg.FallbackCategory())

	// 集合里没有"其他"时退化到最后一个分类
	cfg.Categories = []string{"开发工具", "学习资源"}
	assert.Equal(t, "学习资源", cfg.FallbackCategory())

	cfg.Categories = nil
	assert.Equal(t, "其他", cfg.FallbackCategory())
}

func TestHasCategory(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.HasCategory("开发工具"))
	assert.True(t, cfg.HasCategory("其他"))
	assert.False(t, cfg.HasCategory("不存在的分类"))
	assert.False(t, cfg.HasCategory(""))
}
