package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 全部运行配置，config.yaml 中的字段覆盖默认值
type Config struct {
	// GitHub 配置
	Username  string `yaml:"username"`   // Star 列表的属主
	FetchMode string `yaml:"fetch_mode"` // full / incremental
	PerPage   int    `yaml:"per_page"`   // 每页数量，GitHub 上限 100
	MaxStars  int    `yaml:"max_stars"`  // 单次运行最多拉取的仓库数，0 表示不限制

	// 重试与超时 (单位: 秒)
	MaxRetries            int `yaml:"max_retries"`     // 每个请求的最大重试次数
	RetryDelaySeconds     int `yaml:"retry_delay"`     // 首次重试延迟，之后翻倍
	RequestTimeoutSeconds int `yaml:"request_timeout"` // 单次远程调用超时

	// 分类引擎
	Concurrency int    `yaml:"concurrency"` // 分类并发数
	GeminiModel string `yaml:"gemini_model"`

	// 分类集合：封闭集，AI 返回集合外的名称会被纠正到兜底分类
	Categories []string `yaml:"categories"`

	// 启发式规则：按顺序匹配，第一条命中的生效
	KeywordRules []KeywordRule `yaml:"keyword_rules"`

	// 数据存储
	DataFile    string `yaml:"data_file"`
	BackupDir   string `yaml:"backup_dir"`
	CacheFile   string `yaml:"cache_file"`
	KeepBackups int    `yaml:"keep_backups"` // 保留的备份数量

	// 统计
	RecentCount int `yaml:"recent_count"` // “最近新增”列表长度

	// 可选的外部集成 (为空则跳过)
	PostgresDSN   string `yaml:"postgres_dsn"`
	FeishuWebhook string `yaml:"feishu_webhook"`
}

// KeywordRule 一条 关键词 -> 分类 规则
type KeywordRule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		FetchMode:             "incremental",
		PerPage:               100,
		MaxStars:              0,
		MaxRetries:            3,
		RetryDelaySeconds:     5,
		RequestTimeoutSeconds: 30,
		Concurrency:           3,
		GeminiModel:           "gemini-2.5-flash-lite",
		Categories:            defaultCategories(),
		KeywordRules:          defaultKeywordRules(),
		DataFile:              "data/stars_data.json",
		BackupDir:             "data/backups",
		CacheFile:             "data/classification_cache.json",
		KeepBackups:           5,
		RecentCount:           10,
	}
}

// Load 加载配置：默认值 + config.yaml 覆盖
// 文件不存在时直接返回默认值，格式错误才报错
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// RetryDelay 首次重试延迟
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// RequestTimeout 单次远程调用超时
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// FallbackCategory 兜底分类：固定为 "其他"
// 不在配置集合里时仍然返回 "其他"，保证分类结果非空
func (c *Config) FallbackCategory() string {
	for _, category := range c.Categories {
		if category == "其他" {
			return category
		}
	}
	if len(c.Categories) > 0 {
		return c.Categories[len(c.Categories)-1]
	}
	return "其他"
}

// HasCategory 判断名称是否属于配置的分类集合
func (c *Config) HasCategory(name string) bool {
	for _, category := range c.Categories {
		if category == name {
			return true
		}
	}
	return false
}

func (c *Config) normalize() {
	if c.PerPage <= 0 || c.PerPage > 100 {
		c.PerPage = 100
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelaySeconds < 0 {
		c.RetryDelaySeconds = 0
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 30
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.KeepBackups <= 0 {
		c.KeepBackups = 1
	}
	if c.RecentCount < 0 {
		c.RecentCount = 0
	}
	if len(c.Categories) == 0 {
		c.Categories = defaultCategories()
	}
	if len(c.KeywordRules) == 0 {
		c.KeywordRules = defaultKeywordRules()
	}
}

func defaultCategories() []string {
	return []string{
		"前端开发",
		"后端开发",
		"全栈开发",
		"移动应用开发",
		"人工智能/机器学习",
		"数据科学/分析",
		"DevOps/基础设施",
		"安全工具",
		"开发工具",
		"学习资源",
		"区块链/Web3",
		"游戏开发",
		"物联网",
		"其他",
	}
}

// 默认启发式规则表，顺序即优先级
func defaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{Category: "前端开发", Keywords: []string{
			"frontend", "front-end", "react", "vue", "angular",
			"javascript", "typescript", "html", "css", "ui", "ux",
		}},
		{Category: "后端开发", Keywords: []string{
			"backend", "back-end", "api", "server", "database", "cache",
			"django", "flask", "express", "spring", "node.js",
		}},
		{Category: "全栈开发", Keywords: []string{
			"fullstack", "full-stack", "web app", "webapp",
		}},
		{Category: "移动应用开发", Keywords: []string{
			"mobile", "android", "ios", "flutter", "react native", "swift", "kotlin",
		}},
		{Category: "人工智能/机器学习", Keywords: []string{
			"ai", "artificial intelligence", "machine learning", "ml",
			"deep learning", "neural", "tensorflow", "pytorch", "nlp", "llm",
		}},
		{Category: "数据科学/分析", Keywords: []string{
			"data science", "data analysis", "analytics", "visualization",
			"pandas", "jupyter", "statistics",
		}},
		{Category: "DevOps/基础设施", Keywords: []string{
			"devops", "ci/cd", "pipeline", "docker", "kubernetes", "k8s",
			"infrastructure", "deploy", "aws", "cloud",
		}},
		{Category: "安全工具", Keywords: []string{
			"security", "pentest", "penetration", "hacking", "vulnerability", "encryption",
		}},
		{Category: "开发工具", Keywords: []string{
			"tool", "utility", "plugin", "extension", "ide", "editor", "cli",
		}},
		{Category: "学习资源", Keywords: []string{
			"tutorial", "course", "learning", "education", "book", "guide", "example", "awesome",
		}},
		{Category: "区块链/Web3", Keywords: []string{
			"blockchain", "web3", "crypto", "nft", "token", "ethereum", "bitcoin", "solidity",
		}},
		{Category: "游戏开发", Keywords: []string{
			"game", "unity", "unreal", "gaming",
		}},
		{Category: "物联网", Keywords: []string{
			"iot", "internet of things", "embedded", "arduino", "raspberry pi",
		}},
	}
}
