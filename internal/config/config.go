// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	WebSearch     WebSearchConfig     `mapstructure:"websearch"`
	Knowledge     KnowledgeConfig     `mapstructure:"knowledge"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 验证相关的配置。
// 密钥与算法需与签发 token 的 Node.js 后端保持一致。
type JWTConfig struct {
	Secret    string `mapstructure:"secret"`
	Algorithm string `mapstructure:"algorithm"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// WebSearchConfig 存储 Google 搜索后援相关的配置。
// APIKey 或 CSEID 为空时，搜索后援静默停用，不视为错误。
type WebSearchConfig struct {
	APIKey    string `mapstructure:"api_key"`
	CSEID     string `mapstructure:"cse_id"`
	TopK      int    `mapstructure:"top_k"`
	CharLimit int    `mapstructure:"char_limit"`
}

// KnowledgeConfig 存储知识库更新任务相关的配置。
type KnowledgeConfig struct {
	Sources           []string `mapstructure:"sources"`
	BatchSize         int      `mapstructure:"batch_size"`
	BatchDelaySeconds int      `mapstructure:"batch_delay_seconds"`
	FetchDelaySeconds int      `mapstructure:"fetch_delay_seconds"`
	RefreshHour       int      `mapstructure:"refresh_hour"`
	RefreshMinute     int      `mapstructure:"refresh_minute"`
}

// Load 从指定的路径读取 YAML 文件并解析为 Config。
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 排程时刻走 viper 默认值：显式配置 0 点更新时不会被当成未设置
	viper.SetDefault("knowledge.refresh_hour", 3)
	viper.SetDefault("knowledge.refresh_minute", 0)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults 为未配置项填充默认值。
func (c *Config) applyDefaults() {
	if c.JWT.Algorithm == "" {
		c.JWT.Algorithm = "HS256"
	}
	if c.WebSearch.TopK <= 0 {
		c.WebSearch.TopK = 2
	}
	if c.WebSearch.CharLimit <= 0 {
		c.WebSearch.CharLimit = 1800
	}
	if c.Knowledge.BatchSize <= 0 {
		c.Knowledge.BatchSize = 4
	}
	if c.Knowledge.BatchDelaySeconds <= 0 {
		c.Knowledge.BatchDelaySeconds = 10
	}
	if c.Knowledge.FetchDelaySeconds <= 0 {
		c.Knowledge.FetchDelaySeconds = 1
	}
}
