package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/ja-openai/mojito-sub000/internal/apperrors"
	"github.com/ja-openai/mojito-sub000/internal/dispatch"
	"github.com/ja-openai/mojito-sub000/internal/related"
	"github.com/ja-openai/mojito-sub000/internal/tm"
	"github.com/ja-openai/mojito-sub000/pkg/retry"
)

// Config 全局配置。加载一次后不可变，作为显式参数传入编排器。
type Config struct {
	// Model 模型名称
	Model string `mapstructure:"model"`

	// APIKey 补全服务凭证；也可经 AITRANSLATE_API_KEY 或 OPENAI_API_KEY 注入
	APIKey string `mapstructure:"api_key"`

	// BaseURL 自定义补全服务端点
	BaseURL string `mapstructure:"base_url"`

	// OrgID 组织ID
	OrgID string `mapstructure:"org_id"`

	// Debug 调试日志
	Debug bool `mapstructure:"debug"`

	// StorePath 对象存储根目录
	StorePath string `mapstructure:"store_path"`

	// StoreRetention 对象保留期；零值不过期
	StoreRetention time.Duration `mapstructure:"store_retention"`

	// TMPath 翻译记忆快照文件路径
	TMPath string `mapstructure:"tm_path"`

	// ImportStatus 导入后的变体状态
	ImportStatus string `mapstructure:"import_status"`

	// RelatedMode 相关上下文采集模式：NONE、USAGES或ID_PREFIX
	RelatedMode string `mapstructure:"related_mode"`

	// RelatedBudget 相关上下文字符预算
	RelatedBudget int `mapstructure:"related_budget"`

	// Timeouts 同步派发超时公式参数
	Timeouts dispatch.TimeoutConfig `mapstructure:"timeouts"`

	// Pool 调度池参数
	Pool dispatch.PoolConfig `mapstructure:"pool"`

	// Retry 批处理基础设施重试策略
	Retry retry.Config `mapstructure:"retry"`
}

// setDefaults 写入默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("store_path", ".aitranslate-store")
	v.SetDefault("store_retention", "720h")
	v.SetDefault("import_status", string(tm.StatusReviewNeeded))
	v.SetDefault("related_mode", string(related.ModeUsages))
	v.SetDefault("related_budget", related.DefaultCharBudget)

	v.SetDefault("timeouts.base", "15s")
	v.SetDefault("timeouts.per_unit", "2s")
	v.SetDefault("timeouts.per_k_char", "2s")
	v.SetDefault("timeouts.image_penalty", "5s")
	v.SetDefault("timeouts.min", "15s")
	v.SetDefault("timeouts.max", "120s")

	v.SetDefault("pool.max_concurrent", 8)
	v.SetDefault("pool.max_pending", 64)
	v.SetDefault("pool.acquire_timeout", "30s")

	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.initial_delay", "2s")
	v.SetDefault("retry.max_delay", "5m")
	v.SetDefault("retry.backoff_factor", 2.0)
}

// Load 加载配置。
// configPath为空时在用户主目录和当前目录搜索 .aitranslate.yaml；
// 文件不存在不是错误，全默认也能运行。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".aitranslate")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// 环境变量里的凭证优先于配置文件
	if key := os.Getenv("AITRANSLATE_API_KEY"); key != "" {
		config.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); config.APIKey == "" && key != "" {
		config.APIKey = key
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate 校验配置一致性
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model must be specified", apperrors.ErrInvalidConfig)
	}

	switch tm.Status(c.ImportStatus) {
	case tm.StatusTranslationNeeded, tm.StatusReviewNeeded, tm.StatusApproved:
	default:
		return fmt.Errorf("%w: unknown import status %q", apperrors.ErrInvalidConfig, c.ImportStatus)
	}

	switch related.Mode(c.RelatedMode) {
	case related.ModeNone, related.ModeUsages, related.ModeIDPrefix:
	default:
		return fmt.Errorf("%w: unknown related context mode %q", apperrors.ErrInvalidConfig, c.RelatedMode)
	}

	if c.Pool.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: pool.max_concurrent must be positive", apperrors.ErrInvalidConfig)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("%w: retry.max_attempts must be positive", apperrors.ErrInvalidConfig)
	}
	if c.Timeouts.Min > 0 && c.Timeouts.Max > 0 && c.Timeouts.Min > c.Timeouts.Max {
		return fmt.Errorf("%w: timeouts.min exceeds timeouts.max", apperrors.ErrInvalidConfig)
	}
	return nil
}
