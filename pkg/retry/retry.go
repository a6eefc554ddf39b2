package retry

import (
	"context"
	"math"
	"time"
)

// Config 重试配置
type Config struct {
	// MaxAttempts 最大尝试次数（含首次）
	MaxAttempts int `json:"max_attempts" mapstructure:"max_attempts"`

	// InitialDelay 初始延迟时间
	InitialDelay time.Duration `json:"initial_delay" mapstructure:"initial_delay"`

	// MaxDelay 最大延迟时间
	MaxDelay time.Duration `json:"max_delay" mapstructure:"max_delay"`

	// BackoffFactor 退避因子（指数退避）
	BackoffFactor float64 `json:"backoff_factor" mapstructure:"backoff_factor"`
}

// DefaultConfig 返回默认重试配置
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   5,
		InitialDelay:  2 * time.Second,
		MaxDelay:      5 * time.Minute,
		BackoffFactor: 2.0,
	}
}

// Retrier 指数退避重试器。
// 只用于基础设施调用（状态查询、下载）；业务层面的单元错误不在这里重试。
type Retrier struct {
	config Config

	// onAttempt 每次尝试前的回调，参数为从1开始的尝试序号
	onAttempt func(attempt int)
}

// New 创建重试器
func New(config Config) *Retrier {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.BackoffFactor <= 1.0 {
		config.BackoffFactor = 2.0
	}
	return &Retrier{config: config}
}

// WithAttemptCounter 设置每次尝试的计数回调
func (r *Retrier) WithAttemptCounter(fn func(attempt int)) *Retrier {
	r.onAttempt = fn
	return r
}

// Do 执行fn直到成功或尝试次数耗尽。
// 每次失败后按指数退避等待；等待可被上下文取消。
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if r.onAttempt != nil {
			r.onAttempt(attempt)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == r.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}

	return lastErr
}

// delay 计算第attempt次失败后的等待时间
func (r *Retrier) delay(attempt int) time.Duration {
	delay := r.config.InitialDelay
	if attempt > 1 {
		multiplier := math.Pow(r.config.BackoffFactor, float64(attempt-1))
		delay = time.Duration(float64(r.config.InitialDelay) * multiplier)
	}
	if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}
