package dispatch

import "time"

// TimeoutConfig 自适应超时公式参数。
// 超时 = Base + max(0, 单元数-1)×PerUnit + ceil(源字符数/1000)×PerKChar + 有图时的ImagePenalty，
// 再钳制到[Min, Max]；Override非零时直接使用且不钳制。
type TimeoutConfig struct {
	// Base 基础超时
	Base time.Duration `json:"base" mapstructure:"base"`

	// PerUnit 组内每个额外单元的增量
	PerUnit time.Duration `json:"per_unit" mapstructure:"per_unit"`

	// PerKChar 每千源字符的增量
	PerKChar time.Duration `json:"per_k_char" mapstructure:"per_k_char"`

	// ImagePenalty 带图请求的增量
	ImagePenalty time.Duration `json:"image_penalty" mapstructure:"image_penalty"`

	// Min 下限；零值不生效
	Min time.Duration `json:"min" mapstructure:"min"`

	// Max 上限；零值不生效
	Max time.Duration `json:"max" mapstructure:"max"`

	// Override 显式覆盖值；非零时跳过公式与钳制
	Override time.Duration `json:"override,omitempty" mapstructure:"override"`
}

// DefaultTimeoutConfig 返回默认超时参数
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Base:         15 * time.Second,
		PerUnit:      2 * time.Second,
		PerKChar:     2 * time.Second,
		ImagePenalty: 5 * time.Second,
		Min:          15 * time.Second,
		Max:          120 * time.Second,
	}
}

// For 计算一个请求组的超时
func (c TimeoutConfig) For(unitCount, sourceChars int, hasImage bool) time.Duration {
	if c.Override > 0 {
		return c.Override
	}

	timeout := c.Base
	if unitCount > 1 {
		timeout += time.Duration(unitCount-1) * c.PerUnit
	}
	if sourceChars > 0 {
		kChars := (sourceChars + 999) / 1000
		timeout += time.Duration(kChars) * c.PerKChar
	}
	if hasImage {
		timeout += c.ImagePenalty
	}

	if c.Min > 0 && timeout < c.Min {
		timeout = c.Min
	}
	if c.Max > 0 && timeout > c.Max {
		timeout = c.Max
	}
	return timeout
}
