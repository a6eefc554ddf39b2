package metrics

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tags 指标维度标签
type Tags struct {
	// Mode 执行模式：sync或batch
	Mode string

	// Repository 仓库名称
	Repository string

	// Model 模型名称
	Model string

	// Locale 目标语言
	Locale string

	// HasImage 请求是否带图
	HasImage bool

	// Result 结果类别：imported、skipped、errored等
	Result string
}

// Sink 指标上报接口
type Sink interface {
	// Count 计数器增量
	Count(name string, delta int64, tags Tags)

	// Timing 耗时记录
	Timing(name string, d time.Duration, tags Tags)
}

// 指标名称
const (
	MetricUnitsProcessed = "ai_translate.units.processed"
	MetricGroupsDispatch = "ai_translate.groups.dispatched"
	MetricDispatchTime   = "ai_translate.dispatch.duration"
	MetricBatchCreated   = "ai_translate.batches.created"
	MetricBatchImported  = "ai_translate.batches.imported"
	MetricRetryAttempts  = "ai_translate.batch.status_attempts"
	MetricRunDuration    = "ai_translate.run.duration"
)

// ZapSink 把指标写进结构化日志的实现
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink 创建日志指标实现
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

func tagFields(tags Tags) []zap.Field {
	return []zap.Field{
		zap.String("mode", tags.Mode),
		zap.String("repository", tags.Repository),
		zap.String("model", tags.Model),
		zap.String("locale", tags.Locale),
		zap.Bool("hasImage", tags.HasImage),
		zap.String("result", tags.Result),
	}
}

// Count 计数器增量
func (s *ZapSink) Count(name string, delta int64, tags Tags) {
	fields := append(tagFields(tags), zap.String("metric", name), zap.Int64("delta", delta))
	s.logger.Debug("metric count", fields...)
}

// Timing 耗时记录
func (s *ZapSink) Timing(name string, d time.Duration, tags Tags) {
	fields := append(tagFields(tags), zap.String("metric", name), zap.Duration("duration", d))
	s.logger.Debug("metric timing", fields...)
}

// Counted 一条计数记录（测试用）
type Counted struct {
	Name  string
	Delta int64
	Tags  Tags
}

// Timed 一条耗时记录（测试用）
type Timed struct {
	Name     string
	Duration time.Duration
	Tags     Tags
}

// MemorySink 内存指标实现，用于测试断言
type MemorySink struct {
	mu      sync.Mutex
	Counts  []Counted
	Timings []Timed
}

// NewMemorySink 创建内存指标实现
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Count 计数器增量
func (s *MemorySink) Count(name string, delta int64, tags Tags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Counts = append(s.Counts, Counted{Name: name, Delta: delta, Tags: tags})
}

// Timing 耗时记录
func (s *MemorySink) Timing(name string, d time.Duration, tags Tags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Timings = append(s.Timings, Timed{Name: name, Duration: d, Tags: tags})
}

// CountTotal 某个计数器在指定结果类别下的累计值（测试用）
func (s *MemorySink) CountTotal(name, result string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, c := range s.Counts {
		if c.Name == name && (result == "" || c.Tags.Result == result) {
			total += c.Delta
		}
	}
	return total
}
