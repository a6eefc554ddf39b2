package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ja-openai/mojito-sub000/internal/llm"
	"github.com/ja-openai/mojito-sub000/internal/request"
)

// Result 一个请求组的派发结果。
// Err非空表示整组失败，组内所有单元共享这一个错误原因；
// 否则Outputs里有解析成功的单元输出，UnitErrors里是输出缺失的单元。
type Result struct {
	// Group 来源请求组
	Group *request.Group

	// Outputs 按单元ID索引的模型输出
	Outputs map[int64]request.UnitOutput

	// UnitErrors 按单元ID索引的单元级错误
	UnitErrors map[int64]string

	// Err 组级错误
	Err error

	// Response 原始补全响应，成功时可用
	Response *llm.ChatResponse

	// Elapsed 本组从提交到拿到结果的耗时
	Elapsed time.Duration
}

// Config 派发器配置
type Config struct {
	// Model 模型名称
	Model string

	// Timeouts 超时公式参数
	Timeouts TimeoutConfig

	// Pool 调度池参数
	Pool PoolConfig
}

// Dispatcher 同步派发器：把请求组经有界池并发提交给补全服务。
// 熔断器挡在客户端前面，连续基础设施失败时快速失败而不是继续占满池。
type Dispatcher struct {
	client  llm.Client
	pool    *Pool
	config  Config
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewDispatcher 创建派发器
func NewDispatcher(client llm.Client, config Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-dispatch",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Dispatcher{
		client:  client,
		pool:    NewPool(config.Pool),
		config:  config,
		breaker: breaker,
		logger:  logger,
	}
}

// DispatchAll 并发派发一个语言的所有请求组并等待全部完成。
// 每个组独立成败：结果切片与输入组一一对应。
func (d *Dispatcher) DispatchAll(ctx context.Context, groups []*request.Group, opts request.Options) []*Result {
	results := make([]*Result, len(groups))

	var wg sync.WaitGroup
	for i, group := range groups {
		wg.Add(1)
		go func(i int, group *request.Group) {
			defer wg.Done()
			results[i] = d.dispatch(ctx, group, opts)
		}(i, group)
	}
	wg.Wait()

	return results
}

// dispatch 派发一个请求组
func (d *Dispatcher) dispatch(ctx context.Context, group *request.Group, opts request.Options) *Result {
	result := &Result{Group: group}
	start := time.Now()

	if err := d.pool.Acquire(ctx); err != nil {
		result.Err = fmt.Errorf("acquire dispatch slot: %w", err)
		result.Elapsed = time.Since(start)
		return result
	}
	defer d.pool.Release()

	timeout := d.config.Timeouts.For(len(group.Units), group.SourceChars, group.HasImage())
	req := &llm.ChatRequest{
		Model:        d.config.Model,
		Instructions: opts.Type.SystemPrompt(opts.TargetLocale),
		UserContent:  group.UserContent,
		ImageURL:     group.ImageURL,
		SchemaName:   opts.Type.SchemaName(),
		Schema:       opts.Type.OutputSchema(),
		Timeout:      timeout,
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := d.breaker.Execute(func() (interface{}, error) {
		return d.client.Chat(callCtx, req)
	})
	result.Elapsed = time.Since(start)

	if err != nil {
		d.logger.Warn("request group dispatch failed",
			zap.String("groupKey", group.Key),
			zap.String("locale", opts.TargetLocale),
			zap.Int("units", len(group.Units)),
			zap.Duration("timeout", timeout),
			zap.Error(err))
		result.Err = err
		return result
	}
	resp := raw.(*llm.ChatResponse)
	result.Response = resp

	outputs, err := request.ParseOutput(resp.Content)
	if err != nil {
		result.Err = err
		return result
	}

	// 输出缺失是单元级错误，不拖垮同组其他单元
	result.Outputs = make(map[int64]request.UnitOutput, len(group.Units))
	result.UnitErrors = make(map[int64]string)
	for _, unit := range group.Units {
		out, ok := outputs[unit.ID]
		if !ok {
			result.UnitErrors[unit.ID] = "unit missing from model output"
			continue
		}
		result.Outputs[unit.ID] = out
	}

	return result
}
