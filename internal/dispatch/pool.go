package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ja-openai/mojito-sub000/internal/apperrors"
)

// PoolConfig 有界调度池参数
type PoolConfig struct {
	// MaxConcurrent 最大并发在途请求数
	MaxConcurrent int `json:"max_concurrent" mapstructure:"max_concurrent"`

	// MaxPending 最大排队等待数，超出立即失败而不是无限排队
	MaxPending int `json:"max_pending" mapstructure:"max_pending"`

	// AcquireTimeout 获取槽位的超时，与单请求超时相互独立
	AcquireTimeout time.Duration `json:"acquire_timeout" mapstructure:"acquire_timeout"`
}

// DefaultPoolConfig 返回默认池参数
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConcurrent:  8,
		MaxPending:     64,
		AcquireTimeout: 30 * time.Second,
	}
}

// Pool 有界调度池：固定并发上限、有界等待队列、独立获取超时。
// 多个语言的请求组并发提交时共享同一个池。
type Pool struct {
	sem            chan struct{}
	pending        atomic.Int64
	maxPending     int64
	acquireTimeout time.Duration
}

// NewPool 创建调度池
func NewPool(config PoolConfig) *Pool {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	if config.MaxPending < 0 {
		config.MaxPending = 0
	}
	return &Pool{
		sem:            make(chan struct{}, config.MaxConcurrent),
		maxPending:     int64(config.MaxPending),
		acquireTimeout: config.AcquireTimeout,
	}
}

// Acquire 获取一个槽位。
// 等待队列已满时立即返回 ErrPoolExhausted；等待超过获取超时返回 ErrAcquireTimeout。
func (p *Pool) Acquire(ctx context.Context) error {
	// 先尝试免等待获取，避免空闲池也计入等待队列
	select {
	case p.sem <- struct{}{}:
		return nil
	default:
	}

	if p.pending.Add(1) > p.maxPending {
		p.pending.Add(-1)
		return apperrors.ErrPoolExhausted
	}
	defer p.pending.Add(-1)

	var timeout <-chan time.Time
	if p.acquireTimeout > 0 {
		timer := time.NewTimer(p.acquireTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case p.sem <- struct{}{}:
		return nil
	case <-timeout:
		return apperrors.ErrAcquireTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 归还槽位
func (p *Pool) Release() {
	<-p.sem
}

// Pending 当前等待队列长度
func (p *Pool) Pending() int {
	return int(p.pending.Load())
}
