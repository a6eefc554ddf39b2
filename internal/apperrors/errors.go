package apperrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// 预定义错误
var (
	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownRepository 未知的仓库
	ErrUnknownRepository = errors.New("unknown repository")

	// ErrMissingCredentials 缺少补全服务凭证
	ErrMissingCredentials = errors.New("missing completion service credentials")

	// ErrPoolExhausted 请求池已满，排队数超过上限
	ErrPoolExhausted = errors.New("dispatch pool exhausted")

	// ErrAcquireTimeout 获取请求池槽位超时
	ErrAcquireTimeout = errors.New("dispatch pool acquire timeout")

	// ErrBatchAttemptsExhausted 批处理状态轮询重试次数耗尽
	ErrBatchAttemptsExhausted = errors.New("batch status retry attempts exhausted")

	// ErrSnapshotNotFound 批处理快照不存在
	ErrSnapshotNotFound = errors.New("batch snapshot not found")

	// ErrUnitNotFound 文本单元不存在
	ErrUnitNotFound = errors.New("text unit not found")
)

// 错误代码常量
const (
	ErrCodeConfig   = "CONFIG_ERROR"
	ErrCodeDispatch = "DISPATCH_ERROR"
	ErrCodeBatch    = "BATCH_ERROR"
	ErrCodeImport   = "IMPORT_ERROR"
	ErrCodeTimeout  = "TIMEOUT_ERROR"
	ErrCodeParse    = "PARSE_ERROR"
	ErrCodeStore    = "STORE_ERROR"
	ErrCodeUnknown  = "UNKNOWN_ERROR"
)

// PipelineError 流水线错误
type PipelineError struct {
	Code    string // 错误代码
	Message string // 错误消息
	Cause   error  // 原因
	Retry   bool   // 是否可重试
}

// Error 实现error接口
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回原因错误
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// IsRetryable 是否可重试
func (e *PipelineError) IsRetryable() bool {
	return e.Retry
}

// New 创建流水线错误
func New(code, message string) *PipelineError {
	return &PipelineError{
		Code:    code,
		Message: message,
	}
}

// WrapError 包装错误，自动判定可重试性
func WrapError(err error, code, message string) *PipelineError {
	if err == nil {
		return nil
	}

	// 如果已经是PipelineError，保留原有代码
	var pe *PipelineError
	if errors.As(err, &pe) {
		return &PipelineError{
			Code:    pe.Code,
			Message: message + ": " + pe.Message,
			Cause:   pe.Cause,
			Retry:   pe.Retry,
		}
	}

	return &PipelineError{
		Code:    code,
		Message: message,
		Cause:   err,
		Retry:   IsRetryable(err),
	}
}

// IsRetryable 判断错误是否属于可重试的瞬时故障
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// 配置类错误永不重试
	if errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrUnknownRepository) ||
		errors.Is(err, ErrMissingCredentials) {
		return false
	}

	// 检查是否包含特定的错误信息
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"temporary failure",
		"rate limit",
		"429",
		"503",
		"504",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"i/o timeout",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
