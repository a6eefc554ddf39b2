package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger 创建一个新的日志记录器
func NewLogger(debug bool) *zap.Logger {
	config := zap.NewProductionConfig()

	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	config.DisableStacktrace = true

	l, err := config.Build()
	if err != nil {
		panic("初始化日志系统失败: " + err.Error())
	}

	return l
}

// NewTaggedLogger 创建带有运行标识的日志记录器
func NewTaggedLogger(debug bool, runID string) *zap.Logger {
	return NewLogger(debug).With(zap.String("runID", runID))
}
