package llm

import (
	"context"
	"time"
)

// ChatRequest 一次同步补全调用
type ChatRequest struct {
	// Model 模型名称
	Model string

	// Instructions 系统指令
	Instructions string

	// UserContent 用户内容（已序列化的请求载荷）
	UserContent string

	// ImageURL 可选的图片引用；为空表示纯文本请求
	ImageURL string

	// SchemaName JSON输出模式名称
	SchemaName string

	// Schema JSON输出模式定义
	Schema map[string]any

	// Timeout 本次请求的超时；零值使用客户端默认
	Timeout time.Duration
}

// ChatResponse 补全调用结果
type ChatResponse struct {
	// Content 模型输出（JSON文本）
	Content string

	// Model 实际使用的模型
	Model string

	// ID 服务端请求标识
	ID string

	// TokensIn 输入token数
	TokensIn int

	// TokensOut 输出token数
	TokensOut int
}

// BatchStatus 批处理作业状态
type BatchStatus string

const (
	BatchStatusInProgress BatchStatus = "in_progress"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusExpired    BatchStatus = "expired"
	BatchStatusCancelled  BatchStatus = "cancelled"
)

// Terminal 状态是否为终态
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusExpired, BatchStatusCancelled:
		return true
	}
	return false
}

// BatchJob 远端批处理作业句柄
type BatchJob struct {
	// ID 作业标识
	ID string

	// Status 当前状态
	Status BatchStatus

	// OutputFileID 结果文件标识，完成后可用
	OutputFileID string

	// ErrorFileID 错误文件标识
	ErrorFileID string

	// Metadata 创建时附加的元数据
	Metadata map[string]string
}

// Client 池化的补全服务客户端。
// 同步路径使用Chat；离线路径使用文件上传、批处理作业与结果下载。
type Client interface {
	// Chat 执行一次带JSON模式约束的补全调用
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// UploadFile 上传一个批处理输入文件，返回文件标识
	UploadFile(ctx context.Context, name string, data []byte) (string, error)

	// CreateBatch 基于已上传的输入文件创建批处理作业
	CreateBatch(ctx context.Context, inputFileID string, metadata map[string]string) (*BatchJob, error)

	// GetBatch 查询批处理作业状态
	GetBatch(ctx context.Context, batchID string) (*BatchJob, error)

	// DownloadFile 下载文件内容
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}
