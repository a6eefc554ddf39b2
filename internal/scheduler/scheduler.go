package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ja-openai/mojito-sub000/internal/store"
)

// JobType 可调度作业类型
type JobType string

const (
	// JobTranslate 编排运行
	JobTranslate JobType = "AI_TRANSLATE"

	// JobBatchImport 批处理导入
	JobBatchImport JobType = "AI_TRANSLATE_BATCH_IMPORT"

	// JobBatchImportRetry 批处理导入重跑
	JobBatchImportRetry JobType = "AI_TRANSLATE_BATCH_IMPORT_RETRY"
)

// Handle 可追踪的作业句柄
type Handle struct {
	// ID 作业标识
	ID string `json:"id"`

	// Type 作业类型
	Type JobType `json:"type"`

	// ParentID 父作业标识，可为空
	ParentID string `json:"parentId,omitempty"`

	// CreatedAt 创建时间
	CreatedAt time.Time `json:"createdAt"`
}

// Scheduler 作业调度接口。
// 输入随句柄持久化，作业可以在提交进程之外的生命周期里恢复执行。
type Scheduler interface {
	// Schedule 登记一个作业并持久化其输入
	Schedule(ctx context.Context, jobType JobType, input any, parentID string) (*Handle, error)

	// ReadInput 按句柄读取持久化的作业输入
	ReadInput(ctx context.Context, handleID string, out any) error
}

// jobRecord 落盘格式
type jobRecord struct {
	Handle Handle          `json:"handle"`
	Input  json.RawMessage `json:"input"`
}

// StoreScheduler 基于对象存储的调度实现
type StoreScheduler struct {
	blobs  store.Store
	logger *zap.Logger
}

// NewStoreScheduler 创建调度器
func NewStoreScheduler(blobs store.Store, logger *zap.Logger) *StoreScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreScheduler{blobs: blobs, logger: logger}
}

// Schedule 登记作业
func (s *StoreScheduler) Schedule(ctx context.Context, jobType JobType, input any, parentID string) (*Handle, error) {
	handle := &Handle{
		ID:        uuid.NewString(),
		Type:      jobType,
		ParentID:  parentID,
		CreatedAt: time.Now(),
	}

	rawInput, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(&jobRecord{Handle: *handle, Input: rawInput})
	if err != nil {
		return nil, err
	}
	if err := s.blobs.Put(ctx, store.NamespaceJobs, handle.ID, raw); err != nil {
		return nil, err
	}

	s.logger.Info("job scheduled",
		zap.String("jobID", handle.ID),
		zap.String("jobType", string(jobType)),
		zap.String("parentID", parentID))

	return handle, nil
}

// ReadInput 读取作业输入
func (s *StoreScheduler) ReadInput(ctx context.Context, handleID string, out any) error {
	raw, err := s.blobs.Get(ctx, store.NamespaceJobs, handleID)
	if err != nil {
		return err
	}
	var record jobRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return err
	}
	return json.Unmarshal(record.Input, out)
}
