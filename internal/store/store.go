package store

import (
	"context"
	"errors"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// 本流水线使用的命名空间
const (
	// NamespaceBatches 批处理快照
	NamespaceBatches = "ai-translate-batches"

	// NamespaceProcessed 批处理导入进度台账
	NamespaceProcessed = "ai-translate-processed"

	// NamespaceReports 运行报告
	NamespaceReports = "ai-translate-reports"

	// NamespaceJobs 调度作业输入
	NamespaceJobs = "ai-translate-jobs"
)

// Store 持久对象存储接口。
// 批处理快照写入后不再修改：离线作业可能在提交进程退出很久之后才完成，
// 正确性依赖关联键指向的快照保持原样。
type Store interface {
	// Put 写入对象
	Put(ctx context.Context, namespace, key string, data []byte) error

	// Get 读取对象，不存在返回 ErrNotFound
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// Delete 删除对象
	Delete(ctx context.Context, namespace, key string) error
}
