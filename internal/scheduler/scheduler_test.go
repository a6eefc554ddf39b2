package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja-openai/mojito-sub000/internal/store"
)

type retryInput struct {
	BatchID string `json:"batchId"`
}

func TestScheduleAndReadInput(t *testing.T) {
	s := NewStoreScheduler(store.NewMemoryStore(), nil)

	handle, err := s.Schedule(context.Background(), JobBatchImportRetry, retryInput{BatchID: "batch-9"}, "parent-1")
	require.NoError(t, err)
	assert.NotEmpty(t, handle.ID)
	assert.Equal(t, JobBatchImportRetry, handle.Type)
	assert.Equal(t, "parent-1", handle.ParentID)

	// 输入可以在另一个进程生命周期里按句柄找回
	var input retryInput
	require.NoError(t, s.ReadInput(context.Background(), handle.ID, &input))
	assert.Equal(t, "batch-9", input.BatchID)
}

func TestReadInputUnknownHandle(t *testing.T) {
	s := NewStoreScheduler(store.NewMemoryStore(), nil)

	var input retryInput
	err := s.ReadInput(context.Background(), "no-such-handle", &input)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
