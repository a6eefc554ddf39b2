package report

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ja-openai/mojito-sub000/internal/store"
)

// OutcomeStatus 单元的最终去向
type OutcomeStatus string

const (
	// OutcomeImported 已导入
	OutcomeImported OutcomeStatus = "imported"

	// OutcomeSkipped 被跳过（不是错误）
	OutcomeSkipped OutcomeStatus = "skipped"

	// OutcomeErrored 出错
	OutcomeErrored OutcomeStatus = "errored"
)

// UnitOutcome 单个单元的最终记录。
// 进入流水线的每个单元必须恰好出现一次。
type UnitOutcome struct {
	// UnitID 单元标识
	UnitID int64 `json:"unitId"`

	// Status 去向
	Status OutcomeStatus `json:"status"`

	// Reason 跳过或出错的原因
	Reason string `json:"reason,omitempty"`

	// OldTarget 导入前的既有译文
	OldTarget string `json:"oldTarget,omitempty"`

	// NewTarget 导入后的译文
	NewTarget string `json:"newTarget,omitempty"`

	// Changed 当前变体指针是否变化
	Changed bool `json:"changed,omitempty"`
}

// LocaleReport 单个语言的汇总
type LocaleReport struct {
	// Locale 目标语言
	Locale string `json:"locale"`

	// Imported 已导入数
	Imported int `json:"imported"`

	// Skipped 跳过数
	Skipped int `json:"skipped"`

	// Errored 出错数
	Errored int `json:"errored"`

	// Outcomes 逐单元记录
	Outcomes []UnitOutcome `json:"outcomes"`
}

// Add 记录一个单元去向并更新计数
func (r *LocaleReport) Add(outcome UnitOutcome) {
	r.Outcomes = append(r.Outcomes, outcome)
	switch outcome.Status {
	case OutcomeImported:
		r.Imported++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeErrored:
		r.Errored++
	}
}

// RunReport 一次编排运行的完整报告。
// 运行永远产出报告：单个坏响应只体现为其中的errored记录。
type RunReport struct {
	// RunID 运行标识
	RunID string `json:"runId"`

	// Repository 仓库名称
	Repository string `json:"repository"`

	// Mode 执行模式
	Mode string `json:"mode"`

	// Model 模型名称
	Model string `json:"model"`

	// DryRun 是否预演
	DryRun bool `json:"dryRun,omitempty"`

	// StartedAt 开始时间
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt 结束时间
	FinishedAt time.Time `json:"finishedAt"`

	// Locales 各语言汇总
	Locales []LocaleReport `json:"locales"`

	// SkippedLocales 没有候选单元的语言
	SkippedLocales []string `json:"skippedLocales,omitempty"`

	// Batches 批处理模式下创建的离线作业
	Batches []BatchRecord `json:"batches,omitempty"`
}

// BatchRecord 批处理模式下创建的一个作业记录
type BatchRecord struct {
	// BatchID 远端作业标识
	BatchID string `json:"batchId"`

	// SnapshotKey 快照键
	SnapshotKey string `json:"snapshotKey"`

	// Locale 目标语言
	Locale string `json:"locale"`

	// UnitCount 提交的单元数
	UnitCount int `json:"unitCount"`

	// ImportJobID 已登记的导入作业句柄
	ImportJobID string `json:"importJobId,omitempty"`
}

// Totals 全局计数
func (r *RunReport) Totals() (imported, skipped, errored int) {
	for _, l := range r.Locales {
		imported += l.Imported
		skipped += l.Skipped
		errored += l.Errored
	}
	return
}

// Save 把报告持久化到对象存储
func (r *RunReport) Save(ctx context.Context, blobs store.Store) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return blobs.Put(ctx, store.NamespaceReports, r.RunID, raw)
}

// Load 从对象存储读取报告
func Load(ctx context.Context, blobs store.Store, runID string) (*RunReport, error) {
	raw, err := blobs.Get(ctx, store.NamespaceReports, runID)
	if err != nil {
		return nil, err
	}
	var r RunReport
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
