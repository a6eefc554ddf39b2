package importer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ja-openai/mojito-sub000/internal/tm"
)

// Outcome 待导入的单元结果。
// Error非空的单元不进入写路径，原样记入导入结果。
type Outcome struct {
	// Unit 来源单元
	Unit *tm.TranslatableUnit

	// Target 模型输出的原始译文
	Target string

	// Rationale 模型给出的翻译理由，作为审计评论写回
	Rationale string

	// Error 上游产生的单元级错误
	Error string
}

// ImportResult 单个单元的导入结果
type ImportResult struct {
	// UnitID 单元标识
	UnitID int64 `json:"unitId"`

	// OldTarget 导入前的既有译文
	OldTarget string `json:"oldTarget,omitempty"`

	// NewTarget 修正后的新译文
	NewTarget string `json:"newTarget,omitempty"`

	// VariantID 写入后的当前变体标识
	VariantID int64 `json:"variantId,omitempty"`

	// Changed 当前变体指针是否真正变化
	Changed bool `json:"changed"`

	// Error 单元级错误
	Error string `json:"error,omitempty"`

	// CommentsAdded 本次写入追加的评论数
	CommentsAdded int `json:"commentsAdded"`
}

// Merger 导入合并器：把模型结果写回翻译记忆。
// 对"无语义变化"的单元重复执行是幂等的：写路径报告指针未变化。
type Merger struct {
	writer tm.Writer
	fixer  *AutoFixer
	status tm.Status
	dryRun bool
	logger *zap.Logger
}

// NewMerger 创建导入合并器。status为导入后的变体状态。
func NewMerger(writer tm.Writer, status tm.Status, dryRun bool, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{
		writer: writer,
		fixer:  NewAutoFixer(),
		status: status,
		dryRun: dryRun,
		logger: logger,
	}
}

// Apply 逐单元应用导入结果。
// 单个单元写入失败只影响自己；返回的结果与输入一一对应。
func (m *Merger) Apply(ctx context.Context, outcomes []Outcome) []ImportResult {
	results := make([]ImportResult, 0, len(outcomes))
	for _, outcome := range outcomes {
		results = append(results, m.applyOne(ctx, outcome))
	}
	return results
}

// applyOne 应用单个单元的结果
func (m *Merger) applyOne(ctx context.Context, outcome Outcome) ImportResult {
	unit := outcome.Unit
	result := ImportResult{UnitID: unit.ID}
	if unit.ExistingTarget != nil {
		result.OldTarget = unit.ExistingTarget.Content
	}

	if outcome.Error != "" {
		result.Error = outcome.Error
		return result
	}

	fixed := m.fixer.Fix(unit.Content, outcome.Target)
	result.NewTarget = fixed

	if missing := m.fixer.MissingPlaceholders(unit.Content, fixed); len(missing) > 0 {
		result.Error = fmt.Sprintf("translation drops placeholder %s", strings.Join(missing, ", "))
		return result
	}

	if m.dryRun {
		// 预演：只和既有译文比较，不触碰写路径
		result.Changed = result.OldTarget != fixed
		m.logger.Info("dry run, skipping variant write",
			zap.Int64("unitID", unit.ID),
			zap.String("locale", unit.Locale),
			zap.Bool("wouldChange", result.Changed))
		return result
	}

	write, err := m.writer.AddCurrentVariant(ctx, tm.VariantWrite{
		Repository: unit.Repository,
		Locale:     unit.Locale,
		UnitID:     unit.ID,
		Content:    fixed,
		Status:     m.status,
		Included:   unit.Included,
	})
	if err != nil {
		result.Error = fmt.Sprintf("write variant: %v", err)
		return result
	}
	result.VariantID = write.VariantID
	result.Changed = write.Changed

	if unit.ExistingTarget != nil && unit.ExistingTarget.HasAIPlaceholder {
		if err := m.writer.RemoveAIPlaceholderComment(ctx, unit.ID); err != nil {
			m.logger.Warn("failed to remove placeholder comment",
				zap.Int64("unitID", unit.ID),
				zap.Error(err))
		}
	}

	// 审计评论只在指针真正变化时追加，重复导入不会堆积评论
	if write.Changed && outcome.Rationale != "" {
		if err := m.writer.AddComment(ctx, write.VariantID, tm.SeverityInfo, outcome.Rationale); err != nil {
			m.logger.Warn("failed to add audit comment",
				zap.Int64("variantID", write.VariantID),
				zap.Error(err))
		} else {
			result.CommentsAdded = 1
		}
	}

	return result
}
