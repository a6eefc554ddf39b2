package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/ja-openai/mojito-sub000/internal/apperrors"
	"github.com/ja-openai/mojito-sub000/internal/batch"
	"github.com/ja-openai/mojito-sub000/internal/dispatch"
	"github.com/ja-openai/mojito-sub000/internal/glossary"
	"github.com/ja-openai/mojito-sub000/internal/importer"
	"github.com/ja-openai/mojito-sub000/internal/llm"
	"github.com/ja-openai/mojito-sub000/internal/metrics"
	"github.com/ja-openai/mojito-sub000/internal/related"
	"github.com/ja-openai/mojito-sub000/internal/report"
	"github.com/ja-openai/mojito-sub000/internal/request"
	"github.com/ja-openai/mojito-sub000/internal/scheduler"
	"github.com/ja-openai/mojito-sub000/internal/store"
	"github.com/ja-openai/mojito-sub000/internal/tm"
	"github.com/ja-openai/mojito-sub000/pkg/retry"
)

// Mode 执行模式
type Mode string

const (
	// ModeSync 同步分组派发
	ModeSync Mode = "sync"

	// ModeBatch 异步离线批处理
	ModeBatch Mode = "batch"
)

// AdHocTerm 运行时临时指定的单条术语
type AdHocTerm struct {
	Source         string
	Target         string
	DoNotTranslate bool
	CaseSensitive  bool
}

// Params 一次编排运行的参数
type Params struct {
	// Repository 仓库名称
	Repository string

	// Locales 目标语言列表
	Locales []string

	// Mode 执行模式
	Mode Mode

	// Type 翻译任务类型
	Type request.TranslateType

	// GlossaryPath 命名术语表文件路径；可为空
	GlossaryPath string

	// AdHocTerm 临时术语；与GlossaryPath互斥时优先使用术语表
	AdHocTerm *AdHocTerm

	// OnlyMatchedUnits 仅处理命中术语的单元
	OnlyMatchedUnits bool

	// Statuses 限定既有变体状态
	Statuses []tm.Status

	// UnitIDs 显式单元列表
	UnitIDs []int64

	// UntranslatedOnly 仅选取无既有译文的单元
	UntranslatedOnly bool

	// RelatedMode 相关上下文采集模式
	RelatedMode related.Mode

	// RelatedBudget 相关上下文字符预算；零值用默认
	RelatedBudget int

	// DryRun 预演模式：不写翻译记忆
	DryRun bool
}

// Config 编排器配置，构造时传入，运行期间不可变
type Config struct {
	// Model 模型名称
	Model string

	// APIKey 补全服务凭证；为空时运行快速失败
	APIKey string

	// Timeouts 同步派发超时公式参数
	Timeouts dispatch.TimeoutConfig

	// Pool 调度池参数
	Pool dispatch.PoolConfig

	// Retry 批处理基础设施重试策略
	Retry retry.Config

	// ImportStatus 导入后的变体状态
	ImportStatus tm.Status

	// Debug 调试日志
	Debug bool
}

// Orchestrator 顶层编排：选择执行模式、逐语言推进、汇总报告与指标
type Orchestrator struct {
	tmStore tm.Store
	client  llm.Client
	blobs   store.Store
	sink    metrics.Sink
	sched   scheduler.Scheduler
	images  request.ImageResolver
	config  Config
	logger  *zap.Logger
}

// New 创建编排器。sink、sched、images均可为nil。
func New(tmStore tm.Store, client llm.Client, blobs store.Store, sink metrics.Sink, sched scheduler.Scheduler, images request.ImageResolver, config Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = metrics.NewZapSink(logger)
	}
	return &Orchestrator{
		tmStore: tmStore,
		client:  client,
		blobs:   blobs,
		sink:    sink,
		sched:   sched,
		images:  images,
		config:  config,
		logger:  logger,
	}
}

// Run 执行一次编排。
// 配置类错误快速失败；进入执行后单元级错误只体现在报告里，运行总是完成。
func (o *Orchestrator) Run(ctx context.Context, params Params) (*report.RunReport, error) {
	if err := o.validate(ctx, params); err != nil {
		return nil, err
	}

	trie, err := o.loadGlossary(params)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.logger.With(zap.String("runID", runID), zap.String("repository", params.Repository))
	start := time.Now()

	run := &report.RunReport{
		RunID:      runID,
		Repository: params.Repository,
		Mode:       string(params.Mode),
		Model:      o.config.Model,
		DryRun:     params.DryRun,
		StartedAt:  start,
	}

	provider := related.NewProvider(o.tmStore, params.RelatedMode, params.RelatedBudget, log)
	builder := request.NewBuilder(trie, provider, o.images, log)

	switch params.Mode {
	case ModeSync:
		o.runSync(ctx, params, builder, run, log)
	case ModeBatch:
		o.runBatch(ctx, params, builder, run, log)
	}

	run.FinishedAt = time.Now()
	o.sink.Timing(metrics.MetricRunDuration, run.FinishedAt.Sub(start), metrics.Tags{
		Mode:       string(params.Mode),
		Repository: params.Repository,
		Model:      o.config.Model,
	})

	if o.blobs != nil {
		if err := run.Save(ctx, o.blobs); err != nil {
			log.Warn("failed to persist run report", zap.Error(err))
		}
	}

	imported, skipped, errored := run.Totals()
	log.Info("orchestration run finished",
		zap.String("mode", string(params.Mode)),
		zap.Int("imported", imported),
		zap.Int("skipped", skipped),
		zap.Int("errored", errored),
		zap.Duration("elapsed", run.FinishedAt.Sub(start)))

	return run, nil
}

// validate 运行前校验，全部属于快速失败的配置类错误
func (o *Orchestrator) validate(ctx context.Context, params Params) error {
	if o.config.APIKey == "" {
		return apperrors.ErrMissingCredentials
	}
	if params.Repository == "" {
		return fmt.Errorf("%w: repository is required", apperrors.ErrInvalidConfig)
	}
	if len(params.Locales) == 0 {
		return fmt.Errorf("%w: at least one target locale is required", apperrors.ErrInvalidConfig)
	}
	if !params.Type.Valid() {
		return fmt.Errorf("%w: unknown translate type %q", apperrors.ErrInvalidConfig, params.Type)
	}
	if params.Mode != ModeSync && params.Mode != ModeBatch {
		return fmt.Errorf("%w: unknown mode %q", apperrors.ErrInvalidConfig, params.Mode)
	}
	for _, locale := range params.Locales {
		if _, err := language.Parse(locale); err != nil {
			return fmt.Errorf("%w: invalid locale %q: %v", apperrors.ErrInvalidConfig, locale, err)
		}
	}
	return o.tmStore.CheckRepository(ctx, params.Repository)
}

// loadGlossary 装载术语表或临时术语；都没有时返回nil
func (o *Orchestrator) loadGlossary(params Params) (*glossary.Trie, error) {
	if params.GlossaryPath != "" {
		terms, err := glossary.LoadTerms(params.GlossaryPath)
		if err != nil {
			return nil, fmt.Errorf("%w: load glossary: %v", apperrors.ErrInvalidConfig, err)
		}
		return glossary.NewTrieFromTerms(terms), nil
	}
	if t := params.AdHocTerm; t != nil {
		return glossary.NewAdHocTrie(t.Source, t.Target, t.DoNotTranslate, t.CaseSensitive), nil
	}
	return nil, nil
}

// runSync 同步模式：逐语言分组派发后立即合并
func (o *Orchestrator) runSync(ctx context.Context, params Params, builder *request.Builder, run *report.RunReport, log *zap.Logger) {
	dispatcher := dispatch.NewDispatcher(o.client, dispatch.Config{
		Model:    o.config.Model,
		Timeouts: o.config.Timeouts,
		Pool:     o.config.Pool,
	}, log)
	merger := importer.NewMerger(o.tmStore, o.config.ImportStatus, params.DryRun, log)

	for _, locale := range params.Locales {
		localeReport := o.syncLocale(ctx, params, locale, builder, dispatcher, merger, log)
		if localeReport == nil {
			run.SkippedLocales = append(run.SkippedLocales, locale)
			continue
		}
		run.Locales = append(run.Locales, *localeReport)
	}
}

// syncLocale 同步处理单个语言；没有候选单元时返回nil
func (o *Orchestrator) syncLocale(ctx context.Context, params Params, locale string, builder *request.Builder, dispatcher *dispatch.Dispatcher, merger *importer.Merger, log *zap.Logger) *report.LocaleReport {
	units, err := o.tmStore.FindUnits(ctx, tm.UnitQuery{
		Repository:       params.Repository,
		Locale:           locale,
		Statuses:         params.Statuses,
		IDs:              params.UnitIDs,
		UntranslatedOnly: params.UntranslatedOnly,
	})
	if err != nil {
		localeReport := &report.LocaleReport{Locale: locale}
		for _, id := range params.UnitIDs {
			localeReport.Add(report.UnitOutcome{UnitID: id, Status: report.OutcomeErrored, Reason: err.Error()})
		}
		log.Error("failed to load candidate units", zap.String("locale", locale), zap.Error(err))
		return localeReport
	}
	if len(units) == 0 {
		return nil
	}

	opts := request.Options{
		TargetLocale:     locale,
		Type:             params.Type,
		OnlyMatchedUnits: params.OnlyMatchedUnits,
	}
	built, err := builder.BuildGroups(ctx, units, opts)
	if err != nil {
		localeReport := &report.LocaleReport{Locale: locale}
		for _, unit := range units {
			localeReport.Add(report.UnitOutcome{UnitID: unit.ID, Status: report.OutcomeErrored, Reason: err.Error()})
		}
		return localeReport
	}

	localeReport := &report.LocaleReport{Locale: locale}
	for _, id := range built.Skipped {
		localeReport.Add(report.UnitOutcome{UnitID: id, Status: report.OutcomeSkipped, Reason: "no glossary match"})
		o.count(metrics.MetricUnitsProcessed, params, locale, false, "skipped")
	}
	if len(built.Groups) == 0 {
		return localeReport
	}

	results := dispatcher.DispatchAll(ctx, built.Groups, opts)

	var outcomes []importer.Outcome
	for _, result := range results {
		o.sink.Timing(metrics.MetricDispatchTime, result.Elapsed, metrics.Tags{
			Mode:       string(params.Mode),
			Repository: params.Repository,
			Model:      o.config.Model,
			Locale:     locale,
			HasImage:   result.Group.HasImage(),
		})

		if result.Err != nil {
			// 整组失败：组内所有单元共享同一个错误原因
			msg := result.Err.Error()
			for _, unit := range result.Group.Units {
				outcomes = append(outcomes, importer.Outcome{Unit: unit, Error: msg})
			}
			o.count(metrics.MetricGroupsDispatch, params, locale, result.Group.HasImage(), "errored")
			continue
		}
		o.count(metrics.MetricGroupsDispatch, params, locale, result.Group.HasImage(), "ok")

		for _, unit := range result.Group.Units {
			if msg, bad := result.UnitErrors[unit.ID]; bad {
				outcomes = append(outcomes, importer.Outcome{Unit: unit, Error: msg})
				continue
			}
			out := result.Outputs[unit.ID]
			outcomes = append(outcomes, importer.Outcome{Unit: unit, Target: out.Target, Rationale: out.Rationale})
		}
	}

	for _, r := range merger.Apply(ctx, outcomes) {
		if r.Error != "" {
			localeReport.Add(report.UnitOutcome{UnitID: r.UnitID, Status: report.OutcomeErrored, Reason: r.Error, OldTarget: r.OldTarget})
			o.count(metrics.MetricUnitsProcessed, params, locale, false, "errored")
			continue
		}
		localeReport.Add(report.UnitOutcome{
			UnitID:    r.UnitID,
			Status:    report.OutcomeImported,
			OldTarget: r.OldTarget,
			NewTarget: r.NewTarget,
			Changed:   r.Changed,
		})
		o.count(metrics.MetricUnitsProcessed, params, locale, false, "imported")
	}

	// 进入流水线的每个单元必须恰好有一个去向
	if len(localeReport.Outcomes) != len(units) {
		log.Error("unit accounting mismatch",
			zap.String("locale", locale),
			zap.Int("entered", len(units)),
			zap.Int("accounted", len(localeReport.Outcomes)))
	}

	return localeReport
}

// runBatch 批处理模式：创建离线作业并登记导入作业
func (o *Orchestrator) runBatch(ctx context.Context, params Params, builder *request.Builder, run *report.RunReport, log *zap.Logger) {
	pipeline := batch.NewPipeline(o.client, o.tmStore, builder, o.blobs, batch.Config{
		Model:        o.config.Model,
		Retry:        o.config.Retry,
		ImportStatus: o.config.ImportStatus,
		DryRun:       params.DryRun,
	}, log)

	result, err := pipeline.CreateBatches(ctx, batch.CreateInput{
		Repository:       params.Repository,
		Locales:          params.Locales,
		Statuses:         params.Statuses,
		UnitIDs:          params.UnitIDs,
		UntranslatedOnly: params.UntranslatedOnly,
		Type:             params.Type,
		OnlyMatchedUnits: params.OnlyMatchedUnits,
	})
	if err != nil {
		log.Error("batch creation failed", zap.Error(err))
		return
	}

	run.SkippedLocales = result.SkippedLocales
	for locale, msg := range result.Errors {
		run.Locales = append(run.Locales, report.LocaleReport{
			Locale:   locale,
			Errored:  1,
			Outcomes: []report.UnitOutcome{{Status: report.OutcomeErrored, Reason: msg}},
		})
	}

	for _, created := range result.Created {
		record := report.BatchRecord{
			BatchID:     created.BatchID,
			SnapshotKey: created.SnapshotKey,
			Locale:      created.Locale,
			UnitCount:   created.UnitCount,
		}
		o.count(metrics.MetricBatchCreated, params, created.Locale, false, "ok")

		localeReport := report.LocaleReport{Locale: created.Locale}
		for _, id := range created.SkippedUnits {
			localeReport.Add(report.UnitOutcome{UnitID: id, Status: report.OutcomeSkipped, Reason: "no glossary match"})
		}
		if len(localeReport.Outcomes) > 0 {
			run.Locales = append(run.Locales, localeReport)
		}

		// 导入登记为可追踪作业，提交进程退出后仍可恢复执行
		if o.sched != nil {
			handle, err := o.sched.Schedule(ctx, scheduler.JobBatchImport, ImportJobInput{BatchID: created.BatchID}, run.RunID)
			if err != nil {
				log.Warn("failed to schedule import job",
					zap.String("batchID", created.BatchID),
					zap.Error(err))
			} else {
				record.ImportJobID = handle.ID
			}
		}
		run.Batches = append(run.Batches, record)
	}
}

// ImportJobInput 批处理导入作业的持久化输入
type ImportJobInput struct {
	BatchID string `json:"batchId"`
}

// ImportBatch 导入一个已完成的批处理作业
func (o *Orchestrator) ImportBatch(ctx context.Context, batchID string, dryRun bool) (*batch.ImportReport, error) {
	return o.newPipeline(dryRun).ImportBatch(ctx, batchID)
}

// RetryImport 重跑批处理导入，只处理尚未成功的单元
func (o *Orchestrator) RetryImport(ctx context.Context, batchID string, dryRun bool) (*batch.ImportReport, error) {
	imported, err := o.newPipeline(dryRun).RetryImport(ctx, batchID)
	if err != nil {
		return nil, err
	}
	o.count(metrics.MetricBatchImported, Params{Mode: ModeBatch}, imported.Locale, false, "retried")
	return imported, nil
}

func (o *Orchestrator) newPipeline(dryRun bool) *batch.Pipeline {
	builder := request.NewBuilder(nil, nil, o.images, o.logger)
	return batch.NewPipeline(o.client, o.tmStore, builder, o.blobs, batch.Config{
		Model:        o.config.Model,
		Retry:        o.config.Retry,
		ImportStatus: o.config.ImportStatus,
		DryRun:       dryRun,
	}, o.logger)
}

func (o *Orchestrator) count(name string, params Params, locale string, hasImage bool, result string) {
	o.sink.Count(name, 1, metrics.Tags{
		Mode:       string(params.Mode),
		Repository: params.Repository,
		Model:      o.config.Model,
		Locale:     locale,
		HasImage:   hasImage,
		Result:     result,
	})
}
