package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ja-openai/mojito-sub000/internal/apperrors"
	"github.com/ja-openai/mojito-sub000/internal/importer"
	"github.com/ja-openai/mojito-sub000/internal/llm"
	"github.com/ja-openai/mojito-sub000/internal/request"
	"github.com/ja-openai/mojito-sub000/internal/store"
	"github.com/ja-openai/mojito-sub000/internal/tm"
	"github.com/ja-openai/mojito-sub000/pkg/retry"
)

// 批处理作业元数据键
const (
	metaSnapshotKey = "snapshotKey"
	metaRepository  = "repository"
	metaLocale      = "locale"
)

// Snapshot 提交时持久化的原始单元快照。
// 远端作业可能在提交进程退出很久之后才完成，导入只信任这份快照，
// 写入后不再修改。
type Snapshot struct {
	// Key 快照在对象存储里的键
	Key string `json:"key"`

	// Repository 仓库名称
	Repository string `json:"repository"`

	// Locale 目标语言
	Locale string `json:"locale"`

	// Type 翻译任务类型
	Type request.TranslateType `json:"type"`

	// Units 提交的单元，按单元ID关联结果
	Units []*tm.TranslatableUnit `json:"units"`

	// CreatedAt 创建时间
	CreatedAt time.Time `json:"createdAt"`
}

// unitByID 建立快照内单元索引
func (s *Snapshot) unitByID() map[int64]*tm.TranslatableUnit {
	byID := make(map[int64]*tm.TranslatableUnit, len(s.Units))
	for _, u := range s.Units {
		byID[u.ID] = u
	}
	return byID
}

// CreatedBatch 一个已创建的远端批处理作业
type CreatedBatch struct {
	// BatchID 远端作业标识
	BatchID string `json:"batchId"`

	// SnapshotKey 对象存储里的快照键
	SnapshotKey string `json:"snapshotKey"`

	// Locale 目标语言
	Locale string `json:"locale"`

	// UnitCount 提交的单元数
	UnitCount int `json:"unitCount"`

	// SkippedUnits 因"仅匹配术语"过滤被跳过的单元ID
	SkippedUnits []int64 `json:"skippedUnits,omitempty"`
}

// CreateResult 批处理创建结果
type CreateResult struct {
	// Created 已创建的作业
	Created []CreatedBatch `json:"created"`

	// SkippedLocales 没有候选单元的语言，不算错误
	SkippedLocales []string `json:"skippedLocales,omitempty"`

	// Errors 按语言记录的创建错误
	Errors map[string]string `json:"errors,omitempty"`
}

// CreateInput 批处理创建参数
type CreateInput struct {
	// Repository 仓库名称
	Repository string

	// Locales 目标语言列表
	Locales []string

	// Statuses 限定既有变体状态
	Statuses []tm.Status

	// UnitIDs 显式单元列表；为空表示按状态筛选
	UnitIDs []int64

	// UntranslatedOnly 仅选取无既有译文的单元
	UntranslatedOnly bool

	// Type 翻译任务类型
	Type request.TranslateType

	// OnlyMatchedUnits 仅提交命中术语的单元
	OnlyMatchedUnits bool
}

// ImportReport 一次批处理导入的结果
type ImportReport struct {
	// BatchID 远端作业标识
	BatchID string `json:"batchId"`

	// Locale 目标语言
	Locale string `json:"locale"`

	// Results 逐单元导入结果
	Results []importer.ImportResult `json:"results"`

	// LineErrors 无法归并的结果行错误
	LineErrors []string `json:"lineErrors,omitempty"`

	// StatusAttempts 状态查询消耗的尝试次数
	StatusAttempts int `json:"statusAttempts"`
}

// processedLedger 导入进度台账，支撑安全重跑
type processedLedger struct {
	Done   []int64 `json:"done"`
	Failed []int64 `json:"failed"`
}

// Config 批处理流水线配置
type Config struct {
	// Model 模型名称
	Model string

	// Retry 状态查询与下载的重试策略
	Retry retry.Config

	// ImportStatus 导入后的变体状态
	ImportStatus tm.Status

	// DryRun 预演模式
	DryRun bool
}

// Pipeline 离线批处理流水线：提交与导入在时间上解耦，
// 可以运行在不同的进程生命周期里。
type Pipeline struct {
	client  llm.Client
	reader  tm.Reader
	builder *request.Builder
	merger  *importer.Merger
	blobs   store.Store
	config  Config
	logger  *zap.Logger
}

// NewPipeline 创建批处理流水线
func NewPipeline(client llm.Client, tmStore tm.Store, builder *request.Builder, blobs store.Store, config Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		client:  client,
		reader:  tmStore,
		builder: builder,
		merger:  importer.NewMerger(tmStore, config.ImportStatus, config.DryRun, logger),
		blobs:   blobs,
		config:  config,
		logger:  logger,
	}
}

// CreateBatches 为每个目标语言创建一个离线作业。
// 没有候选单元的语言记为跳过；单个语言的失败不影响其余语言。
func (p *Pipeline) CreateBatches(ctx context.Context, input CreateInput) (*CreateResult, error) {
	result := &CreateResult{Errors: make(map[string]string)}

	for _, locale := range input.Locales {
		created, err := p.createOne(ctx, input, locale)
		if err != nil {
			p.logger.Error("batch creation failed for locale",
				zap.String("locale", locale),
				zap.Error(err))
			result.Errors[locale] = err.Error()
			continue
		}
		if created == nil {
			result.SkippedLocales = append(result.SkippedLocales, locale)
			continue
		}
		result.Created = append(result.Created, *created)
	}

	if len(result.Errors) == 0 {
		result.Errors = nil
	}
	return result, nil
}

// createOne 为单个语言创建作业；没有候选时返回(nil, nil)
func (p *Pipeline) createOne(ctx context.Context, input CreateInput, locale string) (*CreatedBatch, error) {
	units, err := p.reader.FindUnits(ctx, tm.UnitQuery{
		Repository:       input.Repository,
		Locale:           locale,
		Statuses:         input.Statuses,
		IDs:              input.UnitIDs,
		UntranslatedOnly: input.UntranslatedOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("find candidate units: %w", err)
	}
	if len(units) == 0 {
		return nil, nil
	}

	// 批处理路径逐单元构建，不做截图分组
	built, err := p.builder.BuildSingles(ctx, units, request.Options{
		TargetLocale:     locale,
		Type:             input.Type,
		OnlyMatchedUnits: input.OnlyMatchedUnits,
	})
	if err != nil {
		return nil, fmt.Errorf("build requests: %w", err)
	}
	if len(built.Groups) == 0 {
		return nil, nil
	}

	// 先落快照再上传：快照是结果关联的唯一依据
	snapshot := Snapshot{
		Key:        uuid.NewString(),
		Repository: input.Repository,
		Locale:     locale,
		Type:       input.Type,
		CreatedAt:  time.Now(),
	}
	for _, group := range built.Groups {
		snapshot.Units = append(snapshot.Units, group.Units[0])
	}
	raw, err := json.Marshal(&snapshot)
	if err != nil {
		return nil, fmt.Errorf("serialize snapshot: %w", err)
	}
	if err := p.blobs.Put(ctx, store.NamespaceBatches, snapshot.Key, raw); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeStore, "persist batch snapshot")
	}

	var buf bytes.Buffer
	for _, group := range built.Groups {
		unit := group.Units[0]
		line := llm.NewBatchRequestLine(strconv.FormatInt(unit.ID, 10), &llm.ChatRequest{
			Model:        p.config.Model,
			Instructions: input.Type.SystemPrompt(locale),
			UserContent:  group.UserContent,
			SchemaName:   input.Type.SchemaName(),
			Schema:       input.Type.OutputSchema(),
		})
		lineRaw, err := json.Marshal(line)
		if err != nil {
			return nil, fmt.Errorf("serialize request line: %w", err)
		}
		buf.Write(lineRaw)
		buf.WriteByte('\n')
	}

	fileName := fmt.Sprintf("ai-translate-%s-%s.jsonl", locale, snapshot.Key)
	fileID, err := p.client.UploadFile(ctx, fileName, buf.Bytes())
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeBatch, "upload batch input file")
	}

	job, err := p.client.CreateBatch(ctx, fileID, map[string]string{
		metaSnapshotKey: snapshot.Key,
		metaRepository:  input.Repository,
		metaLocale:      locale,
	})
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeBatch, "create batch job")
	}

	p.logger.Info("batch job created",
		zap.String("batchID", job.ID),
		zap.String("locale", locale),
		zap.Int("units", len(snapshot.Units)),
		zap.Int("skipped", len(built.Skipped)))

	return &CreatedBatch{
		BatchID:      job.ID,
		SnapshotKey:  snapshot.Key,
		Locale:       locale,
		UnitCount:    len(snapshot.Units),
		SkippedUnits: built.Skipped,
	}, nil
}

// ImportBatch 导入一个已完成的批处理作业。
// 状态查询与文件下载经指数退避重试；单元级模型错误从不重试。
func (p *Pipeline) ImportBatch(ctx context.Context, batchID string) (*ImportReport, error) {
	return p.importBatch(ctx, batchID, nil)
}

// RetryImport 重跑导入：只处理尚未成功的单元加上此前失败的单元
func (p *Pipeline) RetryImport(ctx context.Context, batchID string) (*ImportReport, error) {
	ledger, err := p.loadLedger(ctx, batchID)
	if err != nil {
		return nil, err
	}

	skip := make(map[int64]bool, len(ledger.Done))
	for _, id := range ledger.Done {
		skip[id] = true
	}
	for _, id := range ledger.Failed {
		delete(skip, id)
	}
	return p.importBatch(ctx, batchID, skip)
}

func (p *Pipeline) importBatch(ctx context.Context, batchID string, skip map[int64]bool) (*ImportReport, error) {
	report := &ImportReport{BatchID: batchID}

	statusRetrier := retry.New(p.config.Retry).WithAttemptCounter(func(attempt int) {
		report.StatusAttempts = attempt
	})

	var job *llm.BatchJob
	err := statusRetrier.Do(ctx, func(ctx context.Context) error {
		var err error
		job, err = p.client.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if !job.Status.Terminal() {
			return fmt.Errorf("batch %s still %s", batchID, job.Status)
		}
		return nil
	})
	if err != nil {
		if job != nil && !job.Status.Terminal() {
			err = fmt.Errorf("%w: %v", apperrors.ErrBatchAttemptsExhausted, err)
		}
		return nil, apperrors.WrapError(err, apperrors.ErrCodeBatch, "retrieve batch status")
	}
	if job.Status != llm.BatchStatusCompleted {
		return nil, apperrors.New(apperrors.ErrCodeBatch,
			fmt.Sprintf("batch %s finished with status %s", batchID, job.Status))
	}

	snapshotKey := job.Metadata[metaSnapshotKey]
	if snapshotKey == "" {
		return nil, apperrors.New(apperrors.ErrCodeBatch, "batch job carries no snapshot key")
	}
	snapshot, err := p.loadSnapshot(ctx, snapshotKey)
	if err != nil {
		return nil, err
	}
	report.Locale = snapshot.Locale

	var data []byte
	err = retry.New(p.config.Retry).Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = p.client.DownloadFile(ctx, job.OutputFileID)
		return err
	})
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeBatch, "download batch output")
	}

	outcomes, lineErrors := p.resolveOutput(snapshot, data, skip)
	report.LineErrors = lineErrors
	report.Results = p.merger.Apply(ctx, outcomes)

	if err := p.saveLedger(ctx, batchID, report.Results); err != nil {
		p.logger.Warn("failed to persist import ledger",
			zap.String("batchID", batchID),
			zap.Error(err))
	}

	p.logger.Info("batch imported",
		zap.String("batchID", batchID),
		zap.String("locale", snapshot.Locale),
		zap.Int("results", len(report.Results)),
		zap.Int("lineErrors", len(lineErrors)))

	return report, nil
}

// resolveOutput 逐行解析结果文件并经关联令牌找回原始单元。
// 行级错误（非200状态、坏JSON、未知令牌）只影响该行，其余正常归并；
// 快照里有但结果文件里没有的单元记为单元级错误。
func (p *Pipeline) resolveOutput(snapshot *Snapshot, data []byte, skip map[int64]bool) ([]importer.Outcome, []string) {
	byID := snapshot.unitByID()
	seen := make(map[int64]bool, len(byID))

	var outcomes []importer.Outcome
	var lineErrors []string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var line llm.BatchOutputLine
		if err := json.Unmarshal(raw, &line); err != nil {
			lineErrors = append(lineErrors, fmt.Sprintf("malformed output line: %v", err))
			continue
		}

		unitID, err := strconv.ParseInt(line.CustomID, 10, 64)
		if err != nil {
			lineErrors = append(lineErrors, fmt.Sprintf("invalid correlation token %q", line.CustomID))
			continue
		}
		unit, ok := byID[unitID]
		if !ok {
			lineErrors = append(lineErrors, fmt.Sprintf("correlation token %q not in snapshot", line.CustomID))
			continue
		}
		seen[unitID] = true
		if skip[unitID] {
			continue
		}

		content, ok := line.ContentOf()
		if !ok {
			msg := "non-success output line"
			if line.Error != nil {
				msg = line.Error.Message
			} else if line.Response != nil {
				msg = fmt.Sprintf("output line status %d", line.Response.StatusCode)
			}
			outcomes = append(outcomes, importer.Outcome{Unit: unit, Error: msg})
			continue
		}

		parsed, err := request.ParseOutput(content)
		if err != nil {
			outcomes = append(outcomes, importer.Outcome{Unit: unit, Error: err.Error()})
			continue
		}
		out, ok := parsed[unitID]
		if !ok {
			outcomes = append(outcomes, importer.Outcome{Unit: unit, Error: "unit missing from model output"})
			continue
		}
		outcomes = append(outcomes, importer.Outcome{Unit: unit, Target: out.Target, Rationale: out.Rationale})
	}

	// 没有对应结果行的单元也必须有去向
	for _, unit := range snapshot.Units {
		if !seen[unit.ID] && !skip[unit.ID] {
			outcomes = append(outcomes, importer.Outcome{Unit: unit, Error: "no output line for unit"})
		}
	}

	return outcomes, lineErrors
}

// loadSnapshot 从对象存储读取快照
func (p *Pipeline) loadSnapshot(ctx context.Context, key string) (*Snapshot, error) {
	raw, err := p.blobs.Get(ctx, store.NamespaceBatches, key)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrSnapshotNotFound, key)
		}
		return nil, apperrors.WrapError(err, apperrors.ErrCodeStore, "load batch snapshot")
	}
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeStore, "decode batch snapshot")
	}
	return &snapshot, nil
}

// saveLedger 合并写入导入进度台账
func (p *Pipeline) saveLedger(ctx context.Context, batchID string, results []importer.ImportResult) error {
	ledger, err := p.loadLedger(ctx, batchID)
	if err != nil {
		ledger = &processedLedger{}
	}

	done := make(map[int64]bool, len(ledger.Done))
	for _, id := range ledger.Done {
		done[id] = true
	}
	failed := make(map[int64]bool, len(ledger.Failed))
	for _, id := range ledger.Failed {
		failed[id] = true
	}

	for _, r := range results {
		if r.Error == "" {
			done[r.UnitID] = true
			delete(failed, r.UnitID)
		} else if !done[r.UnitID] {
			failed[r.UnitID] = true
		}
	}

	merged := processedLedger{}
	for id := range done {
		merged.Done = append(merged.Done, id)
	}
	for id := range failed {
		merged.Failed = append(merged.Failed, id)
	}

	raw, err := json.Marshal(&merged)
	if err != nil {
		return err
	}
	return p.blobs.Put(ctx, store.NamespaceProcessed, batchID, raw)
}

// loadLedger 读取导入进度台账
func (p *Pipeline) loadLedger(ctx context.Context, batchID string) (*processedLedger, error) {
	raw, err := p.blobs.Get(ctx, store.NamespaceProcessed, batchID)
	if err != nil {
		if err == store.ErrNotFound {
			return &processedLedger{}, nil
		}
		return nil, apperrors.WrapError(err, apperrors.ErrCodeStore, "load import ledger")
	}
	var ledger processedLedger
	if err := json.Unmarshal(raw, &ledger); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeStore, "decode import ledger")
	}
	return &ledger, nil
}
