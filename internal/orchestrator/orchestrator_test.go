package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja-openai/mojito-sub000/internal/apperrors"
	"github.com/ja-openai/mojito-sub000/internal/dispatch"
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

type scriptedClient struct {
	chatFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)
}

func (c *scriptedClient) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return c.chatFunc(ctx, req)
}

func (c *scriptedClient) UploadFile(context.Context, string, []byte) (string, error) {
	return "file-in", nil
}

func (c *scriptedClient) CreateBatch(_ context.Context, _ string, metadata map[string]string) (*llm.BatchJob, error) {
	return &llm.BatchJob{ID: "batch-1", Status: llm.BatchStatusInProgress, Metadata: metadata}, nil
}

func (c *scriptedClient) GetBatch(context.Context, string) (*llm.BatchJob, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *scriptedClient) DownloadFile(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

func echoTranslations(ids ...int64) string {
	entries := make([]string, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, fmt.Sprintf(`{"id":%d,"target":"t%d","rationale":"r"}`, id, id))
	}
	return `{"translations":[` + strings.Join(entries, ",") + `]}`
}

func testConfig() Config {
	return Config{
		Model:        "gpt-test",
		APIKey:       "sk-test",
		Timeouts:     dispatch.TimeoutConfig{Base: time.Second},
		Pool:         dispatch.PoolConfig{MaxConcurrent: 4, MaxPending: 8, AcquireTimeout: time.Second},
		Retry:        retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2.0},
		ImportStatus: tm.StatusReviewNeeded,
	}
}

func webUnit(id int64, locale, content string) *tm.TranslatableUnit {
	return &tm.TranslatableUnit{
		ID: id, Name: fmt.Sprintf("u%d", id), Content: content,
		Repository: "web", Locale: locale, Included: true,
	}
}

func baseParams() Params {
	return Params{
		Repository:  "web",
		Locales:     []string{"fr-FR"},
		Mode:        ModeSync,
		Type:        request.TypeTranslate,
		RelatedMode: related.ModeNone,
	}
}

func TestRunFailsFastOnMissingCredentials(t *testing.T) {
	config := testConfig()
	config.APIKey = ""
	o := New(tm.NewMemoryStore(webUnit(1, "fr-FR", "Hello")), &scriptedClient{}, nil, nil, nil, nil, config, nil)

	_, err := o.Run(context.Background(), baseParams())
	require.ErrorIs(t, err, apperrors.ErrMissingCredentials)
}

func TestRunFailsFastOnInvalidLocale(t *testing.T) {
	o := New(tm.NewMemoryStore(webUnit(1, "fr-FR", "Hello")), &scriptedClient{}, nil, nil, nil, nil, testConfig(), nil)

	params := baseParams()
	params.Locales = []string{"not a locale !!"}
	_, err := o.Run(context.Background(), params)
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestRunFailsFastOnUnknownRepository(t *testing.T) {
	o := New(tm.NewMemoryStore(webUnit(1, "fr-FR", "Hello")), &scriptedClient{}, nil, nil, nil, nil, testConfig(), nil)

	params := baseParams()
	params.Repository = "nope"
	_, err := o.Run(context.Background(), params)
	require.ErrorIs(t, err, apperrors.ErrUnknownRepository)
}

func TestRunSyncImportsAndReports(t *testing.T) {
	u1 := webUnit(1, "fr-FR", "Hello")
	u2 := webUnit(2, "fr-FR", "World")
	tmStore := tm.NewMemoryStore(u1, u2)
	blobs := store.NewMemoryStore()
	sink := metrics.NewMemorySink()

	client := &scriptedClient{chatFunc: func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		if strings.Contains(req.UserContent, `"id":1`) {
			return &llm.ChatResponse{Content: echoTranslations(1)}, nil
		}
		return &llm.ChatResponse{Content: echoTranslations(2)}, nil
	}}

	o := New(tmStore, client, blobs, sink, nil, nil, testConfig(), nil)
	run, err := o.Run(context.Background(), baseParams())
	require.NoError(t, err)

	require.Len(t, run.Locales, 1)
	imported, skipped, errored := run.Totals()
	assert.Equal(t, 2, imported)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, 0, errored)

	require.NotNil(t, u1.ExistingTarget)
	assert.Equal(t, "t1", u1.ExistingTarget.Content)
	assert.Equal(t, tm.StatusReviewNeeded, u1.ExistingTarget.Status)

	// 报告已持久化
	loaded, err := report.Load(context.Background(), blobs, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "web", loaded.Repository)

	assert.Equal(t, int64(2), sink.CountTotal(metrics.MetricUnitsProcessed, "imported"))
}

func TestRunSyncGroupFailureIsolated(t *testing.T) {
	u1 := webUnit(1, "fr-FR", "Hello")
	u2 := webUnit(2, "fr-FR", "World")
	tmStore := tm.NewMemoryStore(u1, u2)

	client := &scriptedClient{chatFunc: func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		if strings.Contains(req.UserContent, `"id":1`) {
			return nil, fmt.Errorf("upstream 503")
		}
		return &llm.ChatResponse{Content: echoTranslations(2)}, nil
	}}

	o := New(tmStore, client, nil, nil, nil, nil, testConfig(), nil)
	run, err := o.Run(context.Background(), baseParams())
	require.NoError(t, err)

	imported, _, errored := run.Totals()
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, errored)
	assert.Nil(t, u1.ExistingTarget)
	require.NotNil(t, u2.ExistingTarget)
}

func TestRunSyncOnlyMatchedSkipAccounting(t *testing.T) {
	u1 := webUnit(1, "fr-FR", "contains foo")
	u2 := webUnit(2, "fr-FR", "no match")
	tmStore := tm.NewMemoryStore(u1, u2)

	client := &scriptedClient{chatFunc: func(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: echoTranslations(1)}, nil
	}}

	o := New(tmStore, client, nil, nil, nil, nil, testConfig(), nil)

	params := baseParams()
	params.OnlyMatchedUnits = true
	params.AdHocTerm = &AdHocTerm{Source: "foo"}

	run, err := o.Run(context.Background(), params)
	require.NoError(t, err)

	imported, skipped, errored := run.Totals()
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 0, errored)
	assert.Nil(t, u2.ExistingTarget)
}

func TestRunSkipsLocaleWithoutCandidates(t *testing.T) {
	tmStore := tm.NewMemoryStore(webUnit(1, "fr-FR", "Hello"))

	client := &scriptedClient{chatFunc: func(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: echoTranslations(1)}, nil
	}}

	o := New(tmStore, client, nil, nil, nil, nil, testConfig(), nil)
	params := baseParams()
	params.Locales = []string{"fr-FR", "de-DE"}

	run, err := o.Run(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, []string{"de-DE"}, run.SkippedLocales)
	require.Len(t, run.Locales, 1)
}

func TestRunBatchCreatesJobsAndSchedulesImport(t *testing.T) {
	tmStore := tm.NewMemoryStore(webUnit(1, "fr-FR", "Hello"))
	blobs := store.NewMemoryStore()
	sched := scheduler.NewStoreScheduler(blobs, nil)

	o := New(tmStore, &scriptedClient{}, blobs, nil, sched, nil, testConfig(), nil)
	params := baseParams()
	params.Mode = ModeBatch

	run, err := o.Run(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, run.Batches, 1)
	record := run.Batches[0]
	assert.Equal(t, "batch-1", record.BatchID)
	assert.Equal(t, 1, record.UnitCount)
	require.NotEmpty(t, record.ImportJobID)

	// 导入作业的输入可按句柄找回
	var input ImportJobInput
	require.NoError(t, sched.ReadInput(context.Background(), record.ImportJobID, &input))
	assert.Equal(t, "batch-1", input.BatchID)
}

func TestRunSyncDryRunDoesNotWrite(t *testing.T) {
	u1 := webUnit(1, "fr-FR", "Hello")
	tmStore := tm.NewMemoryStore(u1)

	client := &scriptedClient{chatFunc: func(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: echoTranslations(1)}, nil
	}}

	o := New(tmStore, client, nil, nil, nil, nil, testConfig(), nil)
	params := baseParams()
	params.DryRun = true

	run, err := o.Run(context.Background(), params)
	require.NoError(t, err)

	imported, _, _ := run.Totals()
	assert.Equal(t, 1, imported)
	assert.Nil(t, u1.ExistingTarget)
}
