package related

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ja-openai/mojito-sub000/internal/tm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingReader 统计加载次数的读取器，用于验证每个键只构建一次
type countingReader struct {
	*tm.MemoryStore
	loads atomic.Int64
}

func (r *countingReader) FindByAssetExtraction(ctx context.Context, extractionID int64, locale string) ([]*tm.TranslatableUnit, error) {
	r.loads.Add(1)
	return r.MemoryStore.FindByAssetExtraction(ctx, extractionID, locale)
}

func siblingUnits() []*tm.TranslatableUnit {
	return []*tm.TranslatableUnit{
		{ID: 1, Name: "home.title", Content: "Welcome", Comment: "greeting", AssetExtractionID: 7, Locale: "fr-FR", Usages: []string{"src/home.ftl:10"}},
		{ID: 2, Name: "home.subtitle", Content: "Your dashboard", AssetExtractionID: 7, Locale: "fr-FR", Usages: []string{"src/home.ftl:20"}},
		{ID: 3, Name: "home.cta", Content: "Get started", AssetExtractionID: 7, Locale: "fr-FR", Usages: []string{"src/home.ftl"}},
		{ID: 4, Name: "settings.title", Content: "Settings", AssetExtractionID: 7, Locale: "fr-FR", Usages: []string{"src/settings.ftl:5"}},
	}
}

func TestGetRelatedContextByUsages(t *testing.T) {
	store := tm.NewMemoryStore(siblingUnits()...)
	p := NewProvider(store, ModeUsages, 0, zap.NewNop())

	entries, err := p.GetRelatedContext(context.Background(), siblingUnits()[0])
	require.NoError(t, err)

	// 同文件的两个邻居，排除自身与其他文件；
	// 无行号的单元以自身ID(3)作为位置，排在行号10之前
	require.Len(t, entries, 2)
	assert.Equal(t, "Get started", entries[0].Text)
	assert.Equal(t, "Your dashboard", entries[1].Text)
}

func TestGetRelatedContextByIDPrefix(t *testing.T) {
	store := tm.NewMemoryStore(siblingUnits()...)
	p := NewProvider(store, ModeIDPrefix, 0, zap.NewNop())

	entries, err := p.GetRelatedContext(context.Background(), siblingUnits()[3])
	require.NoError(t, err)

	// settings 前缀下没有其他单元
	assert.Empty(t, entries)

	entries, err = p.GetRelatedContext(context.Background(), siblingUnits()[0])
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestGetRelatedContextModeNone(t *testing.T) {
	reader := &countingReader{MemoryStore: tm.NewMemoryStore(siblingUnits()...)}
	p := NewProvider(reader, ModeNone, 0, zap.NewNop())

	entries, err := p.GetRelatedContext(context.Background(), siblingUnits()[0])
	require.NoError(t, err)
	assert.Empty(t, entries)

	// NONE 模式不触发任何加载
	assert.Equal(t, int64(0), reader.loads.Load())
}

func TestGetRelatedContextDriftedUnit(t *testing.T) {
	store := tm.NewMemoryStore(siblingUnits()...)
	p := NewProvider(store, ModeUsages, 0, zap.NewNop())

	// 索引构建后该单元已不在抽取结果中
	drifted := &tm.TranslatableUnit{ID: 99, Name: "home.gone", AssetExtractionID: 7, Locale: "fr-FR"}
	entries, err := p.GetRelatedContext(context.Background(), drifted)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIndexBuiltOncePerKeyUnderConcurrency(t *testing.T) {
	reader := &countingReader{MemoryStore: tm.NewMemoryStore(siblingUnits()...)}
	p := NewProvider(reader, ModeUsages, 0, zap.NewNop())

	units := siblingUnits()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := p.GetRelatedContext(context.Background(), units[n%len(units)])
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), reader.loads.Load())
}

func TestFilterByCharLimit(t *testing.T) {
	entry := func(n int) Entry {
		return Entry{Text: strings.Repeat("a", n)}
	}

	testCases := []struct {
		name     string
		entries  []Entry
		limit    int
		expected int // 保留的条数
	}{
		{
			name:     "all fit",
			entries:  []Entry{entry(10), entry(10)},
			limit:    100,
			expected: 2,
		},
		{
			name:     "truncated at first overflow",
			entries:  []Entry{entry(30), entry(30), entry(30)},
			limit:    110, // 30+20, 30+20 可以，第三条超出
			expected: 2,
		},
		{
			name:     "first entry already too big",
			entries:  []Entry{entry(500)},
			limit:    100,
			expected: 0,
		},
		{
			name:     "empty input",
			entries:  nil,
			limit:    100,
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterByCharLimit(tc.entries, tc.limit)
			assert.Len(t, got, tc.expected)

			// 幂等：再次过滤结果不变
			again := FilterByCharLimit(got, tc.limit)
			assert.Equal(t, got, again)
		})
	}
}
