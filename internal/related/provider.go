package related

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ja-openai/mojito-sub000/internal/tm"
	"go.uber.org/zap"
)

// Mode 相关上下文采集模式
type Mode string

const (
	// ModeNone 不采集相关上下文
	ModeNone Mode = "NONE"

	// ModeUsages 按使用位置的文件路径分组采集
	ModeUsages Mode = "USAGES"

	// ModeIDPrefix 按单元名称首个'.'之前的前缀分组采集
	ModeIDPrefix Mode = "ID_PREFIX"
)

// Entry 一条相关上下文：邻居单元的文本与描述
type Entry struct {
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
}

// entryOverhead 预算计算时每条记录的固定开销估算（分隔符、字段名等）
const entryOverhead = 20

// DefaultCharBudget 默认的总字符预算
const DefaultCharBudget = 10000

// Provider 相关上下文提供者。
// 按资源抽取标识惰性加载并索引兄弟单元，一次编排运行内缓存；
// 同一资源的多个单元并发首次访问时保证每个键只构建一次。
type Provider struct {
	reader tm.Reader
	mode   Mode
	budget int
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]*indexEntry
}

// indexEntry 缓存条目，ready关闭后idx/err可读
type indexEntry struct {
	ready chan struct{}
	idx   *assetIndex
	err   error
}

// NewProvider 创建相关上下文提供者
func NewProvider(reader tm.Reader, mode Mode, budget int, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if budget <= 0 {
		budget = DefaultCharBudget
	}
	return &Provider{
		reader: reader,
		mode:   mode,
		budget: budget,
		logger: logger,
		cache:  make(map[string]*indexEntry),
	}
}

// GetRelatedContext 返回某单元的相关上下文。
// 模式为NONE时直接返回空，不触发任何索引构建；
// 单元在索引中缺失（并发抽取更新造成的漂移）返回空并记录警告，不算错误。
func (p *Provider) GetRelatedContext(ctx context.Context, unit *tm.TranslatableUnit) ([]Entry, error) {
	if p.mode == ModeNone || unit == nil {
		return nil, nil
	}

	idx, err := p.index(ctx, unit.AssetExtractionID, unit.Locale)
	if err != nil {
		return nil, err
	}

	if !idx.contains(unit.ID) {
		p.logger.Warn("unit missing from related context index",
			zap.Int64("unitID", unit.ID),
			zap.Int64("assetExtractionID", unit.AssetExtractionID))
		return nil, nil
	}

	var neighbors []*tm.TranslatableUnit
	switch p.mode {
	case ModeUsages:
		neighbors = idx.neighborsByUsage(unit)
	case ModeIDPrefix:
		neighbors = idx.neighborsByPrefix(unit)
	}

	entries := make([]Entry, 0, len(neighbors))
	for _, n := range neighbors {
		entries = append(entries, Entry{Text: n.Content, Description: n.Comment})
	}

	return FilterByCharLimit(entries, p.budget), nil
}

// index 取得某次资源抽取的索引，必要时构建（每个键只构建一次）
func (p *Provider) index(ctx context.Context, extractionID int64, locale string) (*assetIndex, error) {
	key := strconv.FormatInt(extractionID, 10) + "/" + locale

	p.mu.Lock()
	e, ok := p.cache[key]
	if !ok {
		e = &indexEntry{ready: make(chan struct{})}
		p.cache[key] = e
		p.mu.Unlock()

		e.idx, e.err = p.build(ctx, extractionID, locale)
		close(e.ready)
		return e.idx, e.err
	}
	p.mu.Unlock()

	select {
	case <-e.ready:
		return e.idx, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// build 加载兄弟单元并建立两套索引
func (p *Provider) build(ctx context.Context, extractionID int64, locale string) (*assetIndex, error) {
	siblings, err := p.reader.FindByAssetExtraction(ctx, extractionID, locale)
	if err != nil {
		return nil, err
	}

	idx := &assetIndex{
		ids:       make(map[int64]bool, len(siblings)),
		unitPaths: make(map[int64][]string),
	}
	for _, u := range siblings {
		idx.ids[u.ID] = true
	}

	// 两套索引只在对应模式下构建
	switch p.mode {
	case ModeUsages:
		idx.buildUsageIndex(siblings)
	case ModeIDPrefix:
		idx.buildPrefixIndex(siblings)
	}

	p.logger.Debug("related context index built",
		zap.Int64("assetExtractionID", extractionID),
		zap.String("locale", locale),
		zap.Int("siblings", len(siblings)))

	return idx, nil
}

// FilterByCharLimit 按总字符预算截断：按原始顺序累加，
// 下一条会超出预算时整体截断，余下条目全部丢弃而不是裁剪。
func FilterByCharLimit(entries []Entry, limit int) []Entry {
	total := 0
	for i, e := range entries {
		cost := len(e.Text) + len(e.Description) + entryOverhead
		if total+cost > limit {
			return entries[:i]
		}
		total += cost
	}
	return entries
}

// positioned 带排序位置的单元
type positioned struct {
	unit *tm.TranslatableUnit
	pos  int64
}

// assetIndex 单次资源抽取的兄弟单元索引
type assetIndex struct {
	ids map[int64]bool

	// byUsagePath 使用位置文件路径 -> 按位置排序的单元
	byUsagePath map[string][]positioned

	// unitPaths 单元ID -> 其出现的文件路径列表
	unitPaths map[int64][]string

	// byPrefix 名称前缀 -> 单元
	byPrefix map[string][]*tm.TranslatableUnit
}

func (idx *assetIndex) contains(id int64) bool {
	return idx.ids[id]
}

// buildUsageIndex 按使用位置的文件路径分组，
// 显式行号优先作为排序位置，缺省时退回单元ID
func (idx *assetIndex) buildUsageIndex(units []*tm.TranslatableUnit) {
	idx.byUsagePath = make(map[string][]positioned)

	for _, u := range units {
		for _, usage := range u.Usages {
			path, line, hasLine := splitUsage(usage)
			if path == "" {
				continue
			}
			pos := u.ID
			if hasLine {
				pos = line
			}
			idx.byUsagePath[path] = append(idx.byUsagePath[path], positioned{unit: u, pos: pos})
			idx.unitPaths[u.ID] = append(idx.unitPaths[u.ID], path)
		}
	}

	for path := range idx.byUsagePath {
		group := idx.byUsagePath[path]
		sort.SliceStable(group, func(i, j int) bool { return group[i].pos < group[j].pos })
	}
}

// buildPrefixIndex 按名称首个'.'之前的前缀分组
func (idx *assetIndex) buildPrefixIndex(units []*tm.TranslatableUnit) {
	idx.byPrefix = make(map[string][]*tm.TranslatableUnit)

	for _, u := range units {
		prefix := namePrefix(u.Name)
		idx.byPrefix[prefix] = append(idx.byPrefix[prefix], u)
	}
}

// neighborsByUsage 返回与单元共享使用文件的邻居，保持组内顺序，排除自身
func (idx *assetIndex) neighborsByUsage(unit *tm.TranslatableUnit) []*tm.TranslatableUnit {
	var out []*tm.TranslatableUnit
	seen := make(map[int64]bool)

	for _, path := range idx.unitPaths[unit.ID] {
		for _, p := range idx.byUsagePath[path] {
			if p.unit.ID == unit.ID || seen[p.unit.ID] {
				continue
			}
			seen[p.unit.ID] = true
			out = append(out, p.unit)
		}
	}
	return out
}

// neighborsByPrefix 返回同前缀的邻居，排除自身
func (idx *assetIndex) neighborsByPrefix(unit *tm.TranslatableUnit) []*tm.TranslatableUnit {
	var out []*tm.TranslatableUnit
	for _, u := range idx.byPrefix[namePrefix(unit.Name)] {
		if u.ID != unit.ID {
			out = append(out, u)
		}
	}
	return out
}

// splitUsage 拆分 "path:line" 形式的使用位置记录
func splitUsage(usage string) (path string, line int64, hasLine bool) {
	i := strings.LastIndex(usage, ":")
	if i < 0 {
		return usage, 0, false
	}
	n, err := strconv.ParseInt(usage[i+1:], 10, 64)
	if err != nil {
		return usage, 0, false
	}
	return usage[:i], n, true
}

// namePrefix 返回名称中首个'.'之前的部分
func namePrefix(name string) string {
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}
