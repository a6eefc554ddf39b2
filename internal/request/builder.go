package request

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ja-openai/mojito-sub000/internal/glossary"
	"github.com/ja-openai/mojito-sub000/internal/related"
	"github.com/ja-openai/mojito-sub000/internal/tm"
)

// ImageResolver 把截图引用解析成模型可访问的图片URL。
// 解析不到时返回空串，不算错误。
type ImageResolver interface {
	ResolveImage(ctx context.Context, screenshotRef string) (string, error)
}

// Options 单次构建的参数
type Options struct {
	// TargetLocale 目标语言标签
	TargetLocale string

	// Type 翻译任务类型
	Type TranslateType

	// OnlyMatchedUnits 仅保留命中术语的单元，其余记入跳过集合。
	// 过滤在分组之前逐单元执行，同步与批处理两条路径语义一致。
	OnlyMatchedUnits bool
}

// Builder 请求构建器：术语命中、既有译文元数据、相关上下文与图片的装配
type Builder struct {
	trie    *glossary.Trie
	related *related.Provider
	images  ImageResolver
	logger  *zap.Logger
}

// NewBuilder 创建请求构建器。trie与images可为nil。
func NewBuilder(trie *glossary.Trie, relProvider *related.Provider, images ImageResolver, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		trie:    trie,
		related: relProvider,
		images:  images,
		logger:  logger,
	}
}

// BuildGroups 同步路径：按截图引用分组构建请求。
// 步骤：逐单元术语匹配与过滤 → 按首见顺序分组 → 逐组装配载荷与图片。
func (b *Builder) BuildGroups(ctx context.Context, units []*tm.TranslatableUnit, opts Options) (*BuildResult, error) {
	kept, hits, skipped := b.filterByGlossary(units, opts)

	// 分组保持首见顺序
	var order []string
	grouped := make(map[string][]*tm.TranslatableUnit)
	for _, unit := range kept {
		key := groupKeyForUnit(unit)
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], unit)
	}

	result := &BuildResult{Skipped: skipped}
	for _, key := range order {
		group, err := b.buildGroup(ctx, key, grouped[key], hits, opts)
		if err != nil {
			return nil, err
		}
		result.Groups = append(result.Groups, group)
	}

	b.logger.Debug("built request groups",
		zap.String("locale", opts.TargetLocale),
		zap.Int("units", len(units)),
		zap.Int("groups", len(result.Groups)),
		zap.Int("skipped", len(skipped)))

	return result, nil
}

// BuildSingles 批处理路径：每个单元一个独立请求组，不按截图分组。
// 术语过滤语义与BuildGroups一致。
func (b *Builder) BuildSingles(ctx context.Context, units []*tm.TranslatableUnit, opts Options) (*BuildResult, error) {
	kept, hits, skipped := b.filterByGlossary(units, opts)

	result := &BuildResult{Skipped: skipped}
	for _, unit := range kept {
		group, err := b.buildGroup(ctx, groupKeyForUnit(unit), []*tm.TranslatableUnit{unit}, hits, opts)
		if err != nil {
			return nil, err
		}
		result.Groups = append(result.Groups, group)
	}
	return result, nil
}

// filterByGlossary 逐单元执行术语匹配；启用"仅匹配术语"时无命中的单元进入跳过集合
func (b *Builder) filterByGlossary(units []*tm.TranslatableUnit, opts Options) ([]*tm.TranslatableUnit, map[int64][]*glossary.Term, []int64) {
	hits := make(map[int64][]*glossary.Term, len(units))
	var kept []*tm.TranslatableUnit
	var skipped []int64

	for _, unit := range units {
		var terms []*glossary.Term
		if b.trie != nil {
			terms = b.trie.FindTerms(unit.Content)
		}
		if opts.OnlyMatchedUnits && len(terms) == 0 {
			skipped = append(skipped, unit.ID)
			continue
		}
		hits[unit.ID] = terms
		kept = append(kept, unit)
	}
	return kept, hits, skipped
}

// buildGroup 装配一个请求组的完整载荷
func (b *Builder) buildGroup(ctx context.Context, key string, units []*tm.TranslatableUnit, hits map[int64][]*glossary.Term, opts Options) (*Group, error) {
	payload := GroupPayload{
		TargetLocale: opts.TargetLocale,
		Units:        make([]UnitPayload, 0, len(units)),
	}

	sourceChars := 0
	for _, unit := range units {
		up, err := b.buildUnitPayload(ctx, unit, hits[unit.ID])
		if err != nil {
			return nil, err
		}
		payload.Units = append(payload.Units, up)
		sourceChars += len([]rune(unit.Content))
	}

	raw, err := json.Marshal(&payload)
	if err != nil {
		return nil, fmt.Errorf("serialize request payload: %w", err)
	}

	group := &Group{
		Key:         key,
		Units:       units,
		UserContent: string(raw),
		SourceChars: sourceChars,
	}

	// 分组键来自截图引用时尝试解析图片；解析失败只降级为纯文本
	if b.images != nil && units[0].ScreenshotRef != "" {
		url, err := b.images.ResolveImage(ctx, units[0].ScreenshotRef)
		if err != nil {
			b.logger.Warn("failed to resolve screenshot image",
				zap.String("screenshotRef", units[0].ScreenshotRef),
				zap.Error(err))
		} else {
			group.ImageURL = url
		}
	}

	return group, nil
}

// buildUnitPayload 装配单个单元的载荷
func (b *Builder) buildUnitPayload(ctx context.Context, unit *tm.TranslatableUnit, terms []*glossary.Term) (UnitPayload, error) {
	up := UnitPayload{
		ID:      unit.ID,
		Name:    unit.Name,
		Source:  unit.Content,
		Comment: unit.Comment,
	}

	// 既有译文元数据只在确实存在时附加
	if unit.ExistingTarget != nil {
		up.ExistingTarget = &ExistingTargetInfo{
			Content:       unit.ExistingTarget.Content,
			Status:        string(unit.ExistingTarget.Status),
			ErrorComments: unit.ExistingTarget.ErrorComments,
		}
	}

	for _, term := range terms {
		hit := GlossaryHit{
			Source:         term.Source,
			Comment:        term.Comment,
			TargetComment:  term.TargetComment,
			DoNotTranslate: term.DoNotTranslate,
		}
		switch {
		case term.Target != nil:
			hit.Target = *term.Target
		case term.DoNotTranslate:
			// 禁译且未提供译文：译文就是源术语本身
			hit.Target = term.Source
		}
		up.GlossaryTerms = append(up.GlossaryTerms, hit)
	}

	if b.related != nil {
		entries, err := b.related.GetRelatedContext(ctx, unit)
		if err != nil {
			return UnitPayload{}, fmt.Errorf("related context for unit %d: %w", unit.ID, err)
		}
		up.RelatedContext = entries
	}

	return up, nil
}
