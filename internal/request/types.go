package request

import (
	"encoding/json"
	"fmt"

	"github.com/ja-openai/mojito-sub000/internal/related"
	"github.com/ja-openai/mojito-sub000/internal/tm"
)

// GlossaryHit 附加到请求里的术语命中
type GlossaryHit struct {
	// Source 源术语
	Source string `json:"source"`

	// Target 目标译文；禁译且未提供译文时等于源术语
	Target string `json:"target,omitempty"`

	// Comment 源术语注释
	Comment string `json:"comment,omitempty"`

	// TargetComment 译文注释
	TargetComment string `json:"targetComment,omitempty"`

	// DoNotTranslate 禁译标记
	DoNotTranslate bool `json:"doNotTranslate,omitempty"`
}

// ExistingTargetInfo 既有译文元数据，仅在存在既有译文时附加
type ExistingTargetInfo struct {
	// Content 既有译文内容
	Content string `json:"content"`

	// Status 既有译文状态
	Status string `json:"status"`

	// ErrorComments 既有错误级别评论，作为修正提示回传
	ErrorComments []string `json:"errorComments,omitempty"`
}

// UnitPayload 单个文本单元的请求载荷
type UnitPayload struct {
	ID             int64               `json:"id"`
	Name           string              `json:"name"`
	Source         string              `json:"source"`
	Comment        string              `json:"comment,omitempty"`
	ExistingTarget *ExistingTargetInfo `json:"existingTarget,omitempty"`
	GlossaryTerms  []GlossaryHit       `json:"glossaryTerms,omitempty"`
	RelatedContext []related.Entry     `json:"relatedContext,omitempty"`
}

// GroupPayload 一个请求组的完整载荷，序列化后作为用户内容发送
type GroupPayload struct {
	TargetLocale string        `json:"targetLocale"`
	Units        []UnitPayload `json:"units"`
}

// Group 按截图引用分组的请求组。
// 组内单元共享一次模型调用（以及可能的图片）；没有截图引用的单元自成一组。
type Group struct {
	// Key 分组键：截图引用，缺省时为单元自身标识
	Key string

	// Units 组内单元，保持首见顺序
	Units []*tm.TranslatableUnit

	// UserContent 序列化后的请求载荷
	UserContent string

	// ImageURL 组截图解析出的图片引用；为空表示无图
	ImageURL string

	// SourceChars 组内源文本字符总数，用于超时计算
	SourceChars int
}

// HasImage 组是否带图片
func (g *Group) HasImage() bool {
	return g.ImageURL != ""
}

// groupKeyForUnit 计算单元的分组键
func groupKeyForUnit(unit *tm.TranslatableUnit) string {
	if unit.ScreenshotRef != "" {
		return unit.ScreenshotRef
	}
	return fmt.Sprintf("unit:%d", unit.ID)
}

// BuildResult 构建结果：请求组加被跳过的单元ID集合
type BuildResult struct {
	// Groups 待派发的请求组
	Groups []*Group

	// Skipped 因"仅匹配术语"过滤被跳过的单元ID，保持输入顺序
	Skipped []int64
}

// Output 模型输出的顶层结构
type Output struct {
	Translations []UnitOutput `json:"translations"`
}

// UnitOutput 模型针对单个单元的输出
type UnitOutput struct {
	ID        int64  `json:"id"`
	Target    string `json:"target"`
	Rationale string `json:"rationale,omitempty"`
}

// ParseOutput 解析模型输出并按单元ID建立索引。
// 同步与批处理两条路径解析同一形状。
func ParseOutput(content string) (map[int64]UnitOutput, error) {
	var out Output
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	byID := make(map[int64]UnitOutput, len(out.Translations))
	for _, t := range out.Translations {
		byID[t.ID] = t
	}
	return byID, nil
}
