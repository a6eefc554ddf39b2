package request

import "fmt"

// TranslateType 翻译任务类型，决定系统指令与输出JSON模式
type TranslateType string

const (
	// TypeTranslate 常规翻译
	TypeTranslate TranslateType = "TRANSLATE"

	// TypeReview 对既有译文进行审校
	TypeReview TranslateType = "REVIEW"
)

// Valid 类型是否合法
func (t TranslateType) Valid() bool {
	return t == TypeTranslate || t == TypeReview
}

// SystemPrompt 返回该类型的系统指令
func (t TranslateType) SystemPrompt(targetLocale string) string {
	switch t {
	case TypeReview:
		return fmt.Sprintf(reviewPrompt, targetLocale)
	default:
		return fmt.Sprintf(translatePrompt, targetLocale)
	}
}

// SchemaName JSON输出模式名称
func (t TranslateType) SchemaName() string {
	if t == TypeReview {
		return "review_output"
	}
	return "translate_output"
}

// OutputSchema JSON输出模式定义。
// 两种类型共用同一输出形状，审校时target为修订后的译文。
func (t TranslateType) OutputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"translations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id": map[string]any{
							"type":        "integer",
							"description": "the id of the source unit this translation belongs to",
						},
						"target": map[string]any{
							"type":        "string",
							"description": "the translation in the target locale",
						},
						"rationale": map[string]any{
							"type":        "string",
							"description": "a short explanation of notable translation choices",
						},
					},
					"required":             []string{"id", "target", "rationale"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"translations"},
		"additionalProperties": false,
	}
}

const translatePrompt = `You are a professional translator for a software localization platform.
Translate each source string into the target locale %q.

Rules:
- Preserve placeholders, markup and message-format syntax exactly as they appear in the source.
- When glossary terms are provided, use the given target verbatim; terms marked doNotTranslate must stay in the source language.
- Use the related context entries to keep terminology consistent, but translate only the listed units.
- When an existing target and error comments are provided, fix the reported issues instead of translating from scratch.

Return one entry per unit id in the required JSON format.`

const reviewPrompt = `You are a professional localization reviewer.
Review the existing translation of each unit for the target locale %q against its source string.

Rules:
- Preserve placeholders, markup and message-format syntax exactly as they appear in the source.
- When glossary terms are provided, the given target must be used verbatim; terms marked doNotTranslate must stay in the source language.
- Return the corrected translation as target; if the existing translation is already correct, return it unchanged.

Return one entry per unit id in the required JSON format.`
