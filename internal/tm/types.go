package tm

// Status 翻译变体状态
type Status string

const (
	// StatusTranslationNeeded 待翻译
	StatusTranslationNeeded Status = "TRANSLATION_NEEDED"

	// StatusReviewNeeded 待审校
	StatusReviewNeeded Status = "REVIEW_NEEDED"

	// StatusApproved 已定稿
	StatusApproved Status = "APPROVED"
)

// CommentSeverity 变体评论级别
type CommentSeverity string

const (
	// SeverityInfo 信息级别评论
	SeverityInfo CommentSeverity = "INFO"

	// SeverityError 错误级别评论
	SeverityError CommentSeverity = "ERROR"
)

// AIPlaceholderComment 等待AI翻译的占位评论内容
const AIPlaceholderComment = "ai-translate"

// TranslatableUnit 一个可翻译的文本单元在某个目标语言下的投影。
// 由上游抽取产生，对本流水线只读；唯一的写路径是导入合并。
type TranslatableUnit struct {
	// ID 稳定的数字标识
	ID int64 `json:"id"`

	// Name 文本单元名称（如 "home.title.welcome"）
	Name string `json:"name"`

	// Content 源文本
	Content string `json:"content"`

	// Comment 源文本注释
	Comment string `json:"comment,omitempty"`

	// AssetPath 所属资源文件路径
	AssetPath string `json:"assetPath"`

	// AssetExtractionID 所属资源抽取标识，相关上下文按此分组缓存
	AssetExtractionID int64 `json:"assetExtractionId"`

	// Locale 目标语言标签（BCP-47）
	Locale string `json:"locale"`

	// Repository 所属仓库名称
	Repository string `json:"repository"`

	// Included 是否当前输出到本地化产物
	Included bool `json:"included"`

	// Usages 使用位置记录，形如 "src/app/home.ftl:42"，行号可缺省
	Usages []string `json:"usages,omitempty"`

	// ScreenshotRef 截图引用，作为同屏分组键；可为空
	ScreenshotRef string `json:"screenshotRef,omitempty"`

	// ExistingTarget 既有译文（可为空）
	ExistingTarget *ExistingTarget `json:"existingTarget,omitempty"`
}

// ExistingTarget 既有的当前译文变体
type ExistingTarget struct {
	// VariantID 变体标识
	VariantID int64 `json:"variantId"`

	// Content 译文内容
	Content string `json:"content"`

	// Status 变体状态
	Status Status `json:"status"`

	// ErrorComments 既有的错误级别评论，回传给模型作为提示
	ErrorComments []string `json:"errorComments,omitempty"`

	// HasAIPlaceholder 是否带有 ai-translate 占位评论
	HasAIPlaceholder bool `json:"hasAiPlaceholder,omitempty"`
}

// UnitQuery 文本单元查询条件
type UnitQuery struct {
	// Repository 仓库名称（必填）
	Repository string

	// Locale 目标语言标签（必填）
	Locale string

	// Statuses 限定既有变体状态；为空表示不限
	Statuses []Status

	// IDs 显式单元ID列表；为空表示不限
	IDs []int64

	// UntranslatedOnly 仅返回没有既有译文的单元
	UntranslatedOnly bool
}

// VariantWrite 新的当前变体写入请求
type VariantWrite struct {
	Repository string
	Locale     string
	UnitID     int64
	Content    string
	Status     Status
	Included   bool
}

// WriteResult 变体写入结果
type WriteResult struct {
	// VariantID 写入后的当前变体标识
	VariantID int64

	// Changed 当前变体指针是否真正发生了变化
	Changed bool
}
