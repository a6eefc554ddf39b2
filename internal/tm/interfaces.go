package tm

import "context"

// Reader 翻译记忆读取接口
type Reader interface {
	// CheckRepository 校验仓库是否存在，不存在返回 apperrors.ErrUnknownRepository
	CheckRepository(ctx context.Context, repository string) error

	// FindUnits 按条件查询文本单元投影
	FindUnits(ctx context.Context, q UnitQuery) ([]*TranslatableUnit, error)

	// FindByAssetExtraction 返回某次资源抽取下的全部兄弟单元
	FindByAssetExtraction(ctx context.Context, extractionID int64, locale string) ([]*TranslatableUnit, error)
}

// Writer 翻译记忆写入接口
type Writer interface {
	// AddCurrentVariant 写入新的当前变体，返回指针是否变化
	AddCurrentVariant(ctx context.Context, w VariantWrite) (*WriteResult, error)

	// AddComment 给变体追加评论
	AddComment(ctx context.Context, variantID int64, severity CommentSeverity, message string) error

	// RemoveAIPlaceholderComment 清除单元上的 ai-translate 占位评论
	RemoveAIPlaceholderComment(ctx context.Context, unitID int64) error
}

// Store 读写合一的翻译记忆接口
type Store interface {
	Reader
	Writer
}
