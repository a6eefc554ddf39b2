package tm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ja-openai/mojito-sub000/internal/apperrors"
)

// FileStore 基于JSON文件的翻译记忆实现。
// 面向命令行场景：上游平台导出文本单元快照，导入合并的结果写回同一文件。
type FileStore struct {
	path string
	mem  *MemoryStore
}

// fileSnapshot 文件快照格式
type fileSnapshot struct {
	Units []*TranslatableUnit `json:"units"`
}

// NewFileStore 从JSON文件加载翻译记忆
func NewFileStore(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read translation memory file: %w", err)
	}

	var snap fileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse translation memory file: %w", err)
	}

	return &FileStore{
		path: path,
		mem:  NewMemoryStore(snap.Units...),
	}, nil
}

// CheckRepository 校验仓库是否存在
func (s *FileStore) CheckRepository(ctx context.Context, repository string) error {
	return s.mem.CheckRepository(ctx, repository)
}

// FindUnits 按条件查询文本单元
func (s *FileStore) FindUnits(ctx context.Context, q UnitQuery) ([]*TranslatableUnit, error) {
	return s.mem.FindUnits(ctx, q)
}

// FindByAssetExtraction 返回某次资源抽取下的全部兄弟单元
func (s *FileStore) FindByAssetExtraction(ctx context.Context, extractionID int64, locale string) ([]*TranslatableUnit, error) {
	return s.mem.FindByAssetExtraction(ctx, extractionID, locale)
}

// AddCurrentVariant 写入新的当前变体并落盘
func (s *FileStore) AddCurrentVariant(ctx context.Context, w VariantWrite) (*WriteResult, error) {
	res, err := s.mem.AddCurrentVariant(ctx, w)
	if err != nil {
		return nil, err
	}
	if res.Changed {
		if err := s.flush(); err != nil {
			return nil, apperrors.WrapError(err, apperrors.ErrCodeStore, "persist translation memory")
		}
	}
	return res, nil
}

// AddComment 给变体追加评论
func (s *FileStore) AddComment(ctx context.Context, variantID int64, severity CommentSeverity, message string) error {
	return s.mem.AddComment(ctx, variantID, severity, message)
}

// RemoveAIPlaceholderComment 清除单元上的占位评论
func (s *FileStore) RemoveAIPlaceholderComment(ctx context.Context, unitID int64) error {
	if err := s.mem.RemoveAIPlaceholderComment(ctx, unitID); err != nil {
		return err
	}
	return s.flush()
}

// flush 将当前状态写回文件
func (s *FileStore) flush() error {
	s.mem.mu.RLock()
	snap := fileSnapshot{Units: make([]*TranslatableUnit, 0, len(s.mem.units))}
	for _, u := range s.mem.units {
		snap.Units = append(snap.Units, u)
	}
	s.mem.mu.RUnlock()

	sortUnitsByID(snap.Units)

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return err
	}

	// 先写临时文件再替换，避免写一半被读到
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
