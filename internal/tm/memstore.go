package tm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ja-openai/mojito-sub000/internal/apperrors"
)

// MemoryStore 内存翻译记忆实现，主要用于测试与预演
type MemoryStore struct {
	mu            sync.RWMutex
	units         map[int64]*TranslatableUnit
	comments      map[int64][]Comment
	nextVariantID int64
}

// Comment 变体评论记录
type Comment struct {
	VariantID int64
	Severity  CommentSeverity
	Message   string
}

// NewMemoryStore 创建内存翻译记忆
func NewMemoryStore(units ...*TranslatableUnit) *MemoryStore {
	s := &MemoryStore{
		units:         make(map[int64]*TranslatableUnit),
		comments:      make(map[int64][]Comment),
		nextVariantID: 1000,
	}
	for _, u := range units {
		s.units[u.ID] = u
	}
	return s
}

// AddUnit 注入文本单元
func (s *MemoryStore) AddUnit(u *TranslatableUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[u.ID] = u
}

// RemoveUnit 移除文本单元，用于模拟并发抽取更新造成的漂移
func (s *MemoryStore) RemoveUnit(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.units, id)
}

// CheckRepository 校验仓库是否存在
func (s *MemoryStore) CheckRepository(_ context.Context, repository string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.units {
		if u.Repository == repository {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", apperrors.ErrUnknownRepository, repository)
}

// FindUnits 按条件查询文本单元
func (s *MemoryStore) FindUnits(_ context.Context, q UnitQuery) ([]*TranslatableUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idSet := make(map[int64]bool, len(q.IDs))
	for _, id := range q.IDs {
		idSet[id] = true
	}

	var out []*TranslatableUnit
	for _, u := range s.units {
		if u.Repository != q.Repository || u.Locale != q.Locale {
			continue
		}
		if len(idSet) > 0 && !idSet[u.ID] {
			continue
		}
		if q.UntranslatedOnly && u.ExistingTarget != nil {
			continue
		}
		if len(q.Statuses) > 0 {
			if u.ExistingTarget == nil {
				continue
			}
			matched := false
			for _, st := range q.Statuses {
				if u.ExistingTarget.Status == st {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, u)
	}

	// 按ID排序保证稳定顺序
	sortUnitsByID(out)
	return out, nil
}

// FindByAssetExtraction 返回某次资源抽取下的全部兄弟单元
func (s *MemoryStore) FindByAssetExtraction(_ context.Context, extractionID int64, locale string) ([]*TranslatableUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*TranslatableUnit
	for _, u := range s.units {
		if u.AssetExtractionID == extractionID && u.Locale == locale {
			out = append(out, u)
		}
	}
	sortUnitsByID(out)
	return out, nil
}

// AddCurrentVariant 写入新的当前变体
func (s *MemoryStore) AddCurrentVariant(_ context.Context, w VariantWrite) (*WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.units[w.UnitID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrUnitNotFound, w.UnitID)
	}

	// 内容与状态都未变化时，当前变体指针保持不动
	if u.ExistingTarget != nil &&
		u.ExistingTarget.Content == w.Content &&
		u.ExistingTarget.Status == w.Status {
		return &WriteResult{VariantID: u.ExistingTarget.VariantID, Changed: false}, nil
	}

	s.nextVariantID++
	u.ExistingTarget = &ExistingTarget{
		VariantID: s.nextVariantID,
		Content:   w.Content,
		Status:    w.Status,
	}
	return &WriteResult{VariantID: s.nextVariantID, Changed: true}, nil
}

// AddComment 给变体追加评论
func (s *MemoryStore) AddComment(_ context.Context, variantID int64, severity CommentSeverity, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.comments[variantID] = append(s.comments[variantID], Comment{
		VariantID: variantID,
		Severity:  severity,
		Message:   message,
	})
	return nil
}

// RemoveAIPlaceholderComment 清除单元上的占位评论
func (s *MemoryStore) RemoveAIPlaceholderComment(_ context.Context, unitID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.units[unitID]; ok && u.ExistingTarget != nil {
		u.ExistingTarget.HasAIPlaceholder = false
	}
	return nil
}

// Comments 返回某变体的全部评论（测试用）
func (s *MemoryStore) Comments(variantID int64) []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Comment(nil), s.comments[variantID]...)
}

func sortUnitsByID(units []*TranslatableUnit) {
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
}
