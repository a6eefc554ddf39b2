package store

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// storedEntry 落盘格式：内容加时间戳，便于按保留期清理
type storedEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// FileStore 文件系统对象存储实现
type FileStore struct {
	basePath  string
	retention time.Duration
	mu        sync.Mutex
}

// NewFileStore 创建文件对象存储；retention为零表示不过期
func NewFileStore(basePath string, retention time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{
		basePath:  basePath,
		retention: retention,
	}, nil
}

// filePath 根据命名空间和key生成文件路径
func (s *FileStore) filePath(namespace, key string) string {
	hash := md5.Sum([]byte(key))
	return filepath.Join(s.basePath, namespace, fmt.Sprintf("%x.blob", hash))
}

// Put 写入对象
func (s *FileStore) Put(_ context.Context, namespace, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := storedEntry{
		Key:       key,
		Data:      data,
		Timestamp: time.Now(),
	}
	raw, err := json.Marshal(&entry)
	if err != nil {
		return err
	}

	path := s.filePath(namespace, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// Get 读取对象
func (s *FileStore) Get(_ context.Context, namespace, key string) ([]byte, error) {
	path := s.filePath(namespace, key)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var entry storedEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}

	// 过了保留期的对象视为不存在并顺手删除
	if s.retention > 0 && time.Since(entry.Timestamp) > s.retention {
		os.Remove(path)
		return nil, ErrNotFound
	}

	return entry.Data, nil
}

// Delete 删除对象
func (s *FileStore) Delete(_ context.Context, namespace, key string) error {
	err := os.Remove(s.filePath(namespace, key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
