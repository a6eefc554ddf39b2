package glossary

import (
	"encoding/json"
	"fmt"
	"os"
)

// glossaryFile 术语表文件格式
type glossaryFile struct {
	Name  string  `json:"name"`
	Terms []*Term `json:"terms"`
}

// LoadTerms 从JSON文件加载命名术语表
func LoadTerms(path string) ([]*Term, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary file: %w", err)
	}

	var f glossaryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse glossary file: %w", err)
	}

	return f.Terms, nil
}

// NewAdHocTrie 从单个临时术语构建字典树，
// 用于不配置命名术语表、只指定一个术语的场景。
func NewAdHocTrie(source, target string, doNotTranslate, caseSensitive bool) *Trie {
	term := &Term{
		Source:         source,
		DoNotTranslate: doNotTranslate,
		CaseSensitive:  caseSensitive,
	}
	if target != "" {
		term.Target = &target
	}
	return NewTrieFromTerms([]*Term{term})
}
