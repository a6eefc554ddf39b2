package glossary

import "unicode"

// Term 术语表条目。装入字典树后不可变。
type Term struct {
	// Source 源语言匹配模式
	Source string `json:"source"`

	// Comment 源术语注释
	Comment string `json:"comment,omitempty"`

	// Target 目标译文；nil 表示未提供
	Target *string `json:"target,omitempty"`

	// TargetComment 译文注释
	TargetComment string `json:"targetComment,omitempty"`

	// DoNotTranslate 禁译标记
	DoNotTranslate bool `json:"doNotTranslate,omitempty"`

	// CaseSensitive 是否区分大小写匹配
	CaseSensitive bool `json:"caseSensitive,omitempty"`
}

// equal 判断两个术语的字段是否完全相同，用于去重
func (t *Term) equal(o *Term) bool {
	if t.Source != o.Source ||
		t.Comment != o.Comment ||
		t.TargetComment != o.TargetComment ||
		t.DoNotTranslate != o.DoNotTranslate ||
		t.CaseSensitive != o.CaseSensitive {
		return false
	}
	if (t.Target == nil) != (o.Target == nil) {
		return false
	}
	return t.Target == nil || *t.Target == *o.Target
}

// trieNode 字典树节点
type trieNode struct {
	children map[rune]*trieNode
	terms    []*Term
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[rune]*trieNode)}
}

// insert 沿路径插入术语，路径末端挂终结术语
func (n *trieNode) insert(path []rune, term *Term) {
	cur := n
	for _, r := range path {
		next, ok := cur.children[r]
		if !ok {
			next = newTrieNode()
			cur.children[r] = next
		}
		cur = next
	}
	// 同一术语重复插入不产生重复结果
	for _, existing := range cur.terms {
		if existing.equal(term) {
			return
		}
	}
	cur.terms = append(cur.terms, term)
}

// Trie 多术语匹配索引。
// 大小写敏感与不敏感各维护一棵子树：敏感术语按原始字符路径插入，
// 不敏感术语按折叠后的路径插入；查找时两棵子树都要走。
type Trie struct {
	sensitive   *trieNode
	insensitive *trieNode
}

// NewTrie 创建空的术语字典树
func NewTrie() *Trie {
	return &Trie{
		sensitive:   newTrieNode(),
		insensitive: newTrieNode(),
	}
}

// NewTrieFromTerms 从术语列表构建字典树
func NewTrieFromTerms(terms []*Term) *Trie {
	t := NewTrie()
	for _, term := range terms {
		t.AddTerm(term)
	}
	return t
}

// AddTerm 插入一个术语。匹配规则由术语自身的大小写标记决定，
// 而不是整棵树的全局设置。
func (t *Trie) AddTerm(term *Term) {
	if term == nil || term.Source == "" {
		return
	}

	runes := []rune(term.Source)
	if term.CaseSensitive {
		t.sensitive.insert(runes, term)
	} else {
		t.insensitive.insert(foldRunes(runes), term)
	}
}

// FindTerms 单趟扫描文本，返回所有以子串形式出现的术语。
// 重叠匹配全部返回，不做最长匹配抑制；结果按首次出现顺序去重。
func (t *Trie) FindTerms(text string) []*Term {
	if text == "" {
		return nil
	}

	raw := []rune(text)
	folded := foldRunes(raw)

	seen := make(map[*Term]bool)
	var found []*Term

	collect := func(terms []*Term) {
		for _, term := range terms {
			if !seen[term] {
				seen[term] = true
				found = append(found, term)
			}
		}
	}

	for i := range raw {
		// 大小写敏感子树走原始路径
		node := t.sensitive
		for j := i; j < len(raw); j++ {
			next, ok := node.children[raw[j]]
			if !ok {
				break
			}
			node = next
			collect(node.terms)
		}

		// 不敏感子树走折叠路径
		node = t.insensitive
		for j := i; j < len(folded); j++ {
			next, ok := node.children[folded[j]]
			if !ok {
				break
			}
			node = next
			collect(node.terms)
		}
	}

	return found
}

// foldRunes 按字符折叠大小写
func foldRunes(runes []rune) []rune {
	out := make([]rune, len(runes))
	for i, r := range runes {
		out[i] = unicode.ToLower(r)
	}
	return out
}
