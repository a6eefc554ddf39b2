package importer

import (
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
)

// AutoFixer 译文确定性后处理：把模型输出的边缘格式对齐到源文本。
// 修正是纯函数，同样的(源, 译文)输入永远产出同样的结果。
type AutoFixer struct {
	// trailingPeriod 匹配不属于省略号的单个句尾句点
	trailingPeriod *regexp2.Regexp

	// doubledSpaces 匹配连续的普通空格
	doubledSpaces *regexp2.Regexp

	// placeholder 匹配插值占位符：{name}、{{name}}、%s风格
	placeholder *regexp2.Regexp
}

// NewAutoFixer 创建译文修正器
func NewAutoFixer() *AutoFixer {
	return &AutoFixer{
		trailingPeriod: regexp2.MustCompile(`(?<!\.)\.$`, regexp2.None),
		doubledSpaces:  regexp2.MustCompile(`(?<= ) +`, regexp2.None),
		placeholder:    regexp2.MustCompile(`\{\{[^{}]+\}\}|\{[^{}\s]+\}|%(?:\d+\$)?[sdvf@]`, regexp2.None),
	}
}

// terminalPunct 视作句尾标点的字符
const terminalPunct = ".!?:…。！？："

// Fix 对模型译文做确定性修正：
//   - 首尾空白对齐到源文本；
//   - 源文本无句尾标点而译文以单个句点结尾时去掉句点（省略号保留）；
//   - 源文本有句尾标点而译文缺失时补上源文本的标点；
//   - 译文内部的连续空格收敛为单个（源文本本身含连续空格时跳过）。
func (f *AutoFixer) Fix(source, target string) string {
	if target == "" {
		return target
	}

	leading := leadingWhitespace(source)
	trailing := trailingWhitespace(source)

	body := strings.TrimSpace(target)
	srcBody := strings.TrimSpace(source)

	if !strings.Contains(srcBody, "  ") {
		if fixed, err := f.doubledSpaces.Replace(body, "", -1, -1); err == nil {
			body = fixed
		}
	}

	body = f.fixTrailingPunct(srcBody, body)

	return leading + body + trailing
}

// fixTrailingPunct 对齐句尾标点
func (f *AutoFixer) fixTrailingPunct(srcBody, body string) string {
	if srcBody == "" || body == "" {
		return body
	}

	srcEnd := lastRune(srcBody)
	bodyEnd := lastRune(body)
	srcHasPunct := strings.ContainsRune(terminalPunct, srcEnd)
	bodyHasPunct := strings.ContainsRune(terminalPunct, bodyEnd)

	switch {
	case !srcHasPunct && bodyEnd == '.':
		// 单个多余句点去掉，省略号不动
		if fixed, err := f.trailingPeriod.Replace(body, "", -1, -1); err == nil {
			return fixed
		}
	case srcHasPunct && !bodyHasPunct:
		return body + string(srcEnd)
	}
	return body
}

// MissingPlaceholders 返回源文本里出现、译文里却丢失的插值占位符。
// 占位符在译文里的位置可以变，但每一个都必须原样保留。
func (f *AutoFixer) MissingPlaceholders(source, target string) []string {
	var missing []string
	seen := make(map[string]bool)
	m, err := f.placeholder.FindStringMatch(source)
	for err == nil && m != nil {
		token := m.String()
		if !seen[token] {
			seen[token] = true
			if !strings.Contains(target, token) {
				missing = append(missing, token)
			}
		}
		m, err = f.placeholder.FindNextMatch(m)
	}
	return missing
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeftFunc(s, unicode.IsSpace))]
}

func trailingWhitespace(s string) string {
	return s[len(strings.TrimRightFunc(s, unicode.IsSpace)):]
}

func lastRune(s string) rune {
	runes := []rune(s)
	return runes[len(runes)-1]
}
