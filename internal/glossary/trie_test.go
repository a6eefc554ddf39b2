package glossary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestFindTermsCaseSensitivity(t *testing.T) {
	testCases := []struct {
		name     string
		terms    []*Term
		text     string
		expected []string // 期望命中的source
	}{
		{
			name: "case insensitive term matches any casing",
			terms: []*Term{
				{Source: "foo bar"},
			},
			text:     "Click FOO BAR to continue",
			expected: []string{"foo bar"},
		},
		{
			name: "case sensitive term requires exact casing",
			terms: []*Term{
				{Source: "iOS", CaseSensitive: true},
			},
			text:     "runs on ios devices",
			expected: nil,
		},
		{
			name: "case sensitive term matches exact casing",
			terms: []*Term{
				{Source: "iOS", CaseSensitive: true},
			},
			text:     "runs on iOS devices",
			expected: []string{"iOS"},
		},
		{
			name: "mixed sensitivity in one trie",
			terms: []*Term{
				{Source: "API", CaseSensitive: true},
				{Source: "token"},
			},
			text:     "the api Token expired",
			expected: []string{"token"},
		},
		{
			name: "overlapping matches are all returned",
			terms: []*Term{
				{Source: "home page"},
				{Source: "page"},
			},
			text:     "go to the home page",
			expected: []string{"page", "home page"},
		},
		{
			name: "unicode source text",
			terms: []*Term{
				{Source: "ホーム"},
			},
			text:     "ホーム画面に戻る",
			expected: []string{"ホーム"},
		},
		{
			name:     "empty text returns nothing",
			terms:    []*Term{{Source: "foo"}},
			text:     "",
			expected: nil,
		},
		{
			name: "no match",
			terms: []*Term{
				{Source: "glossary"},
			},
			text:     "nothing relevant here",
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			trie := NewTrieFromTerms(tc.terms)

			found := trie.FindTerms(tc.text)

			var sources []string
			for _, term := range found {
				sources = append(sources, term.Source)
			}
			assert.ElementsMatch(t, tc.expected, sources)
		})
	}
}

func TestAddTermTwiceDoesNotDuplicate(t *testing.T) {
	trie := NewTrie()
	term := &Term{Source: "foo", Target: strPtr("bar")}

	trie.AddTerm(term)
	trie.AddTerm(term)
	// 字段完全相同的另一个实例也不应产生重复
	trie.AddTerm(&Term{Source: "foo", Target: strPtr("bar")})

	found := trie.FindTerms("foo foo foo")
	require.Len(t, found, 1)
	assert.Equal(t, "foo", found[0].Source)
}

func TestFindTermsRepeatedOccurrence(t *testing.T) {
	trie := NewTrieFromTerms([]*Term{{Source: "save"}})

	// 多次出现只返回一次
	found := trie.FindTerms("save early, save often")
	require.Len(t, found, 1)
}

func TestFindTermsCaseSensitiveAndInsensitiveSameSource(t *testing.T) {
	sensitive := &Term{Source: "Home", CaseSensitive: true, Target: strPtr("Startseite")}
	insensitive := &Term{Source: "home", Target: strPtr("startseite")}
	trie := NewTrieFromTerms([]*Term{sensitive, insensitive})

	// 两条术语按各自规则独立命中
	found := trie.FindTerms("Home sweet home")
	require.Len(t, found, 2)

	found = trie.FindTerms("at home")
	require.Len(t, found, 1)
	assert.False(t, found[0].CaseSensitive)
}

func TestNewAdHocTrie(t *testing.T) {
	trie := NewAdHocTrie("Mojito", "", true, true)

	found := trie.FindTerms("drink a Mojito")
	require.Len(t, found, 1)
	assert.True(t, found[0].DoNotTranslate)
	assert.Nil(t, found[0].Target)
}
