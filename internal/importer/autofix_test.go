package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutoFix(t *testing.T) {
	fixer := NewAutoFixer()

	tests := []struct {
		name   string
		source string
		target string
		want   string
	}{
		{
			name:   "aligns leading and trailing whitespace",
			source: "  Hello world ",
			target: "Bonjour le monde",
			want:   "  Bonjour le monde ",
		},
		{
			name:   "strips whitespace target invented",
			source: "Hello",
			target: " Bonjour  ",
			want:   "Bonjour",
		},
		{
			name:   "removes trailing period source does not have",
			source: "Save changes",
			target: "Enregistrer les modifications.",
			want:   "Enregistrer les modifications",
		},
		{
			name:   "keeps ellipsis",
			source: "Loading",
			target: "Chargement...",
			want:   "Chargement...",
		},
		{
			name:   "adds missing terminal punctuation from source",
			source: "Are you sure?",
			target: "Êtes-vous sûr",
			want:   "Êtes-vous sûr?",
		},
		{
			name:   "keeps matching punctuation",
			source: "Done.",
			target: "Terminé.",
			want:   "Terminé.",
		},
		{
			name:   "cjk terminal punctuation counts",
			source: "Continue?",
			target: "続行しますか？",
			want:   "続行しますか？",
		},
		{
			name:   "collapses doubled spaces",
			source: "One two three",
			target: "Un  deux   trois",
			want:   "Un deux trois",
		},
		{
			name:   "preserves doubled spaces present in source",
			source: "Col1  Col2",
			target: "Kol1  Kol2",
			want:   "Kol1  Kol2",
		},
		{
			name:   "empty target untouched",
			source: "Hello",
			target: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fixer.Fix(tt.source, tt.target))
		})
	}
}

func TestMissingPlaceholders(t *testing.T) {
	fixer := NewAutoFixer()

	tests := []struct {
		name   string
		source string
		target string
		want   []string
	}{
		{
			name:   "all placeholders preserved",
			source: "Hello {name}, you have {count} messages",
			target: "Bonjour {name}, vous avez {count} messages",
			want:   nil,
		},
		{
			name:   "dropped brace placeholder",
			source: "Hello {name}",
			target: "Bonjour",
			want:   []string{"{name}"},
		},
		{
			name:   "translated placeholder counts as dropped",
			source: "Hello {name}",
			target: "Bonjour {nom}",
			want:   []string{"{name}"},
		},
		{
			name:   "double brace placeholder",
			source: "Total: {{amount}}",
			target: "Total :",
			want:   []string{"{{amount}}"},
		},
		{
			name:   "printf placeholder",
			source: "%d files in %s",
			target: "%d fichiers",
			want:   []string{"%s"},
		},
		{
			name:   "positional printf placeholder",
			source: "%1$s owns %2$s",
			target: "%2$s appartient à %1$s",
			want:   nil,
		},
		{
			name:   "repeated placeholder reported once",
			source: "{x} and {x}",
			target: "et",
			want:   []string{"{x}"},
		},
		{
			name:   "no placeholders in source",
			source: "Hello world",
			target: "Bonjour",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fixer.MissingPlaceholders(tt.source, tt.target))
		})
	}
}

func TestAutoFixDeterministic(t *testing.T) {
	fixer := NewAutoFixer()

	once := fixer.Fix("Save changes", "Enregistrer. ")
	twice := fixer.Fix("Save changes", once)
	assert.Equal(t, once, twice)
}
