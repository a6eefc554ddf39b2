package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja-openai/mojito-sub000/internal/tm"
)

func newUnit(id int64) *tm.TranslatableUnit {
	return &tm.TranslatableUnit{
		ID:         id,
		Name:       "home.title",
		Content:    "Welcome",
		Repository: "web",
		Locale:     "fr-FR",
		Included:   true,
	}
}

func TestApplyWritesVariantAndAuditComment(t *testing.T) {
	unit := newUnit(1)
	store := tm.NewMemoryStore(unit)
	m := NewMerger(store, tm.StatusReviewNeeded, false, nil)

	results := m.Apply(context.Background(), []Outcome{
		{Unit: unit, Target: "Bienvenue", Rationale: "standard greeting"},
	})

	require.Len(t, results, 1)
	r := results[0]
	assert.Empty(t, r.Error)
	assert.True(t, r.Changed)
	assert.Equal(t, "Bienvenue", r.NewTarget)
	assert.Equal(t, 1, r.CommentsAdded)

	comments := store.Comments(r.VariantID)
	require.Len(t, comments, 1)
	assert.Equal(t, tm.SeverityInfo, comments[0].Severity)
	assert.Equal(t, "standard greeting", comments[0].Message)
}

func TestApplyIdempotentForUnchangedTarget(t *testing.T) {
	unit := newUnit(1)
	store := tm.NewMemoryStore(unit)
	m := NewMerger(store, tm.StatusReviewNeeded, false, nil)

	outcome := Outcome{Unit: unit, Target: "Bienvenue", Rationale: "r"}

	first := m.Apply(context.Background(), []Outcome{outcome})
	require.True(t, first[0].Changed)

	// 第二次应用同一结果：指针不动，评论也不重复追加
	second := m.Apply(context.Background(), []Outcome{outcome})
	require.False(t, second[0].Changed)
	assert.Equal(t, first[0].VariantID, second[0].VariantID)
	assert.Equal(t, 0, second[0].CommentsAdded)
	assert.Len(t, store.Comments(first[0].VariantID), 1)
}

func TestApplyErroredOutcomeSkipsWrite(t *testing.T) {
	unit := newUnit(1)
	store := tm.NewMemoryStore(unit)
	m := NewMerger(store, tm.StatusReviewNeeded, false, nil)

	results := m.Apply(context.Background(), []Outcome{
		{Unit: unit, Error: "unit missing from model output"},
	})

	require.Len(t, results, 1)
	assert.Equal(t, "unit missing from model output", results[0].Error)
	assert.Nil(t, unit.ExistingTarget)
}

func TestApplyDryRunComparesWithoutWriting(t *testing.T) {
	unit := newUnit(1)
	unit.ExistingTarget = &tm.ExistingTarget{VariantID: 7, Content: "Bienvenue", Status: tm.StatusApproved}
	store := tm.NewMemoryStore(unit)
	m := NewMerger(store, tm.StatusReviewNeeded, true, nil)

	results := m.Apply(context.Background(), []Outcome{
		{Unit: unit, Target: "Bienvenue"},
		{Unit: unit, Target: "Accueil"},
	})

	require.Len(t, results, 2)
	assert.False(t, results[0].Changed)
	assert.True(t, results[1].Changed)
	// 预演不触碰写路径
	assert.Equal(t, int64(7), unit.ExistingTarget.VariantID)
	assert.Equal(t, "Bienvenue", unit.ExistingTarget.Content)
}

func TestApplyRemovesAIPlaceholder(t *testing.T) {
	unit := newUnit(1)
	unit.ExistingTarget = &tm.ExistingTarget{
		VariantID:        7,
		Content:          "old",
		Status:           tm.StatusTranslationNeeded,
		HasAIPlaceholder: true,
	}
	store := tm.NewMemoryStore(unit)
	m := NewMerger(store, tm.StatusReviewNeeded, false, nil)

	m.Apply(context.Background(), []Outcome{{Unit: unit, Target: "Bienvenue"}})

	assert.False(t, unit.ExistingTarget.HasAIPlaceholder)
	assert.Equal(t, "Bienvenue", unit.ExistingTarget.Content)
}

func TestApplyRunsAutoFix(t *testing.T) {
	unit := newUnit(1)
	unit.Content = "Save changes"
	store := tm.NewMemoryStore(unit)
	m := NewMerger(store, tm.StatusReviewNeeded, false, nil)

	results := m.Apply(context.Background(), []Outcome{
		{Unit: unit, Target: "Enregistrer les modifications."},
	})

	require.Len(t, results, 1)
	assert.Equal(t, "Enregistrer les modifications", results[0].NewTarget)
}

func TestApplyRejectsDroppedPlaceholder(t *testing.T) {
	unit := newUnit(1)
	unit.Content = "Hello {name}"
	store := tm.NewMemoryStore(unit)
	m := NewMerger(store, tm.StatusReviewNeeded, false, nil)

	results := m.Apply(context.Background(), []Outcome{
		{Unit: unit, Target: "Bonjour"},
	})

	require.Len(t, results, 1)
	assert.Contains(t, results[0].Error, "{name}")
	// 丢占位符的译文不进入写路径
	assert.Nil(t, unit.ExistingTarget)
}

func TestApplyWriteFailureIsolatedPerUnit(t *testing.T) {
	present := newUnit(1)
	missing := newUnit(2)
	store := tm.NewMemoryStore(present) // 单元2不存在，写入会失败
	m := NewMerger(store, tm.StatusReviewNeeded, false, nil)

	results := m.Apply(context.Background(), []Outcome{
		{Unit: missing, Target: "x"},
		{Unit: present, Target: "Bienvenue"},
	})

	require.Len(t, results, 2)
	assert.NotEmpty(t, results[0].Error)
	assert.Empty(t, results[1].Error)
	assert.True(t, results[1].Changed)
}
