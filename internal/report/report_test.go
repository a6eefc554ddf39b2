package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja-openai/mojito-sub000/internal/store"
)

func TestLocaleReportAccounting(t *testing.T) {
	var l LocaleReport
	l.Locale = "fr-FR"

	l.Add(UnitOutcome{UnitID: 1, Status: OutcomeImported, Changed: true})
	l.Add(UnitOutcome{UnitID: 2, Status: OutcomeSkipped, Reason: "no glossary match"})
	l.Add(UnitOutcome{UnitID: 3, Status: OutcomeErrored, Reason: "timeout"})
	l.Add(UnitOutcome{UnitID: 4, Status: OutcomeImported})

	assert.Equal(t, 2, l.Imported)
	assert.Equal(t, 1, l.Skipped)
	assert.Equal(t, 1, l.Errored)
	// 每个单元恰好出现一次
	assert.Len(t, l.Outcomes, 4)
}

func TestRunReportTotalsAndPersistence(t *testing.T) {
	r := RunReport{
		RunID:      "run-1",
		Repository: "web",
		Mode:       "sync",
		Model:      "gpt-test",
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}

	var fr LocaleReport
	fr.Locale = "fr-FR"
	fr.Add(UnitOutcome{UnitID: 1, Status: OutcomeImported})
	var de LocaleReport
	de.Locale = "de-DE"
	de.Add(UnitOutcome{UnitID: 1, Status: OutcomeErrored, Reason: "x"})
	r.Locales = []LocaleReport{fr, de}

	imported, skipped, errored := r.Totals()
	assert.Equal(t, 1, imported)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, 1, errored)

	blobs := store.NewMemoryStore()
	require.NoError(t, r.Save(context.Background(), blobs))

	loaded, err := Load(context.Background(), blobs, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "web", loaded.Repository)
	require.Len(t, loaded.Locales, 2)
	assert.Equal(t, 1, loaded.Locales[0].Imported)
}
