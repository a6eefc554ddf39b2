package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ja-openai/mojito-sub000/internal/batch"
	"github.com/ja-openai/mojito-sub000/internal/report"
)

// renderRunReport 渲染一次编排运行的报告
func renderRunReport(w io.Writer, run *report.RunReport) {
	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(w, "Run %s\n", run.RunID)
	fmt.Fprintf(w, "repository=%s mode=%s model=%s", run.Repository, run.Mode, run.Model)
	if run.DryRun {
		color.New(color.FgYellow).Fprint(w, " (dry run)")
	}
	fmt.Fprintln(w)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Locale", "Imported", "Skipped", "Errored"})
	for _, l := range run.Locales {
		t.AppendRow(table.Row{l.Locale, l.Imported, l.Skipped, l.Errored})
	}
	imported, skipped, errored := run.Totals()
	t.AppendFooter(table.Row{"Total", imported, skipped, errored})
	t.SetStyle(table.StyleLight)
	t.Render()

	if len(run.SkippedLocales) > 0 {
		color.New(color.FgYellow).Fprintf(w, "skipped locales (no candidates): %v\n", run.SkippedLocales)
	}

	if len(run.Batches) > 0 {
		bt := table.NewWriter()
		bt.SetOutputMirror(w)
		bt.AppendHeader(table.Row{"Batch", "Locale", "Units", "Import Job"})
		for _, b := range run.Batches {
			bt.AppendRow(table.Row{b.BatchID, b.Locale, b.UnitCount, b.ImportJobID})
		}
		bt.SetStyle(table.StyleLight)
		bt.Render()
	}

	// 错误明细放在最后，便于操作者定位
	for _, l := range run.Locales {
		for _, o := range l.Outcomes {
			if o.Status == report.OutcomeErrored {
				color.New(color.FgRed).Fprintf(w, "  [%s] unit %d: %s\n", l.Locale, o.UnitID, o.Reason)
			}
		}
	}
}

// renderImportReport 渲染一次批处理导入的结果
func renderImportReport(w io.Writer, imported *batch.ImportReport) {
	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(w, "Batch %s (%s)\n", imported.BatchID, imported.Locale)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Unit", "Changed", "New Target", "Error"})
	for _, r := range imported.Results {
		t.AppendRow(table.Row{r.UnitID, r.Changed, truncate(r.NewTarget, 48), r.Error})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	if len(imported.LineErrors) > 0 {
		color.New(color.FgRed).Fprintln(w, "line errors:")
		for _, e := range imported.LineErrors {
			color.New(color.FgRed).Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "status attempts: %d\n", imported.StatusAttempts)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// loadReport 从对象存储读取历史运行报告
func loadReport(ctx context.Context, d *deps, runID string) (*report.RunReport, error) {
	return report.Load(ctx, d.blobs, runID)
}
