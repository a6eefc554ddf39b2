package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ja-openai/mojito-sub000/internal/orchestrator"
	"github.com/ja-openai/mojito-sub000/internal/related"
	"github.com/ja-openai/mojito-sub000/internal/request"
	"github.com/ja-openai/mojito-sub000/internal/tm"
)

// newTranslateCommand 创建translate子命令
func newTranslateCommand() *cobra.Command {
	var (
		tmPath           string
		repository       string
		locales          []string
		mode             string
		translateType    string
		glossaryPath     string
		termSource       string
		termTarget       string
		termDNT          bool
		termCase         bool
		onlyMatched      bool
		untranslatedOnly bool
		statuses         []string
		unitIDs          []int64
		dryRun           bool
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "执行一次AI翻译编排运行",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(tmPath)
			if err != nil {
				return err
			}
			defer func() { _ = d.log.Sync() }()

			params := orchestrator.Params{
				Repository:       repository,
				Locales:          locales,
				Mode:             orchestrator.Mode(mode),
				Type:             request.TranslateType(translateType),
				GlossaryPath:     glossaryPath,
				OnlyMatchedUnits: onlyMatched,
				UntranslatedOnly: untranslatedOnly,
				UnitIDs:          unitIDs,
				RelatedMode:      related.Mode(d.config.RelatedMode),
				RelatedBudget:    d.config.RelatedBudget,
				DryRun:           dryRun,
			}
			for _, s := range statuses {
				params.Statuses = append(params.Statuses, tm.Status(s))
			}
			if termSource != "" {
				params.AdHocTerm = &orchestrator.AdHocTerm{
					Source:         termSource,
					Target:         termTarget,
					DoNotTranslate: termDNT,
					CaseSensitive:  termCase,
				}
			}

			run, err := d.orch.Run(cmd.Context(), params)
			if err != nil {
				return err
			}

			renderRunReport(cmd.OutOrStdout(), run)
			return nil
		},
	}

	cmd.Flags().StringVar(&tmPath, "tm", "", "翻译记忆快照文件路径")
	cmd.Flags().StringVarP(&repository, "repository", "r", "", "仓库名称（必填）")
	cmd.Flags().StringSliceVarP(&locales, "locales", "l", nil, "目标语言列表（必填）")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(orchestrator.ModeSync), "执行模式: sync 或 batch")
	cmd.Flags().StringVarP(&translateType, "type", "t", string(request.TypeTranslate), "任务类型: TRANSLATE 或 REVIEW")
	cmd.Flags().StringVarP(&glossaryPath, "glossary", "g", "", "命名术语表文件路径")
	cmd.Flags().StringVar(&termSource, "term-source", "", "临时术语的源文本")
	cmd.Flags().StringVar(&termTarget, "term-target", "", "临时术语的目标译文")
	cmd.Flags().BoolVar(&termDNT, "term-dnt", false, "临时术语为禁译词")
	cmd.Flags().BoolVar(&termCase, "term-case-sensitive", false, "临时术语区分大小写")
	cmd.Flags().BoolVar(&onlyMatched, "only-matched", false, "仅处理命中术语的单元")
	cmd.Flags().BoolVar(&untranslatedOnly, "untranslated-only", false, "仅选取没有既有译文的单元")
	cmd.Flags().StringSliceVar(&statuses, "statuses", nil, "限定既有变体状态")
	cmd.Flags().Int64SliceVar(&unitIDs, "unit-ids", nil, "显式单元ID列表")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "预演模式，不写翻译记忆")

	_ = cmd.MarkFlagRequired("repository")
	_ = cmd.MarkFlagRequired("locales")

	return cmd
}

// newImportBatchCommand 创建import-batch子命令
func newImportBatchCommand() *cobra.Command {
	var (
		tmPath string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "import-batch <batch-id>",
		Short: "导入一个已完成的离线批处理作业",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(tmPath)
			if err != nil {
				return err
			}
			defer func() { _ = d.log.Sync() }()

			imported, err := d.orch.ImportBatch(cmd.Context(), args[0], dryRun)
			if err != nil {
				return err
			}
			renderImportReport(cmd.OutOrStdout(), imported)
			return nil
		},
	}

	cmd.Flags().StringVar(&tmPath, "tm", "", "翻译记忆快照文件路径")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "预演模式，不写翻译记忆")
	return cmd
}

// newRetryImportCommand 创建retry-import子命令
func newRetryImportCommand() *cobra.Command {
	var (
		tmPath string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "retry-import <batch-id>",
		Short: "重跑批处理导入，只处理尚未成功的单元",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(tmPath)
			if err != nil {
				return err
			}
			defer func() { _ = d.log.Sync() }()

			imported, err := d.orch.RetryImport(cmd.Context(), args[0], dryRun)
			if err != nil {
				return err
			}
			renderImportReport(cmd.OutOrStdout(), imported)
			return nil
		},
	}

	cmd.Flags().StringVar(&tmPath, "tm", "", "翻译记忆快照文件路径")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "预演模式，不写翻译记忆")
	return cmd
}

// newShowReportCommand 创建show-report子命令
func newShowReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show-report <run-id>",
		Short: "查看一次历史运行的报告",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDepsWithoutTM()
			if err != nil {
				return err
			}
			run, err := loadReport(cmd.Context(), d, args[0])
			if err != nil {
				return fmt.Errorf("load run report %s: %w", args[0], err)
			}
			renderRunReport(cmd.OutOrStdout(), run)
			return nil
		},
	}
	return cmd
}
