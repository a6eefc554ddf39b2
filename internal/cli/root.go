package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ja-openai/mojito-sub000/internal/config"
	"github.com/ja-openai/mojito-sub000/internal/llm"
	"github.com/ja-openai/mojito-sub000/internal/logger"
	"github.com/ja-openai/mojito-sub000/internal/metrics"
	"github.com/ja-openai/mojito-sub000/internal/orchestrator"
	"github.com/ja-openai/mojito-sub000/internal/scheduler"
	"github.com/ja-openai/mojito-sub000/internal/store"
	"github.com/ja-openai/mojito-sub000/internal/tm"
)

var (
	// 全局标志
	cfgFile   string
	debugMode bool
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aitranslate",
		Short: "AI辅助翻译编排流水线",
		Long: `aitranslate 是本地化平台的AI辅助翻译编排工具。
它把待翻译的文本单元附上术语表命中与相关上下文后发给大语言模型补全服务，
再把结果幂等地合并回翻译记忆。

两种执行模式:
  - sync:  同步分组派发，立即导入
  - batch: 异步离线批处理，提交与导入在时间上解耦`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径（默认搜索 ~/.aitranslate.yaml）")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "启用调试日志")

	rootCmd.AddCommand(newTranslateCommand())
	rootCmd.AddCommand(newImportBatchCommand())
	rootCmd.AddCommand(newRetryImportCommand())
	rootCmd.AddCommand(newShowReportCommand())

	return rootCmd
}

// deps 命令共享的装配结果
type deps struct {
	config *config.Config
	log    *zap.Logger
	orch   *orchestrator.Orchestrator
	blobs  store.Store
}

// buildDeps 按配置装配编排器及其协作者
func buildDeps(tmPath string) (*deps, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		debugMode = true
	}
	log := logger.NewLogger(debugMode)

	if tmPath == "" {
		tmPath = cfg.TMPath
	}
	if tmPath == "" {
		return nil, fmt.Errorf("translation memory path is required (flag --tm or config tm_path)")
	}
	tmStore, err := tm.NewFileStore(tmPath)
	if err != nil {
		return nil, err
	}

	blobs, err := store.NewFileStore(cfg.StorePath, cfg.StoreRetention)
	if err != nil {
		return nil, err
	}

	client := llm.NewOpenAIClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		OrgID:   cfg.OrgID,
	})

	orch := orchestrator.New(
		tmStore,
		client,
		blobs,
		metrics.NewZapSink(log),
		scheduler.NewStoreScheduler(blobs, log),
		nil,
		orchestrator.Config{
			Model:        cfg.Model,
			APIKey:       cfg.APIKey,
			Timeouts:     cfg.Timeouts,
			Pool:         cfg.Pool,
			Retry:        cfg.Retry,
			ImportStatus: tm.Status(cfg.ImportStatus),
			Debug:        debugMode,
		},
		log,
	)

	return &deps{config: cfg, log: log, orch: orch, blobs: blobs}, nil
}

// buildDepsWithoutTM 只读命令的轻量装配，不加载翻译记忆
func buildDepsWithoutTM() (*deps, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	log := logger.NewLogger(debugMode || cfg.Debug)

	blobs, err := store.NewFileStore(cfg.StorePath, cfg.StoreRetention)
	if err != nil {
		return nil, err
	}
	return &deps{config: cfg, log: log, blobs: blobs}, nil
}
