package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jing2uo/yf2db/cmd"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var flags cmd.GlobalFlags
	var app *cmd.App

	var rootCmd = &cobra.Command{
		Use:           "yf2db",
		Short:         "Load Yahoo Finance prices to DuckDB / ClickHouse",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			var err error
			app, err = cmd.NewApp(flags)
			return err
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.ConfigFile, "config", "", "配置文件路径, 默认查找 ./yf2db.yaml 与 ~/.config/yf2db/yf2db.yaml")
	rootCmd.PersistentFlags().StringVar(&flags.EnvFile, "env-file", "", ".env 文件路径, 默认读取当前目录的 .env")
	rootCmd.PersistentFlags().StringVar(&flags.DBPath, "dbpath", "", "数据库 URI, 覆盖配置中的 db.uri (DuckDB 文件路径或 clickhouse://...)")
	rootCmd.PersistentFlags().StringVar(&flags.MetricsFile, "metrics-file", "", "运行结束后写出 Prometheus 文本格式指标")

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create tables and views",
		RunE: func(c *cobra.Command, args []string) error {
			return finish(app, cmd.Init(app))
		},
	}

	var addCmd = &cobra.Command{
		Use:   "add [tickers...]",
		Short: "Add tickers with full daily history, minute bars and actions",
		RunE: func(c *cobra.Command, args []string) error {
			return finish(app, cmd.Add(ctx, app, args))
		},
	}

	var updateOpts cmd.UpdateOptions
	var updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Update profiles, actions, daily and minute data, then export",
		RunE: func(c *cobra.Command, args []string) error {
			return finish(app, cmd.Update(ctx, app, updateOpts))
		},
	}
	updateCmd.Flags().StringVar(&updateOpts.Tasks, "tasks", "", "逗号分隔的任务: update_profiles,update_actions,update_daily,update_minutely,export")
	updateCmd.Flags().StringSliceVar(&updateOpts.Tickers, "tickers", nil, "只更新这些代码, 默认更新库中全部代码")
	updateCmd.Flags().StringVar(&updateOpts.OutputDir, "output", "", "更新后导出目录, 为空时跳过导出")
	updateCmd.Flags().StringVar(&updateOpts.Format, "format", "", "导出格式 parquet, csv 或 xlsx")

	var planOpts cmd.PlanOptions
	var planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Print minute-data download windows",
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Plan(app, planOpts)
		},
	}
	planCmd.Flags().StringVar(&planOpts.From, "from", "", "起始日期 YYYY-MM-DD, 默认为可回溯范围起点")
	planCmd.Flags().StringVar(&planOpts.Today, "today", "", "当前日期 YYYY-MM-DD, 默认为今天")
	planCmd.Flags().StringVar(&planOpts.QuoteType, "type", "EQUITY", "代码类型, CRYPTOCURRENCY 与 CURRENCY 不回退周末")

	var showOpts cmd.ShowOptions
	var showCmd = &cobra.Command{
		Use:   "show <table>",
		Short: "Print table rows as CSV (security, exchange, price_daily, price_minutely, actions, coverage)",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			showOpts.Table = args[0]
			return cmd.Show(ctx, app, showOpts)
		},
	}
	showCmd.Flags().StringVar(&showOpts.Ticker, "ticker", "", "只显示该代码")
	showCmd.Flags().StringVar(&showOpts.Start, "start", "", "起始日期 YYYY-MM-DD (包含)")
	showCmd.Flags().StringVar(&showOpts.End, "end", "", "结束日期 YYYY-MM-DD (包含)")

	var exportOpts cmd.ExportOptions
	var exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export tables to parquet, csv or xlsx files",
		RunE: func(c *cobra.Command, args []string) error {
			return finish(app, cmd.Export(ctx, app, exportOpts))
		},
	}
	exportCmd.Flags().StringVar(&exportOpts.OutputDir, "output", "", "输出目录 (必填, 可在配置 export.output_dir 中设置)")
	exportCmd.Flags().StringVar(&exportOpts.Format, "format", "", "导出格式 parquet, csv 或 xlsx")
	exportCmd.Flags().StringSliceVar(&exportOpts.Tables, "tables", nil, "只导出这些表")

	var frozenCmd = &cobra.Command{
		Use:   "frozen",
		Short: "Generate, verify and pull frozen databases",
	}

	var frozenOpts cmd.FrozenOptions
	var frozenGenerateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Build a new frozen database and record its checksum",
		RunE: func(c *cobra.Command, args []string) error {
			return finish(app, cmd.FrozenGenerate(ctx, app, frozenOpts))
		},
	}
	frozenGenerateCmd.Flags().StringVar(&frozenOpts.Label, "label", "", "版本名, 如 v2 (必填)")
	frozenGenerateCmd.Flags().StringSliceVar(&frozenOpts.Tickers, "tickers", nil, "代码列表")
	frozenGenerateCmd.Flags().StringVar(&frozenOpts.TickersFile, "tickers-file", "", "每行一个代码的文件")
	frozenGenerateCmd.Flags().StringVar(&frozenOpts.Filename, "filename", "", "数据库文件名, 默认 frozen_<label>.duckdb")
	frozenGenerateCmd.Flags().BoolVar(&frozenOpts.NoSleep, "no-sleep", false, "代码之间不随机休眠")
	frozenGenerateCmd.MarkFlagRequired("label")

	var verifyPath string
	var frozenVerifyCmd = &cobra.Command{
		Use:   "verify <label>",
		Short: "Compare a frozen database file with its recorded checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.FrozenVerify(app, args[0], verifyPath)
		},
	}
	frozenVerifyCmd.Flags().StringVar(&verifyPath, "file", "", "待校验的文件, 默认为数据目录中的同名文件")

	var frozenPullCmd = &cobra.Command{
		Use:   "pull <label>",
		Short: "Download a published frozen database and verify it",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return finish(app, cmd.FrozenPull(ctx, app, args[0]))
		},
	}

	var frozenListCmd = &cobra.Command{
		Use:   "list",
		Short: "List known frozen databases",
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.FrozenList(app)
		},
	}

	frozenCmd.AddCommand(frozenGenerateCmd, frozenVerifyCmd, frozenPullCmd, frozenListCmd)

	var tickersCmd = &cobra.Command{
		Use:   "tickers",
		Short: "Ticker list helpers",
	}

	var sampleOpts cmd.SampleOptions
	var tickersSampleCmd = &cobra.Command{
		Use:   "sample",
		Short: "Write random small/medium/large ticker samples from TSX and NYSE",
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.SampleTickers(ctx, app, sampleOpts)
		},
	}
	tickersSampleCmd.Flags().StringVar(&sampleOpts.OutputDir, "output", "", "输出目录, 默认为数据目录")
	tickersSampleCmd.Flags().Int64Var(&sampleOpts.Seed, "seed", 0, "随机种子, 0 表示随机")
	tickersCmd.AddCommand(tickersSampleCmd)

	var dropCmd = &cobra.Command{
		Use:   "drop",
		Short: "Drop all tables and views",
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Drop(app)
		},
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(frozenCmd)
	rootCmd.AddCommand(tickersCmd)
	rootCmd.AddCommand(dropCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "🛑 错误: %v\n", err)
		os.Exit(1)
	}
}

// finish 写出指标后返回命令本身的错误
func finish(app *cmd.App, runErr error) error {
	if err := app.Finish(runErr); err != nil && runErr == nil {
		return err
	}
	return runErr
}
