package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jing2uo/yf2db/ingest"
	"github.com/jing2uo/yf2db/utils"
	"github.com/jing2uo/yf2db/workflow"
)

type UpdateOptions struct {
	// Tasks 逗号分隔的任务名, 为空时执行默认任务
	Tasks     string
	Tickers   []string
	OutputDir string
	Format    string
}

// Update 按依赖顺序执行更新任务
func Update(ctx context.Context, app *App, opts UpdateOptions) error {
	tasks := workflow.AllTasks()

	taskNames, err := workflow.ParseTaskList(opts.Tasks, tasks)
	if err != nil {
		return err
	}
	if len(taskNames) == 0 {
		taskNames = workflow.DefaultUpdateTasks
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = app.Cfg.Export.OutputDir
	}
	format := opts.Format
	if format == "" {
		format = app.Cfg.Export.Format
	}

	return app.WithService(ctx, func(svc *ingest.Service) error {
		start := time.Now()
		executor := workflow.NewTaskExecutor(svc, tasks, app.Metrics)

		args := &workflow.TaskArgs{
			Tickers:   utils.NormalizeSymbols(opts.Tickers),
			OutputDir: outputDir,
			Format:    format,
			Today:     svc.Today(),
		}

		if err := executor.Run(ctx, taskNames, args); err != nil {
			return fmt.Errorf("workflow execution failed: %w", err)
		}

		for _, name := range taskNames {
			if r := executor.Result(name); r != nil && r.Error != nil {
				fmt.Printf("⚠️ 任务 %s 失败: %v\n", name, r.Error)
			}
		}
		fmt.Printf("🚀 今日任务执行成功, 耗时 %s\n", time.Since(start).Round(time.Millisecond))
		return nil
	})
}
