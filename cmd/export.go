package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jing2uo/yf2db/export"
	"github.com/jing2uo/yf2db/ingest"
)

type ExportOptions struct {
	OutputDir string
	Format    string
	Tables    []string
}

// Export 将各表导出为 parquet / csv / xlsx 文件
func Export(ctx context.Context, app *App, opts ExportOptions) error {
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = app.Cfg.Export.OutputDir
	}
	if outputDir == "" {
		return fmt.Errorf("--output is required")
	}

	formatName := opts.Format
	if formatName == "" {
		formatName = app.Cfg.Export.Format
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}

	tables := opts.Tables
	if len(tables) == 0 {
		tables = app.Cfg.Export.Tables
	}

	return app.WithService(ctx, func(svc *ingest.Service) error {
		start := time.Now()
		fmt.Printf("📦 开始导出到 %s (%s)\n", outputDir, format)

		results, err := export.Tables(ctx, svc, outputDir, format, tables)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Printf("✅ %s: %d 行 -> %s\n", r.Table, r.Rows, r.Path)
		}
		fmt.Printf("🚀 导出完成, 耗时 %s\n", time.Since(start).Round(time.Millisecond))
		return nil
	})
}
