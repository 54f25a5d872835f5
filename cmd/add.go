package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jing2uo/yf2db/ingest"
	"github.com/jing2uo/yf2db/utils"
)

// Add 抓取并写入代码的全部历史, 未指定代码时使用配置中的默认列表
func Add(ctx context.Context, app *App, tickers []string) error {
	symbols := utils.NormalizeSymbols(app.tickersOrDefault(tickers))
	if len(symbols) == 0 {
		return fmt.Errorf("no tickers to add")
	}

	return app.WithService(ctx, func(svc *ingest.Service) error {
		start := time.Now()
		fmt.Printf("🐢 开始添加 %d 个代码\n", len(symbols))

		res, err := svc.AddTickers(ctx, symbols)
		if err != nil {
			return err
		}

		for _, e := range res.Errors {
			fmt.Printf("⚠️ %v\n", e)
		}
		ok := res.TotalItems - len(res.Errors)
		fmt.Printf("✅ 成功添加 %d/%d 个代码, 耗时 %s\n", ok, res.TotalItems, time.Since(start).Round(time.Millisecond))

		if ok <= 0 {
			return fmt.Errorf("every ticker failed: %w", res.FirstError())
		}
		return nil
	})
}
