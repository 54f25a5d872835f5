package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jing2uo/yf2db/listing"
)

type SampleOptions struct {
	OutputDir string
	Seed      int64
}

// SampleTickers 从 TSX 与美股列表中随机抽取三档代码文件
func SampleTickers(ctx context.Context, app *App, opts SampleOptions) error {
	lc := app.Cfg.Listing
	client := listing.NewClient(
		listing.WithTSXURL(lc.TSXURL),
		listing.WithUSURL(lc.USURL),
		listing.WithUserAgent(lc.UserAgent),
		listing.WithLogger(app.Logger),
	)

	fmt.Println("🐢 开始获取交易所代码列表")
	lists, err := client.FetchAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✅ TSX %d 个, 美股 %d 个\n", len(lists[0]), len(lists[1]))

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = app.Cfg.DB.Dir
	}

	seed := opts.Seed
	if seed == 0 {
		seed = lc.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed>>1)))

	for _, size := range listing.SampleSizes {
		tickers := listing.Sample(lists, size.Total, rng)
		path, err := listing.WriteTickerFile(outputDir, size.Descriptor, tickers)
		if err != nil {
			return err
		}
		fmt.Printf("📦 %s: %d 个代码 -> %s\n", size.Descriptor, len(tickers), path)
	}
	return nil
}
