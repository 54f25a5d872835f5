package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jing2uo/yf2db/model"
	"github.com/jing2uo/yf2db/planner"
)

type PlanOptions struct {
	From      string
	Today     string
	QuoteType string
}

// Plan 打印分钟线的抓取窗口
func Plan(app *App, opts PlanOptions) error {
	windows, err := planWindows(app, opts)
	if err != nil {
		return err
	}

	if len(windows) == 0 {
		fmt.Println("🌲 没有需要抓取的窗口")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tstart\tend\tdays")
	for i, win := range windows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", i+1, win.StartString(), win.EndString(), win.Days())
	}
	return w.Flush()
}

// planWindows 默认从 today - ingest.lookback_days 开始, 与 add / update 实际抓取的范围一致
func planWindows(app *App, opts PlanOptions) ([]planner.Window, error) {
	today := planner.Truncate(app.Now())
	if opts.Today != "" {
		t, err := planner.ParseDate(opts.Today, app.Location)
		if err != nil {
			return nil, err
		}
		today = t
	}

	anchor := today.AddDate(0, 0, -app.Cfg.Ingest.LookbackDays)
	if opts.From != "" {
		t, err := planner.ParseDate(opts.From, app.Location)
		if err != nil {
			return nil, err
		}
		anchor = t
	}

	qt := model.QuoteType(opts.QuoteType)
	if qt == "" {
		qt = model.QuoteEquity
	}

	return planner.Plan(anchor, today,
		planner.WithMaxSpanDays(app.Cfg.Ingest.MaxSpanDays),
		planner.WithWeekendAdjust(!qt.TradesOnWeekends()),
	)
}
