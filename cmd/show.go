package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jing2uo/yf2db/ingest"
	"github.com/jing2uo/yf2db/model"
	"github.com/jing2uo/yf2db/planner"
	"github.com/jing2uo/yf2db/utils"
)

type ShowOptions struct {
	Table  string
	Ticker string
	Start  string
	End    string
}

// Show 以 CSV 输出表内容, 指定 ticker 时只输出该代码
func Show(ctx context.Context, app *App, opts ShowOptions) error {
	start, err := optionalDate(opts.Start, app)
	if err != nil {
		return err
	}
	end, err := optionalDate(opts.End, app)
	if err != nil {
		return err
	}

	return app.WithService(ctx, func(svc *ingest.Service) error {
		data, err := queryTable(ctx, svc, opts, start, end)
		if err != nil {
			return err
		}
		return printRows(os.Stdout, data)
	})
}

func queryTable(ctx context.Context, svc *ingest.Service, opts ShowOptions, start, end *time.Time) (interface{}, error) {
	if opts.Table == "coverage" {
		return svc.Coverage(ctx)
	}
	if opts.Ticker == "" {
		return svc.Table(ctx, opts.Table)
	}

	switch opts.Table {
	case model.TableSecurity.TableName:
		sec, err := svc.Security(ctx, opts.Ticker)
		if err != nil {
			return nil, err
		}
		if sec == nil {
			return []model.Security{}, nil
		}
		return []model.Security{*sec}, nil
	case model.TablePriceDaily.TableName:
		return svc.Daily(ctx, opts.Ticker, start, end)
	case model.TablePriceMinutely.TableName:
		return svc.Minutely(ctx, opts.Ticker, start, end)
	case model.TableActions.TableName:
		return svc.Actions(ctx, opts.Ticker, start, end)
	default:
		return nil, fmt.Errorf("table %s cannot be filtered by ticker", opts.Table)
	}
}

func printRows(w io.Writer, data interface{}) error {
	switch rows := data.(type) {
	case []model.Security:
		return writeCSV(w, rows)
	case []model.Exchange:
		return writeCSV(w, rows)
	case []model.DailyBar:
		return writeCSV(w, rows)
	case []model.MinuteBar:
		return writeCSV(w, rows)
	case []model.Action:
		return writeCSV(w, rows)
	case []model.Coverage:
		return writeCSV(w, rows)
	default:
		return fmt.Errorf("unsupported row type %T", data)
	}
}

func writeCSV[T any](w io.Writer, rows []T) error {
	cw, err := utils.NewCSVWriterTo[T](w)
	if err != nil {
		return err
	}
	if err := cw.Write(rows); err != nil {
		return err
	}
	return cw.Close()
}

func optionalDate(s string, app *App) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := planner.ParseDate(s, app.Location)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
