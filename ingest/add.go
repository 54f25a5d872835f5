package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jing2uo/yf2db/database"
	"github.com/jing2uo/yf2db/model"
	"github.com/jing2uo/yf2db/utils"
	"github.com/jing2uo/yf2db/yahoo"
)

// AddTickers 并发抓取每个代码的完整数据, 由单个消费者逐个写入.
// 单个代码失败不影响其余代码, 失败信息在返回结果的 Errors 中.
func (s *Service) AddTickers(ctx context.Context, symbols []string) (*utils.PipelineResult, error) {
	symbols = utils.NormalizeSymbols(symbols)

	p := utils.NewPipeline[string, *model.TickerBundle](utils.WithConcurrency(s.cfg.Concurrency))
	res, err := p.Run(ctx, symbols,
		func(ctx context.Context, symbol string) ([]*model.TickerBundle, error) {
			b, err := s.FetchBundle(ctx, symbol)
			if err != nil {
				return nil, err
			}
			return []*model.TickerBundle{b}, nil
		},
		func(symbol string, bundles []*model.TickerBundle) error {
			for _, b := range bundles {
				if _, err := s.writeBundle(ctx, b); err != nil {
					return err
				}
				s.logger.Info("ticker added",
					"ticker", symbol,
					"daily", len(b.Daily),
					"minutely", len(b.Minutely),
					"actions", len(b.Actions),
				)
			}
			return nil
		},
	)

	if res != nil {
		for _, e := range res.Errors {
			s.metrics.TickerFailed("add")
			s.logger.Warn("failed to add ticker", "error", e)
		}
	}
	return res, err
}

// AddTicker 抓取并写入单个代码, 返回写入行数
func (s *Service) AddTicker(ctx context.Context, symbol string) (int64, error) {
	b, err := s.FetchBundle(ctx, symbol)
	if err != nil {
		s.metrics.TickerFailed("add")
		return 0, err
	}
	return s.writeBundle(ctx, b)
}

// FetchBundle 抓取一个代码首次入库所需的全部数据: 代码信息, 全部日线, 可回溯范围内的分钟线, 分红拆股
func (s *Service) FetchBundle(ctx context.Context, symbol string) (*model.TickerBundle, error) {
	// 1. 日线全量, 同时带出代码信息与分红拆股
	daily, err := s.fetchDaily(ctx, symbol, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily history: %w", err)
	}

	b := &model.TickerBundle{
		Security: daily.Security,
		Exchange: daily.Exchange,
		Daily:    daily.Daily,
		Actions:  daily.Actions,
	}

	// 2. 分钟线
	minutely, err := s.fetchWindows(ctx, symbol, s.horizonStart(), daily.QuoteType)
	if err != nil {
		return nil, err
	}
	b.Minutely = minutely

	return b, nil
}

// fetchWindows 依次抓取 [anchor, today] 的各个窗口, 没有数据的窗口跳过
func (s *Service) fetchWindows(ctx context.Context, symbol string, anchor time.Time, quoteType model.QuoteType) ([]model.MinuteBar, error) {
	windows, err := s.PlanMinutely(anchor, quoteType)
	if err != nil {
		return nil, err
	}

	var bars []model.MinuteBar
	for _, w := range windows {
		chart, err := s.fetchMinutely(ctx, symbol, w)
		if errors.Is(err, yahoo.ErrNoData) {
			s.logger.Debug("no minute data in window", "ticker", symbol, "window", w.String())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch minutely %s: %w", w, err)
		}
		bars = append(bars, chart.Minutely...)
	}
	return bars, nil
}

func (s *Service) writeBundle(ctx context.Context, b *model.TickerBundle) (int64, error) {
	counts := make(map[string]int64, 5)

	err := s.repo.WithTx(ctx, func(w database.Writer) error {
		if b.Exchange.Name != "" {
			n, err := w.UpsertExchanges(ctx, []model.Exchange{b.Exchange}, model.ConflictReplace)
			if err != nil {
				return err
			}
			counts[model.TableExchange.TableName] = n
		}

		n, err := w.UpsertSecurities(ctx, []model.Security{b.Security}, model.ConflictReplace)
		if err != nil {
			return err
		}
		counts[model.TableSecurity.TableName] = n

		if n, err = w.UpsertDaily(ctx, b.Daily, model.ConflictIgnore); err != nil {
			return err
		}
		counts[model.TablePriceDaily.TableName] = n

		if n, err = w.UpsertMinutely(ctx, b.Minutely, model.ConflictIgnore); err != nil {
			return err
		}
		counts[model.TablePriceMinutely.TableName] = n

		if n, err = w.UpsertActions(ctx, b.Actions, model.ConflictIgnore); err != nil {
			return err
		}
		counts[model.TableActions.TableName] = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", b.Security.Ticker, err)
	}

	var total int64
	for table, n := range counts {
		s.metrics.AddRows(table, n)
		total += n
	}
	return total, nil
}

// dateOf 取 t 所在时区的日期, 以 UTC 零点表示
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
