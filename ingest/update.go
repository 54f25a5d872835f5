package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jing2uo/yf2db/database"
	"github.com/jing2uo/yf2db/model"
	"github.com/jing2uo/yf2db/planner"
	"github.com/jing2uo/yf2db/yahoo"
)

// FetchMinutelyStartingAt 抓取 [start, today] 的分钟线, start 早于可回溯范围时返回 yahoo.ErrOutsideHorizon
func (s *Service) FetchMinutelyStartingAt(ctx context.Context, symbol string, start time.Time) ([]model.MinuteBar, error) {
	start = dateOf(start)
	if start.Before(s.horizonStart()) {
		return nil, fmt.Errorf("%w: %s is more than %d days ago",
			yahoo.ErrOutsideHorizon, start.Format(planner.DateLayout), s.cfg.LookbackDays)
	}

	qt, err := s.quoteType(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return s.fetchWindows(ctx, symbol, start, qt)
}

// FetchDailyBetween 抓取 [start, end] 的日线
func (s *Service) FetchDailyBetween(ctx context.Context, symbol string, start, end time.Time) ([]model.DailyBar, error) {
	chart, err := s.fetchDaily(ctx, symbol, dateOf(start), dateOf(end))
	if errors.Is(err, yahoo.ErrNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return chart.Daily, nil
}

// UpdateDaily 从最新日期的次日开始补齐日线.
// 最新日期之后出现过分红或拆股时, 复权收盘价整体变化, 改为全量重拉并覆盖.
func (s *Service) UpdateDaily(ctx context.Context, symbol string) (int64, error) {
	latest, err := s.repo.GetLatestDate(ctx, model.TablePriceDaily, symbol)
	if err != nil {
		return 0, err
	}
	if latest.IsZero() {
		return s.refetchDaily(ctx, symbol)
	}

	from := latest.AddDate(0, 0, 1)
	actions, err := s.repo.QueryActions(ctx, symbol, &from, nil)
	if err != nil {
		return 0, err
	}
	if len(actions) > 0 {
		s.logger.Info("corporate actions since last update, refetching daily history",
			"ticker", symbol, "since", latest.Format(planner.DateLayout), "actions", len(actions))
		return s.refetchDaily(ctx, symbol)
	}

	today := s.Today()
	if from.After(today) {
		s.logger.Debug("daily data already up to date", "ticker", symbol)
		return 0, nil
	}

	bars, err := s.FetchDailyBetween(ctx, symbol, from, today)
	if err != nil {
		return 0, err
	}

	n, err := s.repo.UpsertDaily(ctx, bars, model.ConflictIgnore)
	if err != nil {
		return 0, err
	}
	s.metrics.AddRows(model.TablePriceDaily.TableName, n)
	return n, nil
}

func (s *Service) refetchDaily(ctx context.Context, symbol string) (int64, error) {
	chart, err := s.fetchDaily(ctx, symbol, time.Time{}, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch daily history: %w", err)
	}

	var daily, actions int64
	err = s.repo.WithTx(ctx, func(w database.Writer) error {
		var err error
		if daily, err = w.UpsertDaily(ctx, chart.Daily, model.ConflictReplace); err != nil {
			return err
		}
		actions, err = w.UpsertActions(ctx, chart.Actions, model.ConflictIgnore)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.metrics.AddRows(model.TablePriceDaily.TableName, daily)
	s.metrics.AddRows(model.TableActions.TableName, actions)
	return daily, nil
}

// UpdateMinutely 从最新分钟线所在日期开始补齐.
// 库中数据早于可回溯范围时只能从范围起点开始抓取, 此时写入后返回 ErrContinuityGap.
func (s *Service) UpdateMinutely(ctx context.Context, symbol string) (int64, error) {
	latest, err := s.repo.GetLatestDate(ctx, model.TablePriceMinutely, symbol)
	if err != nil {
		return 0, err
	}

	horizon := s.horizonStart()
	anchor := latest
	var gapErr error
	switch {
	case latest.IsZero():
		anchor = horizon
	case latest.Before(horizon):
		anchor = horizon
		gapErr = fmt.Errorf("%s: last minute bar on %s, horizon starts %s: %w", symbol,
			latest.Format(planner.DateLayout), horizon.Format(planner.DateLayout), ErrContinuityGap)
	}

	qt, err := s.quoteType(ctx, symbol)
	if err != nil {
		return 0, err
	}

	bars, err := s.fetchWindows(ctx, symbol, anchor, qt)
	if err != nil {
		return 0, err
	}

	n, err := s.repo.UpsertMinutely(ctx, bars, model.ConflictIgnore)
	if err != nil {
		return 0, err
	}
	s.metrics.AddRows(model.TablePriceMinutely.TableName, n)
	return n, gapErr
}

// UpdateActions 写入最新一条记录之后的分红与拆股
func (s *Service) UpdateActions(ctx context.Context, symbol string) (int64, error) {
	latest, err := s.repo.GetLatestDate(ctx, model.TableActions, symbol)
	if err != nil {
		return 0, err
	}

	// 没有任何记录时从最新日线开始, 日线也没有则拉取全部历史
	start := latest
	if latest.IsZero() {
		if start, err = s.repo.GetLatestDate(ctx, model.TablePriceDaily, symbol); err != nil {
			return 0, err
		}
	} else {
		start = latest.AddDate(0, 0, 1)
	}

	today := s.Today()
	if start.After(today) {
		return 0, nil
	}

	var end time.Time
	if !start.IsZero() {
		end = today
	}
	chart, err := s.fetchDaily(ctx, symbol, start, end)
	if errors.Is(err, yahoo.ErrNoData) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	fresh := make([]model.Action, 0, len(chart.Actions))
	for _, a := range chart.Actions {
		if a.Date.After(latest) {
			fresh = append(fresh, a)
		}
	}

	n, err := s.repo.UpsertActions(ctx, fresh, model.ConflictIgnore)
	if err != nil {
		return 0, err
	}
	s.metrics.AddRows(model.TableActions.TableName, n)
	return n, nil
}

// RefreshProfile 重新获取代码与交易所信息并覆盖
func (s *Service) RefreshProfile(ctx context.Context, symbol string) (int64, error) {
	started := time.Now()
	chart, err := s.fetcher.Profile(ctx, symbol)
	s.metrics.ObserveFetch(string(model.IntervalDaily), started, err)
	if err != nil {
		return 0, err
	}

	var n int64
	err = s.repo.WithTx(ctx, func(w database.Writer) error {
		if chart.Exchange.Name != "" {
			if _, err := w.UpsertExchanges(ctx, []model.Exchange{chart.Exchange}, model.ConflictReplace); err != nil {
				return err
			}
		}
		var err error
		n, err = w.UpsertSecurities(ctx, []model.Security{chart.Security}, model.ConflictReplace)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.AddRows(model.TableSecurity.TableName, n)
	return n, nil
}

// Summary 对多个代码执行同一更新操作的结果
type Summary struct {
	Operation string
	Tickers   int
	Rows      int64
	Gaps      []string
	Failed    map[string]error
}

func (s *Summary) FirstError() error {
	for _, err := range s.Failed {
		return err
	}
	return nil
}

// UpdateEach 依次对每个代码执行 fn. 单个代码失败只记录, 不中断.
func (s *Service) UpdateEach(ctx context.Context, operation string, tickers []string,
	fn func(ctx context.Context, ticker string) (int64, error)) (*Summary, error) {

	sum := &Summary{Operation: operation, Tickers: len(tickers), Failed: map[string]error{}}
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		n, err := fn(ctx, ticker)
		sum.Rows += n
		switch {
		case err == nil:
		case errors.Is(err, ErrContinuityGap):
			sum.Gaps = append(sum.Gaps, ticker)
			s.logger.Warn("minute history is discontinuous", "ticker", ticker, "error", err)
		default:
			sum.Failed[ticker] = err
			s.metrics.TickerFailed(operation)
			s.logger.Warn("update failed", "operation", operation, "ticker", ticker, "error", err)
		}
	}
	return sum, nil
}
