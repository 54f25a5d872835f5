package yahoo

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jing2uo/yf2db/model"
)

func convertResult(symbol string, interval model.Interval, r *chartResult, logger *slog.Logger) (*Chart, error) {
	loc := time.UTC
	if r.Meta.ExchangeTimezoneName != "" {
		l, err := time.LoadLocation(r.Meta.ExchangeTimezoneName)
		if err != nil {
			logger.Warn("unknown exchange timezone, using UTC",
				"symbol", symbol, "timezone", r.Meta.ExchangeTimezoneName)
		} else {
			loc = l
		}
	}

	ticker := strings.ToUpper(symbol)
	if r.Meta.Symbol != "" {
		ticker = r.Meta.Symbol
	}

	chart := &Chart{
		Security: model.Security{
			Ticker:    ticker,
			NameShort: r.Meta.ShortName,
			NameLong:  r.Meta.LongName,
			Exchange:  r.Meta.ExchangeName,
			Currency:  r.Meta.Currency,
			Type:      r.Meta.InstrumentType,
			Timezone:  r.Meta.ExchangeTimezoneName,
		},
		Exchange: model.Exchange{
			Name:          r.Meta.ExchangeName,
			Timezone:      r.Meta.ExchangeTimezoneName,
			TimezoneShort: r.Meta.Timezone,
			GMTOffset:     r.Meta.GMTOffset,
		},
		QuoteType: model.QuoteType(r.Meta.InstrumentType),
		Location:  loc,
	}

	if len(r.Timestamp) > 0 {
		if len(r.Indicators.Quote) == 0 {
			return nil, fmt.Errorf("chart for %s has timestamps but no quote data", symbol)
		}
		q := r.Indicators.Quote[0]
		var adj []*float64
		if len(r.Indicators.AdjClose) > 0 {
			adj = r.Indicators.AdjClose[0].AdjClose
		}

		for i, ts := range r.Timestamp {
			open, high, low, cls := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
			// 任一价格为 null 的点直接丢弃
			if open == nil || high == nil || low == nil || cls == nil {
				continue
			}

			var volume int64
			if i < len(q.Volume) && q.Volume[i] != nil {
				volume = *q.Volume[i]
			}
			adjusted := *cls
			if a := at(adj, i); a != nil {
				adjusted = *a
			}

			switch interval {
			case model.IntervalMinute:
				chart.Minutely = append(chart.Minutely, model.MinuteBar{
					Ticker:        ticker,
					Datetime:      time.Unix(ts, 0).UTC(),
					Open:          *open,
					High:          *high,
					Low:           *low,
					Close:         *cls,
					AdjustedClose: adjusted,
					Volume:        volume,
				})
			default:
				chart.Daily = append(chart.Daily, model.DailyBar{
					Ticker:        ticker,
					Date:          localDate(ts, loc),
					Open:          *open,
					High:          *high,
					Low:           *low,
					Close:         *cls,
					AdjustedClose: adjusted,
					Volume:        volume,
				})
			}
		}
	}

	chart.Actions = convertEvents(ticker, r.Events, loc)
	return chart, nil
}

// convertEvents 同一天的分红与拆股合并为一行
func convertEvents(ticker string, ev *events, loc *time.Location) []model.Action {
	if ev == nil {
		return nil
	}

	byDate := make(map[time.Time]*model.Action)
	get := func(ts int64) *model.Action {
		d := localDate(ts, loc)
		a, ok := byDate[d]
		if !ok {
			a = &model.Action{Ticker: ticker, Date: d}
			byDate[d] = a
		}
		return a
	}

	for _, div := range ev.Dividends {
		get(div.Date).Dividends += div.Amount
	}
	for _, sp := range ev.Splits {
		get(sp.Date).StockSplits = sp.Ratio()
	}

	actions := make([]model.Action, 0, len(byDate))
	for _, a := range byDate {
		actions = append(actions, *a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].Date.Before(actions[j].Date) })
	return actions
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

// localDate 交易所当地日期, 以 UTC 零点表示
func localDate(ts int64, loc *time.Location) time.Time {
	return utcDate(time.Unix(ts, 0).In(loc))
}
