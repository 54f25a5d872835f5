package model

import "fmt"

type Interval string

const (
	IntervalDaily  Interval = "1d"
	IntervalMinute Interval = "1m"
)

func (i Interval) Table() *TableMeta {
	if i == IntervalMinute {
		return TablePriceMinutely
	}
	return TablePriceDaily
}

func ParseInterval(s string) (Interval, error) {
	switch s {
	case "1d", "daily", "day":
		return IntervalDaily, nil
	case "1m", "minute", "minutely":
		return IntervalMinute, nil
	default:
		return "", fmt.Errorf("invalid interval: %s (expected 'daily' or 'minute')", s)
	}
}

// ConflictMode 主键冲突时的处理方式
type ConflictMode int

const (
	ConflictIgnore ConflictMode = iota
	ConflictReplace
)

func (c ConflictMode) String() string {
	if c == ConflictReplace {
		return "replace"
	}
	return "ignore"
}

// QuoteType 对应行情源的 instrumentType
type QuoteType string

const (
	QuoteEquity         QuoteType = "EQUITY"
	QuoteETF            QuoteType = "ETF"
	QuoteCryptocurrency QuoteType = "CRYPTOCURRENCY"
	QuoteCurrency       QuoteType = "CURRENCY"
	QuoteIndex          QuoteType = "INDEX"
)

// TradesOnWeekends 加密货币与外汇周末仍有成交
func (q QuoteType) TradesOnWeekends() bool {
	return q == QuoteCryptocurrency || q == QuoteCurrency
}

// TickerBundle 一个代码首次入库所需的全部数据
type TickerBundle struct {
	Security Security
	Exchange Exchange
	Daily    []DailyBar
	Minutely []MinuteBar
	Actions  []Action
}

func (b *TickerBundle) Rows() int {
	return 2 + len(b.Daily) + len(b.Minutely) + len(b.Actions)
}
