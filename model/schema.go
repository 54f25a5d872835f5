package model

import "time"

// --- 结构体定义 (Schema) ---

type Security struct {
	Ticker    string `col:"ticker"     db:"ticker"     parquet:"ticker"`
	NameShort string `col:"name_short" db:"name_short" parquet:"name_short"`
	NameLong  string `col:"name_long"  db:"name_long"  parquet:"name_long"`
	Exchange  string `col:"exchange"   db:"exchange"   parquet:"exchange,dict"`
	Currency  string `col:"currency"   db:"currency"   parquet:"currency,dict"`
	Type      string `col:"type"       db:"type"       parquet:"type,dict"`
	Timezone  string `col:"timezone"   db:"timezone"   parquet:"timezone,dict"`
}

type Exchange struct {
	Name          string `col:"exchange_name"           db:"exchange_name"           parquet:"exchange_name"`
	Timezone      string `col:"exchange_timezone"       db:"exchange_timezone"       parquet:"exchange_timezone"`
	TimezoneShort string `col:"exchange_timezone_short" db:"exchange_timezone_short" parquet:"exchange_timezone_short"`
	GMTOffset     int64  `col:"gmt_offset"              db:"gmt_offset"              parquet:"gmt_offset"`
}

type DailyBar struct {
	Ticker        string    `col:"security_ticker" db:"security_ticker" parquet:"security_ticker,dict"`
	Date          time.Time `col:"date"            db:"date"            parquet:"date"             type:"date"`
	Open          float64   `col:"open"            db:"open"            parquet:"open"`
	High          float64   `col:"high"            db:"high"            parquet:"high"`
	Low           float64   `col:"low"             db:"low"             parquet:"low"`
	Close         float64   `col:"close"           db:"close"           parquet:"close"`
	AdjustedClose float64   `col:"adjusted_close"  db:"adjusted_close"  parquet:"adjusted_close"`
	Volume        int64     `col:"volume"          db:"volume"          parquet:"volume"`
}

type MinuteBar struct {
	Ticker        string    `col:"security_ticker" db:"security_ticker" parquet:"security_ticker,dict"`
	Datetime      time.Time `col:"datetime"        db:"datetime"        parquet:"datetime"         type:"datetime"`
	Open          float64   `col:"open"            db:"open"            parquet:"open"`
	High          float64   `col:"high"            db:"high"            parquet:"high"`
	Low           float64   `col:"low"             db:"low"             parquet:"low"`
	Close         float64   `col:"close"           db:"close"           parquet:"close"`
	AdjustedClose float64   `col:"adjusted_close"  db:"adjusted_close"  parquet:"adjusted_close"`
	Volume        int64     `col:"volume"          db:"volume"          parquet:"volume"`
}

type Action struct {
	Ticker      string    `col:"security_ticker" db:"security_ticker" parquet:"security_ticker,dict"`
	Date        time.Time `col:"date"            db:"date"            parquet:"date"            type:"date"`
	Dividends   float64   `col:"dividends"       db:"dividends"       parquet:"dividends"`
	StockSplits float64   `col:"stock_splits"    db:"stock_splits"    parquet:"stock_splits"`
}

// Coverage 对应 v_coverage 视图
type Coverage struct {
	Ticker       string     `col:"security_ticker" db:"security_ticker"`
	FirstDaily   *time.Time `col:"first_daily"     db:"first_daily"   type:"date"`
	LastDaily    *time.Time `col:"last_daily"      db:"last_daily"    type:"date"`
	LastMinutely *time.Time `col:"last_minutely"   db:"last_minutely"`
	DailyRows    int64      `col:"daily_rows"      db:"daily_rows"`
	MinuteRows   int64      `col:"minute_rows"     db:"minute_rows"`
}
