package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryHoldsAllTables(t *testing.T) {
	names := make([]string, 0)
	for _, m := range AllTables() {
		names = append(names, m.TableName)
	}
	assert.Equal(t, []string{"security", "exchange", "price_daily", "price_minutely", "actions"}, names)

	meta, ok := LookupTable("price_daily")
	require.True(t, ok)
	assert.Same(t, TablePriceDaily, meta)

	_, ok = LookupTable("nope")
	assert.False(t, ok)
}

func TestSchemaFromStructColumns(t *testing.T) {
	assert.Equal(t,
		[]string{"security_ticker", "date", "open", "high", "low", "close", "adjusted_close", "volume"},
		TablePriceDaily.ColumnNames())

	types := map[string]DataType{}
	for _, c := range TablePriceMinutely.Columns {
		types[c.Name] = c.Type
	}
	assert.Equal(t, TypeDateTime, types["datetime"])
	assert.Equal(t, TypeInt64, types["volume"])
	assert.Equal(t, TypeFloat64, types["adjusted_close"])
	assert.Equal(t, TypeDate, TableActions.Columns[1].Type)
	assert.Equal(t, "datetime", TablePriceMinutely.DateColumn)
}

func TestValuesAndKey(t *testing.T) {
	d := time.Date(2022, 1, 31, 0, 0, 0, 0, time.UTC)
	bar := DailyBar{Ticker: "MSFT", Date: d, Open: 1, High: 2, Low: 0.5, Close: 1.5, AdjustedClose: 1.4, Volume: 10}

	vals, err := TablePriceDaily.Values(bar)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"MSFT", d, 1.0, 2.0, 0.5, 1.5, 1.4, int64(10)}, vals)

	other := bar
	other.Close = 99
	otherVals, err := TablePriceDaily.Values(&other)
	require.NoError(t, err)
	assert.Equal(t, TablePriceDaily.Key(vals), TablePriceDaily.Key(otherVals))

	_, err = TablePriceDaily.Values(Action{})
	assert.Error(t, err)
}

func TestParseDBConfig(t *testing.T) {
	tests := []struct {
		uri     string
		want    DBConfig
		wantErr bool
	}{
		{uri: "financial_db/finance.db", want: DBConfig{Type: DBTypeDuckDB, DSN: "financial_db/finance.db"}},
		{uri: "duckdb://finance.db", want: DBConfig{Type: DBTypeDuckDB, DSN: "finance.db"}},
		{uri: "clickhouse://u:p@localhost:9000/yf", want: DBConfig{Type: DBTypeClickHouse, DSN: "clickhouse://u:p@localhost:9000/yf"}},
		{uri: "postgres://localhost/db", wantErr: true},
		{uri: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseDBConfig(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntervalAndQuoteType(t *testing.T) {
	iv, err := ParseInterval("minute")
	require.NoError(t, err)
	assert.Same(t, TablePriceMinutely, iv.Table())

	_, err = ParseInterval("5m")
	assert.Error(t, err)

	assert.True(t, QuoteCryptocurrency.TradesOnWeekends())
	assert.True(t, QuoteCurrency.TradesOnWeekends())
	assert.False(t, QuoteEquity.TradesOnWeekends())
}
