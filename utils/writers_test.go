package utils

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type sampleRow struct {
	Ticker  string     `col:"security_ticker" parquet:"security_ticker"`
	Date    time.Time  `col:"date"            parquet:"date"  type:"date"`
	Close   float64    `col:"close"           parquet:"close"`
	Volume  int64      `col:"volume"          parquet:"volume"`
	Updated *time.Time `col:"updated"         parquet:"-"`
	Note    string     `col:"-"               parquet:"-"`
}

func sampleRows() []sampleRow {
	ts := time.Date(2022, 1, 3, 14, 30, 0, 0, time.UTC)
	return []sampleRow{
		{Ticker: "MSFT", Date: time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), Close: 334.75, Volume: 100, Updated: &ts, Note: "x"},
		{Ticker: "AAPL", Date: time.Date(2022, 1, 4, 0, 0, 0, 0, time.UTC), Close: 179.7, Volume: 200},
	}
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCSVWriterTo[sampleRow](&buf)
	require.NoError(t, err)

	require.NoError(t, w.Write(sampleRows()))
	require.NoError(t, w.Write(nil))
	require.NoError(t, w.Close())

	want := "security_ticker,date,close,volume,updated\n" +
		"MSFT,2022-01-03,334.75,100,2022-01-03T14:30:00Z\n" +
		"AAPL,2022-01-04,179.7,200,\n"
	assert.Equal(t, want, buf.String())
}

func TestCSVWriterHeaderOnlyWhenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	w, err := NewCSVWriter[sampleRow](path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, CheckFile(path))
}

func TestCSVWriterRejectsNonStruct(t *testing.T) {
	_, err := NewCSVWriterTo[int](&bytes.Buffer{})
	assert.Error(t, err)
}

func TestXLSXWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.xlsx")
	w, err := NewXLSXWriter[sampleRow](path, "price_daily")
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleRows()))
	assert.Equal(t, 2, w.Rows())
	require.NoError(t, w.Close())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("price_daily")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"security_ticker", "date", "close", "volume", "updated"}, rows[0])
	assert.Equal(t, "MSFT", rows[1][0])
	assert.Equal(t, "2022-01-03", rows[1][1])
	assert.Equal(t, "200", rows[2][3])
}

func TestParquetWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.parquet")
	w, err := NewParquetWriter[sampleRow](path)
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleRows()))
	assert.Equal(t, int64(2), w.Rows())
	require.NoError(t, w.Close())

	got, err := parquet.ReadFile[sampleRow](path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "MSFT", got[0].Ticker)
	assert.Equal(t, 179.7, got[1].Close)
	assert.Equal(t, int64(200), got[1].Volume)
}
