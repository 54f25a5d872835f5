package yahoo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jing2uo/yf2db/model"
	"github.com/jing2uo/yf2db/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2022-01-03/04/05 09:30 America/New_York
const dailyFixture = `{
  "chart": {
    "result": [{
      "meta": {
        "currency": "USD", "symbol": "MSFT", "exchangeName": "NMS", "fullExchangeName": "NasdaqGS",
        "instrumentType": "EQUITY", "gmtoffset": -18000, "timezone": "EST",
        "exchangeTimezoneName": "America/New_York", "shortName": "Microsoft Corporation",
        "longName": "Microsoft Corporation", "dataGranularity": "1d"
      },
      "timestamp": [1641220200, 1641306600, 1641393000],
      "events": {
        "dividends": {"1641306600": {"amount": 0.62, "date": 1641306600}},
        "splits": {"1641393000": {"date": 1641393000, "numerator": 4, "denominator": 1, "splitRatio": "4:1"}}
      },
      "indicators": {
        "quote": [{
          "open":   [335.35, null, 326.0],
          "high":   [338.0, 337.0, 334.0],
          "low":    [329.78, 328.0, 325.0],
          "close":  [334.75, 329.0, 316.38],
          "volume": [28865100, null, 40054300]
        }],
        "adjclose": [{"adjclose": [330.1, 324.4, 312.0]}]
      }
    }],
    "error": null
  }
}`

const minuteFixture = `{
  "chart": {
    "result": [{
      "meta": {"currency": "USD", "symbol": "BTC-USD", "exchangeName": "CCC", "instrumentType": "CRYPTOCURRENCY",
               "gmtoffset": 0, "timezone": "UTC", "exchangeTimezoneName": "UTC"},
      "timestamp": [1641220200, 1641220260],
      "indicators": {"quote": [{"open": [1, 2], "high": [1.5, 2.5], "low": [0.5, 1.5], "close": [1.2, 2.2], "volume": [10, null]}]}
    }],
    "error": null
  }
}`

const notFoundFixture = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := []Option{
		WithBaseURL(srv.URL),
		WithLogger(quietLogger()),
		WithRateLimit(0, 1),
		WithRetryInterval(time.Millisecond),
		WithClock(func() time.Time { return time.Date(2022, 1, 31, 12, 0, 0, 0, time.UTC) }),
	}
	return NewClient(append(base, opts...)...)
}

func TestDailyParsesChart(t *testing.T) {
	var gotQuery map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/MSFT", r.URL.Path)
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(dailyFixture))
	})

	chart, err := c.Daily(context.Background(), "MSFT", time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, "max", gotQuery["range"])
	assert.Equal(t, "1d", gotQuery["interval"])
	assert.Equal(t, "div,splits", gotQuery["events"])

	assert.Equal(t, "MSFT", chart.Security.Ticker)
	assert.Equal(t, "NMS", chart.Security.Exchange)
	assert.Equal(t, "EQUITY", chart.Security.Type)
	assert.Equal(t, "America/New_York", chart.Exchange.Timezone)
	assert.Equal(t, "EST", chart.Exchange.TimezoneShort)
	assert.Equal(t, int64(-18000), chart.Exchange.GMTOffset)
	assert.Equal(t, model.QuoteEquity, chart.QuoteType)

	// 第二个点 open 为 null, 被丢弃
	require.Len(t, chart.Daily, 2)
	assert.Equal(t, "2022-01-03", chart.Daily[0].Date.Format("2006-01-02"))
	assert.Equal(t, 330.1, chart.Daily[0].AdjustedClose)
	assert.Equal(t, int64(28865100), chart.Daily[0].Volume)
	assert.Equal(t, "2022-01-05", chart.Daily[1].Date.Format("2006-01-02"))
	assert.Empty(t, chart.Minutely)

	require.Len(t, chart.Actions, 2)
	assert.Equal(t, "2022-01-04", chart.Actions[0].Date.Format("2006-01-02"))
	assert.Equal(t, 0.62, chart.Actions[0].Dividends)
	assert.Equal(t, 4.0, chart.Actions[1].StockSplits)
}

func TestMinutelyRequestsWindow(t *testing.T) {
	var gotQuery chartQuery
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = chartQuery{
			interval: r.URL.Query().Get("interval"),
			period1:  r.URL.Query().Get("period1"),
			period2:  r.URL.Query().Get("period2"),
		}
		_, _ = w.Write([]byte(minuteFixture))
	})

	w := planner.Window{
		Start: time.Date(2022, 1, 23, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2022, 1, 29, 0, 0, 0, 0, time.UTC),
	}
	chart, err := c.Minutely(context.Background(), "BTC-USD", w)
	require.NoError(t, err)

	assert.Equal(t, "1m", gotQuery.interval)
	assert.Equal(t, "1642896000", gotQuery.period1) // 2022-01-23T00:00Z
	assert.Equal(t, "1643500800", gotQuery.period2) // 2022-01-30T00:00Z

	require.Len(t, chart.Minutely, 2)
	assert.Empty(t, chart.Daily)
	assert.Equal(t, time.Unix(1641220200, 0).UTC(), chart.Minutely[0].Datetime)
	assert.Equal(t, 1.2, chart.Minutely[0].AdjustedClose)
	assert.Equal(t, int64(0), chart.Minutely[1].Volume)
	assert.True(t, chart.QuoteType.TradesOnWeekends())
}

type chartQuery struct {
	interval, period1, period2 string
}

func TestMinuteLimitsAreCheckedLocally(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(minuteFixture))
	})
	ctx := context.Background()

	_, err := c.Chart(ctx, ChartRequest{
		Symbol: "MSFT", Interval: model.IntervalMinute,
		Start: time.Date(2022, 1, 20, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2022, 1, 27, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrSpanTooLong)

	_, err = c.Chart(ctx, ChartRequest{
		Symbol: "MSFT", Interval: model.IntervalMinute,
		Start: time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2021, 12, 3, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrOutsideHorizon)

	_, err = c.Chart(ctx, ChartRequest{Symbol: "MSFT", Interval: model.IntervalMinute})
	require.Error(t, err)

	assert.Equal(t, int32(0), calls.Load())
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(dailyFixture))
	})

	chart, err := c.Daily(context.Background(), "MSFT", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, chart.Daily, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimitedGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}, WithMaxRetries(2))

	_, err := c.Daily(context.Background(), "MSFT", time.Time{}, time.Time{})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(notFoundFixture))
	})

	_, err := c.Daily(context.Background(), "NOPE", time.Time{}, time.Time{})
	require.ErrorIs(t, err, ErrNoData)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Not Found", apiErr.Code)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmptyResultIsNoData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
	})

	_, err := c.Daily(context.Background(), "MSFT", time.Time{}, time.Time{})
	require.ErrorIs(t, err, ErrNoData)
}

func TestProfileUsesRecentWeek(t *testing.T) {
	var period1 string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		period1 = r.URL.Query().Get("period1")
		_, _ = w.Write([]byte(dailyFixture))
	})

	chart, err := c.Profile(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "Microsoft Corporation", chart.Security.NameLong)
	assert.Equal(t, "1643068800", period1) // 2022-01-25T00:00Z
}
