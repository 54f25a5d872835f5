package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder()

	r.ObserveFetch("1d", time.Now(), nil)
	r.ObserveFetch("1d", time.Now(), errors.New("boom"))
	r.ObserveFetch("1m", time.Now(), nil)
	r.AddRows("price_daily", 120)
	r.AddRows("price_daily", 0)
	r.TickerFailed("add")
	r.ObserveTask("update_daily", "completed")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchRequests.WithLabelValues("1d", resultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchRequests.WithLabelValues("1d", resultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchRequests.WithLabelValues("1m", resultSuccess)))
	assert.Equal(t, 120.0, testutil.ToFloat64(r.rowsWritten.WithLabelValues("price_daily")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tickerErrors.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.taskResults.WithLabelValues("update_daily", "completed")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.fetchLatency))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder

	assert.NotPanics(t, func() {
		r.ObserveFetch("1d", time.Now(), nil)
		r.AddRows("security", 1)
		r.TickerFailed("add")
		r.ObserveTask("export", "skipped")
		r.MarkSuccess(time.Now())
	})
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "none.prom")))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.AddRows("actions", 3)
	r.MarkSuccess(time.Unix(1643587200, 0))

	path := filepath.Join(t.TempDir(), "yf2db.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.Contains(text, `yf2db_rows_written_total{table="actions"} 3`))
	assert.True(t, strings.Contains(text, "yf2db_last_success_timestamp_seconds 1.6435872e+09"))
}
