package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "yf2db_"

	resultSuccess = "success"
	resultError   = "error"
)

// Recorder 采集抓取与入库指标. nil Recorder 的所有方法均为空操作.
type Recorder struct {
	registry *prometheus.Registry

	fetchRequests *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	rowsWritten   *prometheus.CounterVec
	tickerErrors  *prometheus.CounterVec
	taskResults   *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetchRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_requests_total",
				Help: "Total chart requests by interval and result",
			},
			[]string{"interval", "result"},
		),
		fetchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fetch_latency_seconds",
				Help:    "Chart request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"interval"},
		),
		rowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_written_total",
				Help: "Rows written by table",
			},
			[]string{"table"},
		),
		tickerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ticker_errors_total",
				Help: "Per-ticker failures by operation",
			},
			[]string{"operation"},
		),
		taskResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "workflow_tasks_total",
				Help: "Workflow task results by task and state",
			},
			[]string{"task", "state"},
		),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}

	r.registry.MustRegister(
		r.fetchRequests,
		r.fetchLatency,
		r.rowsWritten,
		r.tickerErrors,
		r.taskResults,
		r.lastSuccess,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveFetch(interval string, started time.Time, err error) {
	if r == nil {
		return
	}
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	r.fetchRequests.WithLabelValues(interval, result).Inc()
	r.fetchLatency.WithLabelValues(interval).Observe(time.Since(started).Seconds())
}

func (r *Recorder) AddRows(table string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.rowsWritten.WithLabelValues(table).Add(float64(n))
}

func (r *Recorder) TickerFailed(operation string) {
	if r == nil {
		return
	}
	r.tickerErrors.WithLabelValues(operation).Inc()
}

func (r *Recorder) ObserveTask(task, state string) {
	if r == nil {
		return
	}
	r.taskResults.WithLabelValues(task, state).Inc()
}

func (r *Recorder) MarkSuccess(t time.Time) {
	if r == nil {
		return
	}
	r.lastSuccess.Set(float64(t.Unix()))
}

// WriteTextfile 以 node_exporter textfile 格式写出全部指标
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
