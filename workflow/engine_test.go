package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jing2uo/yf2db/database/duckdb"
	"github.com/jing2uo/yf2db/ingest"
	"github.com/jing2uo/yf2db/metrics"
	"github.com/jing2uo/yf2db/model"
	"github.com/jing2uo/yf2db/planner"
	"github.com/jing2uo/yf2db/yahoo"
)

// recorder 记录任务执行顺序
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) task(name string, deps []string, err error, mode ErrorMode) *Task {
	return &Task{
		Name:      name,
		DependsOn: deps,
		OnError:   mode,
		Executor: func(ctx context.Context, svc *ingest.Service, args *TaskArgs) (*TaskResult, error) {
			r.mu.Lock()
			r.order = append(r.order, name)
			r.mu.Unlock()
			if err != nil {
				return nil, err
			}
			return &TaskResult{State: StateCompleted}, nil
		},
	}
}

func (r *recorder) index(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestRunRespectsDependencies(t *testing.T) {
	r := &recorder{}
	tasks := map[string]*Task{
		"a": r.task("a", nil, nil, ErrorModeStop),
		"b": r.task("b", []string{"a"}, nil, ErrorModeStop),
		"c": r.task("c", []string{"b"}, nil, ErrorModeStop),
	}
	rec := metrics.NewRecorder()
	te := NewTaskExecutor(nil, tasks, rec)

	require.NoError(t, te.Run(context.Background(), []string{"c", "b", "a"}, nil))
	assert.Equal(t, []string{"a", "b", "c"}, r.order)
	assert.Equal(t, StateCompleted, te.Result("c").State)
	assert.Equal(t, 3, testutil.CollectAndCount(rec.Registry(), "yf2db_workflow_tasks_total"))
}

func TestRunStopsOnError(t *testing.T) {
	r := &recorder{}
	boom := errors.New("boom")
	tasks := map[string]*Task{
		"a": r.task("a", nil, boom, ErrorModeStop),
		"b": r.task("b", []string{"a"}, nil, ErrorModeStop),
	}
	te := NewTaskExecutor(nil, tasks, nil)

	err := te.Run(context.Background(), []string{"a", "b"}, nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, -1, r.index("b"))
}

func TestRunSkipModeLetsDependentsRun(t *testing.T) {
	r := &recorder{}
	tasks := map[string]*Task{
		"a": r.task("a", nil, errors.New("flaky"), ErrorModeSkip),
		"b": r.task("b", []string{"a"}, nil, ErrorModeStop),
	}
	te := NewTaskExecutor(nil, tasks, nil)

	require.NoError(t, te.Run(context.Background(), []string{"a", "b"}, nil))
	assert.Equal(t, StateFailed, te.Result("a").State)
	assert.Equal(t, StateCompleted, te.Result("b").State)
}

func TestRunSkipIf(t *testing.T) {
	r := &recorder{}
	skipped := r.task("b", []string{"a"}, nil, ErrorModeStop)
	skipped.SkipIf = func(ctx context.Context, svc *ingest.Service, args *TaskArgs) bool {
		return args.OutputDir == ""
	}
	tasks := map[string]*Task{
		"a": r.task("a", nil, nil, ErrorModeStop),
		"b": skipped,
		"c": r.task("c", []string{"b"}, nil, ErrorModeStop),
	}
	te := NewTaskExecutor(nil, tasks, nil)

	require.NoError(t, te.Run(context.Background(), []string{"a", "b", "c"}, &TaskArgs{}))
	assert.Equal(t, StateSkipped, te.Result("b").State)
	assert.Equal(t, []string{"a", "c"}, r.order)
}

func TestRunUnrequestedDependencyDoesNotBlock(t *testing.T) {
	r := &recorder{}
	tasks := map[string]*Task{
		"a": r.task("a", nil, nil, ErrorModeStop),
		"b": r.task("b", []string{"a"}, nil, ErrorModeStop),
	}
	te := NewTaskExecutor(nil, tasks, nil)

	require.NoError(t, te.Run(context.Background(), []string{"b"}, nil))
	assert.Equal(t, []string{"b"}, r.order)
}

func TestRunRejectsCycleAndUnknown(t *testing.T) {
	r := &recorder{}
	tasks := map[string]*Task{
		"a": r.task("a", []string{"b"}, nil, ErrorModeStop),
		"b": r.task("b", []string{"a"}, nil, ErrorModeStop),
	}
	te := NewTaskExecutor(nil, tasks, nil)

	assert.Error(t, te.Run(context.Background(), []string{"a", "b"}, nil))
	assert.Error(t, te.Run(context.Background(), []string{"zzz"}, nil))
}

func TestRunRecoversPanic(t *testing.T) {
	tasks := map[string]*Task{
		"a": {Name: "a", Executor: func(ctx context.Context, svc *ingest.Service, args *TaskArgs) (*TaskResult, error) {
			panic("bad")
		}},
	}
	te := NewTaskExecutor(nil, tasks, nil)

	err := te.Run(context.Background(), []string{"a"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: bad")
}

func TestParseTaskList(t *testing.T) {
	names, err := ParseTaskList(" update_daily, update_actions,update_daily ", AllTasks())
	require.NoError(t, err)
	assert.Equal(t, []string{"update_daily", "update_actions"}, names)

	names, err = ParseTaskList("", AllTasks())
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = ParseTaskList("update_daily,calc_factor", AllTasks())
	assert.Error(t, err)
}

// stubFetcher 返回固定行情, fail 中的代码总是报错
type stubFetcher struct {
	chart *yahoo.Chart
	fail  map[string]bool
}

func (f *stubFetcher) get(symbol string) (*yahoo.Chart, error) {
	if f.fail[symbol] {
		return nil, fmt.Errorf("%s: upstream unavailable", symbol)
	}
	c := *f.chart
	c.Security.Ticker = symbol
	c.Daily = nil
	for _, b := range f.chart.Daily {
		b.Ticker = symbol
		c.Daily = append(c.Daily, b)
	}
	return &c, nil
}

func (f *stubFetcher) Daily(ctx context.Context, symbol string, start, end time.Time) (*yahoo.Chart, error) {
	c, err := f.get(symbol)
	if err != nil {
		return nil, err
	}
	var bars []model.DailyBar
	for _, b := range c.Daily {
		if (start.IsZero() || !b.Date.Before(start)) && (end.IsZero() || !b.Date.After(end)) {
			bars = append(bars, b)
		}
	}
	c.Daily = bars
	return c, nil
}

func (f *stubFetcher) Minutely(ctx context.Context, symbol string, w planner.Window) (*yahoo.Chart, error) {
	return nil, fmt.Errorf("%s: %w", symbol, yahoo.ErrNoData)
}

func (f *stubFetcher) Profile(ctx context.Context, symbol string) (*yahoo.Chart, error) {
	return f.get(symbol)
}

func newTaskService(t *testing.T, fetcher ingest.Fetcher) *ingest.Service {
	t.Helper()

	repo := duckdb.NewDriver(model.DBConfig{Type: model.DBTypeDuckDB})
	require.NoError(t, repo.Connect())
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.InitSchema())

	now := time.Date(2022, 1, 5, 15, 0, 0, 0, time.UTC)
	svc, err := ingest.NewService(repo, fetcher, ingest.DefaultConfig(),
		ingest.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		ingest.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	return svc
}

func testChart() *yahoo.Chart {
	c := &yahoo.Chart{
		Security:  model.Security{NameShort: "Test", Exchange: "NMS", Currency: "USD", Type: "EQUITY"},
		Exchange:  model.Exchange{Name: "NMS", Timezone: "America/New_York", TimezoneShort: "EST"},
		QuoteType: model.QuoteEquity,
	}
	for d := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC); d.Day() <= 5; d = d.AddDate(0, 0, 1) {
		c.Daily = append(c.Daily, model.DailyBar{Date: d, Open: 1, High: 2, Low: 1, Close: 2, AdjustedClose: 2, Volume: 10})
	}
	return c
}

func TestDefaultTasksUpdateAndExport(t *testing.T) {
	ctx := context.Background()
	svc := newTaskService(t, &stubFetcher{chart: testChart(), fail: map[string]bool{"BAD": true}})
	_, err := svc.AddTicker(ctx, "MSFT")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "export")
	te := NewTaskExecutor(svc, AllTasks(), nil)
	err = te.Run(ctx, DefaultUpdateTasks, &TaskArgs{Tickers: []string{"MSFT", "BAD"}, OutputDir: out, Format: "csv"})
	require.NoError(t, err)

	for _, name := range []string{"update_profiles", "update_actions", "update_daily", "update_minutely", "export"} {
		assert.Equal(t, StateCompleted, te.Result(name).State, name)
	}
	assert.Contains(t, te.Result("update_daily").Message, "1 failed")

	content, err := os.ReadFile(filepath.Join(out, "price_daily.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "MSFT,2022-01-05")
}

func TestDefaultTasksFailWhenEveryTickerFails(t *testing.T) {
	svc := newTaskService(t, &stubFetcher{chart: testChart(), fail: map[string]bool{"BAD": true}})

	te := NewTaskExecutor(svc, AllTasks(), nil)
	err := te.Run(context.Background(), []string{"update_actions", "update_daily"}, &TaskArgs{Tickers: []string{"BAD"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update_actions")
	assert.Nil(t, te.Result("update_daily"))
}

func TestDefaultTasksWithoutTickers(t *testing.T) {
	svc := newTaskService(t, &stubFetcher{chart: testChart()})

	te := NewTaskExecutor(svc, AllTasks(), nil)
	require.NoError(t, te.Run(context.Background(), DefaultUpdateTasks, &TaskArgs{}))
	assert.Equal(t, StateSkipped, te.Result("update_daily").State)
	assert.Equal(t, StateSkipped, te.Result("export").State)
}
