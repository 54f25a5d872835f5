package planner

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxSpanDays 单个窗口跨度 (含首尾共 7 天)
	DefaultMaxSpanDays = 6
	// Horizon 分钟线可回溯的天数
	Horizon = 29

	DateLayout = "2006-01-02"
)

var ErrInvalidRange = errors.New("anchor date is after today")

// Window 一个闭区间日期窗口 [Start, End]
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) StartString() string { return w.Start.Format(DateLayout) }
func (w Window) EndString() string   { return w.End.Format(DateLayout) }

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.StartString(), w.EndString())
}

// Days 窗口包含的自然日数
func (w Window) Days() int {
	return daysBetween(w.Start, w.End) + 1
}

type Option func(*options)

type options struct {
	maxSpanDays   int
	weekendAdjust bool
}

// WithMaxSpanDays 小于 1 的值被忽略
func WithMaxSpanDays(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.maxSpanDays = n
		}
	}
}

// WithWeekendAdjust 控制尾部窗口是否回退到最近的工作日
func WithWeekendAdjust(enabled bool) Option {
	return func(o *options) {
		o.weekendAdjust = enabled
	}
}

// DefaultAnchor 返回 today 往前 Horizon 天
func DefaultAnchor(today time.Time) time.Time {
	return Truncate(today).AddDate(0, 0, -Horizon)
}

// Truncate 去掉时分秒, 保留原时区
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Plan 将 [anchor, today] 切分为连续的窗口, 每个窗口最多 maxSpanDays+1 天.
// anchor == today 时返回空切片.
func Plan(anchor, today time.Time, opts ...Option) ([]Window, error) {
	o := &options{
		maxSpanDays:   DefaultMaxSpanDays,
		weekendAdjust: true,
	}
	for _, opt := range opts {
		opt(o)
	}

	start := Truncate(anchor)
	end := Truncate(today)
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange,
			start.Format(DateLayout), end.Format(DateLayout))
	}

	span := o.maxSpanDays
	var windows []Window

	// 1. 首个窗口, 截断到 today
	first := Window{Start: start, End: minDate(start.AddDate(0, 0, span), end)}
	if !first.Start.Before(first.End) {
		return windows, nil
	}
	windows = append(windows, first)
	prev := first

	// 2. 完整窗口
	for prev.End.AddDate(0, 0, span+1).Before(end) {
		next := Window{
			Start: prev.End.AddDate(0, 0, 1),
			End:   prev.End.AddDate(0, 0, 1+span),
		}
		windows = append(windows, next)
		prev = next
	}

	// 3. 尾部窗口
	tailStart := prev.End.AddDate(0, 0, 1)
	if tailStart.Before(end) {
		tail := Window{Start: tailStart, End: end}
		if o.weekendAdjust {
			tail.End = lastWeekday(end)
		}
		if tail.Start.Before(tail.End) {
			windows = append(windows, tail)
		}
	}

	return windows, nil
}

// Covers 返回窗口序列覆盖的整体区间
func Covers(windows []Window) (Window, bool) {
	if len(windows) == 0 {
		return Window{}, false
	}
	return Window{Start: windows[0].Start, End: windows[len(windows)-1].End}, true
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

func lastWeekday(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, -1)
	case time.Sunday:
		return t.AddDate(0, 0, -2)
	default:
		return t
	}
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
