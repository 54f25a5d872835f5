package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s, time.UTC)
	require.NoError(t, err)
	return d
}

func windowStrings(ws []Window) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.String())
	}
	return out
}

func TestPlanScenarios(t *testing.T) {
	today := "2022-01-31"

	tests := []struct {
		name   string
		anchor string
		today  string
		opts   []Option
		want   []string
	}{
		{
			name:   "four full weeks and a trailing window",
			anchor: "2022-01-02",
			today:  today,
			want: []string{
				"2022-01-02..2022-01-08",
				"2022-01-09..2022-01-15",
				"2022-01-16..2022-01-22",
				"2022-01-23..2022-01-29",
				"2022-01-30..2022-01-31",
			},
		},
		{
			name:   "anchor equal to today",
			anchor: today,
			today:  today,
			want:   []string{},
		},
		{
			name:   "exactly one window",
			anchor: "2022-01-25",
			today:  today,
			want:   []string{"2022-01-25..2022-01-31"},
		},
		{
			name:   "two day range",
			anchor: "2022-01-30",
			today:  today,
			want:   []string{"2022-01-30..2022-01-31"},
		},
		{
			name:   "single day remainder is not emitted",
			anchor: "2022-01-24",
			today:  today,
			want:   []string{"2022-01-24..2022-01-30"},
		},
		{
			name:   "trailing window ending on sunday pulls back to friday",
			anchor: "2022-01-20",
			today:  "2022-01-30",
			want: []string{
				"2022-01-20..2022-01-26",
				"2022-01-27..2022-01-28",
			},
		},
		{
			name:   "trailing window kept on sunday without weekend adjust",
			anchor: "2022-01-20",
			today:  "2022-01-30",
			opts:   []Option{WithWeekendAdjust(false)},
			want: []string{
				"2022-01-20..2022-01-26",
				"2022-01-27..2022-01-30",
			},
		},
		{
			name:   "degenerate trailing window on saturday is suppressed",
			anchor: "2022-01-21",
			today:  "2022-01-29",
			want:   []string{"2022-01-21..2022-01-27"},
		},
		{
			name:   "custom span",
			anchor: "2022-01-20",
			today:  today,
			opts:   []Option{WithMaxSpanDays(2), WithWeekendAdjust(false)},
			want: []string{
				"2022-01-20..2022-01-22",
				"2022-01-23..2022-01-25",
				"2022-01-26..2022-01-28",
				"2022-01-29..2022-01-31",
			},
		},
		{
			name:   "non-positive span falls back to default",
			anchor: "2022-01-25",
			today:  today,
			opts:   []Option{WithMaxSpanDays(0)},
			want:   []string{"2022-01-25..2022-01-31"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Plan(date(t, tt.anchor), date(t, tt.today), tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, windowStrings(got))
		})
	}
}

func TestPlanDefaultHorizon(t *testing.T) {
	today := date(t, "2022-01-31")

	got, err := Plan(DefaultAnchor(today), today)
	require.NoError(t, err)

	require.Len(t, got, 5)
	assert.Equal(t, "2022-01-02", got[0].StartString())
	last := got[len(got)-1]
	assert.LessOrEqual(t, last.Days(), 7)
	assert.False(t, last.End.After(today))
}

func TestPlanInvalidRange(t *testing.T) {
	_, err := Plan(date(t, "2022-02-01"), date(t, "2022-01-31"))
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestPlanIgnoresTimeOfDay(t *testing.T) {
	anchor := time.Date(2022, 1, 25, 18, 30, 0, 0, time.UTC)
	today := time.Date(2022, 1, 31, 9, 15, 0, 0, time.UTC)

	got, err := Plan(anchor, today)
	require.NoError(t, err)
	assert.Equal(t, []string{"2022-01-25..2022-01-31"}, windowStrings(got))
}

func TestPlanKeepsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	today := time.Date(2022, 3, 18, 15, 0, 0, 0, loc)
	got, err := Plan(DefaultAnchor(today), today)
	require.NoError(t, err)

	for _, w := range got {
		assert.Equal(t, loc, w.Start.Location())
		assert.Equal(t, 0, w.Start.Hour())
		assert.Equal(t, 0, w.End.Hour())
	}
}

func TestPlanInvariants(t *testing.T) {
	base := date(t, "2022-01-03")

	for _, adjust := range []bool{true, false} {
		for d := 0; d < 14; d++ {
			today := base.AddDate(0, 0, d)
			for back := 0; back <= Horizon; back++ {
				anchor := today.AddDate(0, 0, -back)

				got, err := Plan(anchor, today, WithWeekendAdjust(adjust))
				require.NoError(t, err)

				if back == 0 {
					assert.Empty(t, got)
					continue
				}
				require.NotEmpty(t, got, "anchor=%s today=%s", anchor, today)
				assert.True(t, got[0].Start.Equal(anchor))

				for i, w := range got {
					assert.True(t, w.Start.Before(w.End), "window %s", w)
					assert.LessOrEqual(t, daysBetween(w.Start, w.End), DefaultMaxSpanDays)
					assert.False(t, w.End.After(today))
					if i > 0 {
						assert.True(t, got[i-1].End.AddDate(0, 0, 1).Equal(w.Start),
							"gap between %s and %s", got[i-1], w)
					}
				}

				cover, ok := Covers(got)
				require.True(t, ok)
				slack := 1
				if adjust {
					slack = 3
				}
				assert.LessOrEqual(t, daysBetween(cover.End, today), slack,
					"anchor=%s today=%s windows=%v", anchor, today, windowStrings(got))
			}
		}
	}
}

func TestParseDate(t *testing.T) {
	_, err := ParseDate("2022/01/31", nil)
	require.Error(t, err)

	d, err := ParseDate("2022-01-31", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())
}
