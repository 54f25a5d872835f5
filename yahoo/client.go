package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/jing2uo/yf2db/model"
	"github.com/jing2uo/yf2db/planner"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	chartEndpoint = "/v8/finance/chart/{symbol}"

	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

	// 分钟线单次请求最多 7 个自然日
	MaxMinuteSpanDays = planner.DefaultMaxSpanDays + 1

	defaultRequestsPerSecond = 2
	defaultBurst             = 1
	defaultTimeout           = 30 * time.Second
	defaultMaxRetries        = 3
	defaultRetryInterval     = 500 * time.Millisecond
	maxRetryInterval         = 30 * time.Second
)

// ChartRequest Start/End 为闭区间自然日, Start 为零值时按 daily 拉取全部历史
type ChartRequest struct {
	Symbol   string
	Interval model.Interval
	Start    time.Time
	End      time.Time
}

// Chart 一次请求解析后的结果
type Chart struct {
	Security  model.Security
	Exchange  model.Exchange
	QuoteType model.QuoteType
	Location  *time.Location
	Daily     []model.DailyBar
	Minutely  []model.MinuteBar
	Actions   []model.Action
}

type Client struct {
	http          *resty.Client
	limiter       *rate.Limiter
	logger        *slog.Logger
	maxRetries    uint64
	retryInterval time.Duration
	horizonDays   int
	now           func() time.Time
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.http.SetBaseURL(u) }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRateLimit rps <= 0 表示不限速
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if burst < 1 {
			burst = 1
		}
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, burst)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = uint64(n)
		}
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryInterval = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.http.SetHeader("User-Agent", ua)
		}
	}
}

// WithHorizonDays 分钟线可回溯天数
func WithHorizonDays(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.horizonDays = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func NewClient(opts ...Option) *Client {
	h := resty.New()
	h.SetBaseURL(DefaultBaseURL)
	h.SetTimeout(defaultTimeout)
	h.SetHeader("User-Agent", defaultUserAgent)
	h.SetHeader("Accept", "application/json")

	c := &Client{
		http:          h,
		limiter:       rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurst),
		logger:        slog.Default(),
		maxRetries:    defaultMaxRetries,
		retryInterval: defaultRetryInterval,
		horizonDays:   planner.Horizon,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Daily 拉取日线, start 为零值时拉取全部历史
func (c *Client) Daily(ctx context.Context, symbol string, start, end time.Time) (*Chart, error) {
	return c.Chart(ctx, ChartRequest{Symbol: symbol, Interval: model.IntervalDaily, Start: start, End: end})
}

// Minutely 拉取一个窗口内的分钟线
func (c *Client) Minutely(ctx context.Context, symbol string, w planner.Window) (*Chart, error) {
	return c.Chart(ctx, ChartRequest{Symbol: symbol, Interval: model.IntervalMinute, Start: w.Start, End: w.End})
}

// Profile 仅获取代码的元数据, 请求最近 7 天 (含今天) 的日线
func (c *Client) Profile(ctx context.Context, symbol string) (*Chart, error) {
	today := planner.Truncate(c.now())
	return c.Chart(ctx, ChartRequest{
		Symbol:   symbol,
		Interval: model.IntervalDaily,
		Start:    today.AddDate(0, 0, -planner.DefaultMaxSpanDays),
		End:      today,
	})
}

func (c *Client) Chart(ctx context.Context, req ChartRequest) (*Chart, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if req.Interval == "" {
		req.Interval = model.IntervalDaily
	}

	params, err := c.queryParams(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetching chart",
		"symbol", req.Symbol,
		"interval", string(req.Interval),
		"period1", params["period1"],
		"period2", params["period2"],
		"range", params["range"],
	)

	body, err := c.getWithRetry(ctx, req.Symbol, params)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", req.Symbol, req.Interval, err)
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse chart response for %s: %w", req.Symbol, err)
	}
	if resp.Chart.Error != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Code: resp.Chart.Error.Code, Description: resp.Chart.Error.Description}
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", req.Symbol, ErrNoData)
	}

	chart, err := convertResult(req.Symbol, req.Interval, &resp.Chart.Result[0], c.logger)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched chart",
		"symbol", req.Symbol,
		"interval", string(req.Interval),
		"daily", len(chart.Daily),
		"minutely", len(chart.Minutely),
		"actions", len(chart.Actions),
	)
	return chart, nil
}

// queryParams 校验分钟线限制并生成查询参数.
// 闭区间 [Start, End] 转为 period1 = Start 零点, period2 = End 次日零点 (UTC).
func (c *Client) queryParams(req ChartRequest) (map[string]string, error) {
	params := map[string]string{
		"interval":             string(req.Interval),
		"events":               "div,splits",
		"includeAdjustedClose": "true",
	}

	if req.Start.IsZero() {
		if req.Interval == model.IntervalMinute {
			return nil, fmt.Errorf("minute request for %s requires a start date", req.Symbol)
		}
		params["range"] = "max"
		return params, nil
	}

	start := utcDate(req.Start)
	end := utcDate(req.End)
	if req.End.IsZero() {
		end = utcDate(c.now())
	}
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range %s..%s", start.Format(planner.DateLayout), end.Format(planner.DateLayout))
	}

	if req.Interval == model.IntervalMinute {
		if days := int(end.Sub(start).Hours()/24) + 1; days > MaxMinuteSpanDays {
			return nil, fmt.Errorf("%w: %d days", ErrSpanTooLong, days)
		}
		today := utcDate(c.now())
		if today.Sub(start) > time.Duration(c.horizonDays)*24*time.Hour {
			return nil, fmt.Errorf("%w: %s is more than %d days ago",
				ErrOutsideHorizon, start.Format(planner.DateLayout), c.horizonDays)
		}
	}

	params["period1"] = strconv.FormatInt(start.Unix(), 10)
	params["period2"] = strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10)
	return params, nil
}

// getWithRetry 429 与 5xx 按指数退避重试, 其余错误直接返回
func (c *Client) getWithRetry(ctx context.Context, symbol string, params map[string]string) ([]byte, error) {
	var body []byte

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxInterval = maxRetryInterval
	b.MaxElapsedTime = 0 // 由 ctx 与重试次数控制

	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("symbol", symbol).
			SetQueryParams(params).
			Get(chartEndpoint)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("request failed: %w", err)
		}

		status := resp.StatusCode()
		switch {
		case status == http.StatusOK:
			body = resp.Body()
			return nil
		case status == http.StatusTooManyRequests || status >= 500:
			return apiError(status, resp.Body())
		default:
			return backoff.Permanent(apiError(status, resp.Body()))
		}
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("chart request failed, retrying", "symbol", symbol, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return body, nil
}

func apiError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Chart.Error != nil {
		apiErr.Code = resp.Chart.Error.Code
		apiErr.Description = resp.Chart.Error.Description
	}
	return apiErr
}

// IsRetryable 用于调用方判断错误是否值得稍后重试
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
