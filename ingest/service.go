package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jing2uo/yf2db/database"
	"github.com/jing2uo/yf2db/metrics"
	"github.com/jing2uo/yf2db/model"
	"github.com/jing2uo/yf2db/planner"
	"github.com/jing2uo/yf2db/yahoo"
)

// ErrContinuityGap 距上次分钟线更新超过可回溯天数, 中间的数据已无法补齐
var ErrContinuityGap = errors.New("minute history gap exceeds provider horizon")

// Fetcher 行情数据来源, *yahoo.Client 实现了该接口
type Fetcher interface {
	Daily(ctx context.Context, symbol string, start, end time.Time) (*yahoo.Chart, error)
	Minutely(ctx context.Context, symbol string, w planner.Window) (*yahoo.Chart, error)
	Profile(ctx context.Context, symbol string) (*yahoo.Chart, error)
}

type Config struct {
	// LookbackDays 分钟线可回溯天数
	LookbackDays int
	// MaxSpanDays 单个分钟线窗口的跨度
	MaxSpanDays int
	// Concurrency 添加代码时并发抓取数
	Concurrency int
	// Location 用于确定"今天"
	Location *time.Location
}

func DefaultConfig() Config {
	return Config{
		LookbackDays: planner.Horizon,
		MaxSpanDays:  planner.DefaultMaxSpanDays,
		Concurrency:  4,
		Location:     time.UTC,
	}
}

func (c Config) Validate() error {
	if c.LookbackDays < 1 || c.LookbackDays > planner.Horizon {
		return fmt.Errorf("lookback days must be within 1..%d, got %d", planner.Horizon, c.LookbackDays)
	}
	if c.MaxSpanDays < 1 || c.MaxSpanDays >= yahoo.MaxMinuteSpanDays {
		return fmt.Errorf("max span days must be within 1..%d, got %d", yahoo.MaxMinuteSpanDays-1, c.MaxSpanDays)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	return nil
}

type Service struct {
	repo    database.DataRepository
	fetcher Fetcher
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo database.DataRepository, fetcher Fetcher, cfg Config, opts ...Option) (*Service, error) {
	if repo == nil || fetcher == nil {
		return nil, fmt.Errorf("repository and fetcher are required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ingest config: %w", err)
	}

	s := &Service{
		repo:    repo,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Config() Config {
	return s.cfg
}

// Today 配置时区下的当天日期, 以 UTC 零点表示, 与库中日期列一致
func (s *Service) Today() time.Time {
	return dateOf(s.now().In(s.cfg.Location))
}

// PlanMinutely 按代码类型生成 [anchor, today] 的分钟线窗口
func (s *Service) PlanMinutely(anchor time.Time, quoteType model.QuoteType) ([]planner.Window, error) {
	return planner.Plan(anchor, s.Today(),
		planner.WithMaxSpanDays(s.cfg.MaxSpanDays),
		planner.WithWeekendAdjust(!quoteType.TradesOnWeekends()),
	)
}

func (s *Service) horizonStart() time.Time {
	return s.Today().AddDate(0, 0, -s.cfg.LookbackDays)
}

func (s *Service) fetchDaily(ctx context.Context, symbol string, start, end time.Time) (*yahoo.Chart, error) {
	started := time.Now()
	chart, err := s.fetcher.Daily(ctx, symbol, start, end)
	s.metrics.ObserveFetch(string(model.IntervalDaily), started, err)
	return chart, err
}

func (s *Service) fetchMinutely(ctx context.Context, symbol string, w planner.Window) (*yahoo.Chart, error) {
	started := time.Now()
	chart, err := s.fetcher.Minutely(ctx, symbol, w)
	s.metrics.ObserveFetch(string(model.IntervalMinute), started, err)
	return chart, err
}

func (s *Service) quoteType(ctx context.Context, symbol string) (model.QuoteType, error) {
	sec, err := s.repo.QuerySecurity(ctx, symbol)
	if err != nil {
		return "", err
	}
	if sec == nil {
		return model.QuoteEquity, nil
	}
	return model.QuoteType(sec.Type), nil
}
