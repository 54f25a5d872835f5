package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jing2uo/yf2db/config"
	"github.com/jing2uo/yf2db/database"
	"github.com/jing2uo/yf2db/ingest"
	"github.com/jing2uo/yf2db/metrics"
	"github.com/jing2uo/yf2db/model"
	"github.com/jing2uo/yf2db/yahoo"
)

// GlobalFlags 所有子命令共享的参数
type GlobalFlags struct {
	ConfigFile  string
	EnvFile     string
	DBPath      string
	MetricsFile string
}

// App 一次命令执行所需的配置与依赖
type App struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
	Location *time.Location

	metricsFile string
}

func NewApp(flags GlobalFlags) (*App, error) {
	cfg, err := config.Load(config.Options{ConfigFile: flags.ConfigFile, EnvFile: flags.EnvFile})
	if err != nil {
		return nil, err
	}
	if flags.DBPath != "" {
		cfg.DB.URI = flags.DBPath
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	metricsFile := flags.MetricsFile
	if metricsFile == "" {
		metricsFile = cfg.Metrics.Textfile
	}

	return &App{
		Cfg:         cfg,
		Logger:      slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		Metrics:     metrics.NewRecorder(),
		Location:    loc,
		metricsFile: metricsFile,
	}, nil
}

// Now 当前时间, 位于配置的时区
func (a *App) Now() time.Time {
	return time.Now().In(a.Location)
}

// OpenDB 连接数据库并建表, DuckDB 文件所在目录不存在时自动创建
func (a *App) OpenDB() (database.DataRepository, error) {
	dbCfg, err := model.ParseDBConfig(a.Cfg.DB.URI)
	if err != nil {
		return nil, err
	}
	if dbCfg.Type == model.DBTypeDuckDB && dbCfg.DSN != "" {
		if err := os.MkdirAll(filepath.Dir(dbCfg.DSN), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return database.Open(a.Cfg.DB.URI)
}

func (a *App) YahooClient() *yahoo.Client {
	y := a.Cfg.Yahoo
	return yahoo.NewClient(
		yahoo.WithBaseURL(y.BaseURL),
		yahoo.WithRateLimit(y.RequestsPerSecond, y.Burst),
		yahoo.WithTimeout(y.Timeout),
		yahoo.WithMaxRetries(y.MaxRetries),
		yahoo.WithRetryInterval(y.RetryInterval),
		yahoo.WithUserAgent(y.UserAgent),
		yahoo.WithHorizonDays(a.Cfg.Ingest.LookbackDays),
		yahoo.WithLogger(a.Logger),
		yahoo.WithClock(a.Now),
	)
}

// NewService 行情客户端与服务共用同一个时钟
func (a *App) NewService(repo database.DataRepository) (*ingest.Service, error) {
	cfg := ingest.Config{
		LookbackDays: a.Cfg.Ingest.LookbackDays,
		MaxSpanDays:  a.Cfg.Ingest.MaxSpanDays,
		Concurrency:  a.Cfg.Ingest.Concurrency,
		Location:     a.Location,
	}
	return ingest.NewService(repo, a.YahooClient(), cfg,
		ingest.WithLogger(a.Logger),
		ingest.WithMetrics(a.Metrics),
		ingest.WithClock(a.Now),
	)
}

// WithService 打开数据库并构造服务, fn 返回后关闭连接
func (a *App) WithService(ctx context.Context, fn func(svc *ingest.Service) error) error {
	repo, err := a.OpenDB()
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := a.NewService(repo)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(svc)
}

// Finish 记录成功时间并按需写出指标文件
func (a *App) Finish(runErr error) error {
	if runErr == nil {
		a.Metrics.MarkSuccess(time.Now())
	}
	if a.metricsFile == "" {
		return nil
	}
	if err := a.Metrics.WriteTextfile(a.metricsFile); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// tickersOrDefault 未指定代码时使用配置中的列表
func (a *App) tickersOrDefault(tickers []string) []string {
	if len(tickers) > 0 {
		return tickers
	}
	return a.Cfg.Tickers
}
