package database

import (
	"context"
	"time"

	"github.com/jing2uo/yf2db/database/sqlkit"
	"github.com/jing2uo/yf2db/model"
)

// Writer 写入操作, 既可直接在连接上执行, 也可在事务内执行
type Writer = sqlkit.Writer

type DataRepository interface {
	Connect() error
	Close() error

	InitSchema() error
	DropSchema() error

	Writer
	// WithTx 在事务中执行 fn, fn 返回 nil 时提交, 否则回滚
	WithTx(ctx context.Context, fn func(w Writer) error) error

	GetLatestDate(ctx context.Context, table *model.TableMeta, ticker string) (time.Time, error)
	GetPresentTickers(ctx context.Context) ([]string, error)
	CountRows(ctx context.Context, table *model.TableMeta) (int64, error)
	Query(ctx context.Context, table string, conditions map[string]interface{}, dest interface{}) error

	QuerySecurity(ctx context.Context, ticker string) (*model.Security, error)
	QueryDaily(ctx context.Context, ticker string, startDate, endDate *time.Time) ([]model.DailyBar, error)
	QueryMinutely(ctx context.Context, ticker string, startDate, endDate *time.Time) ([]model.MinuteBar, error)
	QueryActions(ctx context.Context, ticker string, startDate, endDate *time.Time) ([]model.Action, error)
	QueryCoverage(ctx context.Context) ([]model.Coverage, error)
}
