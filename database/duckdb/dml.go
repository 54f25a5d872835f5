package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jing2uo/yf2db/database/sqlkit"
	"github.com/jing2uo/yf2db/model"
	"github.com/jmoiron/sqlx"
)

// writer 绑定在连接或事务上
type writer struct {
	ex sqlx.ExecerContext
}

func upsert[T any](ctx context.Context, ex sqlx.ExecerContext, meta *model.TableMeta, items []T, mode model.ConflictMode) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	rows, err := sqlkit.Rows(meta, items, mode)
	if err != nil {
		return 0, err
	}

	verb := "INSERT OR IGNORE"
	if mode == model.ConflictReplace {
		verb = "INSERT OR REPLACE"
	}
	cols := strings.Join(meta.ColumnNames(), ", ")

	var affected int64
	for _, batch := range sqlkit.Batches(rows, sqlkit.DefaultBatchSize) {
		query := fmt.Sprintf("%s INTO %s (%s) VALUES %s",
			verb, meta.TableName, cols, sqlkit.Placeholders(len(meta.Columns), len(batch)))

		res, err := ex.ExecContext(ctx, query, sqlkit.Flatten(batch)...)
		if err != nil {
			return affected, fmt.Errorf("duckdb upsert into %s failed: %w", meta.TableName, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += n
		}
	}

	return affected, nil
}

func (w writer) UpsertSecurities(ctx context.Context, rows []model.Security, mode model.ConflictMode) (int64, error) {
	return upsert(ctx, w.ex, model.TableSecurity, rows, mode)
}

func (w writer) UpsertExchanges(ctx context.Context, rows []model.Exchange, mode model.ConflictMode) (int64, error) {
	return upsert(ctx, w.ex, model.TableExchange, rows, mode)
}

func (w writer) UpsertDaily(ctx context.Context, rows []model.DailyBar, mode model.ConflictMode) (int64, error) {
	return upsert(ctx, w.ex, model.TablePriceDaily, rows, mode)
}

func (w writer) UpsertMinutely(ctx context.Context, rows []model.MinuteBar, mode model.ConflictMode) (int64, error) {
	return upsert(ctx, w.ex, model.TablePriceMinutely, rows, mode)
}

func (w writer) UpsertActions(ctx context.Context, rows []model.Action, mode model.ConflictMode) (int64, error) {
	return upsert(ctx, w.ex, model.TableActions, rows, mode)
}

func (d *DuckDBDriver) Query(ctx context.Context, table string, conditions map[string]interface{}, dest interface{}) error {
	query := fmt.Sprintf("SELECT * FROM %s", table)
	args := []interface{}{}
	if len(conditions) > 0 {
		whereParts := []string{}
		for k, v := range conditions {
			whereParts = append(whereParts, fmt.Sprintf("%s = ?", k))
			args = append(args, v)
		}
		query += " WHERE " + strings.Join(whereParts, " AND ")
	}

	return d.db.SelectContext(ctx, dest, query, args...)
}

// GetLatestDate ticker 为空时取全表最大日期, 无数据返回零值
func (d *DuckDBDriver) GetLatestDate(ctx context.Context, table *model.TableMeta, ticker string) (time.Time, error) {
	if table.DateColumn == "" {
		return time.Time{}, fmt.Errorf("table %s has no date column", table.TableName)
	}

	query := fmt.Sprintf("SELECT CAST(max(%s) AS DATE) AS latest FROM %s", table.DateColumn, table.TableName)
	var args []interface{}
	if ticker != "" {
		query += " WHERE security_ticker = ?"
		args = append(args, ticker)
	}

	var latest sql.NullTime
	if err := d.db.GetContext(ctx, &latest, query, args...); err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest date from %s: %w", table.TableName, err)
	}

	if !latest.Valid {
		return time.Time{}, nil
	}

	return latest.Time, nil
}

func (d *DuckDBDriver) GetPresentTickers(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT ticker FROM %s ORDER BY ticker", model.TableSecurity.TableName)

	var tickers []string
	if err := d.db.SelectContext(ctx, &tickers, query); err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}

	return tickers, nil
}

func (d *DuckDBDriver) CountRows(ctx context.Context, table *model.TableMeta) (int64, error) {
	var n int64
	if err := d.db.GetContext(ctx, &n, fmt.Sprintf("SELECT count(*) FROM %s", table.TableName)); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table.TableName, err)
	}
	return n, nil
}

// QuerySecurity 不存在时返回 nil, nil
func (d *DuckDBDriver) QuerySecurity(ctx context.Context, ticker string) (*model.Security, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE ticker = ?", model.TableSecurity.TableName)

	var sec model.Security
	err := d.db.GetContext(ctx, &sec, query, ticker)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query security %s: %w", ticker, err)
	}
	return &sec, nil
}

func queryByTicker[T any](ctx context.Context, db *sqlx.DB, meta *model.TableMeta, ticker string, startDate, endDate *time.Time) ([]T, error) {
	where, args := sqlkit.TickerFilter(meta, ticker, startDate, endDate)

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s ORDER BY %s ASC`,
		strings.Join(meta.ColumnNames(), ", "),
		meta.TableName,
		where,
		meta.DateColumn,
	)

	var results []T
	if err := db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query %s for %s: %w", meta.TableName, ticker, err)
	}

	return results, nil
}

func (d *DuckDBDriver) QueryDaily(ctx context.Context, ticker string, startDate, endDate *time.Time) ([]model.DailyBar, error) {
	return queryByTicker[model.DailyBar](ctx, d.db, model.TablePriceDaily, ticker, startDate, endDate)
}

func (d *DuckDBDriver) QueryMinutely(ctx context.Context, ticker string, startDate, endDate *time.Time) ([]model.MinuteBar, error) {
	return queryByTicker[model.MinuteBar](ctx, d.db, model.TablePriceMinutely, ticker, startDate, endDate)
}

func (d *DuckDBDriver) QueryActions(ctx context.Context, ticker string, startDate, endDate *time.Time) ([]model.Action, error) {
	return queryByTicker[model.Action](ctx, d.db, model.TableActions, ticker, startDate, endDate)
}

func (d *DuckDBDriver) QueryCoverage(ctx context.Context) ([]model.Coverage, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY security_ticker", model.ViewCoverage)

	var results []model.Coverage
	if err := d.db.SelectContext(ctx, &results, query); err != nil {
		return nil, fmt.Errorf("failed to query coverage: %w", err)
	}
	return results, nil
}
