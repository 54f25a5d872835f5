package clickhouse

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

// insertBatch 使用 clickhouse-go 的批量写入 (Begin -> Prepare -> Exec... -> Commit).
// ReplacingMergeTree 在合并时保留最后写入的行, 因此 ignore 与 replace 的区别仅体现在批内去重.
func insertBatch[T any](ctx context.Context, db *sqlx.DB, meta *model.TableMeta, items []T, mode model.ConflictMode) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	rows, err := sqlkit.Rows(meta, items, mode)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("clickhouse begin batch failed: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s)",
		meta.TableName, strings.Join(meta.ColumnNames(), ", ")))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("clickhouse prepare batch for %s failed: %w", meta.TableName, err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("clickhouse append to %s failed: %w", meta.TableName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("clickhouse send batch to %s failed: %w", meta.TableName, err)
	}

	return int64(len(rows)), nil
}

func (d *ClickHouseDriver) UpsertSecurities(ctx context.Context, rows []model.Security, mode model.ConflictMode) (int64, error) {
	return insertBatch(ctx, d.db, model.TableSecurity, rows, mode)
}

func (d *ClickHouseDriver) UpsertExchanges(ctx context.Context, rows []model.Exchange, mode model.ConflictMode) (int64, error) {
	return insertBatch(ctx, d.db, model.TableExchange, rows, mode)
}

func (d *ClickHouseDriver) UpsertDaily(ctx context.Context, rows []model.DailyBar, mode model.ConflictMode) (int64, error) {
	return insertBatch(ctx, d.db, model.TablePriceDaily, rows, mode)
}

func (d *ClickHouseDriver) UpsertMinutely(ctx context.Context, rows []model.MinuteBar, mode model.ConflictMode) (int64, error) {
	return insertBatch(ctx, d.db, model.TablePriceMinutely, rows, mode)
}

func (d *ClickHouseDriver) UpsertActions(ctx context.Context, rows []model.Action, mode model.ConflictMode) (int64, error) {
	return insertBatch(ctx, d.db, model.TableActions, rows, mode)
}

func (d *ClickHouseDriver) Query(ctx context.Context, table string, conditions map[string]interface{}, dest interface{}) error {
	query := fmt.Sprintf("SELECT * FROM %s FINAL", table)
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

func (d *ClickHouseDriver) GetLatestDate(ctx context.Context, table *model.TableMeta, ticker string) (time.Time, error) {
	if table.DateColumn == "" {
		return time.Time{}, fmt.Errorf("table %s has no date column", table.TableName)
	}

	// 空表时 max() 返回 1970-01-01, 用 maxOrNull 区分
	query := fmt.Sprintf("SELECT toDate32(maxOrNull(%s)) AS latest FROM %s FINAL", table.DateColumn, table.TableName)
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

func (d *ClickHouseDriver) GetPresentTickers(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT ticker FROM %s FINAL ORDER BY ticker", model.TableSecurity.TableName)

	var tickers []string
	if err := d.db.SelectContext(ctx, &tickers, query); err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	return tickers, nil
}

func (d *ClickHouseDriver) CountRows(ctx context.Context, table *model.TableMeta) (int64, error) {
	var n int64
	if err := d.db.GetContext(ctx, &n, fmt.Sprintf("SELECT count() FROM %s FINAL", table.TableName)); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table.TableName, err)
	}
	return n, nil
}

func (d *ClickHouseDriver) QuerySecurity(ctx context.Context, ticker string) (*model.Security, error) {
	query := fmt.Sprintf("SELECT * FROM %s FINAL WHERE ticker = ?", model.TableSecurity.TableName)

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
		`SELECT %s FROM %s FINAL WHERE %s ORDER BY %s ASC`,
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

func (d *ClickHouseDriver) QueryDaily(ctx context.Context, ticker string, startDate, endDate *time.Time) ([]model.DailyBar, error) {
	return queryByTicker[model.DailyBar](ctx, d.db, model.TablePriceDaily, ticker, startDate, endDate)
}

func (d *ClickHouseDriver) QueryMinutely(ctx context.Context, ticker string, startDate, endDate *time.Time) ([]model.MinuteBar, error) {
	return queryByTicker[model.MinuteBar](ctx, d.db, model.TablePriceMinutely, ticker, startDate, endDate)
}

func (d *ClickHouseDriver) QueryActions(ctx context.Context, ticker string, startDate, endDate *time.Time) ([]model.Action, error) {
	return queryByTicker[model.Action](ctx, d.db, model.TableActions, ticker, startDate, endDate)
}

func (d *ClickHouseDriver) QueryCoverage(ctx context.Context) ([]model.Coverage, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY security_ticker", model.ViewCoverage)

	var results []model.Coverage
	if err := d.db.SelectContext(ctx, &results, query); err != nil {
		return nil, fmt.Errorf("failed to query coverage: %w", err)
	}
	return results, nil
}

// TruncateTable 清空单表
func (d *ClickHouseDriver) TruncateTable(ctx context.Context, meta *model.TableMeta) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	query := fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s", meta.TableName)
	if _, err := d.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("clickhouse truncate via tcp failed: %w", err)
	}
	return nil
}
