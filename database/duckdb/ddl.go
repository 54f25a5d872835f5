package duckdb

import (
	"fmt"
	"strings"

	"github.com/jing2uo/yf2db/model"
)

// mapType 将通用 DataType 转换为 DuckDB 的 SQL 类型
func (d *DuckDBDriver) mapType(dt model.DataType) string {
	switch dt {
	case model.TypeString:
		return "VARCHAR"
	case model.TypeFloat64:
		return "DOUBLE"
	case model.TypeInt64:
		return "BIGINT"
	case model.TypeDate:
		return "DATE"
	case model.TypeDateTime:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

func (d *DuckDBDriver) createTableInternal(meta *model.TableMeta) error {
	var colDefs []string
	for _, col := range meta.Columns {
		colDefs = append(colDefs, fmt.Sprintf("%s %s", col.Name, d.mapType(col.Type)))
	}

	// INSERT OR IGNORE / OR REPLACE 依赖主键约束
	if len(meta.PrimaryKey) > 0 {
		colDefs = append(colDefs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(meta.PrimaryKey, ", ")))
	}

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		meta.TableName, strings.Join(colDefs, ", "))

	_, err := d.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", meta.TableName, err)
	}
	return nil
}

func (d *DuckDBDriver) registerViews() {

	// 1. 复权日线 (按 adjusted_close / close 缩放)
	d.viewImpls[model.ViewDailyAdjusted] = func() error {
		query := fmt.Sprintf(`
			CREATE OR REPLACE VIEW %s AS
			SELECT
				security_ticker,
				date,
				volume,
				CASE WHEN close <> 0 THEN adjusted_close / close ELSE 1 END AS factor,
				ROUND(open  * (CASE WHEN close <> 0 THEN adjusted_close / close ELSE 1 END), 4) AS open,
				ROUND(high  * (CASE WHEN close <> 0 THEN adjusted_close / close ELSE 1 END), 4) AS high,
				ROUND(low   * (CASE WHEN close <> 0 THEN adjusted_close / close ELSE 1 END), 4) AS low,
				adjusted_close AS close
			FROM %s
		`, model.ViewDailyAdjusted, model.TablePriceDaily.TableName)

		_, err := d.db.Exec(query)
		return err
	}

	// 2. 每个代码的数据覆盖范围
	d.viewImpls[model.ViewCoverage] = func() error {
		query := fmt.Sprintf(`
			CREATE OR REPLACE VIEW %s AS
			SELECT
				s.ticker AS security_ticker,
				d.first_daily,
				d.last_daily,
				m.last_minutely,
				COALESCE(d.daily_rows, 0) AS daily_rows,
				COALESCE(m.minute_rows, 0) AS minute_rows
			FROM %s s
			LEFT JOIN (
				SELECT security_ticker, min(date) AS first_daily, max(date) AS last_daily, count(*) AS daily_rows
				FROM %s GROUP BY security_ticker
			) d ON d.security_ticker = s.ticker
			LEFT JOIN (
				SELECT security_ticker, max(datetime) AS last_minutely, count(*) AS minute_rows
				FROM %s GROUP BY security_ticker
			) m ON m.security_ticker = s.ticker
		`,
			model.ViewCoverage,
			model.TableSecurity.TableName,
			model.TablePriceDaily.TableName,
			model.TablePriceMinutely.TableName)

		_, err := d.db.Exec(query)
		return err
	}
}
