package clickhouse

import (
	"fmt"
	"strings"

	"github.com/jing2uo/yf2db/model"
)

// mapType 针对 ClickHouse 进行类型优化
func (d *ClickHouseDriver) mapType(colName string, dt model.DataType) string {
	lower := strings.ToLower(colName)
	isLowCard := strings.Contains(lower, "ticker") ||
		lower == "exchange" || lower == "currency" || lower == "type"

	switch dt {
	case model.TypeString:
		if isLowCard {
			return "LowCardinality(String)"
		}
		return "String"
	case model.TypeFloat64:
		return "Float64"
	case model.TypeInt64:
		return "Int64"
	case model.TypeDate:
		return "Date32" // Date32 范围比 Date 更大 (1900-2299)
	case model.TypeDateTime:
		return "DateTime64(0, 'UTC')"
	default:
		return "String"
	}
}

// createTableInternal 主键作为 ReplacingMergeTree 的排序键, 合并时按主键去重
func (d *ClickHouseDriver) createTableInternal(meta *model.TableMeta) error {
	var colDefs []string
	for _, col := range meta.Columns {
		colDefs = append(colDefs, fmt.Sprintf("%s %s", col.Name, d.mapType(col.Name, col.Type)))
	}

	orderBy := "tuple()"
	if len(meta.PrimaryKey) > 0 {
		orderBy = fmt.Sprintf("(%s)", strings.Join(meta.PrimaryKey, ", "))
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s
		) ENGINE = ReplacingMergeTree()
		ORDER BY %s
	`, meta.TableName, strings.Join(colDefs, ", "), orderBy)

	_, err := d.db.Exec(query)
	return err
}

func (d *ClickHouseDriver) registerViews() {
	d.viewImpls[model.ViewDailyAdjusted] = func() error {
		query := fmt.Sprintf(`
			CREATE OR REPLACE VIEW %s AS
			SELECT
				p.security_ticker AS security_ticker,
				p.date AS date,
				p.volume AS volume,
				if(p.close != 0, p.adjusted_close / p.close, 1) AS factor,
				round(p.open * if(p.close != 0, p.adjusted_close / p.close, 1), 4) AS open,
				round(p.high * if(p.close != 0, p.adjusted_close / p.close, 1), 4) AS high,
				round(p.low  * if(p.close != 0, p.adjusted_close / p.close, 1), 4) AS low,
				p.adjusted_close AS close
			FROM %s AS p FINAL
		`, model.ViewDailyAdjusted, model.TablePriceDaily.TableName)

		_, err := d.db.Exec(query)
		return err
	}

	d.viewImpls[model.ViewCoverage] = func() error {
		query := fmt.Sprintf(`
			CREATE OR REPLACE VIEW %s AS
			SELECT
				s.ticker AS security_ticker,
				d.first_daily,
				d.last_daily,
				m.last_minutely,
				ifNull(d.daily_rows, 0) AS daily_rows,
				ifNull(m.minute_rows, 0) AS minute_rows
			FROM %s AS s FINAL
			LEFT JOIN (
				SELECT security_ticker, min(date) AS first_daily, max(date) AS last_daily, toInt64(count()) AS daily_rows
				FROM %s FINAL GROUP BY security_ticker
			) AS d ON d.security_ticker = s.ticker
			LEFT JOIN (
				SELECT security_ticker, max(datetime) AS last_minutely, toInt64(count()) AS minute_rows
				FROM %s FINAL GROUP BY security_ticker
			) AS m ON m.security_ticker = s.ticker
			SETTINGS join_use_nulls = 1
		`,
			model.ViewCoverage,
			model.TableSecurity.TableName,
			model.TablePriceDaily.TableName,
			model.TablePriceMinutely.TableName)

		_, err := d.db.Exec(query)
		return err
	}
}
