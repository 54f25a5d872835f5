package sqlkit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jing2uo/yf2db/model"
	"github.com/jmoiron/sqlx"
)

// DefaultBatchSize 单条 INSERT 语句最多携带的行数
const DefaultBatchSize = 500

// Writer 写入操作, 既可直接在连接上执行, 也可在事务内执行
type Writer interface {
	UpsertSecurities(ctx context.Context, rows []model.Security, mode model.ConflictMode) (int64, error)
	UpsertExchanges(ctx context.Context, rows []model.Exchange, mode model.ConflictMode) (int64, error)
	UpsertDaily(ctx context.Context, rows []model.DailyBar, mode model.ConflictMode) (int64, error)
	UpsertMinutely(ctx context.Context, rows []model.MinuteBar, mode model.ConflictMode) (int64, error)
	UpsertActions(ctx context.Context, rows []model.Action, mode model.ConflictMode) (int64, error)
}

// InTx 开启事务执行 fn. fn 返回错误或 panic 时回滚, 否则提交.
func InTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rows 将结构体切片转换为按列排列的值, 并按主键去重.
// ignore 模式保留第一条, replace 模式保留最后一条.
func Rows[T any](meta *model.TableMeta, items []T, mode model.ConflictMode) ([][]interface{}, error) {
	out := make([][]interface{}, 0, len(items))
	seen := make(map[string]int, len(items))

	for i := range items {
		vals, err := meta.Values(items[i])
		if err != nil {
			return nil, err
		}

		key := meta.Key(vals)
		if idx, dup := seen[key]; dup {
			if mode == model.ConflictReplace {
				out[idx] = vals
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, vals)
	}

	return out, nil
}

// Batches 按 size 切分
func Batches(rows [][]interface{}, size int) [][][]interface{} {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][][]interface{}
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}

// Placeholders 生成 (?, ?, ?), (?, ?, ?) 形式的占位符
func Placeholders(cols, rows int) string {
	one := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"
	parts := make([]string, rows)
	for i := range parts {
		parts[i] = one
	}
	return strings.Join(parts, ", ")
}

// Flatten 将多行参数展开为一维
func Flatten(rows [][]interface{}) []interface{} {
	n := 0
	for _, r := range rows {
		n += len(r)
	}
	out := make([]interface{}, 0, n)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

// TickerFilter 构建 security_ticker = ? 以及可选日期范围的条件.
// 日期为闭区间; 对时间戳列, end 按整天包含.
func TickerFilter(meta *model.TableMeta, ticker string, start, end *time.Time) (string, []interface{}) {
	conditions := []string{"security_ticker = ?"}
	args := []interface{}{ticker}
	dateCol := meta.DateColumn

	if start != nil {
		conditions = append(conditions, fmt.Sprintf("%s >= ?", dateCol))
		args = append(args, *start)
	}
	if end != nil {
		if isDateTime(meta, dateCol) {
			conditions = append(conditions, fmt.Sprintf("%s < ?", dateCol))
			args = append(args, end.AddDate(0, 0, 1))
		} else {
			conditions = append(conditions, fmt.Sprintf("%s <= ?", dateCol))
			args = append(args, *end)
		}
	}

	return strings.Join(conditions, " AND "), args
}

func isDateTime(meta *model.TableMeta, col string) bool {
	for _, c := range meta.Columns {
		if c.Name == col {
			return c.Type == model.TypeDateTime
		}
	}
	return false
}
