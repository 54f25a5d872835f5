package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jing2uo/yf2db/model"
	"github.com/jing2uo/yf2db/utils"
)

type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatParquet:
		return FormatParquet, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("invalid export format: %s (expected 'parquet', 'csv' or 'xlsx')", s)
	}
}

// TableSource 按表名读取整张表, 返回模型切片
type TableSource interface {
	Table(ctx context.Context, name string) (interface{}, error)
}

type Result struct {
	Table string
	Path  string
	Rows  int64
}

type rowFileWriter[T any] interface {
	utils.RowWriter[T]
	Close() error
}

// Tables 每张表导出为 dir 下的一个文件, tables 为空时导出全部表
func Tables(ctx context.Context, src TableSource, dir string, format Format, tables []string) ([]Result, error) {
	if err := utils.CheckOutputDir(dir); err != nil {
		return nil, err
	}

	if len(tables) == 0 {
		for _, t := range model.AllTables() {
			tables = append(tables, t.TableName)
		}
	}

	results := make([]Result, 0, len(tables))
	for _, name := range tables {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		data, err := src.Table(ctx, name)
		if err != nil {
			return results, err
		}

		path := filepath.Join(dir, fmt.Sprintf("%s.%s", name, format))
		var n int64
		switch rows := data.(type) {
		case []model.Security:
			n, err = writeFile(path, name, format, rows)
		case []model.Exchange:
			n, err = writeFile(path, name, format, rows)
		case []model.DailyBar:
			n, err = writeFile(path, name, format, rows)
		case []model.MinuteBar:
			n, err = writeFile(path, name, format, rows)
		case []model.Action:
			n, err = writeFile(path, name, format, rows)
		default:
			err = fmt.Errorf("table %s: unsupported row type %T", name, data)
		}
		if err != nil {
			return results, fmt.Errorf("failed to export %s: %w", name, err)
		}

		results = append(results, Result{Table: name, Path: path, Rows: n})
	}
	return results, nil
}

func newWriter[T any](path, sheet string, format Format) (rowFileWriter[T], error) {
	switch format {
	case FormatCSV:
		return utils.NewCSVWriter[T](path)
	case FormatXLSX:
		return utils.NewXLSXWriter[T](path, sheet)
	case FormatParquet:
		return utils.NewParquetWriter[T](path)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func writeFile[T any](path, sheet string, format Format, rows []T) (int64, error) {
	w, err := newWriter[T](path, sheet, format)
	if err != nil {
		return 0, err
	}

	if err := w.Write(rows); err != nil {
		w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}
