package utils

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// xlsxMaxRows 单个工作表的行数上限 (含表头)
const xlsxMaxRows = 1048576

// XLSXWriter 以流式方式写入单个工作表
type XLSXWriter[T any] struct {
	path    string
	file    *excelize.File
	stream  *excelize.StreamWriter
	columns []columnInfo
	row     int
}

func NewXLSXWriter[T any](filename, sheet string) (*XLSXWriter[T], error) {
	cols, err := analyzeStructTags[T]()
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to name sheet %s: %w", sheet, err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create stream writer: %w", err)
	}

	w := &XLSXWriter[T]{path: filename, file: f, stream: sw, columns: cols}

	header := make([]interface{}, len(cols))
	for i, h := range headers(cols) {
		header[i] = h
	}
	if err := w.setRow(header); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *XLSXWriter[T]) setRow(values []interface{}) error {
	if w.row >= xlsxMaxRows {
		return fmt.Errorf("sheet row limit %d exceeded", xlsxMaxRows)
	}
	cell, err := excelize.CoordinatesToCellName(1, w.row+1)
	if err != nil {
		return err
	}
	if err := w.stream.SetRow(cell, values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", w.row+1, err)
	}
	w.row++
	return nil
}

// Write 数值保持原类型, 时间转为文本
func (w *XLSXWriter[T]) Write(data []T) error {
	for _, item := range data {
		val := structValue(item)
		values := make([]interface{}, len(w.columns))
		for i, col := range w.columns {
			fieldVal := val.Field(col.Index)
			if col.IsTime || col.IsPtrTime {
				values[i] = col.formatField(fieldVal)
				continue
			}
			values[i] = fieldVal.Interface()
		}
		if err := w.setRow(values); err != nil {
			return err
		}
	}
	return nil
}

// Rows 已写入的数据行数, 不含表头
func (w *XLSXWriter[T]) Rows() int {
	return w.row - 1
}

func (w *XLSXWriter[T]) Close() error {
	defer w.file.Close()

	if err := w.stream.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save %s: %w", w.path, err)
	}
	return nil
}
