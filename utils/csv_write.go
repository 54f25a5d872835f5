package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// CSVWriter 按 col 标签输出表头的 CSV 写入器
type CSVWriter[T any] struct {
	closer        io.Closer
	writer        *csv.Writer
	headerWritten bool
	columns       []columnInfo
}

// NewCSVWriter 创建文件并写入
func NewCSVWriter[T any](filename string) (*CSVWriter[T], error) {
	// 1. 创建文件
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	// 2. 解析结构体 Tag
	cw, err := NewCSVWriterTo[T](f)
	if err != nil {
		f.Close()
		return nil, err
	}
	cw.closer = f
	return cw, nil
}

// NewCSVWriterTo 写入任意 io.Writer, Close 时不关闭 w
func NewCSVWriterTo[T any](w io.Writer) (*CSVWriter[T], error) {
	cols, err := analyzeStructTags[T]()
	if err != nil {
		return nil, err
	}

	return &CSVWriter[T]{
		writer:  csv.NewWriter(w),
		columns: cols,
	}, nil
}

// Write 写入数据, 首次调用时先写表头
func (cw *CSVWriter[T]) Write(data []T) error {
	if len(data) == 0 {
		return nil
	}

	if err := cw.writeHeader(); err != nil {
		return err
	}

	record := make([]string, len(cw.columns))
	for _, item := range data {
		val := structValue(item)
		for i, col := range cw.columns {
			record[i] = col.formatField(val.Field(col.Index))
		}

		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return nil
}

func (cw *CSVWriter[T]) writeHeader() error {
	if cw.headerWritten {
		return nil
	}
	if err := cw.writer.Write(headers(cw.columns)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	cw.headerWritten = true
	return nil
}

// Close 刷新缓冲. 没有写过数据时仍输出表头.
func (cw *CSVWriter[T]) Close() error {
	err := cw.writeHeader()
	cw.writer.Flush()
	if err == nil {
		err = cw.writer.Error()
	}

	if cw.closer != nil {
		if cerr := cw.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}
