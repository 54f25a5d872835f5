package utils

import (
	"fmt"
	"reflect"
	"time"
)

type columnInfo struct {
	Index      int    // 字段索引
	HeaderName string // 表头 (来自 col 标签)
	IsTime     bool   // time.Time
	IsPtrTime  bool   // *time.Time
	IsDateType bool   // 标记了 type:"date"
}

// analyzeStructTags 解析 col 和 type 标签, col:"-" 的字段跳过
func analyzeStructTags[T any]() ([]columnInfo, error) {
	var t T
	typ := reflect.TypeOf(t)
	if typ == nil {
		return nil, fmt.Errorf("generic type T must be a struct")
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("generic type T must be a struct")
	}

	var cols []columnInfo
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		colTag := field.Tag.Get("col")
		if colTag == "-" {
			continue
		}
		if colTag == "" {
			colTag = field.Name
		}

		cols = append(cols, columnInfo{
			Index:      i,
			HeaderName: colTag,
			IsTime:     field.Type == reflect.TypeOf(time.Time{}),
			IsPtrTime:  field.Type == reflect.TypeOf((*time.Time)(nil)),
			IsDateType: field.Tag.Get("type") == "date",
		})
	}
	return cols, nil
}

func headers(cols []columnInfo) []string {
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = col.HeaderName
	}
	return out
}

func structValue(item interface{}) reflect.Value {
	val := reflect.ValueOf(item)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	return val
}

// timeOf 返回字段中的时间, 零值或 nil 指针返回 false
func (col columnInfo) timeOf(fieldVal reflect.Value) (time.Time, bool) {
	var t time.Time
	switch {
	case col.IsTime:
		t = fieldVal.Interface().(time.Time)
	case col.IsPtrTime:
		if fieldVal.IsNil() {
			return t, false
		}
		t = *fieldVal.Interface().(*time.Time)
	default:
		return t, false
	}
	return t, !t.IsZero()
}

// formatTime type:"date" 用短格式, 其余用 RFC3339
func (col columnInfo) formatTime(t time.Time) string {
	if col.IsDateType {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

// formatField 转为文本, 空时间留空
func (col columnInfo) formatField(fieldVal reflect.Value) string {
	if col.IsTime || col.IsPtrTime {
		t, ok := col.timeOf(fieldVal)
		if !ok {
			return ""
		}
		return col.formatTime(t)
	}
	return fmt.Sprint(fieldVal.Interface())
}
