package model

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

type DataType int

const (
	TypeString DataType = iota
	TypeFloat64
	TypeInt64
	TypeDate     // YYYY-MM-DD
	TypeDateTime // YYYY-MM-DD HH:MM:SS
)

type Column struct {
	Name  string
	Type  DataType
	index int
}

type TableMeta struct {
	TableName  string
	Columns    []Column
	PrimaryKey []string
	// DateColumn 用于增量更新的日期列, 可为空
	DateColumn string

	rowType reflect.Type
}

var (
	tableRegistry   []*TableMeta
	tableRegistryMu sync.Mutex
)

func registerTable(t *TableMeta) {
	tableRegistryMu.Lock()
	defer tableRegistryMu.Unlock()
	tableRegistry = append(tableRegistry, t)
}

// AllTables 返回当前所有已注册的表结构
func AllTables() []*TableMeta {
	tableRegistryMu.Lock()
	defer tableRegistryMu.Unlock()

	result := make([]*TableMeta, len(tableRegistry))
	copy(result, tableRegistry)
	return result
}

// LookupTable 按表名查找
func LookupTable(name string) (*TableMeta, bool) {
	for _, t := range AllTables() {
		if t.TableName == name {
			return t, true
		}
	}
	return nil, false
}

// SchemaFromStruct 通过反射生成 TableMeta 并自动注册
func SchemaFromStruct(tableName string, model interface{}, primaryKey []string, dateColumn string) *TableMeta {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	var cols []Column

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// 1. 获取列名
		colName := field.Tag.Get("col")
		if colName == "-" {
			continue
		}
		if colName == "" {
			colName = strings.ToLower(field.Name)
		}

		// 2. 推断类型
		var dType DataType
		customType := field.Tag.Get("type")
		switch {
		case customType == "date":
			dType = TypeDate
		case customType == "datetime":
			dType = TypeDateTime
		default:
			switch field.Type.Kind() {
			case reflect.String:
				dType = TypeString
			case reflect.Float64, reflect.Float32:
				dType = TypeFloat64
			case reflect.Int, reflect.Int64, reflect.Int32, reflect.Uint32:
				dType = TypeInt64
			case reflect.Struct:
				if field.Type == reflect.TypeOf(time.Time{}) {
					dType = TypeDateTime
				}
			default:
				dType = TypeString
			}
		}

		cols = append(cols, Column{Name: colName, Type: dType, index: i})
	}

	meta := &TableMeta{
		TableName:  tableName,
		Columns:    cols,
		PrimaryKey: primaryKey,
		DateColumn: dateColumn,
		rowType:    t,
	}

	registerTable(meta)

	return meta
}

// ColumnNames 按定义顺序返回列名
func (m *TableMeta) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// Values 按列顺序取出一行的字段值, row 必须是注册时的结构体类型
func (m *TableMeta) Values(row interface{}) ([]interface{}, error) {
	v := reflect.ValueOf(row)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Type() != m.rowType {
		return nil, fmt.Errorf("table %s expects %s, got %s", m.TableName, m.rowType, v.Type())
	}

	out := make([]interface{}, len(m.Columns))
	for i, c := range m.Columns {
		out[i] = v.Field(c.index).Interface()
	}
	return out, nil
}

// Key 返回一行的主键值, 用于批内去重
func (m *TableMeta) Key(values []interface{}) string {
	var sb strings.Builder
	for _, k := range m.PrimaryKey {
		for i, c := range m.Columns {
			if c.Name != k {
				continue
			}
			if t, ok := values[i].(time.Time); ok {
				sb.WriteString(t.UTC().Format(time.RFC3339))
			} else {
				fmt.Fprint(&sb, values[i])
			}
			sb.WriteByte(0)
		}
	}
	return sb.String()
}

// --- 表结构元数据 (TableMeta) ---

var TableSecurity = SchemaFromStruct(
	"security",
	Security{},
	[]string{"ticker"},
	"",
)

var TableExchange = SchemaFromStruct(
	"exchange",
	Exchange{},
	[]string{"exchange_name"},
	"",
)

var TablePriceDaily = SchemaFromStruct(
	"price_daily",
	DailyBar{},
	[]string{"security_ticker", "date"},
	"date",
)

var TablePriceMinutely = SchemaFromStruct(
	"price_minutely",
	MinuteBar{},
	[]string{"security_ticker", "datetime"},
	"datetime",
)

var TableActions = SchemaFromStruct(
	"actions",
	Action{},
	[]string{"security_ticker", "date"},
	"date",
)
