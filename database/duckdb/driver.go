package duckdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/jing2uo/yf2db/database/sqlkit"
	"github.com/jing2uo/yf2db/model"
	"github.com/jmoiron/sqlx"
)

func init() {
	sqlx.BindDriver("duckdb", sqlx.QUESTION)
}

type DuckDBDriver struct {
	writer

	dsn       string
	db        *sqlx.DB
	viewImpls map[model.ViewID]func() error
}

func NewDriver(cfg model.DBConfig) *DuckDBDriver {
	return &DuckDBDriver{dsn: cfg.DSN, viewImpls: make(map[model.ViewID]func() error)}
}

func (d *DuckDBDriver) Connect() error {
	// 文件库需要确保目录存在, 内存库 dsn 为空
	if d.dsn != "" && d.dsn != ":memory:" {
		if dir := filepath.Dir(d.dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	db, err := sqlx.Open("duckdb", d.dsn)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("duckdb ping failed: %w", err)
	}

	d.db = db
	d.writer = writer{ex: db}
	return nil
}

func (d *DuckDBDriver) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func (d *DuckDBDriver) InitSchema() error {
	// 1. 建表
	for _, t := range model.AllTables() {
		if err := d.createTableInternal(t); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.TableName, err)
		}
	}

	// 2. 创建视图
	d.registerViews()
	for _, viewID := range model.AllViews() {
		implFunc, exists := d.viewImpls[viewID]
		if !exists {
			return fmt.Errorf("[DuckDB] Missing implementation for required view: %s", viewID)
		}
		if err := implFunc(); err != nil {
			return fmt.Errorf("failed to create view %s: %w", viewID, err)
		}
	}

	return nil
}

// DropSchema 先删视图再删表
func (d *DuckDBDriver) DropSchema() error {
	for _, viewID := range model.AllViews() {
		if _, err := d.db.Exec(fmt.Sprintf("DROP VIEW IF EXISTS %s", viewID)); err != nil {
			return fmt.Errorf("failed to drop view %s: %w", viewID, err)
		}
	}
	for _, t := range model.AllTables() {
		if _, err := d.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", t.TableName)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", t.TableName, err)
		}
	}
	return nil
}

// WithTx 在同一事务中执行多次写入
func (d *DuckDBDriver) WithTx(ctx context.Context, fn func(w sqlkit.Writer) error) error {
	return sqlkit.InTx(ctx, d.db, func(tx *sqlx.Tx) error {
		return fn(writer{ex: tx})
	})
}
