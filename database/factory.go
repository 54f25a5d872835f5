package database

import (
	"fmt"
	"net/url"

	"github.com/jing2uo/yf2db/database/clickhouse"
	"github.com/jing2uo/yf2db/database/duckdb"
	"github.com/jing2uo/yf2db/model"
)

func NewDatabase(cfg model.DBConfig) (DataRepository, error) {
	switch cfg.Type {
	case model.DBTypeDuckDB:
		return duckdb.NewDriver(cfg), nil
	case model.DBTypeClickHouse:
		u, err := url.Parse(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("invalid clickhouse dsn: %w", err)
		}
		return clickhouse.NewClickHouseDriver(u)
	default:
		return nil, fmt.Errorf("unsupported db type: %s", cfg.Type)
	}
}

// NewDB 由 URI 创建数据库驱动 (未连接)
func NewDB(dbURI string) (DataRepository, error) {
	cfg, err := model.ParseDBConfig(dbURI)
	if err != nil {
		return nil, err
	}
	return NewDatabase(cfg)
}

// Open 创建驱动, 连接并初始化表结构
func Open(dbURI string) (DataRepository, error) {
	db, err := NewDB(dbURI)
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	if err := db.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}
