package clickhouse

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jing2uo/yf2db/database/sqlkit"
	"github.com/jing2uo/yf2db/model"
	"github.com/jmoiron/sqlx"
)

type ClickHouseDriver struct {
	dsn      string
	db       *sqlx.DB
	database string
	user     string

	viewImpls map[model.ViewID]func() error
}

func NewClickHouseDriver(u *url.URL) (*ClickHouseDriver, error) {
	// 1. Host 必填
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("clickhouse host is required")
	}

	// 2. TCP 端口 (默认 9000)
	tcpPort := u.Port()
	if tcpPort == "" {
		tcpPort = "9000"
	}

	// 3. 处理 Database (默认 "default")
	database := strings.TrimPrefix(u.Path, "/")
	if database == "" {
		database = "default"
	}

	// 4. 处理 User (默认 "default")
	user := u.User.Username()
	if user == "" {
		user = "default"
	}

	// 5. 处理 Password, 显式设置的空密码也保留
	pass, passSet := u.User.Password()

	out := *u
	out.Path = "/" + database
	out.Host = fmt.Sprintf("%s:%s", host, tcpPort)
	if passSet {
		out.User = url.UserPassword(user, pass)
	} else {
		out.User = url.User(user)
	}

	return &ClickHouseDriver{
		dsn:       out.String(),
		database:  database,
		user:      user,
		viewImpls: make(map[model.ViewID]func() error),
	}, nil
}

func (d *ClickHouseDriver) DSN() string      { return d.dsn }
func (d *ClickHouseDriver) Database() string { return d.database }

func (d *ClickHouseDriver) Connect() error {
	db, err := sqlx.Open("clickhouse", d.dsn)
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("clickhouse ping failed (%s@%s): %w", d.user, d.database, err)
	}

	d.db = db
	return nil
}

func (d *ClickHouseDriver) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func (d *ClickHouseDriver) InitSchema() error {
	for _, t := range model.AllTables() {
		if err := d.createTableInternal(t); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.TableName, err)
		}
	}

	d.registerViews()
	for _, viewID := range model.AllViews() {
		implFunc, exists := d.viewImpls[viewID]
		if !exists {
			return fmt.Errorf("[ClickHouse] Missing implementation for view: %s", viewID)
		}
		if err := implFunc(); err != nil {
			return fmt.Errorf("failed to create view %s: %w", viewID, err)
		}
	}
	return nil
}

func (d *ClickHouseDriver) DropSchema() error {
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

// WithTx ClickHouse 没有跨表事务, 每次写入各自成批提交.
// fn 出错时已写入的批次不会撤销, 重复数据由 ReplacingMergeTree 合并.
func (d *ClickHouseDriver) WithTx(ctx context.Context, fn func(w sqlkit.Writer) error) error {
	return fn(d)
}
