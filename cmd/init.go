package cmd

import (
	"fmt"

	"github.com/jing2uo/yf2db/model"
)

// Init 创建全部表与视图
func Init(app *App) error {
	db, err := app.OpenDB()
	if err != nil {
		return err
	}
	defer db.Close()

	for _, t := range model.AllTables() {
		fmt.Printf("📦 表 %s 已就绪\n", t.TableName)
	}
	for _, v := range model.AllViews() {
		fmt.Printf("📦 视图 %s 已就绪\n", v)
	}
	fmt.Printf("🚀 数据库初始化完成: %s\n", app.Cfg.DB.URI)
	return nil
}

// Drop 删除全部表与视图
func Drop(app *App) error {
	db, err := app.OpenDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DropSchema(); err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	fmt.Println("🔥 已删除全部表与视图")
	return nil
}
