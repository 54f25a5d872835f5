package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/jing2uo/yf2db/export"
	"github.com/jing2uo/yf2db/ingest"
)

var (
	TaskUpdateProfiles *Task
	TaskUpdateActions  *Task
	TaskUpdateDaily    *Task
	TaskUpdateMinutely *Task
	TaskExport         *Task
)

// DefaultUpdateTasks update 命令默认执行的任务
var DefaultUpdateTasks = []string{"update_profiles", "update_actions", "update_daily", "update_minutely", "export"}

func init() {
	TaskUpdateProfiles = &Task{
		Name:      "update_profiles",
		DependsOn: []string{},
		Executor:  executeUpdateProfiles,
		OnError:   ErrorModeSkip,
	}

	TaskUpdateActions = &Task{
		Name:      "update_actions",
		DependsOn: []string{},
		Executor:  executeUpdateActions,
	}

	// 新的分红拆股会触发日线全量重取, 所以先更新 actions
	TaskUpdateDaily = &Task{
		Name:      "update_daily",
		DependsOn: []string{"update_actions"},
		Executor:  executeUpdateDaily,
	}

	TaskUpdateMinutely = &Task{
		Name:      "update_minutely",
		DependsOn: []string{},
		Executor:  executeUpdateMinutely,
		OnError:   ErrorModeSkip,
	}

	TaskExport = &Task{
		Name:      "export",
		DependsOn: []string{"update_profiles", "update_daily", "update_minutely"},
		SkipIf: func(ctx context.Context, svc *ingest.Service, args *TaskArgs) bool {
			return args.OutputDir == ""
		},
		Executor: executeExport,
		OnError:  ErrorModeSkip,
	}
}

// AllTasks 返回以任务名为键的任务表
func AllTasks() map[string]*Task {
	return map[string]*Task{
		TaskUpdateProfiles.Name: TaskUpdateProfiles,
		TaskUpdateActions.Name:  TaskUpdateActions,
		TaskUpdateDaily.Name:    TaskUpdateDaily,
		TaskUpdateMinutely.Name: TaskUpdateMinutely,
		TaskExport.Name:         TaskExport,
	}
}

func resolveTickers(ctx context.Context, svc *ingest.Service, args *TaskArgs) ([]string, error) {
	if len(args.Tickers) > 0 {
		return args.Tickers, nil
	}
	tickers, err := svc.PresentTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickers in database: %w", err)
	}
	return tickers, nil
}

// runForEach 对每个代码执行 fn 并汇总. 只有全部代码都失败时任务才算失败.
func runForEach(ctx context.Context, svc *ingest.Service, args *TaskArgs, op, label string,
	fn func(ctx context.Context, ticker string) (int64, error)) (*TaskResult, error) {

	tickers, err := resolveTickers(ctx, svc, args)
	if err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		fmt.Printf("🌲 数据库中没有代码, 跳过%s\n", label)
		return &TaskResult{State: StateSkipped, Message: "no tickers"}, nil
	}

	fmt.Printf("🐢 开始更新%s, 共 %d 个代码\n", label, len(tickers))
	sum, err := svc.UpdateEach(ctx, op, tickers, fn)
	if err != nil {
		return nil, err
	}

	for _, t := range sum.Gaps {
		fmt.Printf("⚠️ %s 分钟数据超出可回溯范围, 存在缺口\n", t)
	}
	for t, ferr := range sum.Failed {
		fmt.Printf("⚠️ %s 更新失败: %v\n", t, ferr)
	}

	if len(sum.Failed) == len(tickers) {
		return nil, fmt.Errorf("%s failed for all %d tickers: %w", op, len(tickers), sum.FirstError())
	}

	if sum.Rows == 0 {
		fmt.Printf("🌲 %s无需更新\n", label)
	} else {
		fmt.Printf("✅ %s更新完成, 写入 %d 行\n", label, sum.Rows)
	}

	msg := fmt.Sprintf("%d tickers, %d rows", len(tickers), sum.Rows)
	if len(sum.Failed) > 0 {
		msg += fmt.Sprintf(", %d failed", len(sum.Failed))
	}
	if len(sum.Gaps) > 0 {
		msg += fmt.Sprintf(", gaps: %s", strings.Join(sum.Gaps, ","))
	}
	return &TaskResult{State: StateCompleted, Rows: sum.Rows, Message: msg}, nil
}

func executeUpdateProfiles(ctx context.Context, svc *ingest.Service, args *TaskArgs) (*TaskResult, error) {
	return runForEach(ctx, svc, args, "profile", "证券信息", svc.RefreshProfile)
}

func executeUpdateActions(ctx context.Context, svc *ingest.Service, args *TaskArgs) (*TaskResult, error) {
	return runForEach(ctx, svc, args, "actions", "分红拆股", svc.UpdateActions)
}

func executeUpdateDaily(ctx context.Context, svc *ingest.Service, args *TaskArgs) (*TaskResult, error) {
	fmt.Printf("📅 当前日期为 %s\n", svc.Today().Format("2006-01-02"))
	return runForEach(ctx, svc, args, "daily", "日线数据", svc.UpdateDaily)
}

func executeUpdateMinutely(ctx context.Context, svc *ingest.Service, args *TaskArgs) (*TaskResult, error) {
	return runForEach(ctx, svc, args, "minutely", "分钟数据", svc.UpdateMinutely)
}

func executeExport(ctx context.Context, svc *ingest.Service, args *TaskArgs) (*TaskResult, error) {
	format, err := export.ParseFormat(args.Format)
	if err != nil {
		return nil, err
	}

	fmt.Printf("📦 开始导出到 %s (%s)\n", args.OutputDir, format)
	results, err := export.Tables(ctx, svc, args.OutputDir, format, nil)
	if err != nil {
		return nil, err
	}

	var rows int64
	for _, r := range results {
		fmt.Printf("✅ %s: %d 行 -> %s\n", r.Table, r.Rows, r.Path)
		rows += r.Rows
	}
	return &TaskResult{State: StateCompleted, Rows: rows, Message: fmt.Sprintf("%d tables exported", len(results))}, nil
}
