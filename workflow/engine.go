package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jing2uo/yf2db/ingest"
	"github.com/jing2uo/yf2db/metrics"
)

// TaskState represents the state of a task execution
type TaskState string

const (
	StatePending   TaskState = "pending"
	StateRunning   TaskState = "running"
	StateCompleted TaskState = "completed"
	StateSkipped   TaskState = "skipped"
	StateFailed    TaskState = "failed"
)

// TaskResult holds the execution result of a task
type TaskResult struct {
	State   TaskState
	Rows    int64
	Message string
	Error   error
}

type ErrorMode int

const (
	ErrorModeStop ErrorMode = iota
	ErrorModeSkip
)

// TaskFunc is the function that executes a task
type TaskFunc func(ctx context.Context, svc *ingest.Service, args *TaskArgs) (*TaskResult, error)

// SkipCondition determines if a task should be skipped
type SkipCondition func(ctx context.Context, svc *ingest.Service, args *TaskArgs) bool

// Task represents a unit of work with dependencies
type Task struct {
	Name      string
	DependsOn []string
	Executor  TaskFunc
	SkipIf    SkipCondition
	OnError   ErrorMode
}

type TaskArgs struct {
	// Tickers 为空时使用库中已有的全部代码
	Tickers   []string
	OutputDir string
	Format    string
	Today     time.Time
	Extra     map[string]interface{}
}

// TaskExecutor manages and executes tasks with dependency resolution
type TaskExecutor struct {
	svc     *ingest.Service
	tasks   map[string]*Task
	metrics *metrics.Recorder

	mu      sync.Mutex
	results map[string]*TaskResult
}

// NewTaskExecutor creates a new task executor
func NewTaskExecutor(svc *ingest.Service, tasks map[string]*Task, rec *metrics.Recorder) *TaskExecutor {
	return &TaskExecutor{
		svc:     svc,
		tasks:   tasks,
		metrics: rec,
	}
}

func (te *TaskExecutor) Run(ctx context.Context, taskNames []string, args *TaskArgs) error {
	if len(taskNames) == 0 {
		return nil
	}
	if args == nil {
		args = &TaskArgs{}
	}

	order, err := te.topologicalSort(taskNames)
	if err != nil {
		return fmt.Errorf("failed to resolve task dependencies: %w", err)
	}

	te.mu.Lock()
	te.results = make(map[string]*TaskResult)
	te.mu.Unlock()

	pending := make(map[string]bool)
	for _, name := range order {
		pending[name] = true
	}

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ready := te.findReadyTasks(pending)
		if len(ready) == 0 {
			return fmt.Errorf("circular dependency detected or no ready tasks")
		}

		var wg sync.WaitGroup
		for _, name := range ready {
			task := te.tasks[name]

			if task.SkipIf != nil && task.SkipIf(ctx, te.svc, args) {
				te.setResult(name, &TaskResult{State: StateSkipped, Message: "skipped by condition"})
				continue
			}

			wg.Add(1)
			go func(n string, t *Task) {
				defer wg.Done()
				te.setResult(n, te.executeTask(ctx, t, args))
			}(name, task)
		}

		wg.Wait()

		for _, name := range ready {
			result := te.Result(name)
			te.metrics.ObserveTask(name, string(result.State))
			if result.Error != nil && te.tasks[name].OnError == ErrorModeStop {
				return fmt.Errorf("task %s failed: %w", name, result.Error)
			}
			delete(pending, name)
		}
	}

	return nil
}

func (te *TaskExecutor) executeTask(ctx context.Context, task *Task, args *TaskArgs) (result *TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			result = &TaskResult{State: StateFailed, Error: fmt.Errorf("panic: %v", r)}
		}
	}()

	result, err := task.Executor(ctx, te.svc, args)
	if err != nil {
		return &TaskResult{
			State: StateFailed,
			Error: err,
		}
	}
	if result == nil {
		result = &TaskResult{State: StateCompleted}
	}
	return result
}

func (te *TaskExecutor) setResult(name string, r *TaskResult) {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.results[name] = r
}

// Result 返回最近一次 Run 中该任务的结果
func (te *TaskExecutor) Result(name string) *TaskResult {
	te.mu.Lock()
	defer te.mu.Unlock()
	return te.results[name]
}

func (te *TaskExecutor) topologicalSort(taskNames []string) ([]string, error) {
	inDegree := make(map[string]int)
	adj := make(map[string][]string)
	taskSet := make(map[string]bool)

	for _, name := range taskNames {
		if _, exists := te.tasks[name]; !exists {
			return nil, fmt.Errorf("task %s not found", name)
		}
		taskSet[name] = true
		inDegree[name] = 0
	}

	for name := range taskSet {
		for _, dep := range te.tasks[name].DependsOn {
			if !taskSet[dep] {
				continue
			}
			adj[dep] = append(adj[dep], name)
			inDegree[name]++
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, neighbor := range adj[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(order) != len(taskSet) {
		return nil, fmt.Errorf("circular dependency detected")
	}

	return order, nil
}

// depDone 依赖已完成, 被跳过, 或以 ErrorModeSkip 失败
func (te *TaskExecutor) depDone(dep string, pending map[string]bool) bool {
	if _, known := te.tasks[dep]; !known {
		return true
	}
	result := te.Result(dep)
	if result == nil {
		// 未被请求的依赖不阻塞
		return !pending[dep]
	}
	switch result.State {
	case StateCompleted, StateSkipped:
		return true
	case StateFailed:
		return te.tasks[dep].OnError == ErrorModeSkip
	}
	return false
}

func (te *TaskExecutor) findReadyTasks(pending map[string]bool) []string {
	var ready []string

	for name := range pending {
		allDepsDone := true
		for _, dep := range te.tasks[name].DependsOn {
			if !te.depDone(dep, pending) {
				allDepsDone = false
				break
			}
		}

		if allDepsDone {
			ready = append(ready, name)
		}
	}

	sort.Strings(ready)
	return ready
}

func (te *TaskExecutor) GetTaskNames() []string {
	names := make([]string, 0, len(te.tasks))
	for name := range te.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (te *TaskExecutor) HasTask(name string) bool {
	_, exists := te.tasks[name]
	return exists
}

// ParseTaskList 解析逗号分隔的任务名, 去重并保持顺序
func ParseTaskList(list string, known map[string]*Task) ([]string, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}

	seen := make(map[string]bool)
	var names []string
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		if _, ok := known[p]; !ok {
			return nil, fmt.Errorf("invalid task: %s", p)
		}
		seen[p] = true
		names = append(names, p)
	}
	return names, nil
}
