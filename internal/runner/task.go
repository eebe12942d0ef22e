package runner

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Task is a unit of scheduled background work.
type Task interface {
	// Name uniquely identifies the task in logs and the registry.
	Name() string

	// Schedule is the cron expression (with seconds field) the task
	// runs on.
	Schedule() string

	// Run executes one iteration of the task.
	Run(ctx context.Context) error

	// Timeout bounds a single Run invocation.
	Timeout() time.Duration
}

// TaskRegistry collects the tasks a Runner will schedule.
type TaskRegistry struct {
	tasks map[string]Task
	order []string
}

func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{tasks: make(map[string]Task)}
}

// Register adds a task, rejecting duplicate names.
func (r *TaskRegistry) Register(task Task) error {
	name := task.Name()
	if _, exists := r.tasks[name]; exists {
		return fmt.Errorf("task %s already registered", name)
	}
	r.tasks[name] = task
	r.order = append(r.order, name)
	return nil
}

// All returns the registered tasks in registration order.
func (r *TaskRegistry) All() []Task {
	out := make([]Task, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tasks[name])
	}
	return out
}

// Names returns the registered task names, sorted.
func (r *TaskRegistry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
