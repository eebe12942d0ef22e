// Package runner schedules and supervises background tasks on cron
// expressions, with per-task timeouts and clean signal shutdown.
package runner

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner executes registered tasks on their cron schedules.
type Runner struct {
	cron     *cron.Cron
	registry *TaskRegistry
	logger   *log.Logger
	wg       sync.WaitGroup
}

func NewRunner(registry *TaskRegistry) *Runner {
	return &Runner{
		cron:     cron.New(cron.WithSeconds()),
		registry: registry,
		logger:   log.New(os.Stdout, "[RUNNER] ", log.LstdFlags),
	}
}

// Start schedules every registered task and blocks until ctx is
// cancelled or a termination signal arrives.
func (r *Runner) Start(ctx context.Context) error {
	for _, task := range r.registry.All() {
		task := task
		r.logger.Printf("scheduling %s on %q", task.Name(), task.Schedule())
		if _, err := r.cron.AddFunc(task.Schedule(), func() {
			r.execute(ctx, task)
		}); err != nil {
			return fmt.Errorf("schedule task %s: %w", task.Name(), err)
		}
	}

	r.cron.Start()
	r.logger.Printf("runner started with %d task(s)", len(r.registry.All()))
	return r.waitForShutdown(ctx)
}

// execute runs one task iteration under its timeout.
func (r *Runner) execute(ctx context.Context, task Task) {
	r.wg.Add(1)
	defer r.wg.Done()

	taskCtx, cancel := context.WithTimeout(ctx, task.Timeout())
	defer cancel()

	start := time.Now()
	err := task.Run(taskCtx)
	duration := time.Since(start)

	if err != nil {
		r.logger.Printf("task %s failed after %v: %v", task.Name(), duration, err)
		return
	}
	r.logger.Printf("task %s completed in %v", task.Name(), duration)
}

// Stop halts scheduling and waits for in-flight task runs to finish.
func (r *Runner) Stop() {
	stopped := r.cron.Stop()
	r.wg.Wait()
	<-stopped.Done()
	r.logger.Println("runner stopped")
}

func (r *Runner) waitForShutdown(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		r.logger.Printf("received signal %v, shutting down", sig)
		r.Stop()
		return nil
	case <-ctx.Done():
		r.Stop()
		return ctx.Err()
	}
}
