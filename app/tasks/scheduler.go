package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultQueueSize   = 16
	DefaultTaskTimeout = 30 * time.Minute
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler runs queued tasks on a single worker so at most one pipeline
// is active per process.
type Scheduler struct {
	timeout   time.Duration
	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
}

func NewScheduler(queueSize int, taskTimeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		timeout:   taskTimeout,
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, queueSize),
	}
}

// WithSchedule enqueues the tasks returned by build on every tick of the
// cron spec, in order.
func (s *Scheduler) WithSchedule(spec string, location *time.Location, build func() []TaskInterface) error {
	if location == nil {
		location = time.Local
	}
	c := cron.New(cron.WithLocation(location))

	_, err := c.AddFunc(spec, func() {
		slog.Info("Scheduled run triggered", "schedule", spec)
		for _, task := range build() {
			if err := s.EnqueueTask(task); err != nil {
				slog.Warn("Failed to enqueue scheduled task", "type", string(task.GetType()), "error", err)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s.cron = c
	return nil
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()

	if s.cron != nil {
		s.cron.Start()
	}
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		slog.Debug("Task enqueued", "type", string(task.GetType()), "id", task.GetID())
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) QueueLength() int {
	return len(s.taskQueue)
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(task)

		case <-s.ctx.Done():
			return
		}
	}
}

// executeTask runs a task once. Failed tasks are logged, never retried.
func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	if err := s.runTask(task); err != nil {
		slog.Error("Task execution failed", "type", string(task.GetType()), "id", task.GetID(), "duration", task.GetDuration(), "error", err)
	}
}

// runTask turns a panicking task into a failed one so the worker survives.
func (s *Scheduler) runTask(task TaskInterface) (err error) {
	taskCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Task panicked", "type", string(task.GetType()), "id", task.GetID(), "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	return task.Execute(taskCtx)
}
