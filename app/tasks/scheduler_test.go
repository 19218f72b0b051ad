package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blogsmith/refresher/app/pipeline"
)

type mockTask struct {
	Task
	mu       sync.Mutex
	executed int
	err      error
	done     chan struct{}
}

func newMockTask(err error) *mockTask {
	return &mockTask{Task: NewTask(TaskTypeCrawl), err: err, done: make(chan struct{}, 4)}
}

func (m *mockTask) Execute(ctx context.Context) error {
	m.mu.Lock()
	m.executed++
	m.mu.Unlock()
	m.done <- struct{}{}
	return m.err
}

func (m *mockTask) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executed
}

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for task execution")
	}
}

func TestNewTask(t *testing.T) {
	a := NewTask(TaskTypeCrawl)
	b := NewTask(TaskTypeCrawl)

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("Expected unique task IDs, got %q and %q", a.ID, b.ID)
	}
	if a.GetDuration() != 0 {
		t.Error("Expected zero duration before start")
	}
	a.Start()
	if a.StartedAt == nil {
		t.Error("Expected StartedAt to be set")
	}
}

func TestScheduler_ExecutesTasks(t *testing.T) {
	s := NewScheduler(DefaultQueueSize, time.Second)
	s.Start()
	defer s.Stop()

	task := newMockTask(nil)
	if err := s.EnqueueTask(task); err != nil {
		t.Fatalf("EnqueueTask failed: %v", err)
	}

	waitFor(t, task.done)
	if task.count() != 1 {
		t.Errorf("Expected one execution, got %d", task.count())
	}
}

func TestScheduler_FailedTaskIsNotRetried(t *testing.T) {
	s := NewScheduler(DefaultQueueSize, time.Second)
	s.Start()

	failing := newMockTask(errors.New("boom"))
	next := newMockTask(nil)
	s.EnqueueTask(failing)
	s.EnqueueTask(next)

	waitFor(t, failing.done)
	waitFor(t, next.done)
	s.Stop()

	if failing.count() != 1 {
		t.Errorf("Expected failed task to run once, got %d", failing.count())
	}
}

type panickingTask struct {
	Task
	done chan struct{}
}

func (p *panickingTask) Execute(ctx context.Context) error {
	p.done <- struct{}{}
	panic("makeslice: cap out of range")
}

func TestScheduler_PanickingTaskIsFailed(t *testing.T) {
	s := NewScheduler(DefaultQueueSize, time.Second)

	broken := &panickingTask{Task: NewTask(TaskTypeCrawl), done: make(chan struct{}, 2)}
	if err := s.runTask(broken); err == nil {
		t.Error("Expected panic to be reported as an error")
	}
	<-broken.done

	s.Start()
	defer s.Stop()

	next := newMockTask(nil)
	s.EnqueueTask(broken)
	s.EnqueueTask(next)

	waitFor(t, broken.done)
	waitFor(t, next.done)
	if next.count() != 1 {
		t.Errorf("Expected worker to keep running after a panic, got %d executions", next.count())
	}
}

func TestScheduler_QueueFull(t *testing.T) {
	s := NewScheduler(1, time.Second)

	if err := s.EnqueueTask(newMockTask(nil)); err != nil {
		t.Fatalf("First enqueue failed: %v", err)
	}
	if err := s.EnqueueTask(newMockTask(nil)); err == nil {
		t.Error("Expected queue full error")
	}
	if s.QueueLength() != 1 {
		t.Errorf("Expected queue length 1, got %d", s.QueueLength())
	}
}

func TestScheduler_EnqueueAfterStop(t *testing.T) {
	s := NewScheduler(1, time.Second)
	s.Start()
	s.Stop()

	if err := s.EnqueueTask(newMockTask(nil)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled after stop, got %v", err)
	}
}

func TestScheduler_WithSchedule(t *testing.T) {
	s := NewScheduler(1, time.Second)

	if err := s.WithSchedule("not a schedule", nil, nil); err == nil {
		t.Error("Expected error for invalid cron spec")
	}
	if err := s.WithSchedule("0 3 * * *", time.UTC, func() []TaskInterface { return nil }); err != nil {
		t.Errorf("Expected valid schedule, got %v", err)
	}
}

type mockIngester struct {
	target, startPage int
}

func (m *mockIngester) Run(ctx context.Context, target, startPage int) pipeline.IngestReport {
	m.target, m.startPage = target, startPage
	return pipeline.IngestReport{Candidates: target, Stored: target}
}

type mockAugmenter struct {
	ids []int64
	err error
}

func (m *mockAugmenter) Run(ctx context.Context, ids ...int64) (pipeline.Report, error) {
	m.ids = ids
	return pipeline.Report{Published: len(ids)}, m.err
}

func TestCrawlTask_Execute(t *testing.T) {
	ingester := &mockIngester{}
	task := NewCrawlTask(ingester, 5, 15)

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if ingester.target != 5 || ingester.startPage != 15 {
		t.Errorf("Expected target 5 from page 15, got %d from %d", ingester.target, ingester.startPage)
	}
	if task.GetType() != TaskTypeCrawl {
		t.Errorf("Unexpected type %s", task.GetType())
	}
}

func TestAugmentTask_Execute(t *testing.T) {
	augmenter := &mockAugmenter{}

	if err := NewAugmentTask(augmenter, 3, 4).Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(augmenter.ids) != 2 || augmenter.ids[0] != 3 {
		t.Errorf("Expected ids passed through, got %v", augmenter.ids)
	}

	augmenter.err = errors.New("database is locked")
	if err := NewAugmentTask(augmenter).Execute(context.Background()); err == nil {
		t.Error("Expected error from augmenter")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewAugmentTask(augmenter).Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
