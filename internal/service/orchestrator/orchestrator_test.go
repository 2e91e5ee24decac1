package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingExecutor struct {
	mu       sync.Mutex
	executed []*Job
	err      error
	delay    time.Duration
}

func (r *recordingExecutor) ExecuteRun(ctx context.Context, runID string, unitIndex int) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	r.executed = append(r.executed, &Job{RunID: runID, UnitIndex: unitIndex})
	r.mu.Unlock()
	return r.err
}

func (r *recordingExecutor) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.executed)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestOrchestratorExecutesEnqueuedJob(t *testing.T) {
	executor := &recordingExecutor{}
	orch, err := NewOrchestrator(2, executor)
	if err != nil {
		t.Fatalf("NewOrchestrator error: %v", err)
	}
	orch.Start()
	defer orch.Stop()

	if err := orch.EnqueueJob(NewRunJob("run-1", time.Minute)); err != nil {
		t.Fatalf("EnqueueJob error: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return executor.count() == 1 })

	executor.mu.Lock()
	job := executor.executed[0]
	executor.mu.Unlock()
	if job.RunID != "run-1" || job.UnitIndex != -1 {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestOrchestratorUnitRetryJobCarriesIndex(t *testing.T) {
	executor := &recordingExecutor{}
	orch, err := NewOrchestrator(1, executor)
	if err != nil {
		t.Fatalf("NewOrchestrator error: %v", err)
	}
	orch.Start()
	defer orch.Stop()

	if err := orch.EnqueueJob(NewUnitRetryJob("run-2", 3, time.Minute)); err != nil {
		t.Fatalf("EnqueueJob error: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return executor.count() == 1 })

	executor.mu.Lock()
	job := executor.executed[0]
	executor.mu.Unlock()
	if job.RunID != "run-2" || job.UnitIndex != 3 {
		t.Fatalf("unexpected job: %+v", job)
	}
}

// 执行失败不重试，任务只被执行一次
func TestOrchestratorDoesNotRetryFailedJob(t *testing.T) {
	executor := &recordingExecutor{err: errors.New("generation failed")}
	orch, err := NewOrchestrator(1, executor)
	if err != nil {
		t.Fatalf("NewOrchestrator error: %v", err)
	}
	orch.Start()
	defer orch.Stop()

	if err := orch.EnqueueJob(NewRunJob("run-3", time.Minute)); err != nil {
		t.Fatalf("EnqueueJob error: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return executor.count() == 1 })
	time.Sleep(200 * time.Millisecond)

	if got := executor.count(); got != 1 {
		t.Fatalf("job should run exactly once, ran %d times", got)
	}
}

func TestOrchestratorRejectsAfterStop(t *testing.T) {
	executor := &recordingExecutor{}
	orch, err := NewOrchestrator(1, executor)
	if err != nil {
		t.Fatalf("NewOrchestrator error: %v", err)
	}
	orch.Start()
	orch.Stop()

	if err := orch.EnqueueJob(NewRunJob("run-4", time.Minute)); !errors.Is(err, ErrOrchestratorStopped) {
		t.Fatalf("expected ErrOrchestratorStopped, got %v", err)
	}
}

func TestJobQueueRejectsWhenFull(t *testing.T) {
	q := newJobQueue(2)
	if err := q.Enqueue(NewRunJob("a", 0)); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if err := q.Enqueue(NewRunJob("b", 0)); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if err := q.Enqueue(NewRunJob("c", 0)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("expected queue length 2, got %d", q.Len())
	}
}

func TestJobQueueDequeueAfterClose(t *testing.T) {
	q := newJobQueue(4)
	_ = q.Enqueue(NewRunJob("a", 0))
	q.Close()

	// 关闭后仍可取出已入队的任务
	if job, ok := q.Dequeue(); !ok || job.RunID != "a" {
		t.Fatalf("expected pending job after close, got ok=%v", ok)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected no more jobs after drain")
	}
}

func TestQueueStatus(t *testing.T) {
	executor := &recordingExecutor{delay: 300 * time.Millisecond}
	orch, err := NewOrchestrator(1, executor)
	if err != nil {
		t.Fatalf("NewOrchestrator error: %v", err)
	}
	orch.Start()
	defer orch.Stop()

	_ = orch.EnqueueJob(NewRunJob("run-5", time.Minute))
	waitFor(t, 2*time.Second, func() bool { return orch.GetQueueStatus().ActiveWorkers == 1 })

	status := orch.GetQueueStatus()
	if status.ActiveWorkers != 1 {
		t.Fatalf("expected 1 active worker, got %d", status.ActiveWorkers)
	}
}
