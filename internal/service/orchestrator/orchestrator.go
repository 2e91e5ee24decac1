package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"k8s.io/klog/v2"
)

// -----------------------------
// Job 定义
// -----------------------------
// UnitIndex 为 -1 表示整轮生成（逐单元循环），
// 非负值表示仅重试指定单元的详情阶段
type Job struct {
	RunID      string
	UnitIndex  int
	EnqueuedAt time.Time
	Timeout    time.Duration
}

// -----------------------------
// RunExecutor 接口
// -----------------------------
type RunExecutor interface {
	ExecuteRun(ctx context.Context, runID string, unitIndex int) error
}

// -----------------------------
// Orchestrator
// -----------------------------
// 后台生成的受监管执行器：队列 + 协程池
// 流水线自身不做重试，任务失败即结束，结果全部落在运行快照上
type Orchestrator struct {
	jobQueue *jobQueue

	pool *ants.Pool

	executor RunExecutor

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// -----------------------------
// 错误定义
// -----------------------------
var (
	ErrOrchestratorStopped = errors.New("orchestrator is stopped")
	ErrQueueFull           = errors.New("job queue is full")
)

// NewRunJob 创建整轮生成任务
func NewRunJob(runID string, timeout time.Duration) *Job {
	return &Job{
		RunID:      runID,
		UnitIndex:  -1,
		EnqueuedAt: time.Now(),
		Timeout:    timeout,
	}
}

// NewUnitRetryJob 创建单元重试任务
func NewUnitRetryJob(runID string, unitIndex int, timeout time.Duration) *Job {
	return &Job{
		RunID:      runID,
		UnitIndex:  unitIndex,
		EnqueuedAt: time.Now(),
		Timeout:    timeout,
	}
}

// -----------------------------
// 构造函数
// -----------------------------
func NewOrchestrator(maxWorkers int, executor RunExecutor) (*Orchestrator, error) {
	ctx, cancel := context.WithCancel(context.Background())

	pool, err := ants.NewPool(maxWorkers,
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(1000),
		ants.WithExpiryDuration(5*time.Minute),
	)
	if err != nil {
		cancel()
		klog.Errorf("ants pool initialization failed: %v", err)
		return nil, err
	}

	return &Orchestrator{
		jobQueue: newJobQueue(120),
		pool:     pool,
		executor: executor,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// -----------------------------
// 启动
// -----------------------------
func (o *Orchestrator) Start() {
	go o.dispatchLoop()
}

// -----------------------------
// 停止
// -----------------------------
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		klog.V(6).Infof("Orchestrator stopping...")

		// 1. 停止接收新任务，关闭队列
		o.cancel()
		o.jobQueue.Close()

		// 2. 等待队列中待执行的任务全部分发完毕
		for o.jobQueue.Len() > 0 {
			time.Sleep(100 * time.Millisecond)
			klog.V(6).Infof("Waiting for queue to empty: pending=%d", o.jobQueue.Len())
		}

		// 3. 等待正在执行的生成任务完成
		runningTasks := o.pool.Running()
		if runningTasks > 0 {
			klog.V(6).Infof("Waiting for %d running jobs to complete (timeout: 35min)", runningTasks)
		}

		// ReleaseTimeout 覆盖 30 分钟的任务上限
		timeout := 35 * time.Minute
		if rErr := o.pool.ReleaseTimeout(timeout); rErr == nil {
			klog.V(6).Infof("All running jobs completed before timeout")
		} else {
			klog.Warningf("Timeout after %v: some running jobs may be forced to stop", timeout)
		}

		klog.V(6).Infof("Orchestrator stopped completely")
	})
}

// -----------------------------
// 入队任务
// -----------------------------
func (o *Orchestrator) EnqueueJob(job *Job) error {
	select {
	case <-o.ctx.Done():
		return ErrOrchestratorStopped
	default:
	}

	if err := o.jobQueue.Enqueue(job); err != nil {
		if errors.Is(err, ErrQueueFull) {
			klog.Warningf("Job queue full: runID=%s", job.RunID)
		}
		return err
	}
	klog.V(6).Infof("Job enqueued: runID=%s, unitIndex=%d", job.RunID, job.UnitIndex)
	return nil
}

// -----------------------------
// Dispatch Loop
// -----------------------------
func (o *Orchestrator) dispatchLoop() {
	for {
		select {
		case <-o.ctx.Done():
			return
		default:
			job, ok := o.jobQueue.Dequeue()
			if !ok {
				continue
			}
			if err := o.pool.Submit(func() {
				o.executeJob(job)
			}); err != nil {
				klog.Errorf("提交任务到协程池失败: runID=%s, err=%v", job.RunID, err)
			}
		}
	}
}

// executeJob 执行单个任务
// 失败不重试，错误已由执行器记录在运行快照上
func (o *Orchestrator) executeJob(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("Job panic recovered: runID=%s, err=%v", job.RunID, r)
		}
	}()

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(o.ctx, timeout)
	defer cancel()

	if err := o.executor.ExecuteRun(ctx, job.RunID, job.UnitIndex); err != nil {
		klog.Errorf("任务执行失败: runID=%s, unitIndex=%d, err=%v", job.RunID, job.UnitIndex, err)
		return
	}
	klog.V(6).Infof("Job completed: runID=%s, unitIndex=%d", job.RunID, job.UnitIndex)
}

// -----------------------------
// Queue Status
// -----------------------------
type QueueStatus struct {
	QueueLength   int `json:"queue_length"`
	ActiveWorkers int `json:"active_workers"`
}

func (o *Orchestrator) GetQueueStatus() *QueueStatus {
	return &QueueStatus{
		QueueLength:   o.jobQueue.Len(),
		ActiveWorkers: o.pool.Running(),
	}
}

// -----------------------------
// JobQueue (Ring Buffer) + Reject New
// -----------------------------
type jobQueue struct {
	maxSize int
	items   []*Job
	mutex   sync.Mutex
	cond    *sync.Cond
	closed  bool
}

func newJobQueue(maxSize int) *jobQueue {
	q := &jobQueue{
		maxSize: maxSize,
		items:   make([]*Job, 0, maxSize),
	}
	q.cond = sync.NewCond(&q.mutex)
	return q
}

func (q *jobQueue) Enqueue(job *Job) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return ErrOrchestratorStopped
	}
	if q.maxSize > 0 && len(q.items) >= q.maxSize {
		return ErrQueueFull // Reject New
	}
	q.items = append(q.items, job)
	q.cond.Signal()
	return nil
}

func (q *jobQueue) Dequeue() (*Job, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	job := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return job, true
}

func (q *jobQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}

func (q *jobQueue) Close() {
	q.mutex.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mutex.Unlock()
}

// -------------------- Global Orchestrator --------------------
var (
	globalOrchestrator *Orchestrator
	orchestratorOnce   sync.Once
)

func InitGlobalOrchestrator(maxWorkers int, executor RunExecutor) error {
	var initErr error
	orchestratorOnce.Do(func() {
		orch, err := NewOrchestrator(maxWorkers, executor)
		if err != nil {
			initErr = err
			return
		}
		globalOrchestrator = orch
		globalOrchestrator.Start()
		klog.V(6).Infof("Global orchestrator initialized: maxWorkers=%d", maxWorkers)
	})
	return initErr
}

func GetGlobalOrchestrator() *Orchestrator {
	return globalOrchestrator
}

func ShutdownGlobalOrchestrator() {
	if globalOrchestrator != nil {
		globalOrchestrator.Stop()
		klog.V(6).Infof("Global orchestrator shutdown")
	}
}
