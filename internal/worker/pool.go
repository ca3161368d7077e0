package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/config"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
)

// ErrPoolOverload is returned when no worker freed up within MaxBlock, or
// QueueSize submitters are already waiting for one.
var ErrPoolOverload = errors.New("worker pool overloaded")

// Task is one unit of background work.
type Task struct {
	Ctx  context.Context // detached from the request that produced the task
	Name string
	Run  func(ctx context.Context) error
}

// Submitter accepts tasks for asynchronous execution.
type Submitter interface {
	Submit(task Task) error
}

// Pool runs tasks on a bounded ants pool and records per-pool metrics.
// Submitters never wait longer than MaxBlock for a free worker.
type Pool struct {
	name       string
	pool       *ants.PoolWithFunc
	baseLogger *zap.Logger
	maxBlock   time.Duration
	queueSize  int
	waiting    atomic.Int32
}

var _ Submitter = (*Pool)(nil)

// NewPool creates and initializes a named worker pool.
func NewPool(name string, cfg config.WorkerPoolConfig, baseLogger *zap.Logger) (*Pool, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	p := &Pool{
		name:       name,
		baseLogger: baseLogger.Named(name + "_pool"),
		maxBlock:   cfg.MaxBlock,
		queueSize:  cfg.QueueSize,
	}

	// Waiting is bounded here rather than inside ants, whose blocking
	// Invoke has no deadline.
	opts := []ants.Option{
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(err interface{}) {
			p.baseLogger.Error("Panic recovered in worker", zap.Any("panic_error", err), zap.Stack("stack"))
			observer.IncWorkerPoolTasksProcessed(p.name, "panic")
		}),
	}
	if cfg.ExpiryTime > 0 {
		opts = append(opts, ants.WithExpiryDuration(cfg.ExpiryTime))
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		task, ok := i.(Task)
		if !ok {
			p.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		p.process(task)
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s worker pool: %w", name, err)
	}
	p.pool = pool

	p.baseLogger.Info("Worker pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("max_block", cfg.MaxBlock),
		zap.Duration("expiry_time", cfg.ExpiryTime),
	)
	return p, nil
}

// Submit hands the task to a free worker, waiting at most MaxBlock for one.
// It fails with ErrPoolOverload when the wait runs out or QueueSize other
// submitters are already waiting. A zero MaxBlock never waits.
func (p *Pool) Submit(task Task) error {
	if task.Ctx == nil {
		task.Ctx = context.Background()
	}
	observer.IncWorkerPoolTasksSubmitted(p.name)

	err := p.pool.Invoke(task)
	if errors.Is(err, ants.ErrPoolOverload) && p.maxBlock > 0 {
		err = p.waitAndInvoke(task)
	}
	if err != nil {
		observer.IncWorkerPoolTasksProcessed(p.name, "submit_error")
		p.baseLogger.Warn("Failed to submit task to pool", zap.String("task", task.Name), zap.Error(err))
		if errors.Is(err, ants.ErrPoolOverload) || errors.Is(err, ErrPoolOverload) {
			return fmt.Errorf("%w: %s", ErrPoolOverload, p.name)
		}
		return fmt.Errorf("failed to invoke %s task: %w", p.name, err)
	}
	return nil
}

// waitAndInvoke retries the invoke with short backoffs until a worker frees
// up or maxBlock elapses.
func (p *Pool) waitAndInvoke(task Task) error {
	if n := p.waiting.Add(1); p.queueSize > 0 && int(n) > p.queueSize {
		p.waiting.Add(-1)
		return ErrPoolOverload
	}
	observer.SetWorkerPoolQueueLength(p.name, p.Waiting())
	defer func() {
		p.waiting.Add(-1)
		observer.SetWorkerPoolQueueLength(p.name, p.Waiting())
	}()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Millisecond
	policy.MaxInterval = 10 * time.Millisecond
	policy.MaxElapsedTime = p.maxBlock

	return backoff.Retry(func() error {
		err := p.pool.Invoke(task)
		if err != nil && !errors.Is(err, ants.ErrPoolOverload) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func (p *Pool) process(task Task) {
	log := logger.FromContextOr(task.Ctx, p.baseLogger).With(zap.String("task", task.Name))
	start := time.Now()
	status := "success"

	if err := task.Run(task.Ctx); err != nil {
		status = "error"
		log.Warn("Task finished with error", zap.Error(err))
	}

	duration := time.Since(start)
	observer.ObserveWorkerPoolProcessingDuration(p.name, duration)
	observer.IncWorkerPoolTasksProcessed(p.name, status)
	log.Debug("Finished task", zap.Duration("duration", duration), zap.String("final_status", status))
}

// Waiting returns the number of submitters blocked waiting for a worker.
func (p *Pool) Waiting() int {
	return int(p.waiting.Load())
}

// Running returns the number of busy workers.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Stop waits up to timeout for running tasks, then releases the pool.
func (p *Pool) Stop(timeout time.Duration) {
	if p.pool == nil {
		return
	}
	p.baseLogger.Info("Releasing worker pool")
	start := time.Now()
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		p.baseLogger.Warn("Worker pool did not drain before timeout", zap.Error(err))
	}
	p.baseLogger.Info("Worker pool released", zap.Duration("duration", time.Since(start)))
}

// Inline runs tasks synchronously on the caller's goroutine.
type Inline struct{}

func (Inline) Submit(task Task) error {
	if task.Ctx == nil {
		task.Ctx = context.Background()
	}
	return task.Run(task.Ctx)
}
