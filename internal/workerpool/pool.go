package workerpool

import (
	"context"
	"log/slog"
	"sync"
)

// Task 任务，ctx 在 Pool 关闭超时后被取消
type Task func(ctx context.Context)

// Pool 固定数量 worker 的任务池，每个任务独立执行，单个任务 panic 不影响其他任务
type Pool struct {
	workers   int
	taskQueue chan Task
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closed    bool
	logger    *slog.Logger
}

// New 创建并启动 Pool
func New(workers int, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := &Pool{
		workers:   workers,
		taskQueue: make(chan Task, queueSize),
		ctx:       ctx,
		cancel:    cancel,
		logger:    slog.Default(),
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker(i)
	}

	pool.logger.Info("Worker pool started",
		"workers", workers,
		"queueSize", queueSize)

	return pool
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for task := range p.taskQueue {
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task panic recovered",
				"workerId", id,
				"panic", r)
		}
	}()
	task(p.ctx)
}

// TrySubmit 提交任务，队列已满或已关闭时立即返回 false
func (p *Pool) TrySubmit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}
	select {
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Pending 队列中等待执行的任务数与队列容量
func (p *Pool) Pending() (current int, capacity int) {
	return len(p.taskQueue), cap(p.taskQueue)
}

// Shutdown 停止接收新任务并等待队列中的任务执行完；ctx 到期后取消仍在执行的任务
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.taskQueue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("Worker pool shutdown timed out, cancelling running tasks")
		p.cancel()
		<-done
	}
	p.cancel()
	p.logger.Info("Worker pool shutdown completed")
}
