package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/hireflow/internal/models"
	"github.com/garnizeh/hireflow/pkg/repository"
)

const (
	statusDone   = "done"
	statusRetry  = "retry"
	statusFailed = "failed"
)

type WorkerPool struct {
	repo         repository.TaskRepo
	handlers     map[string]Handler
	logger       *slog.Logger
	workerCount  int
	pollInterval time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewWorkerPool(repo repository.TaskRepo, handlers map[string]Handler, logger *slog.Logger, workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		repo:         repo,
		handlers:     handlers,
		logger:       logger,
		workerCount:  workerCount,
		pollInterval: 500 * time.Millisecond,
		stop:         make(chan struct{}),
	}
}

// SetPollInterval changes how long an idle worker waits before polling again.
// Call it before Start.
func (p *WorkerPool) SetPollInterval(d time.Duration) {
	if d > 0 {
		p.pollInterval = d
	}
}

// Recover puts tasks left running by a previous process back in the queue
// and reports abandoned tasks of every handled type.
func (p *WorkerPool) Recover(ctx context.Context) error {
	n, err := p.repo.RequeueRunning(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		p.logger.Warn("requeued interrupted tasks", "count", n)
	}
	for typ := range p.handlers {
		dead, err := p.repo.DeadLetterCount(ctx, typ)
		if err != nil {
			return fmt.Errorf("count dead letters: %w", err)
		}
		if dead > 0 {
			p.logger.Warn("dead-lettered tasks need attention", "type", typ, "count", dead)
		}
	}
	return nil
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.logger.Info("worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Info("context canceled, worker exiting", "id", id)
			return
		default:
		}

		task, err := p.repo.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("claim task", "err", err)
			}
			p.wait(ctx, 2*p.pollInterval)
			continue
		}
		if task == nil {
			p.wait(ctx, p.pollInterval)
			continue
		}
		p.run(ctx, task)
	}
}

func (p *WorkerPool) wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stop:
	case <-ctx.Done():
	case <-t.C:
	}
}

func (p *WorkerPool) run(ctx context.Context, task *models.Task) {
	log := p.logger.With("task_id", task.ID, "type", task.Type)

	h, ok := p.handlers[task.Type]
	if !ok {
		task.Status = statusFailed
		task.LastError = "no handler"
		if err := p.repo.MoveToDeadLetter(ctx, task); err != nil {
			log.Error("move to dead letter", "err", err)
		}
		return
	}

	err := h(ctx, task)
	if err == nil {
		task.Status = statusDone
		task.LastError = ""
		if upErr := p.repo.UpdateTask(ctx, task); upErr != nil {
			log.Error("mark task done", "err", upErr)
		}
		return
	}

	task.Attempts++
	task.LastError = err.Error()
	if task.Attempts >= task.MaxAttempts || errors.Is(err, ErrPermanent) {
		task.Status = statusFailed
		log.Warn("task failed permanently", "attempts", task.Attempts, "err", err)
		if mvErr := p.repo.MoveToDeadLetter(ctx, task); mvErr != nil {
			log.Error("move to dead letter", "err", mvErr)
		}
		return
	}

	backoff := BackoffDuration(task.Attempts)
	t := time.Now().Add(backoff)
	task.NextTryAt = &t
	task.Status = statusRetry
	log.Info("task scheduled for retry", "attempts", task.Attempts, "backoff", backoff, "err", err)
	if upErr := p.repo.UpdateTask(ctx, task); upErr != nil {
		log.Error("update task for retry", "err", upErr)
	}
}

// Enqueue convenience helper that creates a task and persists it
func (p *WorkerPool) Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	return Enqueue(ctx, p.repo, typ, payload, priority, maxAttempts)
}

// Enqueue marshals payload and stores a new task. Services that only produce
// work use this without holding a pool.
func Enqueue(ctx context.Context, repo repository.TaskRepo, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	t := &models.Task{Type: typ, Payload: b, Priority: priority, MaxAttempts: maxAttempts, ScheduledAt: time.Now()}
	return repo.EnqueueTask(ctx, t)
}
