package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/skillswap/internal/metrics"
	"github.com/goccy/go-json"
)

type WorkerPool struct {
	repo         *Repository
	handlers     map[string]Handler
	logger       *slog.Logger
	workerCount  int
	pollInterval time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewWorkerPool(repo *Repository, handlers map[string]Handler, logger *slog.Logger, workerCount int) *WorkerPool {
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
func (p *WorkerPool) SetPollInterval(d time.Duration) {
	if d > 0 {
		p.pollInterval = d
	}
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	if n, err := p.repo.RequeueRunning(ctx); err != nil {
		p.logger.Error("requeue running jobs", "err", err)
	} else if n > 0 {
		p.logger.Info("requeued interrupted jobs", "count", n)
	}

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

// wait sleeps for d unless the pool is stopped first. It reports whether the
// worker should keep running.
func (p *WorkerPool) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stop:
		return false
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
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

		job, err := p.repo.FetchNext(ctx)
		if err != nil {
			p.logger.Error("fetch job", "err", err)
			if !p.wait(ctx, time.Second) {
				return
			}
			continue
		}
		if job == nil {
			if !p.wait(ctx, p.pollInterval) {
				return
			}
			continue
		}

		p.process(ctx, job)
	}
}

func (p *WorkerPool) process(ctx context.Context, job *Job) {
	h, ok := p.handlers[job.Type]
	if !ok {
		job.Status = StatusFailed
		job.LastError = "no handler"
		if err := p.repo.MoveToDeadLetter(ctx, job); err != nil {
			p.logger.Error("move to dead letter", "err", err, "job_id", job.ID)
		}
		metrics.RecordJob(job.Type, "dead_letter", 0)
		return
	}

	start := time.Now()
	err := h(ctx, job)
	elapsed := time.Since(start)
	if err == nil {
		job.Status = StatusDone
		if upErr := p.repo.UpdateJob(ctx, job); upErr != nil {
			p.logger.Error("mark job done", "err", upErr, "job_id", job.ID)
		}
		metrics.RecordJob(job.Type, "done", elapsed)
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= job.MaxAttempts {
		job.Status = StatusFailed
		p.logger.Warn("job failed permanently", "job_id", job.ID, "type", job.Type, "attempts", job.Attempts, "err", err)
		if mvErr := p.repo.MoveToDeadLetter(ctx, job); mvErr != nil {
			p.logger.Error("move to dead letter", "err", mvErr, "job_id", job.ID)
		}
		metrics.RecordJob(job.Type, "dead_letter", elapsed)
		return
	}

	// schedule retry with backoff
	t := time.Now().Add(BackoffDuration(job.Attempts))
	job.NextTryAt = &t
	job.Status = StatusRetry
	if upErr := p.repo.UpdateJob(ctx, job); upErr != nil {
		p.logger.Error("update job for retry", "err", upErr, "job_id", job.ID)
	}
	metrics.RecordJob(job.Type, "retry", elapsed)
}

// Enqueue convenience helper that creates a job and persists it
func (p *WorkerPool) Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	j := &Job{Type: typ, Payload: b, Priority: priority, MaxAttempts: maxAttempts, ScheduledAt: time.Now()}
	return p.repo.Enqueue(ctx, j)
}
