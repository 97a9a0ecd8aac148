package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"log/slog"

	"framestack/internal/aligner"
	"framestack/internal/config"
	"framestack/internal/logging"
	"framestack/internal/storage"
)

// JobType enumerates supported processing categories.
type JobType string

const (
	JobAlign JobType = "align"
)

// Job represents a single processing request.
type Job struct {
	ID        string         `json:"id"`
	Type      JobType        `json:"type"`
	InputPath string         `json:"input_path"`
	Output    string         `json:"output"`
	Options   map[string]any `json:"options,omitempty"`
}

// Result captures the outcome of a Job.
type Result struct {
	Job   Job
	Error error
	Meta  map[string]any
}

// Processor executes a job and returns a Result. The watcher reports
// progress and carries cancel requests for this job.
type Processor interface {
	Process(ctx context.Context, job Job, w aligner.Watcher) Result
}

// ErrUnknownJob is returned when a job id is not queued or running.
var ErrUnknownJob = errors.New("unknown job")

// Pipeline orchestrates job dispatch across workers.
type Pipeline struct {
	processor Processor
	log       *slog.Logger
	jobs      chan Job
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	stopOnce  sync.Once
	store     *storage.Store
	mu        sync.Mutex
	subs      map[int]chan Result
	nextSubID int
	watchers  map[string]*aligner.LogWatcher
}

// New creates a new Pipeline with the given concurrency. Jobs are executed
// by the alignment router configured from alignCfg.
func New(ctx context.Context, concurrency int, logger *slog.Logger, store *storage.Store, alignCfg config.Alignment) *Pipeline {
	return newPipeline(ctx, concurrency, logger, store, newRouter(logger, store, alignCfg))
}

func newPipeline(ctx context.Context, concurrency int, logger *slog.Logger, store *storage.Store, processor Processor) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pipeline{
		processor: processor,
		log:       logger,
		jobs:      make(chan Job, concurrency*2),
		cancel:    cancel,
		store:     store,
		subs:      make(map[int]chan Result),
		watchers:  make(map[string]*aligner.LogWatcher),
	}
	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	return p
}

// Submit adds a job to the processing queue.
func (p *Pipeline) Submit(job Job) error {
	if p.store != nil {
		optsJSON, _ := json.Marshal(job.Options)
		if err := p.store.RecordJobQueued(storage.JobRecord{
			ID:          job.ID,
			JobType:     string(job.Type),
			Status:      "queued",
			InputPath:   job.InputPath,
			OutputPath:  job.Output,
			OptionsJSON: string(optsJSON),
		}); err != nil {
			p.log.Warn("failed to record queued job", "id", job.ID, "error", err)
		}
	}

	p.mu.Lock()
	p.watchers[job.ID] = aligner.NewLogWatcher(p.log, job.ID)
	p.mu.Unlock()

	select {
	case p.jobs <- job:
		return nil
	default:
		p.forget(job.ID)
		if p.store != nil {
			_ = p.store.RecordJobResult(job.ID, "rejected", nil, "job queue is full")
		}
		return errors.New("job queue is full")
	}
}

// Cancel asks a queued or running job to stop. The job finishes with
// aligner.ErrCanceled at its next check.
func (p *Pipeline) Cancel(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.watchers[id]
	if !ok {
		return ErrUnknownJob
	}
	w.Cancel()
	return nil
}

// Progress reports the last progress of a queued or running job.
func (p *Pipeline) Progress(id string) (current, total int, err error) {
	p.mu.Lock()
	w, ok := p.watchers[id]
	p.mu.Unlock()
	if !ok {
		return 0, 0, ErrUnknownJob
	}
	current, total = w.Progress()
	return current, total, nil
}

// Stop signals workers to exit and waits for completion.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		close(p.jobs)
		p.wg.Wait()
		p.mu.Lock()
		for id, ch := range p.subs {
			close(ch)
			delete(p.subs, id)
		}
		p.mu.Unlock()
	})
}

func (p *Pipeline) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.run(ctx, job)
		}
	}
}

func (p *Pipeline) run(ctx context.Context, job Job) {
	start := time.Now()
	logging.LogJobStart(p.log, string(job.Type), job.ID, job.InputPath, job.Output, job.Options)

	p.mu.Lock()
	w := p.watchers[job.ID]
	p.mu.Unlock()
	if w == nil {
		w = aligner.NewLogWatcher(p.log, job.ID)
	}

	if p.store != nil {
		_ = p.store.RecordJobStart(job.ID)
	}
	res := p.processor.Process(ctx, job, w)
	duration := time.Since(start)
	p.forget(job.ID)

	status := "completed"
	if res.Error != nil {
		status = "failed"
		if errors.Is(res.Error, aligner.ErrCanceled) {
			status = "canceled"
		}
		logging.LogJobError(p.log, string(job.Type), job.ID, duration, res.Error, map[string]any{
			"input":   job.InputPath,
			"output":  job.Output,
			"options": job.Options,
		})
	} else {
		logging.LogJobComplete(p.log, string(job.Type), job.ID, duration, res.Meta)
	}
	if p.store != nil {
		_ = p.store.RecordJobResult(job.ID, status, res.Meta, errString(res.Error))
	}

	p.broadcast(res)
}

func (p *Pipeline) forget(id string) {
	p.mu.Lock()
	delete(p.watchers, id)
	p.mu.Unlock()
}

// Subscribe returns a channel for receiving job results and an unsubscribe function.
func (p *Pipeline) Subscribe() (<-chan Result, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSubID
	p.nextSubID++
	ch := make(chan Result, 8)
	p.subs[id] = ch
	unsub := func() {
		p.mu.Lock()
		if c, ok := p.subs[id]; ok {
			close(c)
			delete(p.subs, id)
		}
		p.mu.Unlock()
	}
	return ch, unsub
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (p *Pipeline) broadcast(res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.subs {
		select {
		case ch <- res:
		default:
			p.log.Warn("result channel full", "subscriber", id, "job", res.Job.ID)
		}
	}
}
