package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"framestack/internal/config"
	"framestack/internal/pipeline"
	"framestack/internal/server"
	"framestack/internal/storage"
	"framestack/internal/watch"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type pipelineClient interface {
	server.Jobs
}

type serverFunc func(ctx context.Context, addr string, store *storage.Store, pipe pipelineClient, log *slog.Logger) error

func defaultServe(ctx context.Context, addr string, store *storage.Store, pipe pipelineClient, log *slog.Logger) error {
	return server.NewServer(addr, store, pipe, log).Start(ctx)
}

// Root wires CLI commands to the pipeline.
type Root struct {
	pipeline pipelineClient
	cfg      *config.Config
	log      *slog.Logger
	store    *storage.Store
	serveFn  serverFunc
}

// NewRoot constructs the shared state of all commands.
func NewRoot(pl pipelineClient, cfg *config.Config, logger *slog.Logger, store *storage.Store) *Root {
	return &Root{
		pipeline: pl,
		cfg:      cfg,
		log:      logger,
		store:    store,
		serveFn:  defaultServe,
	}
}

func (r *Root) enqueueAndWait(ctx context.Context, job pipeline.Job) (pipeline.Result, error) {
	resCh, unsubscribe := r.pipeline.Subscribe()
	defer unsubscribe()
	if err := r.enqueue(ctx, job); err != nil {
		return pipeline.Result{}, err
	}
	for {
		select {
		case <-ctx.Done():
			if err := r.pipeline.Cancel(job.ID); err != nil {
				r.log.Debug("cancel after interrupt", "id", job.ID, "error", err)
			}
			return pipeline.Result{}, ctx.Err()
		case res, ok := <-resCh:
			if !ok {
				return pipeline.Result{}, fmt.Errorf("pipeline stopped before completion")
			}
			if res.Job.ID == job.ID {
				return res, res.Error
			}
		}
	}
}

func (r *Root) enqueue(ctx context.Context, job pipeline.Job) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := r.pipeline.Submit(job); err != nil {
		return err
	}

	r.log.Info("job queued", "type", job.Type, "id", job.ID, "input", job.InputPath)
	return nil
}

// watchDir queues one alignment job per settled batch of new stills until
// ctx is done.
func (r *Root) watchDir(ctx context.Context, dir, output string, settle time.Duration) error {
	w, err := watch.New(dir, settle, r.log)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(ctx)
	})
	g.Go(func() error {
		for batch := range w.Batches {
			job := pipeline.Job{
				ID:        newID("watch"),
				Type:      pipeline.JobAlign,
				InputPath: dir,
				Output:    output,
				Options: map[string]any{
					"images": batch.Files,
					"source": "watch",
				},
			}
			if err := r.enqueue(ctx, job); err != nil {
				r.log.Warn("failed to queue batch", "files", len(batch.Files), "error", err)
			}
		}
		return nil
	})
	return g.Wait()
}

func newID(prefix string) string {
	id := uuid.NewString()
	return fmt.Sprintf("%s-%s", prefix, strings.SplitN(id, "-", 2)[0])
}
