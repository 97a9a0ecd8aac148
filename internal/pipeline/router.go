package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"framestack/internal/aligner"
	"framestack/internal/config"
	"framestack/internal/container"
	"framestack/internal/fsutil"
	"framestack/internal/imageio"
	"framestack/internal/logging"
	"framestack/internal/plane"
	"framestack/internal/render"
	"framestack/internal/storage"
)

// router implements Processor and routes jobs to their concrete handlers.
type router struct {
	log   *slog.Logger
	store *storage.Store
	cfg   config.Alignment
	list  func(root string) ([]string, error)
	load  func(path string) (*plane.Image, error)
	save  func(path string, img *plane.Image) error
}

func newRouter(logger *slog.Logger, store *storage.Store, cfg config.Alignment) *router {
	return &router{
		log:   logger,
		store: store,
		cfg:   cfg,
		list:  fsutil.ListImages,
		load:  imageio.Load,
		save:  imageio.Save,
	}
}

func (r *router) Process(ctx context.Context, job Job, w aligner.Watcher) Result {
	switch job.Type {
	case JobAlign:
		return r.handleAlign(ctx, job, w)
	default:
		return Result{Job: job, Error: fmt.Errorf("unknown job type: %s", job.Type)}
	}
}

// AlignOptions converts the alignment config section into search options.
func AlignOptions(cfg config.Alignment, logger *slog.Logger) (aligner.Options, error) {
	method, err := aligner.ParseMethod(cfg.Method)
	if err != nil {
		return aligner.Options{}, err
	}
	return aligner.Options{
		Method:         method,
		Scale:          cfg.Scale,
		Movement:       cfg.Movement,
		MergeThreshold: cfg.MergeThreshold,
		MaxLevel:       cfg.MaxLevel,
		Fast:           cfg.Fast,
		Workers:        cfg.Workers,
		Logger:         logger,
	}, nil
}

// jobConfig applies per-job overrides on top of the configured defaults.
func (r *router) jobConfig(options map[string]any) config.Alignment {
	cfg := r.cfg
	if v, ok := options["method"].(string); ok && v != "" {
		cfg.Method = v
	}
	if v := getFloat64Option(options, "movement"); v > 0 {
		cfg.Movement = v
	}
	if v := getFloat64Option(options, "scale"); v > 0 {
		cfg.Scale = v
	}
	if v := getIntOption(options, "stillsPerFrame"); v > 0 {
		cfg.StillsPerFrame = v
	}
	if v := getIntOption(options, "maxLevel"); v > 0 {
		cfg.MaxLevel = v
	}
	if v, ok := options["fast"].(bool); ok {
		cfg.Fast = v
	}
	return cfg
}

func (r *router) handleAlign(ctx context.Context, job Job, w aligner.Watcher) Result {
	cfg := r.jobConfig(job.Options)
	log := r.log.With("job_id", job.ID)
	opts, err := AlignOptions(cfg, log)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	files := getStringsOption(job.Options, "images")
	if len(files) == 0 {
		files, err = r.list(job.InputPath)
		if err != nil {
			return Result{Job: job, Error: fmt.Errorf("list images: %w", err)}
		}
	}
	if len(files) == 0 {
		return Result{Job: job, Error: errors.New("no images to align")}
	}
	frames, err := fsutil.GroupFrames(files, cfg.StillsPerFrame)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	c := container.New()
	for i, frame := range frames {
		if err := r.alignFrame(ctx, c, i, frame, opts, w); err != nil {
			return Result{Job: job, Error: fmt.Errorf("frame %d: %w", i, err)}
		}
	}
	logging.LogProcessingStep(r.log, job.ID, "stills", "aligned", map[string]any{
		"frames": len(frames),
		"stills": len(files),
	})

	if len(frames) > 1 {
		if err := aligner.NewFrameAligner(c, opts, nil).Align(ctx, w); err != nil {
			return Result{Job: job, Error: err}
		}
		logging.LogProcessingStep(r.log, job.ID, "frames", "aligned", nil)
	}

	composite := render.FloatRender{ScaleX: 1, ScaleY: 1}.Render(container.FromContainer(c), w)
	output := outputPath(job)
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return Result{Job: job, Error: fmt.Errorf("create output directory: %w", err)}
	}
	if err := r.save(output, composite); err != nil {
		return Result{Job: job, Error: err}
	}

	positions := stillPositions(c)
	if err := r.store.RecordPositions(job.ID, positions); err != nil {
		r.log.Warn("failed to record still positions", "job_id", job.ID, "error", err)
	}

	size := composite.Size()
	return Result{Job: job, Meta: map[string]any{
		"output":    output,
		"frames":    len(frames),
		"stills":    len(files),
		"width":     size.Width,
		"height":    size.Height,
		"positions": positions,
	}}
}

// alignFrame loads the stills of one frame, aligns them against each other
// and adds them to c as group index.
func (r *router) alignFrame(ctx context.Context, c *container.ImageContainer, index int, files []string, opts aligner.Options, w aligner.Watcher) error {
	stills := container.New()
	for _, f := range files {
		img, err := r.load(f)
		if err != nil {
			return err
		}
		stills.AddItem(container.ImageItem{Image: img, Frame: index, Name: f})
	}

	if stills.Count() > 1 {
		a := aligner.NewRecursiveAligner(stills, opts)
		a.AddImages()
		if err := a.Align(ctx, w); err != nil {
			return err
		}
	}

	c.AddGroup(fmt.Sprintf("frame-%d", index))
	for _, loc := range stills.Locators() {
		c.AddItem(*stills.Item(loc))
	}
	return nil
}

func outputPath(job Job) string {
	if filepath.Ext(job.Output) != "" {
		return job.Output
	}
	return filepath.Join(job.Output, fmt.Sprintf("framestack-%s.tif", job.ID))
}

func stillPositions(c *container.ImageContainer) []storage.StillPosition {
	out := make([]storage.StillPosition, 0, c.Count())
	for _, loc := range c.Locators() {
		item := c.Item(loc)
		out = append(out, storage.StillPosition{
			FilePath: item.Name,
			Frame:    item.Frame,
			X:        item.Offset.X,
			Y:        item.Offset.Y,
		})
	}
	return out
}

// Helper functions to safely extract typed options from job.Options map.
// Numbers decoded from JSON arrive as float64.
func getFloat64Option(options map[string]any, key string) float64 {
	switch v := options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func getIntOption(options map[string]any, key string) int {
	switch v := options[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func getStringsOption(options map[string]any, key string) []string {
	switch v := options[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
