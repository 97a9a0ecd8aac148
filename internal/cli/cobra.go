package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"framestack/internal/config"
	"framestack/internal/pipeline"
	"framestack/internal/storage"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const version = "v0.3.0"

// NewRootCmd creates the root Cobra command
func NewRootCmd(cfg *config.Config, log *slog.Logger, store *storage.Store, pipe pipelineClient) *cobra.Command {
	return newRootCmd(NewRoot(pipe, cfg, log, store))
}

func newRootCmd(root *Root) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "framestack",
		Short: "Framestack aligns stacks of astronomical stills",
		Long: `Framestack finds the translation between overlapping stills, groups them
into frames and renders the aligned composite.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newAlignCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newWatchCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newAlignCmd(root *Root) *cobra.Command {
	var (
		output         string
		method         string
		movement       float64
		scale          float64
		maxLevel       int
		stillsPerFrame int
		fast           bool
	)

	cmd := &cobra.Command{
		Use:   "align <input_directory> [output_path]",
		Short: "Align a directory of stills into a composite",
		Long: `Align every still in a directory and render the composite.

Examples:
  # One still per frame
  framestack align /photos/m42/ -o m42.tif

  # Four exposures per frame, vertical drift only
  framestack align /photos/m42/ --stills-per-frame 4 --method vertical`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if len(args) > 1 {
				output = args[1]
			}

			root.log.Info("align command parsed",
				"input", input,
				"output", output,
				"method", method,
				"movement", movement,
				"stills_per_frame", stillsPerFrame,
			)

			options := map[string]any{"source": "cli"}
			if cmd.Flags().Changed("method") {
				options["method"] = method
			}
			if cmd.Flags().Changed("movement") {
				options["movement"] = movement
			}
			if cmd.Flags().Changed("scale") {
				options["scale"] = scale
			}
			if cmd.Flags().Changed("max-level") {
				options["maxLevel"] = maxLevel
			}
			if cmd.Flags().Changed("stills-per-frame") {
				options["stillsPerFrame"] = stillsPerFrame
			}
			if cmd.Flags().Changed("fast") {
				options["fast"] = fast
			}

			job := pipeline.Job{
				ID:        newID("align"),
				Type:      pipeline.JobAlign,
				InputPath: input,
				Output:    output,
				Options:   options,
			}

			ctx, stop := signalContext(cmd)
			defer stop()
			res, err := root.enqueueAndWait(ctx, job)
			if err != nil {
				return err
			}
			cmd.Printf("Composite written to %v (%vx%v, %v frames)\n",
				res.Meta["output"], res.Meta["width"], res.Meta["height"], res.Meta["frames"])
			return nil
		},
	}

	a := root.cfg.Alignment
	cmd.Flags().StringVarP(&output, "output", "o", root.cfg.Paths.DefaultOutput, "output file or directory")
	cmd.Flags().StringVar(&method, "method", a.Method, "search direction (both|vertical|horizontal)")
	cmd.Flags().Float64Var(&movement, "movement", a.Movement, "largest expected shift as a fraction of the image size")
	cmd.Flags().Float64Var(&scale, "scale", a.Scale, "downscale factor applied before searching")
	cmd.Flags().IntVar(&maxLevel, "max-level", a.MaxLevel, "deepest refinement level")
	cmd.Flags().IntVar(&stillsPerFrame, "stills-per-frame", a.StillsPerFrame, "consecutive stills that make up one frame")
	cmd.Flags().BoolVar(&fast, "fast", a.Fast, "score candidates on a sparse grid")

	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	var (
		addr     string
		watchDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start an HTTP server that accepts alignment jobs and streams their results.
Optionally watches a directory and queues new stills as they arrive.

Examples:
  framestack serve --addr :8080
  framestack serve --addr :8080 --watch /data/incoming`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			root.log.Info("starting server",
				"addr", addr,
				"watch", watchDir,
				"endpoints", []string{"/healthz", "/jobs", "/jobs/{id}", "/jobs/{id}/positions", "/stream", "/ws"},
			)

			if watchDir == "" {
				return root.serveFn(ctx, addr, root.store, root.pipeline, root.log)
			}

			settle, err := time.ParseDuration(root.cfg.Watch.SettleTime)
			if err != nil {
				return fmt.Errorf("watch.settle_time: %w", err)
			}
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return root.serveFn(ctx, addr, root.store, root.pipeline, root.log)
			})
			g.Go(func() error {
				return root.watchDir(ctx, watchDir, root.cfg.Watch.OutputDir, settle)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", root.cfg.Server.Addr, "server address (host:port)")
	cmd.Flags().StringVar(&watchDir, "watch", "", "directory to monitor for new stills")

	return cmd
}

func newWatchCmd(root *Root) *cobra.Command {
	var (
		output string
		settle string
	)

	cmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Align new stills as they land in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := root.cfg.Watch.Dir
			if len(args) > 0 {
				dir = args[0]
			}
			d, err := time.ParseDuration(settle)
			if err != nil {
				return fmt.Errorf("invalid settle time %q: %w", settle, err)
			}

			ctx, stop := signalContext(cmd)
			defer stop()
			return root.watchDir(ctx, dir, output, d)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", root.cfg.Watch.OutputDir, "output directory for composites")
	cmd.Flags().StringVar(&settle, "settle", root.cfg.Watch.SettleTime, "quiet period before a batch is queued")

	return cmd
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long:  "Show or validate framestack configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.configShow(cmd.OutOrStdout())
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.cfg.Validate(); err != nil {
				root.log.Error("configuration validation", "status", "invalid", "error", err)
				return err
			}
			root.log.Info("configuration validation", "status", "valid")
			cmd.Println("Configuration is valid")
			return nil
		},
	}

	cmd.AddCommand(showCmd, validateCmd)
	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("Framestack " + version)
		},
	}
}
