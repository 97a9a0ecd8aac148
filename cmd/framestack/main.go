package main

import (
	"context"
	"fmt"
	"os"

	"framestack/internal/cli"
	"framestack/internal/config"
	"framestack/internal/imageio"
	"framestack/internal/logging"
	"framestack/internal/pipeline"
	"framestack/internal/storage"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		return err
	}

	log, closer, err := logging.Setup(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to set up logging:", err)
		return err
	}
	defer closer.Close()

	store, err := storage.New(cfg.Paths.DatabasePath)
	if err != nil {
		log.Error("failed to open job store", "path", cfg.Paths.DatabasePath, "error", err)
		return err
	}
	defer store.Close()

	imageio.Initialize()
	defer imageio.Terminate()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipe := pipeline.New(ctx, cfg.Processing.ParallelJobs, log, store, cfg.Alignment)
	defer pipe.Stop()

	return cli.NewRootCmd(cfg, log, store, pipe).ExecuteContext(ctx)
}
