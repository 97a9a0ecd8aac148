package cli

import (
	"fmt"
	"io"
	"os"
)

func (r *Root) configShow(w io.Writer) error {
	cfgPath := os.Getenv("FRAMESTACK_CONFIG")
	if cfgPath == "" {
		cfgPath = "(default) ~/.config/framestack/config.json"
	}
	fmt.Fprintf(w, "Config file: %s\n", cfgPath)

	fmt.Fprintf(w, "\nPaths:\n")
	fmt.Fprintf(w, "  Database: %s\n", r.cfg.Paths.DatabasePath)
	fmt.Fprintf(w, "  Default output: %s\n", r.cfg.Paths.DefaultOutput)
	fmt.Fprintf(w, "  Parallel jobs: %d\n", r.cfg.Processing.ParallelJobs)

	a := r.cfg.Alignment
	fmt.Fprintf(w, "\nAlignment:\n")
	fmt.Fprintf(w, "  Method: %s\n", a.Method)
	fmt.Fprintf(w, "  Movement: %g\n", a.Movement)
	fmt.Fprintf(w, "  Scale: %g\n", a.Scale)
	fmt.Fprintf(w, "  Merge threshold: %g\n", a.MergeThreshold)
	fmt.Fprintf(w, "  Max level: %d\n", a.MaxLevel)
	fmt.Fprintf(w, "  Fast: %t\n", a.Fast)
	fmt.Fprintf(w, "  Stills per frame: %d\n", a.StillsPerFrame)

	fmt.Fprintf(w, "\nServer:\n")
	fmt.Fprintf(w, "  Address: %s\n", r.cfg.Server.Addr)
	fmt.Fprintf(w, "  Watch directory: %s (settle %s)\n", r.cfg.Watch.Dir, r.cfg.Watch.SettleTime)

	fmt.Fprintf(w, "\nLogging:\n")
	fmt.Fprintf(w, "  Level: %s\n", r.cfg.Logging.Level)
	fmt.Fprintf(w, "  Format: %s\n", r.cfg.Logging.Format)
	fmt.Fprintf(w, "  Directory: %s\n", r.cfg.Logging.LogDir)
	return nil
}
