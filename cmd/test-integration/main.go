package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"framestack/internal/config"
	"framestack/internal/geom"
	"framestack/internal/imageio"
	"framestack/internal/logging"
	"framestack/internal/pipeline"
	"framestack/internal/plane"
	"framestack/internal/storage"
)

// shifts are the positions of each synthetic still relative to the first.
var shifts = []geom.Point[int]{{X: 0, Y: 0}, {X: 3, Y: -1}, {X: -2, Y: 2}, {X: 4, Y: 1}}

func main() {
	fmt.Println("Testing alignment through ImageMagick + SQLite")

	dir, err := os.MkdirTemp("", "framestack-integration-")
	if err != nil {
		log.Fatal("Failed to create work directory:", err)
	}
	defer os.RemoveAll(dir)

	imageio.Initialize()
	defer imageio.Terminate()

	var files []string
	for i, s := range shifts {
		path := filepath.Join(dir, fmt.Sprintf("still-%02d.tif", i))
		if err := imageio.Save(path, starField(96, 96, s)); err != nil {
			log.Fatal("Failed to write still:", err)
		}
		files = append(files, path)
	}
	fmt.Printf("Wrote %d stills to %s\n", len(files), dir)

	store, err := storage.New(filepath.Join(dir, "integration.db"))
	if err != nil {
		log.Fatal("Failed to create storage:", err)
	}
	defer store.Close()

	cfg := config.Default()
	cfg.Alignment.Movement = 0.2
	logger := logging.New("info", "text")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pipe := pipeline.New(ctx, 1, logger, store, cfg.Alignment)
	defer pipe.Stop()
	results, unsubscribe := pipe.Subscribe()
	defer unsubscribe()

	job := pipeline.Job{
		ID:     "integration",
		Type:   pipeline.JobAlign,
		Output: filepath.Join(dir, "composite.tif"),
		Options: map[string]any{
			"images": files,
		},
	}
	if err := pipe.Submit(job); err != nil {
		log.Fatal("Failed to submit job:", err)
	}

	select {
	case <-ctx.Done():
		log.Fatal("Timed out waiting for the alignment job")
	case res := <-results:
		if res.Error != nil {
			log.Fatal("Alignment failed:", res.Error)
		}
		fmt.Printf("Composite: %v (%vx%v)\n", res.Meta["output"], res.Meta["width"], res.Meta["height"])
	}

	positions, err := store.Positions(job.ID)
	if err != nil {
		log.Fatal("Failed to read positions:", err)
	}
	failed := 0
	for i, p := range positions {
		x, y := int(p.X-positions[0].X), int(p.Y-positions[0].Y)
		status := "ok"
		if x != shifts[i].X || y != shifts[i].Y {
			status = "MISMATCH"
			failed++
		}
		fmt.Printf("  %s: (%d,%d) want (%d,%d) %s\n", filepath.Base(p.FilePath), x, y, shifts[i].X, shifts[i].Y, status)
	}
	if failed > 0 {
		log.Fatalf("%d of %d stills misaligned", failed, len(positions))
	}
	fmt.Println("All stills aligned")
}

// starField renders a few Gaussian stars seen from a camera displaced by s.
func starField(w, h int, s geom.Point[int]) *plane.Image {
	stars := []struct{ x, y, sigma, peak float64 }{
		{30, 35, 4, 1},
		{60, 50, 3, 0.8},
		{45, 70, 5, 0.6},
	}
	return plane.NewImage(nil, plane.FromFunc(w, h, func(x, y int) float64 {
		v := 0.05
		for _, st := range stars {
			dx := float64(x+s.X) - st.x
			dy := float64(y+s.Y) - st.y
			v += st.peak * math.Exp(-(dx*dx+dy*dy)/(2*st.sigma*st.sigma))
		}
		return math.Min(v, 1)
	}))
}
