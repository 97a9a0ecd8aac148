package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultConfigPath = "~/.config/framestack/config.json"
	defaultParallel   = 2
)

// Config holds user-editable settings.
type Config struct {
	Processing Processing `json:"processing"`
	Logging    Logging    `json:"logging"`
	Paths      Paths      `json:"paths"`
	Alignment  Alignment  `json:"alignment"`
	Server     Server     `json:"server"`
	Watch      Watch      `json:"watch"`
}

// Processing captures execution preferences.
type Processing struct {
	ParallelJobs int `json:"parallel_jobs"`
}

// Logging controls logging verbosity and destinations.
type Logging struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // text, json
	FileOutput bool   `json:"file_output"` // Enable file logging
	LogDir     string `json:"log_dir"`
}

// Paths configures default input/output locations.
type Paths struct {
	DefaultInput  string `json:"default_input"`
	DefaultOutput string `json:"default_output"`
	DatabasePath  string `json:"database_path"`
}

// Alignment tunes the offset search and the frame grouping.
type Alignment struct {
	Method         string  `json:"method"` // both, vertical, horizontal
	Scale          float64 `json:"scale"`
	Movement       float64 `json:"movement"`
	MergeThreshold float64 `json:"merge_threshold"`
	MaxLevel       int     `json:"max_level"`
	Fast           bool    `json:"fast"`
	Workers        int     `json:"workers"` // 0 uses GOMAXPROCS
	StillsPerFrame int     `json:"stills_per_frame"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `json:"addr"`
}

// Watch configures the directory watcher.
type Watch struct {
	Dir        string `json:"dir"`
	OutputDir  string `json:"output_dir"`
	SettleTime string `json:"settle_time"` // quiet period before a batch is queued
}

// Load reads configuration from disk, falling back to sensible defaults.
func Load() (*Config, error) {
	configPath := os.Getenv("FRAMESTACK_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	return LoadFile(configPath)
}

// LoadFile decodes path over the defaults. A missing file yields the
// defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	expanded, err := expandUser(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", expanded, err)
	}

	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	a := c.Alignment
	switch strings.ToLower(a.Method) {
	case "", "both", "vertical", "ver", "horizontal", "hor":
	default:
		return fmt.Errorf("alignment.method: unknown method %q", a.Method)
	}
	if a.Scale <= 0 {
		return fmt.Errorf("alignment.scale must be positive, got %v", a.Scale)
	}
	if a.Movement < 0 || a.Movement > 1 {
		return fmt.Errorf("alignment.movement must be within [0, 1], got %v", a.Movement)
	}
	if a.MaxLevel < 1 {
		return fmt.Errorf("alignment.max_level must be at least 1, got %d", a.MaxLevel)
	}
	if a.StillsPerFrame < 1 {
		return fmt.Errorf("alignment.stills_per_frame must be at least 1, got %d", a.StillsPerFrame)
	}
	if c.Processing.ParallelJobs < 1 {
		return fmt.Errorf("processing.parallel_jobs must be at least 1, got %d", c.Processing.ParallelJobs)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Processing: Processing{
			ParallelJobs: defaultParallel,
		},
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			FileOutput: false,
			LogDir:     "./logs",
		},
		Paths: Paths{
			DefaultInput:  ".",
			DefaultOutput: "./output",
			DatabasePath:  filepath.Join(os.TempDir(), "framestack.db"),
		},
		Alignment: Alignment{
			Method:         "both",
			Scale:          1,
			Movement:       0.75,
			MergeThreshold: 24.0 / 256.0,
			MaxLevel:       6,
			StillsPerFrame: 1,
		},
		Server: Server{
			Addr: ":8080",
		},
		Watch: Watch{
			Dir:        ".",
			OutputDir:  "./output",
			SettleTime: "2s",
		},
	}
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}
