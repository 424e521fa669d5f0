// Package config loads batch run settings from JSON and group tables from
// YAML. Every RunConfig field is optional; Get* accessors supply defaults.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/banshee-data/topofingerprint/internal/batch"
	"github.com/banshee-data/topofingerprint/internal/distance"
	"github.com/banshee-data/topofingerprint/internal/fsutil"
	"github.com/banshee-data/topofingerprint/internal/persistence"
	"github.com/banshee-data/topofingerprint/internal/rips"
)

// DefaultConfigPath is the path to the shipped run defaults file.
const DefaultConfigPath = "config/run.defaults.json"

// MaxFileSize bounds config and group files.
const MaxFileSize = 1 * 1024 * 1024

// Defaults applied by the Get* accessors.
const (
	DefaultRadius = 80.0
	DefaultMaxDim = 2
	DefaultOrder  = 1.0
)

// RunConfig is the on-disk form of a batch run's settings. Nil fields fall
// back to defaults, so partial files are safe.
type RunConfig struct {
	// Complex construction
	Radius       *float64 `json:"radius,omitempty"`
	MaxDim       *int     `json:"max_dim,omitempty"`
	MaxSimplices *int     `json:"max_simplices,omitempty"`

	// Distance round
	Dims       []int    `json:"dims,omitempty"`
	Bottleneck *bool    `json:"bottleneck,omitempty"`
	Norm       *string  `json:"norm,omitempty"`
	Order      *float64 `json:"order,omitempty"`

	// Scheduling
	Workers     *int    `json:"workers,omitempty"`
	TaskTimeout *string `json:"task_timeout,omitempty"` // duration string like "30s"

	// Point selection
	Selections []string `json:"selections,omitempty"`
	GroupsFile *string  `json:"groups_file,omitempty"`
}

// LoadRunConfig loads a RunConfig from a .json file of at most MaxFileSize
// bytes and validates it.
func LoadRunConfig(fsys fsutil.FileSystem, path string) (*RunConfig, error) {
	data, err := readBounded(fsys, path, ".json")
	if err != nil {
		return nil, err
	}
	cfg := &RunConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func readBounded(fsys fsutil.FileSystem, path string, exts ...string) ([]byte, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	ok := false
	for _, e := range exts {
		ok = ok || ext == e
	}
	if !ok {
		return nil, fmt.Errorf("config file must have %v extension, got %q", exts, ext)
	}
	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxFileSize)
	}
	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// Validate checks the values that are set.
func (c *RunConfig) Validate() error {
	if c.Radius != nil {
		r := *c.Radius
		if math.IsNaN(r) || r <= 0 || r >= persistence.EssentialDeath {
			return fmt.Errorf("radius must be in (0, %g), got %v", persistence.EssentialDeath, r)
		}
	}
	if c.MaxDim != nil && (*c.MaxDim < 0 || *c.MaxDim > rips.MaxSupportedDim) {
		return fmt.Errorf("max_dim must be between 0 and %d, got %d", rips.MaxSupportedDim, *c.MaxDim)
	}
	if c.MaxSimplices != nil && *c.MaxSimplices < 0 {
		return fmt.Errorf("max_simplices must be non-negative, got %d", *c.MaxSimplices)
	}
	for _, d := range c.Dims {
		if d < 0 || d > persistence.MaxDimension {
			return fmt.Errorf("dims entries must be between 0 and %d, got %d", persistence.MaxDimension, d)
		}
	}
	if c.Norm != nil {
		if _, err := distance.ParseNorm(*c.Norm); err != nil {
			return err
		}
	}
	if c.Order != nil {
		if err := (distance.Options{Order: *c.Order}).Validate(); err != nil {
			return err
		}
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.TaskTimeout != nil && *c.TaskTimeout != "" {
		d, err := time.ParseDuration(*c.TaskTimeout)
		if err != nil {
			return fmt.Errorf("invalid task_timeout '%s': %w", *c.TaskTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("task_timeout must be non-negative, got %s", d)
		}
	}
	return nil
}

// GetRadius returns the maximum edge length or the default.
func (c *RunConfig) GetRadius() float64 {
	if c.Radius == nil {
		return DefaultRadius
	}
	return *c.Radius
}

// GetMaxDim returns the maximum simplex dimension or the default.
func (c *RunConfig) GetMaxDim() int {
	if c.MaxDim == nil {
		return DefaultMaxDim
	}
	return *c.MaxDim
}

// GetMaxSimplices returns the complex size cap, 0 meaning the builder default.
func (c *RunConfig) GetMaxSimplices() int {
	if c.MaxSimplices == nil {
		return 0
	}
	return *c.MaxSimplices
}

// GetDims returns the compared dimensions or batch.DefaultDims.
func (c *RunConfig) GetDims() []int {
	if len(c.Dims) == 0 {
		return append([]int(nil), batch.DefaultDims...)
	}
	return append([]int(nil), c.Dims...)
}

// GetBottleneck returns whether bottleneck matrices are computed.
func (c *RunConfig) GetBottleneck() bool {
	if c.Bottleneck == nil {
		return false
	}
	return *c.Bottleneck
}

// GetNorm returns the ground norm, Euclidean when unset or invalid.
func (c *RunConfig) GetNorm() distance.Norm {
	if c.Norm == nil {
		return distance.NormEuclidean
	}
	n, err := distance.ParseNorm(*c.Norm)
	if err != nil {
		return distance.NormEuclidean
	}
	return n
}

// GetOrder returns the Wasserstein order or the default.
func (c *RunConfig) GetOrder() float64 {
	if c.Order == nil {
		return DefaultOrder
	}
	return *c.Order
}

// GetWorkers returns the pool size, 0 meaning one per CPU.
func (c *RunConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetTaskTimeout returns the per-task timeout, 0 when unset.
func (c *RunConfig) GetTaskTimeout() time.Duration {
	if c.TaskTimeout == nil || *c.TaskTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.TaskTimeout)
	if err != nil {
		return 0
	}
	return d
}

// GetSelections returns the selection specs, the whole cloud when unset.
func (c *RunConfig) GetSelections() []string {
	if len(c.Selections) == 0 {
		return []string{"all"}
	}
	return append([]string(nil), c.Selections...)
}

// GetGroupsFile returns the group table path, "" for the built-in table.
func (c *RunConfig) GetGroupsFile() string {
	if c.GroupsFile == nil {
		return ""
	}
	return *c.GroupsFile
}

// BatchConfig converts the settings into an orchestrator configuration.
func (c *RunConfig) BatchConfig() batch.Config {
	return batch.Config{
		Workers: c.GetWorkers(),
		Rips: rips.Options{
			MaxEdgeLength: c.GetRadius(),
			MaxDim:        c.GetMaxDim(),
			MaxSimplices:  c.GetMaxSimplices(),
		},
		Distance: distance.Options{
			Order:  c.GetOrder(),
			Ground: c.GetNorm(),
		},
		Bottleneck:  c.GetBottleneck(),
		Dims:        c.GetDims(),
		TaskTimeout: c.GetTaskTimeout(),
	}
}
