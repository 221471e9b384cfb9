package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/framestamp/engine/stamp"
)

const (
	// DefaultPath is used when FRAMESTAMP_CONFIG is not set.
	DefaultPath = "framestamp.toml"
	// PathEnv overrides the configuration file location.
	PathEnv = "FRAMESTAMP_CONFIG"

	DefaultImageFormat = "B8G8R8A8_UNORM"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the on-disk layer configuration.
type Config struct {
	Enabled  bool   `toml:"enabled"`
	LogLevel string `toml:"log_level"`

	// FenceTimeoutMS bounds the per-slot fence wait. Zero waits forever.
	FenceTimeoutMS int64  `toml:"fence_timeout_ms"`
	MaxSlots       uint32 `toml:"max_slots"`
	TargetWidth    uint32 `toml:"target_width"`
	TargetHeight   uint32 `toml:"target_height"`

	ImageFormat       string `toml:"image_format"`
	WaitStage         string `toml:"wait_stage"`
	LayoutTransitions bool   `toml:"layout_transitions"`

	// ShaderPath points at a stamp program, either SPIR-V (.spv) or WGSL
	// (.wgsl). Empty uses the built-in one.
	ShaderPath      string `toml:"shader_path"`
	MetricsInterval uint64 `toml:"metrics_interval"`
}

func Default() Config {
	opts := stamp.DefaultOptions()
	return Config{
		Enabled:           true,
		LogLevel:          "info",
		FenceTimeoutMS:    0,
		MaxSlots:          opts.MaxSlots,
		TargetWidth:       opts.TargetWidth,
		TargetHeight:      opts.TargetHeight,
		ImageFormat:       DefaultImageFormat,
		WaitStage:         opts.WaitStage.String(),
		LayoutTransitions: opts.LayoutTransitions,
		MetricsInterval:   opts.MetricsInterval,
	}
}

// Path returns the configuration file location.
func Path() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the file at path on top of the defaults. A missing file is not
// an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := Parse(data, &cfg); err != nil {
		return Default(), fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data into cfg and validates the result. Keys missing from
// data keep the values already in cfg.
func Parse(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		var serr *toml.StrictMissingError
		switch {
		case errors.As(err, &derr):
			row, col := derr.Position()
			return fmt.Errorf("%w: line %d column %d: %s", ErrInvalidConfig, row, col, derr.Error())
		case errors.As(err, &serr):
			return fmt.Errorf("%w: unknown keys:\n%s", ErrInvalidConfig, serr.String())
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.MaxSlots == 0 {
		errs = append(errs, errors.New("max_slots must be positive"))
	}
	if c.TargetWidth == 0 || c.TargetHeight == 0 {
		errs = append(errs, errors.New("target_width and target_height must be positive"))
	}
	if c.FenceTimeoutMS < 0 {
		errs = append(errs, errors.New("fence_timeout_ms must not be negative"))
	}
	if _, ok := stamp.ParsePipelineStage(c.WaitStage); !ok {
		errs = append(errs, fmt.Errorf("unknown wait_stage %q", c.WaitStage))
	}
	if !KnownImageFormat(c.ImageFormat) {
		errs = append(errs, fmt.Errorf("unsupported image_format %q", c.ImageFormat))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

var imageFormats = []string{
	"B8G8R8A8_UNORM",
	"B8G8R8A8_SRGB",
	"R8G8B8A8_UNORM",
	"R8G8B8A8_SRGB",
}

// KnownImageFormat reports whether name is a storage-capable swapchain
// format the layer can create views for. The VK_FORMAT_ prefix is optional.
func KnownImageFormat(name string) bool {
	name = strings.TrimPrefix(strings.ToUpper(name), "VK_FORMAT_")
	for _, f := range imageFormats {
		if f == name {
			return true
		}
	}
	return false
}

// Options converts the file settings into per-context options.
func (c Config) Options() stamp.Options {
	stage, _ := stamp.ParsePipelineStage(c.WaitStage)
	return stamp.Options{
		MaxSlots:          c.MaxSlots,
		TargetWidth:       c.TargetWidth,
		TargetHeight:      c.TargetHeight,
		FenceTimeout:      time.Duration(c.FenceTimeoutMS) * time.Millisecond,
		WaitStage:         stage,
		LayoutTransitions: c.LayoutTransitions,
		MetricsInterval:   c.MetricsInterval,
	}
}
