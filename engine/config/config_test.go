package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spaghettifunk/framestamp/engine/stamp"
)

func TestDefaultMatchesStampOptions(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if !cfg.Enabled || cfg.LogLevel != "info" {
		t.Errorf("defaults = %+v", cfg)
	}
	if got, want := cfg.Options(), stamp.DefaultOptions(); got != want {
		t.Errorf("Options() = %+v, want %+v", got, want)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
		check   func(t *testing.T, cfg Config)
	}{
		{
			name: "partial file keeps defaults",
			data: "max_slots = 4\nwait_stage = \"compute_shader\"\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.MaxSlots != 4 || cfg.WaitStage != "compute_shader" {
					t.Errorf("cfg = %+v", cfg)
				}
				if cfg.TargetWidth != stamp.DefaultTargetWidth || !cfg.LayoutTransitions {
					t.Errorf("defaults lost: %+v", cfg)
				}
			},
		},
		{
			name: "every key",
			data: `enabled = false
log_level = "debug"
fence_timeout_ms = 250
max_slots = 6
target_width = 64
target_height = 64
image_format = "VK_FORMAT_r8g8b8a8_srgb"
wait_stage = "all_commands"
layout_transitions = false
shader_path = "stamp.spv"
metrics_interval = 120
`,
			check: func(t *testing.T, cfg Config) {
				opts := cfg.Options()
				if cfg.Enabled || cfg.ShaderPath != "stamp.spv" || cfg.LogLevel != "debug" {
					t.Errorf("cfg = %+v", cfg)
				}
				want := stamp.Options{
					MaxSlots:          6,
					TargetWidth:       64,
					TargetHeight:      64,
					FenceTimeout:      250 * time.Millisecond,
					WaitStage:         stamp.PipelineStageAllCommands,
					LayoutTransitions: false,
					MetricsInterval:   120,
				}
				if opts != want {
					t.Errorf("Options() = %+v, want %+v", opts, want)
				}
			},
		},
		{name: "unknown key", data: "max_slot = 4\n", wantErr: "max_slot"},
		{name: "syntax error", data: "max_slots = = 4\n", wantErr: "line 1"},
		{name: "zero slots", data: "max_slots = 0\n", wantErr: "max_slots must be positive"},
		{name: "negative timeout", data: "fence_timeout_ms = -1\n", wantErr: "fence_timeout_ms"},
		{name: "unknown stage", data: "wait_stage = \"fragment\"\n", wantErr: "wait_stage"},
		{name: "unknown format", data: "image_format = \"D32_SFLOAT\"\n", wantErr: "image_format"},
		{name: "unknown log level", data: "log_level = \"chatty\"\n", wantErr: "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := Parse([]byte(tt.data), &cfg)
			if tt.wantErr != "" {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("error = %v, want %v", err, ErrInvalidConfig)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error %q does not mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "missing.toml"))
	if err != nil || cfg != Default() {
		t.Errorf("missing file: %+v, %v", cfg, err)
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("max_slots = 0\nenabled = false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(bad)
	if !errors.Is(err, ErrInvalidConfig) || !strings.Contains(err.Error(), bad) {
		t.Errorf("invalid file error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("invalid file returned %+v, want defaults", cfg)
	}

	good := filepath.Join(dir, "good.toml")
	if err := os.WriteFile(good, []byte("target_width = 32\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(good)
	if err != nil || cfg.TargetWidth != 32 {
		t.Errorf("good file: %+v, %v", cfg, err)
	}
}

func TestPath(t *testing.T) {
	t.Setenv(PathEnv, "")
	if got := Path(); got != DefaultPath {
		t.Errorf("Path() = %q, want %q", got, DefaultPath)
	}
	t.Setenv(PathEnv, "/etc/framestamp.toml")
	if got := Path(); got != "/etc/framestamp.toml" {
		t.Errorf("Path() = %q", got)
	}
}

func TestKnownImageFormat(t *testing.T) {
	for name, want := range map[string]bool{
		"B8G8R8A8_UNORM":           true,
		"b8g8r8a8_srgb":            true,
		"VK_FORMAT_R8G8B8A8_UNORM": true,
		"R16G16B16A16_SFLOAT":      false,
		"":                         false,
	} {
		if got := KnownImageFormat(name); got != want {
			t.Errorf("KnownImageFormat(%q) = %t, want %t", name, got, want)
		}
	}
}
