package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/scrollstitch/internal/align"
	"github.com/Iron-Ham/scrollstitch/internal/area"
	"github.com/Iron-Ham/scrollstitch/internal/frame"
	"github.com/Iron-Ham/scrollstitch/internal/session"
	"github.com/Iron-Ham/scrollstitch/internal/stitch"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Verify default capture config
	if cfg.Capture.DedupeRadiusPx != 24 {
		t.Errorf("Capture.DedupeRadiusPx = %d, want 24", cfg.Capture.DedupeRadiusPx)
	}
	if cfg.Capture.MinStepPx != 1 {
		t.Errorf("Capture.MinStepPx = %d, want 1", cfg.Capture.MinStepPx)
	}
	if cfg.Capture.MaxPending != 20 {
		t.Errorf("Capture.MaxPending = %d, want 20", cfg.Capture.MaxPending)
	}
	if cfg.Capture.ThrottleIntervalMs != 550 {
		t.Errorf("Capture.ThrottleIntervalMs = %d, want 550", cfg.Capture.ThrottleIntervalMs)
	}
	if cfg.Capture.RetryBackoffMs != 800 {
		t.Errorf("Capture.RetryBackoffMs = %d, want 800", cfg.Capture.RetryBackoffMs)
	}
	if cfg.Capture.Format != "png" {
		t.Errorf("Capture.Format = %q, want %q", cfg.Capture.Format, "png")
	}
	if cfg.Capture.Quality != 92 {
		t.Errorf("Capture.Quality = %d, want 92", cfg.Capture.Quality)
	}
	if cfg.Capture.FullPageScrollDelayMs != 160 {
		t.Errorf("Capture.FullPageScrollDelayMs = %d, want 160", cfg.Capture.FullPageScrollDelayMs)
	}

	// Verify default align config
	if cfg.Align.SampleWidth != 320 {
		t.Errorf("Align.SampleWidth = %d, want 320", cfg.Align.SampleWidth)
	}
	if cfg.Align.SampleStepX != 3 {
		t.Errorf("Align.SampleStepX = %d, want 3", cfg.Align.SampleStepX)
	}
	if cfg.Align.SearchRadiusPx != 96 {
		t.Errorf("Align.SearchRadiusPx = %d, want 96", cfg.Align.SearchRadiusPx)
	}
	if cfg.Align.PenaltyWeight != 0.18 {
		t.Errorf("Align.PenaltyWeight = %v, want 0.18", cfg.Align.PenaltyWeight)
	}
	if cfg.Align.BadScoreThreshold != 28 {
		t.Errorf("Align.BadScoreThreshold = %v, want 28", cfg.Align.BadScoreThreshold)
	}

	// Verify default output config
	if cfg.Output.MaxEdgePx != 32767 {
		t.Errorf("Output.MaxEdgePx = %d, want 32767", cfg.Output.MaxEdgePx)
	}

	// Verify default logging config
	if !cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be true by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default() should validate, got %v", ValidationErrors(errs))
	}
}

func TestCaptureConfig_Durations(t *testing.T) {
	tests := []struct {
		ms       int
		expected time.Duration
	}{
		{550, 550 * time.Millisecond},
		{1000, 1 * time.Second},
		{0, 0},
	}

	for _, tt := range tests {
		cfg := CaptureConfig{ThrottleIntervalMs: tt.ms, RetryBackoffMs: tt.ms, FullPageScrollDelayMs: tt.ms}
		if got := cfg.ThrottleInterval(); got != tt.expected {
			t.Errorf("ThrottleInterval() with %dms = %v, want %v", tt.ms, got, tt.expected)
		}
		if got := cfg.RetryBackoff(); got != tt.expected {
			t.Errorf("RetryBackoff() with %dms = %v, want %v", tt.ms, got, tt.expected)
		}
		if got := cfg.ScrollDelay(); got != tt.expected {
			t.Errorf("ScrollDelay() with %dms = %v, want %v", tt.ms, got, tt.expected)
		}
	}
}

func TestCaptureConfig_CaptureOptions(t *testing.T) {
	tests := []struct {
		format string
		want   frame.Format
	}{
		{"png", frame.FormatPNG},
		{"jpeg", frame.FormatJPEG},
		{"jpg", frame.FormatJPEG},
		{"", frame.FormatPNG},
		{"bmp", frame.FormatPNG},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cfg := CaptureConfig{Format: tt.format, Quality: 80}
			opts := cfg.CaptureOptions()
			if opts.Format != tt.want {
				t.Errorf("Format = %q, want %q", opts.Format, tt.want)
			}
			if opts.Quality != 80 {
				t.Errorf("Quality = %d, want 80", opts.Quality)
			}
		})
	}
}

func TestConfig_DomainOptions(t *testing.T) {
	cfg := Default()

	if got, want := cfg.AlignOptions(), align.DefaultOptions(); got != want {
		t.Errorf("AlignOptions() = %+v, want %+v", got, want)
	}
	if got, want := cfg.StitchOptions(), stitch.DefaultOptions(); got != want {
		t.Errorf("StitchOptions() = %+v, want %+v", got, want)
	}
	if got, want := cfg.SessionOptions(), session.DefaultOptions(); got.DedupeRadius != want.DedupeRadius ||
		got.MaxPending != want.MaxPending || got.Capture.Format != want.Capture.Format {
		t.Errorf("SessionOptions() = %+v, want %+v", got, want)
	}

	fp := cfg.FullPageOptions()
	if fp.SettleDelay != 160*time.Millisecond || fp.DedupeRadius != 24 || fp.Capture.Format != frame.FormatPNG {
		t.Errorf("FullPageOptions() = %+v", fp)
	}

	th := cfg.ThrottleOptions(nil)
	if th.Interval != 550*time.Millisecond || th.Backoff != 800*time.Millisecond {
		t.Errorf("ThrottleOptions() = %+v", th)
	}

	rot := cfg.Logging.Rotation()
	if rot.MaxSizeMB != 10 || rot.MaxBackups != 3 || rot.Compress {
		t.Errorf("Rotation() = %+v", rot)
	}
	if cfg.Watch.Debounce() != 50*time.Millisecond {
		t.Errorf("Debounce() = %v, want 50ms", cfg.Watch.Debounce())
	}

	ao, def := cfg.AreaOptions(), area.DefaultOptions()
	if ao.MaxEdge != def.MaxEdge || ao.Format != def.Format || ao.Quality != frame.DefaultJPEGQuality {
		t.Errorf("AreaOptions() = %+v", ao)
	}
	w := cfg.WatchOptions(nil)
	if w.Pattern != "*.png" || w.Debounce != 50*time.Millisecond {
		t.Errorf("WatchOptions() = %+v", w)
	}
}

func TestOutputConfig_ResolveOutputDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		name string
		dir  string
		want string
	}{
		{"empty uses base", "", "/work"},
		{"relative", "shots", "/work/shots"},
		{"absolute", "/var/shots", "/var/shots"},
		{"home", "~", home},
		{"under home", "~/Pictures", filepath.Join(home, "Pictures")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := OutputConfig{Dir: tt.dir}
			if got := cfg.ResolveOutputDir("/work"); got != tt.want {
				t.Errorf("ResolveOutputDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		result := ConfigDir()
		expected := "/custom/config/scrollstitch"
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		result := ConfigDir()

		// Should be based on home directory
		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "scrollstitch")
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	result := ConfigFile()
	expected := "/custom/config/scrollstitch/config.yaml"
	if result != expected {
		t.Errorf("ConfigFile() = %q, want %q", result, expected)
	}
}

func TestGet(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	// Get() should return defaults when no config file exists
	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Capture.DedupeRadiusPx != 24 {
		t.Errorf("Get().Capture.DedupeRadiusPx = %d, want 24", cfg.Capture.DedupeRadiusPx)
	}
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `capture:
  format: jpeg
  quality: 75
  throttle_interval_ms: 300
align:
  bad_score_threshold: 20
watch:
  pattern: "frame_*.png"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Capture.Format != "jpeg" || cfg.Capture.Quality != 75 {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if cfg.Capture.ThrottleInterval() != 300*time.Millisecond {
		t.Errorf("ThrottleInterval() = %v", cfg.Capture.ThrottleInterval())
	}
	if cfg.Align.BadScoreThreshold != 20 {
		t.Errorf("BadScoreThreshold = %v, want 20", cfg.Align.BadScoreThreshold)
	}
	if cfg.Watch.Pattern != "frame_*.png" {
		t.Errorf("Watch.Pattern = %q", cfg.Watch.Pattern)
	}
	// Untouched keys keep their defaults.
	if cfg.Capture.DedupeRadiusPx != 24 {
		t.Errorf("DedupeRadiusPx = %d, want 24", cfg.Capture.DedupeRadiusPx)
	}
}

func TestLoad_Env(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()
	BindEnv()

	t.Setenv("SCROLLSTITCH_CAPTURE_MAX_PENDING", "5")
	t.Setenv("SCROLLSTITCH_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Capture.MaxPending != 5 {
		t.Errorf("MaxPending = %d, want 5", cfg.Capture.MaxPending)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()
	viper.Set("capture.max_pending", 0)

	_, err := Load()
	if err == nil {
		t.Fatal("Load should reject max_pending 0")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok || len(verrs) != 1 || verrs[0].Field != "capture.max_pending" {
		t.Errorf("err = %v", err)
	}
}
