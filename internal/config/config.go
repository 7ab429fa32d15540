package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/scrollstitch/internal/align"
	"github.com/Iron-Ham/scrollstitch/internal/area"
	"github.com/Iron-Ham/scrollstitch/internal/browser"
	"github.com/Iron-Ham/scrollstitch/internal/frame"
	"github.com/Iron-Ham/scrollstitch/internal/fullpage"
	"github.com/Iron-Ham/scrollstitch/internal/logging"
	"github.com/Iron-Ham/scrollstitch/internal/luma"
	"github.com/Iron-Ham/scrollstitch/internal/session"
	"github.com/Iron-Ham/scrollstitch/internal/stitch"
	"github.com/Iron-Ham/scrollstitch/internal/throttle"
	"github.com/Iron-Ham/scrollstitch/internal/watch"
)

// EnvPrefix is the prefix of environment variables that override settings,
// e.g. SCROLLSTITCH_CAPTURE_FORMAT=jpeg.
const EnvPrefix = "SCROLLSTITCH"

// Config represents the complete scrollstitch configuration
type Config struct {
	Capture CaptureConfig `mapstructure:"capture"`
	Align   AlignConfig   `mapstructure:"align"`
	Output  OutputConfig  `mapstructure:"output"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CaptureConfig controls how frames are taken and kept
type CaptureConfig struct {
	// DedupeRadiusPx is the minimum scroll distance between two stored frames (default: 24)
	DedupeRadiusPx int `mapstructure:"dedupe_radius_px"`
	// MinStepPx is the smallest scroll delta a frame is assumed to add (default: 1)
	MinStepPx int `mapstructure:"min_step_px"`
	// MaxPending caps queued capture requests per session (default: 20)
	MaxPending int `mapstructure:"max_pending"`
	// ThrottleIntervalMs is the minimum gap between successful captures (default: 550)
	ThrottleIntervalMs int `mapstructure:"throttle_interval_ms"`
	// RetryBackoffMs is the wait before retrying a quota-rejected capture (default: 800)
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
	// Format is the image encoding: "png" or "jpeg" (default: "png")
	Format string `mapstructure:"format"`
	// Quality is the JPEG quality, 1-100 (default: 92). Ignored for PNG.
	Quality int `mapstructure:"quality"`
	// FullPageScrollDelayMs is how long full-page capture lets the page
	// settle after each scroll (default: 160)
	FullPageScrollDelayMs int `mapstructure:"full_page_scroll_delay_ms"`
}

// AlignConfig tunes seam refinement
type AlignConfig struct {
	// SampleWidth is the width luma samples are reduced to (default: 320)
	SampleWidth int `mapstructure:"sample_width"`
	// SampleStepX is the column stride when comparing rows (default: 3)
	SampleStepX int `mapstructure:"sample_step_x"`
	// SearchRadiusPx bounds how far a refined seam may move, in CSS pixels (default: 96)
	SearchRadiusPx int `mapstructure:"search_radius_px"`
	// PenaltyWeight is the per-row cost of straying from the expected overlap (default: 0.18)
	PenaltyWeight float64 `mapstructure:"penalty_weight"`
	// BadScoreThreshold is the worst score still trusted (default: 28)
	BadScoreThreshold float64 `mapstructure:"bad_score_threshold"`
}

// OutputConfig controls the finished images
type OutputConfig struct {
	// MaxEdgePx is the largest width or height a stitched image may have (default: 32767)
	MaxEdgePx int `mapstructure:"max_edge_px"`
	// Dir is the directory the Screenshots tree is created in.
	// Empty means the current directory. Supports ~ for home directory expansion.
	Dir string `mapstructure:"dir"`
}

// WatchConfig controls the directory-backed capture feed
type WatchConfig struct {
	// Pattern is a glob matched against new file names (default: "*.png")
	Pattern string `mapstructure:"pattern"`
	// DebounceMs is how long a file must stay unchanged before it is used (default: 50)
	DebounceMs int `mapstructure:"debounce_ms"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory the log file is written to. Empty logs to stderr.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			DedupeRadiusPx:        frame.DefaultDedupeRadius,
			MinStepPx:             stitch.DefaultMinStep,
			MaxPending:            session.DefaultMaxPending,
			ThrottleIntervalMs:    int(throttle.DefaultInterval / time.Millisecond),
			RetryBackoffMs:        int(throttle.DefaultBackoff / time.Millisecond),
			Format:                string(frame.FormatPNG),
			Quality:               frame.DefaultJPEGQuality,
			FullPageScrollDelayMs: int(fullpage.DefaultSettleDelay / time.Millisecond),
		},
		Align: AlignConfig{
			SampleWidth:       luma.DefaultMaxWidth,
			SampleStepX:       align.DefaultStepX,
			SearchRadiusPx:    align.DefaultSearchRadius,
			PenaltyWeight:     align.DefaultPenaltyWeight,
			BadScoreThreshold: align.DefaultBadScoreThreshold,
		},
		Output: OutputConfig{
			MaxEdgePx: stitch.DefaultMaxEdge,
			Dir:       "", // Empty means the current directory
		},
		Watch: WatchConfig{
			Pattern:    watch.DefaultPattern,
			DebounceMs: int(watch.DefaultDebounce / time.Millisecond),
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// ThrottleInterval returns the capture interval as a time.Duration
func (c *CaptureConfig) ThrottleInterval() time.Duration {
	return time.Duration(c.ThrottleIntervalMs) * time.Millisecond
}

// RetryBackoff returns the quota backoff as a time.Duration
func (c *CaptureConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

// ScrollDelay returns the full-page settle delay as a time.Duration
func (c *CaptureConfig) ScrollDelay() time.Duration {
	return time.Duration(c.FullPageScrollDelayMs) * time.Millisecond
}

// CaptureOptions returns the encoding requested from the browser.
// An unparseable format falls back to PNG; Validate reports it.
func (c *CaptureConfig) CaptureOptions() browser.CaptureOptions {
	format, err := frame.ParseFormat(c.Format)
	if err != nil {
		format = frame.FormatPNG
	}
	return browser.CaptureOptions{Format: format, Quality: c.Quality}
}

// Debounce returns the watch debounce as a time.Duration
func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// Rotation returns the log rotation settings
func (l *LoggingConfig) Rotation() logging.RotationConfig {
	return logging.RotationConfig{
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		Compress:   l.Compress,
	}
}

// AlignOptions returns the aligner settings
func (c *Config) AlignOptions() align.Options {
	return align.Options{
		StepX:             c.Align.SampleStepX,
		PenaltyWeight:     c.Align.PenaltyWeight,
		BadScoreThreshold: c.Align.BadScoreThreshold,
		SearchRadius:      c.Align.SearchRadiusPx,
	}
}

// StitchOptions returns the stitcher settings
func (c *Config) StitchOptions() stitch.Options {
	return stitch.Options{
		MinStep:     c.Capture.MinStepPx,
		MaxEdge:     c.Output.MaxEdgePx,
		SampleWidth: c.Align.SampleWidth,
		Align:       c.AlignOptions(),
	}
}

// SessionOptions returns the per-session settings
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		DedupeRadius: c.Capture.DedupeRadiusPx,
		MaxPending:   c.Capture.MaxPending,
		Capture:      c.Capture.CaptureOptions(),
	}
}

// FullPageOptions returns the full-page capture settings
func (c *Config) FullPageOptions() fullpage.Options {
	return fullpage.Options{
		SettleDelay:  c.Capture.ScrollDelay(),
		DedupeRadius: c.Capture.DedupeRadiusPx,
		Capture:      c.Capture.CaptureOptions(),
	}
}

// AreaOptions returns the area-crop settings
func (c *Config) AreaOptions() area.Options {
	capture := c.Capture.CaptureOptions()
	return area.Options{
		MaxEdge: c.Output.MaxEdgePx,
		Format:  capture.Format,
		Quality: capture.Quality,
	}
}

// WatchOptions returns the directory feed settings
func (c *Config) WatchOptions(logger *logging.Logger) watch.Options {
	return watch.Options{
		Pattern:  c.Watch.Pattern,
		Debounce: c.Watch.Debounce(),
		Logger:   logger,
	}
}

// ThrottleOptions returns the capture pacing settings
func (c *Config) ThrottleOptions(logger *logging.Logger) throttle.Options {
	return throttle.Options{
		Interval: c.Capture.ThrottleInterval(),
		Backoff:  c.Capture.RetryBackoff(),
		Logger:   logger,
	}
}

// ResolveOutputDir returns the directory screenshots are saved under.
// If Dir is empty, it returns baseDir.
// If Dir starts with ~, it expands to the user's home directory.
// If Dir is a relative path, it's resolved relative to baseDir.
func (o *OutputConfig) ResolveOutputDir(baseDir string) string {
	if o.Dir == "" {
		return baseDir
	}

	path := o.Dir

	// Expand ~ to home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Capture defaults
	viper.SetDefault("capture.dedupe_radius_px", defaults.Capture.DedupeRadiusPx)
	viper.SetDefault("capture.min_step_px", defaults.Capture.MinStepPx)
	viper.SetDefault("capture.max_pending", defaults.Capture.MaxPending)
	viper.SetDefault("capture.throttle_interval_ms", defaults.Capture.ThrottleIntervalMs)
	viper.SetDefault("capture.retry_backoff_ms", defaults.Capture.RetryBackoffMs)
	viper.SetDefault("capture.format", defaults.Capture.Format)
	viper.SetDefault("capture.quality", defaults.Capture.Quality)
	viper.SetDefault("capture.full_page_scroll_delay_ms", defaults.Capture.FullPageScrollDelayMs)

	// Align defaults
	viper.SetDefault("align.sample_width", defaults.Align.SampleWidth)
	viper.SetDefault("align.sample_step_x", defaults.Align.SampleStepX)
	viper.SetDefault("align.search_radius_px", defaults.Align.SearchRadiusPx)
	viper.SetDefault("align.penalty_weight", defaults.Align.PenaltyWeight)
	viper.SetDefault("align.bad_score_threshold", defaults.Align.BadScoreThreshold)

	// Output defaults
	viper.SetDefault("output.max_edge_px", defaults.Output.MaxEdgePx)
	viper.SetDefault("output.dir", defaults.Output.Dir)

	// Watch defaults
	viper.SetDefault("watch.pattern", defaults.Watch.Pattern)
	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// BindEnv makes every setting overridable from the environment:
// capture.format is read from SCROLLSTITCH_CAPTURE_FORMAT.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "scrollstitch")
	}
	// Fall back to ~/.config/scrollstitch
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scrollstitch"
	}
	return filepath.Join(home, ".config", "scrollstitch")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
