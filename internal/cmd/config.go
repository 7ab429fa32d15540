package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/scrollstitch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify scrollstitch configuration",
	Long: `View or modify scrollstitch configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  scrollstitch config set capture.format jpeg
  scrollstitch config set capture.throttle_interval_ms 300
  scrollstitch config set output.dir ~/Pictures

The new value is validated together with the rest of the configuration
before the file is written.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/scrollstitch/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// settingKinds lists the keys config set accepts and how their values parse.
var settingKinds = map[string]string{
	"capture.dedupe_radius_px":          "int",
	"capture.min_step_px":               "int",
	"capture.max_pending":               "int",
	"capture.throttle_interval_ms":      "int",
	"capture.retry_backoff_ms":          "int",
	"capture.format":                    "string",
	"capture.quality":                   "int",
	"capture.full_page_scroll_delay_ms": "int",
	"align.sample_width":                "int",
	"align.sample_step_x":               "int",
	"align.search_radius_px":            "int",
	"align.penalty_weight":              "float",
	"align.bad_score_threshold":         "float",
	"output.max_edge_px":                "int",
	"output.dir":                        "string",
	"watch.pattern":                     "string",
	"watch.debounce_ms":                 "int",
	"logging.enabled":                   "bool",
	"logging.level":                     "string",
	"logging.dir":                       "string",
	"logging.max_size_mb":               "int",
	"logging.max_backups":               "int",
	"logging.compress":                  "bool",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(w, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(w, "# Config file: (none - using defaults)")
	}

	settings := make(map[string]any)
	for _, key := range viper.AllKeys() {
		if _, ok := settingKinds[key]; ok {
			setNested(settings, key, viper.Get(key))
		}
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// setNested stores value under a dotted key as nested maps.
func setNested(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			child = make(map[string]any)
			m[p] = child
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
}

func parseSetting(key, value string) (any, error) {
	kind, ok := settingKinds[key]
	if !ok {
		keys := make([]string, 0, len(settingKinds))
		for k := range settingKinds {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown configuration key: %s\nValid keys:\n  %s", key, strings.Join(keys, "\n  "))
	}

	switch kind {
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		return n, nil
	case "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected number", key)
		}
		return f, nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseSetting(key, args[1])
	if err != nil {
		return err
	}

	previous := viper.Get(key)
	viper.Set(key, typedValue)
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return err
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'scrollstitch config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigFile(config.Default())), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

// defaultConfigFile renders a commented config file holding d.
func defaultConfigFile(d *config.Config) string {
	return fmt.Sprintf(`# scrollstitch configuration

capture:
  # Frames closer than this many CSS pixels to a stored frame are skipped
  dedupe_radius_px: %d
  # Smallest scroll delta a frame is assumed to add
  min_step_px: %d
  # Capture requests queued per session before observations coalesce
  max_pending: %d
  # Minimum time between captures, and the wait after a rate-limited one
  throttle_interval_ms: %d
  retry_backoff_ms: %d
  # Image encoding: png or jpeg
  format: %s
  # JPEG quality (1-100)
  quality: %d
  # Settle time after each programmatic scroll in full-page capture
  full_page_scroll_delay_ms: %d

# Seam refinement (advanced)
align:
  sample_width: %d
  sample_step_x: %d
  search_radius_px: %d
  penalty_weight: %g
  bad_score_threshold: %g

output:
  # Largest width or height of a stitched image
  max_edge_px: %d
  # Where the Screenshots tree is created (empty: current directory)
  dir: "%s"

watch:
  # Glob for screenshot file names
  pattern: "%s"
  debounce_ms: %d

logging:
  enabled: %t
  # debug, info, warn, error
  level: %s
  # Log file directory (empty: stderr)
  dir: "%s"
  max_size_mb: %d
  max_backups: %d
  compress: %t
`,
		d.Capture.DedupeRadiusPx, d.Capture.MinStepPx, d.Capture.MaxPending,
		d.Capture.ThrottleIntervalMs, d.Capture.RetryBackoffMs, d.Capture.Format,
		d.Capture.Quality, d.Capture.FullPageScrollDelayMs,
		d.Align.SampleWidth, d.Align.SampleStepX, d.Align.SearchRadiusPx,
		d.Align.PenaltyWeight, d.Align.BadScoreThreshold,
		d.Output.MaxEdgePx, d.Output.Dir,
		d.Watch.Pattern, d.Watch.DebounceMs,
		d.Logging.Enabled, d.Logging.Level, d.Logging.Dir,
		d.Logging.MaxSizeMB, d.Logging.MaxBackups, d.Logging.Compress)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(w, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(w, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(w, "\nSearch paths:")
	fmt.Fprintf(w, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintln(w, "  2. ./config.yaml (current directory)")
	fmt.Fprintf(w, "\nEnvironment variables: %s_* (e.g., %s_CAPTURE_FORMAT)\n", config.EnvPrefix, config.EnvPrefix)
	return nil
}
