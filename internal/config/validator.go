package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/scrollstitch/internal/frame"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "capture.dedupe_radius_px")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidFormats returns the list of valid capture formats
func ValidFormats() []string {
	return []string{"png", "jpeg", "jpg"}
}

// Upper bounds for numeric settings.
const (
	maxDedupeRadius   = 10000
	maxPendingLimit   = 1000
	maxIntervalMs     = 60000
	maxScrollDelayMs  = 10000
	maxSearchRadiusPx = 4096
	maxEdgeLimit      = 1 << 16
	maxDebounceMs     = 10000
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateCapture()...)
	errors = append(errors, c.validateAlign()...)
	errors = append(errors, c.validateOutput()...)
	errors = append(errors, c.validateWatch()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateCapture validates the CaptureConfig
func (c *Config) validateCapture() []ValidationError {
	var errors []ValidationError
	cc := c.Capture

	errors = append(errors, checkRange("capture.dedupe_radius_px", cc.DedupeRadiusPx, 0, maxDedupeRadius)...)
	errors = append(errors, checkRange("capture.min_step_px", cc.MinStepPx, 1, maxDedupeRadius)...)
	errors = append(errors, checkRange("capture.max_pending", cc.MaxPending, 1, maxPendingLimit)...)
	errors = append(errors, checkRange("capture.throttle_interval_ms", cc.ThrottleIntervalMs, 0, maxIntervalMs)...)
	errors = append(errors, checkRange("capture.retry_backoff_ms", cc.RetryBackoffMs, 0, maxIntervalMs)...)
	errors = append(errors, checkRange("capture.full_page_scroll_delay_ms", cc.FullPageScrollDelayMs, 0, maxScrollDelayMs)...)

	format, err := frame.ParseFormat(cc.Format)
	if err != nil {
		errors = append(errors, ValidationError{
			Field:   "capture.format",
			Value:   cc.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidFormats(), ", ")),
		})
	}
	// Quality only applies to lossy formats.
	if err == nil && format.Lossy() {
		errors = append(errors, checkRange("capture.quality", cc.Quality, 1, 100)...)
	}

	return errors
}

// validateAlign validates the AlignConfig
func (c *Config) validateAlign() []ValidationError {
	var errors []ValidationError
	ac := c.Align

	errors = append(errors, checkRange("align.sample_width", ac.SampleWidth, 1, maxEdgeLimit)...)
	errors = append(errors, checkRange("align.sample_step_x", ac.SampleStepX, 1, ac.SampleWidth)...)
	errors = append(errors, checkRange("align.search_radius_px", ac.SearchRadiusPx, 0, maxSearchRadiusPx)...)

	if ac.PenaltyWeight < 0 {
		errors = append(errors, ValidationError{
			Field:   "align.penalty_weight",
			Value:   ac.PenaltyWeight,
			Message: "must be non-negative",
		})
	}
	// Scores are mean absolute luma differences, so they never exceed 255.
	if ac.BadScoreThreshold <= 0 || ac.BadScoreThreshold > 255 {
		errors = append(errors, ValidationError{
			Field:   "align.bad_score_threshold",
			Value:   ac.BadScoreThreshold,
			Message: "must be greater than 0 and at most 255",
		})
	}

	return errors
}

// validateOutput validates the OutputConfig
func (c *Config) validateOutput() []ValidationError {
	var errors []ValidationError

	errors = append(errors, checkRange("output.max_edge_px", c.Output.MaxEdgePx, 1, maxEdgeLimit)...)

	if strings.ContainsRune(c.Output.Dir, 0) {
		errors = append(errors, ValidationError{
			Field:   "output.dir",
			Value:   c.Output.Dir,
			Message: "path contains invalid characters",
		})
	}

	return errors
}

// validateWatch validates the WatchConfig
func (c *Config) validateWatch() []ValidationError {
	var errors []ValidationError

	if c.Watch.Pattern == "" {
		errors = append(errors, ValidationError{
			Field:   "watch.pattern",
			Value:   c.Watch.Pattern,
			Message: "must not be empty",
		})
	} else if _, err := glob.Compile(c.Watch.Pattern); err != nil {
		errors = append(errors, ValidationError{
			Field:   "watch.pattern",
			Value:   c.Watch.Pattern,
			Message: fmt.Sprintf("invalid glob: %v", err),
		})
	}
	errors = append(errors, checkRange("watch.debounce_ms", c.Watch.DebounceMs, 0, maxDebounceMs)...)

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 1 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be at least 1",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// checkRange reports value when it falls outside [lo, hi].
func checkRange(field string, value, lo, hi int) []ValidationError {
	if value < lo {
		return []ValidationError{{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("must be at least %d", lo),
		}}
	}
	if value > hi {
		return []ValidationError{{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("exceeds maximum of %d", hi),
		}}
	}
	return nil
}
