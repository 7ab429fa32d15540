// Package errors provides centralized error definitions and error handling utilities
// for scrollstitch. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - SessionError: errors related to capture session lifecycle
//   - CaptureError: errors from the raw capture primitive (quota, access)
//   - StitchError: errors raised while compositing frames
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//
// # Usage
//
//	err := errors.NewStitchError("canvas exceeds max edge", errors.ErrOutputTooLarge).
//		WithDimensions(1280, 40000)
//
//	if errors.Is(err, errors.ErrOutputTooLarge) { ... }
//	if errors.IsRetryable(err) { ... }
//	fmt.Println(errors.FriendlyMessage(err))
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is   = errors.Is
	As   = errors.As
	New  = errors.New
	Join = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Session-related sentinel errors
var (
	// ErrInvalidPageGeometry indicates the page reported a zero-sized viewport.
	ErrInvalidPageGeometry = New("invalid page geometry")
	// ErrNoFramesCaptured indicates a session finished without any stored frame.
	ErrNoFramesCaptured = New("no frames captured")
	// ErrSessionNotActive indicates there is no active session for the tab.
	ErrSessionNotActive = New("capture session is not active")
	// ErrSessionClosed indicates the session was finished or cancelled while
	// an operation was in flight.
	ErrSessionClosed = New("capture session closed")
)

// Capture-related sentinel errors
var (
	// ErrCaptureQuotaExceeded indicates the raw capture primitive rejected the
	// call because its per-second quota was exhausted. It is transient.
	ErrCaptureQuotaExceeded = New("capture quota exceeded")
	// ErrCaptureAccessDenied indicates the page cannot be captured at all.
	ErrCaptureAccessDenied = New("capture access denied")
)

// Stitch-related sentinel errors
var (
	// ErrNoFramesToStitch indicates the stitcher was given an empty frame list.
	ErrNoFramesToStitch = New("no frames to stitch")
	// ErrOutputTooLarge indicates the composited surface exceeds the max edge.
	ErrOutputTooLarge = New("output too large")
	// ErrAreaTooSmall indicates an area selection below the minimum size.
	ErrAreaTooSmall = New("selected area is too small")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// StitchingError is the base interface for all scrollstitch errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type StitchingError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// formatPrefixed renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) formatPrefixed(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// SessionError represents errors related to capture session lifecycle.
//
// Example:
//
//	err := errors.NewSessionError("finish failed", errors.ErrNoFramesCaptured).
//		WithTabID(42).WithSessionID("5f1c...")
//	fmt.Println(err) // "session error [tab=42, session=5f1c...]: finish failed: no frames captured"
type SessionError struct {
	baseError
	TabID     int
	SessionID string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithTabID adds a tab ID to the error context.
func (e *SessionError) WithTabID(id int) *SessionError {
	e.TabID = id
	return e
}

// WithSessionID adds a session ID to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// WithSeverity sets the error severity.
func (e *SessionError) WithSeverity(s Severity) *SessionError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.TabID != 0 {
		parts = append(parts, fmt.Sprintf("tab=%d", e.TabID))
	}
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	return e.formatPrefixed("session error", parts)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// CaptureError represents a failure of the raw capture primitive.
// Quota rejections are retryable; access denials are not.
//
// Example:
//
//	err := errors.NewCaptureError("capture rejected", errors.ErrCaptureQuotaExceeded).
//		WithWindowID(3).WithAttempts(2)
type CaptureError struct {
	baseError
	WindowID int
	Attempts int
}

// NewCaptureError creates a new CaptureError. Retryability is derived from
// the cause: only quota rejections are retryable. Access denials are
// critical since no later capture of the page can succeed.
func NewCaptureError(message string, cause error) *CaptureError {
	severity := SeverityWarning
	if errors.Is(cause, ErrCaptureAccessDenied) {
		severity = SeverityCritical
	}
	return &CaptureError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   severity,
			retryable:  errors.Is(cause, ErrCaptureQuotaExceeded),
			userFacing: errors.Is(cause, ErrCaptureAccessDenied),
		},
	}
}

// WithWindowID adds a window ID to the error context.
func (e *CaptureError) WithWindowID(id int) *CaptureError {
	e.WindowID = id
	return e
}

// WithAttempts records how many capture calls were made.
func (e *CaptureError) WithAttempts(n int) *CaptureError {
	e.Attempts = n
	return e
}

// WithRetryable overrides whether the error is retryable.
func (e *CaptureError) WithRetryable(r bool) *CaptureError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *CaptureError) Error() string {
	var parts []string
	if e.WindowID != 0 {
		parts = append(parts, fmt.Sprintf("window=%d", e.WindowID))
	}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts=%d", e.Attempts))
	}
	return e.formatPrefixed("capture error", parts)
}

// Is checks if this error matches the target.
func (e *CaptureError) Is(target error) bool {
	if _, ok := target.(*CaptureError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StitchError represents errors raised while compositing frames.
type StitchError struct {
	baseError
	FrameCount int
	Width      int
	Height     int
}

// NewStitchError creates a new StitchError.
func NewStitchError(message string, cause error) *StitchError {
	return &StitchError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithFrameCount adds the number of input frames to the error context.
func (e *StitchError) WithFrameCount(n int) *StitchError {
	e.FrameCount = n
	return e
}

// WithDimensions adds the requested output dimensions to the error context.
func (e *StitchError) WithDimensions(width, height int) *StitchError {
	e.Width = width
	e.Height = height
	return e
}

// Error returns the formatted error message.
func (e *StitchError) Error() string {
	var parts []string
	if e.FrameCount > 0 {
		parts = append(parts, fmt.Sprintf("frames=%d", e.FrameCount))
	}
	if e.Width > 0 || e.Height > 0 {
		parts = append(parts, fmt.Sprintf("size=%dx%d", e.Width, e.Height))
	}
	return e.formatPrefixed("stitch error", parts)
}

// Is checks if this error matches the target.
func (e *StitchError) Is(target error) bool {
	if _, ok := target.(*StitchError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("session", "tab 12")
//	fmt.Println(err) // "session not found: tab 12"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s not found", resourceType),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.ResourceID != "" {
		return fmt.Sprintf("%s not found: %s", e.ResourceType, e.ResourceID)
	}
	return fmt.Sprintf("%s not found", e.ResourceType)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("viewport must be positive").
//		WithField("viewport_height").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.formatPrefixed("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing StitchingError with IsRetryable() returning true
//   - Errors wrapping ErrCaptureQuotaExceeded or ErrTimeout
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var stitchingErr StitchingError
	if As(err, &stitchingErr) {
		return stitchingErr.IsRetryable()
	}

	return Is(err, ErrCaptureQuotaExceeded) || Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var stitchingErr StitchingError
	if As(err, &stitchingErr) {
		return stitchingErr.IsUserFacing()
	}

	return false
}

// FriendlyMessage translates an error into the message shown to a person
// driving a capture. Unknown errors fall back to their own text.
func FriendlyMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrCaptureAccessDenied):
		return "This page cannot be captured. Open a normal website tab and try again."
	case Is(err, ErrInvalidPageGeometry):
		return "Could not start capture on this page."
	case Is(err, ErrNoFramesCaptured), Is(err, ErrNoFramesToStitch):
		return "No frames were captured. Try scrolling a little and finishing again."
	case Is(err, ErrOutputTooLarge):
		return "Captured area is too large for a single stitched image."
	case Is(err, ErrAreaTooSmall):
		return "Selected area is too small."
	case Is(err, ErrCaptureQuotaExceeded):
		return "Capture is being rate limited. Slow down and try again."
	case Is(err, ErrSessionNotActive):
		return "Extended capture is not active on this tab."
	default:
		return err.Error()
	}
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement StitchingError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var stitchingErr StitchingError
	if As(err, &stitchingErr) {
		return stitchingErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap prefixes err with message, keeping err in the chain so that Is and As
// still see it. Wrap(nil, ...) is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
