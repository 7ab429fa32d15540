// Package logging provides structured logging for scroll-capture sessions.
//
// Logs are JSON lines produced by log/slog. A [Logger] carries persistent
// attributes so that every entry emitted while a session is running can be
// correlated afterwards:
//
//	logger, err := logging.NewLogger(dir, "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.WithSession(id).WithTab(tabID).WithState("active")
//	log.Info("frame captured", "scroll_y", 750, "frames", 2)
//
// produces
//
//	{"time":"...","level":"INFO","msg":"frame captured","session_id":"...","tab_id":4,"state":"active","scroll_y":750,"frames":2}
//
// The log file is named scrollstitch.log inside the configured directory and
// is rotated by [RotatingWriter] once it exceeds RotationConfig.MaxSizeMB.
// Rotated files are named scrollstitch.log.1 (newest) through
// scrollstitch.log.N and may be gzip compressed.
//
// [NopLogger] discards everything and is what components fall back to when
// they are constructed without a logger.
package logging
