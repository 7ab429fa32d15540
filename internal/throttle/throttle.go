// Package throttle paces raw viewport captures. The capture primitive is
// rate limited for the whole process, so every session shares one Throttle
// and its single ordered queue.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/scrollstitch/internal/browser"
	"github.com/Iron-Ham/scrollstitch/internal/errors"
	"github.com/Iron-Ham/scrollstitch/internal/logging"
)

// Defaults for Options.
const (
	DefaultInterval = 550 * time.Millisecond
	DefaultBackoff  = 800 * time.Millisecond
)

// maxAttempts is one initial try plus one retry after a quota rejection.
const maxAttempts = 2

// errClosed is returned to callers after Close.
var errClosed = errors.Wrap(errors.ErrCanceled, "capture throttle closed")

// Options configures a Throttle.
type Options struct {
	// Interval is the minimum time between the end of one successful
	// capture and the start of the next.
	Interval time.Duration
	// Backoff is the wait before retrying a quota-rejected capture.
	Backoff time.Duration
	Logger  *logging.Logger

	// Now and Sleep replace the wall clock, mainly for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

type request struct {
	ctx      context.Context
	windowID int
	opts     browser.CaptureOptions
	reply    chan reply
}

type reply struct {
	data []byte
	err  error
}

// Throttle serializes captures through one worker goroutine. Requests are
// served in arrival order; only one raw capture is in flight at a time.
// Throttle implements browser.RawCapture.
type Throttle struct {
	capture  browser.RawCapture
	interval time.Duration
	backoff  time.Duration
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	logger   *logging.Logger

	requests  chan *request
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Owned by the worker goroutine.
	lastSuccess time.Time
}

// New starts a Throttle in front of capture. Call Close to stop it.
func New(capture browser.RawCapture, opts Options) *Throttle {
	if opts.Interval < 0 {
		opts.Interval = 0
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}

	t := &Throttle{
		capture:  capture,
		interval: opts.Interval,
		backoff:  opts.Backoff,
		now:      opts.Now,
		sleep:    opts.Sleep,
		logger:   opts.Logger.With("component", "throttle"),
		requests: make(chan *request),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go t.loop()
	return t
}

// CaptureVisible queues a capture and waits for its turn and result.
// If ctx ends first the request is abandoned; a capture already in flight
// completes and its result is dropped.
func (t *Throttle) CaptureVisible(ctx context.Context, windowID int, opts browser.CaptureOptions) ([]byte, error) {
	req := &request{ctx: ctx, windowID: windowID, opts: opts, reply: make(chan reply, 1)}

	select {
	case t.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, errClosed
	}

	select {
	case r := <-req.reply:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, errClosed
	}
}

// Close stops the worker and waits for it to exit. Pending and future
// requests fail.
func (t *Throttle) Close() {
	t.closeOnce.Do(func() { close(t.done) })
	<-t.stopped
}

func (t *Throttle) loop() {
	defer close(t.stopped)
	for {
		select {
		case <-t.done:
			return
		case req := <-t.requests:
			data, err := t.serve(req)
			req.reply <- reply{data: data, err: err}
		}
	}
}

func (t *Throttle) serve(req *request) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		if err := req.ctx.Err(); err != nil {
			return nil, err
		}
		if err := t.waitInterval(req.ctx); err != nil {
			return nil, err
		}

		data, err := t.capture.CaptureVisible(req.ctx, req.windowID, req.opts)
		if err == nil {
			t.lastSuccess = t.now()
			return data, nil
		}

		if errors.Is(err, errors.ErrCaptureQuotaExceeded) && attempt < maxAttempts {
			t.logger.Warn("capture quota exceeded, retrying",
				"window_id", req.windowID,
				"backoff_ms", t.backoff.Milliseconds())
			if err := t.sleep(req.ctx, t.backoff); err != nil {
				return nil, err
			}
			continue
		}

		return nil, errors.NewCaptureError("capture failed", err).
			WithWindowID(req.windowID).
			WithAttempts(attempt).
			WithRetryable(false)
	}
}

// waitInterval sleeps until Interval has passed since the last success.
func (t *Throttle) waitInterval(ctx context.Context) error {
	if t.lastSuccess.IsZero() {
		return nil
	}
	remaining := t.interval - t.now().Sub(t.lastSuccess)
	if remaining <= 0 {
		return nil
	}
	t.logger.Debug("pacing capture", "wait_ms", remaining.Milliseconds())
	return t.sleep(ctx, remaining)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
