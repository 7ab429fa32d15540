// Package watch turns a directory of viewport screenshots into a browser
// tab. Each screenshot dropped into the directory is treated as the page
// having scrolled to the position encoded in its file name, so an external
// screenshot tool can drive a capture session.
package watch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/Iron-Ham/scrollstitch/internal/browser"
	"github.com/Iron-Ham/scrollstitch/internal/errors"
	"github.com/Iron-Ham/scrollstitch/internal/logging"
)

// DefaultDebounce is how long the directory must be quiet before new files
// are read. Screenshot tools often write a file in several steps.
const DefaultDebounce = 50 * time.Millisecond

// DefaultPattern matches the files treated as frames.
const DefaultPattern = "*.png"

// ErrNoFrame is returned by CaptureVisible before any screenshot arrived.
var ErrNoFrame = errors.New("no screenshot received yet")

// Options configures a Source.
type Options struct {
	// Pattern is a glob matched against file base names.
	Pattern string
	// Debounce is the quiet period before pending files are read.
	Debounce time.Duration
	// DevicePixelRatio converts screenshot pixels to CSS pixels.
	DevicePixelRatio int
	TabID            int
	WindowID         int
	Logger           *logging.Logger
}

// snapshot is one screenshot read from the directory.
type snapshot struct {
	name    string
	scrollY int
	width   int // CSS pixels
	height  int
	data    []byte
}

// Shot announces one screenshot. Pass it to Source.Show to make it the
// visible viewport.
type Shot struct {
	Name        string
	Observation browser.Observation

	snap *snapshot
}

// Source watches a directory and exposes its screenshots as the visible
// viewport of a tab. It implements browser.Tab and browser.RawCapture.
//
// Screenshots are announced on Shots one at a time in arrival order, and
// none is dropped. The viewport only changes when the consumer calls Show,
// so a consumer that waits for each capture sees every screenshot become a
// frame however fast files arrive.
type Source struct {
	dir     string
	opts    Options
	match   glob.Glob
	watcher *fsnotify.Watcher
	logger  *logging.Logger

	shots chan Shot
	wake  chan struct{}

	mu           sync.Mutex
	queue        []*snapshot // read but not yet announced
	current      *snapshot
	scrollHeight int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Source watching dir. Call Start to begin announcing
// screenshots and Stop to release the watcher.
func New(dir string, opts Options) (*Source, error) {
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.DevicePixelRatio <= 0 {
		opts.DevicePixelRatio = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}

	match, err := glob.Compile(opts.Pattern)
	if err != nil {
		return nil, errors.NewValidationError("invalid watch pattern").
			WithField("pattern").
			WithValue(opts.Pattern).
			WithCause(err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Source{
		dir:     dir,
		opts:    opts,
		match:   match,
		watcher: watcher,
		logger:  opts.Logger.With("component", "watch", "dir", dir),
		shots:   make(chan Shot),
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching in background goroutines.
func (s *Source) Start() {
	s.wg.Add(2)
	go s.watchLoop()
	go s.announceLoop()
}

// Stop stops watching and closes the Shots channel. Screenshots not yet
// announced are discarded.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		_ = s.watcher.Close()
		s.wg.Wait()
		close(s.shots)
	})
}

// Shots delivers one Shot per accepted screenshot, in arrival order.
func (s *Source) Shots() <-chan Shot {
	return s.shots
}

// Show makes shot the visible viewport reported by Geometry and returned
// by CaptureVisible.
func (s *Source) Show(shot Shot) {
	if shot.snap == nil {
		return
	}
	s.mu.Lock()
	s.current = shot.snap
	s.mu.Unlock()
}

// ID implements browser.Tab.
func (s *Source) ID() int { return s.opts.TabID }

// WindowID implements browser.Tab.
func (s *Source) WindowID() int { return s.opts.WindowID }

// Geometry implements browser.PageProbe. Before the first Show the
// viewport is empty, which makes the geometry invalid.
func (s *Source) Geometry(ctx context.Context) (browser.Geometry, error) {
	if err := ctx.Err(); err != nil {
		return browser.Geometry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return browser.Geometry{}, nil
	}
	return browser.Geometry{
		ScrollY:        s.current.scrollY,
		ViewportWidth:  s.current.width,
		ViewportHeight: s.current.height,
		ScrollHeight:   s.scrollHeight,
	}, nil
}

// CaptureVisible implements browser.RawCapture. The bytes of the shown
// screenshot are returned as written; opts is ignored.
func (s *Source) CaptureVisible(ctx context.Context, _ int, _ browser.CaptureOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoFrame
	}
	return s.current.data, nil
}

// announceLoop hands queued screenshots to the consumer one at a time.
func (s *Source) announceLoop() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		var next *snapshot
		if len(s.queue) > 0 {
			next = s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
		}
		s.mu.Unlock()

		if next == nil {
			select {
			case <-s.stopCh:
				return
			case <-s.wake:
			}
			continue
		}

		shot := Shot{
			Name: next.name,
			Observation: browser.Observation{
				ScrollY:        next.scrollY,
				ViewportWidth:  next.width,
				ViewportHeight: next.height,
			},
			snap: next,
		}
		select {
		case <-s.stopCh:
			return
		case s.shots <- shot:
		}
	}
}

// watchLoop processes filesystem events
func (s *Source) watchLoop() {
	defer s.wg.Done()

	// Debounce events - screenshot tools may create and then write a file
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	pending := make(map[string]struct{})

	for {
		select {
		case <-s.stopCh:
			debounceTimer.Stop()
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !s.match.Match(filepath.Base(event.Name)) {
				continue
			}
			pending[event.Name] = struct{}{}
			debounceTimer.Reset(s.opts.Debounce)

		case <-debounceTimer.C:
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			pending = make(map[string]struct{})
			sortByScroll(names)
			for _, name := range names {
				s.handleFile(name)
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "error", err.Error())
		}
	}
}

// handleFile reads one screenshot and queues it for announcement.
func (s *Source) handleFile(path string) {
	name := filepath.Base(path)
	scrollY, ok := ParseScrollY(name)
	if !ok {
		s.logger.Warn("skipping file without a scroll position", "file", name)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("failed to read screenshot", "file", name, "error", err.Error())
		return
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("skipping unreadable screenshot", "file", name, "error", err.Error())
		return
	}

	dpr := s.opts.DevicePixelRatio
	snap := &snapshot{
		name:    name,
		scrollY: scrollY,
		width:   cfg.Width / dpr,
		height:  cfg.Height / dpr,
		data:    data,
	}

	s.mu.Lock()
	s.queue = append(s.queue, snap)
	s.scrollHeight = max(s.scrollHeight, scrollY+snap.height)
	queued := len(s.queue)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.logger.Debug("screenshot received", "file", name, "scroll_y", scrollY, "queued", queued)
}

// sortByScroll orders a batch of files by the scroll position in their
// names, then by name. Files without a position sort first; handleFile
// rejects them.
func sortByScroll(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		yi, _ := ParseScrollY(filepath.Base(names[i]))
		yj, _ := ParseScrollY(filepath.Base(names[j]))
		if yi != yj {
			return yi < yj
		}
		return names[i] < names[j]
	})
}

var digitsRegex = regexp.MustCompile(`\d+`)

// ParseScrollY extracts the scroll position from a file name: the last run
// of digits before the extension ("shot_750.png" is 750).
func ParseScrollY(name string) (int, bool) {
	base := name[:len(name)-len(filepath.Ext(name))]
	runs := digitsRegex.FindAllString(base, -1)
	if len(runs) == 0 {
		return 0, false
	}
	y, err := strconv.Atoi(runs[len(runs)-1])
	if err != nil {
		return 0, false
	}
	return y, true
}
