package watch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/scrollstitch/internal/browser"
	"github.com/Iron-Ham/scrollstitch/internal/errors"
	"github.com/Iron-Ham/scrollstitch/internal/session"
	"github.com/Iron-Ham/scrollstitch/internal/stitch"
	"github.com/Iron-Ham/scrollstitch/internal/testutil"
	"github.com/Iron-Ham/scrollstitch/internal/throttle"
)

func newSource(t *testing.T, opts Options) (*Source, string) {
	t.Helper()
	dir := t.TempDir()
	if opts.Debounce == 0 {
		opts.Debounce = 20 * time.Millisecond
	}
	src, err := New(dir, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src.Start()
	t.Cleanup(src.Stop)
	return src, dir
}

func nextShot(t *testing.T, src *Source) Shot {
	t.Helper()
	select {
	case shot, ok := <-src.Shots():
		if !ok {
			t.Fatal("shots closed")
		}
		return shot
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a shot")
	}
	return Shot{}
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseScrollY(t *testing.T) {
	tests := []struct {
		name   string
		want   int
		wantOK bool
	}{
		{"shot_750.png", 750, true},
		{"frame-0012.png", 12, true},
		{"2024-01-01_y1500.png", 1500, true},
		{"0.png", 0, true},
		{"page.v2.png", 2, true},
		{"nodigits.png", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseScrollY(tt.name)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseScrollY(%q) = %d, %v; want %d, %v", tt.name, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(t.TempDir(), Options{Pattern: "[abc"})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestNew_MissingDir(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing"), Options{}); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}

func TestSource_BeforeFirstScreenshot(t *testing.T) {
	src, _ := newSource(t, Options{TabID: 3, WindowID: 9})
	ctx := context.Background()

	geo, err := src.Geometry(ctx)
	if err != nil {
		t.Fatalf("Geometry: %v", err)
	}
	if geo.Valid() {
		t.Errorf("Geometry = %+v, want an empty viewport", geo)
	}
	if _, err := src.CaptureVisible(ctx, 9, browser.CaptureOptions{}); !errors.Is(err, ErrNoFrame) {
		t.Errorf("CaptureVisible err = %v, want ErrNoFrame", err)
	}
	if src.ID() != 3 || src.WindowID() != 9 {
		t.Errorf("ids = %d/%d, want 3/9", src.ID(), src.WindowID())
	}
}

func TestSource_Screenshots(t *testing.T) {
	src, dir := newSource(t, Options{})
	ctx := context.Background()
	page := testutil.Page(60, 400)

	first := testutil.EncodePNG(t, testutil.Rows(page, 0, 100))
	writeFile(t, dir, "shot_0.png", first)
	shot := nextShot(t, src)
	if shot.Name != "shot_0.png" || shot.Observation != (browser.Observation{ScrollY: 0, ViewportWidth: 60, ViewportHeight: 100}) {
		t.Errorf("shot = %s %+v", shot.Name, shot.Observation)
	}

	second := testutil.EncodePNG(t, testutil.Rows(page, 250, 100))
	writeFile(t, dir, "shot_250.png", second)
	shot = nextShot(t, src)
	if shot.Observation.ScrollY != 250 {
		t.Errorf("ScrollY = %d, want 250", shot.Observation.ScrollY)
	}
	src.Show(shot)

	geo, err := src.Geometry(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := browser.Geometry{ScrollY: 250, ViewportWidth: 60, ViewportHeight: 100, ScrollHeight: 350}
	if geo != want {
		t.Errorf("Geometry = %+v, want %+v", geo, want)
	}
	data, err := src.CaptureVisible(ctx, 0, browser.CaptureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, second) {
		t.Error("CaptureVisible should return the shown screenshot")
	}
}

func TestSource_ShowControlsViewport(t *testing.T) {
	src, dir := newSource(t, Options{})
	ctx := context.Background()
	page := testutil.Page(40, 300)

	first := testutil.EncodePNG(t, testutil.Rows(page, 0, 80))
	second := testutil.EncodePNG(t, testutil.Rows(page, 100, 80))
	writeFile(t, dir, "a_0.png", first)
	shot := nextShot(t, src)

	// Announced but not shown: the viewport is still empty.
	if geo, _ := src.Geometry(ctx); geo.Valid() {
		t.Errorf("Geometry before Show = %+v, want empty", geo)
	}
	src.Show(shot)

	writeFile(t, dir, "a_100.png", second)
	next := nextShot(t, src)

	data, err := src.CaptureVisible(ctx, 0, browser.CaptureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, first) {
		t.Error("CaptureVisible should keep returning the shown screenshot until Show is called again")
	}

	src.Show(next)
	data, err = src.CaptureVisible(ctx, 0, browser.CaptureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, second) {
		t.Error("CaptureVisible should follow Show")
	}
}

func TestSource_BurstIsQueuedByScroll(t *testing.T) {
	// One debounce window covers the whole burst.
	src, dir := newSource(t, Options{Debounce: 200 * time.Millisecond})
	page := testutil.Page(30, 600)
	img := testutil.EncodePNG(t, testutil.Rows(page, 0, 50))

	for _, name := range []string{"shot_500.png", "shot_0.png", "shot_350.png"} {
		writeFile(t, dir, name, img)
	}

	var got []int
	for range 3 {
		got = append(got, nextShot(t, src).Observation.ScrollY)
	}
	want := []int{0, 350, 500}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("announced %v, want %v", got, want)
		}
	}
}

func TestSortByScroll(t *testing.T) {
	names := []string{"/d/shot_500.png", "/d/shot_90.png", "/d/b_350.png", "/d/a_350.png", "/d/none.png"}
	sortByScroll(names)
	want := []string{"/d/none.png", "/d/shot_90.png", "/d/a_350.png", "/d/b_350.png", "/d/shot_500.png"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("sortByScroll = %v, want %v", names, want)
		}
	}
}

func TestSource_Filtering(t *testing.T) {
	src, dir := newSource(t, Options{Pattern: "frame_*.png"})
	page := testutil.Page(30, 200)
	img := testutil.EncodePNG(t, testutil.Rows(page, 0, 50))

	writeFile(t, dir, "notes.txt", []byte("not an image"))
	writeFile(t, dir, "other_10.png", img)
	writeFile(t, dir, "frame_nodigits.png", img)
	writeFile(t, dir, "frame_20.png", []byte("corrupt"))
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "frame_40.png", img)

	if shot := nextShot(t, src); shot.Observation.ScrollY != 40 {
		t.Errorf("first accepted ScrollY = %d, want 40", shot.Observation.ScrollY)
	}
}

func TestSource_DevicePixelRatio(t *testing.T) {
	src, dir := newSource(t, Options{DevicePixelRatio: 2})
	page := testutil.Page(80, 200)
	writeFile(t, dir, "s_0.png", testutil.EncodePNG(t, testutil.Rows(page, 0, 120)))

	obs := nextShot(t, src).Observation
	if obs.ViewportWidth != 40 || obs.ViewportHeight != 60 {
		t.Errorf("viewport = %dx%d, want 40x60", obs.ViewportWidth, obs.ViewportHeight)
	}
}

func TestSource_StopClosesShots(t *testing.T) {
	dir := t.TempDir()
	src, err := New(dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	src.Start()
	src.Stop()
	src.Stop()
	if _, ok := <-src.Shots(); ok {
		t.Error("shots should be closed after Stop")
	}
}

func TestDrive_StitchesDroppedScreenshots(t *testing.T) {
	src, dir := newSource(t, Options{TabID: 5})
	page := testutil.Page(120, 900)
	reg := session.NewRegistry(session.DefaultOptions(), session.Deps{
		Capture:  src,
		Stitcher: stitch.New(stitch.DefaultOptions(), nil),
	})
	defer reg.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Drive(ctx, src, reg) }()

	frames := func() int { return reg.Status(5).Frames }
	waitFrames := func(n int) {
		t.Helper()
		deadline := time.Now().Add(3 * time.Second)
		for frames() != n {
			if time.Now().After(deadline) {
				t.Fatalf("timed out waiting for %d frames, have %d", n, frames())
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	writeFile(t, dir, "shot_0.png", testutil.EncodePNG(t, testutil.Rows(page, 0, 400)))
	waitFrames(1)
	writeFile(t, dir, "shot_350.png", testutil.EncodePNG(t, testutil.Rows(page, 350, 400)))
	waitFrames(2)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Drive: %v", err)
	}

	img, err := reg.Finish(context.Background(), 5)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if img.Height != 750 {
		t.Errorf("height = %d, want 750", img.Height)
	}
	testutil.AssertSamePixels(t, testutil.Decode(t, img.Data), testutil.Rows(page, 0, 750))
}

func TestDrive_RecordsEveryScreenshotOfABurst(t *testing.T) {
	src, dir := newSource(t, Options{TabID: 6})
	page := testutil.Page(120, 900)
	thr := throttle.New(src, throttle.Options{Interval: 30 * time.Millisecond})
	defer thr.Close()
	reg := session.NewRegistry(session.DefaultOptions(), session.Deps{
		Capture:  thr,
		Stitcher: stitch.New(stitch.DefaultOptions(), nil),
	})
	defer reg.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Drive(ctx, src, reg) }()

	// Written back to back, faster than the throttle lets captures through.
	for _, y := range []int{0, 350, 500} {
		writeFile(t, dir, fmt.Sprintf("shot_%d.png", y), testutil.EncodePNG(t, testutil.Rows(page, y, 400)))
	}

	deadline := time.Now().Add(3 * time.Second)
	for reg.Status(6).Frames != 3 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for 3 frames, have %d", reg.Status(6).Frames)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Drive: %v", err)
	}

	img, err := reg.Finish(context.Background(), 6)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if img.Frames != 3 || img.Height != 900 {
		t.Errorf("output = %d frames, height %d, want 3 frames, height 900", img.Frames, img.Height)
	}
	testutil.AssertSamePixels(t, testutil.Decode(t, img.Data), testutil.Rows(page, 0, 900))
}
