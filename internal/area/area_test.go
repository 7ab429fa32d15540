package area

import (
	"context"
	"image"
	"testing"

	"github.com/Iron-Ham/scrollstitch/internal/errors"
	"github.com/Iron-Ham/scrollstitch/internal/frame"
	"github.com/Iron-Ham/scrollstitch/internal/replay"
	"github.com/Iron-Ham/scrollstitch/internal/testutil"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Rect
		want Rect
	}{
		{"inside", Rect{10, 20, 30, 40}, Rect{10, 20, 30, 40}},
		{"dragged up-left", Rect{50, 60, -30, -40}, Rect{20, 20, 30, 40}},
		{"clipped right and bottom", Rect{90, 180, 50, 50}, Rect{90, 180, 10, 20}},
		{"clipped left and top", Rect{-10, -5, 30, 25}, Rect{0, 0, 20, 20}},
		{"entirely outside", Rect{150, 10, 20, 20}, Rect{100, 10, 0, 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in, 100, 200); got != tt.want {
				t.Errorf("Normalize(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseRect(t *testing.T) {
	tests := []struct {
		in      string
		want    Rect
		wantErr bool
	}{
		{"1,2,3,4", Rect{1, 2, 3, 4}, false},
		{" 10.5, 0 ,-20, 7 ", Rect{10.5, 0, -20, 7}, false},
		{"1,2,3", Rect{}, true},
		{"a,b,c,d", Rect{}, true},
		{"1,2,3,NaN", Rect{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRect(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRect(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, errors.ErrInvalidInput) {
					t.Errorf("err = %v, want ErrInvalidInput", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseRect(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if round, _ := ParseRect(got.String()); round != got {
				t.Errorf("String() does not round trip: %q", got.String())
			}
		})
	}
}

func TestCrop(t *testing.T) {
	view := testutil.Page(200, 100)
	data := testutil.EncodePNG(t, view)

	tests := []struct {
		name   string
		r      Rect
		vw, vh int
		want   image.Rectangle
	}{
		{"plain", Rect{10, 20, 50, 30}, 200, 100, image.Rect(10, 20, 60, 50)},
		{"negative extent", Rect{60, 50, -50, -30}, 200, 100, image.Rect(10, 20, 60, 50)},
		{"clipped", Rect{180, 90, 100, 100}, 200, 100, image.Rect(180, 90, 200, 100)},
		{"device pixel ratio 2", Rect{5, 10, 25, 15}, 100, 50, image.Rect(10, 20, 60, 50)},
		{"fractional edges", Rect{10.4, 20.6, 49.2, 29.1}, 200, 100, image.Rect(10, 20, 60, 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Crop(data, tt.r, tt.vw, tt.vh, DefaultOptions())
			if err != nil {
				t.Fatalf("Crop: %v", err)
			}
			if img.Width != tt.want.Dx() || img.Height != tt.want.Dy() || img.Frames != 1 {
				t.Errorf("crop = %dx%d (%d frames), want %dx%d", img.Width, img.Height, img.Frames, tt.want.Dx(), tt.want.Dy())
			}
			want := view.SubImage(tt.want)
			testutil.AssertSamePixels(t, testutil.Decode(t, img.Data), want)
		})
	}
}

func TestCrop_Errors(t *testing.T) {
	data := testutil.EncodePNG(t, testutil.Page(200, 100))

	tests := []struct {
		name    string
		r       Rect
		vw, vh  int
		opts    Options
		wantErr error
	}{
		{"zero viewport", Rect{0, 0, 10, 10}, 0, 100, DefaultOptions(), errors.ErrInvalidPageGeometry},
		{"too narrow", Rect{10, 10, 1.5, 40}, 200, 100, DefaultOptions(), errors.ErrAreaTooSmall},
		{"too short after clipping", Rect{10, 99, 40, 40}, 200, 100, DefaultOptions(), errors.ErrAreaTooSmall},
		{"larger than max edge", Rect{0, 0, 200, 100}, 200, 100, Options{MaxEdge: 150, Format: frame.FormatPNG}, errors.ErrOutputTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(data, tt.r, tt.vw, tt.vh, tt.opts); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := Crop([]byte("garbage"), Rect{0, 0, 10, 10}, 200, 100, DefaultOptions()); err == nil {
		t.Error("Crop should fail on undecodable input")
	}
}

func TestCapture(t *testing.T) {
	page := testutil.Page(120, 600)
	tab := replay.NewTab(1, page, 200)
	_ = tab.ScrollTo(context.Background(), 300)

	img, err := Capture(context.Background(), tab, tab, Rect{20, 50, 40, 60}, DefaultOptions())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	want := page.SubImage(image.Rect(20, 350, 60, 410))
	testutil.AssertSamePixels(t, testutil.Decode(t, img.Data), want)

	denied := replay.NewTab(2, page, 200, replay.WithAccessDenied())
	if _, err := Capture(context.Background(), denied, denied, Rect{0, 0, 10, 10}, DefaultOptions()); !errors.Is(err, errors.ErrCaptureAccessDenied) {
		t.Errorf("err = %v, want ErrCaptureAccessDenied", err)
	}
}
