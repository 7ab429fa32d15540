package frame

import (
	"sync"
	"testing"
)

func positions(frames []Frame) []int {
	out := make([]int, len(frames))
	for i, f := range frames {
		out[i] = f.ScrollY
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStore_Add(t *testing.T) {
	tests := []struct {
		name   string
		radius int
		adds   []int
		want   []int
	}{
		{"sorted insert", 24, []int{800, 0, 1600}, []int{0, 800, 1600}},
		{"rejects within radius", 24, []int{0, 24, 10, -5}, []int{0}},
		{"accepts just outside radius", 24, []int{0, 25, 50}, []int{0, 25, 50}},
		{"zero radius rejects exact duplicates", 0, []int{100, 100, 101}, []int{100, 101}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(tt.radius)
			for _, y := range tt.adds {
				s.Add(Frame{ScrollY: y})
			}
			if got := positions(s.Frames()); !equalInts(got, tt.want) {
				t.Errorf("Frames() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_AddReportsResult(t *testing.T) {
	s := NewStore(24)
	if !s.Add(Frame{ScrollY: 100}) {
		t.Error("first Add should store the frame")
	}
	if s.Add(Frame{ScrollY: 110}) {
		t.Error("Add within radius should be rejected")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_HasNearby(t *testing.T) {
	s := NewStore(24)
	s.Add(Frame{ScrollY: 500})

	tests := []struct {
		y    int
		want bool
	}{
		{500, true},
		{476, true},
		{524, true},
		{475, false},
		{525, false},
	}
	for _, tt := range tests {
		if got := s.HasNearby(tt.y); got != tt.want {
			t.Errorf("HasNearby(%d) = %v, want %v", tt.y, got, tt.want)
		}
	}
}

func TestStore_FramesIsCopy(t *testing.T) {
	s := NewStore(0)
	s.Add(Frame{ScrollY: 1})
	got := s.Frames()
	got[0].ScrollY = 99
	if s.Frames()[0].ScrollY != 1 {
		t.Error("mutating Frames() result changed the store")
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(24)
	s.Add(Frame{ScrollY: 0})
	s.Add(Frame{ScrollY: 100})
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len() = %d after Clear", s.Len())
	}
	if s.HasNearby(0) {
		t.Error("HasNearby should be false after Clear")
	}
}

func TestStore_ConcurrentAdd(t *testing.T) {
	s := NewStore(24)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(y int) {
			defer wg.Done()
			s.Add(Frame{ScrollY: y})
		}(i * 10)
	}
	wg.Wait()

	frames := s.Frames()
	for i := 1; i < len(frames); i++ {
		if frames[i].ScrollY-frames[i-1].ScrollY <= 24 {
			t.Fatalf("frames %d and %d violate the radius: %v", i-1, i, positions(frames))
		}
	}
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		name   string
		radius int
		in     []int
		want   []int
	}{
		{"empty", 24, nil, nil},
		{"single", 24, []int{7}, []int{7}},
		{"unsorted input", 24, []int{1600, 0, 800}, []int{0, 800, 1600}},
		{"chain collapses against last kept", 24, []int{0, 20, 40, 60}, []int{0, 40}},
		{"mixed paths", 24, []int{0, 750, 760, 1500, 1510, 1535}, []int{0, 750, 1500, 1535}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]Frame, len(tt.in))
			for i, y := range tt.in {
				in[i] = Frame{ScrollY: y}
			}
			got := positions(Dedupe(in, tt.radius))
			if !equalInts(got, tt.want) {
				t.Errorf("Dedupe() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	in := []Frame{{ScrollY: 90}, {ScrollY: 0}, {ScrollY: 10}, {ScrollY: 45}, {ScrollY: 46}, {ScrollY: 300}, {ScrollY: 310}}
	once := Dedupe(in, 24)
	twice := Dedupe(once, 24)
	if !equalInts(positions(once), positions(twice)) {
		t.Errorf("Dedupe not idempotent: %v then %v", positions(once), positions(twice))
	}
}

func TestDedupe_RadiusProperty(t *testing.T) {
	var in []Frame
	for y := 0; y < 2000; y += 7 {
		in = append(in, Frame{ScrollY: y})
	}
	for _, radius := range []int{0, 1, 6, 7, 24, 100} {
		out := Dedupe(in, radius)
		for i := 1; i < len(out); i++ {
			if out[i].ScrollY-out[i-1].ScrollY <= radius {
				t.Errorf("radius %d: %d and %d both survived", radius, out[i-1].ScrollY, out[i].ScrollY)
			}
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"png", FormatPNG, false},
		{"", FormatPNG, false},
		{"JPEG", FormatJPEG, false},
		{"jpg", FormatJPEG, false},
		{"webp", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatAccessors(t *testing.T) {
	if FormatJPEG.Extension() != "jpeg" || FormatPNG.Extension() != "png" {
		t.Error("unexpected extensions")
	}
	if FormatJPEG.MIMEType() != "image/jpeg" || FormatPNG.MIMEType() != "image/png" {
		t.Error("unexpected MIME types")
	}
	if !FormatJPEG.Lossy() || FormatPNG.Lossy() {
		t.Error("unexpected Lossy values")
	}
}
