// Package align finds the true vertical overlap between two consecutive
// frames by comparing their luma samples.
package align

import (
	"math"

	"github.com/Iron-Ham/scrollstitch/internal/luma"
)

// Defaults for Options.
const (
	DefaultStepX             = 3
	DefaultPenaltyWeight     = 0.18
	DefaultBadScoreThreshold = 28
	DefaultSearchRadius      = 96
)

// minOverlapRows is the smallest overlap, in sample rows, that is scored.
const minOverlapRows = 2

// Options tunes the overlap search.
type Options struct {
	// StepX is the column stride used when comparing rows.
	StepX int
	// PenaltyWeight is added to a candidate's score per sample row of
	// distance from the expected overlap.
	PenaltyWeight float64
	// BadScoreThreshold is the highest penalized score still trusted.
	// Worse matches fall back to the expected offset.
	BadScoreThreshold float64
	// SearchRadius bounds, in CSS pixels, how far a refined offset may move
	// away from the expected one. See Window.
	SearchRadius int
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		StepX:             DefaultStepX,
		PenaltyWeight:     DefaultPenaltyWeight,
		BadScoreThreshold: DefaultBadScoreThreshold,
		SearchRadius:      DefaultSearchRadius,
	}
}

// Result is the outcome of aligning one frame pair.
type Result struct {
	// Offset is the row of the next frame, in source pixels, at which
	// content not already shown by the previous frame begins.
	Offset int
	// Score is the penalized mean absolute luma difference of the chosen
	// overlap. It is +Inf when no candidate was scored.
	Score float64
	// Matched is false when Offset is the unadjusted expected value.
	Matched bool
}

// Aligner scores candidate overlaps between frame pairs.
type Aligner struct {
	opts Options
}

// New creates an Aligner. Non-positive StepX, BadScoreThreshold and
// SearchRadius take their defaults. PenaltyWeight is used as given; zero
// disables the distance bias.
func New(opts Options) *Aligner {
	def := DefaultOptions()
	if opts.StepX <= 0 {
		opts.StepX = def.StepX
	}
	if opts.BadScoreThreshold <= 0 {
		opts.BadScoreThreshold = def.BadScoreThreshold
	}
	if opts.SearchRadius <= 0 {
		opts.SearchRadius = def.SearchRadius
	}
	opts.PenaltyWeight = math.Max(opts.PenaltyWeight, 0)
	return &Aligner{opts: opts}
}

// Options returns the effective options.
func (a *Aligner) Options() Options {
	return a.opts
}

// Align compares the bottom k rows of prev with the top k rows of next for
// every k in [2, min(prev.Height, next.Height)-1] and returns the offset for
// the best penalized candidate. expectedOffset is the overlap predicted from
// the scroll delta, in source pixels of next.
//
// When either sample is nil, or the best score exceeds the bad-match
// threshold, expectedOffset is returned unchanged. Align never fails.
func (a *Aligner) Align(prev, next *luma.Sample, expectedOffset int) Result {
	fallback := Result{Offset: expectedOffset, Score: math.Inf(1)}
	if prev == nil || next == nil || next.ScaleY <= 0 {
		return fallback
	}

	maxK := min(prev.Height, next.Height) - 1
	if maxK < minOverlapRows {
		return fallback
	}
	width := min(prev.Width, next.Width)
	expectedRows := int(math.Round(float64(expectedOffset) * next.ScaleY))

	bestK := -1
	bestScore := math.Inf(1)
	for k := minOverlapRows; k <= maxK; k++ {
		score := a.score(prev, next, k, width) + a.opts.PenaltyWeight*math.Abs(float64(k-expectedRows))
		if score < bestScore {
			bestScore = score
			bestK = k
		}
	}

	if bestK < 0 || bestScore > a.opts.BadScoreThreshold {
		fallback.Score = bestScore
		return fallback
	}
	return Result{
		Offset:  int(math.Round(float64(bestK) / next.ScaleY)),
		Score:   bestScore,
		Matched: true,
	}
}

// score is the mean absolute difference between the last k rows of prev and
// the first k rows of next, sampled every StepX columns.
func (a *Aligner) score(prev, next *luma.Sample, k, width int) float64 {
	var total, samples int
	prevStart := prev.Height - k
	for y := 0; y < k; y++ {
		pr := prev.Pix[(prevStart+y)*prev.Width:]
		nr := next.Pix[y*next.Width:]
		for x := 0; x < width; x += a.opts.StepX {
			d := int(pr[x]) - int(nr[x])
			if d < 0 {
				d = -d
			}
			total += d
			samples++
		}
	}
	if samples == 0 {
		return math.Inf(1)
	}
	return float64(total) / float64(samples)
}

// Window bounds a refined offset to a band around the expected one.
type Window struct {
	Min, Max int
}

// NewWindow returns the band [expected-radius, expected+radius] where radius
// is SearchRadius scaled to source pixels (at least 2), intersected with the
// valid rows [0, frameHeight-1].
func (a *Aligner) NewWindow(expected int, scale float64, frameHeight int) Window {
	radius := max(2, int(math.Round(float64(a.opts.SearchRadius)*scale)))
	hi := max(frameHeight-1, 0)
	return Window{
		Min: clamp(expected-radius, 0, hi),
		Max: clamp(expected+radius, 0, hi),
	}
}

// Clamp limits offset to the window.
func (w Window) Clamp(offset int) int {
	return clamp(offset, w.Min, w.Max)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
