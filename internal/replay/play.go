package replay

import (
	"context"
	"time"

	"github.com/Iron-Ham/scrollstitch/internal/browser"
)

// Steps returns scroll positions from 0 to the bottom of the tab moving
// step CSS pixels at a time. The bottom is always included.
func Steps(t *Tab, step int) []int {
	geo, _ := t.Geometry(context.Background())
	maxY := max(t.page.Bounds().Dy()/t.dpr-geo.ViewportHeight, 0)
	if step <= 0 {
		step = max(geo.ViewportHeight, 1)
	}
	var out []int
	for y := 0; y < maxY; y += step {
		out = append(out, y)
	}
	return append(out, maxY)
}

// Play scrolls t through positions, reporting an observation after each
// move and pausing delay between moves.
func Play(ctx context.Context, t *Tab, positions []int, delay time.Duration, observe func(browser.Observation)) error {
	for i, y := range positions {
		if err := t.ScrollTo(ctx, y); err != nil {
			return err
		}
		observe(t.Observation())
		if delay <= 0 || i == len(positions)-1 {
			continue
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
