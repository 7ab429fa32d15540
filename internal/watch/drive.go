package watch

import (
	"context"

	"github.com/Iron-Ham/scrollstitch/internal/session"
)

// Drive shows the screenshots of src one at a time and records each in
// reg until ctx is done or src is stopped. The tab's session starts with
// the first screenshot, since the viewport size is unknown before then.
// Every later screenshot stays visible until its capture has been served,
// so bursts of files are recorded in full. Drive returns the start error,
// if any; the caller finishes or cancels the session.
func Drive(ctx context.Context, src *Source, reg *session.Registry) error {
	started := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case shot, ok := <-src.Shots():
			if !ok {
				return nil
			}
			src.Show(shot)
			if !started {
				if _, err := reg.Start(ctx, src); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				started = true
				continue
			}
			if err := reg.Track(ctx, src.ID(), shot.Observation); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}
