package intake

import (
	"context"

	"github.com/ganzin/gazeengine/internal/gaze"
)

// PushSource is a SampleSource fed by an external caller rather than a
// device driver or playback file — the session websocket ingestion path
// (spec.md §6's /ws/sessions/{id}) constructs one per session and calls
// Push for every frame it decodes off the wire. Grounded on the same
// drop-oldest back-pressure idiom as Intake.pump, applied one layer
// earlier since a push source has no reader goroutine of its own to pace
// it.
type PushSource struct {
	in chan gaze.Sample
}

// NewPushSource creates a PushSource with the given inbound buffer
// depth.
func NewPushSource(depth int) *PushSource {
	if depth <= 0 {
		depth = 256
	}
	return &PushSource{in: make(chan gaze.Sample, depth)}
}

func (p *PushSource) Kind() string { return "push" }

func (p *PushSource) Open() error { return nil }

// Close is a no-op; the source is torn down by the Intake's context
// cancellation, not by closing the push channel, since a concurrent
// Push into a closed channel would panic.
func (p *PushSource) Close() error { return nil }

// Push enqueues one sample, dropping the oldest buffered sample when
// full rather than blocking the caller (typically a websocket read
// loop).
func (p *PushSource) Push(s gaze.Sample) {
	select {
	case p.in <- s:
		return
	default:
	}
	select {
	case <-p.in:
	default:
	}
	select {
	case p.in <- s:
	default:
	}
}

func (p *PushSource) Run(ctx context.Context, out chan<- gaze.Sample) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-p.in:
			select {
			case out <- s:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
