package intake

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ganzin/gazeengine/internal/gaze"
	"github.com/ganzin/gazeengine/internal/monitoring"
)

// StreamStatus reports the outcome of a StartStream call, per spec.md
// §4.1's tri-state contract.
type StreamStatus string

const (
	StatusOK               StreamStatus = "ok"
	StatusAlreadyStreaming StreamStatus = "already_streaming"
	StatusDriverError      StreamStatus = "driver_error"
)

// Intake owns one SampleSource and the bounded channel samples drain
// into on their way to a session's logic worker. Grounded on the
// teacher's SerialMux: one source, one background pump goroutine, and a
// bounded outbound buffer — except intake's buffer has a single
// consumer and a drop-oldest policy rather than per-subscriber fan-out,
// since fan-out lives downstream of the whole pipeline (spec.md §9).
type Intake struct {
	source SampleSource
	depth  int

	mu        sync.Mutex
	streaming bool
	cancel    context.CancelFunc
	done      chan struct{}
	out       chan gaze.Sample

	dropped atomic.Int64
}

// New creates an Intake around source with the given bounded channel
// depth (config.TuningConfig.GetSampleQueueDepth()).
func New(source SampleSource, depth int) *Intake {
	if depth <= 0 {
		depth = 256
	}
	return &Intake{source: source, depth: depth}
}

// Kind identifies the underlying source variant.
func (in *Intake) Kind() string { return in.source.Kind() }

// DroppedCount returns the number of samples dropped so far because the
// outbound channel was full when a new sample arrived.
func (in *Intake) DroppedCount() int64 { return in.dropped.Load() }

// StartStream opens the source and begins pumping samples into the
// channel returned for the caller to range over. Calling StartStream
// while already streaming returns StatusAlreadyStreaming without
// disturbing the running stream.
func (in *Intake) StartStream(ctx context.Context) (StreamStatus, <-chan gaze.Sample, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.streaming {
		return StatusAlreadyStreaming, nil, nil
	}

	if err := in.source.Open(); err != nil {
		return StatusDriverError, nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	out := make(chan gaze.Sample, in.depth)
	done := make(chan struct{})

	in.streaming = true
	in.cancel = cancel
	in.done = done
	in.out = out

	raw := make(chan gaze.Sample, in.depth)
	go in.pump(runCtx, raw, out, done)

	go func() {
		defer close(raw)
		if err := in.source.Run(runCtx, raw); err != nil {
			monitoring.Logf("intake: source %s stopped: %v", in.source.Kind(), err)
		}
	}()

	return StatusOK, out, nil
}

// pump relays samples from raw into out, dropping the oldest buffered
// sample and incrementing the drop counter when out is full (spec.md
// §4.1: the queue drops the oldest sample on overflow rather than
// blocking the device reader).
func (in *Intake) pump(ctx context.Context, raw <-chan gaze.Sample, out chan<- gaze.Sample, done chan struct{}) {
	defer close(done)
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-raw:
			if !ok {
				return
			}
			select {
			case out <- s:
			default:
				select {
				case <-out:
					in.dropped.Add(1)
				default:
				}
				select {
				case out <- s:
				default:
					in.dropped.Add(1)
				}
			}
		}
	}
}

// StopStream halts the pump, closes the source, and blocks until the
// background goroutines have exited. Idempotent: calling it when not
// streaming is a no-op.
func (in *Intake) StopStream() error {
	in.mu.Lock()
	if !in.streaming {
		in.mu.Unlock()
		return nil
	}
	cancel := in.cancel
	done := in.done
	in.streaming = false
	in.cancel = nil
	in.done = nil
	in.out = nil
	in.mu.Unlock()

	cancel()
	<-done
	return in.source.Close()
}

// Streaming reports whether a stream is currently active.
func (in *Intake) Streaming() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.streaming
}

// Push forwards sample directly to the underlying source if it accepts
// pushed samples (a *PushSource, e.g. the websocket ingestion path),
// reporting whether it did. Pull-based sources (Mock, Serial) return
// false.
func (in *Intake) Push(sample gaze.Sample) bool {
	pusher, ok := in.source.(*PushSource)
	if !ok {
		return false
	}
	pusher.Push(sample)
	return true
}
