// Package persistence implements C10: a batched bulk-append worker for
// raw samples, best-effort per-event/per-hit appends, and an atomic
// session export. Grounded on the teacher's BackgroundFlusher
// (internal/lidar/background_flusher.go) — a ticker-driven goroutine
// that flushes an in-memory accumulation to a store on interval or on
// shutdown — generalized here to also flush on batch size and to retry
// a failed batch with exponential backoff before dropping it, per
// spec.md §4.10.
package persistence

import (
	"context"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ganzin/gazeengine/internal/db"
	"github.com/ganzin/gazeengine/internal/timeutil"
)

// RawSampleSink is the bulk-append destination for batched raw samples.
type RawSampleSink interface {
	InsertRawSamples(ctx context.Context, sessionID string, rows []db.RawSampleRow) error
}

const maxFlushAttempts = 3

// Writer batches raw samples in groups of size batchSize or interval
// batchInterval (whichever triggers first) and flushes them to sink.
// Ingest must never block on persistence: Enqueue drops the oldest
// queued sample under back-pressure rather than waiting.
type Writer struct {
	sessionID     string
	sink          RawSampleSink
	batchSize     int
	batchInterval time.Duration
	clock         timeutil.Clock

	queue chan db.RawSampleRow

	droppedSamples  atomic.Int64
	lostBatches     atomic.Int64
	degraded        atomic.Bool
	logger          *log.Logger

	done chan struct{}
}

// NewWriter creates a Writer for sessionID. batchSize and batchInterval
// come from config.TuningConfig's persist_batch_size/persist_batch_ms.
func NewWriter(sessionID string, sink RawSampleSink, batchSize int, batchInterval time.Duration) *Writer {
	return NewWriterWithClock(sessionID, sink, batchSize, batchInterval, timeutil.RealClock{})
}

// NewWriterWithClock is NewWriter with an injectable clock, so tests can
// drive the flush ticker with a timeutil.MockClock instead of waiting on
// a real batchInterval.
func NewWriterWithClock(sessionID string, sink RawSampleSink, batchSize int, batchInterval time.Duration, clock timeutil.Clock) *Writer {
	if batchSize <= 0 {
		batchSize = 10
	}
	if batchInterval <= 0 {
		batchInterval = 100 * time.Millisecond
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Writer{
		sessionID:     sessionID,
		sink:          sink,
		batchSize:     batchSize,
		batchInterval: batchInterval,
		clock:         clock,
		queue:         make(chan db.RawSampleRow, batchSize*8),
		logger:        log.Default(),
		done:          make(chan struct{}),
	}
}

// Enqueue adds a sample to the pending batch. Non-blocking: if the
// internal queue is full, the oldest queued sample is dropped and
// DroppedSampleCount is incremented.
func (w *Writer) Enqueue(row db.RawSampleRow) {
	select {
	case w.queue <- row:
	default:
		select {
		case <-w.queue:
			w.droppedSamples.Add(1)
		default:
		}
		select {
		case w.queue <- row:
		default:
			w.droppedSamples.Add(1)
		}
	}
}

// Run drains the queue into batches until ctx is cancelled, flushing the
// final partial batch before returning.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)

	ticker := w.clock.NewTicker(w.batchInterval)
	defer ticker.Stop()

	batch := make([]db.RawSampleRow, 0, w.batchSize)
	for {
		select {
		case <-ctx.Done():
			w.flush(batch)
			return
		case row := <-w.queue:
			batch = append(batch, row)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C():
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// Wait blocks until Run has returned.
func (w *Writer) Wait() { <-w.done }

func (w *Writer) flush(batch []db.RawSampleRow) {
	if len(batch) == 0 {
		return
	}
	// Copy: batch's backing array is reused by the caller after flush.
	rows := make([]db.RawSampleRow, len(batch))
	copy(rows, batch)

	var err error
	for attempt := 0; attempt < maxFlushAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff(attempt))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = w.sink.InsertRawSamples(ctx, w.sessionID, rows)
		cancel()
		if err == nil {
			return
		}
	}
	w.logger.Printf("persistence: dropping batch of %d samples for session %s after %d attempts: %v", len(rows), w.sessionID, maxFlushAttempts, err)
	w.lostBatches.Add(1)
	w.degraded.Store(true)
}

func backoff(attempt int) time.Duration {
	return time.Duration(50*math.Pow(2, float64(attempt-1))) * time.Millisecond
}

// DroppedSampleCount returns how many samples were dropped from the
// in-process queue due to back-pressure, not counting lost batches.
func (w *Writer) DroppedSampleCount() int64 { return w.droppedSamples.Load() }

// LostBatchCount returns how many batches were dropped after exhausting
// retries.
func (w *Writer) LostBatchCount() int64 { return w.lostBatches.Load() }

// Degraded reports whether any batch has ever been dropped for this
// session — the session's persistence_degraded flag (spec.md §7).
func (w *Writer) Degraded() bool { return w.degraded.Load() }

// EventSink is the best-effort append destination for detector events.
type EventSink interface {
	InsertEvent(ctx context.Context, sessionID string, e db.EventRow) error
}

// HitSink is the best-effort append destination for AOI hits.
type HitSink interface {
	InsertHit(ctx context.Context, sessionID string, h db.HitRow) error
}

// EventAppender appends individual events and hits to their sinks,
// logging (never retrying, never blocking the logic worker) on failure.
// Per spec.md §4.10, only the raw-sample path requires batching and
// retry; events and hits are low-volume enough for a direct append.
type EventAppender struct {
	sessionID string
	events    EventSink
	hits      HitSink
	mu        sync.Mutex
	logger    *log.Logger
}

// NewEventAppender creates an EventAppender for sessionID.
func NewEventAppender(sessionID string, events EventSink, hits HitSink) *EventAppender {
	return &EventAppender{sessionID: sessionID, events: events, hits: hits, logger: log.Default()}
}

// AppendEvent writes one detector event, logging and continuing on error.
func (a *EventAppender) AppendEvent(e db.EventRow) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.events.InsertEvent(ctx, a.sessionID, e); err != nil {
		a.logger.Printf("persistence: failed to append event for session %s: %v", a.sessionID, err)
	}
}

// AppendHit writes one AOI hit, logging and continuing on error.
func (a *EventAppender) AppendHit(h db.HitRow) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.hits.InsertHit(ctx, a.sessionID, h); err != nil {
		a.logger.Printf("persistence: failed to append hit for session %s: %v", a.sessionID, err)
	}
}
