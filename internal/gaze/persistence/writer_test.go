package persistence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ganzin/gazeengine/internal/db"
	"github.com/ganzin/gazeengine/internal/timeutil"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]db.RawSampleRow
	failN   int32 // fail this many calls before succeeding
}

func (f *fakeSink) InsertRawSamples(ctx context.Context, sessionID string, rows []db.RawSampleRow) error {
	if atomic.LoadInt32(&f.failN) > 0 {
		atomic.AddInt32(&f.failN, -1)
		return errors.New("sink unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]db.RawSampleRow, len(rows))
	copy(cp, rows)
	f.batches = append(f.batches, cp)
	return nil
}

func (f *fakeSink) allRows() []db.RawSampleRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.RawSampleRow
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func TestWriterFlushesOnBatchSize(t *testing.T) {
	sink := &fakeSink{}
	w := NewWriter("sess1", sink, 5, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	for i := 0; i < 5; i++ {
		w.Enqueue(db.RawSampleRow{TsNs: int64(i)})
	}

	require.Eventually(t, func() bool {
		return len(sink.allRows()) == 5
	}, time.Second, 5*time.Millisecond)

	cancel()
	w.Wait()
}

func TestWriterFlushesOnIntervalWithPartialBatch(t *testing.T) {
	sink := &fakeSink{}
	w := NewWriter("sess1", sink, 100, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	w.Enqueue(db.RawSampleRow{TsNs: 1})
	w.Enqueue(db.RawSampleRow{TsNs: 2})

	require.Eventually(t, func() bool {
		return len(sink.allRows()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	w.Wait()
}

func TestWriterRetriesThenSucceeds(t *testing.T) {
	sink := &fakeSink{failN: 2}
	w := NewWriter("sess1", sink, 1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	w.Enqueue(db.RawSampleRow{TsNs: 1})

	require.Eventually(t, func() bool {
		return len(sink.allRows()) == 1
	}, time.Second, 5*time.Millisecond)
	require.False(t, w.Degraded())

	cancel()
	w.Wait()
}

func TestWriterDropsBatchAfterExhaustingRetriesAndFlagsDegraded(t *testing.T) {
	sink := &fakeSink{failN: 100}
	w := NewWriter("sess1", sink, 1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	w.Enqueue(db.RawSampleRow{TsNs: 1})

	require.Eventually(t, func() bool {
		return w.LostBatchCount() == 1
	}, time.Second, 5*time.Millisecond)
	require.True(t, w.Degraded())

	cancel()
	w.Wait()
}

func TestWriterFlushesPartialBatchOnShutdown(t *testing.T) {
	sink := &fakeSink{}
	w := NewWriter("sess1", sink, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	w.Enqueue(db.RawSampleRow{TsNs: 1})
	w.Enqueue(db.RawSampleRow{TsNs: 2})
	time.Sleep(20 * time.Millisecond)

	cancel()
	w.Wait()

	require.Len(t, sink.allRows(), 2)
}

func TestWriterFlushesOnIntervalWithMockClock(t *testing.T) {
	sink := &fakeSink{}
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	w := NewWriterWithClock("sess1", sink, 100, 20*time.Millisecond, clock)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	w.Enqueue(db.RawSampleRow{TsNs: 1})
	w.Enqueue(db.RawSampleRow{TsNs: 2})

	require.Eventually(t, func() bool {
		clock.Advance(20 * time.Millisecond)
		return len(sink.allRows()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	w.Wait()
}

func TestEnqueueDropsOldestUnderBackPressure(t *testing.T) {
	sink := &fakeSink{}
	w := NewWriter("sess1", sink, 10, time.Hour) // queue capacity = 80
	for i := 0; i < 200; i++ {
		w.Enqueue(db.RawSampleRow{TsNs: int64(i)})
	}
	require.Greater(t, w.DroppedSampleCount(), int64(0))
}
