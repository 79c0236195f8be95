package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ganzin/gazeengine/internal/config"
	"github.com/ganzin/gazeengine/internal/db"
	"github.com/ganzin/gazeengine/internal/gaze"
	"github.com/ganzin/gazeengine/internal/gaze/aoi"
	"github.com/ganzin/gazeengine/internal/gaze/intake"
)

type fakeRawSink struct {
	mu   sync.Mutex
	rows []db.RawSampleRow
}

func (f *fakeRawSink) InsertRawSamples(ctx context.Context, sessionID string, rows []db.RawSampleRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeRawSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeEventSink struct {
	mu   sync.Mutex
	rows []db.EventRow
}

func (f *fakeEventSink) InsertEvent(ctx context.Context, sessionID string, e db.EventRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, e)
	return nil
}

type fakeHitSink struct {
	mu   sync.Mutex
	rows []db.HitRow
}

func (f *fakeHitSink) InsertHit(ctx context.Context, sessionID string, h db.HitRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, h)
	return nil
}

func stationarySamples(n int) []gaze.Sample {
	out := make([]gaze.Sample, n)
	for i := range out {
		out[i] = gaze.Sample{
			TsNs:       int64(i) * 8_000_000,
			DeviceX:    500,
			DeviceY:    500,
			Valid:      true,
			Confidence: 0.95,
		}
	}
	return out
}

func TestStartTwiceReportsAlreadyStreaming(t *testing.T) {
	s := New("sess1", config.EmptyTuningConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	status, err := s.Start(ctx, intake.NewSyntheticMockSource(120, 100000))
	require.NoError(t, err)
	require.Equal(t, intake.StatusOK, status)

	status2, err2 := s.Start(ctx, intake.NewSyntheticMockSource(120, 100000))
	require.NoError(t, err2)
	require.Equal(t, intake.StatusAlreadyStreaming, status2)

	require.NoError(t, s.Stop())
}

func TestStopIsIdempotent(t *testing.T) {
	s := New("sess2", config.EmptyTuningConfig())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	require.Equal(t, StateStopped, s.State())
}

func TestStartAfterStopIsInvalid(t *testing.T) {
	s := New("sess3", config.EmptyTuningConfig())
	require.NoError(t, s.Stop())

	_, err := s.Start(context.Background(), intake.NewMockSource(nil))
	require.Error(t, err)
}

func TestFixationOnVocabAOIRecordsHitAndUnlocksAchievement(t *testing.T) {
	s := New("sess4", config.EmptyTuningConfig())
	require.NoError(t, s.AOIs.Add(aoi.NewVocabAOI("word", "word", 450, 450, 100, 100)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	samples := stationarySamples(40)
	status, err := s.Start(ctx, intake.NewMockSource(samples))
	require.NoError(t, err)
	require.Equal(t, intake.StatusOK, status)

	require.Eventually(t, func() bool {
		return len(s.HitLog.All()) > 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())

	hits := s.HitLog.All()
	require.NotEmpty(t, hits)
	require.Equal(t, "word", hits[0].AOIID)

	unlocks := s.Achievements.RecentUnlocks()
	require.NotEmpty(t, unlocks)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	s := New("sess5", config.EmptyTuningConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, unsubscribe := s.Subscribe("viewer1")
	defer unsubscribe()

	samples := stationarySamples(40)
	_, err := s.Start(ctx, intake.NewMockSource(samples))
	require.NoError(t, err)

	select {
	case snap := <-ch:
		require.Equal(t, 500.0, snap.ScreenX)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}

	require.NoError(t, s.Stop())
}

func TestRegistryCreateGetRemove(t *testing.T) {
	r := NewRegistry()
	s, err := r.Create("a", config.EmptyTuningConfig())
	require.NoError(t, err)
	require.Equal(t, "a", s.ID)

	_, err = r.Create("a", config.EmptyTuningConfig())
	require.Error(t, err)

	got, err := r.Get("a")
	require.NoError(t, err)
	require.Same(t, s, got)

	require.NoError(t, r.Remove("a"))
	_, err = r.Get("a")
	require.Error(t, err)
}

func TestSessionWithPersistenceBatchesSamplesAndAppendsHits(t *testing.T) {
	raw := &fakeRawSink{}
	events := &fakeEventSink{}
	hits := &fakeHitSink{}

	s := NewWithPersistence("sess6", config.EmptyTuningConfig(), raw, events, hits)
	require.NoError(t, s.AOIs.Add(aoi.NewVocabAOI("word", "word", 450, 450, 100, 100)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	samples := stationarySamples(40)
	status, err := s.Start(ctx, intake.NewMockSource(samples))
	require.NoError(t, err)
	require.Equal(t, intake.StatusOK, status)

	require.Eventually(t, func() bool {
		return raw.count() >= 40
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())

	hits.mu.Lock()
	hitCount := len(hits.rows)
	hits.mu.Unlock()
	require.NotZero(t, hitCount)

	exported := s.BuildExport()
	require.Equal(t, "sess6", exported.SessionID)
	require.Equal(t, int64(40), exported.TotalSamples)
	require.NotEmpty(t, exported.Hits)
	require.False(t, exported.PersistenceDegraded)
}
