package intake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ganzin/gazeengine/internal/gaze"
)

func TestStartStreamDeliversSamples(t *testing.T) {
	samples := []gaze.Sample{
		{TsNs: 1, DeviceX: 1, DeviceY: 1, Valid: true, Confidence: 0.9},
		{TsNs: 2, DeviceX: 2, DeviceY: 2, Valid: true, Confidence: 0.9},
	}
	in := New(NewMockSource(samples), 8)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	status, out, err := in.StartStream(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)

	got := make([]gaze.Sample, 0, 2)
	for s := range out {
		got = append(got, s)
		if len(got) == len(samples) {
			break
		}
	}
	require.Len(t, got, 2)
	require.Equal(t, samples[0].DeviceX, got[0].DeviceX)

	require.NoError(t, in.StopStream())
}

func TestStartStreamTwiceReportsAlreadyStreaming(t *testing.T) {
	in := New(NewSyntheticMockSource(120, 10000), 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	status, _, err := in.StartStream(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)

	status2, out2, err2 := in.StartStream(ctx)
	require.NoError(t, err2)
	require.Equal(t, StatusAlreadyStreaming, status2)
	require.Nil(t, out2)

	require.NoError(t, in.StopStream())
}

func TestStopStreamIsIdempotent(t *testing.T) {
	in := New(NewMockSource(nil), 4)
	require.NoError(t, in.StopStream())
	require.NoError(t, in.StopStream())
}

func TestOverflowDropsOldestAndCountsDrops(t *testing.T) {
	in := New(NewSyntheticMockSource(120, 5000), 1)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	status, out, err := in.StartStream(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)

	// Don't drain out; let the pump overflow and drop samples.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, in.StopStream())
	// Drain whatever remains so the goroutine isn't blocked.
	for range out {
	}
	require.Greater(t, in.DroppedCount(), int64(0))
}
