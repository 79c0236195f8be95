package intake

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ganzin/gazeengine/internal/gaze"
)

// MockSource is a deterministic SampleSource used for tests, --fixture
// runs, and when the real device cannot be attached (spec.md §7
// DeviceUnavailable). It either replays a canned sequence or, if none is
// given, synthesizes a smooth circular scanpath at the configured rate.
type MockSource struct {
	Samples []gaze.Sample // canned sequence; nil means synthesize
	RateHz  float64       // synthesis rate, default 120
	Count   int           // number of samples to synthesize, default 600
}

// NewMockSource creates a MockSource that replays the given samples
// verbatim, preserving their timestamps.
func NewMockSource(samples []gaze.Sample) *MockSource {
	return &MockSource{Samples: samples}
}

// NewSyntheticMockSource creates a MockSource that generates a smooth
// circular scanpath — useful for exercising calibration and detection
// without canned fixtures.
func NewSyntheticMockSource(rateHz float64, count int) *MockSource {
	return &MockSource{RateHz: rateHz, Count: count}
}

// LoadFixture reads a recorded session file in SerialSource's wire
// format (one ts_ns,device_x,device_y,valid,confidence record per line)
// for --fixture replay, reusing the device line parser so a fixture
// captured off the real device and one hand-written for a test use
// exactly the same format.
func LoadFixture(path string) ([]gaze.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var samples []gaze.Sample
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		sample, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("fixture %s line %d: %w", path, lineNo, err)
		}
		samples = append(samples, sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

func (m *MockSource) Kind() string { return "mock" }

func (m *MockSource) Open() error { return nil }

func (m *MockSource) Close() error { return nil }

func (m *MockSource) Run(ctx context.Context, out chan<- gaze.Sample) error {
	samples := m.Samples
	if samples == nil {
		samples = m.synthesize()
	}
	for _, s := range samples {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- s:
		}
	}
	return nil
}

func (m *MockSource) synthesize() []gaze.Sample {
	rate := m.RateHz
	if rate <= 0 {
		rate = 120
	}
	count := m.Count
	if count <= 0 {
		count = 600
	}
	intervalNs := int64(float64(time.Second) / rate)
	samples := make([]gaze.Sample, 0, count)
	const cx, cy, radius = 960.0, 540.0, 200.0
	for i := 0; i < count; i++ {
		angle := 2 * math.Pi * float64(i) / float64(count) * 3
		x := cx + radius*math.Cos(angle)
		y := cy + radius*math.Sin(angle)
		samples = append(samples, gaze.Sample{
			TsNs:       int64(i+1) * intervalNs,
			DeviceX:    x,
			DeviceY:    y,
			Valid:      true,
			Confidence: 0.95,
		})
	}
	return samples
}
