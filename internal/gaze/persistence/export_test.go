package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ganzin/gazeengine/internal/gaze/aoi"
	"github.com/ganzin/gazeengine/internal/gaze/calibration"
)

func TestExportWritesReadableJSONAtomically(t *testing.T) {
	dir := t.TempDir()
	path := ExportPath(dir, "sess1", 1700000000)

	doc := SessionExport{
		SessionID:      "sess1",
		StartedAtNs:    1000,
		StoppedAtNs:    50000,
		ScreenWidthPx:  1920,
		ScreenHeightPx: 1080,
		TotalSamples:   500,
		Calibration:    calibration.Status{Phase: calibration.PhaseReady, TransformKind: "homography"},
		AOIs:           []aoi.AOI{aoi.NewVocabAOI("w1", "hello", 0, 0, 100, 100)},
	}

	require.NoError(t, Export(path, dir, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var roundTripped SessionExport
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	if diff := cmp.Diff(doc, roundTripped); diff != "" {
		t.Errorf("export round trip mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no leftover temp file after rename")
}

func TestExportPathMatchesDataLayout(t *testing.T) {
	got := ExportPath("data", "abc", 123)
	require.Equal(t, filepath.Join("data", "session_abc_123.json"), got)
}

func TestExportRejectsPathEscapingDataDir(t *testing.T) {
	dir := t.TempDir()
	path := ExportPath(dir, "../../../etc/passwd", 123)

	err := Export(path, dir, SessionExport{SessionID: "../../../etc/passwd"})
	require.Error(t, err)
}
