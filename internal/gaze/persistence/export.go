package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ganzin/gazeengine/internal/gaze/achievements"
	"github.com/ganzin/gazeengine/internal/gaze/aoi"
	"github.com/ganzin/gazeengine/internal/gaze/calibration"
	"github.com/ganzin/gazeengine/internal/gaze/hitlog"
	"github.com/ganzin/gazeengine/internal/gazeerr"
	"github.com/ganzin/gazeengine/internal/security"
)

// SessionExport is the document written at StopStream per spec.md §4.10:
// session metadata, AOIs, hit/fixation logs, statistics, calibration, and
// achievements. Distinct from Snapshot (session.Snapshot) — the export is
// built once at stop time and can be arbitrarily large; the snapshot is
// what subscribers receive live and must stay small (spec.md §9 design
// note separating the two).
type SessionExport struct {
	SessionID           string                     `json:"session_id"`
	StartedAtNs         int64                      `json:"started_at_ns"`
	StoppedAtNs         int64                      `json:"stopped_at_ns"`
	ScreenWidthPx       float64                    `json:"screen_width_px"`
	ScreenHeightPx      float64                    `json:"screen_height_px"`
	TotalSamples        int64                      `json:"total_samples"`
	PersistenceDegraded bool                       `json:"persistence_degraded"`
	Calibration         calibration.Status         `json:"calibration"`
	AOIs                []aoi.AOI                  `json:"aois"`
	Hits                []hitlog.Hit               `json:"hits"`
	Stats               map[string]hitlog.AOIStats `json:"aoi_stats"`
	Achievements        []achievements.Progress    `json:"achievements"`
	TotalAchievementPts int                        `json:"total_achievement_points"`
}

// Export writes doc atomically to path: marshal,
// write to a sibling temp file, fsync, then rename over the destination.
// A reader never observes a partially written export (spec.md §4.10).
//
// path is checked against dataDir before anything is written: ExportPath
// builds its filename from a caller-supplied session ID (the websocket
// ingest path lets a caller pick that ID), so an ID containing ".." or
// "/" must not let the write escape the configured data directory.
func Export(path, dataDir string, doc SessionExport) error {
	if err := security.ValidatePathWithinDirectory(path, dataDir); err != nil {
		return fmt.Errorf("%w: %v", gazeerr.ErrPersistenceFailed, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal session export: %v", gazeerr.ErrPersistenceFailed, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".session-export-*.json.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp export file: %v", gazeerr.ErrPersistenceFailed, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp export file: %v", gazeerr.ErrPersistenceFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: fsync temp export file: %v", gazeerr.ErrPersistenceFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp export file: %v", gazeerr.ErrPersistenceFailed, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: rename export into place: %v", gazeerr.ErrPersistenceFailed, err)
	}
	return nil
}

// ExportPath builds the per-session export path per spec.md §6's layout:
// data/session_{id}_{epoch}.json.
func ExportPath(dataDir, sessionID string, epochSeconds int64) string {
	return filepath.Join(dataDir, fmt.Sprintf("session_%s_%d.json", sessionID, epochSeconds))
}
