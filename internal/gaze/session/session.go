// Package session implements C9 Session Lifecycle & Orchestration: one
// Session binds intake, calibration, AOI indexing, fixation detection,
// hit logging, cognitive load, rule evaluation, and achievements into a
// single per-session pipeline, and a Registry tracks every live
// session. Grounded on the teacher's pipeline package — the composition
// root that wires L2-L6 stages behind one frame callback
// (tracking_pipeline.go's TrackingPipelineConfig.NewFrameCallback) — but
// replaces the teacher's package-level registry anti-pattern
// (sqlite.GetAnalysisRunManager) with an explicit Registry type per
// spec.md §9's design note: no global singletons, sessions are looked
// up through an owned map.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ganzin/gazeengine/internal/config"
	"github.com/ganzin/gazeengine/internal/db"
	"github.com/ganzin/gazeengine/internal/gaze"
	"github.com/ganzin/gazeengine/internal/gaze/achievements"
	"github.com/ganzin/gazeengine/internal/gaze/aoi"
	"github.com/ganzin/gazeengine/internal/gaze/calibration"
	"github.com/ganzin/gazeengine/internal/gaze/cogload"
	"github.com/ganzin/gazeengine/internal/gaze/detector"
	"github.com/ganzin/gazeengine/internal/gaze/hitlog"
	"github.com/ganzin/gazeengine/internal/gaze/intake"
	"github.com/ganzin/gazeengine/internal/gaze/persistence"
	"github.com/ganzin/gazeengine/internal/gaze/rules"
	"github.com/ganzin/gazeengine/internal/gazeerr"
)

// State is the session's tagged lifecycle variant (spec.md §2):
// Created, Streaming, Stopped. There is no "Paused" — a stopped session
// never restarts, a new one is created instead.
type State string

const (
	StateCreated   State = "created"
	StateStreaming State = "streaming"
	StateStopped   State = "stopped"
)

// Snapshot is the most recent pipeline output, what a subscriber
// receives at the configured snapshot rate (spec.md §5, default 20Hz).
type Snapshot struct {
	TsNs         int64
	DeviceX      float64
	DeviceY      float64
	ScreenX      float64
	ScreenY      float64
	Confidence   float64
	CurrentAOIID string
	CogLoadScore float64
	CogLoadLevel cogload.Level
}

// Session owns one subject's full pipeline: one intake worker feeding a
// single serialized logic worker, plus a separate fan-out worker for
// subscribers, matching spec.md §5's concurrency model.
type Session struct {
	ID  string
	cfg *config.TuningConfig

	mu    sync.Mutex
	state State
	intk  *intake.Intake

	Calibration  *calibration.Calibration
	AOIs         *aoi.Index
	HitLog       *hitlog.Log
	Achievements *achievements.Tracker

	det *detector.Detector
	cog *cogload.Tracker
	rul *rules.Engine

	persist  *persistence.Writer
	appender *persistence.EventAppender

	startedAt    int64 // TsNs of first sample, for focus-duration achievements
	stoppedAt    int64
	totalSamples int64

	cancel context.CancelFunc
	wg     sync.WaitGroup

	subMu  sync.Mutex
	subs   map[string]chan Snapshot
	latest Snapshot

	feedbackMu   sync.Mutex
	feedbackSubs map[string]chan rules.Trigger

	droppedLowConfidence int
}

// New creates a Session in StateCreated, wiring every pipeline stage
// from cfg, the same explicit-dependency-construction style as the
// teacher's TrackingPipelineConfig. Persistence is unwired: raw samples
// are counted but not stored, and fixations are kept only as hits in the
// in-memory hit log. Use NewWithPersistence to also batch-append to a
// database sink.
func New(id string, cfg *config.TuningConfig) *Session {
	return newSession(id, cfg, nil, nil, nil)
}

// NewWithPersistence creates a Session identical to New but additionally
// batch-appends raw samples to rawSink and best-effort appends events and
// hits to eventSink/hitSink, per spec.md §4.10.
func NewWithPersistence(id string, cfg *config.TuningConfig, rawSink persistence.RawSampleSink, eventSink persistence.EventSink, hitSink persistence.HitSink) *Session {
	return newSession(id, cfg, rawSink, eventSink, hitSink)
}

func newSession(id string, cfg *config.TuningConfig, rawSink persistence.RawSampleSink, eventSink persistence.EventSink, hitSink persistence.HitSink) *Session {
	s := &Session{
		ID:           id,
		cfg:          cfg,
		state:        StateCreated,
		Calibration:  calibration.New(cfg.GetScreenWidthPx(), cfg.GetScreenHeightPx()),
		AOIs:         aoi.NewIndex(),
		HitLog:       hitlog.New(),
		Achievements: achievements.New(achievements.DefaultCatalogue()),
		cog:          cogload.New(),
		subs:         make(map[string]chan Snapshot),
		feedbackSubs: make(map[string]chan rules.Trigger),
	}
	s.det = detector.New(detector.Config{
		WindowMs:             float64(cfg.GetFixationWindow().Milliseconds()),
		DispersionThresholdD: cfg.GetDispersionThresholdDeg(),
		MinFixationMs:        float64(cfg.GetMinFixation().Milliseconds()),
		PixelsPerDegree:      cfg.GetPixelsPerDegree(),
		ConfidenceThreshold:  cfg.GetConfidenceThreshold(),
	})
	s.rul = rules.New(rules.Limits{
		VocabEnabled:     cfg.GetVocabRuleEnabled,
		VocabThreshold:   cfg.GetVocabThreshold,
		GrammarEnabled:   cfg.GetGrammarRuleEnabled,
		GrammarThreshold: cfg.GetGrammarThreshold,
		HintEnabled:      cfg.GetHintRuleEnabled,
		HintThreshold:    cfg.GetHintThreshold,
		RateLimit:        cfg.GetFeedbackRateLimit,
	})
	if rawSink != nil {
		s.persist = persistence.NewWriter(id, rawSink, cfg.GetPersistBatchSize(), cfg.GetPersistBatchInterval())
	}
	if eventSink != nil && hitSink != nil {
		s.appender = persistence.NewEventAppender(id, eventSink, hitSink)
	}
	return s
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens source and begins streaming. Starting a session that is
// already Streaming returns StatusAlreadyStreaming without disturbing
// it; starting one that has been Stopped returns ErrInvalidState — a
// stopped session cannot be restarted (spec.md §2).
func (s *Session) Start(ctx context.Context, source intake.SampleSource) (intake.StreamStatus, error) {
	s.mu.Lock()
	if s.state == StateStreaming {
		s.mu.Unlock()
		return intake.StatusAlreadyStreaming, nil
	}
	if s.state == StateStopped {
		s.mu.Unlock()
		return intake.StatusDriverError, fmt.Errorf("%w: session %s already stopped", gazeerr.ErrInvalidState, s.ID)
	}

	s.intk = intake.New(source, s.cfg.GetSampleQueueDepth())
	runCtx, cancel := context.WithCancel(ctx)
	status, out, err := s.intk.StartStream(runCtx)
	if err != nil || status != intake.StatusOK {
		cancel()
		s.mu.Unlock()
		return status, err
	}

	s.cancel = cancel
	s.state = StateStreaming
	s.mu.Unlock()

	s.wg.Add(2)
	go s.runLogicWorker(runCtx, out)
	go s.runFanout(runCtx)

	if s.persist != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.persist.Run(runCtx)
		}()
	}

	return intake.StatusOK, nil
}

// runLogicWorker is the session's single serialized logic worker: every
// raw sample passes through calibration, fixation detection (a completed
// fixation is then hit-logged and rule-evaluated), and cognitive load in
// that fixed order, mirroring
// the teacher's NewFrameCallback stage sequence.
func (s *Session) runLogicWorker(ctx context.Context, samples <-chan gaze.Sample) {
	defer s.wg.Done()
	for raw := range samples {
		s.mu.Lock()
		if s.startedAt == 0 {
			s.startedAt = raw.TsNs
		}
		s.totalSamples++
		s.mu.Unlock()

		calibrated := s.Calibration.Apply(raw)

		if s.persist != nil {
			s.persist.Enqueue(db.RawSampleRow{
				TsNs:       calibrated.TsNs,
				DeviceX:    calibrated.DeviceX,
				DeviceY:    calibrated.DeviceY,
				ScreenX:    calibrated.ScreenX,
				ScreenY:    calibrated.ScreenY,
				Valid:      calibrated.Valid,
				Confidence: calibrated.Confidence,
			})
		}

		if ev, ok := s.det.Feed(calibrated); ok {
			s.handleFixation(ev)
		}

		cogScore, cogOK := s.cog.Feed(calibrated)

		snapshot := Snapshot{
			TsNs:       calibrated.TsNs,
			DeviceX:    calibrated.DeviceX,
			DeviceY:    calibrated.DeviceY,
			ScreenX:    calibrated.ScreenX,
			ScreenY:    calibrated.ScreenY,
			Confidence: calibrated.Confidence,
		}
		if hit, found := s.AOIs.FindHit(calibrated.ScreenX, calibrated.ScreenY); found {
			snapshot.CurrentAOIID = hit.ID
		}
		if cogOK {
			snapshot.CogLoadScore = cogScore.Value
			snapshot.CogLoadLevel = cogScore.Level
		}

		s.subMu.Lock()
		s.latest = snapshot
		s.subMu.Unlock()
	}

	if ev, ok := s.det.Flush(); ok {
		s.handleFixation(ev)
	}
}

// handleFixation attributes a completed fixation to an AOI by its
// centroid, logs the hit, evaluates rate-limited feedback rules, and
// feeds vocabulary progress into achievements.
func (s *Session) handleFixation(ev detector.Event) {
	a, found := s.AOIs.FindHit(ev.CentroidX, ev.CentroidY)

	if s.appender != nil {
		row := db.EventRow{
			Kind:           string(ev.Kind),
			StartTsNs:      ev.StartTsNs,
			EndTsNs:        ev.EndTsNs,
			DurationMs:     ev.DurationMs,
			CentroidX:      ev.CentroidX,
			CentroidY:      ev.CentroidY,
			MeanConfidence: ev.MeanConfidence,
		}
		if found {
			row.AOIID = a.ID
		}
		s.appender.AppendEvent(row)
	}

	if !found {
		return
	}
	hit := s.HitLog.Record(ev.EndTsNs, a, ev.CentroidX, ev.CentroidY, ev.MeanConfidence, ev.DurationMs)
	if triggers := s.rul.Evaluate(a.ID, ev.EndTsNs, time.Duration(ev.DurationMs)*time.Millisecond); len(triggers) > 0 {
		s.fanoutFeedback(triggers)
	}

	if s.appender != nil {
		s.appender.AppendHit(db.HitRow{
			SequenceNumber: hit.SequenceNumber,
			TsNs:           hit.TsNs,
			AOIID:          hit.AOIID,
			AOIText:        hit.AOIText,
			GazeX:          hit.GazeX,
			GazeY:          hit.GazeY,
			Confidence:     hit.Confidence,
			FixationMs:     hit.FixationMs,
			IsVocabulary:   hit.IsVocabulary,
		})
	}

	if a.Tier == aoi.TierVocab {
		s.Achievements.UpdateVocabularyProgress(len(s.HitLog.VocabularyDiscoveries()), ev.EndTsNs)
	}
	if s.startedAt != 0 {
		durationSeconds := float64(ev.EndTsNs-s.startedAt) / 1e9
		s.Achievements.UpdateFocusProgress(durationSeconds, ev.EndTsNs)
	}
}

// runFanout pushes the latest snapshot to every subscriber at the
// configured snapshot rate. A subscriber whose channel is full misses a
// tick rather than blocking the fan-out loop.
func (s *Session) runFanout(ctx context.Context) {
	defer s.wg.Done()
	rateHz := s.cfg.GetSnapshotRateHz()
	if rateHz <= 0 {
		rateHz = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(rateHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAllSubscribers()
			return
		case <-ticker.C:
			s.subMu.Lock()
			snapshot := s.latest
			for _, ch := range s.subs {
				select {
				case ch <- snapshot:
				default:
				}
			}
			s.subMu.Unlock()
		}
	}
}

func (s *Session) closeAllSubscribers() {
	s.subMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()

	s.feedbackMu.Lock()
	for id, ch := range s.feedbackSubs {
		close(ch)
		delete(s.feedbackSubs, id)
	}
	s.feedbackMu.Unlock()
}

// fanoutFeedback pushes every fired rule trigger to each feedback
// subscriber, one at a time, in the order rules.Engine returned them. A
// subscriber whose channel is full misses the trigger rather than
// blocking the logic worker — the same drop-rather-than-block contract
// as the snapshot fan-out.
func (s *Session) fanoutFeedback(triggers []rules.Trigger) {
	s.feedbackMu.Lock()
	defer s.feedbackMu.Unlock()
	for _, t := range triggers {
		for _, ch := range s.feedbackSubs {
			select {
			case ch <- t:
			default:
			}
		}
	}
}

// SubscribeFeedback registers a new feedback-command subscriber and
// returns its trigger channel plus an unsubscribe function, mirroring
// Subscribe's snapshot fan-out (spec.md §6: the session websocket pushes
// feedback commands as rules fire, independent of the snapshot stream).
func (s *Session) SubscribeFeedback(id string) (<-chan rules.Trigger, func()) {
	ch := make(chan rules.Trigger, 8)
	s.feedbackMu.Lock()
	s.feedbackSubs[id] = ch
	s.feedbackMu.Unlock()

	return ch, func() {
		s.feedbackMu.Lock()
		defer s.feedbackMu.Unlock()
		if existing, ok := s.feedbackSubs[id]; ok {
			close(existing)
			delete(s.feedbackSubs, id)
		}
	}
}

// LatestSnapshot returns the most recent snapshot without subscribing,
// for one-shot reads (GET /api/gaze/current, calibration capture).
func (s *Session) LatestSnapshot() Snapshot {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return s.latest
}

// Subscribe registers a new subscriber and returns its snapshot channel
// plus an unsubscribe function. The session holds subscriber sinks by
// id, not direct references, so a caller that forgets to unsubscribe
// does not leak the subscriber's own state into the session.
func (s *Session) Subscribe(id string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 4)
	s.subMu.Lock()
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if existing, ok := s.subs[id]; ok {
			close(existing)
			delete(s.subs, id)
		}
	}
}

// Stop halts the pipeline and waits for both workers to exit.
// Idempotent: calling Stop on a Created or already-Stopped session is a
// no-op (spec.md §2).
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.state = StateStopped
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	intk := s.intk
	s.state = StateStopped
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.subMu.Lock()
	s.stoppedAt = s.latest.TsNs
	s.subMu.Unlock()

	if intk != nil {
		return intk.StopStream()
	}
	return nil
}

// BuildExport assembles the session export document per spec.md §4.10:
// metadata, AOIs, hit log, statistics, calibration, and achievements. Call
// after Stop so StartedAt/StoppedAt and counts reflect the finished run.
func (s *Session) BuildExport() persistence.SessionExport {
	degraded := s.persist != nil && s.persist.Degraded()
	return persistence.SessionExport{
		SessionID:           s.ID,
		StartedAtNs:         s.startedAt,
		StoppedAtNs:         s.stoppedAt,
		ScreenWidthPx:       s.cfg.GetScreenWidthPx(),
		ScreenHeightPx:      s.cfg.GetScreenHeightPx(),
		TotalSamples:        s.totalSamples,
		PersistenceDegraded: degraded,
		Calibration:         s.Calibration.GetStatus(),
		AOIs:                s.AOIs.List(),
		Hits:                s.HitLog.All(),
		Stats:               s.HitLog.Stats(),
		Achievements:        s.Achievements.All(),
		TotalAchievementPts: s.Achievements.TotalPoints(),
	}
}

// DroppedSampleCount returns how many samples intake dropped for this
// session due to back-pressure.
func (s *Session) DroppedSampleCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intk == nil {
		return 0
	}
	return s.intk.DroppedCount()
}

// Statistics is the aggregated counter set for GET /api/session/statistics
// — a live view, unlike BuildExport's full document assembled once at
// stop time (spec.md §9's live-snapshot-vs-export-document distinction).
type Statistics struct {
	State                 State
	TotalSamples          int64
	DroppedSamples        int64
	HitCount              int
	VocabularyDiscoveries int
	AchievementPoints     int
	CogLoadScore          float64
	CogLoadLevel          cogload.Level
	Calibration           calibration.Status
	PersistenceDegraded   bool
}

// Statistics returns the current aggregated counters for this session.
func (s *Session) Statistics() Statistics {
	s.mu.Lock()
	state := s.state
	total := s.totalSamples
	s.mu.Unlock()

	s.subMu.Lock()
	latest := s.latest
	s.subMu.Unlock()

	return Statistics{
		State:                 state,
		TotalSamples:          total,
		DroppedSamples:        s.DroppedSampleCount(),
		HitCount:              len(s.HitLog.All()),
		VocabularyDiscoveries: len(s.HitLog.VocabularyDiscoveries()),
		AchievementPoints:     s.Achievements.TotalPoints(),
		CogLoadScore:          latest.CogLoadScore,
		CogLoadLevel:          latest.CogLoadLevel,
		Calibration:           s.Calibration.GetStatus(),
		PersistenceDegraded:   s.persist != nil && s.persist.Degraded(),
	}
}

// PushSample feeds one externally-decoded sample into the session's
// intake, for sessions started against an intake.PushSource (the
// /ws/sessions/{id} ingestion path). Returns false if the session isn't
// streaming or its source doesn't accept pushed samples.
func (s *Session) PushSample(sample gaze.Sample) bool {
	s.mu.Lock()
	intk := s.intk
	streaming := s.state == StateStreaming
	s.mu.Unlock()
	if !streaming || intk == nil {
		return false
	}
	return intk.Push(sample)
}

// CameraIntrinsics reports the attached device's eye-camera intrinsics,
// or the mock fallback and false if no source has been started yet or
// the source can't report real intrinsics (spec.md §9(ii)).
func (s *Session) CameraIntrinsics() (intake.CameraIntrinsics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intk == nil {
		return intake.MockCameraIntrinsics, false
	}
	return s.intk.CameraIntrinsics()
}
