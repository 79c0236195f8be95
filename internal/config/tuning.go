// Package config loads the gaze-engine tuning configuration: every
// enumerated knob in spec.md §6, plus the defaults each one falls back to
// when omitted. Fields are pointer-optional so a partial JSON file only
// overrides what it mentions; Get* accessors supply the production default
// otherwise — the same pattern the teacher's tuning config uses for its
// background/tracker/frame-builder parameters.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultConfigPath is the canonical path to the tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root configuration for the gaze pipeline. It doubles
// as the request/response body for GET/POST /api/config, so the same JSON
// shape configures the process at startup and can be queried/patched live.
type TuningConfig struct {
	FixationWindowMs     *int     `json:"fixation_window_ms,omitempty"`
	DispersionThresholdD *float64 `json:"dispersion_threshold_deg,omitempty"`
	MinFixationMs        *int     `json:"min_fixation_ms,omitempty"`
	ConfidenceThreshold  *float64 `json:"confidence_threshold,omitempty"`
	SamplingRateHz       *int     `json:"sampling_rate_hz,omitempty"`
	SnapshotRateHz       *int     `json:"snapshot_rate_hz,omitempty"`
	FeedbackRateLimitMs  *int     `json:"feedback_rate_limit_ms,omitempty"`
	VocabThresholdMs     *int     `json:"vocab_threshold_ms,omitempty"`
	GrammarThresholdMs   *int     `json:"grammar_threshold_ms,omitempty"`
	HintThresholdMs      *int     `json:"hint_threshold_ms,omitempty"`
	ScreenWidthPx        *float64 `json:"screen_width_px,omitempty"`
	ScreenHeightPx       *float64 `json:"screen_height_px,omitempty"`
	PixelsPerDegree      *float64 `json:"pixels_per_degree,omitempty"`
	SampleQueueDepth     *int     `json:"sample_queue_depth,omitempty"`
	PersistBatchSize     *int     `json:"persist_batch_size,omitempty"`
	PersistBatchMs       *int     `json:"persist_batch_ms,omitempty"`

	// Rule enable/disable switches (spec.md §4.7).
	VocabRuleEnabled   *bool `json:"vocab_rule_enabled,omitempty"`
	GrammarRuleEnabled *bool `json:"grammar_rule_enabled,omitempty"`
	HintRuleEnabled    *bool `json:"hint_rule_enabled,omitempty"`

	mu sync.RWMutex
}

// EmptyTuningConfig returns a TuningConfig with every field unset; Get*
// accessors then return production defaults for all of them.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig reads and validates a TuningConfig from a JSON file.
// Fields omitted from the file keep their production defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that set values are within sane bounds.
func (c *TuningConfig) Validate() error {
	if c.ConfidenceThreshold != nil {
		if *c.ConfidenceThreshold < 0 || *c.ConfidenceThreshold > 1 {
			return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", *c.ConfidenceThreshold)
		}
	}
	if c.DispersionThresholdD != nil && *c.DispersionThresholdD <= 0 {
		return fmt.Errorf("dispersion_threshold_deg must be positive, got %f", *c.DispersionThresholdD)
	}
	if c.SampleQueueDepth != nil && *c.SampleQueueDepth <= 0 {
		return fmt.Errorf("sample_queue_depth must be positive, got %d", *c.SampleQueueDepth)
	}
	if c.PersistBatchSize != nil && *c.PersistBatchSize <= 0 {
		return fmt.Errorf("persist_batch_size must be positive, got %d", *c.PersistBatchSize)
	}
	return nil
}

// Clone returns a deep-enough copy safe to mutate independently (the
// /api/config handler serialises a clone as its response body).
func (c *TuningConfig) Clone() *TuningConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	clone := EmptyTuningConfig()
	_ = json.Unmarshal(data, clone)
	return clone
}

// ApplyPatch merges non-nil fields from patch into c under lock, used for
// the live-tuning POST /api/config endpoint.
func (c *TuningConfig) ApplyPatch(patch *TuningConfig) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if patch.FixationWindowMs != nil {
		c.FixationWindowMs = patch.FixationWindowMs
	}
	if patch.DispersionThresholdD != nil {
		c.DispersionThresholdD = patch.DispersionThresholdD
	}
	if patch.MinFixationMs != nil {
		c.MinFixationMs = patch.MinFixationMs
	}
	if patch.ConfidenceThreshold != nil {
		c.ConfidenceThreshold = patch.ConfidenceThreshold
	}
	if patch.SamplingRateHz != nil {
		c.SamplingRateHz = patch.SamplingRateHz
	}
	if patch.SnapshotRateHz != nil {
		c.SnapshotRateHz = patch.SnapshotRateHz
	}
	if patch.FeedbackRateLimitMs != nil {
		c.FeedbackRateLimitMs = patch.FeedbackRateLimitMs
	}
	if patch.VocabThresholdMs != nil {
		c.VocabThresholdMs = patch.VocabThresholdMs
	}
	if patch.GrammarThresholdMs != nil {
		c.GrammarThresholdMs = patch.GrammarThresholdMs
	}
	if patch.HintThresholdMs != nil {
		c.HintThresholdMs = patch.HintThresholdMs
	}
	if patch.ScreenWidthPx != nil {
		c.ScreenWidthPx = patch.ScreenWidthPx
	}
	if patch.ScreenHeightPx != nil {
		c.ScreenHeightPx = patch.ScreenHeightPx
	}
	if patch.PixelsPerDegree != nil {
		c.PixelsPerDegree = patch.PixelsPerDegree
	}
	if patch.SampleQueueDepth != nil {
		c.SampleQueueDepth = patch.SampleQueueDepth
	}
	if patch.PersistBatchSize != nil {
		c.PersistBatchSize = patch.PersistBatchSize
	}
	if patch.PersistBatchMs != nil {
		c.PersistBatchMs = patch.PersistBatchMs
	}
	if patch.VocabRuleEnabled != nil {
		c.VocabRuleEnabled = patch.VocabRuleEnabled
	}
	if patch.GrammarRuleEnabled != nil {
		c.GrammarRuleEnabled = patch.GrammarRuleEnabled
	}
	if patch.HintRuleEnabled != nil {
		c.HintRuleEnabled = patch.HintRuleEnabled
	}
	return nil
}

// Get* accessors: each returns the configured value or the production
// default from spec.md §6.

func (c *TuningConfig) GetFixationWindow() time.Duration {
	if c.FixationWindowMs == nil {
		return 100 * time.Millisecond
	}
	return time.Duration(*c.FixationWindowMs) * time.Millisecond
}

func (c *TuningConfig) GetDispersionThresholdDeg() float64 {
	if c.DispersionThresholdD == nil {
		return 1.0
	}
	return *c.DispersionThresholdD
}

func (c *TuningConfig) GetMinFixation() time.Duration {
	if c.MinFixationMs == nil {
		return 200 * time.Millisecond
	}
	return time.Duration(*c.MinFixationMs) * time.Millisecond
}

func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.8
	}
	return *c.ConfidenceThreshold
}

func (c *TuningConfig) GetSamplingRateHz() int {
	if c.SamplingRateHz == nil {
		return 120
	}
	return *c.SamplingRateHz
}

func (c *TuningConfig) GetSnapshotRateHz() int {
	if c.SnapshotRateHz == nil {
		return 20
	}
	return *c.SnapshotRateHz
}

func (c *TuningConfig) GetFeedbackRateLimit() time.Duration {
	if c.FeedbackRateLimitMs == nil {
		return 5000 * time.Millisecond
	}
	return time.Duration(*c.FeedbackRateLimitMs) * time.Millisecond
}

func (c *TuningConfig) GetVocabThreshold() time.Duration {
	if c.VocabThresholdMs == nil {
		return 1500 * time.Millisecond
	}
	return time.Duration(*c.VocabThresholdMs) * time.Millisecond
}

func (c *TuningConfig) GetGrammarThreshold() time.Duration {
	if c.GrammarThresholdMs == nil {
		return 2000 * time.Millisecond
	}
	return time.Duration(*c.GrammarThresholdMs) * time.Millisecond
}

func (c *TuningConfig) GetHintThreshold() time.Duration {
	if c.HintThresholdMs == nil {
		return 3000 * time.Millisecond
	}
	return time.Duration(*c.HintThresholdMs) * time.Millisecond
}

func (c *TuningConfig) GetScreenWidthPx() float64 {
	if c.ScreenWidthPx == nil {
		return 1920
	}
	return *c.ScreenWidthPx
}

func (c *TuningConfig) GetScreenHeightPx() float64 {
	if c.ScreenHeightPx == nil {
		return 1080
	}
	return *c.ScreenHeightPx
}

func (c *TuningConfig) GetPixelsPerDegree() float64 {
	if c.PixelsPerDegree == nil {
		return 35.0
	}
	return *c.PixelsPerDegree
}

func (c *TuningConfig) GetSampleQueueDepth() int {
	if c.SampleQueueDepth == nil {
		return 256
	}
	return *c.SampleQueueDepth
}

func (c *TuningConfig) GetPersistBatchSize() int {
	if c.PersistBatchSize == nil {
		return 10
	}
	return *c.PersistBatchSize
}

func (c *TuningConfig) GetPersistBatchInterval() time.Duration {
	if c.PersistBatchMs == nil {
		return 100 * time.Millisecond
	}
	return time.Duration(*c.PersistBatchMs) * time.Millisecond
}

func (c *TuningConfig) GetVocabRuleEnabled() bool {
	if c.VocabRuleEnabled == nil {
		return true
	}
	return *c.VocabRuleEnabled
}

func (c *TuningConfig) GetGrammarRuleEnabled() bool {
	if c.GrammarRuleEnabled == nil {
		return true
	}
	return *c.GrammarRuleEnabled
}

func (c *TuningConfig) GetHintRuleEnabled() bool {
	if c.HintRuleEnabled == nil {
		return true
	}
	return *c.HintRuleEnabled
}
