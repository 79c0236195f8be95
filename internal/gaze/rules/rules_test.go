package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func always(b bool) func() bool { return func() bool { return b } }
func fixed(d time.Duration) func() time.Duration { return func() time.Duration { return d } }

func defaultLimits() Limits {
	return Limits{
		VocabEnabled:     always(true),
		VocabThreshold:   fixed(1500 * time.Millisecond),
		GrammarEnabled:   always(true),
		GrammarThreshold: fixed(2000 * time.Millisecond),
		HintEnabled:      always(true),
		HintThreshold:    fixed(3000 * time.Millisecond),
		RateLimit:        fixed(5000 * time.Millisecond),
	}
}

func TestEvaluateFiresOnlyTheFirstQualifyingRuleInTableOrder(t *testing.T) {
	e := New(defaultLimits())
	fired := e.Evaluate("aoi1", int64(4*time.Second), 3500*time.Millisecond)
	require.Len(t, fired, 1)
	require.Equal(t, KindVocabulary, fired[0].Kind)
}

func TestEvaluateSkipsRuleBelowThreshold(t *testing.T) {
	e := New(defaultLimits())
	fired := e.Evaluate("aoi1", int64(time.Second), 1600*time.Millisecond)
	require.Len(t, fired, 1)
	require.Equal(t, KindVocabulary, fired[0].Kind)
}

func TestEvaluateRespectsSessionWideRateLimit(t *testing.T) {
	e := New(defaultLimits())
	first := e.Evaluate("aoi1", int64(0), 1600*time.Millisecond)
	require.Len(t, first, 1)

	// Same AOI, same rule, within the 5s rate limit window: suppressed.
	second := e.Evaluate("aoi1", int64(2*time.Second), 1600*time.Millisecond)
	require.Empty(t, second)

	// Past the rate limit window: fires again.
	third := e.Evaluate("aoi1", int64(6*time.Second), 1600*time.Millisecond)
	require.Len(t, third, 1)
}

func TestEvaluateDisabledRuleNeverFires(t *testing.T) {
	limits := defaultLimits()
	limits.VocabEnabled = always(false)
	e := New(limits)
	fired := e.Evaluate("aoi1", int64(0), 10*time.Second)
	require.Len(t, fired, 1)
	require.Equal(t, KindGrammar, fired[0].Kind)
}

// TestEvaluateRateLimitAppliesAcrossDifferentAOIs locks in spec.md §4.7's
// per-session (not per-AOI) rate limit and §8 scenario D: two qualifying
// fixations on different vocab AOIs 2s apart only emit one command, and
// a third qualifying fixation 5.5s after the first emits the second.
func TestEvaluateRateLimitAppliesAcrossDifferentAOIs(t *testing.T) {
	e := New(defaultLimits())
	first := e.Evaluate("aoi1", int64(0), 1600*time.Millisecond)
	require.Len(t, first, 1)

	second := e.Evaluate("aoi2", int64(2*time.Second), 1600*time.Millisecond)
	require.Empty(t, second)

	third := e.Evaluate("aoi2", int64(int64(5500*time.Millisecond)), 1600*time.Millisecond)
	require.Len(t, third, 1)
}
