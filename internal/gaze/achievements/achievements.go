// Package achievements implements C8 Achievement Tracking: a catalogue
// of monotonic progress counters that unlock once and stay unlocked.
// Ported from original_source/backend/models/achievement.py's
// Achievement/AchievementManager — same catalogue (vocabulary, focus,
// reading/session tiers), same point values, same unlock-once semantics
// — generalized from Python dataclasses into a Go struct with an
// explicit Catalogue and a bounded recent-unlocks list.
package achievements

import "sync"

// Category groups achievements for display.
type Category string

const (
	CategoryVocabulary Category = "vocabulary"
	CategoryFocus      Category = "focus"
	CategoryReading    Category = "reading"
	CategorySession    Category = "session"
)

// recentUnlocksLimit bounds the in-memory recent-unlocks feed, matching
// the Python reference's get_recent_unlocks default of 3.
const recentUnlocksLimit = 3

// Definition is one catalogue entry: its identity, target, and point
// value. Definitions never change at runtime; only Progress does.
type Definition struct {
	ID          string
	Title       string
	Description string
	Category    Category
	TargetValue float64
	Icon        string
	Points      int
}

// DefaultCatalogue returns the standard achievement set, ported
// verbatim from the Python reference's _create_standard_achievements.
func DefaultCatalogue() []Definition {
	return []Definition{
		{ID: "first_word", Title: "First Discovery", Description: "Discover your first vocabulary word", Category: CategoryVocabulary, TargetValue: 1, Icon: "📚", Points: 5},
		{ID: "vocab_explorer", Title: "Word Explorer", Description: "Discover 5 vocabulary words", Category: CategoryVocabulary, TargetValue: 5, Icon: "🔍", Points: 25},
		{ID: "vocab_master", Title: "Vocabulary Master", Description: "Discover 10 vocabulary words", Category: CategoryVocabulary, TargetValue: 10, Icon: "🎓", Points: 50},
		{ID: "vocab_genius", Title: "Word Genius", Description: "Discover 20 vocabulary words", Category: CategoryVocabulary, TargetValue: 20, Icon: "🧠", Points: 100},

		{ID: "focused_reader", Title: "Focused Reader", Description: "Maintain focus for 2 minutes", Category: CategoryFocus, TargetValue: 120, Icon: "🎯", Points: 12},
		{ID: "deep_focus", Title: "Deep Focus", Description: "Maintain focus for 5 minutes", Category: CategoryFocus, TargetValue: 300, Icon: "🧘", Points: 30},
		{ID: "laser_focus", Title: "Laser Focus", Description: "Maintain focus for 10 minutes", Category: CategoryFocus, TargetValue: 600, Icon: "⚡", Points: 60},

		{ID: "speed_reader", Title: "Speed Reader", Description: "Read 100 words per minute", Category: CategoryReading, TargetValue: 100, Icon: "💨", Points: 25},
		{ID: "comprehension_king", Title: "Comprehension King", Description: "Complete reading with 90% accuracy", Category: CategoryReading, TargetValue: 90, Icon: "👑", Points: 25},
		{ID: "session_complete", Title: "Session Complete", Description: "Complete a full reading session", Category: CategorySession, TargetValue: 1, Icon: "✅", Points: 25},
	}
}

var vocabularyAchievementIDs = []string{"first_word", "vocab_explorer", "vocab_master", "vocab_genius"}
var focusAchievementIDs = []string{"focused_reader", "deep_focus", "laser_focus"}

// Progress is one session's mutable state for a Definition.
type Progress struct {
	Definition   Definition
	Current      float64
	Unlocked     bool
	UnlockedTsNs int64
}

// ProgressPercentage returns 0-100, matching the reference's
// get_progress_percentage (a non-positive target reports 100 once the
// achievement is unlocked and 0 before).
func (p Progress) ProgressPercentage() float64 {
	if p.Definition.TargetValue <= 0 {
		if p.Unlocked {
			return 100
		}
		return 0
	}
	pct := (p.Current / p.Definition.TargetValue) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// Tracker is the authoritative, backend-owned achievement state for one
// session (per the Python reference's design note: the backend
// maintains state, the frontend only displays notifications).
type Tracker struct {
	mu            sync.Mutex
	progress      map[string]*Progress
	recentUnlocks []Progress
}

// New creates a Tracker seeded with catalogue, in catalogue order.
func New(catalogue []Definition) *Tracker {
	t := &Tracker{progress: make(map[string]*Progress, len(catalogue))}
	for _, def := range catalogue {
		t.progress[def.ID] = &Progress{Definition: def}
	}
	return t
}

// updateLocked raises the named achievement's progress to newValue (a
// lower value leaves it unchanged), unlocking it (once) if it now meets
// its target. Caller must hold t.mu.
func (t *Tracker) updateLocked(id string, newValue float64, tsNs int64) (Progress, bool) {
	p, ok := t.progress[id]
	if !ok {
		return Progress{}, false
	}
	if newValue > p.Current {
		p.Current = newValue
	}
	if !p.Unlocked && p.Current >= p.Definition.TargetValue {
		p.Unlocked = true
		p.UnlockedTsNs = tsNs
		t.recentUnlocks = append(t.recentUnlocks, *p)
		if len(t.recentUnlocks) > recentUnlocksLimit {
			t.recentUnlocks = t.recentUnlocks[len(t.recentUnlocks)-recentUnlocksLimit:]
		}
		return *p, true
	}
	return Progress{}, false
}

// UpdateVocabularyProgress feeds the current vocabulary-discovery count
// into every vocabulary-tier achievement, returning those newly
// unlocked by this call.
func (t *Tracker) UpdateVocabularyProgress(vocabularyCount int, tsNs int64) []Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	var unlocked []Progress
	for _, id := range vocabularyAchievementIDs {
		if p, ok := t.updateLocked(id, float64(vocabularyCount), tsNs); ok {
			unlocked = append(unlocked, p)
		}
	}
	return unlocked
}

// UpdateFocusProgress feeds the current session duration into every
// focus-tier achievement.
func (t *Tracker) UpdateFocusProgress(sessionDurationSeconds float64, tsNs int64) []Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	var unlocked []Progress
	for _, id := range focusAchievementIDs {
		if p, ok := t.updateLocked(id, sessionDurationSeconds, tsNs); ok {
			unlocked = append(unlocked, p)
		}
	}
	return unlocked
}

// UpdateReadingProgress feeds reading speed and completion into the
// reading/session achievements.
func (t *Tracker) UpdateReadingProgress(wordsPerMinute, completionPercentage float64, tsNs int64) []Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	var unlocked []Progress
	if p, ok := t.updateLocked("speed_reader", wordsPerMinute, tsNs); ok {
		unlocked = append(unlocked, p)
	}
	if completionPercentage >= 90 {
		if p, ok := t.updateLocked("session_complete", 1, tsNs); ok {
			unlocked = append(unlocked, p)
		}
	}
	return unlocked
}

// RecentUnlocks returns the most recent unlocks, oldest first, bounded
// to recentUnlocksLimit.
func (t *Tracker) RecentUnlocks() []Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Progress, len(t.recentUnlocks))
	copy(out, t.recentUnlocks)
	return out
}

// All returns every achievement's current progress.
func (t *Tracker) All() []Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Progress, 0, len(t.progress))
	for _, p := range t.progress {
		out = append(out, *p)
	}
	return out
}

// TotalPoints sums the points of every unlocked achievement.
func (t *Tracker) TotalPoints() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, p := range t.progress {
		if p.Unlocked {
			total += p.Definition.Points
		}
	}
	return total
}
