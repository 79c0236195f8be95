// Package aoi implements C3 Area-of-Interest indexing: bounding boxes
// tagged by tier (vocabulary, content, custom) that a calibrated gaze
// sample is tested against to find what the subject is looking at.
// Grounded on original_source/backend/models/aoi_element.py's
// AOIElement/AOICollection (vocabulary-first hit priority, half-open
// contains_point test) and on the teacher's l4perception cluster index
// for the concurrency shape: one writer, many concurrent readers behind
// a sync.RWMutex.
package aoi

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ganzin/gazeengine/internal/gazeerr"
)

// Tier orders AOI hit-testing priority: vocabulary beats content beats
// custom, regardless of insertion order, matching the Python reference's
// vocabulary-first find_hit.
type Tier int

const (
	TierVocab Tier = iota
	TierContent
	TierCustom
)

// AOI is one area-of-interest rectangle.
type AOI struct {
	ID       string
	Tier     Tier
	X, Y     float64
	Width    float64
	Height   float64
	Text     string
	Priority int // higher wins ties within the same tier
	seq      int // insertion order, the final tiebreak
}

// NewVocabAOI creates a vocabulary-tier AOI, the highest hit-testing
// priority tier.
func NewVocabAOI(id, text string, x, y, width, height float64) AOI {
	return AOI{ID: id, Tier: TierVocab, X: x, Y: y, Width: width, Height: height, Text: text}
}

// NewContentAOI creates a content-tier AOI (paragraphs, reading
// sections).
func NewContentAOI(id, text string, x, y, width, height float64) AOI {
	return AOI{ID: id, Tier: TierContent, X: x, Y: y, Width: width, Height: height, Text: text}
}

// NewCustomAOI creates a custom-tier AOI for caller-defined regions
// (e.g. UI chrome) that should only match when nothing else does.
func NewCustomAOI(id, text string, x, y, width, height float64) AOI {
	return AOI{ID: id, Tier: TierCustom, X: x, Y: y, Width: width, Height: height, Text: text}
}

// Contains reports whether (x,y) falls within the AOI's half-open
// rectangle: [X, X+Width) x [Y, Y+Height).
func (a AOI) Contains(x, y float64) bool {
	return x >= a.X && x < a.X+a.Width && y >= a.Y && y < a.Y+a.Height
}

// CenterX and CenterY return the rectangle's centroid, used by the hit
// log (C5) to measure a hit's distance from the AOI center.
func (a AOI) CenterX() float64 { return a.X + a.Width/2 }
func (a AOI) CenterY() float64 { return a.Y + a.Height/2 }

// Index is a single-writer, many-reader AOI set with tiered hit testing.
type Index struct {
	mu    sync.RWMutex
	byID  map[string]AOI
	order []string // insertion order, for the seq tiebreak
	seq   int
}

// NewIndex creates an empty AOI index.
func NewIndex() *Index {
	return &Index{byID: make(map[string]AOI)}
}

// Add inserts or replaces an AOI. Replacing an existing ID keeps its
// original insertion order for tiebreak purposes.
func (idx *Index) Add(a AOI) error {
	if a.ID == "" {
		return fmt.Errorf("%w: aoi id must not be empty", gazeerr.ErrInvalidSample)
	}
	if a.Width <= 0 || a.Height <= 0 {
		return fmt.Errorf("%w: aoi %q has non-positive dimensions (%gx%g)", gazeerr.ErrInvalidSample, a.ID, a.Width, a.Height)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.byID[a.ID]; ok {
		a.seq = existing.seq
	} else {
		a.seq = idx.seq
		idx.seq++
		idx.order = append(idx.order, a.ID)
	}
	idx.byID[a.ID] = a
	return nil
}

// Remove deletes an AOI by ID. Removing an unknown ID is a no-op.
func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.byID, id)
	for i, existingID := range idx.order {
		if existingID == id {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
}

// Get returns the AOI with the given ID.
func (idx *Index) Get(id string) (AOI, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	a, ok := idx.byID[id]
	return a, ok
}

// List returns every AOI, ordered by tier then insertion order.
func (idx *Index) List() []AOI {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]AOI, 0, len(idx.byID))
	for _, id := range idx.order {
		out = append(out, idx.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Tier < out[j].Tier
	})
	return out
}

// FindHit returns the highest-priority AOI containing (x,y): vocabulary
// tier first, then content, then custom; within a tier, higher Priority
// wins, and the most recently inserted AOI breaks remaining ties.
// A miss is reported through the bool return, not as an error.
func (idx *Index) FindHit(x, y float64) (AOI, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var best AOI
	found := false
	for _, id := range idx.order {
		a := idx.byID[id]
		if !a.Contains(x, y) {
			continue
		}
		if !found || better(a, best) {
			best = a
			found = true
		}
	}
	return best, found
}

// better reports whether candidate outranks current under tier, then
// priority, then insertion order (most recently inserted wins, per
// spec.md §4.3).
func better(candidate, current AOI) bool {
	if candidate.Tier != current.Tier {
		return candidate.Tier < current.Tier
	}
	if candidate.Priority != current.Priority {
		return candidate.Priority > current.Priority
	}
	return candidate.seq > current.seq
}
