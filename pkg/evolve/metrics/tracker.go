// Package metrics owns the durable interaction aggregate for the page:
// click counters, scroll depth, per-section dwell time, visit recurrence,
// and the bounded interaction log. It exposes recording operations to the
// presentation layer and immutable snapshots to the rule engine.
package metrics

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/debounce"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/storage"
)

// DefaultScrollDebounce is the quiescence window used to coalesce rapid
// scroll events into a single interaction record.
const DefaultScrollDebounce = 500 * time.Millisecond

const dateLayout = "2006-01-02"

// Tracker is the metrics store. All recording operations are best-effort:
// persistence failures are logged and swallowed, unrecognized category or
// section identifiers are silently ignored.
type Tracker struct {
	mu     sync.Mutex
	snap   Snapshot
	store  storage.Store
	logger *zap.Logger

	activeSection    Section
	sectionEnteredAt time.Time

	scrollDebounce *debounce.Debouncer
	lastScrollSeen int
	scrollPending  bool

	now func() time.Time
}

// NewTracker loads prior state from the store (absent or malformed data
// means a fresh aggregate) and returns a ready tracker.
func NewTracker(store storage.Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		store:          store,
		logger:         logger,
		scrollDebounce: debounce.New(DefaultScrollDebounce),
		now:            time.Now,
	}
	t.snap = t.load()
	return t
}

// SetScrollDebounce adjusts the scroll coalescing window. Call before
// events start flowing.
func (t *Tracker) SetScrollDebounce(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scrollDebounce = debounce.New(d)
}

// RecordClick increments the counter for a recognized category, and for
// the target category when it is distinct and recognized too. Calls with
// an unrecognized category mutate nothing.
func (t *Tracker) RecordClick(category, target Category, metadata map[string]string) {
	if !validCategory(category) {
		return
	}

	t.mu.Lock()
	t.snap.ClickCounts[category]++
	if target != "" && target != category && validCategory(target) {
		t.snap.ClickCounts[target]++
	}

	meta := map[string]string{"category": string(category)}
	if target != "" {
		meta["target"] = string(target)
	}
	for k, v := range metadata {
		meta[k] = v
	}
	t.appendInteractionLocked(InteractionClick, meta)
	t.flushLocked()
	t.mu.Unlock()
}

// RecordScroll raises the session's deepest scroll position. The depth is
// clamped to [0,100] and never decreases. A single scroll interaction
// record is appended once the burst goes quiet.
func (t *Tracker) RecordScroll(depthPercent int) {
	depthPercent = clampPercent(depthPercent)

	t.mu.Lock()
	if depthPercent > t.snap.ScrollDepthPercent {
		t.snap.ScrollDepthPercent = depthPercent
	}
	t.lastScrollSeen = depthPercent
	t.scrollPending = true
	t.mu.Unlock()

	t.scrollDebounce.Trigger(func() {
		t.mu.Lock()
		if t.scrollPending {
			t.settleScrollLocked()
			t.flushLocked()
		}
		t.mu.Unlock()
	})
}

// RecordSectionEnter switches the active section: dwell time accumulated
// in the previous section is flushed into the aggregate, the view counter
// for the new section is incremented, and the dwell timer restarts.
func (t *Tracker) RecordSectionEnter(section Section) {
	if !validSection(section) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if section == t.activeSection {
		return
	}

	now := t.now()
	t.settleDwellLocked(now)
	t.activeSection = section
	t.sectionEnteredAt = now
	t.snap.SectionViewCounts[section]++
	t.appendInteractionLocked(InteractionSectionView, map[string]string{"section": string(section)})
}

// RecordThemeChange stores the visitor's theme preference.
func (t *Tracker) RecordThemeChange(preference Theme) {
	if preference != ThemeLight && preference != ThemeDark {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.ThemePreference = preference
	t.appendInteractionLocked(InteractionThemeChange, map[string]string{"preference": string(preference)})
	t.flushLocked()
}

// RegisterVisit counts at most one visit per calendar day. Repeated calls
// on the same date are no-ops.
func (t *Tracker) RegisterVisit() {
	t.mu.Lock()
	defer t.mu.Unlock()

	today := t.now().Format(dateLayout)
	if t.snap.LastVisitDate == today {
		return
	}

	t.snap.VisitCount++
	t.snap.LastVisitDate = today
	t.appendInteractionLocked(InteractionVisit, map[string]string{"date": today})
	t.flushLocked()
}

// EngagementScore recomputes the weighted engagement scalar from current
// state, including dwell accumulated in the still-active section.
func (t *Tracker) EngagementScore() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewLocked().EngagementScore()
}

// MostDwelledSection reports the section with the most accumulated dwell
// time, ties broken by canonical section order.
func (t *Tracker) MostDwelledSection() Section {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewLocked().MostDwelledSection()
}

// Snapshot returns a deep copy of the aggregate. Dwell time of the
// currently active section is folded into the copy so rules see live
// totals; the authoritative state is not mutated.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewLocked()
}

// Reset reinitializes the aggregate to defaults with today counted as the
// first visit, flushes, and returns the fresh snapshot.
func (t *Tracker) Reset() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.scrollDebounce.Cancel()
	t.scrollPending = false
	t.snap = NewSnapshot()
	t.snap.VisitCount = 1
	t.snap.LastVisitDate = t.now().Format(dateLayout)
	t.activeSection = ""
	t.flushLocked()
	return t.snap.Clone()
}

// Flush persists the aggregate. Called on page teardown and periodically
// by the engine loop; failures are logged, never returned. A scroll record
// still waiting out its debounce window is settled first, so teardown
// never drops the session's last scroll.
func (t *Tracker) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settleScrollLocked()
	t.flushLocked()
}

// viewLocked is the read-side view: a deep copy with in-progress dwell of
// the active section folded in.
func (t *Tracker) viewLocked() Snapshot {
	view := t.snap.Clone()
	if t.activeSection != "" {
		view.SectionDwellMillis[t.activeSection] += t.now().Sub(t.sectionEnteredAt).Milliseconds()
	}
	return view
}

// settleScrollLocked appends the interaction record for a scroll burst
// that has not yet waited out its debounce window.
func (t *Tracker) settleScrollLocked() {
	if !t.scrollPending {
		return
	}
	t.scrollDebounce.Cancel()
	t.scrollPending = false
	t.appendInteractionLocked(InteractionScroll, map[string]string{
		"depth": strconv.Itoa(t.lastScrollSeen),
	})
}

// settleDwellLocked moves in-progress dwell into the aggregate and
// restarts the timer reference point.
func (t *Tracker) settleDwellLocked(now time.Time) {
	if t.activeSection == "" {
		return
	}
	elapsed := now.Sub(t.sectionEnteredAt).Milliseconds()
	if elapsed > 0 {
		t.snap.SectionDwellMillis[t.activeSection] += elapsed
	}
	t.sectionEnteredAt = now
}

func (t *Tracker) appendInteractionLocked(interactionType string, metadata map[string]string) {
	t.snap.InteractionLog = append(t.snap.InteractionLog, Interaction{
		Type:      interactionType,
		Timestamp: t.now(),
		Metadata:  metadata,
	})
	if len(t.snap.InteractionLog) > MaxInteractionLog {
		t.snap.InteractionLog = t.snap.InteractionLog[len(t.snap.InteractionLog)-MaxInteractionLog:]
	}
}

func (t *Tracker) flushLocked() {
	data, err := json.Marshal(t.viewLocked())
	if err != nil {
		t.logger.Warn("marshal metrics", zap.Error(err))
		return
	}
	if err := t.store.Set(storage.MetricsKey, data); err != nil {
		t.logger.Warn("persist metrics", zap.Error(err))
	}
}

func (t *Tracker) load() Snapshot {
	data, err := t.store.Get(storage.MetricsKey)
	if err != nil {
		t.logger.Warn("load metrics", zap.Error(err))
		return NewSnapshot()
	}
	if data == nil {
		return NewSnapshot()
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.logger.Warn("malformed persisted metrics, starting fresh", zap.Error(err))
		return NewSnapshot()
	}
	snap.normalize()
	return snap
}
