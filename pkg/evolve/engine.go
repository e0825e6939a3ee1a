package evolve

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/debounce"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/effects"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/metrics"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/parser"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/storage"
)

// Default trigger cadence: a periodic pass plus a debounced pass shortly
// after user interactions.
const (
	DefaultEvalInterval        = 10 * time.Second
	DefaultInteractionDebounce = time.Second
)

// Rule is one compiled catalog entry together with its transient firing
// state. State lives here, initialized at construction; it is never
// patched on after the fact and never persisted.
type Rule struct {
	Name        string
	Description string
	Source      string
	Cooldown    time.Duration

	condition parser.Expression

	// Transient, process-lifetime only.
	lastFired time.Time
	active    bool
}

// RuleStatus is the read-only view of a rule exposed to the presentation
// layer.
type RuleStatus struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Source         string     `json:"source"`
	CooldownMillis int64      `json:"cooldown_ms"`
	LastFired      *time.Time `json:"last_fired,omitempty"`
	Active         bool       `json:"active"`
}

// Engine evaluates the rule catalog against metrics snapshots and fires
// eligible adaptations through the effect registry. Rules are strict
// one-shot-per-session: once fired, a rule stays active until the process
// restarts. Evaluation passes are serialized, so rapid triggers can never
// double-fire a rule.
type Engine struct {
	tracker  *metrics.Tracker
	store    storage.Store
	registry *effects.Registry
	logger   *zap.Logger

	mu      sync.RWMutex
	rules   []*Rule
	history []HistoryRecord
	running bool

	evalMu sync.Mutex

	interval    time.Duration
	interaction *debounce.Debouncer
	stopCh      chan struct{}
	watcher     *fsnotify.Watcher

	now func() time.Time
}

// NewEngine builds an engine over the tracker and store, loads the
// persisted evolution history, and installs the default catalog.
func NewEngine(tracker *metrics.Tracker, store storage.Store, registry *effects.Registry, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		tracker:     tracker,
		store:       store,
		registry:    registry,
		logger:      logger,
		interval:    DefaultEvalInterval,
		interaction: debounce.New(DefaultInteractionDebounce),
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	if err := e.SetCatalog(DefaultCatalog()); err != nil {
		return nil, fmt.Errorf("default catalog: %w", err)
	}

	e.history = e.loadHistory()
	return e, nil
}

// SetEvalInterval adjusts the periodic evaluation cadence. Call before
// Start.
func (e *Engine) SetEvalInterval(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d > 0 {
		e.interval = d
	}
}

// SetInteractionDebounce adjusts the post-interaction trigger delay.
func (e *Engine) SetInteractionDebounce(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d > 0 {
		e.interaction = debounce.New(d)
	}
}

// SetCatalog replaces the rule catalog. Firing state carries over for
// rule names that survive the swap, so a hot reload cannot re-arm an
// already-fired one-shot rule.
func (e *Engine) SetCatalog(specs []RuleSpec) error {
	rules, err := CompileCatalog(specs)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	previous := make(map[string]*Rule, len(e.rules))
	for _, rule := range e.rules {
		previous[rule.Name] = rule
	}
	for _, rule := range rules {
		if old, ok := previous[rule.Name]; ok {
			rule.lastFired = old.lastFired
			rule.active = old.active
		}
	}
	e.rules = rules
	return nil
}

// Start launches the periodic evaluation loop. Idempotent.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return
	}

	e.running = true
	go e.evaluationLoop(e.stopCh, e.interval)
}

// Stop halts the loop and any catalog watcher. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.watcher != nil {
		e.watcher.Close()
		e.watcher = nil
	}
	if !e.running {
		return
	}

	e.running = false
	close(e.stopCh)
	e.stopCh = make(chan struct{}) // Recreate channel for potential restart
	e.interaction.Cancel()
}

// IsRunning reports whether the evaluation loop is active.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// NotifyInteraction schedules an evaluation pass shortly after a burst of
// user interactions goes quiet.
func (e *Engine) NotifyInteraction() {
	e.mu.RLock()
	interaction := e.interaction
	e.mu.RUnlock()
	interaction.Trigger(e.Evaluate)
}

func (e *Engine) evaluationLoop(stopCh chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Evaluate()
			e.tracker.Flush()
		case <-stopCh:
			return
		}
	}
}

// Evaluate runs one pass over the catalog in order. A rule fires when its
// condition holds against a fresh snapshot, its cooldown has elapsed, and
// it has not already fired this session. Passes are serialized; calling
// Evaluate rapidly from multiple triggers is a safe no-op when nothing
// is newly eligible.
func (e *Engine) Evaluate() {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()

	snap := e.tracker.Snapshot()
	now := e.now()

	e.mu.RLock()
	rules := make([]*Rule, len(e.rules))
	copy(rules, e.rules)
	e.mu.RUnlock()

	for _, rule := range rules {
		if !e.eligible(rule, now) {
			continue
		}

		fired, err := evalCondition(rule.condition, snap)
		if err != nil {
			e.logger.Warn("rule condition error",
				zap.String("rule", rule.Name),
				zap.Error(err))
			continue
		}
		if !fired {
			continue
		}

		e.fire(rule, snap, now)
	}
}

func (e *Engine) eligible(rule *Rule, now time.Time) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if rule.active {
		return false
	}
	// Never-fired counts as cooldown satisfied.
	if !rule.lastFired.IsZero() && now.Sub(rule.lastFired) <= rule.Cooldown {
		return false
	}
	return true
}

func (e *Engine) fire(rule *Rule, snap metrics.Snapshot, now time.Time) {
	record := HistoryRecord{
		ID:              uuid.New().String(),
		Timestamp:       now,
		Rule:            rule.Name,
		Description:     rule.Description,
		Snapshot:        snap.Clone(),
		EngagementScore: snap.EngagementScore(),
	}

	e.mu.Lock()
	rule.lastFired = now
	rule.active = true
	// A hot reload can swap e.rules mid-pass while this pass still walks
	// its copy. Stamp the live entry with the same name too, so the next
	// pass sees the fire and the rule stays one-shot.
	for _, live := range e.rules {
		if live != rule && live.Name == rule.Name {
			live.lastFired = now
			live.active = true
		}
	}
	e.history = append(e.history, record)
	if len(e.history) > MaxHistory {
		e.history = e.history[len(e.history)-MaxHistory:]
	}
	e.mu.Unlock()

	e.logger.Info("rule fired",
		zap.String("rule", rule.Name),
		zap.Float64("engagement", record.EngagementScore))

	// The callback is presentation-owned and opaque; the registry
	// recovers panics so a bad effect cannot stop the pass.
	e.registry.Fire(rule.Name, rule.Description)

	e.persistHistory()
}

// History returns a copy of the evolution history, oldest first.
func (e *Engine) History() []HistoryRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]HistoryRecord, len(e.history))
	copy(out, e.history)
	return out
}

// Insights aggregates the history: total fires, per-description counts,
// and the average engagement score at fire time.
func (e *Engine) Insights() Insights {
	return computeInsights(e.History())
}

// Rules reports the catalog with per-rule firing state, in evaluation
// order.
func (e *Engine) Rules() []RuleStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]RuleStatus, len(e.rules))
	for i, rule := range e.rules {
		status := RuleStatus{
			Name:           rule.Name,
			Description:    rule.Description,
			Source:         rule.Source,
			CooldownMillis: rule.Cooldown.Milliseconds(),
			Active:         rule.active,
		}
		if !rule.lastFired.IsZero() {
			fired := rule.lastFired
			status.LastFired = &fired
		}
		out[i] = status
	}
	return out
}

// WatchCatalog hot-reloads the catalog whenever the YAML file changes.
// A file that fails to load keeps the current catalog in place.
func (e *Engine) WatchCatalog(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which drops
	// a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}

	e.mu.Lock()
	e.watcher = watcher
	e.mu.Unlock()

	base := filepath.Base(path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				specs, err := LoadCatalogFile(path)
				if err != nil {
					e.logger.Warn("catalog reload failed", zap.Error(err))
					continue
				}
				if err := e.SetCatalog(specs); err != nil {
					e.logger.Warn("catalog reload rejected", zap.Error(err))
					continue
				}
				e.logger.Info("catalog reloaded", zap.Int("rules", len(specs)))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				e.logger.Warn("catalog watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func (e *Engine) persistHistory() {
	e.mu.RLock()
	records := make([]HistoryRecord, len(e.history))
	copy(records, e.history)
	e.mu.RUnlock()

	data, err := json.Marshal(records)
	if err != nil {
		e.logger.Warn("marshal history", zap.Error(err))
		return
	}
	if err := e.store.Set(storage.HistoryKey, data); err != nil {
		e.logger.Warn("persist history", zap.Error(err))
	}
}

func (e *Engine) loadHistory() []HistoryRecord {
	data, err := e.store.Get(storage.HistoryKey)
	if err != nil {
		e.logger.Warn("load history", zap.Error(err))
		return nil
	}
	if data == nil {
		return nil
	}

	var records []HistoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		e.logger.Warn("malformed persisted history, starting fresh", zap.Error(err))
		return nil
	}
	if len(records) > MaxHistory {
		records = records[len(records)-MaxHistory:]
	}
	return records
}
