package evolve

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/effects"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/metrics"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/storage"
)

// fireRecorder captures effect invocations through the registry observer.
type fireRecorder struct {
	mu    sync.Mutex
	fires []string
}

func (r *fireRecorder) observe(rule, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fires = append(r.fires, rule)
}

func (r *fireRecorder) count(rule string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, fired := range r.fires {
		if fired == rule {
			n++
		}
	}
	return n
}

func (r *fireRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.fires))
	copy(out, r.fires)
	return out
}

func newTestEngine(t *testing.T, store storage.Store) (*Engine, *metrics.Tracker, *fireRecorder) {
	t.Helper()

	tracker := metrics.NewTracker(store, nil)
	registry := effects.NewRegistry(nil)
	recorder := &fireRecorder{}
	registry.Observe(recorder.observe)

	engine, err := NewEngine(tracker, store, registry, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine, tracker, recorder
}

func TestEngineOneShot(t *testing.T) {
	engine, tracker, recorder := newTestEngine(t, storage.NewMemoryStore())

	err := engine.SetCatalog([]RuleSpec{
		{Name: "clicky", Description: "clicked once", When: "clicks.projects >= 1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	tracker.RecordClick(metrics.CategoryProjects, "", nil)

	engine.Evaluate()
	engine.Evaluate()
	engine.Evaluate()

	if got := recorder.count("clicky"); got != 1 {
		t.Errorf("rule fired %d times, want exactly 1", got)
	}
	if got := len(engine.History()); got != 1 {
		t.Errorf("history has %d records, want 1", got)
	}
}

func TestEngineCooldownBeforeOneShot(t *testing.T) {
	engine, tracker, recorder := newTestEngine(t, storage.NewMemoryStore())

	err := engine.SetCatalog([]RuleSpec{
		{Name: "clicky", When: "clicks.projects >= 1", Cooldown: time.Minute},
	})
	if err != nil {
		t.Fatal(err)
	}

	current := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return current }

	tracker.RecordClick(metrics.CategoryProjects, "", nil)
	engine.Evaluate()
	if got := recorder.count("clicky"); got != 1 {
		t.Fatalf("rule fired %d times, want 1", got)
	}

	// Within cooldown: blocked, and past cooldown: still blocked because
	// the rule already fired this session.
	current = current.Add(30 * time.Second)
	engine.Evaluate()
	current = current.Add(10 * time.Minute)
	engine.Evaluate()

	if got := recorder.count("clicky"); got != 1 {
		t.Errorf("rule fired %d times across cooldown boundary, want 1", got)
	}
}

func TestEngineCatalogOrder(t *testing.T) {
	engine, tracker, recorder := newTestEngine(t, storage.NewMemoryStore())

	err := engine.SetCatalog([]RuleSpec{
		{Name: "first", When: "clicks.projects >= 1"},
		{Name: "second", When: "clicks.projects >= 1"},
		{Name: "third", When: "clicks.contact >= 99"},
	})
	if err != nil {
		t.Fatal(err)
	}

	tracker.RecordClick(metrics.CategoryProjects, "", nil)
	engine.Evaluate()

	fires := recorder.all()
	if len(fires) != 2 || fires[0] != "first" || fires[1] != "second" {
		t.Errorf("fires = %v, want [first second]", fires)
	}
}

func TestEngineConditionErrorDoesNotFire(t *testing.T) {
	engine, tracker, recorder := newTestEngine(t, storage.NewMemoryStore())

	// Division by zero at evaluation time; compiles fine.
	err := engine.SetCatalog([]RuleSpec{
		{Name: "divzero", When: "clicks.projects / clicks.contact > 0"},
		{Name: "healthy", When: "clicks.projects >= 1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	tracker.RecordClick(metrics.CategoryProjects, "", nil)
	engine.Evaluate()

	if got := recorder.count("divzero"); got != 0 {
		t.Errorf("erroring rule fired %d times, want 0", got)
	}
	// A bad rule never blocks the rest of the pass.
	if got := recorder.count("healthy"); got != 1 {
		t.Errorf("healthy rule fired %d times, want 1", got)
	}
}

func TestEngineHotReloadPreservesState(t *testing.T) {
	engine, tracker, recorder := newTestEngine(t, storage.NewMemoryStore())

	err := engine.SetCatalog([]RuleSpec{
		{Name: "clicky", When: "clicks.projects >= 1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	tracker.RecordClick(metrics.CategoryProjects, "", nil)
	engine.Evaluate()

	// Reload with the same rule name plus a new rule. The fired state
	// must survive; the new rule starts fresh.
	err = engine.SetCatalog([]RuleSpec{
		{Name: "clicky", When: "clicks.projects >= 1"},
		{Name: "newcomer", When: "clicks.projects >= 1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	engine.Evaluate()
	if got := recorder.count("clicky"); got != 1 {
		t.Errorf("reloaded rule re-fired: %d fires, want 1", got)
	}
	if got := recorder.count("newcomer"); got != 1 {
		t.Errorf("new rule fired %d times, want 1", got)
	}

	statuses := engine.Rules()
	if len(statuses) != 2 {
		t.Fatalf("rule statuses = %d, want 2", len(statuses))
	}
	if !statuses[0].Active || statuses[0].LastFired == nil {
		t.Errorf("reloaded rule lost its firing state: %+v", statuses[0])
	}
}

func TestEngineHotReloadDuringEvaluation(t *testing.T) {
	store := storage.NewMemoryStore()
	tracker := metrics.NewTracker(store, nil)
	registry := effects.NewRegistry(nil)
	recorder := &fireRecorder{}
	registry.Observe(recorder.observe)

	// Block the pass inside the first rule's effect callback so a reload
	// can land while the second rule is still pending.
	entered := make(chan struct{})
	release := make(chan struct{})
	registry.Register("a", func() {
		close(entered)
		<-release
	})

	engine, err := NewEngine(tracker, store, registry, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	specs := []RuleSpec{
		{Name: "a", When: "clicks.projects >= 1"},
		{Name: "b", When: "clicks.projects >= 1"},
	}
	if err := engine.SetCatalog(specs); err != nil {
		t.Fatal(err)
	}

	tracker.RecordClick(metrics.CategoryProjects, "", nil)

	done := make(chan struct{})
	go func() {
		engine.Evaluate()
		close(done)
	}()

	<-entered
	if err := engine.SetCatalog(specs); err != nil {
		t.Fatal(err)
	}
	close(release)
	<-done

	engine.Evaluate()

	if got := recorder.count("a"); got != 1 {
		t.Errorf("rule a fired %d times across a mid-pass reload, want 1", got)
	}
	if got := recorder.count("b"); got != 1 {
		t.Errorf("rule b fired %d times across a mid-pass reload, want 1", got)
	}
	if got := len(engine.History()); got != 2 {
		t.Errorf("history has %d records, want 2", got)
	}
}

func TestEngineHistoryPersistence(t *testing.T) {
	store := storage.NewMemoryStore()
	engine, tracker, _ := newTestEngine(t, store)

	err := engine.SetCatalog([]RuleSpec{
		{Name: "clicky", Description: "clicked", When: "clicks.projects >= 1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	tracker.RecordClick(metrics.CategoryProjects, "", nil)
	engine.Evaluate()

	records := engine.History()
	if len(records) != 1 {
		t.Fatalf("history = %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.ID == "" {
		t.Error("history record has no id")
	}
	if rec.Rule != "clicky" || rec.Description != "clicked" {
		t.Errorf("record = %s/%s, want clicky/clicked", rec.Rule, rec.Description)
	}
	if rec.Snapshot.ClickCounts[metrics.CategoryProjects] != 1 {
		t.Error("record snapshot does not reflect the triggering state")
	}
	if rec.EngagementScore <= 0 {
		t.Errorf("record engagement score = %v, want > 0", rec.EngagementScore)
	}

	// A second engine over the same store sees the persisted history.
	reloaded, _, _ := newTestEngine(t, store)
	if got := len(reloaded.History()); got != 1 {
		t.Errorf("reloaded history = %d records, want 1", got)
	}
	if got := reloaded.Insights().TotalEvolutions; got != 1 {
		t.Errorf("reloaded insights total = %d, want 1", got)
	}
}

func TestEngineHistoryCapOnFire(t *testing.T) {
	engine, tracker, _ := newTestEngine(t, storage.NewMemoryStore())

	// More always-true rules than the ring holds; one pass overflows it.
	specs := make([]RuleSpec, MaxHistory+5)
	for i := range specs {
		specs[i] = RuleSpec{Name: fmt.Sprintf("r%03d", i), When: "clicks.projects >= 1"}
	}
	if err := engine.SetCatalog(specs); err != nil {
		t.Fatal(err)
	}

	tracker.RecordClick(metrics.CategoryProjects, "", nil)
	engine.Evaluate()

	records := engine.History()
	if len(records) != MaxHistory {
		t.Fatalf("history has %d records, want %d", len(records), MaxHistory)
	}
	if records[0].Rule != "r005" {
		t.Errorf("oldest surviving record = %s, want r005", records[0].Rule)
	}
	if last := records[len(records)-1].Rule; last != fmt.Sprintf("r%03d", MaxHistory+4) {
		t.Errorf("newest record = %s, want r%03d", last, MaxHistory+4)
	}
}

func TestEngineHistoryCapOnLoad(t *testing.T) {
	store := storage.NewMemoryStore()

	seeded := make([]HistoryRecord, MaxHistory+50)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	for i := range seeded {
		seeded[i] = HistoryRecord{
			ID:        fmt.Sprintf("rec-%03d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Rule:      "seeded",
		}
	}
	data, err := json.Marshal(seeded)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set(storage.HistoryKey, data); err != nil {
		t.Fatal(err)
	}

	engine, _, _ := newTestEngine(t, store)

	records := engine.History()
	if len(records) != MaxHistory {
		t.Fatalf("loaded history has %d records, want %d", len(records), MaxHistory)
	}
	if records[0].ID != "rec-050" {
		t.Errorf("oldest surviving record = %s, want rec-050", records[0].ID)
	}
}

func TestEngineMalformedHistory(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.Set(storage.HistoryKey, []byte("{broken")); err != nil {
		t.Fatal(err)
	}

	engine, _, _ := newTestEngine(t, store)
	if got := len(engine.History()); got != 0 {
		t.Errorf("history = %d records from malformed data, want 0", got)
	}
}

func TestEngineInsights(t *testing.T) {
	engine, tracker, _ := newTestEngine(t, storage.NewMemoryStore())

	err := engine.SetCatalog([]RuleSpec{
		{Name: "a", Description: "alpha", When: "clicks.projects >= 1"},
		{Name: "b", Description: "alpha", When: "clicks.projects >= 1"},
		{Name: "c", Description: "gamma", When: "clicks.projects >= 1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	tracker.RecordClick(metrics.CategoryProjects, "", nil)
	engine.Evaluate()

	insights := engine.Insights()
	if insights.TotalEvolutions != 3 {
		t.Errorf("total evolutions = %d, want 3", insights.TotalEvolutions)
	}
	if insights.FireCounts["alpha"] != 2 || insights.FireCounts["gamma"] != 1 {
		t.Errorf("fire counts = %v", insights.FireCounts)
	}
	if insights.AverageEngagement <= 0 {
		t.Errorf("average engagement = %v, want > 0", insights.AverageEngagement)
	}
}

func TestEngineStartStop(t *testing.T) {
	engine, _, _ := newTestEngine(t, storage.NewMemoryStore())

	if engine.IsRunning() {
		t.Error("engine running before Start")
	}

	engine.Start()
	engine.Start() // Idempotent
	if !engine.IsRunning() {
		t.Error("engine not running after Start")
	}

	engine.Stop()
	engine.Stop() // Idempotent
	if engine.IsRunning() {
		t.Error("engine still running after Stop")
	}

	// Restart works on the recreated stop channel.
	engine.Start()
	if !engine.IsRunning() {
		t.Error("engine not running after restart")
	}
	engine.Stop()
}

func TestEngineInteractionTrigger(t *testing.T) {
	engine, tracker, recorder := newTestEngine(t, storage.NewMemoryStore())
	engine.SetInteractionDebounce(10 * time.Millisecond)

	err := engine.SetCatalog([]RuleSpec{
		{Name: "clicky", When: "clicks.projects >= 1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	tracker.RecordClick(metrics.CategoryProjects, "", nil)

	// A burst of interactions coalesces into one evaluation pass.
	engine.NotifyInteraction()
	engine.NotifyInteraction()
	engine.NotifyInteraction()

	deadline := time.After(time.Second)
	for recorder.count("clicky") == 0 {
		select {
		case <-deadline:
			t.Fatal("debounced evaluation never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if got := recorder.count("clicky"); got != 1 {
		t.Errorf("rule fired %d times, want 1", got)
	}
}

func TestEngineWatchCatalog(t *testing.T) {
	engine, tracker, recorder := newTestEngine(t, storage.NewMemoryStore())

	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeCatalog := func(content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	writeCatalog("rules:\n  - name: original\n    when: clicks.projects >= 99\n")
	specs, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.SetCatalog(specs); err != nil {
		t.Fatal(err)
	}
	if err := engine.WatchCatalog(path); err != nil {
		t.Fatal(err)
	}
	defer engine.Stop()

	writeCatalog("rules:\n  - name: replacement\n    when: clicks.projects >= 1\n")

	deadline := time.Now().Add(3 * time.Second)
	for {
		rules := engine.Rules()
		if len(rules) == 1 && rules[0].Name == "replacement" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("catalog never reloaded, rules: %+v", rules)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// A broken rewrite keeps the current catalog in place.
	writeCatalog("rules:\n  - name: broken\n    when: clicks.projects >\n")
	time.Sleep(200 * time.Millisecond)
	if rules := engine.Rules(); len(rules) != 1 || rules[0].Name != "replacement" {
		t.Errorf("broken reload replaced the catalog: %+v", rules)
	}

	tracker.RecordClick(metrics.CategoryProjects, "", nil)
	engine.Evaluate()
	if got := recorder.count("replacement"); got != 1 {
		t.Errorf("reloaded rule fired %d times, want 1", got)
	}
}

func TestProjectsPriorityScenario(t *testing.T) {
	engine, tracker, recorder := newTestEngine(t, storage.NewMemoryStore())

	// Default catalog: projects_priority wants
	// clicks.projects > clicks.about + 2 && dwell.projects > dwell.about.
	for i := 0; i < 4; i++ {
		tracker.RecordClick(metrics.CategoryProjects, "", nil)
	}
	tracker.RecordClick(metrics.CategoryAbout, "", nil)

	tracker.RecordSectionEnter(metrics.SectionProjects)
	time.Sleep(50 * time.Millisecond)
	tracker.RecordSectionEnter(metrics.SectionAbout)

	engine.Evaluate()
	engine.Evaluate()

	if got := recorder.count("projects_priority"); got != 1 {
		t.Errorf("projects_priority fired %d times, want exactly 1", got)
	}

	records := engine.History()
	if len(records) == 0 {
		t.Fatal("no history recorded")
	}
	if records[0].Rule != "projects_priority" {
		t.Errorf("first record = %s, want projects_priority", records[0].Rule)
	}
}
