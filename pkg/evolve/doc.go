// Package evolve implements the behavioral adaptation engine behind the
// self-evolving portfolio: it watches visitor engagement metrics and fires
// one-shot presentation adaptations when declarative rules match.
//
// # Overview
//
// The engine evaluates an ordered catalog of rules against snapshots of a
// metrics tracker. Rules are written in a small expression DSL over metric
// namespaces, and each rule fires at most once per session. Firing invokes
// an effect registered with the effect registry and appends a record to the
// persisted evolution history.
//
// # Quick Start
//
//	package main
//
//	import (
//		"go.uber.org/zap"
//
//		"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve"
//		"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/effects"
//		"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/metrics"
//		"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/storage"
//	)
//
//	func main() {
//		logger, _ := zap.NewDevelopment()
//		store := storage.NewMemoryStore()
//		tracker := metrics.NewTracker(store, logger)
//		registry := effects.NewRegistry(logger)
//
//		registry.Register("projects_priority", func() {
//			// Reorder the projects section to the top.
//		})
//
//		engine, err := evolve.NewEngine(tracker, store, registry, logger)
//		if err != nil {
//			logger.Fatal("engine", zap.Error(err))
//		}
//		engine.Start()
//		defer engine.Stop()
//
//		tracker.RecordClick(metrics.CategoryProjects, "", nil)
//		engine.NotifyInteraction()
//		select {}
//	}
//
// # Architecture
//
//   - Engine: catalog evaluation, one-shot firing state, evolution history
//   - Parser: DSL lexical analysis and AST generation
//   - Metrics: click, scroll, dwell, view, theme, and visit tracking
//   - Effects: pluggable callbacks and observers for fired rules
//   - Storage: JSON-over-SQLite persistence for metrics and history
//
// # DSL Reference
//
// A rule condition is a single boolean expression over metric references:
//
//	clicks.projects > clicks.about + 2 && dwell.projects > dwell.about
//
// Available metrics:
//   - clicks.<category>: per-category click counts, plus clicks.total
//   - dwell.<section>: cumulative dwell time per section, in seconds
//   - views.<section>: section view counts
//   - scroll.depth: maximum scroll depth reached, 0 to 100
//   - visits.count: distinct calendar days visited
//   - score.engagement: the composite engagement score
//   - theme.preference: "light" or "dark"
//
// Time units: ms, s, m (milliseconds, seconds, minutes), normalized to
// seconds, so `dwell.projects > 90s` reads naturally.
package evolve
