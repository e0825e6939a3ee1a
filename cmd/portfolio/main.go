package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/internal/bridge"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/internal/config"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/effects"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/metrics"
	"github.com/Iszy-Dzire/Self-Evolving-Portfolio-2/pkg/evolve/storage"
)

var (
	verbose bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Behavioral adaptation engine for the self-evolving portfolio",
	Long: `portfolio runs the engine that turns visitor engagement metrics into
one-shot presentation adaptations.

The engine tracks clicks, scroll depth, per-section dwell time, theme
preference, and visits, evaluates a declarative rule catalog against them,
and notifies the front end over a websocket when a rule fires.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine and the websocket bridge",
	Long: `Starts the metrics tracker, the rule engine with its periodic
evaluation loop, and the HTTP/websocket bridge the portfolio front end
connects to. Configuration comes from PORTFOLIO_* environment variables.`,
	RunE: runServe,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the persisted metrics, history, and insights as JSON",
	RunE:  runInspect,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the persisted metrics to a fresh state",
	RunE:  runReset,
}

var checkCmd = &cobra.Command{
	Use:   "check [catalog.yaml]",
	Short: "Validate a rule catalog file without running the engine",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var (
	serveAddr    string
	serveDB      string
	serveRules   string
	ephemeral    bool
	resetHistory bool
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides PORTFOLIO_ADDR)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "metrics database path (overrides PORTFOLIO_DB)")
	serveCmd.Flags().StringVar(&serveRules, "rules", "", "rule catalog file (overrides PORTFOLIO_RULES)")
	serveCmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "keep all state in memory, nothing written to disk")
	resetCmd.Flags().BoolVar(&resetHistory, "history", false, "also clear the evolution history")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(checkCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	if serveDB != "" {
		cfg.DBPath = serveDB
	}
	if serveRules != "" {
		cfg.RulesPath = serveRules
	}

	var store storage.Store
	if ephemeral {
		store = storage.NewMemoryStore()
	} else {
		store, err = storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
	}
	defer store.Close()

	tracker := metrics.NewTracker(store, logger)
	tracker.SetScrollDebounce(cfg.ScrollDebounce)
	tracker.RegisterVisit()

	registry := effects.NewRegistry(logger)
	registry.RegisterFallback(effects.LoggingFallback(logger))

	engine, err := evolve.NewEngine(tracker, store, registry, logger)
	if err != nil {
		return err
	}
	engine.SetEvalInterval(cfg.EvalInterval)
	engine.SetInteractionDebounce(cfg.InteractionDebounce)

	if cfg.RulesPath != "" {
		specs, err := evolve.LoadCatalogFile(cfg.RulesPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		if err := engine.SetCatalog(specs); err != nil {
			return fmt.Errorf("install catalog: %w", err)
		}
		if err := engine.WatchCatalog(cfg.RulesPath); err != nil {
			logger.Warn("catalog watching disabled", zap.Error(err))
		}
	}

	engine.Start()
	defer engine.Stop()

	server := bridge.NewServer(cfg.Addr, tracker, engine, registry, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	tracker.Flush()
	return server.Stop()
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	tracker := metrics.NewTracker(store, logger)
	registry := effects.NewRegistry(logger)
	engine, err := evolve.NewEngine(tracker, store, registry, logger)
	if err != nil {
		return err
	}

	report := map[string]interface{}{
		"metrics":              tracker.Snapshot(),
		"engagement_score":     tracker.EngagementScore(),
		"most_dwelled_section": tracker.MostDwelledSection(),
		"history":              engine.History(),
		"insights":             engine.Insights(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	tracker := metrics.NewTracker(store, logger)
	tracker.Reset()

	if resetHistory {
		if err := store.Set(storage.HistoryKey, []byte("[]")); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
	}

	fmt.Println("metrics reset")
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	specs, err := evolve.LoadCatalogFile(args[0])
	if err != nil {
		return err
	}
	rules, err := evolve.CompileCatalog(specs)
	if err != nil {
		return err
	}

	fmt.Printf("catalog ok: %d rules\n", len(rules))
	for _, rule := range rules {
		fmt.Printf("  %s  (cooldown %s)\n", rule.Name, rule.Cooldown)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
