package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fileshelf/fileshelf/internal/logger"
	"github.com/fileshelf/fileshelf/pkg/config"
	"github.com/fileshelf/fileshelf/pkg/metadata"
	"github.com/fileshelf/fileshelf/pkg/tree"
)

// seedTree builds a small demo hierarchy, useful for smoke-testing a fresh
// deployment.
func seedTree(ctx context.Context, engine *tree.Engine) error {
	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	if err != nil {
		return fmt.Errorf("failed to create docs folder: %w", err)
	}

	images, err := engine.Create(ctx, nil, "images", metadata.KindFolder, nil)
	if err != nil {
		return fmt.Errorf("failed to create images folder: %w", err)
	}

	files := []struct {
		parent  metadata.ItemID
		name    string
		content string
	}{
		{docs.ID, "readme.txt", "Welcome to fileshelf!\n"},
		{docs.ID, "notes.txt", "Metadata lives in the store, bytes in the backend.\n"},
		{images.ID, "background.png", "PNG image placeholder"},
	}

	for _, f := range files {
		parentID := f.parent
		if _, err := engine.Create(ctx, &parentID, f.name, metadata.KindFile, []byte(f.content)); err != nil {
			return fmt.Errorf("failed to create %s: %w", f.name, err)
		}
	}

	return nil
}

func printReport(report *tree.Report) {
	for _, orphan := range report.Orphaned {
		logger.Warn("orphaned %s: %s", orphan.Kind, orphan.Path)
	}
	for _, missing := range report.Missing {
		logger.Warn("missing storage entry for item %s: %s", missing.ItemID, missing.Path)
	}
	for _, mismatch := range report.Mismatched {
		logger.Warn("mismatch on item %s: %s", mismatch.ItemID, mismatch.Reason)
	}
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/fileshelf/config.yaml)")
	logLevel := flag.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	mode := flag.String("mode", "check", "Operation mode: check, adopt, prune, or seed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Logging.Level
	if *logLevel != "" {
		level = *logLevel
	}
	logger.SetLevel(level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set log output: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := config.CreateMetadataStore(&cfg.Metadata)
	if err != nil {
		logger.Error("failed to create metadata store: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close metadata store: %v", err)
		}
	}()

	backend, err := config.CreateStorage(ctx, &cfg.Storage)
	if err != nil {
		logger.Error("failed to create storage backend: %v", err)
		os.Exit(1)
	}

	engine := tree.NewEngine(store, backend, tree.Options{
		OpTimeout: cfg.Tree.OpTimeout,
		MaxDepth:  cfg.Tree.MaxDepth,
	})
	reconciler := tree.NewReconciler(store, backend, engine.Resolver())

	switch *mode {
	case "check", "adopt", "prune":
		reconcileMode := tree.ModeReport
		if *mode == "adopt" {
			reconcileMode = tree.ModeAdopt
		} else if *mode == "prune" {
			reconcileMode = tree.ModePrune
		}

		report, err := reconciler.Reconcile(ctx, reconcileMode)
		if err != nil {
			logger.Error("reconcile failed: %v", err)
			os.Exit(1)
		}

		printReport(report)
		if *mode == "check" && !report.Clean() {
			os.Exit(1)
		}

	case "seed":
		if err := seedTree(ctx, engine); err != nil {
			logger.Error("seed failed: %v", err)
			os.Exit(1)
		}
		logger.Info("demo tree created")

	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q (want check, adopt, prune, or seed)\n", *mode)
		os.Exit(1)
	}
}
