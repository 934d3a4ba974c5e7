package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alpineops/vouchergw/internal/config"
	"github.com/alpineops/vouchergw/internal/journal"
	"github.com/alpineops/vouchergw/internal/lock"
	"github.com/alpineops/vouchergw/internal/log"
	"github.com/alpineops/vouchergw/internal/notify"
	"github.com/alpineops/vouchergw/internal/orchestrator"
	"github.com/alpineops/vouchergw/internal/portal"
	"github.com/alpineops/vouchergw/internal/webhook"
)

const version = "0.1.0"

const defaultConfigPath = "./config.yaml"

// sweepInterval is how often the journal retention sweep runs.
const sweepInterval = time.Hour

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	// --- NOUNS ---
	case "system":
		os.Exit(runSystemNoun(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "job":
		os.Exit(runJobNoun(args))

	// --- ROOT ALIASES ---
	case "start":
		os.Exit(runStart(args))
	case "version":
		fmt.Printf("vouchergw version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`vouchergw - Order-webhook gateway for portal voucher automation

Usage:
  vouchergw <noun> <action> [flags]

Core Resources (Nouns):
  system    Gateway lifecycle and health
  config    Configuration and integrity
  job       Recorded order runs

System Commands:
  system start      Start the gateway service in foreground

Config Commands:
  config lock       Authorize current state (update integrity hashes)
  config check      Validate syntax and integrity

Job Commands:
  job list          Show recent order runs from the journal

General:
  version           Show version information
  help              Show this help message
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: vouchergw system start [--config <path>]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "start":
		return runStart(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", args[0])
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: vouchergw config <lock|check> [--config <path>]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "lock":
		return runConfigLock(args[1:])
	case "check":
		return runConfigCheck(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

func runJobNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: vouchergw job list [--config <path>] [--limit <n>]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "list":
		return runJobList(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown job action: %s\n", args[0])
		return 1
	}
}

func isHelpToken(s string) bool {
	return s == "help" || s == "--help" || s == "-h"
}

// --- ACTIONS ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("vouchergw starting", "version", version, "config", *configPath)

	if err := config.CheckIntegrity(*configPath); err != nil {
		logger.Warn("config integrity not verified", "error", err)
	}

	pidLock, err := lock.Acquire(cfg.Service.LockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)",
			"path", cfg.Service.LockPath, "error", err)
		return 1
	}
	defer func() { _ = pidLock.Release() }()
	logger.Info("acquired PID lock", "path", pidLock.Path())

	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
		return 1
	}
	defer func() { _ = db.Close() }()
	logger.Info("journal opened", "path", cfg.Journal.Path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	j := journal.New(db)
	j.StartSweeper(ctx, sweepInterval, cfg.Journal.Retention)

	registry := portal.NewRegistry(cfg)
	sink := notify.FromConfig(cfg.Notify)
	runner := orchestrator.New(registry, sink, j, cfg.Orchestrator)

	server := webhook.New(webhook.Config{
		Listen:             cfg.Service.Listen,
		Secret:             cfg.Webhook.Secret,
		SignatureHeader:    cfg.Webhook.SignatureHeader,
		MaxBodySize:        cfg.Webhook.MaxBodySize,
		DevEndpointEnabled: cfg.Webhook.DevEndpointEnabled,
	}, runner, log.WithComponent("webhook"))

	if err := server.Start(ctx); err != nil {
		logger.Error("intake server failed", "error", err)
		return 1
	}

	logger.Info("vouchergw stopped")
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if _, err := config.Load(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Config is not loadable, refusing to lock: %v\n", err)
		return 1
	}
	if err := config.Lock(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}
	fmt.Printf("Config locked: %s\n", *configPath)
	return 0
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if _, err := config.Load(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Config check FAILED: %v\n", err)
		return 1
	}
	if err := config.CheckIntegrity(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Config integrity FAILED: %v\n", err)
		return 1
	}
	fmt.Println("Config check PASSED")
	return 0
}

func runJobList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	limit := fs.Int("limit", 20, "Maximum number of runs to show")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	runs, err := journal.New(db).Recent(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return 0
	}

	fmt.Printf("%-36s  %-10s  %-10s  %-9s  %-8s  %s\n",
		"RUN", "ORDER", "SITE", "STATUS", "ATTEMPTS", "DETAIL")
	for _, r := range runs {
		detail := ""
		if r.VoucherRef != nil {
			detail = *r.VoucherRef
		} else if r.ErrorKind != nil {
			detail = *r.ErrorKind
		}
		fmt.Printf("%-36s  %-10s  %-10s  %-9s  %-8d  %s\n",
			r.ID, r.OrderID, r.Site, r.Status, r.Attempts, detail)
	}
	return 0
}
