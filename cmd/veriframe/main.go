package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"veriframe/internal/api"
	"veriframe/internal/artifacts"
	"veriframe/internal/config"
	"veriframe/internal/db"
	"veriframe/internal/diff"
	"veriframe/internal/fingerprint"
	"veriframe/internal/ledger"
	"veriframe/internal/scheduler"
	"veriframe/internal/verify"
	"veriframe/web"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// ── Logging (initial — overridden below once config is loaded) ─────────
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// Optional .env file carrying the ledger credential.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	// ── Config ─────────────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("veriframe starting",
		"version", version,
		"log_level", cfg.LogLevel,
		"http_addr", cfg.HTTPAddr,
		"db_path", cfg.DBPath,
		"ledger_url", cfg.Ledger.BaseURL)

	if cfg.Ledger.ProjectID == "" {
		slog.Warn("no ledger credential configured; every search will report no evidence",
			"env", config.EnvLedgerKey)
	}
	if cfg.Ledger.FallbackWallet == "" {
		slog.Warn("no fallback wallet configured; requests must declare one")
	}

	// ── Database ───────────────────────────────────────────────────────────
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}

	// Mark any runs that were 'running' when the last process exited as failed.
	if err := verify.MarkStaleRunsFailed(database); err != nil {
		slog.Warn("mark stale runs", "error", err)
	}

	// ── Artifacts ──────────────────────────────────────────────────────────
	store, err := artifacts.New(cfg.UploadsDir, cfg.ComparisonsDir, cfg.ArtifactRetentionDays)
	if err != nil {
		slog.Error("init artifact store", "error", err)
		os.Exit(1)
	}

	// ── Pipelines ──────────────────────────────────────────────────────────
	client := ledger.NewClient(cfg.Ledger.BaseURL, cfg.Ledger.ProjectID)
	engine := ledger.NewEngine(client)

	params := fingerprint.Params{
		PaletteSize: cfg.Pipeline.PaletteSize,
		Width:       cfg.Pipeline.FrameWidth,
		Height:      cfg.Pipeline.FrameHeight,
	}
	diffOpts := diff.Options{
		Width:     cfg.Pipeline.FrameWidth,
		Height:    cfg.Pipeline.FrameHeight,
		Threshold: cfg.Pipeline.DiffThreshold,
		MinArea:   cfg.Pipeline.DiffMinArea,
	}
	runner := verify.NewRunner(database, engine, params, diffOpts, store, cfg.Ledger.FallbackWallet)
	mgr := verify.NewManager()

	// ── Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.New()
	if err := sched.SetPurgeJob(cfg.PurgeSchedule, func() {
		slog.Info("artifact purge triggered")
		if err := store.PurgeExpired(context.Background()); err != nil {
			slog.Error("artifact purge failed", "error", err)
		}
	}); err != nil {
		slog.Warn("invalid purge schedule", "expr", cfg.PurgeSchedule, "error", err)
	}
	sched.Start()
	defer sched.Stop()

	// ── HTTP server ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.New(cfg.HTTPAddr, database, mgr, runner, store, sched, version, web.Templates(), web.Static())
	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("veriframe stopped")
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
