// Command gardensim runs the garden simulation service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/mini-garden/internal/api"
	"github.com/talgya/mini-garden/internal/config"
	"github.com/talgya/mini-garden/internal/engine"
	"github.com/talgya/mini-garden/internal/entropy"
	"github.com/talgya/mini-garden/internal/garden"
	"github.com/talgya/mini-garden/internal/persistence"
	"github.com/talgya/mini-garden/internal/seed"
)

func main() {
	if err := run(); err != nil {
		slog.Error("gardensim failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger, closeLog := newLogger(cfg)
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("Garden simulation starting",
		"size", fmt.Sprintf("%dx%d", cfg.Garden.Rows, cfg.Garden.Cols),
		"interval", cfg.Schedule.Interval,
		"seed", cfg.Garden.Seed,
	)

	// ── Database ──────────────────────────────────────────────────────
	var (
		db      *persistence.DB
		journal *persistence.Journal
	)
	if cfg.Storage.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		db, err = persistence.Open(cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		journal = persistence.NewJournal(db, cfg.Storage.EventBuffer, logger)
		slog.Info("database opened", "path", cfg.Storage.DBPath, "run_id", db.RunID())
	} else {
		slog.Warn("storage.db_path empty, persistence disabled")
	}

	// ── Initial layout ───────────────────────────────────────────────
	rows, cols, entries := initialLayout(cfg)

	opts := cfg.SimOptions(logger)
	opts.Rand = entropy.FromSeed(cfg.Garden.Seed)
	if journal != nil {
		opts.Sink = journal
	}
	sim := engine.NewSimulation(opts)

	res, err := sim.Initialize(context.Background(), rows, cols, entries)
	if err != nil {
		return fmt.Errorf("initialize garden: %w", err)
	}
	slog.Info("garden ready", "rows", res.Rows, "cols", res.Cols, "planted", res.Planted, "skipped", len(res.Skipped))

	eng := engine.NewEngine(cfg.Schedule.Interval)
	eng.Logger = logger
	sim.Automate(eng)
	if cfg.Schedule.Autostart {
		if _, err := sim.SetAutomation(true); err != nil {
			return err
		}
	}

	if cfg.Server.AdminKey == "" {
		slog.Warn("GARDENSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}

	srv := &api.Server{
		Sim:         sim,
		Port:        cfg.Server.Port,
		AdminKey:    cfg.Server.AdminKey,
		RelayKey:    cfg.Server.RelayKey,
		CORSOrigins: cfg.Server.CORSOrigins,
		Limiter:     api.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow),
	}
	if db != nil {
		srv.DB = db
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	fmt.Printf("\nThe garden is growing: %d plants in a %dx%d bed.\n", res.Planted, res.Rows, res.Cols)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)

	serveErr := g.Wait()
	slog.Info("shutting down", "cycle", sim.CurrentTick())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Schedule.ShutdownTimeout)
	defer cancel()
	if err := sim.Shutdown(shutdownCtx); err != nil {
		slog.Warn("simulation shutdown incomplete", "error", err)
	}
	if db != nil {
		if err := db.SaveMeta("last_cycle", fmt.Sprint(sim.CurrentTick())); err != nil {
			slog.Error("failed to record last cycle", "error", err)
		}
	}
	if journal != nil {
		journal.Close()
		slog.Info("journal closed", "written", journal.Written(), "dropped", journal.Dropped())
	}

	fmt.Println("Garden stopped.")
	return serveErr
}

// initialLayout picks the starting garden: a seed file, else a generated
// layout.
func initialLayout(cfg *config.Config) (rows, cols int, entries []seed.Entry) {
	rows, cols = cfg.Garden.Rows, cfg.Garden.Cols

	if path := cfg.Garden.SeedFile; path != "" {
		entries, err := seed.LoadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Warn("seed file not found, falling back", "path", path)
		case len(entries) > 0:
			if err != nil {
				slog.Warn("seed file had bad lines", "path", path, "error", err)
			}
			slog.Info("loaded seed file", "path", path, "entries", len(entries))
			return rows, cols, entries
		case err != nil:
			slog.Warn("seed file unusable, falling back", "path", path, "error", err)
		}
	}

	var plantings []garden.Planting
	switch cfg.Garden.Layout {
	case config.LayoutRandom:
		plantings = garden.RandomLayout(rows, cols, entropy.FromSeed(cfg.Garden.Seed))
	default:
		noiseSeed := cfg.Garden.Seed
		if noiseSeed == 0 {
			noiseSeed = time.Now().UnixNano()
		}
		plantings = garden.NoiseLayout(rows, cols, garden.DefaultNoiseConfig(noiseSeed))
	}
	slog.Info("generated garden layout", "layout", cfg.Garden.Layout, "plants", len(plantings))
	return rows, cols, seed.FromLayout(plantings)
}

// newLogger writes to stdout and, when a log dir is configured, to a
// daily file. The returned func closes the file.
func newLogger(cfg *config.Config) (*slog.Logger, func()) {
	var w io.Writer = os.Stdout
	closeFn := func() {}

	if dir := cfg.Logging.Dir; dir != "" {
		name := filepath.Join(dir, "garden_log_"+time.Now().Format("2006-01-02")+".txt")
		f, err := openLogFile(name)
		if err != nil {
			slog.Warn("file logging disabled", "path", name, "error", err)
		} else {
			w = io.MultiWriter(os.Stdout, f)
			closeFn = func() { f.Close() }
		}
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       cfg.LogLevel(),
		ReplaceAttr: engine.ReplaceLevel,
	})), closeFn
}

func openLogFile(name string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}
