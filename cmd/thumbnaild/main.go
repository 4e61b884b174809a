package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/seantiz/thumbnail/internal/api"
	"github.com/seantiz/thumbnail/internal/backend"
	"github.com/seantiz/thumbnail/internal/backend/bild"
	"github.com/seantiz/thumbnail/internal/backend/imaging"
	"github.com/seantiz/thumbnail/internal/config"
	"github.com/seantiz/thumbnail/internal/engine"
	"github.com/seantiz/thumbnail/internal/loop"
	"github.com/seantiz/thumbnail/internal/pool"
	"github.com/seantiz/thumbnail/internal/store"
)

// scheduler is a pool.Scheduler that can be drained on shutdown.
type scheduler interface {
	pool.Scheduler
	Close()
}

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger.Info("thumbnaild: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"engine", cfg.Engine,
		"workers", cfg.Workers,
		"image_root", cfg.ImageRoot,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	reg, err := newRegistry(cfg, logger)
	if err != nil {
		log.Fatalf("failed to configure engines: %v", err)
	}

	l := loop.New(logger, loop.WithFaultHandler(func(f *loop.Fault) {
		logger.Error("completion handler panicked", "panic", f.Value, "stack", string(f.Stack))
	}))

	var sched scheduler
	if cfg.Workers == 0 {
		sched = pool.NewUnbounded(logger)
	} else {
		sched = pool.New(pool.Config{Workers: cfg.Workers, QueueSize: cfg.QueueSize}, logger)
	}

	eng := engine.New(l, sched, reg, logger, engine.WithStore(db))
	srv := api.NewServer(cfg.ListenAddr, cfg.ImageRoot, db, reg, eng, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := l.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("loop stopped", "error", err)
		}
	}()

	runErr := srv.Run(ctx)

	// Let in-flight jobs finish and deliver before the loop goes away.
	sched.Close()
	l.Stop()
	<-loopDone

	if runErr != nil {
		log.Fatalf("server error: %v", runErr)
	}
	logger.Info("thumbnaild: stopped")
}

// newRegistry registers every built-in engine and selects the configured
// default.
func newRegistry(cfg config.Config, logger *slog.Logger) (*backend.Registry, error) {
	reg := backend.NewRegistry()

	img, err := imaging.New(imaging.Config{Filter: cfg.ResampleFilter, Background: cfg.Background})
	if err != nil {
		return nil, err
	}
	reg.Register(imaging.Name, img)

	b, err := bild.New(bild.Config{Filter: cfg.ResampleFilter, Background: cfg.Background})
	if err != nil {
		return nil, err
	}
	reg.Register(bild.Name, b)

	if err := reg.SetDefault(cfg.Engine); err != nil {
		return nil, err
	}
	for _, e := range reg.List() {
		logger.Debug("engine registered", "name", e.Name, "default", e.Default)
	}
	return reg, nil
}
