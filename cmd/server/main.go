package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"prospector/internal/adapters/collab"
	httpadapter "prospector/internal/adapters/http"
	"prospector/internal/adapters/memory"
	pg "prospector/internal/adapters/postgres"
	"prospector/internal/config"
	"prospector/internal/ports"
	"prospector/internal/services/cadence"
	"prospector/internal/services/recon"
	"prospector/internal/workers/pipeline"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var log *zap.Logger
	if cfg.Env == "production" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()

	var (
		prospects ports.ProspectRepository
		messages  ports.MessageRepository
		audits    ports.AuditRepository
		areas     ports.AreaRepository
	)
	switch cfg.Store {
	case "memory":
		store := memory.New(clock)
		prospects, messages, audits, areas = store, store, store, store
		log.Info("using in-memory store")
	default:
		if err := pg.Migrate(ctx, cfg.DatabaseURL); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		prospects, messages, audits, areas = db, db, db, db
	}

	renderer, err := collab.NewStepRenderer()
	if err != nil {
		log.Fatal("renderer", zap.Error(err))
	}

	reconSvc := recon.New(prospects, recon.Config{
		Fetcher:  collab.NewHTTPFetcher(),
		Resolver: collab.Resolver{},
		Prober:   collab.NewSMTPProber("prospector.example", "verify@prospector.example"),
		Budget:   recon.NewBudget(cfg.EnrichDailyBudget, clock),
	}, log.Named("recon"))

	cadenceSvc := cadence.New(
		prospects, messages,
		renderer,
		&collab.LogTransport{Log: log.Named("transport")},
		&collab.LogNotifier{Log: log.Named("notify")},
		clock,
		cadence.Config{
			DailyCap:             cfg.DailyCap,
			BounceRescuePriority: cfg.BounceRescuePriority,
			BaseURL:              cfg.BaseURL,
		},
		log.Named("cadence"),
	)

	deps := pipeline.Deps{
		Prospects: prospects,
		Messages:  messages,
		Audits:    audits,
		Areas:     areas,
		Recon:     reconSvc,
		Cadence:   cadenceSvc,
		Clock:     clock,
		Log:       log.Named("pipeline"),
	}
	workerCfg := pipeline.Config{CycleInterval: cfg.CycleInterval}
	manager := pipeline.NewManager(deps, workerCfg)
	// The operator worker serves one-shot triggers; it never runs a loop.
	ops := pipeline.NewWorker("operator", deps, workerCfg)

	if cfg.PipelineWorkers > 0 {
		manager.Start(ctx, cfg.PipelineWorkers)
	}

	srv := httpadapter.New(ctx, manager, ops, cadenceSvc, prospects, messages, log)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	server := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	log.Info("listening", zap.String("addr", cfg.ListenAddr), zap.Int("workers", manager.Count()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Fatal("server error", zap.Error(err))
	}

	manager.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
