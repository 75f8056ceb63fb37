package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"civicwatch/internal/adapters/gcs"
	httpadapter "civicwatch/internal/adapters/http"
	"civicwatch/internal/adapters/render"
	"civicwatch/internal/audit"
	"civicwatch/internal/auth"
	"civicwatch/internal/config"
	"civicwatch/internal/metrics"
	"civicwatch/internal/ratelimit"
	"civicwatch/internal/services/alerts"
	"civicwatch/internal/services/organizations"
	"civicwatch/internal/services/reports"
	"civicwatch/internal/telemetry"
	"civicwatch/internal/workers/evalrunner"
)

const shutdownTimeout = 10 * time.Second

func serveCommand(opts *rootOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and evaluation workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cmd.Context(), cfg, opts, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply database migrations before starting")
	return cmd
}

func serve(parent context.Context, cfg config.Config, opts *rootOptions, migrate bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := newLogger(cfg)

	tp, err := telemetry.NewProvider(ctx, cfg.OTLPEndpoint, serviceName, cfg.Env, cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	tp.Install()
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			log.Warn("tracer shutdown", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg, opts, migrate, log)
	if err != nil {
		return err
	}
	defer closeStore()

	verifier, err := auth.NewVerifier(cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		return fmt.Errorf("jwt verifier: %w", err)
	}

	evaluator := alerts.New(st, st, alerts.Sources{DAF: st, Donors: st, Filings: st},
		alerts.WithLogger(log), alerts.WithMetrics(m))
	processor := evalrunner.EvaluatorProcessor{Evaluator: evaluator}

	reportOpts := []reports.Option{reports.WithLogger(log), reports.WithMetrics(m)}
	if cfg.PDFEnabled() {
		artifacts, err := gcs.NewStore(ctx, cfg.GCSBucket, cfg.GCSCredentials)
		if err != nil {
			return err
		}
		defer artifacts.Close()
		renderer := render.NewClient(cfg.RendererURL, cfg.RendererTimeout)
		reportOpts = append(reportOpts, reports.WithRendering(renderer, artifacts, cfg.SignedURLTTL))
		log.Info("pdf reports enabled", "renderer", cfg.RendererURL, "bucket", cfg.GCSBucket)
	}

	api := httpadapter.New(httpadapter.Deps{
		Organizations: organizations.New(st, st),
		Reports:       reports.New(reports.Repositories{Orgs: st, Grants: st, Risk: st}, reportOpts...),
		Jobs:          st,
		Processor:     processor,
		Verifier:      verifier,
		Limiter:       ratelimit.NewPerMinute(cfg.ReportRatePerMinute, cfg.ReportRateBurst),
		Audit:         audit.NewLogger(st, nil, log, m),
		Metrics:       m,
		Gatherer:      reg,
		Log:           log,
	})

	var wg sync.WaitGroup
	if cfg.EvalWorkers > 0 {
		runner := &evalrunner.Runner{Repo: st, Processor: processor, Log: log, Metrics: m}
		wg.Go(func() { runner.Run(ctx, cfg.EvalWorkers, cfg.EvalPollInterval) })
		log.Info("evaluation workers started", "workers", cfg.EvalWorkers)
	}
	if cfg.SweepInterval > 0 {
		wg.Go(func() { evalrunner.Sweep(ctx, st, st, cfg.SweepInterval, log) })
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("listening", "addr", cfg.ListenAddr)

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			stop()
			wg.Wait()
			return fmt.Errorf("server error: %w", err)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	wg.Wait()
	return nil
}
