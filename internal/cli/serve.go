package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lazypower/trustledger/internal/audit"
	"github.com/lazypower/trustledger/internal/config"
	"github.com/lazypower/trustledger/internal/logging"
	"github.com/lazypower/trustledger/internal/metrics"
	"github.com/lazypower/trustledger/internal/server"
	"github.com/lazypower/trustledger/internal/trust"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Start the ledger behind the HTTP API. Configuration comes from TRUSTLEDGER_* environment variables.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer log.Sync()

	params, err := cfg.GovernanceParameters()
	if err != nil {
		return err
	}

	exporter := metrics.NewExporter()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		exporter,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sinks := []trust.Sink{exporter}
	srvOpts := []server.Option{
		server.WithLogger(log),
		server.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
	}

	var db *audit.DB
	if cfg.Database.Path != "" {
		db, err = audit.Open(cfg.Database.Path, log)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer db.Close()
		sinks = append(sinks, db)
		srvOpts = append(srvOpts, server.WithAudit(db))
	}

	ledger, err := trust.New(
		trust.WithLogger(log),
		trust.WithParameters(params),
		trust.WithSinks(sinks...),
		trust.WithInitialTrustScore(cfg.Ledger.InitialTrustScore),
		trust.WithMaxInviteDepth(cfg.Ledger.MaxInviteDepth),
		trust.WithEventBuffer(cfg.Ledger.EventBuffer),
	)
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	// Flushes queued events before the audit log closes.
	defer ledger.Shutdown()

	exporter.Bind(ledger)
	ledger.StartDecaySweep(cfg.Ledger.SweepInterval)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server.New(ledger, VersionString(), srvOpts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("trustledger serving",
			zap.String("addr", httpServer.Addr),
			zap.String("version", VersionString()),
			zap.Bool("audit", db != nil),
			zap.Duration("sweep_interval", cfg.Ledger.SweepInterval))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
