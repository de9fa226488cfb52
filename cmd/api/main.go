package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"payalert/internal/shared/config"
	"payalert/internal/shared/logger"
	"payalert/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	zerolog.DefaultContextLogger = &log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tel *telemetry.Telemetry
	if cfg.Telemetry.Enabled {
		tel, err = telemetry.Start(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(tctx); err != nil {
			log.Error().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	deps, err := NewDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	deps.Listener.Start(ctx)

	if deps.Scheduler != nil {
		deps.Scheduler.Start()
	} else {
		log.Info().Msg("scheduler is disabled")
	}

	log.Info().
		Str("sender_domains", strings.Join(cfg.Ingestion.SenderDomains, ",")).
		Bool("tls", cfg.TLS.Enabled).
		Msg("payalert starting")

	errc := make(chan error, 1)
	srv, redirectSrv := StartServers(NewServerConfigFromConfig(SetupRoutes(deps, cfg, log), cfg), log, errc)

	select {
	case <-ctx.Done():
	case err = <-errc:
		log.Error().Err(err).Msg("server failed")
	}

	GracefulShutdown(srv, redirectSrv, deps, shutdownTimeout, log)
	return err
}
