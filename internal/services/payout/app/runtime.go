// Package app runs the payout worker: a health-served process that sweeps
// booking statuses and escrow transfers on fixed intervals.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	bookingapp "github.com/louisbranch/staybroker/internal/services/booking/app"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls payout worker startup and loop behavior.
type RuntimeConfig struct {
	Port          int
	SweepInterval time.Duration
	PayoutBatch   int

	Booking bookingapp.RuntimeConfig
}

const (
	defaultWorkerPort   = 8089
	defaultSweepEvery   = 30 * time.Second
	defaultPayoutBatch  = 100
	healthServiceWorker = "payout.runtime"
)

// Run starts the payout worker and blocks until ctx is cancelled. Both
// sweeps are idempotent compare-and-set walks, so running the worker beside
// another instance is safe.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultWorkerPort
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepEvery
	}
	if cfg.PayoutBatch <= 0 {
		cfg.PayoutBatch = defaultPayoutBatch
	}

	store, service, err := bookingapp.BuildService(cfg.Booking)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close booking store: %v", closeErr)
		}
	}()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on worker port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(healthServiceWorker, grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("payout worker listening at %v", listener.Addr())
	return sweepLoop(ctx, service, cfg)
}

func sweepLoop(ctx context.Context, service *bookingapp.Service, cfg RuntimeConfig) error {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		runSweeps(ctx, service, cfg.PayoutBatch)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runSweeps(ctx context.Context, service *bookingapp.Service, batch int) {
	status, err := service.RunStatusSweep(ctx)
	if err != nil {
		log.Printf("status sweep: %v", err)
	} else if status.CheckedIn+status.CheckedOut+status.Completed+status.Violations > 0 {
		log.Printf("status sweep: checked_in=%d checked_out=%d completed=%d violations=%d",
			status.CheckedIn, status.CheckedOut, status.Completed, status.Violations)
	}

	payout, err := service.RunPayoutSweep(ctx, batch)
	if err != nil {
		log.Printf("payout sweep: %v", err)
	} else if payout.Scanned > 0 {
		log.Printf("payout sweep: scanned=%d claimed=%d completed=%d failed=%d released=%d skipped=%d",
			payout.Scanned, payout.Claimed, payout.Completed, payout.Failed, payout.Released, payout.Skipped)
	}
}
