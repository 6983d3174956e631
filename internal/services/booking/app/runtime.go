package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/louisbranch/staybroker/internal/platform/timeouts"
	"github.com/louisbranch/staybroker/internal/services/booking/processor"
	"github.com/louisbranch/staybroker/internal/services/booking/storage/sqlite"
	"github.com/louisbranch/staybroker/internal/telemetry"
	"github.com/shopspring/decimal"
)

// RuntimeConfig controls booking API startup and dependencies. The command
// layer injects the builders so this package stays free of transport and
// registry imports.
type RuntimeConfig struct {
	Addr       string
	DBPath     string
	FeeRate    string
	SuccessURL string
	CancelURL  string

	BuildServer  func(*Service) *fiber.App
	NewProcessor func() (processor.Processor, error)
	NewGateways  func() (AssetGateway, AccountGateway, error)
}

const (
	defaultAddr   = ":8080"
	defaultDBPath = "data/booking.db"
	defaultFee    = "0.10"
)

// Run starts the booking API runtime and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.BuildServer == nil {
		return fmt.Errorf("server builder is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = defaultAddr
	}

	store, service, err := BuildService(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close booking store: %v", closeErr)
		}
	}()

	srv := cfg.BuildServer(service)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Listen(cfg.Addr)
	}()
	log.Printf("booking server listening at %s", cfg.Addr)

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		if err := srv.ShutdownWithTimeout(timeouts.Shutdown); err != nil {
			return fmt.Errorf("shutdown booking server: %w", err)
		}
		<-serveErr
		return nil
	}
}

// BuildService assembles the store and service for a runtime config. Shared
// by the API runtime and the payout worker.
func BuildService(cfg RuntimeConfig) (*sqlite.Store, *Service, error) {
	if cfg.NewProcessor == nil {
		return nil, nil, fmt.Errorf("processor builder is required")
	}
	if cfg.NewGateways == nil {
		return nil, nil, fmt.Errorf("gateway builder is required")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDBPath
	}
	if strings.TrimSpace(cfg.FeeRate) == "" {
		cfg.FeeRate = defaultFee
	}
	feeRate, err := decimal.NewFromString(cfg.FeeRate)
	if err != nil {
		return nil, nil, fmt.Errorf("parse fee rate: %w", err)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open booking store: %w", err)
	}

	assets, accounts, err := cfg.NewGateways()
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("build gateways: %w", err)
	}
	proc, err := cfg.NewProcessor()
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("build processor: %w", err)
	}

	service := New(store, proc, assets, accounts, telemetry.NewEmitter(store), Config{
		FeeRate:    feeRate,
		SuccessURL: cfg.SuccessURL,
		CancelURL:  cfg.CancelURL,
	})
	return store, service, nil
}
