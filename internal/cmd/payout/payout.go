// Package payout parses payout worker flags and launches the worker runtime.
package payout

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/staybroker/internal/platform/cmd"
	bookingapp "github.com/louisbranch/staybroker/internal/services/booking/app"
	"github.com/louisbranch/staybroker/internal/services/booking/directory"
	"github.com/louisbranch/staybroker/internal/services/booking/processor"
	"github.com/louisbranch/staybroker/internal/services/booking/processor/sandbox"
	payoutapp "github.com/louisbranch/staybroker/internal/services/payout/app"
)

// Config holds payout worker command configuration.
type Config struct {
	Port          int           `env:"STAYBROKER_PAYOUT_PORT" envDefault:"8089"`
	SweepInterval time.Duration `env:"STAYBROKER_PAYOUT_SWEEP_INTERVAL" envDefault:"30s"`
	PayoutBatch   int           `env:"STAYBROKER_PAYOUT_BATCH" envDefault:"100"`
	DBPath        string        `env:"STAYBROKER_BOOKING_DB_PATH" envDefault:"data/booking.db"`
	DirectoryPath string        `env:"STAYBROKER_DIRECTORY_PATH" envDefault:"data/directory.json"`
	FeeRate       string        `env:"STAYBROKER_FEE_RATE" envDefault:"0.10"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The payout worker health gRPC server port")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Interval between sweep runs")
	fs.IntVar(&cfg.PayoutBatch, "payout-batch", cfg.PayoutBatch, "Maximum payouts per sweep run")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The booking SQLite database path")
	fs.StringVar(&cfg.DirectoryPath, "directory-path", cfg.DirectoryPath, "The asset/account registry JSON path")
	fs.StringVar(&cfg.FeeRate, "fee-rate", cfg.FeeRate, "The platform fee rate, e.g. 0.10")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RuntimeConfig assembles the runtime wiring for a parsed Config.
func RuntimeConfig(cfg Config) payoutapp.RuntimeConfig {
	return payoutapp.RuntimeConfig{
		Port:          cfg.Port,
		SweepInterval: cfg.SweepInterval,
		PayoutBatch:   cfg.PayoutBatch,
		Booking: bookingapp.RuntimeConfig{
			DBPath:  cfg.DBPath,
			FeeRate: cfg.FeeRate,
			NewProcessor: func() (processor.Processor, error) {
				return sandbox.New(), nil
			},
			NewGateways: func() (bookingapp.AssetGateway, bookingapp.AccountGateway, error) {
				dir, err := directory.LoadFile(cfg.DirectoryPath)
				if err != nil {
					return nil, nil, err
				}
				return dir, dir, nil
			},
		},
	}
}

// Run starts the payout worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePayout, func(ctx context.Context) error {
		return payoutapp.Run(ctx, RuntimeConfig(cfg))
	})
}
