// Package booking parses booking command flags and launches the API runtime.
package booking

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/staybroker/internal/platform/cmd"
	"github.com/louisbranch/staybroker/internal/services/booking/api"
	bookingapp "github.com/louisbranch/staybroker/internal/services/booking/app"
	"github.com/louisbranch/staybroker/internal/services/booking/directory"
	"github.com/louisbranch/staybroker/internal/services/booking/processor"
	"github.com/louisbranch/staybroker/internal/services/booking/processor/sandbox"
)

// Config holds booking command configuration.
type Config struct {
	Addr          string `env:"STAYBROKER_BOOKING_ADDR" envDefault:":8080"`
	DBPath        string `env:"STAYBROKER_BOOKING_DB_PATH" envDefault:"data/booking.db"`
	DirectoryPath string `env:"STAYBROKER_DIRECTORY_PATH" envDefault:"data/directory.json"`
	FeeRate       string `env:"STAYBROKER_FEE_RATE" envDefault:"0.10"`
	SuccessURL    string `env:"STAYBROKER_CHECKOUT_SUCCESS_URL" envDefault:"http://localhost:8080/checkout/success"`
	CancelURL     string `env:"STAYBROKER_CHECKOUT_CANCEL_URL" envDefault:"http://localhost:8080/checkout/cancel"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The booking HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The booking SQLite database path")
	fs.StringVar(&cfg.DirectoryPath, "directory-path", cfg.DirectoryPath, "The asset/account registry JSON path")
	fs.StringVar(&cfg.FeeRate, "fee-rate", cfg.FeeRate, "The platform fee rate, e.g. 0.10")
	fs.StringVar(&cfg.SuccessURL, "success-url", cfg.SuccessURL, "Checkout success redirect URL")
	fs.StringVar(&cfg.CancelURL, "cancel-url", cfg.CancelURL, "Checkout cancel redirect URL")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RuntimeConfig assembles the runtime wiring for a parsed Config.
func RuntimeConfig(cfg Config) bookingapp.RuntimeConfig {
	return bookingapp.RuntimeConfig{
		Addr:        cfg.Addr,
		DBPath:      cfg.DBPath,
		FeeRate:     cfg.FeeRate,
		SuccessURL:  cfg.SuccessURL,
		CancelURL:   cfg.CancelURL,
		BuildServer: api.NewServer,
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
	}
}

// Run starts the booking API runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBooking, func(ctx context.Context) error {
		return bookingapp.Run(ctx, RuntimeConfig(cfg))
	})
}
