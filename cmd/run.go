// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/flytrap/internal/config"
	"grimm.is/flytrap/internal/errors"
	"grimm.is/flytrap/internal/hotspot"
	"grimm.is/flytrap/internal/logging"
)

// loadConfig builds the effective configuration: file (when given), then
// positional overrides, then validation.
func loadConfig(configFile string, positional []string, logLevel string) (*config.Hotspot, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	if len(positional) > 3 {
		return nil, errors.Errorf(errors.KindValidation,
			"too many arguments: want [ssid] [passphrase] [interface], got %d", len(positional))
	}
	if len(positional) > 0 {
		cfg.SSID = positional[0]
	}
	if len(positional) > 1 {
		cfg.Passphrase = positional[1]
	}
	if len(positional) > 2 {
		cfg.Interface = positional[2]
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RunHotspot runs one full hotspot lifecycle in the foreground until a
// signal arrives or a daemon dies.
func RunHotspot(cfg *config.Hotspot) error {
	logger := logging.New(logging.Config{
		Level:      cfg.LogLevel,
		Timestamps: true,
	})
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	controller := hotspot.New(cfg, logger.With("component", "hotspot"))
	return controller.Run(ctx)
}
