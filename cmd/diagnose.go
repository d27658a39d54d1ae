// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"context"
	"fmt"
	"time"

	"grimm.is/flytrap/internal/config"
	"grimm.is/flytrap/internal/health"
	"grimm.is/flytrap/internal/install"
	"grimm.is/flytrap/internal/logging"
	"grimm.is/flytrap/internal/network"
	"grimm.is/flytrap/internal/portal"
)

// RunDiagnose checks a hotspot that should already be running and prints a
// report. It never mutates the host.
func RunDiagnose(cfg *config.Hotspot, deep bool) error {
	logger := logging.New(logging.Config{Level: logging.LevelWarn})

	domains := portal.DefaultDomains()
	if cfg.DomainsFile != "" {
		loaded, err := portal.LoadDomainsFile(cfg.DomainsFile)
		if err != nil {
			return err
		}
		domains = loaded
	}

	uplink := cfg.Uplink
	if uplink == "" {
		nm := network.NewManager(logger)
		if detected, err := nm.UplinkInterface(cfg.Interface); err == nil {
			uplink = detected
		}
	}

	d := health.New(cfg, uplink, install.LeaseFilePath(), portal.NewRouter(domains).Domains(), logger)
	d.SetDeep(deep)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report := d.Run(ctx)
	fmt.Print(report.Render())

	if !report.Healthy() {
		return fmt.Errorf("diagnostics reported failures")
	}
	return nil
}
