// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/flytrap/internal/brand"
	"grimm.is/flytrap/internal/config"
	"grimm.is/flytrap/internal/logging"
	"grimm.is/flytrap/internal/portalweb"
)

// RunPortal is the hidden __portal mode: the supervisor re-execs this
// binary with these flags and supervises it like hostapd and dnsmasq. It
// serves until SIGTERM.
func RunPortal(args []string) error {
	fs := flag.NewFlagSet("__portal", flag.ContinueOnError)
	ssid := fs.String("ssid", config.DefaultSSID, "network name shown on the portal page")
	gateway := fs.String("gateway", config.DefaultGatewayIP, "address to listen on")
	port := fs.Int("port", config.DefaultPortalPort, "port to listen on")
	leases := fs.String("leases", "", "dnsmasq lease file for the client gauge")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := SetProcessName(brand.PortalProcessName); err != nil {
		// Cosmetic only.
		logging.Default().Debug("Failed to set process name", "error", err)
	}

	cfg := config.Default()
	cfg.SSID = *ssid
	cfg.GatewayIP = *gateway
	cfg.PortalPort = *port

	logger := logging.WithComponent("portalweb")

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	return portalweb.NewServer(cfg, *leases, logger).Run(ctx)
}
