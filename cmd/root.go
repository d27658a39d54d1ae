// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package cmd implements the flytrap command line: run a hotspot, diagnose
// a running one, list candidate interfaces, stop a background instance, and
// the hidden __portal mode the supervisor self-execs for the portal web
// server.
package cmd

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/flytrap/internal/brand"
	"grimm.is/flytrap/internal/errors"
)

// Exit codes. Stable: scripts key off these.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitConfig      = 2
	ExitPrivilege   = 3
	ExitUnsupported = 4
	ExitDaemon      = 5
	ExitFirewall    = 6
)

// Execute dispatches the command line and returns the process exit code.
func Execute(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "interfaces":
			return exitFor(RunInterfaces())
		case "stop":
			return exitFor(RunStop())
		case "__portal":
			return exitFor(RunPortal(args[1:]))
		case "help", "-h", "--help":
			printUsage()
			return ExitOK
		}
	}
	return runRoot(args)
}

func runRoot(args []string) int {
	fs := flag.NewFlagSet(brand.BinaryName, flag.ContinueOnError)
	configFile := fs.String("config", "", "HCL configuration file")
	diagnose := fs.Bool("diagnose", false, "check a running hotspot instead of starting one")
	deep := fs.Bool("deep", false, "with --diagnose, also send a DHCP probe on the air")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	fs.Usage = printUsage

	if err := fs.Parse(args); err != nil {
		return ExitConfig
	}

	cfg, err := loadConfig(*configFile, fs.Args(), *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfig
	}

	if *diagnose {
		return exitFor(RunDiagnose(cfg, *deep))
	}
	return exitFor(RunHotspot(cfg))
}

// exitFor maps an error to the documented exit code.
func exitFor(err error) int {
	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	switch errors.GetKind(err) {
	case errors.KindValidation:
		return ExitConfig
	case errors.KindPermission:
		return ExitPrivilege
	case errors.KindUnsupported, errors.KindNotFound:
		return ExitUnsupported
	case errors.KindServiceStart:
		return ExitDaemon
	case errors.KindRuleApply, errors.KindUnavailable:
		return ExitFirewall
	default:
		return ExitError
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: %[1]s [flags] [ssid] [passphrase] [interface]

Runs a WiFi hotspot with a captive registration portal. Positional arguments
default to %[2]q / %[3]q / %[4]q.

Flags:
  --config FILE   HCL configuration file (positional args take precedence)
  --diagnose      check a running hotspot and exit
  --deep          with --diagnose, also probe DHCP on the air
  --log-level L   debug, info, warn or error

Subcommands:
  interfaces      list wireless interfaces and their AP capability
  stop            stop a running instance

Exit codes: 0 ok, 2 configuration, 3 privilege, 4 unsupported adapter,
5 daemon failure, 6 firewall failure, 1 other.
`, brand.BinaryName, "ActivePortal", "portal123", "wlan0")
}
