// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package install resolves the filesystem locations the controller uses at
// runtime. Generated daemon configs, the pidfile and the dnsmasq lease file
// all live under the run directory so a crashed-and-restarted controller can
// find and clean up stale files.
package install

import (
	"os"
	"path/filepath"

	"grimm.is/flytrap/internal/brand"
)

var (
	DefaultConfigDir = "/etc/" + brand.LowerName
	DefaultRunDir    = "/run/" + brand.LowerName
	DefaultLogDir    = "/var/log/" + brand.LowerName

	// Build-time path overrides (set via -ldflags).
	BuildDefaultConfigDir = ""
	BuildDefaultRunDir    = ""
	BuildDefaultLogDir    = ""
)

func init() {
	if BuildDefaultConfigDir != "" {
		DefaultConfigDir = BuildDefaultConfigDir
	}
	if BuildDefaultRunDir != "" {
		DefaultRunDir = BuildDefaultRunDir
	}
	if BuildDefaultLogDir != "" {
		DefaultLogDir = BuildDefaultLogDir
	}
}

// GetConfigDir returns the config directory, checking env vars first.
// Priority: FLYTRAP_CONFIG_DIR > FLYTRAP_PREFIX/config > DefaultConfigDir
func GetConfigDir() string {
	if dir := os.Getenv(brand.ConfigEnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(brand.ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "config")
	}
	return DefaultConfigDir
}

// GetRunDir returns the runtime directory for pidfiles and generated daemon
// configs. Falls back to /tmp when the default is not writable (the
// controller may be started before /run/flytrap exists).
func GetRunDir() string {
	if dir := os.Getenv(brand.ConfigEnvPrefix + "_RUN_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(brand.ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "run")
	}
	if err := os.MkdirAll(DefaultRunDir, 0o755); err == nil {
		return DefaultRunDir
	}
	dir := filepath.Join(os.TempDir(), brand.LowerName)
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

// GetLogDir returns the log directory, checking env vars first.
func GetLogDir() string {
	if dir := os.Getenv(brand.ConfigEnvPrefix + "_LOG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(brand.ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "log")
	}
	return DefaultLogDir
}

// HostapdConfPath returns the well-known path of the generated hostapd config.
func HostapdConfPath() string {
	return filepath.Join(GetRunDir(), "hostapd.conf")
}

// DnsmasqConfPath returns the well-known path of the generated dnsmasq config.
func DnsmasqConfPath() string {
	return filepath.Join(GetRunDir(), "dnsmasq.conf")
}

// LeaseFilePath returns the dnsmasq DHCP lease file path.
func LeaseFilePath() string {
	return filepath.Join(GetRunDir(), "dnsmasq.leases")
}

// PidFilePath returns the controller's own pidfile path.
func PidFilePath() string {
	return filepath.Join(GetRunDir(), brand.LowerName+".pid")
}
