// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package brand holds the project identity constants used for pidfiles,
// generated file names, and user-facing output.
package brand

const (
	// Name is the display name of the project.
	Name = "Flytrap"
	// LowerName is used for pidfiles, config file names and process names.
	LowerName = "flytrap"
	// BinaryName is the name of the installed executable.
	BinaryName = "flytrap"
	// PortalProcessName is the comm name the re-exec'd portal child renames
	// itself to, and what stale-instance cleanup matches on.
	PortalProcessName = LowerName + "-portal"
	// ConfigEnvPrefix is the prefix for environment variable overrides.
	ConfigEnvPrefix = "FLYTRAP"
)
