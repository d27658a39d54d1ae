// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package services

import "os"

// selfExe resolves the controller's own executable path. The portal web
// server is launched by re-invoking this path, so it must survive the
// binary being called through a symlink or relative path.
func selfExe() string {
	exe, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	return exe
}
