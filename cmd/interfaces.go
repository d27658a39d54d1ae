// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"grimm.is/flytrap/internal/logging"
	"grimm.is/flytrap/internal/network"
)

// RunInterfaces prints candidate interfaces for hosting the hotspot,
// wireless first.
func RunInterfaces() error {
	logger := logging.New(logging.Config{Level: logging.LevelWarn})
	nm := network.NewManager(logger)

	infos, err := nm.ListInterfaces()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No network interfaces found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INTERFACE\tTYPE\tSTATE\tDRIVER")
	for _, info := range infos {
		kind := "wired"
		if info.Wireless {
			kind = "wireless"
		}
		state := "down"
		if info.Up {
			state = "up"
		}
		driver := info.Driver
		if driver == "" {
			driver = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Name, kind, state, driver)
	}
	return w.Flush()
}
