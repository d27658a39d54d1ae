// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package network

import (
	"os"
	"strings"
)

// IPForwardPath is the sysctl knob for IPv4 forwarding.
const IPForwardPath = "/proc/sys/net/ipv4/ip_forward"

// SystemController abstracts sysctl access for tests.
type SystemController interface {
	ReadSysctl(path string) (string, error)
	WriteSysctl(path, value string) error
}

// RealSystemController reads and writes /proc/sys directly.
type RealSystemController struct{}

func (RealSystemController) ReadSysctl(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (RealSystemController) WriteSysctl(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}

// DefaultSystemController is the default RealSystemController instance.
var DefaultSystemController SystemController = RealSystemController{}
