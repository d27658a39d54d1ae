// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package confgen renders the configuration files for the two external
// daemons. Generation is pure: same config in, same text out, no I/O. The
// caller writes the files and owns their paths.
package confgen

import (
	"fmt"
	"strings"

	"grimm.is/flytrap/internal/config"
)

// Hostapd renders hostapd.conf for the given hotspot configuration. The
// config is validated first so hostapd is never spawned with an SSID or
// passphrase it would reject.
func Hostapd(cfg *config.Hotspot) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	w := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	w("interface=%s", cfg.Interface)
	w("driver=nl80211")
	w("ssid=%s", cfg.SSID)
	w("hw_mode=g")
	w("channel=%d", cfg.Channel)
	w("wmm_enabled=1")
	w("macaddr_acl=0")
	w("auth_algs=1")
	w("ignore_broadcast_ssid=0")
	w("wpa=2")
	w("wpa_passphrase=%s", cfg.Passphrase)
	w("wpa_key_mgmt=WPA-PSK")
	w("wpa_pairwise=CCMP")
	w("rsn_pairwise=CCMP")
	b.WriteString("\n")

	// Reconnection behaviour: fast beacons and a long inactivity window keep
	// phones from dropping off while they sit on the portal page.
	w("beacon_int=100")
	w("dtim_period=2")
	w("ap_max_inactivity=300")
	w("skip_inactivity_poll=0")
	w("max_listen_interval=65535")
	b.WriteString("\n")

	w("country_code=%s", cfg.CountryCode)
	w("ieee80211d=1")
	w("ieee80211n=1")
	w("ht_capab=[HT40+][SHORT-GI-20][SHORT-GI-40][DSSS_CCK-40]")
	b.WriteString("\n")

	w("max_num_sta=50")
	w("preamble=1")
	// Clients must reach the gateway (and each other's ARP) for the portal.
	w("ap_isolate=0")
	b.WriteString("\n")

	w("logger_syslog=-1")
	w("logger_syslog_level=2")
	w("logger_stdout=-1")
	w("logger_stdout_level=2")

	return b.String(), nil
}
