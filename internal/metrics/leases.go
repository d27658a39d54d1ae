// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"
)

// Lease is one entry from the dnsmasq lease file. The file format is one
// lease per line: expiry epoch, MAC, IP, hostname, client-id.
type Lease struct {
	Expiry   time.Time
	MAC      string
	IP       string
	Hostname string
}

// ReadLeases parses the dnsmasq lease file and returns leases that have not
// expired. A missing file means no clients, not an error.
func ReadLeases(path string, now time.Time) ([]Lease, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var leases []Lease
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		epoch, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		lease := Lease{
			Expiry:   time.Unix(epoch, 0),
			MAC:      fields[1],
			IP:       fields[2],
			Hostname: fields[3],
		}
		// Epoch 0 marks an infinite lease.
		if epoch != 0 && lease.Expiry.Before(now) {
			continue
		}
		leases = append(leases, lease)
	}
	return leases, scanner.Err()
}
