// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestSetDefaultReplaces(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	var buf bytes.Buffer
	SetDefault(New(Config{Level: LevelInfo, Output: &buf}))
	Default().Info("hello", "k", "v")

	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("replaced default did not receive the record: %q", buf.String())
	}
}

func TestDefaultConcurrentWithSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	// Exercised under -race: readers and writers of the default must not
	// trip the detector.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if Default() == nil {
					t.Error("Default returned nil")
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			var buf bytes.Buffer
			for j := 0; j < 50; j++ {
				SetDefault(New(Config{Level: LevelError, Output: &buf}))
			}
		}()
	}
	wg.Wait()
}
