/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHeartbeatWriterWritesAndReschedules(t *testing.T) {
	wheel := NewTimerWheel()
	path := filepath.Join(t.TempDir(), "heartbeat.txt")

	h := NewHeartbeatWriter(path, time.Hour, wheel)
	h.Start()

	if err := CheckHeartbeat(path, time.Minute); err != nil {
		t.Fatalf("expected a fresh heartbeat to pass the check, got: %v", err)
	}

	wheel.mu.Lock()
	n := len(wheel.heap)
	wheel.mu.Unlock()
	if n != 1 {
		t.Errorf("expected the beat to reschedule itself onto the wheel, heap len=%d", n)
	}
}

func TestCheckHeartbeatMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.txt")
	if err := CheckHeartbeat(path, time.Minute); err == nil {
		t.Errorf("expected an error for a missing heartbeat file")
	}
}

func TestCheckHeartbeatStale(t *testing.T) {
	wheel := NewTimerWheel()
	path := filepath.Join(t.TempDir(), "heartbeat.txt")
	h := NewHeartbeatWriter(path, time.Hour, wheel)
	h.Start()

	if err := CheckHeartbeat(path, -time.Second); err == nil {
		t.Errorf("expected a heartbeat older than maxAge to be reported stale")
	}
}

func TestCheckHeartbeatMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat.txt")
	if err := os.WriteFile(path, []byte("not a timestamp"), 0o644); err != nil {
		t.Fatalf("unexpected error writing test file: %v", err)
	}
	if err := CheckHeartbeat(path, time.Minute); err == nil {
		t.Errorf("expected a malformed heartbeat file to be reported as an error")
	}
}
