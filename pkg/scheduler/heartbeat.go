/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package scheduler

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
)

// heartbeatTimeFormat is read with the GNU `date -d "$(cat heartbeat.txt)"` idiom, per §11 item 1.
const heartbeatTimeFormat = "2006-01-02 15:04:05"

// HeartbeatWriter periodically writes the current time to a file, giving an external
// liveness/readiness probe a way to detect a wedged scheduler even when no resource events are
// flowing. Grounded on oper8's HeartbeatThread/cmd/check_heart_beat.py.
type HeartbeatWriter struct {
	path   string
	period time.Duration
	wheel  *TimerWheel
}

// NewHeartbeatWriter constructs a HeartbeatWriter; call Start to begin writing beats onto wheel
// (typically the same TimerWheel the Scheduler uses for requeues).
func NewHeartbeatWriter(path string, period time.Duration, wheel *TimerWheel) *HeartbeatWriter {
	return &HeartbeatWriter{path: path, period: period, wheel: wheel}
}

// Start writes the first beat immediately; each beat reschedules the next one period later.
func (h *HeartbeatWriter) Start() {
	h.beat()
}

func (h *HeartbeatWriter) beat() {
	_ = os.WriteFile(h.path, []byte(time.Now().Format(heartbeatTimeFormat)), 0o644)
	h.wheel.Put(time.Now().Add(h.period), h.beat)
}

// CheckHeartbeat reads the heartbeat file at path and reports an error if it is missing, malformed,
// or older than maxAge. Used by an external health-check collaborator (§11 item 1).
func CheckHeartbeat(path string, maxAge time.Duration) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "unable to read heartbeat file")
	}
	beat, err := time.ParseInLocation(heartbeatTimeFormat, string(raw), time.Local)
	if err != nil {
		return errors.Wrap(err, "unable to parse heartbeat file")
	}
	if age := time.Since(beat); age > maxAge {
		return fmt.Errorf("heartbeat is stale: last beat %s ago, max age %s", age, maxAge)
	}
	return nil
}
