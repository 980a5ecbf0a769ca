/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTimerWheelFiresInOrder(t *testing.T) {
	wheel := NewTimerWheel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wheel.Run(ctx)

	var mu sync.Mutex
	var order []int

	record := func(n int) func() {
		return func() {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}
	}

	now := time.Now()
	wheel.Put(now.Add(60*time.Millisecond), record(3))
	wheel.Put(now.Add(20*time.Millisecond), record(1))
	wheel.Put(now.Add(40*time.Millisecond), record(2))

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for events to fire, got %v so far", order)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("expected events to fire in scheduled order, got %v", order)
	}
}

func TestTimerWheelCancelSkipsEvent(t *testing.T) {
	wheel := NewTimerWheel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wheel.Run(ctx)

	var mu sync.Mutex
	fired := false

	event := wheel.Put(time.Now().Add(20*time.Millisecond), func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	event.Cancel()

	// A second, later event to know when the wheel has passed the cancelled one's due time.
	done := make(chan struct{})
	wheel.Put(time.Now().Add(60*time.Millisecond), func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for marker event")
	}

	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Errorf("expected cancelled event to be skipped")
	}
}

func TestTimerWheelPutAfterStopIsNoop(t *testing.T) {
	wheel := NewTimerWheel()
	ctx, cancel := context.WithCancel(context.Background())
	go wheel.Run(ctx)
	cancel()

	deadline := time.Now().Add(time.Second)
	for {
		wheel.mu.Lock()
		stopped := wheel.stopped
		wheel.mu.Unlock()
		if stopped {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for wheel to stop")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if event := wheel.Put(time.Now(), func() {}); event != nil {
		t.Errorf("expected Put after stop to return nil, got %v", event)
	}
}
