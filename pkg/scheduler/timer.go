/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// minSleepTime bounds how eagerly the timer wheel wakes up for an event that is already (nearly)
// due, mirroring oper8's TimerThread MIN_SLEEP_TIME.
const minSleepTime = 10 * time.Millisecond

// TimerEvent is a single scheduled action; Cancel marks it stale so the wheel skips it instead of
// running it, mirroring oper8's TimerEvent.cancel().
type TimerEvent struct {
	time   time.Time
	action func()
	stale  bool
	index  int
}

// Cancel marks the event as stale. A cancelled event that already fired has no effect.
func (e *TimerEvent) Cancel() {
	if e == nil {
		return
	}
	e.stale = true
}

type timerHeap []*TimerEvent

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].time.Before(h[j].time) }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x any)        { e := x.(*TimerEvent); e.index = len(*h); *h = append(*h, e) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// TimerWheel is a single shared goroutine that fires scheduled actions, replacing a
// timer/thread-per-event with one heap-ordered queue, per oper8's TimerThread. It backs the
// Scheduler's requeue and periodic-reconcile scheduling, and the heartbeat writer.
type TimerWheel struct {
	mu      sync.Mutex
	cond    *sync.Cond
	heap    timerHeap
	stopped bool
}

// NewTimerWheel constructs a TimerWheel; call Run(ctx) once to start its loop.
func NewTimerWheel() *TimerWheel {
	w := &TimerWheel{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Put schedules action to run at t, returning a TimerEvent that Cancel() can later suppress.
func (w *TimerWheel) Put(t time.Time, action func()) *TimerEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	event := &TimerEvent{time: t, action: action}
	heap.Push(&w.heap, event)
	w.cond.Broadcast()
	return event
}

// Run blocks, executing due events, until ctx is cancelled.
func (w *TimerWheel) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		w.mu.Lock()
		w.stopped = true
		w.cond.Broadcast()
		w.mu.Unlock()
	}()

	for {
		w.mu.Lock()
		for !w.stopped {
			wait := w.timeToSleepLocked()
			if wait <= 0 {
				break
			}
			timer := time.AfterFunc(wait, func() {
				w.mu.Lock()
				w.cond.Broadcast()
				w.mu.Unlock()
			})
			w.cond.Wait()
			timer.Stop()
		}
		if w.stopped {
			w.mu.Unlock()
			return
		}
		due := w.popDueLocked()
		w.mu.Unlock()

		for _, event := range due {
			if event.stale {
				continue
			}
			event.action()
		}
	}
}

// timeToSleepLocked returns how long until the next event is due, or 0 if one is already due /
// the heap is non-empty and unknown; must be called with mu held.
func (w *TimerWheel) timeToSleepLocked() time.Duration {
	if len(w.heap) == 0 {
		return time.Hour
	}
	wait := time.Until(w.heap[0].time)
	if wait < minSleepTime {
		return 0
	}
	return wait
}

func (w *TimerWheel) popDueLocked() []*TimerEvent {
	var due []*TimerEvent
	now := time.Now()
	for len(w.heap) > 0 && !w.heap[0].time.After(now) {
		due = append(due, heap.Pop(&w.heap).(*TimerEvent))
	}
	return due
}
