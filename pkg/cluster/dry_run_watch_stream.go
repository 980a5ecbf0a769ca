/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package cluster

import (
	"context"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/sap/component-operator-runtime/pkg/types"
)

// dryRunWatchStream is a WatchStream fed synchronously by DryRunAdapter's registered watch and
// finalizer callbacks, rather than by a real apiserver connection. It tracks which identities it
// has already reported, so a first delivery is ADDED and subsequent ones are MODIFIED -- the same
// distinction oper8's dry-run watch callback makes by checking its resource_map.
type dryRunWatchStream struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	events chan WatchEvent
	seen   map[string]bool
	closed bool
}

func newDryRunWatchStream(ctx context.Context) *dryRunWatchStream {
	streamCtx, cancel := context.WithCancel(ctx)
	return &dryRunWatchStream{
		ctx:    streamCtx,
		cancel: cancel,
		events: make(chan WatchEvent, 64),
		seen:   make(map[string]bool),
	}
}

func (s *dryRunWatchStream) Next(ctx context.Context, timeout time.Duration) (WatchEvent, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return WatchEvent{}, false, ctx.Err()
	case <-s.ctx.Done():
		return WatchEvent{}, false, nil
	case <-timer.C:
		return WatchEvent{}, false, nil
	case event, open := <-s.events:
		if !open {
			return WatchEvent{}, false, nil
		}
		return event, true, nil
	}
}

func (s *dryRunWatchStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}

func (s *dryRunWatchStream) deliverAdded(object *unstructured.Unstructured) {
	s.deliver(object, WatchEventAdded)
}

func (s *dryRunWatchStream) deliverModified(object *unstructured.Unstructured) {
	s.mu.Lock()
	key := types.NewManagedObject(object).IdentityKey()
	eventType := WatchEventModified
	if !s.seen[key] {
		eventType = WatchEventAdded
	}
	s.seen[key] = true
	s.mu.Unlock()
	s.deliver(object, eventType)
}

func (s *dryRunWatchStream) deliverDeleted(object *unstructured.Unstructured) {
	s.mu.Lock()
	key := types.NewManagedObject(object).IdentityKey()
	delete(s.seen, key)
	s.mu.Unlock()
	s.deliver(object, WatchEventDeleted)
}

func (s *dryRunWatchStream) deliver(object *unstructured.Unstructured, eventType WatchEventType) {
	s.mu.Lock()
	if eventType == WatchEventAdded {
		key := types.NewManagedObject(object).IdentityKey()
		s.seen[key] = true
	}
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	event := WatchEvent{Type: eventType, Resource: types.NewManagedObject(object)}
	select {
	case s.events <- event:
	case <-s.ctx.Done():
	}
}
