/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	k8swatch "k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sap/component-operator-runtime/pkg/types"
)

// restartableWatchStream wraps a sequence of raw apimachinery watch.Interface connections behind
// the pull-based WatchStream contract, transparently reconnecting (replaying from the last seen
// resourceVersion) on 410 Gone and other transient failures, up to maxRestarts in a row without a
// successfully-delivered event in between. This is the Go analogue of oper8's watch thread, which
// restarts its underlying generator on every expired-watch error and relies on the apiserver's list
// semantics to resynchronize.
type restartableWatchStream struct {
	ctx         context.Context
	cancel      context.CancelFunc
	clnt        client.WithWatch
	gvk         GroupVersionKind
	namespace   string
	opts        WatchOptions
	maxRestarts int
	retryDelay  time.Duration

	mu              sync.Mutex
	current         k8swatch.Interface
	events          <-chan k8swatch.Event
	lastResourceVer string
	closed          bool
}

func newRestartableWatchStream(ctx context.Context, clnt client.WithWatch, gvk GroupVersionKind, namespace string, opts WatchOptions, maxRestarts int, retryDelay time.Duration) WatchStream {
	streamCtx, cancel := context.WithCancel(ctx)
	return &restartableWatchStream{
		ctx:             streamCtx,
		cancel:          cancel,
		clnt:            clnt,
		gvk:             gvk,
		namespace:       namespace,
		opts:            opts,
		maxRestarts:     maxRestarts,
		retryDelay:      retryDelay,
		lastResourceVer: opts.SinceResourceVersion,
	}
}

func (w *restartableWatchStream) Next(ctx context.Context, timeout time.Duration) (WatchEvent, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return WatchEvent{}, false, nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	restarts := 0
	for {
		if w.current == nil {
			if err := w.reconnect(ctx); err != nil {
				restarts++
				if restarts > w.maxRestarts {
					return WatchEvent{}, false, err
				}
				select {
				case <-ctx.Done():
					return WatchEvent{}, false, ctx.Err()
				case <-time.After(w.retryDelay):
				}
				continue
			}
		}

		select {
		case <-ctx.Done():
			return WatchEvent{}, false, ctx.Err()
		case <-deadline.C:
			return WatchEvent{}, false, nil
		case rawEvent, open := <-w.events:
			if !open {
				// channel closed: the watch expired (commonly a 410 Gone). Reconnect and retry,
				// replaying from the last resourceVersion we actually observed.
				w.current.Stop()
				w.current = nil
				restarts++
				if restarts > w.maxRestarts {
					return WatchEvent{}, false, errRestartsExhausted(w.gvk, restarts)
				}
				continue
			}
			if rawEvent.Type == k8swatch.Error {
				log.FromContext(ctx).Info("watch stream delivered an error event, reconnecting", "kind", w.gvk.Kind)
				w.current.Stop()
				w.current = nil
				restarts++
				if restarts > w.maxRestarts {
					return WatchEvent{}, false, errRestartsExhausted(w.gvk, restarts)
				}
				continue
			}
			object, ok := rawEvent.Object.(*unstructured.Unstructured)
			if !ok {
				continue
			}
			w.lastResourceVer = object.GetResourceVersion()
			if w.opts.Name != "" && object.GetName() != w.opts.Name {
				continue
			}
			if w.opts.FieldSelector != "" {
				matched, err := filterByFieldSelector([]unstructured.Unstructured{*object}, w.opts.FieldSelector)
				if err != nil {
					return WatchEvent{}, false, err
				}
				if len(matched) == 0 {
					continue
				}
			}
			return WatchEvent{Type: toWatchEventType(rawEvent.Type), Resource: types.NewManagedObject(object)}, true, nil
		}
	}
}

func (w *restartableWatchStream) reconnect(ctx context.Context) error {
	list := &unstructured.UnstructuredList{}
	list.SetAPIVersion(w.gvk.APIVersion())
	list.SetKind(w.gvk.Kind + "List")

	listOpts, err := toClientListOptions(w.namespace, w.opts.LabelSelector)
	if err != nil {
		return err
	}
	if w.lastResourceVer != "" {
		listOpts = append(listOpts, &client.ListOptions{Raw: &metav1.ListOptions{ResourceVersion: w.lastResourceVer}})
	}

	raw, err := w.clnt.Watch(ctx, list, listOpts...)
	if err != nil {
		if apierrors.IsResourceExpired(err) || apierrors.IsGone(err) {
			w.lastResourceVer = ""
		}
		return err
	}
	w.current = raw
	w.events = raw.ResultChan()
	return nil
}

func (w *restartableWatchStream) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.current != nil {
		w.current.Stop()
	}
	w.cancel()
}

func toWatchEventType(t k8swatch.EventType) WatchEventType {
	switch t {
	case k8swatch.Added:
		return WatchEventAdded
	case k8swatch.Deleted:
		return WatchEventDeleted
	default:
		return WatchEventModified
	}
}

func errRestartsExhausted(gvk GroupVersionKind, restarts int) error {
	return &watchExhaustedError{gvk: gvk, restarts: restarts}
}

type watchExhaustedError struct {
	gvk      GroupVersionKind
	restarts int
}

func (e *watchExhaustedError) Error() string {
	return fmt.Sprintf("watch stream for %s failed after %d restarts", e.gvk.Kind, e.restarts)
}
