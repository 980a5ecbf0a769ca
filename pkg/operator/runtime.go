/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package operator

import (
	"context"
	"fmt"
	"sync"
	"time"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/sap/component-operator-runtime/pkg/cluster"
	"github.com/sap/component-operator-runtime/pkg/dispatcher"
	"github.com/sap/component-operator-runtime/pkg/engine"
	"github.com/sap/component-operator-runtime/pkg/filters"
	"github.com/sap/component-operator-runtime/pkg/scheduler"
	"github.com/sap/component-operator-runtime/pkg/types"
)

// registration is the bookkeeping Runtime keeps per AddController call: the Controller-owned
// Engine that actually runs the ten-phase pipeline.
type registration struct {
	engine *engine.Engine
}

// Runtime is the process-level object a Controller author's Operator.Setup wires Controllers into:
// it owns one Dispatcher per (apiVersion, kind, namespace) triple a Controller is registered for, a
// Scheduler shared across all of them, and the Reconciler callback that looks up which Engine a
// surviving Reconcile Request belongs to. It replaces the teacher's ctrl.Manager as the thing
// Operator.Setup registers Controllers onto, since this module's Dispatcher/Scheduler pair (§4.5,
// §4.6) runs its own watch and reconcile loops rather than delegating to controller-runtime's.
type Runtime struct {
	adapter         cluster.Adapter
	defaultPipeline *filters.Pipeline
	schedulerConfig scheduler.Config

	mu          sync.Mutex
	dispatchers map[string]*dispatcher.Dispatcher
	controllers map[string]*registration

	scheduler *scheduler.Scheduler
	wheel     *scheduler.TimerWheel
}

// NewRuntime builds a Runtime that reconciles against adapter. defaultPipeline seeds every
// Dispatcher's fallback filter pipeline (filters.Default() if nil); schedulerConfig is passed
// through to the shared Scheduler as-is (zero value is valid: CPU-count workers, no periodic
// reconcile, leader election disabled).
func NewRuntime(adapter cluster.Adapter, defaultPipeline *filters.Pipeline, schedulerConfig scheduler.Config) *Runtime {
	if defaultPipeline == nil {
		defaultPipeline = filters.Default()
	}
	return &Runtime{
		adapter:         adapter,
		defaultPipeline: defaultPipeline,
		schedulerConfig: schedulerConfig,
		dispatchers:     map[string]*dispatcher.Dispatcher{},
		controllers:     map[string]*registration{},
		wheel:           scheduler.NewTimerWheel(),
	}
}

func dispatcherKey(gvk cluster.GroupVersionKind, namespace string) string {
	return fmt.Sprintf("%s/%s/%s/%s", gvk.Group, gvk.Version, gvk.Kind, namespace)
}

// AddController registers a Controller's Engine with the Runtime: gvk/namespace identify the
// primary resource kind this Controller reconciles (namespace "" watches cluster-scoped kinds or
// all namespaces); a collection-wide self-watch request is installed so every add/update/delete of
// that kind produces a Reconcile Request carrying controller.Name(). Multiple Controllers sharing a
// (gvk, namespace) share the underlying Dispatcher, mirroring how a single watch stream can feed
// several controllers in the source's Watch Manager.
func (rt *Runtime) AddController(controller engine.Controller, gvk cluster.GroupVersionKind, namespace string, hooks engine.Hooks, patchSource engine.PatchSource, backoffBase time.Duration) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	name := controller.Name()
	if _, exists := rt.controllers[name]; exists {
		return fmt.Errorf("controller %q already registered", name)
	}

	key := dispatcherKey(gvk, namespace)
	d, ok := rt.dispatchers[key]
	if !ok {
		d = dispatcher.New(gvk, namespace, rt.adapter, rt.pushToScheduler, rt.defaultPipeline, rt.fatal)
		rt.dispatchers[key] = d
	}

	selfId := types.ResourceId{Group: gvk.Group, Version: gvk.Version, Kind: gvk.Kind, Namespace: namespace}
	d.RequestWatch(dispatcher.WatchRequest{
		Watched:        selfId,
		Requester:      selfId,
		ControllerName: name,
		Filters:        filters.Leaf(filters.NewEnable),
	})

	rt.controllers[name] = &registration{
		engine: engine.New(controller, hooks, patchSource, backoffBase),
	}
	return nil
}

// pushToScheduler is the Sink every Dispatcher forwards surviving Reconcile Requests through.
// Run always starts the shared Scheduler before any Dispatcher, so by the time a Dispatcher can
// possibly produce a request, rt.scheduler is already non-nil.
func (rt *Runtime) pushToScheduler(req dispatcher.ReconcileRequest) {
	rt.mu.Lock()
	s := rt.scheduler
	rt.mu.Unlock()
	if s == nil {
		return
	}
	s.Push(req)
}

// fatal is the Dispatcher callback invoked once a watch stream exhausts its restart budget (§4.5);
// panicking mirrors the source's "terminate the process" policy, since undetected event loss is
// unsafe to continue reconciling through.
func (rt *Runtime) fatal(err error) {
	panic(fmt.Errorf("watch dispatcher exhausted restart budget: %w", err))
}

// reconcile is the scheduler.Reconciler bound to this Runtime's registered Controllers: it looks up
// the Engine by request.ControllerName and replays the manifest the Dispatcher already observed,
// per the event-driven reconcile loop's "the watch event itself carries the object" shortcut (no
// extra Get is needed since Dispatcher.handleEvent already resolved the current version).
func (rt *Runtime) reconcile(ctx context.Context, request dispatcher.ReconcileRequest) (ctrl.Result, error) {
	rt.mu.Lock()
	reg, ok := rt.controllers[request.ControllerName]
	rt.mu.Unlock()
	if !ok {
		return ctrl.Result{}, fmt.Errorf("reconcile request for unknown controller %q", request.ControllerName)
	}
	if request.Resource == nil {
		return ctrl.Result{}, fmt.Errorf("reconcile request for controller %q carries no resource", request.ControllerName)
	}
	return reg.engine.Reconcile(ctx, rt.adapter, request.Resource.Manifest())
}

// Run starts the shared Scheduler, its TimerWheel and every registered Dispatcher, and blocks
// until ctx is done. Call after every Operator.Setup has finished calling AddController.
func (rt *Runtime) Run(ctx context.Context) {
	rt.mu.Lock()
	rt.scheduler = scheduler.New(rt.schedulerConfig, rt.reconcile, rt.wheel)
	dispatchers := make([]*dispatcher.Dispatcher, 0, len(rt.dispatchers))
	for _, d := range rt.dispatchers {
		dispatchers = append(dispatchers, d)
	}
	s := rt.scheduler
	rt.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2 + len(dispatchers))
	go func() { defer wg.Done(); rt.wheel.Run(ctx) }()
	go func() { defer wg.Done(); s.Run(ctx) }()
	for _, d := range dispatchers {
		d := d
		go func() { defer wg.Done(); d.Run(ctx) }()
	}
	wg.Wait()
}
