/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package dispatcher implements the Watch Dispatcher (§4.5): one instance per
// (apiVersion, kind, namespace-or-cluster) triple, holding the request table and per-resource
// filter pipeline memory, translating surviving events into Reconcile Requests for the Scheduler.
package dispatcher

import (
	"context"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/sap/component-operator-runtime/pkg/cluster"
	"github.com/sap/component-operator-runtime/pkg/filters"
	"github.com/sap/component-operator-runtime/pkg/types"
)

// RequestKind extends the three raw watch event kinds with the synthetic DEPENDENT kind a
// dispatcher produces when a surviving request's requester differs from the resource that
// actually changed (§4.4 step 2's "dependent resource" case).
type RequestKind string

const (
	RequestAdded     RequestKind = RequestKind(cluster.WatchEventAdded)
	RequestModified  RequestKind = RequestKind(cluster.WatchEventModified)
	RequestDeleted   RequestKind = RequestKind(cluster.WatchEventDeleted)
	RequestDependent RequestKind = "DEPENDENT"
)

// WatchRequest is an entry in a dispatcher's request table (§4.4's "WatchRequest" type): watched
// names the resource (or collection, if Name is empty) being observed; requester names the
// resource whose reconcile should be triggered; ControllerName identifies which controller's
// reconcile loop to invoke. Two requests are equal iff Watched, Requester and ControllerName
// match -- Filters is deliberately excluded from the identity, per §4.4, to avoid duplicate
// watches when the same requester asks for the same resource with cosmetically different filters.
type WatchRequest struct {
	Watched        types.ResourceId
	Requester      types.ResourceId
	ControllerName string
	Filters        *filters.Pipeline
}

type requestKey struct {
	watched        types.ResourceId
	requester      types.ResourceId
	controllerName string
}

func (r WatchRequest) key() requestKey {
	return requestKey{watched: r.Watched, requester: r.Requester, controllerName: r.ControllerName}
}

// ReconcileRequest is what a dispatcher forwards to the Scheduler once a request's filter
// pipeline lets an event through.
type ReconcileRequest struct {
	ControllerName string
	Kind           RequestKind
	Resource       *types.ManagedObject
}

// Sink receives every Reconcile Request a Dispatcher produces.
type Sink func(ReconcileRequest)

// watchedResource is live per-uid state: the resource's own id plus one filter pipeline instance
// per requester (keyed by the requester's named id, empty string for the default pipeline),
// mirroring §4.4's WatchedResource type.
type watchedResource struct {
	id        types.ResourceId
	pipelines map[string]*filters.Instance
}

// Dispatcher owns the request table and watched-resource state for one (apiVersion, kind,
// namespace-or-cluster) triple, per §4.5.
type Dispatcher struct {
	gvk       cluster.GroupVersionKind
	namespace string
	adapter   cluster.Adapter
	sink      Sink
	fatal     func(error)

	defaultPipeline *filters.Pipeline

	requests map[string]map[requestKey]WatchRequest // keyed by requester's GlobalId
	watched  map[string]*watchedResource             // keyed by event resource uid
}

// New constructs a Dispatcher for gvk/namespace ("" for cluster-scoped or all-namespaces). fatal
// is invoked if the underlying watch stream exhausts its restart budget (§4.5: "exhaustion causes
// the process to terminate with a fatal signal because undetected event loss is unsafe"); pass
// nil to default to a no-op (tests typically substitute their own).
func New(gvk cluster.GroupVersionKind, namespace string, adapter cluster.Adapter, sink Sink, defaultPipeline *filters.Pipeline, fatal func(error)) *Dispatcher {
	if fatal == nil {
		fatal = func(error) {}
	}
	return &Dispatcher{
		gvk:             gvk,
		namespace:       namespace,
		adapter:         adapter,
		sink:            sink,
		fatal:           fatal,
		defaultPipeline: defaultPipeline,
		requests:        map[string]map[requestKey]WatchRequest{},
		watched:         map[string]*watchedResource{},
	}
}

// RequestWatch inserts req into the request table if an equal request (by Watched/Requester/
// ControllerName) isn't already present, per §4.4's "requestWatch(req) inserts if absent".
func (d *Dispatcher) RequestWatch(req WatchRequest) {
	bucket, ok := d.requests[req.Requester.GlobalId()]
	if !ok {
		bucket = map[requestKey]WatchRequest{}
		d.requests[req.Requester.GlobalId()] = bucket
	}
	if _, exists := bucket[req.key()]; !exists {
		bucket[req.key()] = req
	}
}

// Run opens the event stream and processes events until ctx is cancelled or the stream's restart
// budget is exhausted, in which case fatal is invoked with the terminal error (§4.5).
func (d *Dispatcher) Run(ctx context.Context) {
	stream, err := d.adapter.Watch(ctx, d.gvk, d.namespace, cluster.WatchOptions{})
	if err != nil {
		d.fatal(err)
		return
	}
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		event, ok, err := stream.Next(ctx, 30*time.Second)
		if err != nil {
			d.fatal(err)
			return
		}
		if !ok {
			continue
		}
		d.handleEvent(ctx, event)
	}
}

// handleEvent implements the per-event pipeline of §4.5: gather applicable requests, materialize
// a WatchedResource on first sight, run the default filter then each request's own filter, and
// forward surviving requests to the sink.
func (d *Dispatcher) handleEvent(ctx context.Context, event cluster.WatchEvent) {
	resource := event.Resource
	requests := d.gatherRequests(resource)
	if len(requests) == 0 {
		return
	}

	watched := d.ensureWatchedResource(resource, requests)

	if !watched.pipelines[""].UpdateAndTest(resource.Manifest(), event.Type) {
		if event.Type == cluster.WatchEventDeleted {
			delete(d.watched, resource.UID())
		}
		return
	}

	for _, req := range requests {
		namedID := req.Requester.NamedId()
		pipeline, ok := watched.pipelines[namedID]
		if !ok {
			pipeline = req.Filters.Build(resource.Manifest())
			watched.pipelines[namedID] = pipeline
		}
		if !pipeline.UpdateAndTest(resource.Manifest(), event.Type) {
			continue
		}
		d.dispatchRequest(ctx, event, req)
	}

	if event.Type == cluster.WatchEventDeleted {
		delete(d.watched, resource.UID())
	}
}

// gatherRequests collects the requests that apply to resource: requests keyed on the resource's
// own global id (materializing a name onto collection requests, per §4.5) plus requests keyed on
// any of its owner references.
func (d *Dispatcher) gatherRequests(resource *types.ManagedObject) []WatchRequest {
	var result []WatchRequest

	id := resource.ResourceId()
	for _, req := range d.requests[id.GlobalId()] {
		if req.Requester.Name != "" && req.Requester.Name != id.Name {
			continue
		}
		if req.Requester.Name == "" {
			req.Requester = req.Requester.WithName(id.Name).WithNamespace(id.Namespace)
		}
		result = append(result, req)
	}

	for _, ownerRef := range ownerReferences(resource.Manifest()) {
		ownerID := resourceIdFromOwnerReference(ownerRef, id.Namespace)
		for _, req := range d.requests[ownerID.GlobalId()] {
			if req.Requester.Name != "" && req.Requester.Name != ownerRef.Name {
				continue
			}
			if req.Requester.Name == "" {
				req.Requester = req.Requester.WithName(ownerRef.Name).WithNamespace(ownerID.Namespace)
			}
			result = append(result, req)
		}
	}

	return result
}

func (d *Dispatcher) ensureWatchedResource(resource *types.ManagedObject, requests []WatchRequest) *watchedResource {
	uid := resource.UID()
	if w, ok := d.watched[uid]; ok {
		return w
	}
	w := &watchedResource{
		id:        resource.ResourceId(),
		pipelines: map[string]*filters.Instance{"": d.defaultPipeline.Build(resource.Manifest())},
	}
	for _, req := range requests {
		w.pipelines[req.Requester.NamedId()] = req.Filters.Build(resource.Manifest())
	}
	d.watched[uid] = w
	return w
}

// dispatchRequest resolves which resource to actually reconcile: normally the event's own
// resource, but for a dependent-resource request (requester differs from the event resource) the
// dispatcher fetches the requester's own current manifest via the Cluster Adapter, per §4.5.
func (d *Dispatcher) dispatchRequest(ctx context.Context, event cluster.WatchEvent, req WatchRequest) {
	resource := event.Resource
	kind := RequestKind(event.Type)

	sameResource := req.Requester.Kind == resource.Kind() &&
		joinAPIVersion(req.Requester.Group, req.Requester.Version) == resource.APIVersion() &&
		(req.Requester.Name == "" || req.Requester.Name == resource.Name())

	if !sameResource {
		requesterGVK := cluster.GroupVersionKind{Group: req.Requester.Group, Version: req.Requester.Version, Kind: req.Requester.Kind}
		found, object, err := d.adapter.Get(ctx, requesterGVK, req.Requester.Namespace, req.Requester.Name)
		if err != nil || !found {
			return
		}
		resource = types.NewManagedObject(object)
		kind = RequestDependent
	}

	d.sink(ReconcileRequest{ControllerName: req.ControllerName, Kind: kind, Resource: resource})
}

func ownerReferences(manifest interface{ GetOwnerReferences() []metav1.OwnerReference }) []metav1.OwnerReference {
	return manifest.GetOwnerReferences()
}

func resourceIdFromOwnerReference(ref metav1.OwnerReference, namespace string) types.ResourceId {
	group, version := splitAPIVersion(ref.APIVersion)
	return types.ResourceId{Group: group, Version: version, Kind: ref.Kind, Namespace: namespace}
}

func splitAPIVersion(apiVersion string) (group, version string) {
	for i := len(apiVersion) - 1; i >= 0; i-- {
		if apiVersion[i] == '/' {
			return apiVersion[:i], apiVersion[i+1:]
		}
	}
	return "", apiVersion
}

func joinAPIVersion(group, version string) string {
	if group == "" {
		return version
	}
	return group + "/" + version
}
