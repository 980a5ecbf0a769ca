/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package cluster implements the Cluster Adapter (§4.1): the single point through which the rest
// of the core talks to a Kubernetes API server (or, for tests and the dry-run watch manager, an
// in-memory substitute with the same contract).
package cluster

import (
	"context"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	apitypes "k8s.io/apimachinery/pkg/types"

	"github.com/sap/component-operator-runtime/pkg/types"
)

// ApplyMethod selects the server operation Apply() uses, per §4.1 step 3.
type ApplyMethod string

const (
	ApplyMethodDefault ApplyMethod = "default"
	ApplyMethodUpdate  ApplyMethod = "update"
	ApplyMethodReplace ApplyMethod = "replace"
)

// WatchEventType mirrors the three event types the Cluster Adapter's watch stream emits.
type WatchEventType string

const (
	WatchEventAdded    WatchEventType = "ADDED"
	WatchEventModified WatchEventType = "MODIFIED"
	WatchEventDeleted  WatchEventType = "DELETED"
)

// WatchEvent is a single item read from a WatchStream.
type WatchEvent struct {
	Type     WatchEventType
	Resource *types.ManagedObject
}

// WatchStream is a pull-based, restartable sequence of events (§9 design notes: "replace nested
// generators... with a pull-based iterator interface"). Next blocks until an event is available,
// timeout elapses (returning ok=false, err=nil), or the stream is permanently exhausted (err set).
// Transient errors (410 Gone, timeouts, protocol errors) are handled internally by the
// implementation via reconnect/replay and never surface through Next; only a fatal failure after
// the configured retry budget returns a non-nil error.
type WatchStream interface {
	Next(ctx context.Context, timeout time.Duration) (event WatchEvent, ok bool, err error)
	Close()
}

// ListOptions mirrors the selector grammar and scoping §4.1/§6 require.
type ListOptions struct {
	LabelSelector string
	FieldSelector string
}

// WatchOptions additionally carries the replay cursor for Watch().
type WatchOptions struct {
	ListOptions
	Name                 string
	SinceResourceVersion string
}

// ApplyOptions configures a single Apply() call.
type ApplyOptions struct {
	ManageOwnerRefs bool
	Method          ApplyMethod
}

// Adapter is the uniform operation set §4.1 exposes to the rest of the core. A single Adapter
// instance is bound to one Session's owning CR (used for owner-reference stamping and as the
// status-update target identity) but is otherwise a stateless, reusable handle onto a cluster.
type Adapter interface {
	// Get fetches current state. not-found is reported as (false, nil, nil); forbidden as (false, nil, err).
	Get(ctx context.Context, gvk GroupVersionKind, namespace, name string) (found bool, manifest *unstructured.Unstructured, err error)
	// List mirrors Kubernetes list semantics for the given kind/namespace/selectors.
	List(ctx context.Context, gvk GroupVersionKind, namespace string, opts ListOptions) ([]*unstructured.Unstructured, error)
	// Watch opens a lazy, restartable event stream for the given kind (and, optionally, a single name).
	Watch(ctx context.Context, gvk GroupVersionKind, namespace string, opts WatchOptions) (WatchStream, error)
	// Apply creates, updates, or leaves unchanged each of manifests, per §4.1 step 3/4/5.
	Apply(ctx context.Context, manifests []*unstructured.Unstructured, opts ApplyOptions) (success bool, changed bool, err error)
	// Disable deletes each manifest by identity. not-found is success with changed=false.
	Disable(ctx context.Context, manifests []*unstructured.Unstructured) (success bool, changed bool, err error)
	// SetStatus writes status onto the object identified by identity, serialized per adapter instance.
	SetStatus(ctx context.Context, identity GroupVersionKind, namespace, name string, status map[string]any) (success bool, changed bool, err error)
	// AddFinalizer/RemoveFinalizer are refetch-merge-write helpers.
	AddFinalizer(ctx context.Context, identity GroupVersionKind, namespace, name, finalizer string) error
	RemoveFinalizer(ctx context.Context, identity GroupVersionKind, namespace, name, finalizer string) error
}

// GroupVersionKind identifies a Kubernetes type. Named distinctly from schema.GroupVersionKind so
// that call sites reading §4.1's operation signatures (kind, apiVersion as separate arguments)
// stay close to the spec's own vocabulary; it converts trivially to/from the apimachinery type.
type GroupVersionKind struct {
	Group   string
	Version string
	Kind    string
}

func (gvk GroupVersionKind) APIVersion() string {
	if gvk.Group == "" {
		return gvk.Version
	}
	return gvk.Group + "/" + gvk.Version
}

// OwnerReference is the block Apply() merges onto dependent objects when ManageOwnerRefs is set
// and the Session has an owner CR in the same namespace (§6).
func OwnerReference(ownerAPIVersion, ownerKind, ownerName, ownerUID string) metav1.OwnerReference {
	return metav1.OwnerReference{
		APIVersion:         ownerAPIVersion,
		Kind:               ownerKind,
		Name:               ownerName,
		UID:                apitypes.UID(ownerUID),
		BlockOwnerDeletion: boolPtr(true),
		Controller:         boolPtr(false),
	}
}

func boolPtr(b bool) *bool { return &b }
