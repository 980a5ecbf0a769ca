/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package cluster

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	apitypes "k8s.io/apimachinery/pkg/types"

	"github.com/sap/component-operator-runtime/pkg/types"
)

// dryRunKey is the (namespace, kind, apiVersion, name) coordinate the in-memory adapter indexes
// cluster content by, mirroring the nested dict structure oper8's dry-run deploy manager keeps.
type dryRunKey struct {
	namespace  string
	kind       string
	apiVersion string
	name       string
}

type watchCallback func(object *unstructured.Unstructured)

type watchRegistration struct {
	apiVersion string
	kind       string
	namespace  string
	name       string
	callback   watchCallback
}

// DryRunAdapter is an in-memory Adapter substitute for tests and for recursive subsystem
// reconciliation (§11 item 4): a parent Session drives a child controller against a DryRunAdapter
// so the rollout can be verified without touching a real cluster. It supports the same watch and
// finalizer-callback contract as the real adapter, fed synchronously from Apply/Disable.
type DryRunAdapter struct {
	mu      sync.Mutex
	content map[dryRunKey]*unstructured.Unstructured
	owner   OwnerIdentity

	watches    []watchRegistration
	finalizers []watchRegistration

	generateResourceVersion bool
}

// NewDryRunAdapter constructs an empty in-memory Adapter, optionally seeded with initial objects.
func NewDryRunAdapter(owner OwnerIdentity, seed ...*unstructured.Unstructured) *DryRunAdapter {
	a := &DryRunAdapter{
		content:                 make(map[dryRunKey]*unstructured.Unstructured),
		owner:                   owner,
		generateResourceVersion: true,
	}
	for _, object := range seed {
		a.content[keyOf(object)] = object.DeepCopy()
	}
	return a
}

func keyOf(object *unstructured.Unstructured) dryRunKey {
	return dryRunKey{
		namespace:  object.GetNamespace(),
		kind:       object.GetKind(),
		apiVersion: object.GetAPIVersion(),
		name:       object.GetName(),
	}
}

func (a *DryRunAdapter) Get(_ context.Context, gvk GroupVersionKind, namespace, name string) (bool, *unstructured.Unstructured, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := dryRunKey{namespace: namespace, kind: gvk.Kind, apiVersion: gvk.APIVersion(), name: name}
	object, ok := a.content[key]
	if !ok {
		return false, nil, nil
	}
	return true, object.DeepCopy(), nil
}

func (a *DryRunAdapter) List(_ context.Context, gvk GroupVersionKind, namespace string, opts ListOptions) ([]*unstructured.Unstructured, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	labelSelector, err := types.ParseSelector(opts.LabelSelector)
	if err != nil {
		return nil, err
	}
	fieldSelector, err := types.ParseSelector(opts.FieldSelector)
	if err != nil {
		return nil, err
	}

	var matches []*unstructured.Unstructured
	for key, object := range a.content {
		if key.kind != gvk.Kind || key.apiVersion != gvk.APIVersion() {
			continue
		}
		if namespace != "" && key.namespace != namespace {
			continue
		}
		if !labelSelector.Matches(object.GetLabels()) {
			continue
		}
		if opts.FieldSelector != "" {
			projected := types.ProjectDottedPaths(object.Object, fieldSelector.Keys())
			if !fieldSelector.Matches(projected) {
				continue
			}
		}
		matches = append(matches, object.DeepCopy())
	}
	return matches, nil
}

func (a *DryRunAdapter) Watch(ctx context.Context, gvk GroupVersionKind, namespace string, opts WatchOptions) (WatchStream, error) {
	stream := newDryRunWatchStream(ctx)

	a.mu.Lock()
	initial, _ := a.listLocked(gvk, namespace, opts.ListOptions)
	a.watches = append(a.watches, watchRegistration{
		apiVersion: gvk.APIVersion(), kind: gvk.Kind, namespace: namespace, name: opts.Name,
		callback: stream.deliverModified,
	})
	a.finalizers = append(a.finalizers, watchRegistration{
		apiVersion: gvk.APIVersion(), kind: gvk.Kind, namespace: namespace, name: opts.Name,
		callback: stream.deliverDeleted,
	})
	a.mu.Unlock()

	for _, object := range initial {
		stream.deliverAdded(object)
	}
	return stream, nil
}

func (a *DryRunAdapter) listLocked(gvk GroupVersionKind, namespace string, opts ListOptions) ([]*unstructured.Unstructured, error) {
	var matches []*unstructured.Unstructured
	for key, object := range a.content {
		if key.kind != gvk.Kind || key.apiVersion != gvk.APIVersion() {
			continue
		}
		if namespace != "" && key.namespace != namespace {
			continue
		}
		matches = append(matches, object.DeepCopy())
	}
	_ = opts
	return matches, nil
}

func (a *DryRunAdapter) Apply(_ context.Context, manifests []*unstructured.Unstructured, opts ApplyOptions) (bool, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	anyChanged := false
	for _, manifest := range manifests {
		object := manifest.DeepCopy()
		if opts.ManageOwnerRefs && !a.owner.isZero() {
			mergeOwnerReference(object, a.owner)
		}

		key := keyOf(object)
		existing, existed := a.content[key]

		changed := !existed || !reflect.DeepEqual(cleanForDiff(existing), cleanForDiff(object))

		if object.Object["metadata"] == nil {
			object.Object["metadata"] = map[string]any{}
		}
		if existed {
			object.SetCreationTimestamp(existing.GetCreationTimestamp())
			object.SetUID(existing.GetUID())
		} else {
			object.SetCreationTimestamp(metav1.Now())
			object.SetUID(apitypes.UID(randomUID()))
		}
		if a.generateResourceVersion {
			object.SetResourceVersion(fmt.Sprintf("%05d", rand.Intn(100000)))
		}

		switch opts.Method {
		case ApplyMethodUpdate:
			if existed {
				object = mergeFieldsPreservingForeign(existing, object)
			}
		default:
			// DEFAULT/REPLACE: wholesale replace, matching oper8's dry-run behavior for those methods.
		}

		a.content[key] = object
		if changed {
			anyChanged = true
		}
		a.notifyWatchesLocked(object, false)
		a.deleteIfTombstonedLocked(key)
	}
	return true, anyChanged, nil
}

func (a *DryRunAdapter) Disable(_ context.Context, manifests []*unstructured.Unstructured) (bool, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	anyChanged := false
	for _, manifest := range manifests {
		key := dryRunKey{
			namespace:  manifest.GetNamespace(),
			kind:       manifest.GetKind(),
			apiVersion: manifest.GetAPIVersion(),
			name:       manifest.GetName(),
		}
		object, ok := a.content[key]
		if !ok {
			continue
		}
		anyChanged = true

		deletionTime := metav1.Now()
		object.SetDeletionTimestamp(&deletionTime)
		a.notifyWatchesLocked(object, true)
		a.deleteIfTombstonedLocked(key)
	}
	return true, anyChanged, nil
}

// deleteIfTombstonedLocked drops the entry once it carries a deletionTimestamp and no finalizers
// remain, mirroring oper8's _delete_key cleanup after all registered finalizer callbacks ran.
func (a *DryRunAdapter) deleteIfTombstonedLocked(key dryRunKey) {
	object, ok := a.content[key]
	if !ok {
		return
	}
	if object.GetDeletionTimestamp() != nil && len(object.GetFinalizers()) == 0 {
		delete(a.content, key)
	}
}

func (a *DryRunAdapter) notifyWatchesLocked(object *unstructured.Unstructured, deleted bool) {
	registrations := a.watches
	if deleted {
		registrations = a.finalizers
	}
	for _, reg := range registrations {
		if reg.apiVersion != object.GetAPIVersion() || reg.kind != object.GetKind() {
			continue
		}
		if reg.namespace != "" && reg.namespace != object.GetNamespace() {
			continue
		}
		if reg.name != "" && reg.name != object.GetName() {
			continue
		}
		reg.callback(object.DeepCopy())
	}
}

func (a *DryRunAdapter) SetStatus(_ context.Context, gvk GroupVersionKind, namespace, name string, status map[string]any) (bool, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := dryRunKey{namespace: namespace, kind: gvk.Kind, apiVersion: gvk.APIVersion(), name: name}
	object, ok := a.content[key]
	if !ok {
		return true, false, nil
	}
	changed := !reflect.DeepEqual(object.Object["status"], status)
	object.Object["status"] = status
	a.notifyWatchesLocked(object, false)
	return true, changed, nil
}

func (a *DryRunAdapter) AddFinalizer(_ context.Context, gvk GroupVersionKind, namespace, name, finalizer string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := dryRunKey{namespace: namespace, kind: gvk.Kind, apiVersion: gvk.APIVersion(), name: name}
	object, ok := a.content[key]
	if !ok {
		return nil
	}
	for _, f := range object.GetFinalizers() {
		if f == finalizer {
			return nil
		}
	}
	object.SetFinalizers(append(object.GetFinalizers(), finalizer))
	return nil
}

func (a *DryRunAdapter) RemoveFinalizer(_ context.Context, gvk GroupVersionKind, namespace, name, finalizer string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := dryRunKey{namespace: namespace, kind: gvk.Kind, apiVersion: gvk.APIVersion(), name: name}
	object, ok := a.content[key]
	if !ok {
		return nil
	}
	filtered := object.GetFinalizers()[:0]
	for _, f := range object.GetFinalizers() {
		if f != finalizer {
			filtered = append(filtered, f)
		}
	}
	object.SetFinalizers(filtered)
	a.deleteIfTombstonedLocked(key)
	return nil
}

func randomUID() string {
	return fmt.Sprintf("dry-run-%d", rand.Int63())
}
