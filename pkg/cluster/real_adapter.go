/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package cluster

import (
	"context"
	"reflect"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	apitypes "k8s.io/apimachinery/pkg/types"
	clientgoretry "k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sap/component-operator-runtime/pkg/types"
)

// RealAdapterOptions are creation options for NewRealAdapter.
type RealAdapterOptions struct {
	// Retry budget for apply conflicts. If unspecified, 5 is assumed.
	DeployRetries int
	// Base interval for the linear backoff applied between conflict retries. If unspecified, 1s.
	RetryBackoffBase time.Duration
	// Fall back to PUT (replace) when a server-side apply request is rejected as unprocessable. Default false.
	UnprocessablePutFallback bool
	// Owner CR identity used to stamp owner references when ManageOwnerRefs is requested. May be
	// the zero value if this Adapter is not bound to an owning CR (e.g. cluster-scoped tooling).
	Owner OwnerIdentity
	// FieldManager identifies this Adapter's entries in a server-side-applied object's
	// managedFields. If unspecified, "component-operator-runtime" is used.
	FieldManager string
	// LegacyFieldManagerPrefixes, if set, causes every apply to fold any managedFields entry whose
	// manager starts with one of these prefixes into FieldManager's own entry, so a field manager
	// rename does not strand previously-owned fields under the old name.
	LegacyFieldManagerPrefixes []string
}

// OwnerIdentity is the Session's owning CR identity, used for owner-reference stamping (§4.1 step 2).
type OwnerIdentity struct {
	APIVersion string
	Kind       string
	Namespace  string
	Name       string
	UID        string
}

func (o OwnerIdentity) isZero() bool {
	return o == OwnerIdentity{}
}

// realAdapter is the production Adapter, backed by a controller-runtime client.WithWatch.
type realAdapter struct {
	client  client.WithWatch
	options RealAdapterOptions
	group   singleflight.Group
}

// NewRealAdapter wraps clnt as a Cluster Adapter per §4.1. clnt must support Watch (i.e. be
// constructed via client.NewWithWatch), since Watch() opens genuine API server watch streams.
func NewRealAdapter(clnt client.WithWatch, options RealAdapterOptions) Adapter {
	if options.DeployRetries <= 0 {
		options.DeployRetries = 5
	}
	if options.RetryBackoffBase <= 0 {
		options.RetryBackoffBase = time.Second
	}
	if options.FieldManager == "" {
		options.FieldManager = "component-operator-runtime"
	}
	return &realAdapter{client: clnt, options: options}
}

func (a *realAdapter) Get(ctx context.Context, gvk GroupVersionKind, namespace, name string) (bool, *unstructured.Unstructured, error) {
	object := &unstructured.Unstructured{}
	object.SetAPIVersion(gvk.APIVersion())
	object.SetKind(gvk.Kind)
	if err := a.client.Get(ctx, apitypes.NamespacedName{Namespace: namespace, Name: name}, object); err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil, nil
		}
		return false, nil, errors.Wrapf(err, "error getting %s %s/%s", gvk.Kind, namespace, name)
	}
	return true, object, nil
}

func (a *realAdapter) List(ctx context.Context, gvk GroupVersionKind, namespace string, opts ListOptions) ([]*unstructured.Unstructured, error) {
	list := &unstructured.UnstructuredList{}
	list.SetAPIVersion(gvk.APIVersion())
	list.SetKind(gvk.Kind + "List")
	listOpts, err := toClientListOptions(namespace, opts.LabelSelector)
	if err != nil {
		return nil, err
	}
	if err := a.client.List(ctx, list, listOpts...); err != nil {
		return nil, errors.Wrapf(err, "error listing %s in %s", gvk.Kind, namespace)
	}
	items, err := filterByFieldSelector(list.Items, opts.FieldSelector)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (a *realAdapter) Watch(ctx context.Context, gvk GroupVersionKind, namespace string, opts WatchOptions) (WatchStream, error) {
	return newRestartableWatchStream(ctx, a.client, gvk, namespace, opts, 5, time.Second), nil
}

func (a *realAdapter) Apply(ctx context.Context, manifests []*unstructured.Unstructured, opts ApplyOptions) (bool, bool, error) {
	logger := log.FromContext(ctx)
	anyChanged := false
	for _, manifest := range manifests {
		object := manifest.DeepCopy()
		cleanLastApplied(object)
		if opts.ManageOwnerRefs && !a.options.Owner.isZero() && a.options.Owner.Namespace == object.GetNamespace() {
			mergeOwnerReference(object, a.options.Owner)
		}

		changed, err := a.applyOne(ctx, object, opts.Method)
		if err != nil {
			return false, anyChanged, err
		}
		if changed {
			anyChanged = true
		}
		logger.V(2).Info("applied object", "kind", object.GetKind(), "namespace", object.GetNamespace(), "name", object.GetName(), "changed", changed)
	}
	return true, anyChanged, nil
}

func (a *realAdapter) applyOne(ctx context.Context, object *unstructured.Unstructured, method ApplyMethod) (changed bool, err error) {
	backoff := a.options.RetryBackoffBase
	for attempt := 0; attempt <= a.options.DeployRetries; attempt++ {
		changed, err = a.tryApplyOnce(ctx, object, method)
		if err == nil {
			return changed, nil
		}
		if !apierrors.IsConflict(err) {
			return false, err
		}
		if attempt == a.options.DeployRetries {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(backoff):
		}
		backoff += a.options.RetryBackoffBase
		existing := &unstructured.Unstructured{}
		existing.SetAPIVersion(object.GetAPIVersion())
		existing.SetKind(object.GetKind())
		if getErr := a.client.Get(ctx, apitypes.NamespacedName{Namespace: object.GetNamespace(), Name: object.GetName()}, existing); getErr == nil {
			object.SetResourceVersion(existing.GetResourceVersion())
		}
	}
	return false, errors.Wrap(err, "error applying object after exhausting conflict retries")
}

func (a *realAdapter) tryApplyOnce(ctx context.Context, object *unstructured.Unstructured, method ApplyMethod) (bool, error) {
	existing := &unstructured.Unstructured{}
	existing.SetAPIVersion(object.GetAPIVersion())
	existing.SetKind(object.GetKind())
	err := a.client.Get(ctx, apitypes.NamespacedName{Namespace: object.GetNamespace(), Name: object.GetName()}, existing)
	if err != nil && !apierrors.IsNotFound(err) {
		return false, errors.Wrap(err, "error reading live object")
	}
	notFound := apierrors.IsNotFound(err)

	if notFound {
		if err := a.client.Create(ctx, object.DeepCopy()); err != nil {
			return false, errors.Wrap(err, "error creating object")
		}
		return true, nil
	}

	if !semanticallyDiffers(existing, object) {
		return false, nil
	}

	switch method {
	case ApplyMethodReplace:
		object.SetResourceVersion(existing.GetResourceVersion())
		if err := a.client.Update(ctx, object); err != nil {
			return false, errors.Wrap(err, "error replacing object")
		}
		return true, nil
	case ApplyMethodUpdate:
		merged := mergeFieldsPreservingForeign(existing, object)
		if err := a.client.Update(ctx, merged); err != nil {
			return false, errors.Wrap(err, "error updating object")
		}
		return true, nil
	default:
		applied := object.DeepCopy()
		if err := a.client.Patch(ctx, applied, client.Apply, client.ForceOwnership, client.FieldOwner(a.options.FieldManager)); err != nil {
			if (apierrors.IsUnsupportedMediaType(err) || apierrors.IsInvalid(err)) && a.options.UnprocessablePutFallback {
				object.SetResourceVersion(existing.GetResourceVersion())
				if err := a.client.Update(ctx, object); err != nil {
					return false, errors.Wrap(err, "error replacing object (server-side-apply fallback)")
				}
				return true, nil
			}
			return false, errors.Wrap(err, "error server-side-applying object")
		}
		if err := a.migrateFieldManager(ctx, applied); err != nil {
			return false, errors.Wrap(err, "error migrating legacy field managers")
		}
		return true, nil
	}
}

// migrateFieldManager folds any managedFields entry left by a predecessor field manager name into
// a.options.FieldManager's own entry, so a renamed operator keeps ownership of fields it already
// applied under its old name instead of the API server treating them as foreign on the next apply.
func (a *realAdapter) migrateFieldManager(ctx context.Context, applied *unstructured.Unstructured) error {
	if len(a.options.LegacyFieldManagerPrefixes) == 0 {
		return nil
	}
	merged, changed, err := migrateFieldManager(applied.GetManagedFields(), a.options.LegacyFieldManagerPrefixes, a.options.FieldManager)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	patch := applied.DeepCopy()
	patch.SetManagedFields(merged)
	return a.client.Patch(ctx, patch, client.MergeFrom(applied))
}

func (a *realAdapter) Disable(ctx context.Context, manifests []*unstructured.Unstructured) (bool, bool, error) {
	anyChanged := false
	for _, manifest := range manifests {
		err := a.client.Delete(ctx, manifest.DeepCopy())
		switch {
		case err == nil:
			anyChanged = true
		case apierrors.IsNotFound(err):
			// not-found is a success with changed=false
		case apierrors.IsForbidden(err):
			return false, anyChanged, errors.Wrapf(err, "forbidden deleting %s/%s", manifest.GetKind(), manifest.GetName())
		default:
			return false, anyChanged, errors.Wrapf(err, "error deleting %s/%s", manifest.GetKind(), manifest.GetName())
		}
	}
	return true, anyChanged, nil
}

// SetStatus is serialized per adapter instance via singleflight, so concurrent status writers for
// the same identity collapse onto a single in-flight get-modify-write, avoiding redundant conflicts (§4.1).
func (a *realAdapter) SetStatus(ctx context.Context, gvk GroupVersionKind, namespace, name string, status map[string]any) (bool, bool, error) {
	key := gvk.APIVersion() + "/" + gvk.Kind + "/" + namespace + "/" + name
	result, err, _ := a.group.Do(key, func() (any, error) {
		changed := false
		retryErr := clientgoretry.RetryOnConflict(clientgoretry.DefaultBackoff, func() error {
			object := &unstructured.Unstructured{}
			object.SetAPIVersion(gvk.APIVersion())
			object.SetKind(gvk.Kind)
			if err := a.client.Get(ctx, apitypes.NamespacedName{Namespace: namespace, Name: name}, object); err != nil {
				return err
			}
			if reflect.DeepEqual(object.Object["status"], status) {
				changed = false
				return nil
			}
			object.Object["status"] = status
			changed = true
			return a.client.Status().Update(ctx, object)
		})
		return changed, retryErr
	})
	if err != nil {
		return false, false, errors.Wrap(err, "error updating status")
	}
	return true, result.(bool), nil
}

func (a *realAdapter) AddFinalizer(ctx context.Context, gvk GroupVersionKind, namespace, name, finalizer string) error {
	return clientgoretry.RetryOnConflict(clientgoretry.DefaultBackoff, func() error {
		object := &unstructured.Unstructured{}
		object.SetAPIVersion(gvk.APIVersion())
		object.SetKind(gvk.Kind)
		if err := a.client.Get(ctx, apitypes.NamespacedName{Namespace: namespace, Name: name}, object); err != nil {
			if apierrors.IsNotFound(err) {
				return nil
			}
			return err
		}
		finalizers := object.GetFinalizers()
		for _, f := range finalizers {
			if f == finalizer {
				return nil
			}
		}
		object.SetFinalizers(append(finalizers, finalizer))
		return a.client.Update(ctx, object)
	})
}

func (a *realAdapter) RemoveFinalizer(ctx context.Context, gvk GroupVersionKind, namespace, name, finalizer string) error {
	return clientgoretry.RetryOnConflict(clientgoretry.DefaultBackoff, func() error {
		object := &unstructured.Unstructured{}
		object.SetAPIVersion(gvk.APIVersion())
		object.SetKind(gvk.Kind)
		if err := a.client.Get(ctx, apitypes.NamespacedName{Namespace: namespace, Name: name}, object); err != nil {
			if apierrors.IsNotFound(err) {
				return nil
			}
			return err
		}
		finalizers := object.GetFinalizers()
		filtered := finalizers[:0]
		found := false
		for _, f := range finalizers {
			if f == finalizer {
				found = true
				continue
			}
			filtered = append(filtered, f)
		}
		if !found {
			return nil
		}
		object.SetFinalizers(filtered)
		return a.client.Update(ctx, object)
	})
}

func cleanLastApplied(object *unstructured.Unstructured) {
	annotations := object.GetAnnotations()
	if annotations == nil {
		return
	}
	delete(annotations, "kubectl.kubernetes.io/last-applied-configuration")
	object.SetAnnotations(annotations)
}

func mergeOwnerReference(object *unstructured.Unstructured, owner OwnerIdentity) {
	refs := object.GetOwnerReferences()
	for _, r := range refs {
		if r.UID == apitypes.UID(owner.UID) {
			return
		}
	}
	refs = append(refs, OwnerReference(owner.APIVersion, owner.Kind, owner.Name, owner.UID))
	object.SetOwnerReferences(refs)
}

// semanticallyDiffers reports whether live and candidate differ, ignoring the fields §4.1 step 5 excludes.
func semanticallyDiffers(live, candidate *unstructured.Unstructured) bool {
	return !reflect.DeepEqual(cleanForDiff(live), cleanForDiff(candidate))
}

func cleanForDiff(object *unstructured.Unstructured) map[string]any {
	clone := object.DeepCopy().Object
	if meta, ok := clone["metadata"].(map[string]any); ok {
		delete(meta, "resourceVersion")
		delete(meta, "generation")
		delete(meta, "managedFields")
		delete(meta, "uid")
		delete(meta, "creationTimestamp")
	}
	delete(clone, "status")
	return clone
}

// mergeFieldsPreservingForeign implements ApplyMethodUpdate's "overwrite managed top-level keys,
// preserve everything else" merge: spec/metadata keys present on desired overwrite; keys present
// only on the live object are kept untouched.
func mergeFieldsPreservingForeign(existing, desired *unstructured.Unstructured) *unstructured.Unstructured {
	merged := existing.DeepCopy()
	for key, value := range desired.Object {
		if key == "metadata" || key == "status" {
			continue
		}
		merged.Object[key] = value
	}
	merged.SetLabels(desired.GetLabels())
	merged.SetAnnotations(desired.GetAnnotations())
	merged.SetResourceVersion(existing.GetResourceVersion())
	return merged
}

func toClientListOptions(namespace, labelSelector string) ([]client.ListOption, error) {
	opts := []client.ListOption{client.InNamespace(namespace)}
	if labelSelector == "" {
		return opts, nil
	}
	selector, err := labels.Parse(labelSelector)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing label selector")
	}
	opts = append(opts, client.MatchingLabelsSelector{Selector: selector})
	return opts, nil
}

// filterByFieldSelector applies the §6 selector grammar to a dotted-path projection of each item,
// since apimachinery's label selector syntax only covers the label-selector half of that grammar.
func filterByFieldSelector(candidates []unstructured.Unstructured, fieldSelector string) ([]*unstructured.Unstructured, error) {
	items := make([]*unstructured.Unstructured, 0, len(candidates))
	if fieldSelector == "" {
		for i := range candidates {
			items = append(items, &candidates[i])
		}
		return items, nil
	}
	selector, err := types.ParseSelector(fieldSelector)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing field selector")
	}
	paths := selector.Keys()
	for i := range candidates {
		item := &candidates[i]
		projected := types.ProjectDottedPaths(item.Object, paths)
		if selector.Matches(projected) {
			items = append(items, item)
		}
	}
	return items, nil
}
