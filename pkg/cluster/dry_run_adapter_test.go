/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package cluster

import (
	"context"
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

var configMapGVK = GroupVersionKind{Version: "v1", Kind: "ConfigMap"}

func configMapManifest(namespace, name string, data map[string]any) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]any{
			"name":      name,
			"namespace": namespace,
		},
		"data": data,
	}}
}

func TestDryRunApplyCreatesObject(t *testing.T) {
	adapter := NewDryRunAdapter(OwnerIdentity{})
	manifest := configMapManifest("ns", "cfg", map[string]any{"k": "v1"})

	success, changed, err := adapter.Apply(context.Background(), []*unstructured.Unstructured{manifest}, ApplyOptions{})
	if err != nil || !success {
		t.Fatalf("Apply: success=%v err=%v", success, err)
	}
	if !changed {
		t.Errorf("expected changed=true on first Apply of a new object")
	}

	found, object, err := adapter.Get(context.Background(), configMapGVK, "ns", "cfg")
	if err != nil || !found {
		t.Fatalf("Get after Apply: found=%v err=%v", found, err)
	}
	if object.GetUID() == "" {
		t.Errorf("expected Apply to assign a UID to a newly created object")
	}
	if object.GetResourceVersion() == "" {
		t.Errorf("expected Apply to assign a resourceVersion to a newly created object")
	}
}

// TestDryRunApplyIsIdempotent exercises the "Idempotent apply" property (§8): applying the exact
// same manifest twice in a row reports changed=true only the first time.
func TestDryRunApplyIsIdempotent(t *testing.T) {
	adapter := NewDryRunAdapter(OwnerIdentity{})
	manifest := configMapManifest("ns", "cfg", map[string]any{"k": "v1"})

	_, firstChanged, err := adapter.Apply(context.Background(), []*unstructured.Unstructured{manifest.DeepCopy()}, ApplyOptions{})
	if err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	if !firstChanged {
		t.Fatalf("expected the first Apply of a new object to report changed=true")
	}

	_, secondChanged, err := adapter.Apply(context.Background(), []*unstructured.Unstructured{manifest.DeepCopy()}, ApplyOptions{})
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if secondChanged {
		t.Errorf("expected re-applying an identical manifest to report changed=false")
	}

	_, thirdChanged, err := adapter.Apply(context.Background(), []*unstructured.Unstructured{manifest.DeepCopy()}, ApplyOptions{})
	if err != nil {
		t.Fatalf("third Apply: %v", err)
	}
	if thirdChanged {
		t.Errorf("expected a third identical Apply to still report changed=false")
	}
}

func TestDryRunApplyReportsChangedOnDataMutation(t *testing.T) {
	adapter := NewDryRunAdapter(OwnerIdentity{})
	first := configMapManifest("ns", "cfg", map[string]any{"k": "v1"})
	if _, _, err := adapter.Apply(context.Background(), []*unstructured.Unstructured{first}, ApplyOptions{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	second := configMapManifest("ns", "cfg", map[string]any{"k": "v2"})
	_, changed, err := adapter.Apply(context.Background(), []*unstructured.Unstructured{second}, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !changed {
		t.Errorf("expected changed=true when the manifest's data actually differs")
	}
}

// TestDryRunApplyStampsOwnerReference exercises the "Ownership" property (§8): Apply with
// ManageOwnerRefs stamps the Session's owner identity onto every applied manifest exactly once.
func TestDryRunApplyStampsOwnerReference(t *testing.T) {
	owner := OwnerIdentity{APIVersion: "example.com/v1", Kind: "Widget", Namespace: "ns", Name: "parent", UID: "owner-uid"}
	adapter := NewDryRunAdapter(owner)
	manifest := configMapManifest("ns", "cfg", nil)

	if _, _, err := adapter.Apply(context.Background(), []*unstructured.Unstructured{manifest}, ApplyOptions{ManageOwnerRefs: true}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	_, object, err := adapter.Get(context.Background(), configMapGVK, "ns", "cfg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	refs := object.GetOwnerReferences()
	if len(refs) != 1 {
		t.Fatalf("expected exactly one owner reference, got %d: %v", len(refs), refs)
	}
	if string(refs[0].UID) != owner.UID || refs[0].Kind != owner.Kind || refs[0].Name != owner.Name {
		t.Errorf("owner reference = %+v, want to match owner identity %+v", refs[0], owner)
	}
}

func TestDryRunApplyDoesNotDuplicateOwnerReferenceOnRepeatedApply(t *testing.T) {
	owner := OwnerIdentity{APIVersion: "example.com/v1", Kind: "Widget", Namespace: "ns", Name: "parent", UID: "owner-uid"}
	adapter := NewDryRunAdapter(owner)

	for i := 0; i < 3; i++ {
		manifest := configMapManifest("ns", "cfg", map[string]any{"k": "v1"})
		if _, _, err := adapter.Apply(context.Background(), []*unstructured.Unstructured{manifest}, ApplyOptions{ManageOwnerRefs: true}); err != nil {
			t.Fatalf("Apply iteration %d: %v", i, err)
		}
	}

	_, object, err := adapter.Get(context.Background(), configMapGVK, "ns", "cfg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(object.GetOwnerReferences()) != 1 {
		t.Errorf("expected owner references to stay deduplicated across repeated Apply calls, got %v", object.GetOwnerReferences())
	}
}

func TestDryRunApplyWithoutManageOwnerRefsLeavesObjectUnowned(t *testing.T) {
	owner := OwnerIdentity{APIVersion: "example.com/v1", Kind: "Widget", Namespace: "ns", Name: "parent", UID: "owner-uid"}
	adapter := NewDryRunAdapter(owner)
	manifest := configMapManifest("ns", "cfg", nil)

	if _, _, err := adapter.Apply(context.Background(), []*unstructured.Unstructured{manifest}, ApplyOptions{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	_, object, err := adapter.Get(context.Background(), configMapGVK, "ns", "cfg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(object.GetOwnerReferences()) != 0 {
		t.Errorf("expected no owner reference when ManageOwnerRefs is false, got %v", object.GetOwnerReferences())
	}
}

func TestDryRunDisableRemovesObjectWithNoFinalizers(t *testing.T) {
	adapter := NewDryRunAdapter(OwnerIdentity{})
	manifest := configMapManifest("ns", "cfg", nil)
	if _, _, err := adapter.Apply(context.Background(), []*unstructured.Unstructured{manifest}, ApplyOptions{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	success, changed, err := adapter.Disable(context.Background(), []*unstructured.Unstructured{manifest})
	if err != nil || !success || !changed {
		t.Fatalf("Disable: success=%v changed=%v err=%v", success, changed, err)
	}
	found, _, err := adapter.Get(context.Background(), configMapGVK, "ns", "cfg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Errorf("expected object to be gone immediately once it has no finalizers")
	}
}

func TestDryRunDisableWaitsForFinalizersToClear(t *testing.T) {
	adapter := NewDryRunAdapter(OwnerIdentity{})
	manifest := configMapManifest("ns", "cfg", nil)
	if _, _, err := adapter.Apply(context.Background(), []*unstructured.Unstructured{manifest}, ApplyOptions{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := adapter.AddFinalizer(context.Background(), configMapGVK, "ns", "cfg", "example.com/cleanup"); err != nil {
		t.Fatalf("AddFinalizer: %v", err)
	}

	if _, _, err := adapter.Disable(context.Background(), []*unstructured.Unstructured{manifest}); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	found, object, err := adapter.Get(context.Background(), configMapGVK, "ns", "cfg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatalf("expected object to still be present while a finalizer is registered")
	}
	if object.GetDeletionTimestamp() == nil {
		t.Errorf("expected a deletionTimestamp to be set once Disable is called")
	}

	if err := adapter.RemoveFinalizer(context.Background(), configMapGVK, "ns", "cfg", "example.com/cleanup"); err != nil {
		t.Fatalf("RemoveFinalizer: %v", err)
	}
	found, _, err = adapter.Get(context.Background(), configMapGVK, "ns", "cfg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Errorf("expected object to be gone once its last finalizer is removed after deletion")
	}
}

func TestDryRunGetNotFound(t *testing.T) {
	adapter := NewDryRunAdapter(OwnerIdentity{})
	found, object, err := adapter.Get(context.Background(), configMapGVK, "ns", "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found || object != nil {
		t.Errorf("Get for a missing object = (%v, %v), want (false, nil)", found, object)
	}
}

func TestDryRunListFiltersByLabelSelector(t *testing.T) {
	adapter := NewDryRunAdapter(OwnerIdentity{})
	web := configMapManifest("ns", "web", nil)
	web.SetLabels(map[string]string{"tier": "web"})
	db := configMapManifest("ns", "db", nil)
	db.SetLabels(map[string]string{"tier": "db"})
	if _, _, err := adapter.Apply(context.Background(), []*unstructured.Unstructured{web, db}, ApplyOptions{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	matches, err := adapter.List(context.Background(), configMapGVK, "ns", ListOptions{LabelSelector: "tier=web"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(matches) != 1 || matches[0].GetName() != "web" {
		t.Errorf("List(tier=web) = %v, want exactly [web]", matches)
	}
}
