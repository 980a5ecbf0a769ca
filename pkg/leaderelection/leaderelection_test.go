/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package leaderelection

import (
	"context"
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	apitypes "k8s.io/apimachinery/pkg/types"

	"github.com/sap/component-operator-runtime/pkg/cluster"
)

func TestDisabledAlwaysLeader(t *testing.T) {
	e := NewDisabled()
	if !e.Acquire(context.Background(), false) {
		t.Errorf("expected Disabled.Acquire to always succeed")
	}
	if !e.IsLeader(nil) {
		t.Errorf("expected Disabled.IsLeader to always be true")
	}
}

func newPod(namespace, name, uid string) *unstructured.Unstructured {
	pod := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "v1",
		"kind":       "Pod",
		"metadata": map[string]any{
			"name":      name,
			"namespace": namespace,
		},
	}}
	pod.SetUID(apitypes.UID(uid))
	return pod
}

func TestLeaseElectorTakesAndRenewsLock(t *testing.T) {
	adapter := cluster.NewDryRunAdapter(cluster.OwnerIdentity{})
	cfg := Config{Identity: Identity{PodName: "pod-a", Namespace: "default", LockName: "my-lock"}, PollInterval: time.Hour, LeaseDuration: 15 * time.Second}
	e := NewLeaseElector(cfg, adapter)

	if !e.Acquire(context.Background(), false) {
		t.Fatalf("expected first acquire to take the lease")
	}
	if !e.IsLeader(nil) {
		t.Errorf("expected to be leader after acquiring")
	}

	found, lease, err := adapter.Get(context.Background(), leaseGVK, "default", "my-lock")
	if err != nil || !found {
		t.Fatalf("expected lease object to exist, err=%v found=%v", err, found)
	}
	spec, _, _ := unstructured.NestedMap(lease.Object, "spec")
	if spec["holderIdentity"] != "pod-a" {
		t.Errorf("unexpected holder: %v", spec["holderIdentity"])
	}
}

func TestLeaseElectorRefusesWhileOtherHolderValid(t *testing.T) {
	now := time.Now().UTC()
	existing := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "coordination.k8s.io/v1",
		"kind":       "Lease",
		"metadata":   map[string]any{"name": "my-lock", "namespace": "default"},
		"spec": map[string]any{
			"holderIdentity":       "pod-b",
			"acquireTime":          now.Format(time.RFC3339Nano),
			"renewTime":            now.Format(time.RFC3339Nano),
			"leaseDurationSeconds": int64(300),
			"leaseTransitions":     int64(1),
		},
	}}
	adapter := cluster.NewDryRunAdapter(cluster.OwnerIdentity{}, existing)
	cfg := Config{Identity: Identity{PodName: "pod-a", Namespace: "default", LockName: "my-lock"}, PollInterval: time.Hour, LeaseDuration: 15 * time.Second}
	e := NewLeaseElector(cfg, adapter)

	if e.Acquire(context.Background(), false) {
		t.Errorf("expected acquire to fail while another holder's lease is still valid")
	}
}

func TestLeaseElectorTakesOverExpiredLock(t *testing.T) {
	expired := time.Now().UTC().Add(-time.Hour)
	existing := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "coordination.k8s.io/v1",
		"kind":       "Lease",
		"metadata":   map[string]any{"name": "my-lock", "namespace": "default"},
		"spec": map[string]any{
			"holderIdentity":       "pod-b",
			"acquireTime":          expired.Format(time.RFC3339Nano),
			"renewTime":            expired.Format(time.RFC3339Nano),
			"leaseDurationSeconds": int64(15),
			"leaseTransitions":     int64(3),
		},
	}}
	adapter := cluster.NewDryRunAdapter(cluster.OwnerIdentity{}, existing)
	cfg := Config{Identity: Identity{PodName: "pod-a", Namespace: "default", LockName: "my-lock"}, PollInterval: time.Hour, LeaseDuration: 15 * time.Second}
	e := NewLeaseElector(cfg, adapter)

	if !e.Acquire(context.Background(), false) {
		t.Fatalf("expected takeover of an expired lease to succeed")
	}
	_, lease, _ := adapter.Get(context.Background(), leaseGVK, "default", "my-lock")
	spec, _, _ := unstructured.NestedMap(lease.Object, "spec")
	if transitionsOf(spec["leaseTransitions"]) != 4 {
		t.Errorf("expected leaseTransitions to increment on takeover, got %v", spec["leaseTransitions"])
	}
}

func TestLifeElectorCreatesConfigMapOwnedByPod(t *testing.T) {
	pod := newPod("default", "operator-0", "pod-uid-1")
	adapter := cluster.NewDryRunAdapter(cluster.OwnerIdentity{}, pod)
	cfg := Config{Identity: Identity{PodName: "operator-0", Namespace: "default", LockName: "my-lock"}, PollInterval: time.Hour}
	e := NewLifeElector(cfg, adapter)

	if !e.Acquire(context.Background(), false) {
		t.Fatalf("expected first acquire to create and own the configmap")
	}
	if !e.IsLeader(nil) {
		t.Errorf("expected to be leader after acquiring")
	}

	// A second acquire should still report leadership since the single owner ref still matches.
	if !e.Acquire(context.Background(), false) {
		t.Errorf("expected renewal to keep leadership")
	}
}

func TestLifeElectorRefusesWhenAnotherPodOwns(t *testing.T) {
	owner := newPod("default", "operator-0", "pod-uid-1")
	lock := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]any{
			"name":      "my-lock",
			"namespace": "default",
			"ownerReferences": []any{
				map[string]any{"apiVersion": "v1", "kind": "Pod", "name": "operator-0", "uid": "pod-uid-1"},
			},
		},
	}}
	self := newPod("default", "operator-1", "pod-uid-2")
	adapter := cluster.NewDryRunAdapter(cluster.OwnerIdentity{}, owner, self, lock)
	cfg := Config{Identity: Identity{PodName: "operator-1", Namespace: "default", LockName: "my-lock"}, PollInterval: time.Hour}
	e := NewLifeElector(cfg, adapter)

	if e.Acquire(context.Background(), false) {
		t.Errorf("expected acquire to fail since another pod's uid owns the lock")
	}
}

func TestAnnotationElectorPerResourceLeadership(t *testing.T) {
	cfg := Config{Identity: Identity{PodName: "pod-a"}, LeaseDuration: time.Minute}
	e := NewAnnotationElector(cfg)

	resource := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "v1", "kind": "ConfigMap",
		"metadata": map[string]any{"name": "target"},
	}}

	if !e.AcquireResource(context.Background(), resource) {
		t.Fatalf("expected to take ownership of an unclaimed resource")
	}
	if !e.IsLeader(resource) {
		t.Errorf("expected to be leader of the resource after acquiring")
	}

	other := Config{Identity: Identity{PodName: "pod-b"}, LeaseDuration: time.Minute}
	contender := NewAnnotationElector(other)
	if contender.AcquireResource(context.Background(), resource) {
		t.Errorf("expected a different pod to be refused while the lease is valid")
	}

	e.ReleaseResource(context.Background(), resource)
	if e.IsLeader(resource) {
		t.Errorf("expected leadership to be cleared after release")
	}
	if !contender.AcquireResource(context.Background(), resource) {
		t.Errorf("expected the contender to acquire after release")
	}
}

func TestAnnotationElectorTakesOverExpiredLease(t *testing.T) {
	stale := time.Now().Add(-time.Hour).Format(time.RFC3339Nano)
	resource := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "v1", "kind": "ConfigMap",
		"metadata": map[string]any{
			"name": "target",
			"annotations": map[string]any{
				LeaseNameAnnotation: "pod-b",
				LeaseTimeAnnotation: stale,
			},
		},
	}}
	cfg := Config{Identity: Identity{PodName: "pod-a"}, LeaseDuration: time.Minute}
	e := NewAnnotationElector(cfg)

	if !e.AcquireResource(context.Background(), resource) {
		t.Errorf("expected takeover of an expired lease to succeed")
	}
}
