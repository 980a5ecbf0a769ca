/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package leaderelection

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/sap/component-operator-runtime/pkg/cluster"
)

var (
	configMapGVK = cluster.GroupVersionKind{Version: "v1", Kind: "ConfigMap"}
	podGVK       = cluster.GroupVersionKind{Version: "v1", Kind: "Pod"}
)

// LifeElector implements the old "leader-for-life" operator-sdk lock type: a ConfigMap in the
// operator namespace, owned by exactly one ownerReference pointing at this instance's own Pod, so
// that the lock is released automatically (by garbage collection) when the Pod is deleted.
// Grounded on oper8's LeaderForLifeManager.
type LifeElector struct {
	adapter cluster.Adapter
	cfg     Config
	podUID  string
	*pollingElector
}

// NewLifeElector constructs a LifeElector. The owning Pod's uid is resolved lazily on first
// Acquire, mirroring the Python constructor's eager pod fetch but tolerating the Pod not existing
// yet (e.g. under a dry-run adapter in tests).
func NewLifeElector(cfg Config, adapter cluster.Adapter) *LifeElector {
	e := &LifeElector{adapter: adapter, cfg: cfg}
	e.pollingElector = newPollingElector(cfg.PollInterval, e.renewOrAcquire)
	return e
}

func (e *LifeElector) renewOrAcquire(ctx context.Context) bool {
	if e.podUID == "" {
		found, pod, err := e.adapter.Get(ctx, podGVK, e.cfg.Namespace, e.cfg.PodName)
		if err != nil || !found {
			return false
		}
		e.podUID = string(pod.GetUID())
	}

	found, configMap, err := e.adapter.Get(ctx, configMapGVK, e.cfg.Namespace, e.cfg.LockName)
	if err != nil {
		return false
	}

	if found {
		owners := configMap.GetOwnerReferences()
		if len(owners) != 1 {
			return false
		}
		return string(owners[0].UID) == e.podUID
	}

	manifest := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": configMapGVK.APIVersion(),
		"kind":       configMapGVK.Kind,
		"metadata": map[string]any{
			"name":      e.cfg.LockName,
			"namespace": e.cfg.Namespace,
		},
	}}
	manifest.SetOwnerReferences([]metav1.OwnerReference{
		cluster.OwnerReference(podGVK.APIVersion(), podGVK.Kind, e.cfg.PodName, e.podUID),
	})

	success, _, err := e.adapter.Apply(ctx, []*unstructured.Unstructured{manifest}, cluster.ApplyOptions{ManageOwnerRefs: false})
	return err == nil && success
}

func (e *LifeElector) Acquire(ctx context.Context, force bool) bool { return e.acquire(ctx, force) }

func (e *LifeElector) AcquireResource(ctx context.Context, _ *unstructured.Unstructured) bool {
	return e.acquire(ctx, false)
}

func (e *LifeElector) Release(ctx context.Context) { e.release() }

func (e *LifeElector) ReleaseResource(context.Context, *unstructured.Unstructured) {}

func (e *LifeElector) IsLeader(*unstructured.Unstructured) bool { return e.isLeader() }
