/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package leaderelection

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/sap/component-operator-runtime/pkg/cluster"
)

var leaseGVK = cluster.GroupVersionKind{Group: "coordination.k8s.io", Version: "v1", Kind: "Lease"}

// LeaseElector implements the "leader-with-lease" operator-sdk lock type: a single
// coordination.k8s.io/v1 Lease object per lock name, renewed on a poll interval, taken over only
// once the current holder's renewTime+leaseDuration has actually elapsed. Grounded on oper8's
// LeaderWithLeaseManager; the holderIdentity/acquireTime/leaseDurationSeconds/leaseTransitions/
// renewTime fields are the same ones `k8s.io/client-go/tools/leaderelection/resourcelock`'s
// LeaderElectionRecord encodes onto a LeaseSpec, named identically here so the on-wire Lease this
// strategy produces is indistinguishable from one written by that library.
type LeaseElector struct {
	adapter cluster.Adapter
	cfg     Config
	*pollingElector
}

// NewLeaseElector constructs a LeaseElector. The global lock is the only lock this strategy
// supports; AcquireResource/ReleaseResource defer to the global state.
func NewLeaseElector(cfg Config, adapter cluster.Adapter) *LeaseElector {
	e := &LeaseElector{adapter: adapter, cfg: cfg}
	e.pollingElector = newPollingElector(cfg.PollInterval, e.renewOrAcquire)
	return e
}

func (e *LeaseElector) renewOrAcquire(ctx context.Context) bool {
	now := time.Now().UTC()
	leaseDurationSeconds := int64(e.cfg.LeaseDuration.Round(time.Second).Seconds())

	expected := map[string]any{
		"holderIdentity":       e.cfg.PodName,
		"acquireTime":          now.Format(time.RFC3339Nano),
		"leaseDurationSeconds": leaseDurationSeconds,
		"leaseTransitions":     int64(1),
		"renewTime":            now.Format(time.RFC3339Nano),
	}

	found, lease, err := e.adapter.Get(ctx, leaseGVK, e.cfg.Namespace, e.cfg.LockName)
	if err != nil {
		return false
	}

	var resourceVersion string
	if found && lease != nil {
		spec, _, _ := unstructured.NestedMap(lease.Object, "spec")
		if spec != nil {
			resourceVersion = lease.GetResourceVersion()
			holder, _ := spec["holderIdentity"].(string)

			if holder != e.cfg.PodName {
				renewTime, renewErr := parseLeaseTime(spec["renewTime"])
				duration := leaseDurationOf(spec["leaseDurationSeconds"])
				if renewErr == nil && renewTime.Add(duration).After(now) {
					// The current holder's lease hasn't expired yet: stay released.
					return false
				}
				expected["leaseTransitions"] = transitionsOf(spec["leaseTransitions"]) + 1
			} else {
				// Already the holder: preserve acquireTime and leaseTransitions.
				expected["acquireTime"] = spec["acquireTime"]
				expected["leaseTransitions"] = transitionsOf(spec["leaseTransitions"])
			}
		}
	}

	manifest := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": leaseGVK.APIVersion(),
		"kind":       leaseGVK.Kind,
		"metadata": map[string]any{
			"name":      e.cfg.LockName,
			"namespace": e.cfg.Namespace,
		},
		"spec": expected,
	}}
	if resourceVersion != "" {
		manifest.SetResourceVersion(resourceVersion)
	}

	success, _, err := e.adapter.Apply(ctx, []*unstructured.Unstructured{manifest}, cluster.ApplyOptions{Method: cluster.ApplyMethodUpdate})
	return err == nil && success
}

func (e *LeaseElector) Acquire(ctx context.Context, force bool) bool { return e.acquire(ctx, force) }

func (e *LeaseElector) AcquireResource(ctx context.Context, _ *unstructured.Unstructured) bool {
	return e.acquire(ctx, false)
}

func (e *LeaseElector) Release(ctx context.Context) { e.release() }

func (e *LeaseElector) ReleaseResource(context.Context, *unstructured.Unstructured) {}

func (e *LeaseElector) IsLeader(*unstructured.Unstructured) bool { return e.isLeader() }

func parseLeaseTime(v any) (time.Time, error) {
	s, _ := v.(string)
	return time.Parse(time.RFC3339Nano, s)
}

func leaseDurationOf(v any) time.Duration {
	switch n := v.(type) {
	case int64:
		return time.Duration(n) * time.Second
	case float64:
		return time.Duration(n) * time.Second
	default:
		return 0
	}
}

func transitionsOf(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 1
	}
}
