/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package leaderelection

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// LeaseNameAnnotation/LeaseTimeAnnotation record resource-scoped leadership directly on the
// resource being reconciled, mirroring oper8's LEASE_NAME_ANNOTATION_NAME/LEASE_TIME_ANNOTATION_NAME.
const (
	LeaseNameAnnotation = "component-operator-runtime/lease-holder"
	LeaseTimeAnnotation = "component-operator-runtime/lease-time"
)

// AnnotationElector implements per-resource leadership via two annotations on the resource itself,
// rather than a single global lock object, so multiple operator instances can each own a disjoint
// subset of resources. The global lock is a no-op that always succeeds, since this strategy has no
// global critical section to protect. Grounded on oper8's AnnotationLeadershipManager.
type AnnotationElector struct {
	cfg Config
}

// NewAnnotationElector constructs an AnnotationElector. Unlike Lease/Life it performs no background
// polling and holds no Adapter of its own: every AcquireResource call synchronously evaluates and
// (if needed) rewrites the in-memory resource's annotations, leaving the Apply call to the caller.
func NewAnnotationElector(cfg Config) *AnnotationElector {
	return &AnnotationElector{cfg: cfg}
}

func (e *AnnotationElector) Acquire(context.Context, bool) bool { return true }

// AcquireResource takes, renews, or refuses the per-resource lock, mutating resource's annotations
// in place; the caller is expected to Apply the mutated manifest itself, typically folding the
// lease annotations into the same Apply call as the rest of the reconcile.
func (e *AnnotationElector) AcquireResource(_ context.Context, resource *unstructured.Unstructured) bool {
	if resource == nil {
		return false
	}
	now := time.Now()
	annotations := resource.GetAnnotations()
	if annotations == nil {
		annotations = map[string]string{}
	}

	holder := annotations[LeaseNameAnnotation]
	switch {
	case holder == "":
		// No current holder: take ownership.
	case holder == e.cfg.PodName:
		// Already the holder: renew.
	case !e.leaseValid(annotations[LeaseTimeAnnotation], now):
		// Current holder's lease expired: take over.
	default:
		return false
	}

	annotations[LeaseNameAnnotation] = e.cfg.PodName
	annotations[LeaseTimeAnnotation] = now.Format(time.RFC3339Nano)
	resource.SetAnnotations(annotations)
	return true
}

func (e *AnnotationElector) Release(context.Context) {}

// ReleaseResource clears both annotations, but only if this instance is currently the holder.
func (e *AnnotationElector) ReleaseResource(_ context.Context, resource *unstructured.Unstructured) {
	if resource == nil {
		return
	}
	annotations := resource.GetAnnotations()
	if annotations[LeaseNameAnnotation] != e.cfg.PodName {
		return
	}
	delete(annotations, LeaseNameAnnotation)
	delete(annotations, LeaseTimeAnnotation)
	resource.SetAnnotations(annotations)
}

// IsLeader with resource == nil reports true unconditionally, since this strategy has no global
// lock; with a resource it checks both holder identity and lease validity.
func (e *AnnotationElector) IsLeader(resource *unstructured.Unstructured) bool {
	if resource == nil {
		return true
	}
	annotations := resource.GetAnnotations()
	return annotations[LeaseNameAnnotation] == e.cfg.PodName && e.leaseValid(annotations[LeaseTimeAnnotation], time.Now())
}

func (e *AnnotationElector) leaseValid(leaseTime string, now time.Time) bool {
	t, err := time.Parse(time.RFC3339Nano, leaseTime)
	if err != nil {
		return false
	}
	return now.Before(t.Add(e.cfg.LeaseDuration))
}
