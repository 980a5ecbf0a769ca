/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package engine

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/sap/component-operator-runtime/pkg/cluster"
	"github.com/sap/component-operator-runtime/pkg/graph"
	"github.com/sap/component-operator-runtime/pkg/patch"
	"github.com/sap/component-operator-runtime/pkg/session"
	"github.com/sap/component-operator-runtime/pkg/types"
)

// Controller is the behavioral contract a Controller author implements to drive one Engine
// instance for one (apiVersion, kind) pair (§4.4 steps 1, 3). Finalizer returning "" disables
// finalizer handling for this controller entirely (gate's step-1 short circuit).
type Controller interface {
	Name() string
	Finalizer() string
	SetupComponents(ctx context.Context, sess *session.Session) error
	FinalizeComponents(ctx context.Context, sess *session.Session) error
}

// AfterDeployHook/AfterVerifyHook run as the §4.4 step 7 post-hook once rollout completes without a
// hard error; AfterVerify runs instead of AfterDeploy when every enabled Component is Verified.
// ShouldRequeueHook overrides defaultShouldRequeue's step-10 policy. All three are optional
// (nil skips the hook / keeps the default), mirroring pkg/component/reconciler.go's
// HookFunc[T Component] pattern generalized from a single generic Component type to *session.Session.
type AfterDeployHook func(ctx context.Context, sess *session.Session) error
type AfterVerifyHook func(ctx context.Context, sess *session.Session) error
type ShouldRequeueHook func(sess *session.Session, outcome Outcome) (ctrl.Result, error)

// Hooks carries a Controller's optional overrides of the engine's default policy.
type Hooks struct {
	AfterDeploy   AfterDeployHook
	AfterVerify   AfterVerifyHook
	ShouldRequeue ShouldRequeueHook
}

// PatchSource loads the TemporaryPatch resources visible to a reconcile (§4.4 step 4); a nil
// source means no temporary-patch support is wired for this Controller.
type PatchSource func(ctx context.Context, adapter cluster.Adapter, namespace string) ([]patch.TemporaryPatch, error)

// Outcome is the per-component/error summary steps 7 through 10 are computed from.
type Outcome struct {
	Summary graph.Summary
	Err     *types.ReconcileError
}

// Engine runs the ten-phase reconcile pipeline (§4.4) for one Controller.
type Engine struct {
	controller  Controller
	hooks       Hooks
	patchSource PatchSource
	backoffBase time.Duration
}

// New builds an Engine bound to controller. backoffBase is the requeue delay used both for
// ClusterError's classified backoff and for the default "some Component is unverified" requeue
// (§4.4 step 10); pass 0 to use a 30-second default.
func New(controller Controller, hooks Hooks, patchSource PatchSource, backoffBase time.Duration) *Engine {
	if backoffBase <= 0 {
		backoffBase = 30 * time.Second
	}
	return &Engine{controller: controller, hooks: hooks, patchSource: patchSource, backoffBase: backoffBase}
}

// Reconcile runs the full pipeline against cr, returning the ctrl.Result a Scheduler worker should
// act on. Whether cr is being finalized is derived here from cr.GetDeletionTimestamp() (a set
// deletion timestamp means finalizing); callers pass no separate finalize flag.
func (e *Engine) Reconcile(ctx context.Context, adapter cluster.Adapter, cr *unstructured.Unstructured) (ctrl.Result, error) {
	finalizing := cr.GetDeletionTimestamp() != nil
	finalizer := e.controller.Finalizer()

	// 1. Gate
	if proceed, result := gate(cr, finalizer, finalizing); !proceed {
		return result, nil
	}
	if !finalizing && finalizer != "" {
		if err := adapter.AddFinalizer(ctx, gvkOf(cr), cr.GetNamespace(), cr.GetName(), finalizer); err != nil {
			return ctrl.Result{}, err
		}
	}

	// 2. Session construction
	patches, err := e.loadPatches(ctx, adapter, cr.GetNamespace())
	if err != nil {
		return ctrl.Result{}, err
	}
	sess := session.New(session.NewReconcileID(), cr, adapter, finalizing, patches)

	// 3. Setup components
	var outcome Outcome
	if err := e.setupComponents(ctx, sess, finalizing); err != nil {
		outcome.Err = classify(err, types.ConfigError)
	} else {
		// 4-6. Render, dependency-hash stamping, topological rollout
		outcome.Err = rollout(ctx, sess, finalizing)
	}
	outcome.Summary = sess.Graph().Summarize()

	// 7. Post-hooks
	if outcome.Err == nil && !finalizing {
		if outcome.Summary.Verified == outcome.Summary.Total && e.hooks.AfterVerify != nil {
			if err := e.hooks.AfterVerify(ctx, sess); err != nil {
				outcome.Err = classify(err, types.Errored)
			}
		} else if outcome.Summary.Verified != outcome.Summary.Total && e.hooks.AfterDeploy != nil {
			if err := e.hooks.AfterDeploy(ctx, sess); err != nil {
				outcome.Err = classify(err, types.Errored)
			}
		}
	}

	// 8. Status computation
	status := computeStatus(cr, outcome, finalizing)
	if _, _, err := adapter.SetStatus(ctx, gvkOf(cr), cr.GetNamespace(), cr.GetName(), status); err != nil {
		return ctrl.Result{}, err
	}

	// 9. Finalizer removal
	if finalizing && finalizer != "" && outcome.Err == nil && outcome.Summary.Failed == 0 {
		if err := adapter.RemoveFinalizer(ctx, gvkOf(cr), cr.GetNamespace(), cr.GetName(), finalizer); err != nil {
			return ctrl.Result{}, err
		}
	}

	// 10. Requeue decision
	if e.hooks.ShouldRequeue != nil {
		return e.hooks.ShouldRequeue(sess, outcome)
	}
	return defaultShouldRequeue(outcome, e.backoffBase)
}

func (e *Engine) setupComponents(ctx context.Context, sess *session.Session, finalizing bool) error {
	var err error
	if finalizing {
		err = e.controller.FinalizeComponents(ctx, sess)
	} else {
		err = e.controller.SetupComponents(ctx, sess)
	}
	if err != nil {
		return err
	}
	return sess.Graph().Finalize()
}

func (e *Engine) loadPatches(ctx context.Context, adapter cluster.Adapter, namespace string) ([]patch.TemporaryPatch, error) {
	if e.patchSource == nil {
		return nil, nil
	}
	return e.patchSource(ctx, adapter, namespace)
}

// defaultShouldRequeue implements §4.4 step 10's default policy: requeue if any Component is
// unverified or if any classified transient error occurred, backing off per the error's own
// classification or, for a plain unverified-but-otherwise-healthy outcome, by backoffBase.
func defaultShouldRequeue(outcome Outcome, backoffBase time.Duration) (ctrl.Result, error) {
	if outcome.Err != nil {
		requeue, backoff := outcome.Err.Requeue()
		if !requeue {
			return ctrl.Result{}, nil
		}
		if backoff {
			return ctrl.Result{RequeueAfter: backoffBase}, nil
		}
		return ctrl.Result{Requeue: true}, nil
	}
	if outcome.Summary.Unverified > 0 {
		return ctrl.Result{RequeueAfter: backoffBase}, nil
	}
	return ctrl.Result{}, nil
}

func gvkOf(cr *unstructured.Unstructured) cluster.GroupVersionKind {
	gvk := cr.GroupVersionKind()
	return cluster.GroupVersionKind{Group: gvk.Group, Version: gvk.Version, Kind: gvk.Kind}
}
