/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package engine

import (
	"context"

	"github.com/sap/component-operator-runtime/pkg/graph"
	"github.com/sap/component-operator-runtime/pkg/session"
	"github.com/sap/component-operator-runtime/pkg/types"
)

// rollout implements §4.4 steps 4 through 6: render, deploy and verify each Component in
// topological order, or disable each in reverse topological order while finalizing. Per-component
// outcomes are recorded on sess.Graph() via SetState for computeStatus to summarize; rollout
// continues past a single Component's failure so every Component gets a recorded state, returning
// the last classified error (if any) for the caller to surface.
func rollout(ctx context.Context, sess *session.Session, finalizing bool) *types.ReconcileError {
	g := sess.Graph()

	if finalizing {
		var lastErr *types.ReconcileError
		for _, component := range g.ReverseTopologicalOrder() {
			if component.Disabled() {
				g.SetState(component.Name(), graph.StateDisabled, false, nil)
				continue
			}
			changed, err := component.Disable(ctx, sess)
			if err != nil {
				g.SetState(component.Name(), graph.StateFailed, changed, err)
				lastErr = classify(err, types.RolloutError)
				continue
			}
			g.SetState(component.Name(), graph.StateDisabled, changed, nil)
		}
		return lastErr
	}

	var lastErr *types.ReconcileError
	for _, component := range g.TopologicalOrder() {
		if component.Disabled() {
			g.SetState(component.Name(), graph.StateDisabled, false, nil)
			continue
		}

		if _, err := renderComponent(ctx, sess, component); err != nil {
			g.SetState(component.Name(), graph.StateFailed, false, err)
			lastErr = classify(err, types.RolloutError)
			continue
		}

		g.SetState(component.Name(), graph.StateDeploying, false, nil)
		changed, err := component.Deploy(ctx, sess)
		if err != nil {
			g.SetState(component.Name(), graph.StateFailed, changed, err)
			lastErr = classify(err, types.RolloutError)
			continue
		}
		g.SetState(component.Name(), graph.StateDeployed, changed, nil)

		g.SetState(component.Name(), graph.StateVerifying, changed, nil)
		result, err := component.Verify(ctx, sess)
		if err != nil {
			g.SetState(component.Name(), graph.StateFailed, changed, err)
			lastErr = classify(err, types.VerificationError)
			continue
		}
		if result == graph.VerifyOK {
			g.SetState(component.Name(), graph.StateVerified, changed, nil)
		} else {
			g.SetState(component.Name(), graph.StateUnverified, changed, nil)
		}
	}
	return lastErr
}

// classify tags err with def unless it is already a *types.ReconcileError, in which case the
// Component's own classification is kept (§7: the engine never overrides a classification a
// Component hook already made).
func classify(err error, def types.ReconcileErrorKind) *types.ReconcileError {
	if re, ok := err.(*types.ReconcileError); ok {
		return re
	}
	return types.NewReconcileError(def, err)
}
