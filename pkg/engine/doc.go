/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package engine implements the Reconcile Engine (§4.4): the ten-phase pipeline a Scheduler worker
// runs once per Reconcile Request. An Engine is bound to one Controller (one (apiVersion, kind)
// pair); Reconcile drives gating, Session construction, component setup, rendering, dependency-hash
// stamping, topological rollout, post-hooks, status computation, finalizer removal and the requeue
// decision, classifying every terminal error into the taxonomy pkg/types.ReconcileErrorKind names.
package engine
