/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package session implements the Session the Reconcile Engine constructs for a single reconcile
// (§4.4 step 2, §9 design notes): a reconciliation id, the bound CR manifest, a resolved Cluster
// Adapter handle, the ComponentGraph under construction/execution, the TemporaryPatches visible to
// rendering, and the manifests each Component has rendered so far. Status-condition accumulation
// happens one level up, in pkg/engine, which reads/writes the CR's status map directly rather than
// threading condition state through the Session -- a Session never outlives the single reconcile
// whose status pkg/engine computes from it.
package session

import (
	"crypto/rand"
	"encoding/hex"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/sap/component-operator-runtime/pkg/cluster"
	"github.com/sap/component-operator-runtime/pkg/graph"
	"github.com/sap/component-operator-runtime/pkg/patch"
)

// Session is passed by reference to setupComponents/finalizeComponents and to every Component
// hook. Per §9's arena note, a Session owns its ComponentGraph outright; nothing added to the
// graph is expected to outlive the Session.
type Session struct {
	id        string
	cr        *unstructured.Unstructured
	adapter   cluster.Adapter
	graph     *graph.ComponentGraph
	finalize  bool
	patches   []patch.TemporaryPatch
	rendered  map[string][]*unstructured.Unstructured
	namespace string
}

// New allocates a fresh Session for reconciling cr (§4.4 step 2). id should be a process-unique
// opaque string; callers typically derive it from a counter or random suffix via NewReconcileID.
func New(id string, cr *unstructured.Unstructured, adapter cluster.Adapter, finalize bool, patches []patch.TemporaryPatch) *Session {
	return &Session{
		id:        id,
		cr:        cr,
		adapter:   adapter,
		graph:     graph.NewComponentGraph(),
		finalize:  finalize,
		patches:   patches,
		rendered:  make(map[string][]*unstructured.Unstructured),
		namespace: cr.GetNamespace(),
	}
}

// NewReconcileID returns a fresh opaque per-reconcile identifier.
func NewReconcileID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func (s *Session) ReconcileID() string { return s.id }

// CR returns the owning custom resource's manifest as observed at Session construction time.
func (s *Session) CR() *unstructured.Unstructured { return s.cr }

// Namespace is the owning CR's namespace (used to scope owner-reference stamping, §6).
func (s *Session) Namespace() string { return s.namespace }

// Adapter is the Cluster Adapter bound to this Session (and, transitively, to its owning CR).
func (s *Session) Adapter() cluster.Adapter { return s.adapter }

// Finalizing reports whether this Session is rolling components out (false) or tearing them down (true).
func (s *Session) Finalizing() bool { return s.finalize }

// AddComponent appends a Component to the Session's graph (§4.4 step 3). Called from a
// controller's setupComponents/finalizeComponents hook.
func (s *Session) AddComponent(component graph.Component) error {
	return s.graph.Add(component)
}

// Graph returns the Session's ComponentGraph; call Graph().Finalize() once setup is complete.
func (s *Session) Graph() *graph.ComponentGraph { return s.graph }

// TemporaryPatches returns the patches visible to this reconcile, for Components to apply to
// their own rendered output via patch.ApplyAll.
func (s *Session) TemporaryPatches() []patch.TemporaryPatch { return s.patches }

// SetRendered records a Component's rendered manifests, keyed by Component name, so later phases
// (dependency-hash stamping, dependent-resource lookups within the same reconcile) can find
// objects a Component rendered without re-invoking Render.
func (s *Session) SetRendered(componentName string, manifests []*unstructured.Unstructured) {
	s.rendered[componentName] = manifests
}

// Rendered returns the manifests previously recorded via SetRendered for componentName.
func (s *Session) Rendered(componentName string) []*unstructured.Unstructured {
	return s.rendered[componentName]
}

// AllRendered returns every manifest rendered so far in this reconcile, across all Components.
func (s *Session) AllRendered() []*unstructured.Unstructured {
	var all []*unstructured.Unstructured
	for _, c := range s.graph.Components() {
		all = append(all, s.rendered[c.Name()]...)
	}
	return all
}

// OwnerIdentity derives the owner-reference identity for this Session's CR, for Apply calls with
// ManageOwnerRefs=true.
func (s *Session) OwnerIdentity() cluster.OwnerIdentity {
	return cluster.OwnerIdentity{
		APIVersion: s.cr.GetAPIVersion(),
		Kind:       s.cr.GetKind(),
		Namespace:  s.cr.GetNamespace(),
		Name:       s.cr.GetName(),
		UID:        string(s.cr.GetUID()),
	}
}
