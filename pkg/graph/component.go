/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package graph implements the Component/ResourceNode model and the DAG a Session assembles from
// it (§4.4, §9 design notes): Components are appended into a Session by user code, the graph
// validates uniqueness, reference resolution and acyclicity, and rollout visits it in topological
// (or, for finalize, reverse topological) order.
package graph

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/sap/go-generics/slices"

	"github.com/sap/component-operator-runtime/pkg/cluster"
	"github.com/sap/component-operator-runtime/pkg/patch"
)

// State is a Component's position in the rollout state machine (§4.4).
type State string

const (
	StatePending    State = "Pending"
	StateDeploying  State = "Deploying"
	StateDeployed   State = "Deployed"
	StateVerifying  State = "Verifying"
	StateVerified   State = "Verified"
	StateUnverified State = "Unverified"
	StateDisabled   State = "Disabled"
	StateFailed     State = "Failed"
)

// VerifyResult is what a Component's verify predicate returns.
type VerifyResult int

const (
	VerifyNotYet VerifyResult = iota
	VerifyOK
)

// Component is the behavioral contract user code implements, reified from the source's class
// inheritance vtable (§9): render builds manifests, deploy/disable push or remove them via the
// Adapter bound to the owning Session, and verify reports readiness.
type Component interface {
	Name() string
	DependsOn() []string
	Disabled() bool
	Render(ctx context.Context, session Session) ([]*unstructured.Unstructured, error)
	Deploy(ctx context.Context, session Session) (changed bool, err error)
	Verify(ctx context.Context, session Session) (VerifyResult, error)
	Disable(ctx context.Context, session Session) (changed bool, err error)
}

// Session is the slice of the session that Component implementations need; the concrete
// *session.Session satisfies it. Kept as an interface here to avoid a package import cycle between
// graph and session.
type Session interface {
	ReconcileID() string
	Namespace() string
	Adapter() cluster.Adapter
	TemporaryPatches() []patch.TemporaryPatch
	// Rendered returns the manifests previously recorded for componentName by the engine's render
	// phase (patches applied, dependency hash stamped); Deploy/Verify/Disable read this rather than
	// re-invoking Render so they observe the exact objects the engine decided to roll out.
	Rendered(componentName string) []*unstructured.Unstructured
}

// node wraps a Component with the rollout bookkeeping the engine mutates as it visits the graph.
type node struct {
	component Component
	state     State
	changed   bool
	err       error
}

// ComponentGraph is the DAG a Session builds from the Components appended by setupComponents (or
// finalizeComponents). Per §9's arena-allocation note, the graph owns all Components added to it;
// nothing else is expected to retain pointers into it once topological order has been computed.
type ComponentGraph struct {
	nodes []*node
	index map[string]int
	order []int // topological order, computed by Finalize
}

// NewComponentGraph returns an empty graph.
func NewComponentGraph() *ComponentGraph {
	return &ComponentGraph{index: map[string]int{}}
}

// Add appends a Component. It does not itself validate references/cycles; call Finalize once all
// Components for this reconcile have been added.
func (g *ComponentGraph) Add(component Component) error {
	name := component.Name()
	if _, exists := g.index[name]; exists {
		return fmt.Errorf("duplicate component name %q", name)
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, &node{component: component, state: StatePending})
	return nil
}

// Finalize validates the graph (§4.4 step 3: unique names already enforced by Add; here we check
// upstream references resolve and the graph is acyclic) and computes a topological order.
func (g *ComponentGraph) Finalize() error {
	for _, n := range g.nodes {
		for _, dep := range n.component.DependsOn() {
			if _, ok := g.index[dep]; !ok {
				return fmt.Errorf("component %q depends on unknown component %q", n.component.Name(), dep)
			}
		}
	}
	order, err := topologicalSort(g)
	if err != nil {
		return err
	}
	g.order = order
	return nil
}

// Components returns all Components in append order (used for name/lookup purposes, not rollout).
func (g *ComponentGraph) Components() []Component {
	return slices.Collect(g.nodes, func(n *node) Component { return n.component })
}

// Get looks up a Component by name.
func (g *ComponentGraph) Get(name string) (Component, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.nodes[i].component, true
}

// TopologicalOrder returns Components in dependency order (dependencies before dependents).
func (g *ComponentGraph) TopologicalOrder() []Component {
	return slices.Collect(g.order, func(i int) Component { return g.nodes[i].component })
}

// ReverseTopologicalOrder is TopologicalOrder reversed, used for finalize rollout (§4.4 step 6).
func (g *ComponentGraph) ReverseTopologicalOrder() []Component {
	forward := g.TopologicalOrder()
	reversed := make([]Component, len(forward))
	for i, c := range forward {
		reversed[len(forward)-1-i] = c
	}
	return reversed
}

// SetState records the rollout state reached for a Component, for status computation.
func (g *ComponentGraph) SetState(name string, state State, changed bool, err error) {
	i, ok := g.index[name]
	if !ok {
		return
	}
	g.nodes[i].state = state
	g.nodes[i].changed = changed
	g.nodes[i].err = err
}

// State returns the last recorded state for a Component.
func (g *ComponentGraph) State(name string) (State, error) {
	i, ok := g.index[name]
	if !ok {
		return "", nil
	}
	return g.nodes[i].state, g.nodes[i].err
}

// Summary aggregates per-component rollout outcomes for status computation (§4.4 step 8).
type Summary struct {
	Total      int
	Verified   int
	Unverified int
	Disabled   int
	Failed     int
	Errors     []error
}

// Summarize walks every Component's recorded state. A Component whose Disabled() is true is
// counted only in Disabled, not in Total.
func (g *ComponentGraph) Summarize() Summary {
	var s Summary
	for _, n := range g.nodes {
		if n.component.Disabled() {
			s.Disabled++
			continue
		}
		s.Total++
		switch n.state {
		case StateVerified:
			s.Verified++
		case StateUnverified, StateDeployed, StateDeploying, StatePending:
			s.Unverified++
		case StateDisabled:
			s.Disabled++
		case StateFailed:
			s.Failed++
			if n.err != nil {
				s.Errors = append(s.Errors, n.err)
			}
		}
	}
	return s
}

func topologicalSort(g *ComponentGraph) ([]int, error) {
	n := len(g.nodes)
	visited := make([]int, n) // 0=unvisited,1=in-progress,2=done
	order := make([]int, 0, n)

	var visit func(i int) error
	visit = func(i int) error {
		switch visited[i] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("cycle detected in component graph at %q", g.nodes[i].component.Name())
		}
		visited[i] = 1
		for _, dep := range g.nodes[i].component.DependsOn() {
			depIdx := g.index[dep]
			if err := visit(depIdx); err != nil {
				return err
			}
		}
		visited[i] = 2
		order = append(order, i)
		return nil
	}

	for i := range g.nodes {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return order, nil
}
