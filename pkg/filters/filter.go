/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package filters implements the Filter Pipeline (§4.5): stateful per-resource predicates, one
// instance per watched resource, composed with AND/OR into a pipeline the Watch Dispatcher runs
// against every event before forwarding a Reconcile Request to the Scheduler.
package filters

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/sap/component-operator-runtime/pkg/cluster"
)

// Filter is a stateful predicate over a resource's event stream. A fresh instance is created per
// watched resource (per §4.5's "initialize per-requester filter pipelines ... on first sight");
// Test/Update are then called once per observed event for that resource's lifetime.
//
// Test returns (decision, ok): ok is false when the filter has no opinion about this event (the
// "nil" case in §4.5 -- e.g. a filter that only cares about MODIFIED events ignores ADDED/DELETED).
// Update folds the observed resource into the filter's memory; it is always safe to call, even
// when Test returned !ok.
type Filter interface {
	Test(resource *unstructured.Unstructured, event cluster.WatchEventType) (decision bool, ok bool)
	Update(resource *unstructured.Unstructured)
}

// Factory constructs a fresh Filter instance seeded from the resource first observed for it,
// mirroring the source's per-resource Filter(resource) construction.
type Factory func(resource *unstructured.Unstructured) Filter

// Pipeline is a composite Filter tree: List nodes AND their children, Tuple nodes OR them. A bare
// Factory is a leaf. Construct one with List/Tuple below; Build seeds the whole tree for a
// specific resource, returning a stateful Filter ready to receive events for that resource.
type Pipeline struct {
	op       compositionOp
	children []*Pipeline
	leaf     Factory
}

type compositionOp int

const (
	opLeaf compositionOp = iota
	opAnd
	opOr
)

// List composes filters with AND: the composite passes only if every child that has an opinion
// says so.
func List(children ...*Pipeline) *Pipeline {
	return &Pipeline{op: opAnd, children: children}
}

// Tuple composes filters with OR: the composite passes if any child that has an opinion says so.
func Tuple(children ...*Pipeline) *Pipeline {
	return &Pipeline{op: opOr, children: children}
}

// Leaf wraps a single Filter factory as a Pipeline node.
func Leaf(factory Factory) *Pipeline {
	return &Pipeline{op: opLeaf, leaf: factory}
}

// Build seeds every leaf in the tree against resource, producing a stateful pipeline instance
// scoped to one watched resource (§4.5: "initialize ... on first sight").
func (p *Pipeline) Build(resource *unstructured.Unstructured) *Instance {
	return &Instance{node: p.buildNode(resource)}
}

func (p *Pipeline) buildNode(resource *unstructured.Unstructured) *instanceNode {
	n := &instanceNode{op: p.op}
	switch p.op {
	case opLeaf:
		n.filter = p.leaf(resource)
	default:
		n.children = make([]*instanceNode, len(p.children))
		for i, c := range p.children {
			n.children[i] = c.buildNode(resource)
		}
	}
	return n
}

// Instance is a Pipeline tree seeded for one resource; it accumulates filter memory across calls.
type Instance struct {
	node *instanceNode
}

type instanceNode struct {
	op       compositionOp
	filter   Filter
	children []*instanceNode
}

// Test evaluates the pipeline without updating any filter's memory (a pure test pass, per §4.5).
func (i *Instance) Test(resource *unstructured.Unstructured, event cluster.WatchEventType) bool {
	decision, _ := i.node.evaluate(resource, event, false, true)
	return decision
}

// Update refreshes every filter's memory without testing (an update-only pass, per §4.5, used
// when the engine needs to refresh memory after a decision has already been made some other way).
func (i *Instance) Update(resource *unstructured.Unstructured) {
	i.node.evaluate(resource, cluster.WatchEventModified, true, false)
}

// UpdateAndTest tests then updates every filter reached, in one pass (§4.5's default mode).
func (i *Instance) UpdateAndTest(resource *unstructured.Unstructured, event cluster.WatchEventType) bool {
	decision, _ := i.node.evaluate(resource, event, false, false)
	return decision
}

// evaluate implements the recursive update-and-test rule from the source's FilterManager: in an
// AND chain, once a child has failed, remaining siblings are still updated but no longer tested
// (their test result cannot change the outcome); symmetrically for OR once a child has succeeded.
// A composite with no child expressing an opinion evaluates to false (§4.5: "all-nil evaluates to
// false" for OR; the same no-opinion-means-false rule applies uniformly here for AND too, matching
// the source's shared fallback).
func (n *instanceNode) evaluate(resource *unstructured.Unstructured, event cluster.WatchEventType, updateOnly, testOnly bool) (decision bool, hasOpinion bool) {
	if n.op == opLeaf {
		if updateOnly {
			n.filter.Update(resource)
			return false, false
		}
		if testOnly {
			d, ok := n.filter.Test(resource, event)
			return d, ok
		}
		d, ok := n.filter.Test(resource, event)
		n.filter.Update(resource)
		return d, ok
	}

	var result *bool
	decided := false
	for _, child := range n.children {
		childUpdateOnly := updateOnly
		if decided && !testOnly && !updateOnly {
			// Outcome already fixed; remaining children are refreshed but not tested.
			childUpdateOnly = true
		}
		d, ok := child.evaluate(resource, event, childUpdateOnly, testOnly)
		if !ok {
			continue
		}
		if result == nil {
			v := d
			result = &v
		} else if n.op == opAnd {
			v := *result && d
			result = &v
		} else {
			v := *result || d
			result = &v
		}
		if n.op == opAnd && !d {
			decided = true
		}
		if n.op == opOr && d {
			decided = true
		}
	}
	if result == nil {
		return false, false
	}
	return *result, true
}
