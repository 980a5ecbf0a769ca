/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package engine

import (
	"context"
	"fmt"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/sap/component-operator-runtime/pkg/cluster"
	"github.com/sap/component-operator-runtime/pkg/graph"
	"github.com/sap/component-operator-runtime/pkg/session"
)

func newCR(name string, deleting bool) *unstructured.Unstructured {
	cr := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "example.sap.com/v1",
		"kind":       "Example",
		"metadata": map[string]any{
			"name":      name,
			"namespace": "default",
		},
	}}
	if deleting {
		now := metav1.Now()
		cr.SetDeletionTimestamp(&now)
	}
	return cr
}

// fakeComponent is a minimal graph.Component test double whose behavior is scripted per call.
type fakeComponent struct {
	name       string
	dependsOn  []string
	disabled   bool
	verify     graph.VerifyResult
	deployErr  error
	verifyErr  error
	disableErr error
}

func (c *fakeComponent) Name() string        { return c.name }
func (c *fakeComponent) DependsOn() []string { return c.dependsOn }
func (c *fakeComponent) Disabled() bool      { return c.disabled }

func (c *fakeComponent) Render(ctx context.Context, sess graph.Session) ([]*unstructured.Unstructured, error) {
	return []*unstructured.Unstructured{{Object: map[string]any{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata":   map[string]any{"name": c.name},
	}}}, nil
}

func (c *fakeComponent) Deploy(ctx context.Context, sess graph.Session) (bool, error) {
	if c.deployErr != nil {
		return false, c.deployErr
	}
	return true, nil
}

func (c *fakeComponent) Verify(ctx context.Context, sess graph.Session) (graph.VerifyResult, error) {
	if c.verifyErr != nil {
		return graph.VerifyNotYet, c.verifyErr
	}
	return c.verify, nil
}

func (c *fakeComponent) Disable(ctx context.Context, sess graph.Session) (bool, error) {
	if c.disableErr != nil {
		return false, c.disableErr
	}
	return true, nil
}

// fakeController wires a fixed set of Components into every Session it sets up.
type fakeController struct {
	finalizer  string
	components []*fakeComponent
}

func (c *fakeController) Name() string      { return "example" }
func (c *fakeController) Finalizer() string { return c.finalizer }

func (c *fakeController) SetupComponents(ctx context.Context, sess *session.Session) error {
	for _, comp := range c.components {
		if err := sess.AddComponent(comp); err != nil {
			return err
		}
	}
	return nil
}

func (c *fakeController) FinalizeComponents(ctx context.Context, sess *session.Session) error {
	return c.SetupComponents(ctx, sess)
}

func newAdapter(seed ...*unstructured.Unstructured) cluster.Adapter {
	owner := cluster.OwnerIdentity{APIVersion: "example.sap.com/v1", Kind: "Example", Namespace: "default", Name: "instance"}
	return cluster.NewDryRunAdapter(owner, seed...)
}

func TestReconcileAllVerifiedSetsReadyStable(t *testing.T) {
	controller := &fakeController{finalizer: "example.sap.com/finalizer", components: []*fakeComponent{
		{name: "a", verify: graph.VerifyOK},
	}}
	e := New(controller, Hooks{}, nil, 0)
	cr := newCR("instance", false)
	adapter := newAdapter(cr)

	result, err := e.Reconcile(context.Background(), adapter, cr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Requeue || result.RequeueAfter != 0 {
		t.Errorf("expected no requeue once stable, got %+v", result)
	}

	_, object, _ := adapter.Get(context.Background(), gvkOf(cr), "default", "instance")
	conditions, _, _ := unstructured.NestedSlice(object.Object, "status", "conditions")
	found := false
	for _, raw := range conditions {
		m := raw.(map[string]any)
		if m["type"] == "Ready" {
			found = true
			if m["status"] != "True" || m["reason"] != ReasonStable {
				t.Errorf("expected Ready=True/Stable, got %+v", m)
			}
		}
	}
	if !found {
		t.Fatalf("expected a Ready condition to be written")
	}
}

func TestReconcileUnverifiedRequeues(t *testing.T) {
	controller := &fakeController{finalizer: "example.sap.com/finalizer", components: []*fakeComponent{
		{name: "a", verify: graph.VerifyNotYet},
	}}
	e := New(controller, Hooks{}, nil, 0)
	result, err := e.Reconcile(context.Background(), newAdapter(), newCR("instance", false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RequeueAfter == 0 {
		t.Errorf("expected a backed-off requeue while unverified, got %+v", result)
	}
}

func TestReconcileDeployFailureSurfacesRolloutError(t *testing.T) {
	controller := &fakeController{finalizer: "example.sap.com/finalizer", components: []*fakeComponent{
		{name: "a", deployErr: fmt.Errorf("boom")},
	}}
	e := New(controller, Hooks{}, nil, 0)
	result, err := e.Reconcile(context.Background(), newAdapter(), newCR("instance", false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Requeue && result.RequeueAfter == 0 {
		t.Errorf("expected requeue on rollout error, got %+v", result)
	}
}

func TestReconcileConfigErrorDoesNotRequeueByDefault(t *testing.T) {
	controller := &fakeController{finalizer: "example.sap.com/finalizer", components: []*fakeComponent{
		{name: "a", dependsOn: []string{"missing"}},
	}}
	e := New(controller, Hooks{}, nil, 0)
	result, err := e.Reconcile(context.Background(), newAdapter(), newCR("instance", false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Requeue || result.RequeueAfter != 0 {
		t.Errorf("expected no requeue for an unresolved component graph, got %+v", result)
	}
}

func TestReconcilePausedReturnsImmediately(t *testing.T) {
	controller := &fakeController{finalizer: "example.sap.com/finalizer"}
	e := New(controller, Hooks{}, nil, 0)
	cr := newCR("instance", false)
	cr.SetAnnotations(map[string]string{"component-operator-runtime/paused": "true"})

	result, err := e.Reconcile(context.Background(), newAdapter(), cr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Requeue || result.RequeueAfter != 0 {
		t.Errorf("expected a zero-value result for a paused resource, got %+v", result)
	}
}

func TestReconcileFinalizingWithNoFinalizerReturnsImmediately(t *testing.T) {
	controller := &fakeController{finalizer: ""}
	e := New(controller, Hooks{}, nil, 0)
	cr := newCR("instance", true)

	_, object, _ := newAdapter().Get(context.Background(), gvkOf(cr), "default", "instance")
	if object != nil {
		t.Fatalf("unexpected seed object")
	}

	result, err := e.Reconcile(context.Background(), newAdapter(), cr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Requeue || result.RequeueAfter != 0 {
		t.Errorf("expected no requeue when no finalizer is declared, got %+v", result)
	}
}

func TestReconcileFinalizingDisablesAndRemovesFinalizer(t *testing.T) {
	controller := &fakeController{finalizer: "example.sap.com/finalizer", components: []*fakeComponent{
		{name: "a"},
	}}
	e := New(controller, Hooks{}, nil, 0)
	cr := newCR("instance", true)
	cr.SetFinalizers([]string{"example.sap.com/finalizer"})
	adapter := newAdapter(cr)

	result, err := e.Reconcile(context.Background(), adapter, cr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Requeue || result.RequeueAfter != 0 {
		t.Errorf("expected no further requeue once finalization completes cleanly, got %+v", result)
	}

	_, object, _ := adapter.Get(context.Background(), gvkOf(cr), "default", "instance")
	if object == nil {
		t.Fatalf("expected the CR to still be present in the adapter")
	}
	for _, f := range object.GetFinalizers() {
		if f == "example.sap.com/finalizer" {
			t.Errorf("expected the finalizer to have been removed, got %v", object.GetFinalizers())
		}
	}
}
