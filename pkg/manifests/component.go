/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package manifests

import (
	"context"

	"github.com/pkg/errors"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/sap/component-operator-runtime/pkg/cluster"
	"github.com/sap/component-operator-runtime/pkg/graph"
	"github.com/sap/component-operator-runtime/pkg/status"
	"github.com/sap/component-operator-runtime/pkg/types"
)

// ComponentOptions configures a ManifestComponent. Analyzer defaults to status.NewStatusAnalyzer if
// left nil; the remaining fields default to their zero value.
type ComponentOptions struct {
	DependsOn  []string
	Disabled   bool
	Parameters types.Unstructurable
	Analyzer   status.StatusAnalyzer
	ApplyOpts  cluster.ApplyOptions
}

// ManifestComponent adapts a Generator (and everything it is built from -- Helm charts, Kustomize
// overlays, template files, or a hand-rolled Generator) into a graph.Component: Render calls
// Generate, Deploy/Disable push or remove the engine's already-patched-and-stamped output via the
// session's Cluster Adapter, and Verify delegates per-object readiness to a status.StatusAnalyzer,
// a Component being "Verified" once every object it rendered reports status.CurrentStatus.
type ManifestComponent struct {
	name      string
	generator Generator
	options   ComponentOptions
}

var _ graph.Component = &ManifestComponent{}

// NewManifestComponent builds a ManifestComponent named name, rendering through generator.
func NewManifestComponent(name string, generator Generator, options ComponentOptions) *ManifestComponent {
	if options.Analyzer == nil {
		options.Analyzer = status.NewStatusAnalyzer(name)
	}
	return &ManifestComponent{name: name, generator: generator, options: options}
}

func (c *ManifestComponent) Name() string        { return c.name }
func (c *ManifestComponent) DependsOn() []string { return c.options.DependsOn }
func (c *ManifestComponent) Disabled() bool      { return c.options.Disabled }

// Render calls the wrapped Generator and converts its client.Object results into the
// map[string]any-backed unstructured tree the rollout pipeline's patch/depshash stages operate on.
func (c *ManifestComponent) Render(ctx context.Context, sess graph.Session) ([]*unstructured.Unstructured, error) {
	objects, err := c.generator.Generate(sess.Namespace(), c.name, c.options.Parameters)
	if err != nil {
		return nil, errors.Wrapf(err, "component %s: error generating manifests", c.name)
	}
	manifests := make([]*unstructured.Unstructured, 0, len(objects))
	for _, object := range objects {
		manifest, err := toUnstructured(object)
		if err != nil {
			return nil, errors.Wrapf(err, "component %s: error converting rendered object", c.name)
		}
		manifests = append(manifests, manifest)
	}
	return manifests, nil
}

// Deploy applies the manifests the engine already rendered, patched and stamped for this Component
// (sess.Rendered), stamping owner references via the Session's Cluster Adapter.
func (c *ManifestComponent) Deploy(ctx context.Context, sess graph.Session) (bool, error) {
	manifests := sess.Rendered(c.name)
	if len(manifests) == 0 {
		return false, nil
	}
	opts := c.options.ApplyOpts
	opts.ManageOwnerRefs = true
	_, changed, err := sess.Adapter().Apply(ctx, manifests, opts)
	if err != nil {
		return false, errors.Wrapf(err, "component %s: error applying manifests", c.name)
	}
	return changed, nil
}

// Verify reports graph.VerifyOK once every manifest this Component rendered is CurrentStatus
// according to options.Analyzer, re-fetching each object's live state via the Cluster Adapter
// (the rendered manifest itself carries no status).
func (c *ManifestComponent) Verify(ctx context.Context, sess graph.Session) (graph.VerifyResult, error) {
	manifests := sess.Rendered(c.name)
	adapter := sess.Adapter()
	for _, manifest := range manifests {
		gvk := cluster.GroupVersionKind{Group: manifest.GroupVersionKind().Group, Version: manifest.GroupVersionKind().Version, Kind: manifest.GetKind()}
		found, live, err := adapter.Get(ctx, gvk, manifest.GetNamespace(), manifest.GetName())
		if err != nil {
			return graph.VerifyNotYet, errors.Wrapf(err, "component %s: error fetching %s/%s for verification", c.name, manifest.GetKind(), manifest.GetName())
		}
		if !found {
			return graph.VerifyNotYet, nil
		}
		result, err := c.options.Analyzer.ComputeStatus(live)
		if err != nil {
			return graph.VerifyNotYet, errors.Wrapf(err, "component %s: error computing status of %s/%s", c.name, manifest.GetKind(), manifest.GetName())
		}
		if result != status.CurrentStatus {
			return graph.VerifyNotYet, nil
		}
	}
	return graph.VerifyOK, nil
}

// Disable removes every manifest this Component last had rendered. If no Render has happened yet
// in this reconcile (e.g. a finalize-only reconcile where SetupComponents re-adds the same
// Components), it falls back to rendering once more purely to compute identities to delete.
func (c *ManifestComponent) Disable(ctx context.Context, sess graph.Session) (bool, error) {
	manifests := sess.Rendered(c.name)
	if len(manifests) == 0 {
		rendered, err := c.Render(ctx, sess)
		if err != nil {
			return false, err
		}
		manifests = rendered
	}
	_, changed, err := sess.Adapter().Disable(ctx, manifests)
	if err != nil {
		return false, errors.Wrapf(err, "component %s: error disabling manifests", c.name)
	}
	return changed, nil
}

func toUnstructured(object client.Object) (*unstructured.Unstructured, error) {
	if u, ok := object.(*unstructured.Unstructured); ok {
		return u, nil
	}
	content, err := runtime.DefaultUnstructuredConverter.ToUnstructured(object)
	if err != nil {
		return nil, err
	}
	return &unstructured.Unstructured{Object: content}, nil
}
