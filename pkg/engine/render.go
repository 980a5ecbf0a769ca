/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package engine

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/sap/component-operator-runtime/pkg/depshash"
	"github.com/sap/component-operator-runtime/pkg/graph"
	"github.com/sap/component-operator-runtime/pkg/patch"
	"github.com/sap/component-operator-runtime/pkg/session"
)

// renderComponent implements §4.4 steps 4-5 for a single Component: render its manifests, apply
// any TemporaryPatch whose target path matches this Component's internal name, then stamp a
// dependency hash onto any Pod-template carrying resource among the result. The rendered set is
// recorded on sess so depshash.Resolver and later phases can find it without re-invoking Render.
func renderComponent(ctx context.Context, sess *session.Session, component graph.Component) ([]*unstructured.Unstructured, error) {
	manifests, err := component.Render(ctx, sess)
	if err != nil {
		return nil, err
	}

	patched := make([]*unstructured.Unstructured, 0, len(manifests))
	for _, manifest := range manifests {
		internalName := fmt.Sprintf("%s.%s", component.Name(), manifest.GetName())
		result, err := patch.ApplyAll(manifest.Object, internalName, sess.TemporaryPatches())
		if err != nil {
			return nil, fmt.Errorf("applying temporary patches to %s: %w", internalName, err)
		}
		patched = append(patched, &unstructured.Unstructured{Object: result})
	}

	local := make(map[depshash.Reference]*unstructured.Unstructured, len(patched))
	for _, manifest := range patched {
		local[depshash.Reference{Kind: manifest.GetKind(), Name: manifest.GetName()}] = manifest
	}
	resolver := &depshash.Resolver{Namespace: sess.Namespace(), Local: local, Adapter: sess.Adapter()}

	stamped := make([]*unstructured.Unstructured, 0, len(patched))
	for _, manifest := range patched {
		out, err := depshash.Stamp(ctx, manifest, resolver)
		if err != nil {
			return nil, err
		}
		stamped = append(stamped, out)
	}

	sess.SetRendered(component.Name(), stamped)
	return stamped, nil
}
