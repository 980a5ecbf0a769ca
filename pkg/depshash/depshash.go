/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package depshash implements dependency-hash annotation stamping (§4.4 step 5): for Pod-template
// carrying resources, scan containers/volumes/envFrom/valueFrom for Secret and ConfigMap
// references, fold each referenced object's identity and data into an order-insensitive,
// byte-reproducible hash, and write it onto the Pod template so changing a referenced
// Secret/ConfigMap causes a rolling restart even though the workload manifest itself did not change.
package depshash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/sap/component-operator-runtime/pkg/cluster"
)

// Annotation is the key the engine writes the computed hash under.
const Annotation = "component-operator-runtime/deps-hash"

// podTemplateKinds are the kinds whose Pod template this package inspects and annotates.
var podTemplateKinds = map[string]string{
	"Pod":         "",
	"Deployment":  "spec.template",
	"StatefulSet": "spec.template",
	"ReplicaSet":  "spec.template",
	"DaemonSet":   "spec.template",
	"Job":         "spec.template",
	"CronJob":     "spec.jobTemplate.spec.template",
}

// Reference identifies a referenced ConfigMap or Secret.
type Reference struct {
	Kind string // "ConfigMap" or "Secret"
	Name string
}

// Resolver looks up a referenced data object's content, first within the Component's own rendered
// set (so a ConfigMap rendered in the same reconcile is picked up without needing a round trip),
// then via the Cluster Adapter. A missing object returns (nil, false): per §4.4 step 5, a
// missing reference does not fail the reconcile.
type Resolver struct {
	Namespace string
	Local     map[Reference]*unstructured.Unstructured
	Adapter   cluster.Adapter
}

func (r *Resolver) resolve(ctx context.Context, ref Reference) (map[string]any, bool) {
	if local, ok := r.Local[ref]; ok {
		data, _, _ := unstructured.NestedMap(local.Object, "data")
		return data, true
	}
	if r.Adapter == nil {
		return nil, false
	}
	gvk := cluster.GroupVersionKind{Version: "v1", Kind: ref.Kind}
	found, object, err := r.Adapter.Get(ctx, gvk, r.Namespace, ref.Name)
	if err != nil || !found {
		return nil, false
	}
	data, _, _ := unstructured.NestedMap(object.Object, "data")
	return data, true
}

// Stamp scans manifest for a Pod-template kind and, if found, computes and writes the deps-hash
// annotation on its template metadata. Non-matching kinds are returned unchanged. manifest is not
// mutated; the returned object is a copy.
func Stamp(ctx context.Context, manifest *unstructured.Unstructured, resolver *Resolver) (*unstructured.Unstructured, error) {
	templatePath, ok := podTemplateKinds[manifest.GetKind()]
	if !ok {
		return manifest, nil
	}
	out := manifest.DeepCopy()

	var podSpec map[string]any
	var templateMeta map[string]any
	if templatePath == "" {
		spec, _, _ := unstructured.NestedMap(out.Object, "spec")
		podSpec = spec
		meta, ok := out.Object["metadata"].(map[string]any)
		if !ok {
			meta = map[string]any{}
			out.Object["metadata"] = meta
		}
		templateMeta = meta
	} else {
		segments := splitPath(templatePath)
		template, _, _ := unstructured.NestedMap(out.Object, segments...)
		if template == nil {
			return out, nil
		}
		spec, _, _ := unstructured.NestedMap(template, "spec")
		podSpec = spec
		meta, ok := template["metadata"].(map[string]any)
		if !ok {
			meta = map[string]any{}
			template["metadata"] = meta
		}
		templateMeta = meta
		defer func() {
			_ = unstructured.SetNestedMap(out.Object, template, segments...)
		}()
	}
	if podSpec == nil {
		return out, nil
	}

	refs := collectReferences(podSpec)
	hash := computeHash(ctx, refs, resolver)

	annotations, _ := templateMeta["annotations"].(map[string]any)
	if annotations == nil {
		annotations = map[string]any{}
	}
	annotations[Annotation] = hash
	templateMeta["annotations"] = annotations

	return out, nil
}

// collectReferences walks a Pod spec's containers (and initContainers), volumes, envFrom, and
// valueFrom blocks for ConfigMap/Secret references, per §4.4 step 5.
func collectReferences(podSpec map[string]any) []Reference {
	var refs []Reference
	add := func(kind, name string) {
		if name == "" {
			return
		}
		refs = append(refs, Reference{Kind: kind, Name: name})
	}

	containerLists := [][]any{}
	if v, ok := podSpec["containers"].([]any); ok {
		containerLists = append(containerLists, v)
	}
	if v, ok := podSpec["initContainers"].([]any); ok {
		containerLists = append(containerLists, v)
	}
	for _, list := range containerLists {
		for _, item := range list {
			container, ok := item.(map[string]any)
			if !ok {
				continue
			}
			for _, raw := range anyList(container["envFrom"]) {
				envFrom, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				if cm, ok := envFrom["configMapRef"].(map[string]any); ok {
					add("ConfigMap", stringField(cm, "name"))
				}
				if s, ok := envFrom["secretRef"].(map[string]any); ok {
					add("Secret", stringField(s, "name"))
				}
			}
			for _, raw := range anyList(container["env"]) {
				env, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				valueFrom, ok := env["valueFrom"].(map[string]any)
				if !ok {
					continue
				}
				if cm, ok := valueFrom["configMapKeyRef"].(map[string]any); ok {
					add("ConfigMap", stringField(cm, "name"))
				}
				if s, ok := valueFrom["secretKeyRef"].(map[string]any); ok {
					add("Secret", stringField(s, "name"))
				}
			}
		}
	}
	for _, raw := range anyList(podSpec["volumes"]) {
		volume, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if cm, ok := volume["configMap"].(map[string]any); ok {
			add("ConfigMap", stringField(cm, "name"))
		}
		if s, ok := volume["secret"].(map[string]any); ok {
			add("Secret", stringField(s, "secretName"))
		}
		if proj, ok := volume["projected"].(map[string]any); ok {
			for _, source := range anyList(proj["sources"]) {
				sourceMap, ok := source.(map[string]any)
				if !ok {
					continue
				}
				if cm, ok := sourceMap["configMap"].(map[string]any); ok {
					add("ConfigMap", stringField(cm, "name"))
				}
				if s, ok := sourceMap["secret"].(map[string]any); ok {
					add("Secret", stringField(s, "name"))
				}
			}
		}
	}
	return dedupReferences(refs)
}

// computeHash folds each reference's identity and (if resolvable) data into a stable digest.
// Sorting references before hashing makes the result order-insensitive across equal inputs, and
// marshalling via encoding/json (which writes map keys in sorted order) makes it
// byte-reproducible across processes, per §8's hash-stability property.
func computeHash(ctx context.Context, refs []Reference, resolver *Resolver) string {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].Name < refs[j].Name
	})

	type entry struct {
		Kind string         `json:"kind"`
		Name string         `json:"name"`
		Data map[string]any `json:"data,omitempty"`
	}
	entries := make([]entry, 0, len(refs))
	for _, ref := range refs {
		data, found := (map[string]any)(nil), false
		if resolver != nil {
			data, found = resolver.resolve(ctx, ref)
		}
		e := entry{Kind: ref.Kind, Name: ref.Name}
		if found {
			e.Data = data
		}
		entries = append(entries, e)
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		// marshalling a map[string]any built entirely from decoded JSON cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func dedupReferences(refs []Reference) []Reference {
	seen := make(map[Reference]bool, len(refs))
	out := make([]Reference, 0, len(refs))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

func anyList(v any) []any {
	list, _ := v.([]any)
	return list
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func splitPath(dotted string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(dotted); i++ {
		if dotted[i] == '.' {
			segments = append(segments, dotted[start:i])
			start = i + 1
		}
	}
	segments = append(segments, dotted[start:])
	return segments
}
