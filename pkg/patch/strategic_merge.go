/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package patch implements the two pure patch engines the rollout pipeline applies to rendered
// manifests: a Kubernetes strategic merge patch (delegated to
// k8s.io/apimachinery/pkg/util/strategicpatch) and an RFC-6902 JSON patch (delegated to
// github.com/evanphx/json-patch). Both operate on a deep copy of their input and never mutate the
// caller's manifest.
package patch

import (
	"strings"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/strategicpatch"
)

// DefaultMergeKeys is the standard Kubernetes merge-key table (a dotted field path, "kind"-
// qualified or "*"-prefixed for any kind) used when the caller does not supply its own. It covers
// the list fields most Component manifests actually touch; callers with additional list fields can
// extend it via StrategicMergePatchWithKeys. mergeKeySchema below exposes this table to
// k8s.io/apimachinery/pkg/util/strategicpatch as a strategicpatch.LookupPatchMeta -- the library's
// escape hatch for resources with no generated Go struct, which is all we have here: every
// manifest a Component renders is a bare map[string]any/[]any tree, never a typed k8s.io/api value.
var DefaultMergeKeys = map[string]string{
	"Pod.spec.containers":                                    "name",
	"Pod.spec.initContainers":                                "name",
	"Pod.spec.volumes":                                       "name",
	"PodTemplate.template.spec.containers":                   "name",
	"PodTemplate.template.spec.initContainers":               "name",
	"PodTemplate.template.spec.volumes":                      "name",
	"Deployment.spec.template.spec.containers":               "name",
	"Deployment.spec.template.spec.initContainers":           "name",
	"Deployment.spec.template.spec.volumes":                  "name",
	"StatefulSet.spec.template.spec.containers":              "name",
	"StatefulSet.spec.template.spec.initContainers":          "name",
	"StatefulSet.spec.template.spec.volumes":                 "name",
	"DaemonSet.spec.template.spec.containers":                "name",
	"DaemonSet.spec.template.spec.initContainers":            "name",
	"DaemonSet.spec.template.spec.volumes":                   "name",
	"ReplicaSet.spec.template.spec.containers":               "name",
	"ReplicaSet.spec.template.spec.initContainers":           "name",
	"ReplicaSet.spec.template.spec.volumes":                  "name",
	"Job.spec.template.spec.containers":                      "name",
	"Job.spec.template.spec.initContainers":                  "name",
	"Job.spec.template.spec.volumes":                         "name",
	"CronJob.spec.jobTemplate.spec.template.spec.containers": "name",
	"CronJob.spec.jobTemplate.spec.template.spec.volumes":    "name",
	"*.spec.ports":                                 "port",
	"*.spec.rules":                                 "host",
	"*.metadata.ownerReferences":                   "uid",
	"*.spec.template.spec.containers.env":          "name",
	"*.spec.template.spec.containers.envFrom":      "name",
	"*.spec.template.spec.containers.volumeMounts": "mountPath",
}

// StrategicMergePatch applies patch onto resource using DefaultMergeKeys. Neither argument is
// mutated; the result is a new map.
func StrategicMergePatch(resource, patch map[string]any) (map[string]any, error) {
	return StrategicMergePatchWithKeys(resource, patch, DefaultMergeKeys)
}

// StrategicMergePatchWithKeys applies patch onto resource via
// k8s.io/apimachinery/pkg/util/strategicpatch, using the supplied merge-key table in place of the
// struct-tag-derived schema that library normally expects. This gets us the real `$patch:
// replace/merge/delete`, `$deleteFromPrimitiveList/<field>` and `$setElementOrder/<field>`
// directive set the Kubernetes API server itself implements, rather than a hand-rolled
// reimplementation of it. If a list's position has no configured merge key, the list is replaced
// wholesale, per §4.2.
func StrategicMergePatchWithKeys(resource, patch map[string]any, mergeKeys map[string]string) (map[string]any, error) {
	kind, _ := resource["kind"].(string)
	schema := mergeKeySchema{position: kind, mergeKeys: mergeKeys}

	// the library merges in place, so hand it copies to keep both arguments unmodified
	merged, err := strategicpatch.StrategicMergeMapPatchUsingLookupPatchMeta(deepCopyValue(resource).(map[string]any), deepCopyValue(patch).(map[string]any), schema)
	if err != nil {
		return nil, errors.Wrap(err, "strategic merge patch failed")
	}
	return merged, nil
}

// mergeKeySchema implements strategicpatch.LookupPatchMeta over a flat, dotted-path merge-key
// table instead of a generated Go struct's field tags. position tracks the dotted path from "kind"
// down to the field currently being descended into; it is threaded through one
// LookupPatchMetadataForStruct call per level, the same way the library threads a reflect.Type
// through PatchMetaFromStruct.
type mergeKeySchema struct {
	position  string
	mergeKeys map[string]string
}

func (s mergeKeySchema) LookupPatchMetadataForStruct(key string) (strategicpatch.LookupPatchMeta, strategicpatch.PatchMeta, error) {
	next := mergeKeySchema{position: s.position + "." + key, mergeKeys: s.mergeKeys}

	var meta strategicpatch.PatchMeta
	if mergeKey, ok := s.mergeKeys[next.position]; ok {
		meta.SetPatchStrategies([]string{"merge"})
		meta.SetPatchMergeKey(mergeKey)
	} else if mergeKey, ok := s.mergeKeys[wildcardPosition(s.position)+"."+key]; ok {
		meta.SetPatchStrategies([]string{"merge"})
		meta.SetPatchMergeKey(mergeKey)
	}
	return next, meta, nil
}

func (s mergeKeySchema) Name() string {
	return s.position
}

// wildcardPosition turns a kind-qualified position ("Deployment.spec.template...") into its
// "*"-prefixed form for cross-kind merge-key table entries; a bare kind becomes just "*".
func wildcardPosition(position string) string {
	if i := strings.IndexByte(position, '.'); i >= 0 {
		return "*" + position[i:]
	}
	return "*"
}

// deepCopyValue recursively copies a map[string]any/[]any tree, used by ApplyAll to give each
// temporary patch a fresh starting point without mutating the caller's manifest.
func deepCopyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(x))
		for k, val := range x {
			result[k] = deepCopyValue(val)
		}
		return result
	case []any:
		result := make([]any, len(x))
		for i, val := range x {
			result[i] = deepCopyValue(val)
		}
		return result
	default:
		return x
	}
}
