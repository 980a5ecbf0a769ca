/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package patch

import (
	"strings"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/types"
)

// PatchType selects which engine a TemporaryPatch uses.
type PatchType string

const (
	PatchTypeStrategicMerge PatchType = "patchStrategicMerge"
	PatchTypeJSON6902       PatchType = "patchJson6902"
)

// TemporaryPatch is the engine's view of a user-authored TemporaryPatch custom resource (§6):
// a patch type, a scoped internal target path of the form "<componentName>.<nodeName>[.<subPath>...]",
// and the patch body itself (a merge dict for strategic merge, a list of operations for JSON patch).
type TemporaryPatch struct {
	Name       types.NamespacedName
	PatchType  PatchType
	TargetPath string
	Body       any
}

// ApplyAll applies every patch in patches whose TargetPath matches internalName (the dotted
// "<componentName>.<nodeName>[...]" name of the object being rendered) to resource, in the order
// given, and returns the result. Neither resource nor the patches are mutated.
func ApplyAll(resource map[string]any, internalName string, patches []TemporaryPatch) (map[string]any, error) {
	result := deepCopyValue(resource).(map[string]any)
	for _, p := range patches {
		body, ok := resolveTargetPath(p.Body, internalName, p.TargetPath)
		if !ok {
			continue
		}
		var err error
		switch p.PatchType {
		case PatchTypeStrategicMerge:
			bodyMap, ok := body.(map[string]any)
			if !ok {
				return nil, errors.Errorf("temporary patch %s: strategic merge patch body at %s is not an object", p.Name, p.TargetPath)
			}
			result, err = StrategicMergePatch(result, bodyMap)
		case PatchTypeJSON6902:
			ops, ok := body.([]any)
			if !ok {
				return nil, errors.Errorf("temporary patch %s: json patch 6902 body at %s is not a list", p.Name, p.TargetPath)
			}
			result, err = JSONPatch(result, ops)
		default:
			return nil, errors.Errorf("temporary patch %s: unsupported patch type %q", p.Name, p.PatchType)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "error applying temporary patch %s", p.Name)
		}
	}
	return result, nil
}

// resolveTargetPath descends into patch body along the dotted path the TemporaryPatch declares,
// checking that it is a prefix of (or equal to) internalName; this mirrors oper8's patch dispatch,
// which walks the internal name component-by-component against the nested patch document.
func resolveTargetPath(body any, internalName, targetPath string) (any, bool) {
	nameParts := strings.Split(internalName, ".")
	pathParts := strings.Split(targetPath, ".")
	if len(pathParts) > len(nameParts) {
		return nil, false
	}
	for i, part := range pathParts {
		if nameParts[i] != part {
			return nil, false
		}
	}
	current := body
	for _, part := range nameParts[len(pathParts):] {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := m[part]
		if !ok {
			return nil, false
		}
		current = next
	}
	if m, ok := current.(map[string]any); ok && len(m) == 0 {
		return nil, false
	}
	return current, true
}
