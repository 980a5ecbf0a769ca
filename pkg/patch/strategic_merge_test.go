/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package patch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStrategicMergePatch_ContainerRestartPolicy(t *testing.T) {
	resource := map[string]any{
		"kind": "Pod",
		"spec": map[string]any{
			"containers": []any{
				map[string]any{"name": "foo", "image": "foo:1.0"},
				map[string]any{"name": "bar", "image": "bar:1.0"},
			},
		},
	}
	patchDoc := map[string]any{
		"spec": map[string]any{
			"containers": []any{
				map[string]any{"name": "foo", "restartPolicy": "OnFailure"},
			},
		},
	}

	result, err := StrategicMergePatch(resource, patchDoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	containers := result["spec"].(map[string]any)["containers"].([]any)
	foo := containers[0].(map[string]any)
	if foo["restartPolicy"] != "OnFailure" {
		t.Errorf("expected restartPolicy OnFailure, got %v", foo["restartPolicy"])
	}
	if foo["image"] != "foo:1.0" {
		t.Errorf("expected image to be untouched, got %v", foo["image"])
	}
	bar := containers[1].(map[string]any)
	if bar["image"] != "bar:1.0" {
		t.Errorf("expected other container untouched, got %v", bar)
	}

	// original inputs must be untouched (pure function)
	origContainers := resource["spec"].(map[string]any)["containers"].([]any)
	if _, ok := origContainers[0].(map[string]any)["restartPolicy"]; ok {
		t.Errorf("input resource must not be mutated")
	}
}

func TestStrategicMergePatch_DeleteMissingElementIsNoop(t *testing.T) {
	resource := map[string]any{
		"kind": "Pod",
		"spec": map[string]any{
			"containers": []any{
				map[string]any{"name": "foo"},
			},
		},
	}
	patchDoc := map[string]any{
		"spec": map[string]any{
			"containers": []any{
				map[string]any{"name": "missing", "$patch": "delete"},
			},
		},
	}
	result, err := StrategicMergePatch(resource, patchDoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	containers := result["spec"].(map[string]any)["containers"].([]any)
	if len(containers) != 1 || containers[0].(map[string]any)["name"] != "foo" {
		t.Errorf("expected the untouched container to survive a delete of a nonexistent element, got %v", containers)
	}
}

func TestStrategicMergePatch_NullDeletesKey(t *testing.T) {
	resource := map[string]any{"kind": "ConfigMap", "data": map[string]any{"a": "1", "b": "2"}}
	patchDoc := map[string]any{"data": map[string]any{"a": nil}}

	result, err := StrategicMergePatch(resource, patchDoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := result["data"].(map[string]any)
	if _, ok := data["a"]; ok {
		t.Errorf("expected key 'a' to be deleted")
	}
	if data["b"] != "2" {
		t.Errorf("expected key 'b' to be untouched")
	}
}

func TestStrategicMergePatch_NoMergeKeyReplacesWholesale(t *testing.T) {
	resource := map[string]any{"kind": "Widget", "spec": map[string]any{"tags": []any{"a", "b"}}}
	patchDoc := map[string]any{"spec": map[string]any{"tags": []any{"c"}}}

	result, err := StrategicMergePatch(resource, patchDoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]any{"c"}, result["spec"].(map[string]any)["tags"]); diff != "" {
		t.Errorf("unexpected tags (-want +got):\n%s", diff)
	}
}

func TestStrategicMergePatch_Determinism(t *testing.T) {
	resource := map[string]any{
		"kind": "Pod",
		"spec": map[string]any{
			"containers": []any{map[string]any{"name": "foo", "image": "foo:1.0"}},
		},
	}
	patchDoc := map[string]any{
		"spec": map[string]any{
			"containers": []any{map[string]any{"name": "foo", "restartPolicy": "OnFailure"}},
		},
	}

	first, err := StrategicMergePatch(resource, patchDoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := StrategicMergePatch(resource, patchDoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("patch application is not deterministic (-first +second):\n%s", diff)
	}
}

func TestJSONPatch(t *testing.T) {
	resource := map[string]any{"spec": map[string]any{"replicas": float64(1)}}
	ops := []any{
		map[string]any{"op": "replace", "path": "/spec/replicas", "value": float64(3)},
	}
	result, err := JSONPatch(resource, ops)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["spec"].(map[string]any)["replicas"] != float64(3) {
		t.Errorf("expected replicas 3, got %v", result["spec"].(map[string]any)["replicas"])
	}
}
