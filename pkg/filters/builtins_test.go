/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package filters

import (
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/sap/component-operator-runtime/pkg/cluster"
)

func newResource(generation int64, annotations map[string]any) *unstructured.Unstructured {
	object := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]any{
			"name":      "foo",
			"namespace": "default",
		},
		"data": map[string]any{"k": "v"},
	}}
	if generation != 0 {
		object.SetGeneration(generation)
	}
	if annotations != nil {
		anns := map[string]string{}
		for k, v := range annotations {
			anns[k] = v.(string)
		}
		object.SetAnnotations(anns)
	}
	return object
}

func TestCreationDeletion(t *testing.T) {
	f := NewCreationDeletion(nil)
	if d, ok := f.Test(nil, cluster.WatchEventAdded); !ok || !d {
		t.Errorf("expected ADDED to pass")
	}
	if d, ok := f.Test(nil, cluster.WatchEventDeleted); !ok || !d {
		t.Errorf("expected DELETED to pass")
	}
	if _, ok := f.Test(nil, cluster.WatchEventModified); ok {
		t.Errorf("expected MODIFIED to have no opinion")
	}
}

func TestGeneration(t *testing.T) {
	f := NewGeneration(nil)
	r1 := newResource(1, nil)

	if _, ok := f.Test(r1, cluster.WatchEventModified); ok {
		t.Errorf("expected no opinion before first Update")
	}
	f.Update(r1)

	if d, ok := f.Test(r1, cluster.WatchEventModified); !ok || d {
		t.Errorf("expected unchanged generation to fail, got decision=%v ok=%v", d, ok)
	}

	r2 := newResource(2, nil)
	if d, ok := f.Test(r2, cluster.WatchEventModified); !ok || !d {
		t.Errorf("expected changed generation to pass")
	}
	if _, ok := f.Test(r2, cluster.WatchEventAdded); ok {
		t.Errorf("expected ADDED to have no opinion")
	}
}

func TestNoGeneration(t *testing.T) {
	f := NewNoGeneration(newResource(0, nil))
	r1 := newResource(0, nil)
	f.Update(r1)

	if d, ok := f.Test(r1, cluster.WatchEventModified); !ok || d {
		t.Errorf("expected unchanged object to fail")
	}

	r2 := newResource(0, nil)
	r2.Object["data"] = map[string]any{"k": "changed"}
	if d, ok := f.Test(r2, cluster.WatchEventModified); !ok || !d {
		t.Errorf("expected changed data section to pass")
	}

	generational := NewNoGeneration(newResource(1, nil))
	generational.Update(newResource(1, nil))
	if _, ok := generational.Test(newResource(2, nil), cluster.WatchEventModified); ok {
		t.Errorf("expected generation-supporting resources to have no opinion")
	}
}

func TestResourceVersion(t *testing.T) {
	f := NewResourceVersion(nil)
	r := newResource(0, nil)
	r.SetResourceVersion("100")

	if d, ok := f.Test(r, cluster.WatchEventModified); !ok || !d {
		t.Errorf("expected unseen resourceVersion to pass")
	}
	f.Update(r)
	if d, ok := f.Test(r, cluster.WatchEventModified); !ok || d {
		t.Errorf("expected seen resourceVersion to fail")
	}
	if _, ok := f.Test(r, cluster.WatchEventDeleted); ok {
		t.Errorf("expected DELETED to have no opinion")
	}
}

func TestAnnotation(t *testing.T) {
	f := NewAnnotation(nil)
	r1 := newResource(0, map[string]any{"a": "1"})
	f.Update(r1)

	if d, ok := f.Test(r1, cluster.WatchEventModified); !ok || d {
		t.Errorf("expected unchanged annotations to fail")
	}

	r2 := newResource(0, map[string]any{"a": "2"})
	if d, ok := f.Test(r2, cluster.WatchEventModified); !ok || !d {
		t.Errorf("expected changed annotations to pass")
	}
}

func TestUserAnnotationMasksPlatformKeys(t *testing.T) {
	f := NewUserAnnotation(nil)
	r1 := newResource(0, map[string]any{"k8s.io/managed": "1"})
	f.Update(r1)

	r2 := newResource(0, map[string]any{"k8s.io/managed": "2"})
	if d, ok := f.Test(r2, cluster.WatchEventModified); !ok || d {
		t.Errorf("expected platform-only annotation churn to fail, got decision=%v", d)
	}

	r3 := newResource(0, map[string]any{"k8s.io/managed": "2", "app.example.com/version": "v2"})
	if d, ok := f.Test(r3, cluster.WatchEventModified); !ok || !d {
		t.Errorf("expected user annotation change to pass")
	}
}

func TestPause(t *testing.T) {
	f := NewPause(nil)
	if d, _ := f.Test(newResource(0, nil), cluster.WatchEventModified); !d {
		t.Errorf("expected unpaused resource to pass")
	}
	paused := newResource(0, map[string]any{PauseAnnotation: "true"})
	if d, _ := f.Test(paused, cluster.WatchEventModified); d {
		t.Errorf("expected paused resource to fail")
	}
}

func TestDependent(t *testing.T) {
	f := NewDependent(nil)
	if d, _ := f.Test(nil, cluster.WatchEventAdded); d {
		t.Errorf("expected ADDED to fail")
	}
	if d, _ := f.Test(nil, cluster.WatchEventModified); !d {
		t.Errorf("expected MODIFIED to pass")
	}
	if d, _ := f.Test(nil, cluster.WatchEventDeleted); !d {
		t.Errorf("expected DELETED to pass")
	}
}

func TestLabel(t *testing.T) {
	factory := NewLabelFactory(map[string]string{"team": "infra"})
	f := factory(nil)

	r := newResource(0, nil)
	r.SetLabels(map[string]string{"team": "infra", "extra": "x"})
	if d, ok := f.Test(r, cluster.WatchEventModified); !ok || !d {
		t.Errorf("expected matching labels to pass")
	}

	r.SetLabels(map[string]string{"team": "other"})
	if d, ok := f.Test(r, cluster.WatchEventModified); !ok || d {
		t.Errorf("expected mismatched labels to fail")
	}
}

func TestEnableDisable(t *testing.T) {
	if d, ok := NewEnable(nil).Test(nil, cluster.WatchEventModified); !ok || !d {
		t.Errorf("expected Enable to always pass")
	}
	if d, ok := NewDisable(nil).Test(nil, cluster.WatchEventModified); !ok || d {
		t.Errorf("expected Disable to always fail")
	}
}

func TestNamed(t *testing.T) {
	if _, ok := Named("default"); !ok {
		t.Errorf("expected default pipeline to resolve")
	}
	if _, ok := Named("annotation"); !ok {
		t.Errorf("expected annotation pipeline to resolve")
	}
	if _, ok := Named("bogus"); ok {
		t.Errorf("expected unknown pipeline name to fail resolution")
	}
}
