/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package types

import "testing"

func TestResourceIdGlobalId(t *testing.T) {
	grouped := ResourceId{Group: "apps", Version: "v1", Kind: "Deployment"}
	if got, want := grouped.GlobalId(), "Deployment.v1.apps"; got != want {
		t.Errorf("GlobalId() = %q, want %q", got, want)
	}
	core := ResourceId{Version: "v1", Kind: "ConfigMap"}
	if got, want := core.GlobalId(), "ConfigMap.v1"; got != want {
		t.Errorf("GlobalId() = %q, want %q", got, want)
	}
}

func TestResourceIdNamespacedId(t *testing.T) {
	id := ResourceId{Version: "v1", Kind: "ConfigMap", Namespace: "default"}
	if got, want := id.NamespacedId(), "default.ConfigMap.v1"; got != want {
		t.Errorf("NamespacedId() = %q, want %q", got, want)
	}
	clusterScoped := ResourceId{Version: "v1", Kind: "Namespace"}
	if got, want := clusterScoped.NamespacedId(), clusterScoped.GlobalId(); got != want {
		t.Errorf("NamespacedId() = %q, want GlobalId() %q", got, want)
	}
}

func TestResourceIdNamedIdAndString(t *testing.T) {
	id := ResourceId{Version: "v1", Kind: "ConfigMap", Namespace: "default", Name: "cfg"}
	if got, want := id.NamedId(), "cfg.default.ConfigMap.v1"; got != want {
		t.Errorf("NamedId() = %q, want %q", got, want)
	}
	if got, want := id.String(), id.NamedId(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	collection := ResourceId{Version: "v1", Kind: "ConfigMap", Namespace: "default"}
	if got, want := collection.String(), collection.NamespacedId(); got != want {
		t.Errorf("String() for collection id = %q, want %q", got, want)
	}
}

func TestResourceIdIsCollection(t *testing.T) {
	if !(ResourceId{Kind: "ConfigMap"}).IsCollection() {
		t.Errorf("expected a nameless id to be a collection id")
	}
	if (ResourceId{Kind: "ConfigMap", Name: "cfg"}).IsCollection() {
		t.Errorf("expected a named id to not be a collection id")
	}
}

func TestResourceIdWithNameAndNamespaceDoNotMutateReceiver(t *testing.T) {
	base := ResourceId{Kind: "ConfigMap", Version: "v1"}
	named := base.WithName("cfg")
	if base.Name != "" {
		t.Errorf("WithName mutated the receiver's Name field")
	}
	if named.Name != "cfg" {
		t.Errorf("WithName() Name = %q, want %q", named.Name, "cfg")
	}
	namespaced := named.WithNamespace("default")
	if named.Namespace != "" {
		t.Errorf("WithNamespace mutated the receiver's Namespace field")
	}
	if namespaced.Namespace != "default" || namespaced.Name != "cfg" {
		t.Errorf("WithNamespace() = %+v, want Namespace=default Name=cfg", namespaced)
	}
}
