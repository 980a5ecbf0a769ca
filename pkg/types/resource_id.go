/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package types

import "fmt"

// ResourceId is the immutable identity of an API object (or a collection of API objects of the
// same kind, if Name is empty) as used throughout watch registration and reconcile requests.
// Namespace is empty for cluster-scoped kinds or collection watches spanning all namespaces.
type ResourceId struct {
	Group     string
	Version   string
	Kind      string
	Namespace string
	Name      string
}

// GlobalId returns the kind.version.group form used as the top-level key in watch registration tables.
func (id ResourceId) GlobalId() string {
	if id.Group == "" {
		return fmt.Sprintf("%s.%s", id.Kind, id.Version)
	}
	return fmt.Sprintf("%s.%s.%s", id.Kind, id.Version, id.Group)
}

// NamespacedId returns the namespace-qualified global id; equal to GlobalId() for cluster-scoped ids.
func (id ResourceId) NamespacedId() string {
	if id.Namespace == "" {
		return id.GlobalId()
	}
	return fmt.Sprintf("%s.%s", id.Namespace, id.GlobalId())
}

// NamedId returns the fully qualified per-object key; only meaningful if Name is set.
func (id ResourceId) NamedId() string {
	return fmt.Sprintf("%s.%s", id.Name, id.NamespacedId())
}

// IsCollection reports whether this id denotes a collection watch (no concrete object name).
func (id ResourceId) IsCollection() bool {
	return id.Name == ""
}

// WithName returns a copy of id with Name set; used to materialize a collection id into a concrete one.
func (id ResourceId) WithName(name string) ResourceId {
	id.Name = name
	return id
}

// WithNamespace returns a copy of id with Namespace set.
func (id ResourceId) WithNamespace(namespace string) ResourceId {
	id.Namespace = namespace
	return id
}

func (id ResourceId) String() string {
	if id.Name == "" {
		return id.NamespacedId()
	}
	return id.NamedId()
}
