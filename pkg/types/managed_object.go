/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package types

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// ManagedObject wraps a full manifest together with a cached decomposition of the fields the
// core actually inspects. Once constructed for a given event it is never mutated; a new event
// always produces a new ManagedObject rather than patching an existing one in place.
type ManagedObject struct {
	manifest        *unstructured.Unstructured
	apiVersion      string
	kind            string
	namespace       string
	name            string
	uid             string
	resourceVersion string
}

// NewManagedObject decomposes manifest once and freezes the result.
func NewManagedObject(manifest *unstructured.Unstructured) *ManagedObject {
	return &ManagedObject{
		manifest:        manifest,
		apiVersion:      manifest.GetAPIVersion(),
		kind:            manifest.GetKind(),
		namespace:       manifest.GetNamespace(),
		name:            manifest.GetName(),
		uid:             string(manifest.GetUID()),
		resourceVersion: manifest.GetResourceVersion(),
	}
}

func (o *ManagedObject) Manifest() *unstructured.Unstructured { return o.manifest }
func (o *ManagedObject) APIVersion() string                   { return o.apiVersion }
func (o *ManagedObject) Kind() string                         { return o.kind }
func (o *ManagedObject) Namespace() string                    { return o.namespace }
func (o *ManagedObject) Name() string                         { return o.name }
func (o *ManagedObject) UID() string                          { return o.uid }
func (o *ManagedObject) ResourceVersion() string               { return o.resourceVersion }

// ResourceId returns the concrete (named) ResourceId for this object.
func (o *ManagedObject) ResourceId() ResourceId {
	group, version := splitAPIVersion(o.apiVersion)
	return ResourceId{Group: group, Version: version, Kind: o.kind, Namespace: o.namespace, Name: o.name}
}

// IdentityKey returns the key used for equality: the uid if present, otherwise apiVersion+kind+name.
// This mirrors the fallback the Managed Object data model prescribes for clusters (or dry-run
// adapters) that do not assign uids to every object up front.
func (o *ManagedObject) IdentityKey() string {
	if o.uid != "" {
		return "uid:" + o.uid
	}
	return "tuple:" + o.apiVersion + "/" + o.kind + "/" + o.name
}

// Equal implements the data model's equality rule: same uid, or, if uid absent on either side,
// same (apiVersion, kind, name).
func (o *ManagedObject) Equal(other *ManagedObject) bool {
	if other == nil {
		return false
	}
	return o.IdentityKey() == other.IdentityKey()
}

func splitAPIVersion(apiVersion string) (group, version string) {
	for i := len(apiVersion) - 1; i >= 0; i-- {
		if apiVersion[i] == '/' {
			return apiVersion[:i], apiVersion[i+1:]
		}
	}
	return "", apiVersion
}
