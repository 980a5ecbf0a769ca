/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package filters

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/sap/component-operator-runtime/pkg/cluster"
)

// PauseAnnotation, when present (any value) on a resource, makes the Pause filter reject every
// event for it.
const PauseAnnotation = "component-operator-runtime/paused"

// reservedPlatformAnnotations are masked out by the UserAnnotation filter, mirroring the source's
// RESERVED_PLATFORM_ANNOTATIONS list.
var reservedPlatformAnnotations = []string{"k8s.io", "kubernetes.io", "openshift.io"}

// resourceVersionKeepCount bounds the ResourceVersion filter's memory, mirroring the source's
// RESOURCE_VERSION_KEEP_COUNT.
const resourceVersionKeepCount = 20

func objectHash(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func annotationsOf(resource *unstructured.Unstructured) map[string]string {
	if resource == nil {
		return nil
	}
	return resource.GetAnnotations()
}

// CreationDeletion passes ADDED and DELETED events; has no opinion about MODIFIED.
type CreationDeletion struct{}

func NewCreationDeletion(*unstructured.Unstructured) Filter { return &CreationDeletion{} }

func (f *CreationDeletion) Test(_ *unstructured.Unstructured, event cluster.WatchEventType) (bool, bool) {
	if event != cluster.WatchEventAdded && event != cluster.WatchEventDeleted {
		return false, false
	}
	return true, true
}

func (f *CreationDeletion) Update(*unstructured.Unstructured) {}

// Generation passes MODIFIED iff metadata.generation changed since last observed; has no opinion
// on resources that don't carry a generation, or on ADDED/DELETED events.
type Generation struct {
	generation int64
	seen       bool
}

func NewGeneration(*unstructured.Unstructured) Filter { return &Generation{} }

func (f *Generation) Test(resource *unstructured.Unstructured, event cluster.WatchEventType) (bool, bool) {
	if !f.seen {
		return false, false
	}
	if event == cluster.WatchEventAdded || event == cluster.WatchEventDeleted {
		return false, false
	}
	return f.generation != resource.GetGeneration(), true
}

func (f *Generation) Update(resource *unstructured.Unstructured) {
	f.generation = resource.GetGeneration()
	f.seen = resource.GetGeneration() != 0
}

// NoGeneration passes MODIFIED iff the hash of any top-level section (excluding metadata, status,
// kind, apiVersion) changed; only active for resources that don't support generation.
type NoGeneration struct {
	supportsGeneration bool
	hashes             map[string]string
}

func NewNoGeneration(resource *unstructured.Unstructured) Filter {
	return &NoGeneration{supportsGeneration: resource.GetGeneration() != 0}
}

func (f *NoGeneration) Test(resource *unstructured.Unstructured, event cluster.WatchEventType) (bool, bool) {
	if f.supportsGeneration || len(f.hashes) == 0 {
		return false, false
	}
	if event == cluster.WatchEventAdded || event == cluster.WatchEventDeleted {
		return false, false
	}
	for key, hash := range f.hashes {
		if hash != objectHash(resource.Object[key]) {
			return true, true
		}
	}
	return false, true
}

func (f *NoGeneration) Update(resource *unstructured.Unstructured) {
	if f.supportsGeneration {
		return
	}
	if f.hashes == nil {
		f.hashes = map[string]string{}
	}
	for key, value := range resource.Object {
		switch key {
		case "metadata", "status", "kind", "apiVersion":
			continue
		}
		f.hashes[key] = objectHash(value)
	}
}

// ResourceVersion passes iff the event's resourceVersion hasn't been seen in a bounded trailing
// window; DELETED has no opinion (a deletion is never a duplicate worth suppressing).
type ResourceVersion struct {
	seen []string
}

func NewResourceVersion(*unstructured.Unstructured) Filter { return &ResourceVersion{} }

func (f *ResourceVersion) Test(resource *unstructured.Unstructured, event cluster.WatchEventType) (bool, bool) {
	if event == cluster.WatchEventDeleted {
		return false, false
	}
	rv := resource.GetResourceVersion()
	for _, v := range f.seen {
		if v == rv {
			return false, true
		}
	}
	return true, true
}

func (f *ResourceVersion) Update(resource *unstructured.Unstructured) {
	f.seen = append(f.seen, resource.GetResourceVersion())
	if len(f.seen) > resourceVersionKeepCount {
		f.seen = f.seen[len(f.seen)-resourceVersionKeepCount:]
	}
}

// Annotation passes MODIFIED iff the resource's annotations changed since last observed.
type Annotation struct {
	hash    string
	project func(*unstructured.Unstructured) map[string]string
}

func NewAnnotation(*unstructured.Unstructured) Filter {
	return &Annotation{project: annotationsOf}
}

func (f *Annotation) Test(resource *unstructured.Unstructured, event cluster.WatchEventType) (bool, bool) {
	if event == cluster.WatchEventAdded || event == cluster.WatchEventDeleted {
		return false, false
	}
	return f.hash != objectHash(f.project(resource)), true
}

func (f *Annotation) Update(resource *unstructured.Unstructured) {
	f.hash = objectHash(f.project(resource))
}

// UserAnnotation is Annotation with reserved platform annotation keys (k8s.io, kubernetes.io,
// openshift.io substrings) masked out, so platform-managed annotation churn doesn't trigger
// reconciles.
func NewUserAnnotation(*unstructured.Unstructured) Filter {
	return &Annotation{project: userAnnotations}
}

func userAnnotations(resource *unstructured.Unstructured) map[string]string {
	out := map[string]string{}
	for key, value := range annotationsOf(resource) {
		if containsPlatformKey(key) {
			continue
		}
		out[key] = value
	}
	return out
}

func containsPlatformKey(key string) bool {
	for _, reserved := range reservedPlatformAnnotations {
		if strings.Contains(key, reserved) {
			return true
		}
	}
	return false
}

// Pause rejects every event for a resource carrying PauseAnnotation.
type Pause struct{}

func NewPause(*unstructured.Unstructured) Filter { return &Pause{} }

func (f *Pause) Test(resource *unstructured.Unstructured, _ cluster.WatchEventType) (bool, bool) {
	_, paused := annotationsOf(resource)[PauseAnnotation]
	return !paused, true
}

func (f *Pause) Update(*unstructured.Unstructured) {}

// SubsystemStatus passes MODIFIED iff the resource's Ready condition reason changed since last
// observed.
type SubsystemStatus struct {
	reason string
}

func NewSubsystemStatus(*unstructured.Unstructured) Filter { return &SubsystemStatus{} }

func (f *SubsystemStatus) Test(resource *unstructured.Unstructured, event cluster.WatchEventType) (bool, bool) {
	if event == cluster.WatchEventAdded || event == cluster.WatchEventDeleted {
		return false, false
	}
	return f.reason != readyReason(resource), true
}

func (f *SubsystemStatus) Update(resource *unstructured.Unstructured) {
	f.reason = readyReason(resource)
}

func readyReason(resource *unstructured.Unstructured) string {
	conditions, found, _ := unstructured.NestedSlice(resource.Object, "status", "conditions")
	if !found {
		return ""
	}
	for _, raw := range conditions {
		condition, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if condition["type"] != "Ready" {
			continue
		}
		reason, _ := condition["reason"].(string)
		return reason
	}
	return ""
}

// Dependent rejects ADDED (the owner already knows it created the child) and passes MODIFIED and
// DELETED.
type Dependent struct{}

func NewDependent(*unstructured.Unstructured) Filter { return &Dependent{} }

func (f *Dependent) Test(_ *unstructured.Unstructured, event cluster.WatchEventType) (bool, bool) {
	return event != cluster.WatchEventAdded, true
}

func (f *Dependent) Update(*unstructured.Unstructured) {}

// Label passes iff every configured label matches the resource's labels.
type Label struct {
	labels map[string]string
}

func NewLabelFactory(labels map[string]string) Factory {
	return func(*unstructured.Unstructured) Filter {
		return &Label{labels: labels}
	}
}

func (f *Label) Test(resource *unstructured.Unstructured, _ cluster.WatchEventType) (bool, bool) {
	resourceLabels := resource.GetLabels()
	for key, value := range f.labels {
		if resourceLabels[key] != value {
			return false, true
		}
	}
	return true, true
}

func (f *Label) Update(*unstructured.Unstructured) {}

// Enable always passes.
type Enable struct{}

func NewEnable(*unstructured.Unstructured) Filter { return &Enable{} }

func (f *Enable) Test(*unstructured.Unstructured, cluster.WatchEventType) (bool, bool) { return true, true }
func (f *Enable) Update(*unstructured.Unstructured)                                    {}

// Disable always rejects.
type Disable struct{}

func NewDisable(*unstructured.Unstructured) Filter { return &Disable{} }

func (f *Disable) Test(*unstructured.Unstructured, cluster.WatchEventType) (bool, bool) {
	return false, true
}
func (f *Disable) Update(*unstructured.Unstructured) {}

// Default is AND(CreationDeletion, Generation, NoGeneration, ResourceVersion, Pause), per §4.5's
// default pipeline.
func Default() *Pipeline {
	return List(
		Leaf(NewCreationDeletion),
		Leaf(NewGeneration),
		Leaf(NewNoGeneration),
		Leaf(NewResourceVersion),
		Leaf(NewPause),
	)
}

// WithAnnotation is the Annotation pipeline: an OR-extension of Default with the Annotation
// filter, so annotation-only changes also trigger a reconcile.
func WithAnnotation() *Pipeline {
	return Tuple(Default(), Leaf(NewAnnotation))
}

// WithUserAnnotation is the UserAnnotation pipeline: an OR-extension of Default with
// UserAnnotation.
func WithUserAnnotation() *Pipeline {
	return Tuple(Default(), Leaf(NewUserAnnotation))
}

// Named resolves one of the built-in pipeline names ("default", "annotation", "user-annotation")
// used by the `filter` config key, mirroring the source's FILTER_CLASSES lookup table.
func Named(name string) (*Pipeline, bool) {
	switch name {
	case "", "default":
		return Default(), true
	case "annotation":
		return WithAnnotation(), true
	case "user-annotation":
		return WithUserAnnotation(), true
	default:
		return nil, false
	}
}
