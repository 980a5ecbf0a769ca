/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package engine

import (
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// ConditionType names one of the status conditions §3/§4.4 step 8 require.
type ConditionType string

const (
	ConditionTypeReady    ConditionType = "Ready"
	ConditionTypeUpdating ConditionType = "Updating"
)

// ConditionStatus is the tri-state a condition carries, mirroring metav1.ConditionStatus's values.
type ConditionStatus string

const (
	ConditionTrue    ConditionStatus = "True"
	ConditionFalse   ConditionStatus = "False"
	ConditionUnknown ConditionStatus = "Unknown"
)

// Canonical status-condition reasons (§6).
const (
	ReasonStable            = "Stable"
	ReasonInProgress        = "InProgress"
	ReasonInitializing      = "Initializing"
	ReasonConfigError       = "ConfigError"
	ReasonPreconditionError = "PreconditionError"
	ReasonVerificationError = "VerificationError"
	ReasonClusterError      = "ClusterError"
	ReasonRolloutError      = "RolloutError"
	ReasonErrored           = "Errored"
	ReasonFinalizing        = "Finalizing"
)

// Condition is one entry of the status.conditions list the engine writes via
// cluster.Adapter.SetStatus. It generalizes pkg/component/component.go's single ConditionTypeReady
// Status.SetState into the Ready+Updating pair §4.4 step 8 names.
type Condition struct {
	Type               ConditionType
	Status             ConditionStatus
	Reason             string
	Message            string
	LastTransitionTime time.Time
}

// computeStatus builds the status map the engine hands to adapter.SetStatus, preserving each
// condition's lastTransitionTime from cr's previously observed status wherever reason is unchanged
// (§3's Status Conditions invariant), and otherwise stamping it with the current time.
func computeStatus(cr *unstructured.Unstructured, outcome Outcome, finalizing bool) map[string]any {
	now := time.Now().UTC()
	existing := existingConditions(cr)

	readyStatus, readyReason, readyMessage := readyCondition(outcome, finalizing)
	ready := mergeCondition(existing[ConditionTypeReady], Condition{
		Type:               ConditionTypeReady,
		Status:             readyStatus,
		Reason:             readyReason,
		Message:            readyMessage,
		LastTransitionTime: now,
	})

	updatingStatus, updatingReason, updatingMessage := updatingCondition(outcome, finalizing)
	updating := mergeCondition(existing[ConditionTypeUpdating], Condition{
		Type:               ConditionTypeUpdating,
		Status:             updatingStatus,
		Reason:             updatingReason,
		Message:            updatingMessage,
		LastTransitionTime: now,
	})

	return map[string]any{
		"conditions": []any{conditionToMap(ready), conditionToMap(updating)},
	}
}

// readyCondition implements §4.4 step 8's Ready taxonomy.
func readyCondition(o Outcome, finalizing bool) (ConditionStatus, string, string) {
	if o.Err != nil {
		return ConditionFalse, o.Err.Reason(), o.Err.Error()
	}
	if finalizing {
		return ConditionFalse, ReasonFinalizing, "components are being disabled"
	}
	if o.Summary.Failed > 0 {
		return ConditionFalse, ReasonRolloutError, "one or more components failed to roll out"
	}
	if o.Summary.Total == 0 {
		return ConditionFalse, ReasonInitializing, "no components configured yet"
	}
	if o.Summary.Verified == o.Summary.Total {
		return ConditionTrue, ReasonStable, "all components deployed and verified"
	}
	return ConditionFalse, ReasonInProgress, "one or more components not yet verified"
}

// updatingCondition mirrors readyCondition's taxonomy, biased toward InProgress while any
// Component is mid-rollout, per §4.4 step 8.
func updatingCondition(o Outcome, finalizing bool) (ConditionStatus, string, string) {
	if o.Err != nil {
		return ConditionTrue, o.Err.Reason(), o.Err.Error()
	}
	if finalizing {
		return ConditionTrue, ReasonFinalizing, "components are being disabled"
	}
	if o.Summary.Total == 0 {
		return ConditionTrue, ReasonInitializing, "no components configured yet"
	}
	if o.Summary.Failed == 0 && o.Summary.Verified == o.Summary.Total {
		return ConditionFalse, ReasonStable, "no rollout in progress"
	}
	return ConditionTrue, ReasonInProgress, "rollout in progress"
}

// mergeCondition keeps prev's LastTransitionTime when reason hasn't changed, per §3's invariant;
// a zero-value prev (no prior condition of this type) always adopts next's stamp as-is.
func mergeCondition(prev Condition, next Condition) Condition {
	if prev.Type != "" && prev.Reason == next.Reason {
		next.LastTransitionTime = prev.LastTransitionTime
	}
	return next
}

func conditionToMap(c Condition) map[string]any {
	return map[string]any{
		"type":               string(c.Type),
		"status":             string(c.Status),
		"reason":             c.Reason,
		"message":            c.Message,
		"lastTransitionTime": c.LastTransitionTime.Format(time.RFC3339),
	}
}

// existingConditions reads cr's previously observed status.conditions, keyed by type, so
// computeStatus can decide whether to preserve lastTransitionTime.
func existingConditions(cr *unstructured.Unstructured) map[ConditionType]Condition {
	out := map[ConditionType]Condition{}
	raw, found, err := unstructured.NestedSlice(cr.Object, "status", "conditions")
	if !found || err != nil {
		return out
	}
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := Condition{
			Type:    ConditionType(stringOf(m["type"])),
			Status:  ConditionStatus(stringOf(m["status"])),
			Reason:  stringOf(m["reason"]),
			Message: stringOf(m["message"]),
		}
		if ts := stringOf(m["lastTransitionTime"]); ts != "" {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				c.LastTransitionTime = parsed
			}
		}
		out[c.Type] = c
	}
	return out
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}
