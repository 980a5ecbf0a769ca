/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package engine

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/sap/component-operator-runtime/pkg/filters"
)

// gate implements §4.4 step 1. proceed=false means Reconcile should return result immediately:
// no Session is constructed, no status is written, no finalizer is touched.
func gate(cr *unstructured.Unstructured, finalizerName string, finalizing bool) (proceed bool, result ctrl.Result) {
	if _, paused := cr.GetAnnotations()[filters.PauseAnnotation]; paused {
		return false, ctrl.Result{}
	}
	if finalizing && finalizerName == "" {
		return false, ctrl.Result{}
	}
	return true, ctrl.Result{}
}
