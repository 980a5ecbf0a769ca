/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package leaderelection

import (
	"context"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Disabled is an Elector that always considers this instance the leader, for dry-run and
// single-instance deployments, grounded on oper8's DryRunLeadershipManager.
type Disabled struct{}

// NewDisabled constructs a Disabled Elector.
func NewDisabled() *Disabled { return &Disabled{} }

func (*Disabled) Acquire(context.Context, bool) bool { return true }

func (*Disabled) AcquireResource(context.Context, *unstructured.Unstructured) bool { return true }

func (*Disabled) Release(context.Context) {}

func (*Disabled) ReleaseResource(context.Context, *unstructured.Unstructured) {}

func (*Disabled) IsLeader(*unstructured.Unstructured) bool { return true }
