//go:build tools
// +build tools

/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	_ "sigs.k8s.io/controller-tools/cmd/controller-gen"
)
