/*
SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

/*
Package status contains (kstatus-like) logic to compute the status of Kubernetes resources.
*/
package status
