/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

/*
Package component contains central interfaces (most importantly, the Component interface) and the generic component reconciler.
*/
package component
