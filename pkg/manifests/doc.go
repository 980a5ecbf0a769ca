/*
SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

/*
Package manifests contains types and functionality around generating (rendering) the descriptors of the component's dependent resources.
Most prominently, this includes the Generator interface, the KustomizeController and HelmController implementation, and logic to enhance existing generators.
*/
package manifests
