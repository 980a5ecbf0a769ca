/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package patch

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/pkg/errors"
)

// JSONPatch applies an RFC-6902 patch (a list of operations) to resource. Non-list patches are
// rejected, per §4.2. The input is not mutated.
func JSONPatch(resource map[string]any, operations []any) (map[string]any, error) {
	resourceBytes, err := json.Marshal(resource)
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling resource")
	}
	patchBytes, err := json.Marshal(operations)
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling patch operations")
	}

	decoded, err := jsonpatch.DecodePatch(patchBytes)
	if err != nil {
		return nil, errors.Wrap(err, "invalid JSON patch 6902 document")
	}
	patchedBytes, err := decoded.Apply(resourceBytes)
	if err != nil {
		return nil, errors.Wrap(err, "error applying JSON patch 6902")
	}

	var patched map[string]any
	if err := json.Unmarshal(patchedBytes, &patched); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling patched resource")
	}
	return patched, nil
}
