/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package cluster

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/sap/go-generics/slices"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/structured-merge-diff/v6/fieldpath"
)

// migrateFieldManager folds every managedFields entry whose manager matches legacyPrefixes (or
// equals manager itself) into a single entry owned by manager, union-merging their field sets.
// This lets an operator rename its own field manager (e.g. after a binary rename) across a
// version bump without the API server treating the old entries as foreign and refusing to let the
// new manager touch those fields on the next apply.
func migrateFieldManager(managedFields []metav1.ManagedFieldsEntry, legacyPrefixes []string, manager string) ([]metav1.ManagedFieldsEntry, bool, error) {
	if len(legacyPrefixes) == 0 {
		return managedFields, false, nil
	}

	var current metav1.ManagedFieldsEntry
	var haveCurrent bool
	for _, entry := range managedFields {
		if entry.Manager == manager && entry.Operation == metav1.ManagedFieldsOperationApply {
			current = entry
			haveCurrent = true
		}
	}

	entries := make([]metav1.ManagedFieldsEntry, 0, len(managedFields))
	changed := false
	matchesLegacy := func(m string) bool {
		return m != manager && slices.Any(legacyPrefixes, func(prefix string) bool { return strings.HasPrefix(m, prefix) })
	}

	for _, entry := range managedFields {
		if haveCurrent && entry == current {
			continue
		}
		if entry.Subresource != "" || !matchesLegacy(entry.Manager) {
			entries = append(entries, entry)
			continue
		}
		if !haveCurrent {
			entry.Manager = manager
			entry.Operation = metav1.ManagedFieldsOperationApply
			current = entry
			haveCurrent = true
			changed = true
			continue
		}
		merged, err := mergeManagedFieldsV1(current.FieldsV1, entry.FieldsV1)
		if err != nil {
			return nil, false, errors.Wrap(err, "unable to merge managed fields during field manager migration")
		}
		current.FieldsV1 = merged
		changed = true
	}
	if haveCurrent {
		entries = append(entries, current)
	}
	return entries, changed, nil
}

func mergeManagedFieldsV1(prevField, newField *metav1.FieldsV1) (*metav1.FieldsV1, error) {
	switch {
	case prevField == nil && newField == nil:
		return nil, nil
	case prevField == nil:
		return newField, nil
	case newField == nil:
		return prevField, nil
	}

	prevSet, err := fieldsToSet(*prevField)
	if err != nil {
		return nil, err
	}
	newSet, err := fieldsToSet(*newField)
	if err != nil {
		return nil, err
	}
	unionSet := prevSet.Union(&newSet)
	mergedField, err := setToFields(*unionSet)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert merged field set back to FieldsV1")
	}
	return &mergedField, nil
}

func fieldsToSet(f metav1.FieldsV1) (s fieldpath.Set, err error) {
	err = s.FromJSON(bytes.NewReader(f.Raw))
	return s, err
}

func setToFields(s fieldpath.Set) (f metav1.FieldsV1, err error) {
	f.Raw, err = s.ToJSON()
	return f, err
}
