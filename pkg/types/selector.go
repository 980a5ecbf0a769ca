/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package types

import (
	"fmt"
	"strings"
)

// Requirement is a single parsed selector requirement, as described in §6 of the framework spec:
// key, !key, key=v / key==v, key!=v, key in (v1,v2), key notin (v1,v2).
type Requirement struct {
	key      string
	operator string
	values   []string
}

// Selector is a parsed, comma-separated list of Requirements (commas outside parentheses separate
// requirements). It is applied identically against labels (label selectors) and against dotted-path
// projections of a manifest (field selectors).
type Selector struct {
	requirements []Requirement
}

// ParseSelector parses the grammar described in §6. An empty string yields a Selector matching everything.
func ParseSelector(expr string) (*Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Selector{}, nil
	}
	parts, err := splitTopLevelComma(expr)
	if err != nil {
		return nil, err
	}
	s := &Selector{}
	for _, part := range parts {
		req, err := parseRequirement(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		s.requirements = append(s.requirements, req)
	}
	return s, nil
}

// splitTopLevelComma splits on commas that are not nested inside parentheses.
func splitTopLevelComma(expr string) ([]string, error) {
	var parts []string
	depth := 0
	start := 0
	for i, r := range expr {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses in selector %q", expr)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, expr[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses in selector %q", expr)
	}
	parts = append(parts, expr[start:])
	return parts, nil
}

func parseRequirement(expr string) (Requirement, error) {
	switch {
	case strings.HasPrefix(expr, "!"):
		return Requirement{key: strings.TrimSpace(expr[1:]), operator: "!"}, nil
	case strings.Contains(expr, "=="):
		kv := strings.SplitN(expr, "==", 2)
		return Requirement{key: strings.TrimSpace(kv[0]), operator: "=", values: []string{strings.TrimSpace(kv[1])}}, nil
	case strings.Contains(expr, "!="):
		kv := strings.SplitN(expr, "!=", 2)
		return Requirement{key: strings.TrimSpace(kv[0]), operator: "!=", values: []string{strings.TrimSpace(kv[1])}}, nil
	case strings.Contains(expr, " notin "):
		return parseSetRequirement(expr, " notin ", "notin")
	case strings.Contains(expr, " in "):
		return parseSetRequirement(expr, " in ", "in")
	case strings.Contains(expr, "="):
		kv := strings.SplitN(expr, "=", 2)
		return Requirement{key: strings.TrimSpace(kv[0]), operator: "=", values: []string{strings.TrimSpace(kv[1])}}, nil
	default:
		return Requirement{key: strings.TrimSpace(expr), operator: "exists"}, nil
	}
}

func parseSetRequirement(expr, sep, operator string) (Requirement, error) {
	kv := strings.SplitN(expr, sep, 2)
	key := strings.TrimSpace(kv[0])
	rest := strings.TrimSpace(kv[1])
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return Requirement{}, fmt.Errorf("expected parenthesized value list in %q", expr)
	}
	rest = strings.TrimSuffix(strings.TrimPrefix(rest, "("), ")")
	var values []string
	for _, v := range strings.Split(rest, ",") {
		values = append(values, strings.TrimSpace(v))
	}
	return Requirement{key: key, operator: operator, values: values}, nil
}

// Matches evaluates the selector against a flat string-keyed map (labels, or a dotted-path
// projection of a manifest for field selectors). A missing key: "!key" is true, presence is
// false, and all comparisons are false, per §6.
func (s *Selector) Matches(fields map[string]string) bool {
	if s == nil {
		return true
	}
	for _, req := range s.requirements {
		if !req.matches(fields) {
			return false
		}
	}
	return true
}

func (r Requirement) matches(fields map[string]string) bool {
	value, present := fields[r.key]
	switch r.operator {
	case "!":
		return !present
	case "exists":
		return present
	case "=":
		return present && value == r.values[0]
	case "!=":
		return present && value != r.values[0]
	case "in":
		if !present {
			return false
		}
		for _, v := range r.values {
			if v == value {
				return true
			}
		}
		return false
	case "notin":
		if !present {
			return false
		}
		for _, v := range r.values {
			if v == value {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ProjectDottedPaths flattens manifest under the given dotted paths (e.g. "metadata.labels.app")
// into a flat string map suitable for Selector.Matches, mirroring the field-selector semantics of §6.
func ProjectDottedPaths(manifest map[string]any, paths []string) map[string]string {
	result := make(map[string]string, len(paths))
	for _, path := range paths {
		if v, ok := lookupDottedPath(manifest, path); ok {
			result[path] = v
		}
	}
	return result
}

func lookupDottedPath(manifest map[string]any, path string) (string, bool) {
	segments := strings.Split(path, ".")
	var current any = manifest
	for _, segment := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		v, ok := m[segment]
		if !ok {
			return "", false
		}
		current = v
	}
	switch v := current.(type) {
	case string:
		return v, true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// Keys returns the requirement keys of the selector, in parse order. Used by callers that need to
// know which dotted paths to project out of a manifest before calling Matches.
func (s *Selector) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, len(s.requirements))
	for i, r := range s.requirements {
		keys[i] = r.key
	}
	return keys
}

// ReservedAnnotationPrefixes lists the annotation-key prefixes §6 reserves for the platform and
// that framework-managed annotations must never collide with.
var ReservedAnnotationPrefixes = []string{"k8s.io", "kubernetes.io", "openshift.io"}

// HasReservedPrefix reports whether key uses one of ReservedAnnotationPrefixes.
func HasReservedPrefix(key string) bool {
	for _, prefix := range ReservedAnnotationPrefixes {
		if strings.HasPrefix(key, prefix+"/") || key == prefix {
			return true
		}
	}
	return false
}
