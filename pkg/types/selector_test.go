/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package types

import "testing"

func TestParseSelectorEmptyMatchesEverything(t *testing.T) {
	s, err := ParseSelector("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Matches(map[string]string{"anything": "goes"}) {
		t.Fatalf("empty selector should match any field set")
	}
	if !s.Matches(nil) {
		t.Fatalf("empty selector should match even an empty field set")
	}
}

func TestSelectorMatchesGrammar(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		fields map[string]string
		want   bool
	}{
		{"exists true", "tier", map[string]string{"tier": "web"}, true},
		{"exists false", "tier", map[string]string{}, false},
		{"not-exists true", "!tier", map[string]string{}, true},
		{"not-exists false", "!tier", map[string]string{"tier": "web"}, false},
		{"equals =", "tier=web", map[string]string{"tier": "web"}, true},
		{"equals = mismatch", "tier=web", map[string]string{"tier": "db"}, false},
		{"equals ==", "tier==web", map[string]string{"tier": "web"}, true},
		{"not-equals present-mismatch", "tier!=web", map[string]string{"tier": "db"}, true},
		{"not-equals present-match", "tier!=web", map[string]string{"tier": "web"}, false},
		{"not-equals absent", "tier!=web", map[string]string{}, false},
		{"in match", "tier in (web,db)", map[string]string{"tier": "db"}, true},
		{"in no-match", "tier in (web,db)", map[string]string{"tier": "cache"}, false},
		{"in absent", "tier in (web,db)", map[string]string{}, false},
		{"notin match", "tier notin (web,db)", map[string]string{"tier": "cache"}, true},
		{"notin no-match", "tier notin (web,db)", map[string]string{"tier": "web"}, false},
		{"notin absent", "tier notin (web,db)", map[string]string{}, false},
		{"comma conjunction all true", "tier=web,env=prod", map[string]string{"tier": "web", "env": "prod"}, true},
		{"comma conjunction one false", "tier=web,env=prod", map[string]string{"tier": "web", "env": "dev"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSelector(tt.expr)
			if err != nil {
				t.Fatalf("ParseSelector(%q): unexpected error: %v", tt.expr, err)
			}
			if got := s.Matches(tt.fields); got != tt.want {
				t.Errorf("ParseSelector(%q).Matches(%v) = %v, want %v", tt.expr, tt.fields, got, tt.want)
			}
		})
	}
}

func TestSelectorTopLevelCommaIgnoresNestedParens(t *testing.T) {
	s, err := ParseSelector("tier in (web,db),env=prod")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Keys()) != 2 {
		t.Fatalf("expected 2 requirements, got %d (%v)", len(s.Keys()), s.Keys())
	}
	if !s.Matches(map[string]string{"tier": "db", "env": "prod"}) {
		t.Errorf("expected match")
	}
	if s.Matches(map[string]string{"tier": "cache", "env": "prod"}) {
		t.Errorf("expected no match")
	}
}

func TestSelectorUnbalancedParenthesesError(t *testing.T) {
	if _, err := ParseSelector("tier in (web,db"); err == nil {
		t.Fatalf("expected error for unbalanced parentheses")
	}
	if _, err := ParseSelector("tier in web,db)"); err == nil {
		t.Fatalf("expected error for unbalanced parentheses")
	}
}

func TestSelectorSetRequirementRequiresParens(t *testing.T) {
	if _, err := ParseSelector("tier in web,db"); err == nil {
		t.Fatalf("expected error for a non-parenthesized value list")
	}
}

func TestProjectDottedPaths(t *testing.T) {
	manifest := map[string]any{
		"metadata": map[string]any{
			"labels": map[string]any{
				"app": "demo",
			},
			"name": "demo-resource",
		},
	}
	got := ProjectDottedPaths(manifest, []string{"metadata.labels.app", "metadata.name", "metadata.missing"})
	want := map[string]string{"metadata.labels.app": "demo", "metadata.name": "demo-resource"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("path %q = %q, want %q", k, got[k], v)
		}
	}
}

func TestHasReservedPrefix(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"k8s.io/managed-by", true},
		{"kubernetes.io/os", true},
		{"openshift.io/scc", true},
		{"k8s.io", true},
		{"example.com/owner", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := HasReservedPrefix(tt.key); got != tt.want {
			t.Errorf("HasReservedPrefix(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}
