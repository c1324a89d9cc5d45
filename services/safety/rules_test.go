// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRuleFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadClassifierRulesEmptyDirUsesDefaults(t *testing.T) {
	rules, err := LoadClassifierRules("")
	require.NoError(t, err)
	assert.Len(t, rules.SelfHarm, 4)
	assert.Len(t, rules.Imminent, 4)
	assert.NotEmpty(t, rules.AmbiguityMarkers)
}

func TestLoadClassifierRulesOverridesOneCategory(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "profanity.yaml", `
version: "test"
rules:
  - id: PR-100
    category: profanity
    severity: low
    confidence: 0.9
    pattern: '\bdangit\b'
    recommendation: Redirect professionally.
`)

	rules, err := LoadClassifierRules(dir)
	require.NoError(t, err)

	// Overridden table replaces the default, others stay intact.
	require.Len(t, rules.Profanity, 1)
	assert.Equal(t, "PR-100", rules.Profanity[0].ID)
	assert.True(t, rules.Profanity[0].Matches("well dangit anyway"))
	assert.Len(t, rules.SelfHarm, 4, "untouched categories keep defaults")
}

func TestLoadClassifierRulesOverridesMarkers(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "markers.yaml", `
ambiguity_markers:
  - "wits end"
immediacy_markers:
  - "this instant"
`)

	rules, err := LoadClassifierRules(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"wits end"}, rules.AmbiguityMarkers)
	assert.Equal(t, []string{"this instant"}, rules.ImmediacyMarkers)
}

func TestLoadClassifierRulesRebuildsImminentSubset(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "harm.yaml", `
rules:
  - id: HO-200
    category: harm_to_others
    severity: critical
    confidence: 0.85
    pattern: '\bhurt everyone\b'
    recommendation: Escalate to security immediately.
`)

	rules, err := LoadClassifierRules(dir)
	require.NoError(t, err)

	// Single-rule harm table: imminent subset takes what exists.
	ids := make(map[string]bool)
	for _, r := range rules.Imminent {
		ids[r.ID] = true
	}
	assert.True(t, ids["HO-200"], "new harm rule joins the imminent subset")
}

func TestRuleTableVersionTracking(t *testing.T) {
	assert.Equal(t, RuleTableVersion, DefaultClassifierRules().Version)

	// A loaded file's version replaces the built-in tag.
	dir := t.TempDir()
	writeRuleFile(t, dir, "tables.yaml", `
version: "2026.07-pilot"
rules:
  - id: PR-300
    category: profanity
    severity: low
    confidence: 0.9
    pattern: '\bdangit\b'
    recommendation: Redirect professionally.
`)
	rules, err := LoadClassifierRules(dir)
	require.NoError(t, err)
	assert.Equal(t, "2026.07-pilot", rules.Version)
}

func TestLoadClassifierRulesKeepsVersionWhenFileOmitsIt(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "markers.yaml", `
ambiguity_markers:
  - "wits end"
`)
	rules, err := LoadClassifierRules(dir)
	require.NoError(t, err)
	assert.Equal(t, RuleTableVersion, rules.Version)
}

func TestLoadRuleSetsRejectsBadSeverity(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "bad.yaml", `
rules:
  - id: X-001
    category: test
    severity: catastrophic
    confidence: 0.5
    pattern: 'x'
`)

	_, _, err := LoadRuleSets(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown severity")
}

func TestLoadRuleSetsRejectsBadPattern(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "bad.yaml", `
rules:
  - id: X-002
    category: test
    severity: low
    confidence: 0.5
    pattern: '[unclosed'
`)

	_, _, err := LoadRuleSets(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestLoadRuleSetsRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "a.yaml", `
rules:
  - id: DUP-001
    category: test
    severity: low
    confidence: 0.5
    pattern: 'a'
`)
	writeRuleFile(t, dir, "b.yaml", `
rules:
  - id: DUP-001
    category: test
    severity: low
    confidence: 0.5
    pattern: 'b'
`)

	_, _, err := LoadRuleSets(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicates")
}

func TestRuleStoreServesLoadedRules(t *testing.T) {
	store, err := NewRuleStore("", nil)
	require.NoError(t, err)
	require.NotNil(t, store.Rules())
	assert.Len(t, store.Rules().SelfHarm, 4)
}
