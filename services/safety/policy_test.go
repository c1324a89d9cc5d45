// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/AleutianSentinel/pkg/config"
)

func testResources() config.Resources {
	return config.Resources{
		EAPPhone:          "1-800-555-0100",
		HRPhone:           "1-800-555-0199",
		SecurityExtension: "Ext. 742",
	}
}

func TestEscalationPriorityTable(t *testing.T) {
	cases := []struct {
		category SafetyCategory
		severity Severity
		want     EscalationPriority
	}{
		{SafetyCategorySelfHarm, SeverityCritical, PriorityCriticalImmediate},
		{SafetyCategorySelfHarm, SeverityHigh, PriorityHigh},
		{SafetyCategoryHarmToOthers, SeverityCritical, PriorityCriticalImmediate},
		{SafetyCategoryHarmToOthers, SeverityHigh, PriorityCriticalImmediate},
		{SafetyCategoryHarmToOthers, SeverityMedium, PriorityHigh},
		{SafetyCategoryDistress, SeverityHigh, PriorityHigh},
		{SafetyCategoryDistress, SeverityMedium, PriorityMedium},
		{SafetyCategoryDistress, SeverityLow, PriorityMedium},
		{SafetyCategoryImminentDanger, SeverityCritical, PriorityCriticalImmediate},
		{SafetyCategoryProfanity, SeverityLow, PriorityNone},
		{SafetyCategorySafe, SeverityLow, PriorityNone},
	}

	for _, tc := range cases {
		got := EscalationPriorityFor(tc.category, tc.severity)
		assert.Equal(t, tc.want, got,
			"%s/%s", tc.category, tc.severity)
	}
}

func TestRecipientsByCategory(t *testing.T) {
	cases := []struct {
		name     string
		category SafetyCategory
		severity Severity
		want     []string
	}{
		{
			name:     "distress",
			category: SafetyCategoryDistress,
			severity: SeverityMedium,
			want:     []string{"eap_team", "hr_wellbeing"},
		},
		{
			name:     "self harm",
			category: SafetyCategorySelfHarm,
			severity: SeverityHigh,
			want:     []string{"eap_urgent", "hr_crisis_team", "store_manager"},
		},
		{
			name:     "harm to others below critical omits legal",
			category: SafetyCategoryHarmToOthers,
			severity: SeverityHigh,
			want:     []string{"corporate_security", "store_manager", "hr_crisis_team"},
		},
		{
			name:     "harm to others critical adds legal",
			category: SafetyCategoryHarmToOthers,
			severity: SeverityCritical,
			want:     []string{"corporate_security", "store_manager", "hr_crisis_team", "legal"},
		},
		{
			name:     "imminent danger",
			category: SafetyCategoryImminentDanger,
			severity: SeverityCritical,
			want: []string{
				"corporate_security_emergency", "hr_crisis_team",
				"regional_ops_manager", "legal",
			},
		},
		{
			name:     "safe has no recipients",
			category: SafetyCategorySafe,
			severity: SeverityLow,
			want:     nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Recipients(tc.category, tc.severity))
		})
	}
}

func TestRespondContinuation(t *testing.T) {
	engine := NewPolicyEngine(testResources())

	cases := []struct {
		category SafetyCategory
		severity Severity
		want     bool
	}{
		{SafetyCategorySafe, SeverityLow, true},
		{SafetyCategoryProfanity, SeverityLow, true},
		{SafetyCategoryDistress, SeverityMedium, false},
		{SafetyCategorySelfHarm, SeverityHigh, false},
		{SafetyCategoryHarmToOthers, SeverityCritical, false},
		{SafetyCategoryImminentDanger, SeverityCritical, false},
	}

	for _, tc := range cases {
		resp := engine.Respond(&Classification{Category: tc.category, Severity: tc.severity})
		assert.Equal(t, tc.want, resp.AllowContinuation,
			"AllowContinuation for %s", tc.category)
		assert.Equal(t, !tc.want, resp.RequiresEscalation,
			"RequiresEscalation for %s", tc.category)
	}
}

func TestRespondSafeHasEmptyMessage(t *testing.T) {
	engine := NewPolicyEngine(testResources())

	resp := engine.Respond(&Classification{Category: SafetyCategorySafe, Severity: SeverityLow})
	assert.Empty(t, resp.Message)
	assert.Empty(t, resp.SupportResources)
	assert.Equal(t, PriorityNone, resp.EscalationPriority)
}

func TestRespondRendersConfiguredContacts(t *testing.T) {
	engine := NewPolicyEngine(testResources())

	resp := engine.Respond(&Classification{
		Category: SafetyCategorySelfHarm,
		Severity: SeverityCritical,
	})

	assert.Contains(t, resp.Message, "1-800-555-0100", "EAP phone substituted")
	assert.NotContains(t, resp.Message, "{eap_phone}", "no unfilled placeholders")
	assert.Contains(t, resp.Message, "988")
	assert.Equal(t, PriorityCriticalImmediate, resp.EscalationPriority)

	var names []string
	for _, r := range resp.SupportResources {
		names = append(names, r.Name)
	}
	assert.Contains(t, strings.Join(names, ","), "988 Suicide & Crisis Lifeline")
}

func TestRespondFallsBackToMostSevereTemplate(t *testing.T) {
	engine := NewPolicyEngine(testResources())

	// Imminent danger only defines a critical template; any severity must
	// still render it rather than a softer message.
	resp := engine.Respond(&Classification{
		Category: SafetyCategoryImminentDanger,
		Severity: SeverityHigh,
	})

	assert.Contains(t, resp.Message, "IMMEDIATE DANGER")
}

func TestRespondHarmToOthersUsesSecurityExtension(t *testing.T) {
	engine := NewPolicyEngine(testResources())

	resp := engine.Respond(&Classification{
		Category: SafetyCategoryHarmToOthers,
		Severity: SeverityCritical,
	})

	assert.Contains(t, resp.Message, "Ext. 742")
	assert.Equal(t,
		[]string{"corporate_security", "store_manager", "hr_crisis_team", "legal"},
		resp.Recipients)
}

func TestShouldMaskInLogs(t *testing.T) {
	engine := NewPolicyEngine(testResources())

	cases := []struct {
		category SafetyCategory
		want     bool
	}{
		{SafetyCategorySafe, false},
		{SafetyCategoryProfanity, false},
		{SafetyCategoryDistress, true},
		{SafetyCategorySelfHarm, true},
		{SafetyCategoryHarmToOthers, true},
		{SafetyCategoryImminentDanger, true},
	}

	for _, tc := range cases {
		got := engine.ShouldMaskInLogs(&Classification{Category: tc.category})
		assert.Equal(t, tc.want, got, "mask for %s", tc.category)
	}
}

func TestRespondIsDeterministic(t *testing.T) {
	engine := NewPolicyEngine(testResources())
	classification := &Classification{
		Category: SafetyCategoryDistress,
		Severity: SeverityMedium,
	}

	first := engine.Respond(classification)
	second := engine.Respond(classification)
	assert.Equal(t, first, second)
}
