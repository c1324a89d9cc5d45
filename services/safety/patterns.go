// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

// RuleTableVersion is the version tag of the built-in classifier rule
// tables. Tables loaded from YAML report their file's version instead.
const RuleTableVersion = "2026.02"

// ClassifierRules holds the rule tables the classifier evaluates, in
// precedence order. Tables are immutable after construction.
//
// The Imminent set is the union of the most severe self-harm and
// harm-to-others rules; a match there only classifies as imminent danger
// when paired with a temporal-immediacy marker.
type ClassifierRules struct {
	// Version identifies the active table set. RuleTableVersion for the
	// built-in defaults, the YAML file's version field for loaded tables.
	Version string

	SelfHarm          RuleSet
	HarmToOthers      RuleSet
	Distress          RuleSet
	Profanity         RuleSet
	WorkplaceViolence RuleSet
	Imminent          RuleSet

	// ImmediacyMarkers are temporal phrases that, combined with an
	// Imminent rule match, raise the classification to imminent danger.
	ImmediacyMarkers []string

	// AmbiguityMarkers trigger the semantic fallback when no pattern
	// matched. Deliberately small; widening it changes escalation volume.
	AmbiguityMarkers []string
}

// DefaultClassifierRules returns the built-in rule tables.
//
// These are indicators, not definitive classifications; the classifier's
// ordered evaluation and the policy engine decide what happens on a match.
func DefaultClassifierRules() *ClassifierRules {
	selfHarm := RuleSet{
		{ID: "SH-001", Category: "self_harm", Severity: SeverityHigh, Confidence: 0.85,
			Pattern:        `\b(kill myself|end my life|want to die|suicide|hurt myself)\b`,
			Recommendation: "Escalate to crisis support."},
		{ID: "SH-002", Category: "self_harm", Severity: SeverityHigh, Confidence: 0.85,
			Pattern:        `\b(cut myself|overdose|jump off|hang myself)\b`,
			Recommendation: "Escalate to crisis support."},
		{ID: "SH-003", Category: "self_harm", Severity: SeverityHigh, Confidence: 0.85,
			Pattern:        `\b(don'?t want to live|life isn'?t worth|no reason to live)\b`,
			Recommendation: "Escalate to crisis support."},
		{ID: "SH-004", Category: "self_harm", Severity: SeverityHigh, Confidence: 0.85,
			Pattern:        `\b(better off dead|can'?t go on|goodbye world)\b`,
			Recommendation: "Escalate to crisis support."},
	}

	harmOthers := RuleSet{
		{ID: "HO-001", Category: "harm_to_others", Severity: SeverityCritical, Confidence: 0.85,
			Pattern:        `\b(kill (him|her|them|you|everyone))\b`,
			Recommendation: "Escalate to security immediately."},
		{ID: "HO-002", Category: "harm_to_others", Severity: SeverityCritical, Confidence: 0.85,
			Pattern:        `\b(going to hurt|shoot|stab|attack)\b`,
			Recommendation: "Escalate to security immediately."},
		{ID: "HO-003", Category: "harm_to_others", Severity: SeverityCritical, Confidence: 0.85,
			Pattern:        `\b(bring a (gun|weapon|knife))\b`,
			Recommendation: "Escalate to security immediately."},
		{ID: "HO-004", Category: "harm_to_others", Severity: SeverityCritical, Confidence: 0.85,
			Pattern:        `\b(make them pay|get revenge|teach them a lesson)\b`,
			Recommendation: "Escalate to security immediately."},
	}

	distress := RuleSet{
		{ID: "ED-001", Category: "emotional_distress", Severity: SeverityMedium, Confidence: 0.75,
			Pattern:        `\b(can'?t take it anymore|falling apart|breaking down)\b`,
			Recommendation: "Offer support resources."},
		{ID: "ED-002", Category: "emotional_distress", Severity: SeverityMedium, Confidence: 0.75,
			Pattern:        `\b(feel hopeless|feeling worthless|hate myself)\b`,
			Recommendation: "Offer support resources."},
		{ID: "ED-003", Category: "emotional_distress", Severity: SeverityMedium, Confidence: 0.75,
			Pattern:        `\b(overwhelming|drowning|suffocating)\b`,
			Recommendation: "Offer support resources."},
		{ID: "ED-004", Category: "emotional_distress", Severity: SeverityMedium, Confidence: 0.75,
			Pattern:        `\b(panic attack|anxiety attack|mental breakdown)\b`,
			Recommendation: "Offer support resources."},
		{ID: "ED-005", Category: "emotional_distress", Severity: SeverityMedium, Confidence: 0.75,
			Pattern:        `\b(need help|desperate|at my limit)\b`,
			Recommendation: "Offer support resources."},
	}

	profanity := RuleSet{
		{ID: "PR-001", Category: "profanity", Severity: SeverityLow, Confidence: 0.95,
			Pattern:        `\b(f[u*]ck|sh[i*]t|d[a*]mn|h[e*]ll|b[i*]tch|[a*]ss)\w*\b`,
			Recommendation: "Redirect professionally; no escalation."},
		{ID: "PR-002", Category: "profanity", Severity: SeverityLow, Confidence: 0.95,
			Pattern:        `\b(bastard|piss|crap)\b`,
			Recommendation: "Redirect professionally; no escalation."},
	}

	workplaceViolence := RuleSet{
		{ID: "WV-001", Category: "workplace_violence", Severity: SeverityCritical, Confidence: 0.85,
			Pattern:        `\b(active shooter|workplace violence|threatening)\b`,
			Recommendation: "Escalate to security immediately."},
		{ID: "WV-002", Category: "workplace_violence", Severity: SeverityHigh, Confidence: 0.85,
			Pattern:        `\b(unsafe work environment|being harassed|sexual harassment)\b`,
			Recommendation: "Escalate to HR."},
	}

	return &ClassifierRules{
		Version:           RuleTableVersion,
		SelfHarm:          selfHarm,
		HarmToOthers:      harmOthers,
		Distress:          distress,
		Profanity:         profanity,
		WorkplaceViolence: workplaceViolence,
		Imminent:          imminentSubset(selfHarm, harmOthers),
		ImmediacyMarkers: []string{
			"right now", "today", "tonight", "going to", "about to",
		},
		AmbiguityMarkers: []string{
			"can't take", "had enough", "done with this",
			"over it", "breaking point", "last straw",
		},
	}
}

// imminentSubset selects the rules whose match, paired with a temporal
// marker, constitutes imminent danger: the tail of the self-harm table
// (its most explicit methods and farewells) plus the head of the
// harm-to-others table (direct threats).
func imminentSubset(selfHarm, harmOthers RuleSet) RuleSet {
	subset := make(RuleSet, 0, 4)
	if n := len(selfHarm); n >= 2 {
		subset = append(subset, selfHarm[n-2:]...)
	} else {
		subset = append(subset, selfHarm...)
	}
	if len(harmOthers) >= 2 {
		subset = append(subset, harmOthers[:2]...)
	} else {
		subset = append(subset, harmOthers...)
	}
	return subset
}
