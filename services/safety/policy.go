// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import "github.com/AleutianAI/AleutianSentinel/pkg/config"

// PolicyEngine maps a Classification to the user-facing Response. It is a
// pure lookup component: same classification in, same response out, no
// hidden state.
//
// Principles baked into the tables: user dignity first, non-judgmental
// language, clear next steps, privacy assurance.
//
// Thread Safety: safe for concurrent use. All tables are immutable after
// construction.
type PolicyEngine struct {
	resources config.Resources
	catalog   map[string]SupportResource
}

// NewPolicyEngine creates a policy engine with the deployment's configured
// support contact points.
func NewPolicyEngine(resources config.Resources) *PolicyEngine {
	return &PolicyEngine{
		resources: resources,
		catalog: map[string]SupportResource{
			"crisis": {
				Name:         "988 Suicide & Crisis Lifeline",
				Contact:      "Call or text 988",
				Availability: "24/7",
				Description:  "Immediate support for mental health crisis",
			},
			"mental_health": {
				Name:         "Employee Assistance Program (EAP)",
				Contact:      resources.EAPPhone,
				Availability: "24/7",
				Description:  "Free, confidential counseling and support",
			},
			"hr_ethics": {
				Name:         "HR Ethics Hotline",
				Contact:      resources.HRPhone,
				Availability: "24/7",
				Description:  "Confidential reporting for workplace concerns",
			},
			"security": {
				Name:         "Store Security",
				Contact:      resources.SecurityExtension,
				Availability: "During store hours",
				Description:  "Immediate store security assistance",
			},
			"manager": {
				Name:        "Store Manager",
				Contact:     "In person",
				Description: "Speak with your store manager",
			},
		},
	}
}

// Respond derives the deterministic response for a classification.
//
// Outputs:
//
//	*Response - Never nil. For SafetyCategorySafe the message is empty and
//	the caller proceeds with normal retrieval; every other category
//	carries a rendered template. AllowContinuation is false for every
//	category except SafetyCategorySafe and SafetyCategoryProfanity.
func (p *PolicyEngine) Respond(classification *Classification) *Response {
	category := classification.Category

	switch category {
	case SafetyCategorySafe:
		// No special message; the caller falls through to normal RAG.
		return &Response{
			Message:           "",
			AllowContinuation: true,
		}

	case SafetyCategoryProfanity:
		// Redirect professionally. Do not scold or lecture.
		return &Response{
			Message:           p.render(category, classification.Severity),
			AllowContinuation: true,
		}

	case SafetyCategoryDistress:
		return &Response{
			Message:            p.render(category, classification.Severity),
			SupportResources:   p.pick("mental_health", "hr_ethics"),
			AllowContinuation:  false,
			RequiresEscalation: true,
			EscalationPriority: EscalationPriorityFor(category, classification.Severity),
			Recipients:         Recipients(category, classification.Severity),
		}

	case SafetyCategorySelfHarm:
		return &Response{
			Message:            p.render(category, classification.Severity),
			SupportResources:   p.pick("crisis", "mental_health"),
			AllowContinuation:  false,
			RequiresEscalation: true,
			EscalationPriority: EscalationPriorityFor(category, classification.Severity),
			Recipients:         Recipients(category, classification.Severity),
		}

	case SafetyCategoryHarmToOthers:
		return &Response{
			Message:            p.render(category, classification.Severity),
			SupportResources:   p.pick("security", "hr_ethics", "mental_health"),
			AllowContinuation:  false,
			RequiresEscalation: true,
			EscalationPriority: EscalationPriorityFor(category, classification.Severity),
			Recipients:         Recipients(category, classification.Severity),
		}

	case SafetyCategoryImminentDanger:
		return &Response{
			Message:            p.render(category, classification.Severity),
			SupportResources:   p.pick("crisis", "security"),
			AllowContinuation:  false,
			RequiresEscalation: true,
			EscalationPriority: EscalationPriorityFor(category, classification.Severity),
			Recipients:         Recipients(category, classification.Severity),
		}

	default:
		// Unknown category cannot happen through the classifier; treat it
		// as safe rather than inventing an escalation path for it.
		return &Response{AllowContinuation: true}
	}
}

// ShouldMaskInLogs reports whether the raw message behind a classification
// must be withheld from standard logs. Everything beyond profanity is
// masked; the confidential report is the only place the content lives.
func (p *PolicyEngine) ShouldMaskInLogs(classification *Classification) bool {
	return classification.Category != SafetyCategorySafe &&
		classification.Category != SafetyCategoryProfanity
}

func (p *PolicyEngine) render(category SafetyCategory, severity Severity) string {
	return renderTemplate(
		templateFor(category, severity),
		p.resources.EAPPhone,
		p.resources.HRPhone,
		p.resources.SecurityExtension,
	)
}

func (p *PolicyEngine) pick(keys ...string) []SupportResource {
	out := make([]SupportResource, 0, len(keys))
	for _, k := range keys {
		if r, ok := p.catalog[k]; ok {
			out = append(out, r)
		}
	}
	return out
}

// EscalationPriorityFor is the fixed category-by-severity priority table.
func EscalationPriorityFor(category SafetyCategory, severity Severity) EscalationPriority {
	switch category {
	case SafetyCategorySelfHarm:
		if severity == SeverityCritical {
			return PriorityCriticalImmediate
		}
		return PriorityHigh
	case SafetyCategoryHarmToOthers:
		if severity >= SeverityHigh {
			return PriorityCriticalImmediate
		}
		return PriorityHigh
	case SafetyCategoryDistress:
		if severity >= SeverityHigh {
			return PriorityHigh
		}
		return PriorityMedium
	case SafetyCategoryImminentDanger:
		return PriorityCriticalImmediate
	default:
		return PriorityNone
	}
}

// Recipients returns the escalation routing targets for a category.
// Identifiers name queues or roles, not individuals.
func Recipients(category SafetyCategory, severity Severity) []string {
	switch category {
	case SafetyCategoryDistress:
		return []string{"eap_team", "hr_wellbeing"}
	case SafetyCategorySelfHarm:
		return []string{"eap_urgent", "hr_crisis_team", "store_manager"}
	case SafetyCategoryHarmToOthers:
		recipients := []string{"corporate_security", "store_manager", "hr_crisis_team"}
		if severity == SeverityCritical {
			recipients = append(recipients, "legal")
		}
		return recipients
	case SafetyCategoryImminentDanger:
		return []string{
			"corporate_security_emergency",
			"hr_crisis_team",
			"regional_ops_manager",
			"legal",
		}
	default:
		return nil
	}
}
