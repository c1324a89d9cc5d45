// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package safety implements inbound message classification and policy
// response generation for the Sentinel gating pipeline.
//
// The pipeline is: classify a user message into exactly one SafetyCategory,
// map the classification to a user-facing SafetyResponse via the policy
// engine, and (when escalation is required) hand both to the confidential
// reporting service.
//
// Classification is deliberately conservative: ambiguous or failed
// classification resolves to the more escalating outcome, never silently
// to SafetyCategorySafe.
package safety

import "fmt"

// =============================================================================
// Severity
// =============================================================================

// Severity is the shared, totally ordered severity scale. It is used
// identically by message classification, document verification, and
// response filtering.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity converts a lowercase severity name back to a Severity.
// Unknown names parse as SeverityNone with ok=false.
func ParseSeverity(name string) (Severity, bool) {
	switch name {
	case "none":
		return SeverityNone, true
	case "low":
		return SeverityLow, true
	case "medium":
		return SeverityMedium, true
	case "high":
		return SeverityHigh, true
	case "critical":
		return SeverityCritical, true
	default:
		return SeverityNone, false
	}
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

// =============================================================================
// Safety Categories
// =============================================================================

// SafetyCategory is the closed set of message classifications, ordered by
// severity. Exactly one value is assigned per classified message.
//
// Consumers (policy engine, reporting priority table) switch exhaustively
// over this enum; adding a category requires updating every consumer.
type SafetyCategory int

const (
	SafetyCategorySafe SafetyCategory = iota
	SafetyCategoryProfanity
	SafetyCategoryDistress
	SafetyCategorySelfHarm
	SafetyCategoryHarmToOthers
	SafetyCategoryImminentDanger
)

// String returns the wire name of the category.
func (c SafetyCategory) String() string {
	switch c {
	case SafetyCategorySafe:
		return "safe_operational"
	case SafetyCategoryProfanity:
		return "profanity_only"
	case SafetyCategoryDistress:
		return "emotional_distress"
	case SafetyCategorySelfHarm:
		return "self_harm_risk"
	case SafetyCategoryHarmToOthers:
		return "harm_to_others_risk"
	case SafetyCategoryImminentDanger:
		return "imminent_danger"
	default:
		return fmt.Sprintf("safety_category(%d)", int(c))
	}
}

// ParseSafetyCategory converts a wire name back to a SafetyCategory.
func ParseSafetyCategory(name string) (SafetyCategory, bool) {
	switch name {
	case "safe_operational":
		return SafetyCategorySafe, true
	case "profanity_only":
		return SafetyCategoryProfanity, true
	case "emotional_distress":
		return SafetyCategoryDistress, true
	case "self_harm_risk":
		return SafetyCategorySelfHarm, true
	case "harm_to_others_risk":
		return SafetyCategoryHarmToOthers, true
	case "imminent_danger":
		return SafetyCategoryImminentDanger, true
	default:
		return SafetyCategorySafe, false
	}
}

// RequiresEscalation reports whether the category must be escalated.
// Only SafetyCategorySafe and SafetyCategoryProfanity are exempt.
func (c SafetyCategory) RequiresEscalation() bool {
	return c != SafetyCategorySafe && c != SafetyCategoryProfanity
}

// =============================================================================
// Classification Result
// =============================================================================

// Classification is the immutable result of classifying one message.
type Classification struct {
	Category           SafetyCategory
	Severity           Severity
	Confidence         float64 // 0.0 to 1.0
	DetectedPatterns   []string
	RequiresEscalation bool
	Reasoning          string
}

// RequestContext carries the request-layer identifiers that accompany a
// message into classification and reporting. All fields except StoreID
// are optional.
type RequestContext struct {
	StoreID   string
	DeviceID  string
	SessionID string
	UserID    string
}

// =============================================================================
// Escalation Priority
// =============================================================================

// EscalationPriority is the routing priority attached to an escalated
// classification. PriorityNone means no escalation channel is used.
type EscalationPriority int

const (
	PriorityNone EscalationPriority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
	PriorityCriticalImmediate
)

// String returns the wire name of the priority.
func (p EscalationPriority) String() string {
	switch p {
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	case PriorityCriticalImmediate:
		return "CRITICAL_IMMEDIATE"
	default:
		return "NONE"
	}
}

// SupportResource is one support contact point offered to the user.
type SupportResource struct {
	Name         string `json:"name"`
	Contact      string `json:"contact"`
	Availability string `json:"availability"`
	Description  string `json:"description,omitempty"`
}

// Response is the deterministic user-facing outcome for a classification.
// It is derived purely from lookup tables; there is no hidden state.
type Response struct {
	Message            string
	SupportResources   []SupportResource
	AllowContinuation  bool
	RequiresEscalation bool
	EscalationPriority EscalationPriority
	Recipients         []string
}
