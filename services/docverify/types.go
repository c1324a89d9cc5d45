// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package docverify scans documents before they reach the knowledge base.
//
// Unlike message classification, verification is exhaustive: every category
// rule table runs against the full content and all detections are unioned.
// The ingestion layer must gate chunk/embed/store on AllowIngestion.
package docverify

import (
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/safety"
)

// ThreatCategory identifies the kind of threat a detection belongs to.
type ThreatCategory int

const (
	ThreatClean ThreatCategory = iota
	ThreatPromptInjection
	ThreatSocialEngineering
	ThreatCybersecurity
	ThreatMalwareIndicators
	ThreatPIIExposure
	ThreatOffensiveContent
	ThreatPolicyViolation
)

// String returns the wire name of the category.
func (c ThreatCategory) String() string {
	switch c {
	case ThreatClean:
		return "clean"
	case ThreatPromptInjection:
		return "prompt_injection"
	case ThreatSocialEngineering:
		return "social_engineering"
	case ThreatCybersecurity:
		return "cybersecurity_threat"
	case ThreatMalwareIndicators:
		return "malware_indicators"
	case ThreatPIIExposure:
		return "pii_exposure"
	case ThreatOffensiveContent:
		return "offensive_content"
	case ThreatPolicyViolation:
		return "policy_violation"
	default:
		return fmt.Sprintf("threat_category(%d)", int(c))
	}
}

// ThreatDetection is one rule match against document content. Immutable,
// created per match occurrence.
type ThreatDetection struct {
	Category       ThreatCategory
	Severity       safety.Severity
	RuleID         string
	Context        string
	Confidence     float64
	Recommendation string
}

// VerificationResult is the outcome of verifying one document.
//
// Invariants: OverallSeverity is the maximum severity across Threats
// (SeverityNone when empty); AllowIngestion is false exactly when
// OverallSeverity is high or critical.
type VerificationResult struct {
	IsSafe          bool
	Threats         []ThreatDetection
	OverallSeverity safety.Severity
	DocumentHash    string
	VerifiedAt      time.Time
	Summary         string
	AllowIngestion  bool
}
