// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package docverify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianSentinel/services/safety"
)

// SemanticVerifier is the optional LLM-backed augmentation pass. It only
// runs when pattern detections already exist and may only add detections;
// it never clears a pattern-based verdict.
type SemanticVerifier interface {
	VerifySemantic(ctx context.Context, content string, existing []ThreatDetection) ([]ThreatDetection, error)
}

// Verifier scans document content against every threat category table.
//
// Description:
//
//	Verify runs all seven rule tables exhaustively, unions the detections,
//	and derives the ingestion verdict: documents with any detection above
//	low severity are unsafe; high or critical overall severity blocks
//	ingestion outright, medium severity is ingested but flagged for review.
//
// Thread Safety: safe for concurrent use. Rule tables are immutable.
type Verifier struct {
	rules    *VerifierRules
	semantic SemanticVerifier
	logger   *slog.Logger
}

// NewVerifier creates a document verifier. The semantic pass is optional;
// nil disables it. A nil logger uses slog.Default().
func NewVerifier(rules *VerifierRules, semantic SemanticVerifier, logger *slog.Logger) *Verifier {
	if rules == nil {
		rules = DefaultVerifierRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{rules: rules, semantic: semantic, logger: logger}
}

// Verify performs full security verification of document content.
//
// Inputs:
//
//	content - Extracted plain text of the document.
//	filename - Original filename, used for logging only.
//
// Outputs:
//
//	*VerificationResult - Never nil. Empty content verifies as safe with
//	zero detections and AllowIngestion true.
func (v *Verifier) Verify(ctx context.Context, content, filename string) *VerificationResult {
	ctx, span := otel.Tracer("docverify").Start(ctx, "docverify.Verifier.Verify",
		trace.WithAttributes(
			attribute.String("filename", filename),
			attribute.Int("content_length", len(content)),
		),
	)
	defer span.End()

	var threats []ThreatDetection
	for _, table := range []struct {
		category ThreatCategory
		rules    safety.RuleSet
	}{
		{ThreatPromptInjection, v.rules.PromptInjection},
		{ThreatSocialEngineering, v.rules.SocialEngineering},
		{ThreatCybersecurity, v.rules.Cybersecurity},
		{ThreatMalwareIndicators, v.rules.Malware},
		{ThreatPIIExposure, v.rules.PII},
		{ThreatOffensiveContent, v.rules.Offensive},
		{ThreatPolicyViolation, v.rules.Policy},
	} {
		for _, d := range table.rules.Scan(content) {
			threats = append(threats, ThreatDetection{
				Category:       table.category,
				Severity:       d.Severity,
				RuleID:         d.RuleID,
				Context:        d.Context,
				Confidence:     d.Confidence,
				Recommendation: d.Recommendation,
			})
		}
	}

	// Semantic augmentation runs only when patterns already fired. It can
	// add detections but a failure never blocks the verdict we have.
	if v.semantic != nil && len(threats) > 0 {
		extra, err := v.semantic.VerifySemantic(ctx, content, threats)
		if err != nil {
			v.logger.Warn("semantic verification failed, keeping pattern verdict",
				"filename", filename,
				"error", err.Error(),
			)
		} else {
			threats = append(threats, extra...)
		}
	}

	overall := overallSeverity(threats)
	isSafe := true
	for _, t := range threats {
		if t.Severity > safety.SeverityLow {
			isSafe = false
			break
		}
	}
	// Medium-severity documents are ingested but flagged for review; only
	// high and critical block outright.
	allowIngestion := overall < safety.SeverityHigh

	result := &VerificationResult{
		IsSafe:          isSafe,
		Threats:         threats,
		OverallSeverity: overall,
		DocumentHash:    DocumentHash(content),
		VerifiedAt:      time.Now(),
		Summary:         summarize(threats, overall),
		AllowIngestion:  allowIngestion,
	}

	span.SetAttributes(
		attribute.Int("threat_count", len(threats)),
		attribute.String("overall_severity", overall.String()),
		attribute.Bool("allow_ingestion", allowIngestion),
	)

	v.logger.Info("document verified",
		"filename", filename,
		"document_hash", result.DocumentHash,
		"threat_count", len(threats),
		"overall_severity", overall.String(),
		"allow_ingestion", allowIngestion,
	)

	return result
}

// DocumentHash returns the stable audit-correlation digest of content:
// the first 16 hex characters of its SHA-256.
func DocumentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

func overallSeverity(threats []ThreatDetection) safety.Severity {
	overall := safety.SeverityNone
	for _, t := range threats {
		overall = safety.MaxSeverity(overall, t.Severity)
	}
	return overall
}

// summarize builds the human-readable verification summary: overall
// severity, per-category counts in first-seen order, and a recommendation.
func summarize(threats []ThreatDetection, overall safety.Severity) string {
	if len(threats) == 0 {
		return "Document passed all security checks. Safe for ingestion."
	}

	counts := make(map[ThreatCategory]int)
	var order []ThreatCategory
	for _, t := range threats {
		if counts[t.Category] == 0 {
			order = append(order, t.Category)
		}
		counts[t.Category]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Document verification: %s severity\n", strings.ToUpper(overall.String()))
	fmt.Fprintf(&b, "Detected %d potential threat(s):\n", len(threats))
	for _, cat := range order {
		fmt.Fprintf(&b, "  - %s: %d\n", cat, counts[cat])
	}

	switch {
	case overall >= safety.SeverityHigh:
		b.WriteString("Recommendation: BLOCK document from ingestion.")
	case overall == safety.SeverityMedium:
		b.WriteString("Recommendation: REVIEW document before ingestion.")
	default:
		b.WriteString("Recommendation: Document may proceed with caution.")
	}

	return b.String()
}
