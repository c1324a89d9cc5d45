// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Classifier assigns exactly one SafetyCategory to an inbound message.
//
// Evaluation is short-circuiting, most severe first:
//
//	imminent danger → harm to others → self-harm → emotional distress →
//	profanity → semantic fallback (ambiguous messages only) → safe
//
// Classification over the rule tables is a pure function of the message;
// the only blocking operation is the optional semantic fallback, which runs
// under its own timeout and fails closed.
//
// Thread Safety: safe for concurrent use. Rule tables obtained from the
// provider are immutable; a classification runs entirely against the
// tables it fetched at entry.
type Classifier struct {
	provider RuleProvider
	semantic SemanticClassifier
	logger   *slog.Logger
}

// NewClassifier creates a classifier over the given rule tables.
//
// Inputs:
//
//	provider - Rule table source. Must not be nil. Pass
//	           DefaultClassifierRules() for static tables or a *RuleStore
//	           for hot-reloaded ones.
//	semantic - Optional semantic fallback. Nil disables the fallback; the
//	           ambiguity path then fails closed directly.
//	logger - Optional logger. Nil uses slog.Default().
//
// Outputs:
//
//	*Classifier - Ready-to-use classifier.
//	error - If provider is nil.
func NewClassifier(provider RuleProvider, semantic SemanticClassifier, logger *slog.Logger) (*Classifier, error) {
	if provider == nil {
		return nil, errors.New("rule provider must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{provider: provider, semantic: semantic, logger: logger}, nil
}

// Classify classifies one message.
//
// The message is lowercased and trimmed before rule evaluation. The ctx
// parameter only bounds the optional semantic fallback; the pattern path
// never blocks.
//
// Outputs:
//
//	*Classification - Never nil. A failed or timed-out semantic call
//	resolves to the conservative distress classification, never to an
//	error and never to SafetyCategorySafe.
func (c *Classifier) Classify(ctx context.Context, message string, reqCtx RequestContext) *Classification {
	ctx, span := otel.Tracer("safety").Start(ctx, "safety.Classifier.Classify",
		trace.WithAttributes(attribute.Int("message_length", len(message))),
	)
	defer span.End()

	normalized := strings.ToLower(strings.TrimSpace(message))

	result := c.classify(ctx, normalized)

	span.SetAttributes(
		attribute.String("category", result.Category.String()),
		attribute.String("severity", result.Severity.String()),
		attribute.Bool("requires_escalation", result.RequiresEscalation),
	)

	// Metadata only. Risky content must never reach the logs.
	c.logger.Debug("message classified",
		"category", result.Category.String(),
		"severity", result.Severity.String(),
		"confidence", result.Confidence,
		"store_id", reqCtx.StoreID,
	)

	return result
}

func (c *Classifier) classify(ctx context.Context, message string) *Classification {
	// One snapshot per classification; a concurrent reload never mixes
	// tables mid-message.
	rules := c.provider.Rules()

	if result := checkImminentDanger(rules, message); result != nil {
		return result
	}
	if result := checkHarmToOthers(rules, message); result != nil {
		return result
	}
	if result := checkSelfHarm(rules, message); result != nil {
		return result
	}
	if result := checkDistress(rules, message); result != nil {
		return result
	}
	if result := checkProfanity(rules, message); result != nil {
		return result
	}
	if needsSemanticAnalysis(rules, message) {
		if result := c.classifySemantic(ctx, message); result != nil {
			return result
		}
	}

	return &Classification{
		Category:           SafetyCategorySafe,
		Severity:           SeverityLow,
		Confidence:         0.95,
		RequiresEscalation: false,
		Reasoning:          "No safety concerns detected",
	}
}

// checkImminentDanger requires both a match in the critical rule subset and
// a temporal-immediacy marker. Either alone falls through to the dedicated
// category checks.
func checkImminentDanger(rules *ClassifierRules, message string) *Classification {
	matched := rules.Imminent.MatchedIDs(message)
	if len(matched) == 0 {
		return nil
	}

	hasImmediacy := false
	for _, marker := range rules.ImmediacyMarkers {
		if strings.Contains(message, marker) {
			hasImmediacy = true
			break
		}
	}
	if !hasImmediacy {
		return nil
	}

	return &Classification{
		Category:           SafetyCategoryImminentDanger,
		Severity:           SeverityCritical,
		Confidence:         0.90,
		DetectedPatterns:   matched,
		RequiresEscalation: true,
		Reasoning:          "Detected immediate threat with temporal indicators",
	}
}

func checkHarmToOthers(rules *ClassifierRules, message string) *Classification {
	matched := rules.HarmToOthers.MatchedIDs(message)
	matched = append(matched, rules.WorkplaceViolence.MatchedIDs(message)...)
	if len(matched) == 0 {
		return nil
	}

	return &Classification{
		Category:           SafetyCategoryHarmToOthers,
		Severity:           SeverityCritical,
		Confidence:         0.85,
		DetectedPatterns:   matched,
		RequiresEscalation: true,
		Reasoning:          "Detected potential threat to others",
	}
}

func checkSelfHarm(rules *ClassifierRules, message string) *Classification {
	matched := rules.SelfHarm.MatchedIDs(message)
	if len(matched) == 0 {
		return nil
	}

	// Two or more distinct patterns raise severity to critical.
	severity := SeverityHigh
	if len(matched) >= 2 {
		severity = SeverityCritical
	}

	return &Classification{
		Category:           SafetyCategorySelfHarm,
		Severity:           severity,
		Confidence:         0.85,
		DetectedPatterns:   matched,
		RequiresEscalation: true,
		Reasoning:          "Detected self-harm ideation",
	}
}

func checkDistress(rules *ClassifierRules, message string) *Classification {
	matched := rules.Distress.MatchedIDs(message)
	if len(matched) == 0 {
		return nil
	}

	return &Classification{
		Category:           SafetyCategoryDistress,
		Severity:           SeverityMedium,
		Confidence:         0.75,
		DetectedPatterns:   matched,
		RequiresEscalation: true,
		Reasoning:          "Detected emotional distress signals",
	}
}

func checkProfanity(rules *ClassifierRules, message string) *Classification {
	matched := rules.Profanity.MatchedIDs(message)
	if len(matched) == 0 {
		return nil
	}

	return &Classification{
		Category:           SafetyCategoryProfanity,
		Severity:           SeverityLow,
		Confidence:         0.95,
		DetectedPatterns:   matched,
		RequiresEscalation: false,
		Reasoning:          "Detected inappropriate language",
	}
}

// needsSemanticAnalysis gates the semantic fallback on a small, fixed
// marker list. Known limitation: many ambiguous messages never reach the
// fallback. Widening the list changes escalation volume materially, so it
// stays as shipped unless the rule table overrides it.
func needsSemanticAnalysis(rules *ClassifierRules, message string) bool {
	for _, marker := range rules.AmbiguityMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

// classifySemantic invokes the semantic capability and maps its verdict
// through the shared category tables.
//
// Fail-closed invariant: any error, timeout, or absent capability resolves
// to EMOTIONAL_DISTRESS / MEDIUM / 0.5 with escalation, never to
// SafetyCategorySafe and never to a propagated error.
func (c *Classifier) classifySemantic(ctx context.Context, message string) *Classification {
	if c.semantic == nil {
		return conservativeFallback("semantic classification unavailable")
	}

	result, err := c.semantic.ClassifySemantic(ctx, message)
	if err != nil {
		c.logger.Warn("semantic classification failed, applying conservative fallback",
			"error", err.Error(),
		)
		return conservativeFallback("semantic classification failed")
	}

	if result.Category == SafetyCategorySafe {
		// Semantic pass agrees the message is safe; let the default apply
		// so reasoning reflects the pattern path.
		return nil
	}

	return &Classification{
		Category:           result.Category,
		Severity:           SemanticSeverity(result.Category),
		Confidence:         result.Confidence,
		DetectedPatterns:   []string{"llm_semantic_analysis"},
		RequiresEscalation: result.Category.RequiresEscalation(),
		Reasoning:          "LLM analysis: " + result.Reasoning,
	}
}

func conservativeFallback(cause string) *Classification {
	return &Classification{
		Category:           SafetyCategoryDistress,
		Severity:           SeverityMedium,
		Confidence:         0.5,
		DetectedPatterns:   []string{"llm_error_conservative"},
		RequiresEscalation: true,
		Reasoning:          cause + "; conservative classification applied",
	}
}
