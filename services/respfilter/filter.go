// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package respfilter enforces safety on generated answers after the LLM
// has produced them. It checks grounding against the retrieved context and
// scans the answer for unsafe content, then decides to pass, modify, or
// block the response.
package respfilter

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianSentinel/services/safety"
)

// Violation is one kind of response safety violation.
type Violation int

const (
	ViolationNone Violation = iota
	ViolationHallucination
	ViolationMaliciousIntent
	ViolationProfanity
	ViolationViolence
	ViolationSelfHarm
	ViolationHateSpeech
	ViolationPoliticalUnsafe
)

// String returns the wire name of the violation.
func (v Violation) String() string {
	switch v {
	case ViolationNone:
		return "none"
	case ViolationHallucination:
		return "hallucination"
	case ViolationMaliciousIntent:
		return "malicious_intent"
	case ViolationProfanity:
		return "profanity"
	case ViolationViolence:
		return "violence"
	case ViolationSelfHarm:
		return "self_harm"
	case ViolationHateSpeech:
		return "hate_speech"
	case ViolationPoliticalUnsafe:
		return "political_unsafe"
	default:
		return fmt.Sprintf("violation(%d)", int(v))
	}
}

// Action is the filter's verdict on a response.
type Action int

const (
	ActionPass Action = iota
	ActionModify
	ActionBlock
)

// String returns the wire name of the action.
func (a Action) String() string {
	switch a {
	case ActionPass:
		return "pass"
	case ActionModify:
		return "modify"
	case ActionBlock:
		return "block"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// CheckResult is the outcome of a response safety check. When Action is
// ActionModify or ActionBlock, SafeResponse holds the text the caller must
// return instead of the original.
type CheckResult struct {
	Action       Action
	Violations   []Violation
	Confidence   float64
	SafeResponse string
	Reason       string
}

// hallucinationThreshold is the minimum grounded-word overlap ratio below
// which a response is treated as hallucinated.
const hallucinationThreshold = 0.20

// groundingWordRe extracts the words counted toward grounding overlap.
// Short words carry no grounding signal.
var groundingWordRe = regexp.MustCompile(`\b\w{4,}\b`)

const blockedResponse = "I cannot provide that information due to safety policies. " +
	"Please contact your supervisor or support team for assistance."

const ungroundedResponse = "I don't have enough verified information to answer this safely. " +
	"Please refer to official documentation or contact support."

const modifiedNotice = "\n\n[Note: Response was modified to meet safety policies]"

// FilterRules holds the per-violation rule tables the filter scans with.
type FilterRules struct {
	Malicious safety.RuleSet
	Profanity safety.RuleSet
	Violence  safety.RuleSet
	SelfHarm  safety.RuleSet
	Hate      safety.RuleSet
	Political safety.RuleSet
}

// DefaultFilterRules returns the built-in response scanning tables.
func DefaultFilterRules() *FilterRules {
	rule := func(id, category, pattern string) *safety.Rule {
		return &safety.Rule{ID: id, Category: category,
			Severity: safety.SeverityMedium, Confidence: 0.8, Pattern: pattern}
	}

	return &FilterRules{
		Malicious: safety.RuleSet{
			rule("RM-001", "malicious_intent", `\b(hack|exploit|bypass|circumvent)\s+(system|security|policy|rules)\b`),
			rule("RM-002", "malicious_intent", `\b(steal|fraud|scam|cheat)\b`),
			rule("RM-003", "malicious_intent", `\b(credential|password|access)\s+to\s+(obtain|steal|get)\b`),
			rule("RM-004", "malicious_intent", `\b(ignore|override|disable)\s+(safety|security|policy)\b`),
		},
		Profanity: safety.RuleSet{
			rule("RP-001", "profanity", `\b(f[u*]ck|sh[i*]t|d[a*]mn|b[i*]tch|a[s*]s|cr[a*]p)\w*\b`),
			rule("RP-002", "profanity", `\b(bastard|jackass|moron|idiot|stupid)\b`),
		},
		Violence: safety.RuleSet{
			rule("RV-001", "violence", `\b(kill|murder|shoot|stab|attack|assault|beat)\s+(you|them|someone|people)\b`),
			rule("RV-002", "violence", `\b(weapon|gun|knife|bomb|explosive)\s+to\s+(hurt|harm|kill)\b`),
			rule("RV-003", "violence", `\b(threaten|violence|violent|harm)\b.*\b(customer|employee|person)\b`),
		},
		SelfHarm: safety.RuleSet{
			rule("RS-001", "self_harm", `\b(suicide|kill yourself|end your life|self[- ]harm)\b`),
			rule("RS-002", "self_harm", `\b(cut|hurt|injure)\s+(yourself|myself)\b`),
			rule("RS-003", "self_harm", `\b(want to die|wish i was dead)\b`),
		},
		Hate: safety.RuleSet{
			rule("RH-001", "hate_speech", `\b(hate|despise|discriminate)\s+.{0,30}(race|religion|gender|orientation|disability)\b`),
			rule("RH-002", "hate_speech", `\b(racist|sexist|homophobic|transphobic|bigot)\b`),
			rule("RH-003", "hate_speech", `\b(all|every)\s+(women|men|blacks|whites|jews|muslims|christians)\s+are\b`),
		},
		Political: safety.RuleSet{
			rule("RL-001", "political_unsafe", `\b(democrat|republican|liberal|conservative)\s+(are|is)\s+(bad|evil|stupid|wrong)\b`),
			rule("RL-002", "political_unsafe", `\b(vote|support|elect)\s+for\s+[a-z]+\b`),
			rule("RL-003", "political_unsafe", `\b(political|politics)\s+.{0,20}(should|must|need to)\b`),
		},
	}
}

// Filter is the post-generation safety filter.
//
// Thread Safety: safe for concurrent use. Rule tables are immutable.
type Filter struct {
	rules  *FilterRules
	logger *slog.Logger
}

// NewFilter creates a response filter. A nil rules uses the built-in
// tables; a nil logger uses slog.Default().
func NewFilter(rules *FilterRules, logger *slog.Logger) *Filter {
	if rules == nil {
		rules = DefaultFilterRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{rules: rules, logger: logger}
}

// Check evaluates a generated response against grounding and content rules.
//
// Inputs:
//
//	response - The LLM-generated answer.
//	contextDocs - Grounding snippets the answer was generated from. An
//	              empty list means the answer is unconditionally treated
//	              as hallucinated.
//	question - The original user question, kept for logging context.
//
// Action resolution, in precedence order: block on self-harm, violence,
// or malicious intent; block on hallucination; modify on profanity, hate
// speech, or political content; otherwise pass.
func (f *Filter) Check(ctx context.Context, response string, contextDocs []string, question string) *CheckResult {
	_, span := otel.Tracer("respfilter").Start(ctx, "respfilter.Filter.Check")
	defer span.End()

	var violations []Violation
	if f.checkHallucination(response, contextDocs) {
		violations = append(violations, ViolationHallucination)
	}
	if f.rules.Malicious.AnyMatch(response) {
		violations = append(violations, ViolationMaliciousIntent)
	}
	if f.rules.Profanity.AnyMatch(response) {
		violations = append(violations, ViolationProfanity)
	}
	if f.rules.Violence.AnyMatch(response) {
		violations = append(violations, ViolationViolence)
	}
	if f.rules.SelfHarm.AnyMatch(response) {
		violations = append(violations, ViolationSelfHarm)
	}
	if f.rules.Hate.AnyMatch(response) {
		violations = append(violations, ViolationHateSpeech)
	}
	if f.rules.Political.AnyMatch(response) {
		violations = append(violations, ViolationPoliticalUnsafe)
	}

	result := f.resolve(violations, response)

	span.SetAttributes(
		attribute.String("action", result.Action.String()),
		attribute.Int("violation_count", len(violations)),
	)
	if result.Action != ActionPass {
		names := make([]string, len(violations))
		for i, v := range violations {
			names[i] = v.String()
		}
		f.logger.Info("response filtered",
			"action", result.Action.String(),
			"violations", strings.Join(names, ","),
			"question_length", len(question),
		)
	}

	return result
}

// checkHallucination applies the grounding-overlap heuristic: the share of
// response words (length >= 4) that also appear in the context docs.
func (f *Filter) checkHallucination(response string, contextDocs []string) bool {
	if len(contextDocs) == 0 {
		return true
	}

	responseWords := wordSet(response)
	if len(responseWords) == 0 {
		return false
	}
	contextWords := wordSet(strings.Join(contextDocs, " "))

	overlap := 0
	for w := range responseWords {
		if _, ok := contextWords[w]; ok {
			overlap++
		}
	}

	ratio := float64(overlap) / float64(len(responseWords))
	return ratio < hallucinationThreshold
}

func wordSet(text string) map[string]struct{} {
	words := groundingWordRe.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func (f *Filter) resolve(violations []Violation, response string) *CheckResult {
	if len(violations) == 0 {
		return &CheckResult{
			Action:     ActionPass,
			Violations: []Violation{ViolationNone},
			Confidence: 1.0,
		}
	}

	has := func(kinds ...Violation) bool {
		for _, v := range violations {
			for _, k := range kinds {
				if v == k {
					return true
				}
			}
		}
		return false
	}

	if has(ViolationSelfHarm, ViolationViolence, ViolationMaliciousIntent) {
		return &CheckResult{
			Action:       ActionBlock,
			Violations:   violations,
			Confidence:   0.0,
			SafeResponse: blockedResponse,
			Reason:       "Critical safety violation detected",
		}
	}

	if has(ViolationHallucination) {
		return &CheckResult{
			Action:       ActionBlock,
			Violations:   violations,
			Confidence:   0.0,
			SafeResponse: ungroundedResponse,
			Reason:       "Low confidence - insufficient grounding in verified documents",
		}
	}

	if has(ViolationProfanity, ViolationHateSpeech, ViolationPoliticalUnsafe) {
		return &CheckResult{
			Action:       ActionModify,
			Violations:   violations,
			Confidence:   0.7,
			SafeResponse: f.clean(response, violations),
			Reason:       "Response modified to meet safety standards",
		}
	}

	return &CheckResult{
		Action:     ActionPass,
		Violations: violations,
		Confidence: 0.9,
	}
}

// clean redacts matched spans per violation kind and appends the
// modification notice.
func (f *Filter) clean(response string, violations []Violation) string {
	cleaned := response

	redact := func(rs safety.RuleSet, repl string) {
		for _, r := range rs {
			cleaned = r.ReplaceAll(cleaned, repl)
		}
	}

	for _, v := range violations {
		switch v {
		case ViolationProfanity:
			redact(f.rules.Profanity, "[removed]")
		case ViolationHateSpeech:
			redact(f.rules.Hate, "[content removed for safety]")
		case ViolationPoliticalUnsafe:
			redact(f.rules.Political, "[removed]")
		}
	}

	return cleaned + modifiedNotice
}

// FriendlyReason explains a verdict to the end user without revealing
// detection logic.
func FriendlyReason(violations []Violation) string {
	if len(violations) == 0 {
		return "Response passed all safety checks"
	}

	has := func(kind Violation) bool {
		for _, v := range violations {
			if v == kind {
				return true
			}
		}
		return false
	}

	switch {
	case has(ViolationNone):
		return "Response passed all safety checks"
	case has(ViolationHallucination):
		return "Insufficient verified information"
	case has(ViolationSelfHarm):
		return "Safety policy triggered - Please contact the Employee Assistance Program"
	case has(ViolationViolence):
		return "Safety policy triggered - Please contact Security"
	case has(ViolationMaliciousIntent):
		return "Security policy triggered"
	default:
		return "Response modified to meet safety standards"
	}
}
