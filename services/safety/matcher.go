// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// contextWindow is the number of characters captured on each side of a
// match when building the excerpt attached to a detection.
const contextWindow = 50

// Rule is one entry of a rule table: a pattern to detect plus the metadata
// reported when it matches. Rules are data, not code; tables are assembled
// at startup (built-in defaults, optionally overridden from YAML files) and
// are immutable afterwards.
//
// Thread Safety: safe for concurrent use. Regex compilation is lazy and
// guarded by sync.Once.
type Rule struct {
	// ID is the unique rule identifier (e.g. SH-001, INJ-004).
	ID string

	// Category is the threat or risk category the rule belongs to.
	Category string

	// Severity reported for a match of this rule.
	Severity Severity

	// Confidence reported for a match (0.0-1.0).
	Confidence float64

	// Pattern is the regex. Matching is case-insensitive and tolerates
	// multi-line content; rules should not rely on ^ or $ anchoring.
	Pattern string

	// Recommendation is the handling guidance attached to detections.
	Recommendation string

	// MaskPII redacts digit runs in the context excerpt of a match.
	// Set on rules that match PII so excerpts never restate the data
	// they flagged.
	MaskPII bool

	compiled *regexp.Regexp
	once     sync.Once
}

// re returns the compiled pattern, compiling it on first use. The (?is)
// flags make matching case-insensitive and let `.` cross newlines.
func (r *Rule) re() *regexp.Regexp {
	r.once.Do(func() {
		r.compiled = regexp.MustCompile(`(?is)` + r.Pattern)
	})
	return r.compiled
}

// Match returns all match locations (start, end pairs) of the rule in text,
// or nil if it does not match.
func (r *Rule) Match(text string) [][]int {
	if r.Pattern == "" {
		return nil
	}
	return r.re().FindAllStringIndex(text, -1)
}

// Matches reports whether the rule matches anywhere in text.
func (r *Rule) Matches(text string) bool {
	if r.Pattern == "" {
		return false
	}
	return r.re().MatchString(text)
}

// ReplaceAll substitutes every match of the rule in text with repl.
// Used by redaction paths; repl is literal, not an expansion template.
func (r *Rule) ReplaceAll(text, repl string) string {
	if r.Pattern == "" {
		return text
	}
	return r.re().ReplaceAllLiteralString(text, repl)
}

// Detection is one rule match against a piece of text. Detections are
// immutable once created.
type Detection struct {
	RuleID         string
	Category       string
	Severity       Severity
	Confidence     float64
	Context        string
	Recommendation string
}

// RuleSet is an ordered list of rules for one category. Order matters only
// to callers that short-circuit; the matcher itself evaluates rules
// independently.
type RuleSet []*Rule

// Scan evaluates every rule against text and returns a detection per match
// occurrence, in rule order. This is the accumulating mode used by the
// document verifier.
func (rs RuleSet) Scan(text string) []Detection {
	var detections []Detection
	for _, rule := range rs {
		for _, loc := range rule.Match(text) {
			detections = append(detections, Detection{
				RuleID:         rule.ID,
				Category:       rule.Category,
				Severity:       rule.Severity,
				Confidence:     rule.Confidence,
				Context:        ExtractContext(text, loc[0], loc[1], rule.MaskPII),
				Recommendation: rule.Recommendation,
			})
		}
	}
	return detections
}

// MatchedIDs returns the IDs of all rules in the set that match text.
// This is the cheap form used by the classifier, which needs pattern
// identifiers but not per-occurrence excerpts.
func (rs RuleSet) MatchedIDs(text string) []string {
	var ids []string
	for _, rule := range rs {
		if rule.Matches(text) {
			ids = append(ids, rule.ID)
		}
	}
	return ids
}

// AnyMatch reports whether any rule in the set matches text.
func (rs RuleSet) AnyMatch(text string) bool {
	for _, rule := range rs {
		if rule.Matches(text) {
			return true
		}
	}
	return false
}

var (
	ssnRe   = regexp.MustCompile(`\d{3}-\d{2}-\d{4}`)
	cardRe  = regexp.MustCompile(`\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}`)
	digitRe = regexp.MustCompile(`\d{4,}`)
)

// ExtractContext returns the excerpt surrounding a match: contextWindow
// characters on each side, trimmed. When maskPII is set, digit runs in the
// excerpt are replaced with X so the excerpt cannot restate flagged data.
func ExtractContext(text string, start, end int, maskPII bool) string {
	ctxStart := max(0, start-contextWindow)
	ctxEnd := min(len(text), end+contextWindow)

	// The window is measured in bytes; clamp both edges to rune
	// boundaries so the excerpt never splits a multi-byte character.
	for ctxStart > 0 && !utf8.RuneStart(text[ctxStart]) {
		ctxStart--
	}
	for ctxEnd < len(text) && !utf8.RuneStart(text[ctxEnd]) {
		ctxEnd++
	}
	excerpt := text[ctxStart:ctxEnd]

	if maskPII {
		excerpt = ssnRe.ReplaceAllString(excerpt, "XXX-XX-XXXX")
		excerpt = cardRe.ReplaceAllString(excerpt, "XXXX-XXXX-XXXX-XXXX")
		excerpt = digitRe.ReplaceAllStringFunc(excerpt, func(run string) string {
			return strings.Repeat("X", len(run))
		})
	}

	return strings.TrimSpace(excerpt)
}
