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
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSemantic struct {
	result *SemanticResult
	err    error
	calls  int
}

func (s *stubSemantic) ClassifySemantic(_ context.Context, _ string) (*SemanticResult, error) {
	s.calls++
	return s.result, s.err
}

func newTestClassifier(t *testing.T, semantic SemanticClassifier) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultClassifierRules(), semantic, nil)
	require.NoError(t, err)
	return c
}

func TestClassifyCategories(t *testing.T) {
	c := newTestClassifier(t, nil)
	ctx := context.Background()

	cases := []struct {
		name         string
		message      string
		wantCategory SafetyCategory
		wantSeverity Severity
		wantEscalate bool
	}{
		{
			name:         "safe operational",
			message:      "how do I process a return for a customer?",
			wantCategory: SafetyCategorySafe,
			wantSeverity: SeverityLow,
			wantEscalate: false,
		},
		{
			name:         "profanity only",
			message:      "this damn printer is broken again",
			wantCategory: SafetyCategoryProfanity,
			wantSeverity: SeverityLow,
			wantEscalate: false,
		},
		{
			name:         "emotional distress",
			message:      "I feel hopeless before every shift",
			wantCategory: SafetyCategoryDistress,
			wantSeverity: SeverityMedium,
			wantEscalate: true,
		},
		{
			name:         "panic attack matches harm table first",
			message:      "I am having a panic attack before my shift",
			wantCategory: SafetyCategoryHarmToOthers,
			wantSeverity: SeverityCritical,
			wantEscalate: true,
		},
		{
			name:         "self harm single pattern",
			message:      "sometimes I want to die",
			wantCategory: SafetyCategorySelfHarm,
			wantSeverity: SeverityHigh,
			wantEscalate: true,
		},
		{
			name:         "self harm two patterns escalates to critical",
			message:      "I want to die, I am better off dead",
			wantCategory: SafetyCategorySelfHarm,
			wantSeverity: SeverityCritical,
			wantEscalate: true,
		},
		{
			name:         "harm to others",
			message:      "I will make them pay for what they did",
			wantCategory: SafetyCategoryHarmToOthers,
			wantSeverity: SeverityCritical,
			wantEscalate: true,
		},
		{
			name:         "workplace violence routes to harm to others",
			message:      "there is an active shooter near the loading dock",
			wantCategory: SafetyCategoryHarmToOthers,
			wantSeverity: SeverityCritical,
			wantEscalate: true,
		},
		{
			name:         "imminent danger with immediacy marker",
			message:      "I am going to hurt someone right now",
			wantCategory: SafetyCategoryImminentDanger,
			wantSeverity: SeverityCritical,
			wantEscalate: true,
		},
		{
			name:         "threat without immediacy stays harm to others",
			message:      "someday I will shoot that vending machine",
			wantCategory: SafetyCategoryHarmToOthers,
			wantSeverity: SeverityCritical,
			wantEscalate: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := c.Classify(ctx, tc.message, RequestContext{StoreID: "store-42"})
			assert.Equal(t, tc.wantCategory, result.Category, "category")
			assert.Equal(t, tc.wantSeverity, result.Severity, "severity")
			assert.Equal(t, tc.wantEscalate, result.RequiresEscalation, "escalation")
		})
	}
}

func TestClassifyNormalizesCase(t *testing.T) {
	c := newTestClassifier(t, nil)

	result := c.Classify(context.Background(), "  I WANT TO DIE  ", RequestContext{})
	assert.Equal(t, SafetyCategorySelfHarm, result.Category)
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := newTestClassifier(t, nil)
	ctx := context.Background()
	msg := "I feel hopeless and I'm drowning at work"

	first := c.Classify(ctx, msg, RequestContext{})
	second := c.Classify(ctx, msg, RequestContext{})

	if !reflect.DeepEqual(first, second) {
		t.Errorf("same message classified differently:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestSemanticFallbackNotInvokedOnPatternMatch(t *testing.T) {
	stub := &stubSemantic{err: errors.New("should not be called")}
	c := newTestClassifier(t, stub)

	// "can't take it anymore" matches ED-001; the ambiguity marker
	// "can't take" must not trigger a redundant semantic call.
	result := c.Classify(context.Background(), "I can't take it anymore", RequestContext{})

	assert.Equal(t, SafetyCategoryDistress, result.Category)
	assert.Zero(t, stub.calls, "semantic classifier must not run when a pattern matched")
}

func TestSemanticFallbackDecisiveVerdict(t *testing.T) {
	stub := &stubSemantic{result: &SemanticResult{
		Category:   SafetyCategorySelfHarm,
		Confidence: 0.8,
		Reasoning:  "implied ideation",
	}}
	c := newTestClassifier(t, stub)

	// No pattern matches but the ambiguity marker "breaking point" does.
	result := c.Classify(context.Background(), "I'm at my breaking point honestly", RequestContext{})

	require.Equal(t, 1, stub.calls)
	assert.Equal(t, SafetyCategorySelfHarm, result.Category)
	assert.Equal(t, SeverityHigh, result.Severity)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.True(t, result.RequiresEscalation)
	assert.Contains(t, result.DetectedPatterns, "llm_semantic_analysis")
}

func TestSemanticFallbackFailsClosed(t *testing.T) {
	cases := []struct {
		name     string
		semantic SemanticClassifier
	}{
		{"transport error", &stubSemantic{err: errors.New("connection refused")}},
		{"timeout", &stubSemantic{err: context.DeadlineExceeded}},
		{"capability absent", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClassifier(t, tc.semantic)

			result := c.Classify(context.Background(), "honestly I've had enough of this", RequestContext{})

			// Hard invariant: a classifier failure must never resolve to safe.
			assert.Equal(t, SafetyCategoryDistress, result.Category)
			assert.Equal(t, SeverityMedium, result.Severity)
			assert.InDelta(t, 0.5, result.Confidence, 1e-9)
			assert.True(t, result.RequiresEscalation)
			assert.Contains(t, result.DetectedPatterns, "llm_error_conservative")
		})
	}
}

func TestSemanticSafeVerdictFallsThroughToDefault(t *testing.T) {
	stub := &stubSemantic{result: &SemanticResult{
		Category:   SafetyCategorySafe,
		Confidence: 0.9,
		Reasoning:  "venting about workload",
	}}
	c := newTestClassifier(t, stub)

	result := c.Classify(context.Background(), "I'm so over it with these schedules", RequestContext{})

	require.Equal(t, 1, stub.calls)
	assert.Equal(t, SafetyCategorySafe, result.Category)
	assert.False(t, result.RequiresEscalation)
	assert.InDelta(t, 0.95, result.Confidence, 1e-9)
}

func TestAmbiguousMessageWithoutMarkerSkipsSemantic(t *testing.T) {
	stub := &stubSemantic{err: errors.New("should not be called")}
	c := newTestClassifier(t, stub)

	result := c.Classify(context.Background(), "work has been rough lately", RequestContext{})

	assert.Equal(t, SafetyCategorySafe, result.Category)
	assert.Zero(t, stub.calls)
}

func TestParseSemanticResponse(t *testing.T) {
	cases := []struct {
		name         string
		text         string
		wantCategory SafetyCategory
		wantConf     float64
		wantErr      bool
	}{
		{
			name:         "well formed",
			text:         "CATEGORY: EMOTIONAL_DISTRESS\nCONFIDENCE: 0.82\nREASONING: stress signals",
			wantCategory: SafetyCategoryDistress,
			wantConf:     0.82,
		},
		{
			name:         "missing confidence uses default",
			text:         "CATEGORY: self_harm_risk\nREASONING: implied",
			wantCategory: SafetyCategorySelfHarm,
			wantConf:     0.7,
		},
		{
			name:    "unknown category is an error",
			text:    "CATEGORY: TOTALLY_FINE\nCONFIDENCE: 0.9",
			wantErr: true,
		},
		{
			name:    "no category line is an error",
			text:    "the message seems fine to me",
			wantErr: true,
		},
		{
			name:         "out of range confidence uses default",
			text:         "CATEGORY: imminent_danger\nCONFIDENCE: 7.5",
			wantCategory: SafetyCategoryImminentDanger,
			wantConf:     0.7,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseSemanticResponse(tc.text)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantCategory, result.Category)
			assert.InDelta(t, tc.wantConf, result.Confidence, 1e-9)
		})
	}
}
