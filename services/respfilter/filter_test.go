// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package respfilter

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFilter() *Filter {
	return NewFilter(DefaultFilterRules(), nil)
}

func TestCheckPassesGroundedCleanResponse(t *testing.T) {
	f := newTestFilter()

	response := "Scan the item barcode and place it in the staging area for pickup."
	docs := []string{
		"Order fulfillment: scan each item barcode, then place items in the staging area until pickup.",
	}

	result := f.Check(context.Background(), response, docs, "how do I stage pickup orders?")

	assert.Equal(t, ActionPass, result.Action)
	assert.Equal(t, []Violation{ViolationNone}, result.Violations)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
	assert.Empty(t, result.SafeResponse)
}

func TestCheckEmptyContextIsAlwaysHallucination(t *testing.T) {
	f := newTestFilter()

	result := f.Check(context.Background(),
		"The store opens at 6am on holidays.", nil, "when does the store open?")

	assert.Equal(t, ActionBlock, result.Action)
	assert.Contains(t, result.Violations, ViolationHallucination)
	assert.Contains(t, result.SafeResponse, "verified information")
	assert.Contains(t, result.Reason, "insufficient grounding")
	assert.Zero(t, result.Confidence)
}

func TestCheckLowOverlapIsHallucination(t *testing.T) {
	f := newTestFilter()

	response := "Penguins migrate annually across frozen tundra seeking warmer currents."
	docs := []string{"Store policy covers returns, exchanges, and price adjustments."}

	result := f.Check(context.Background(), response, docs, "what is the return policy?")

	assert.Equal(t, ActionBlock, result.Action)
	assert.Contains(t, result.Violations, ViolationHallucination)
}

func TestCheckEmptyResponseIsNotHallucination(t *testing.T) {
	f := newTestFilter()

	result := f.Check(context.Background(), "", []string{"some context"}, "question")

	assert.Equal(t, ActionPass, result.Action)
}

func TestCheckBlocksCriticalViolations(t *testing.T) {
	f := newTestFilter()

	cases := []struct {
		name     string
		response string
		want     Violation
	}{
		{
			name:     "violence",
			response: "You should attack them if the customer argues with you about it.",
			want:     ViolationViolence,
		},
		{
			name:     "self harm",
			response: "The only option left would be to hurt yourself over this mistake.",
			want:     ViolationSelfHarm,
		},
		{
			name:     "malicious intent",
			response: "You can bypass security on the register by holding the void key.",
			want:     ViolationMaliciousIntent,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Ground the response in itself so only the content rule fires.
			result := f.Check(context.Background(), tc.response, []string{tc.response}, "q")

			assert.Equal(t, ActionBlock, result.Action)
			assert.Contains(t, result.Violations, tc.want)
			assert.Zero(t, result.Confidence)
			assert.Contains(t, result.SafeResponse, "safety policies")
			assert.Equal(t, "Critical safety violation detected", result.Reason)
		})
	}
}

func TestCriticalViolationOutranksHallucination(t *testing.T) {
	f := newTestFilter()

	// Empty context makes this hallucinated AND it contains violence; the
	// critical block message wins.
	result := f.Check(context.Background(),
		"Just attack them and walk away.", nil, "q")

	assert.Equal(t, ActionBlock, result.Action)
	assert.Contains(t, result.Violations, ViolationHallucination)
	assert.Contains(t, result.Violations, ViolationViolence)
	assert.Equal(t, "Critical safety violation detected", result.Reason)
}

func TestCheckModifiesProfanity(t *testing.T) {
	f := newTestFilter()

	response := "This damn printer needs fresh toner before the morning shift."
	docs := []string{"Printer maintenance: load fresh toner before the morning shift begins."}

	result := f.Check(context.Background(), response, docs, "printer issue")

	assert.Equal(t, ActionModify, result.Action)
	assert.Contains(t, result.Violations, ViolationProfanity)
	assert.InDelta(t, 0.7, result.Confidence, 1e-9)
	assert.NotContains(t, result.SafeResponse, "damn")
	assert.Contains(t, result.SafeResponse, "[removed]")
	assert.True(t, strings.HasSuffix(result.SafeResponse,
		"[Note: Response was modified to meet safety policies]"))
}

func TestCheckModifiesHateSpeech(t *testing.T) {
	f := newTestFilter()

	response := "Telling a coworker their idea is racist will not resolve the scheduling conflict."
	docs := []string{response}

	result := f.Check(context.Background(), response, docs, "q")

	assert.Equal(t, ActionModify, result.Action)
	assert.Contains(t, result.Violations, ViolationHateSpeech)
	assert.NotContains(t, result.SafeResponse, "racist")
	assert.Contains(t, result.SafeResponse, "[content removed for safety]")
}

func TestCheckModifiesPoliticalContent(t *testing.T) {
	f := newTestFilter()

	response := "Associates should vote for candidates supporting retail workers."
	docs := []string{response}

	result := f.Check(context.Background(), response, docs, "q")

	assert.Equal(t, ActionModify, result.Action)
	assert.Contains(t, result.Violations, ViolationPoliticalUnsafe)
	assert.Contains(t, result.SafeResponse, "[removed]")
}

func TestHallucinationOutranksModify(t *testing.T) {
	f := newTestFilter()

	// Profanity plus no grounding: the hallucination block wins over the
	// modify path.
	result := f.Check(context.Background(),
		"This damn schedule changes constantly without explanation.", nil, "q")

	assert.Equal(t, ActionBlock, result.Action)
	assert.Contains(t, result.Violations, ViolationHallucination)
	assert.Contains(t, result.Violations, ViolationProfanity)
	assert.Contains(t, result.SafeResponse, "verified information")
}

func TestFriendlyReason(t *testing.T) {
	cases := []struct {
		name       string
		violations []Violation
		want       string
	}{
		{"no violations", nil, "Response passed all safety checks"},
		{"explicit none", []Violation{ViolationNone}, "Response passed all safety checks"},
		{"hallucination", []Violation{ViolationHallucination}, "Insufficient verified information"},
		{"self harm", []Violation{ViolationSelfHarm}, "Safety policy triggered - Please contact the Employee Assistance Program"},
		{"violence", []Violation{ViolationViolence}, "Safety policy triggered - Please contact Security"},
		{"malicious", []Violation{ViolationMaliciousIntent}, "Security policy triggered"},
		{"profanity", []Violation{ViolationProfanity}, "Response modified to meet safety standards"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FriendlyReason(tc.violations))
		})
	}
}

func TestHallucinationThresholdBoundary(t *testing.T) {
	f := newTestFilter()

	// Exactly 1 of 5 grounded words is 0.2, which is not below the
	// threshold, so the response passes.
	response := "alpha bravo charlie delta echoes"
	docs := []string{"alpha completely unrelated wording here"}

	require.False(t, f.checkHallucination(response, docs))
}
