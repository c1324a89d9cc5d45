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
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/singleflight"
)

// SemanticResult is the outcome of a semantic classification call.
type SemanticResult struct {
	Category   SafetyCategory
	Confidence float64
	Reasoning  string
}

// SemanticClassifier is the injected capability for context-aware
// classification of ambiguous messages. Implementations must honor the
// context deadline; the timeout and the caller's fail-closed fallback are
// part of this contract, not the caller's problem to rediscover.
type SemanticClassifier interface {
	ClassifySemantic(ctx context.Context, message string) (*SemanticResult, error)
}

// semanticPrompt instructs the model to emit a parseable three-line verdict.
const semanticPrompt = `You are a safety classifier for an enterprise workplace chatbot.

Analyze this message from an employee and classify it into ONE category:

Categories:
1. SAFE_OPERATIONAL - Normal work-related question
2. PROFANITY_ONLY - Contains profanity but no safety risk
3. EMOTIONAL_DISTRESS - Expressing stress, overwhelm, or emotional difficulty
4. SELF_HARM_RISK - Mentions or implies self-harm ideation
5. HARM_TO_OTHERS_RISK - Threatens or implies harm to others
6. IMMINENT_DANGER - Immediate safety risk

Respond in this exact format:
CATEGORY: [category]
CONFIDENCE: [0.0-1.0]
REASONING: [brief explanation]

Be conservative: if uncertain between two categories, choose the more severe one.`

var (
	categoryLineRe   = regexp.MustCompile(`(?i)CATEGORY:\s*(\w+)`)
	confidenceLineRe = regexp.MustCompile(`(?i)CONFIDENCE:\s*([\d.]+)`)
	reasoningLineRe  = regexp.MustCompile(`(?is)REASONING:\s*(.+)`)
)

// LLMSemanticClassifier implements SemanticClassifier against any
// OpenAI-compatible completion endpoint.
//
// Concurrent classifications of the same message are coalesced through
// singleflight so a burst of identical ambiguous messages costs one call.
//
// Thread Safety: safe for concurrent use after construction.
type LLMSemanticClassifier struct {
	client   *openai.Client
	model    string
	timeout  time.Duration
	inflight singleflight.Group
}

// NewLLMSemanticClassifier creates a semantic classifier.
//
// Inputs:
//
//	baseURL - OpenAI-compatible endpoint. Empty uses the library default.
//	apiKey - API key. May be empty for local endpoints.
//	model - Model name. Must not be empty.
//	timeout - Per-call deadline. Must be positive.
//
// Outputs:
//
//	*LLMSemanticClassifier - Ready-to-use classifier.
//	error - If model is empty or timeout is not positive.
func NewLLMSemanticClassifier(baseURL, apiKey, model string, timeout time.Duration) (*LLMSemanticClassifier, error) {
	if model == "" {
		return nil, errors.New("model must not be empty")
	}
	if timeout <= 0 {
		return nil, errors.New("timeout must be positive")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &LLMSemanticClassifier{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}, nil
}

// ClassifySemantic classifies one message under the configured timeout.
//
// Outputs:
//
//	*SemanticResult - Parsed classification.
//	error - Transport failure, timeout, or unparseable model output. The
//	        caller is expected to fail closed on any error.
func (s *LLMSemanticClassifier) ClassifySemantic(ctx context.Context, message string) (*SemanticResult, error) {
	v, err, _ := s.inflight.Do(message, func() (interface{}, error) {
		return s.doClassify(ctx, message)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SemanticResult), nil
}

func (s *LLMSemanticClassifier) doClassify(ctx context.Context, message string) (*SemanticResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.1, // low temperature for consistent classification
		MaxTokens:   200,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: semanticPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic classification call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("semantic classification: empty response")
	}

	return ParseSemanticResponse(resp.Choices[0].Message.Content)
}

// ParseSemanticResponse parses the CATEGORY/CONFIDENCE/REASONING verdict
// format. Unknown categories are an error so the caller fails closed
// instead of trusting a malformed verdict.
func ParseSemanticResponse(text string) (*SemanticResult, error) {
	m := categoryLineRe.FindStringSubmatch(text)
	if m == nil {
		return nil, errors.New("semantic classification: no CATEGORY line in response")
	}

	category, ok := ParseSafetyCategory(strings.ToLower(m[1]))
	if !ok {
		return nil, fmt.Errorf("semantic classification: unknown category %q", m[1])
	}

	confidence := 0.7
	if cm := confidenceLineRe.FindStringSubmatch(text); cm != nil {
		if v, err := strconv.ParseFloat(cm[1], 64); err == nil && v >= 0 && v <= 1 {
			confidence = v
		}
	}

	reasoning := "semantic classification"
	if rm := reasoningLineRe.FindStringSubmatch(text); rm != nil {
		reasoning = strings.TrimSpace(rm[1])
	}

	return &SemanticResult{
		Category:   category,
		Confidence: confidence,
		Reasoning:  reasoning,
	}, nil
}

// SemanticSeverity maps a semantically classified category to the severity
// used by the pattern path, keeping both paths on one table.
func SemanticSeverity(c SafetyCategory) Severity {
	switch c {
	case SafetyCategoryDistress:
		return SeverityMedium
	case SafetyCategorySelfHarm:
		return SeverityHigh
	case SafetyCategoryHarmToOthers, SafetyCategoryImminentDanger:
		return SeverityCritical
	default:
		return SeverityLow
	}
}
