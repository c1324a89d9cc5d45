// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gateway is the HTTP surface of the safety gating layer.
//
// Three gates wrap the assistant pipeline: /ask-gate classifies the user
// message before any retrieval, /ingest-gate verifies documents before
// chunking and storage, /response-gate filters generated answers before
// they reach the user. The reporting endpoints expose audited access to
// confidential reports.
//
// Retrieval and generation live behind the Assistant and Ingester
// interfaces. The gateway never sees embeddings or vector stores; it sees
// text going in and text coming out.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianSentinel/services/docverify"
	"github.com/AleutianAI/AleutianSentinel/services/gateway/observability"
	"github.com/AleutianAI/AleutianSentinel/services/reporting"
	"github.com/AleutianAI/AleutianSentinel/services/respfilter"
	"github.com/AleutianAI/AleutianSentinel/services/safety"
)

var gateTracer = otel.Tracer("sentinel.gateway")

// Assistant answers a safe question. Implementations wrap the RAG
// pipeline; the returned context docs feed the response filter's
// grounding check.
type Assistant interface {
	Ask(ctx context.Context, question, storeID string) (answer string, contextDocs []string, err error)
}

// Ingester stores a verified document. Implementations chunk, embed, and
// index; they are only ever called with content that passed verification.
type Ingester interface {
	Ingest(ctx context.Context, content, filename, storeID, documentHash string) (chunks int, err error)
}

// Gateway holds the gate components and exposes them as gin handlers.
type Gateway struct {
	classifier *safety.Classifier
	policy     *safety.PolicyEngine
	verifier   *docverify.Verifier
	filter     *respfilter.Filter
	reports    *reporting.Service

	assistant Assistant
	ingester  Ingester

	maxMessageLength int
	metrics          *observability.GateMetrics
	logger           *slog.Logger
}

// Options carries the optional collaborators and tunables for a Gateway.
type Options struct {
	// Assistant answers safe questions. When nil, /ask-gate returns a
	// gate verdict ("proceed": true) instead of an answer.
	Assistant Assistant

	// Ingester stores verified documents. When nil, /ingest-gate returns
	// the verification verdict without storing anything.
	Ingester Ingester

	// MaxMessageLength clamps inbound messages before classification.
	// Zero means no clamp.
	MaxMessageLength int

	// Metrics may be nil; recording becomes a no-op.
	Metrics *observability.GateMetrics
}

// NewGateway validates and assembles the gate surface.
func NewGateway(classifier *safety.Classifier, policy *safety.PolicyEngine, verifier *docverify.Verifier,
	filter *respfilter.Filter, reports *reporting.Service, opts Options, logger *slog.Logger) (*Gateway, error) {

	if classifier == nil || policy == nil || verifier == nil || filter == nil || reports == nil {
		return nil, errors.New("classifier, policy, verifier, filter, and reports are all required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		classifier:       classifier,
		policy:           policy,
		verifier:         verifier,
		filter:           filter,
		reports:          reports,
		assistant:        opts.Assistant,
		ingester:         opts.Ingester,
		maxMessageLength: opts.MaxMessageLength,
		metrics:          opts.Metrics,
		logger:           logger,
	}, nil
}

// AskRequest is the /ask-gate payload.
type AskRequest struct {
	Question  string `json:"question" binding:"required"`
	StoreID   string `json:"store_id"`
	UserID    string `json:"user_id"`
	DeviceID  string `json:"device_id"`
	SessionID string `json:"session_id"`
}

// IngestRequest is the /ingest-gate payload. Content is the extracted
// document text; upstream owns file parsing.
type IngestRequest struct {
	Content  string `json:"content" binding:"required"`
	Filename string `json:"filename" binding:"required"`
	StoreID  string `json:"store_id"`
}

// ResponseGateRequest is the /response-gate payload for filtering an
// externally generated answer.
type ResponseGateRequest struct {
	Response    string   `json:"response" binding:"required"`
	ContextDocs []string `json:"context_docs"`
	Question    string   `json:"question"`
}

// clamp truncates a message to the configured maximum, on a rune
// boundary so multi-byte characters survive.
func (g *Gateway) clamp(message string) string {
	if g.maxMessageLength <= 0 {
		return message
	}
	runes := []rune(message)
	if len(runes) <= g.maxMessageLength {
		return message
	}
	return string(runes[:g.maxMessageLength])
}

// HandleAskGate runs the full message flow: classify, then either a
// safety response (with confidential report on escalation) or the
// assistant answer passed through the response filter.
func (g *Gateway) HandleAskGate(c *gin.Context) {
	start := time.Now()
	ctx, span := gateTracer.Start(c.Request.Context(), "HandleAskGate")
	defer span.End()
	defer func() {
		g.metrics.RecordDuration(observability.EndpointAskGate, time.Since(start).Seconds())
	}()

	var req AskRequest
	if err := c.BindJSON(&req); err != nil {
		g.metrics.RecordRequest(observability.EndpointAskGate, false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	question := g.clamp(req.Question)
	reqCtx := safety.RequestContext{
		StoreID:   req.StoreID,
		DeviceID:  req.DeviceID,
		SessionID: req.SessionID,
		UserID:    req.UserID,
	}

	classification := g.classifier.Classify(ctx, question, reqCtx)
	g.metrics.RecordClassification(classification.Category.String(), classification.Severity.String())

	if classification.Category != safety.SafetyCategorySafe {
		g.handleSafetyResponse(ctx, c, question, classification, reqCtx)
		g.metrics.RecordRequest(observability.EndpointAskGate, true)
		return
	}

	if g.assistant == nil {
		g.metrics.RecordRequest(observability.EndpointAskGate, true)
		c.JSON(http.StatusOK, gin.H{
			"proceed":               true,
			"safety_classification": classification.Category.String(),
			"is_safety_response":    false,
		})
		return
	}

	answer, contextDocs, err := g.assistant.Ask(ctx, question, req.StoreID)
	if err != nil {
		span.RecordError(err)
		g.logger.Error("assistant call failed", "error", err.Error())
		g.metrics.RecordRequest(observability.EndpointAskGate, false)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assistant unavailable"})
		return
	}

	check := g.filter.Check(ctx, answer, contextDocs, question)
	g.metrics.RecordFilterAction(check.Action.String())

	responseSafety := gin.H{
		"status":     check.Action.String(),
		"action":     check.Action.String(),
		"reason":     respfilter.FriendlyReason(check.Violations),
		"confidence": check.Confidence,
	}

	final := answer
	switch check.Action {
	case respfilter.ActionBlock:
		final = check.SafeResponse
		responseSafety["status"] = "blocked"
	case respfilter.ActionModify:
		final = check.SafeResponse
		responseSafety["status"] = "modified"
	default:
		responseSafety["status"] = "passed"
	}

	g.metrics.RecordRequest(observability.EndpointAskGate, true)
	c.JSON(http.StatusOK, gin.H{
		"answer":                final,
		"safety_classification": classification.Category.String(),
		"is_safety_response":    false,
		"response_safety":       responseSafety,
	})
}

// handleSafetyResponse renders the policy response for a non-safe
// classification, submitting a confidential report first when escalation
// is required. The report reference is appended to the user-facing
// message so the user can cite it later.
func (g *Gateway) handleSafetyResponse(ctx context.Context, c *gin.Context, question string,
	classification *safety.Classification, reqCtx safety.RequestContext) {

	policyResponse := g.policy.Respond(classification)
	message := policyResponse.Message

	if policyResponse.RequiresEscalation {
		userID := reqCtx.UserID
		if userID == "" {
			userID = "anonymous"
		}
		reportID, err := g.reports.Submit(ctx, userID, question, classification, policyResponse, reqCtx)
		if err != nil {
			// The user still gets the support message; losing the report
			// must not suppress crisis resources.
			g.logger.Error("confidential report submission failed",
				"category", classification.Category.String(),
				"severity", classification.Severity.String(),
				"error", err.Error(),
			)
		} else {
			g.metrics.RecordEscalation(policyResponse.EscalationPriority.String())
			message += "\n\n*Reference: " + reportID + "*"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"answer":                message,
		"safety_classification": classification.Category.String(),
		"severity":              classification.Severity.String(),
		"support_resources":     policyResponse.SupportResources,
		"allow_continuation":    policyResponse.AllowContinuation,
		"is_safety_response":    true,
	})
}

// HandleIngestGate verifies document content and, when it passes, hands
// it to the ingester. Blocked documents return the verdict with threat
// counts but never the matched content.
func (g *Gateway) HandleIngestGate(c *gin.Context) {
	start := time.Now()
	ctx, span := gateTracer.Start(c.Request.Context(), "HandleIngestGate")
	defer span.End()
	defer func() {
		g.metrics.RecordDuration(observability.EndpointIngestGate, time.Since(start).Seconds())
	}()

	var req IngestRequest
	if err := c.BindJSON(&req); err != nil {
		g.metrics.RecordRequest(observability.EndpointIngestGate, false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result := g.verifier.Verify(ctx, req.Content, req.Filename)

	if !result.AllowIngestion {
		g.metrics.RecordVerification("blocked")
		g.metrics.RecordRequest(observability.EndpointIngestGate, true)
		g.logger.Warn("document blocked",
			"filename", req.Filename,
			"severity", result.OverallSeverity.String(),
			"threats", len(result.Threats),
		)
		c.JSON(http.StatusOK, gin.H{
			"status":        "blocked",
			"reason":        "security_threat_detected",
			"severity":      result.OverallSeverity.String(),
			"summary":       result.Summary,
			"threats_count": len(result.Threats),
			"document_hash": result.DocumentHash,
			"message":       "Document contains security threats and cannot be ingested. Please review the content and remove any malicious patterns, prompt injections, or policy violations.",
		})
		return
	}

	verdict := "clean"
	if len(result.Threats) > 0 {
		verdict = "flagged"
		g.logger.Info("document ingested with warnings",
			"filename", req.Filename,
			"threats", len(result.Threats),
		)
	}
	g.metrics.RecordVerification(verdict)

	chunks := 0
	status := "verified"
	if g.ingester != nil {
		n, err := g.ingester.Ingest(ctx, req.Content, req.Filename, req.StoreID, result.DocumentHash)
		if err != nil {
			span.RecordError(err)
			g.logger.Error("ingestion failed", "filename", req.Filename, "error", err.Error())
			g.metrics.RecordRequest(observability.EndpointIngestGate, false)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
			return
		}
		chunks = n
		status = "indexed"
	}

	response := gin.H{
		"status": status,
		"chunks": chunks,
		"source": req.Filename,
		"verification": gin.H{
			"passed":        true,
			"severity":      result.OverallSeverity.String(),
			"document_hash": result.DocumentHash,
		},
	}

	if len(result.Threats) > 0 {
		warnings := make([]gin.H, 0, len(result.Threats))
		for _, threat := range result.Threats {
			warnings = append(warnings, gin.H{
				"category":       threat.Category.String(),
				"severity":       threat.Severity.String(),
				"recommendation": threat.Recommendation,
			})
		}
		response["warnings"] = warnings
	}

	g.metrics.RecordRequest(observability.EndpointIngestGate, true)
	c.JSON(http.StatusOK, response)
}

// HandleResponseGate filters an externally generated answer against its
// grounding documents.
func (g *Gateway) HandleResponseGate(c *gin.Context) {
	start := time.Now()
	ctx, span := gateTracer.Start(c.Request.Context(), "HandleResponseGate")
	defer span.End()
	defer func() {
		g.metrics.RecordDuration(observability.EndpointResponseGate, time.Since(start).Seconds())
	}()

	var req ResponseGateRequest
	if err := c.BindJSON(&req); err != nil {
		g.metrics.RecordRequest(observability.EndpointResponseGate, false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	check := g.filter.Check(ctx, req.Response, req.ContextDocs, req.Question)
	g.metrics.RecordFilterAction(check.Action.String())

	violations := make([]string, 0, len(check.Violations))
	for _, v := range check.Violations {
		violations = append(violations, v.String())
	}

	g.metrics.RecordRequest(observability.EndpointResponseGate, true)
	c.JSON(http.StatusOK, gin.H{
		"action":        check.Action.String(),
		"violations":    violations,
		"confidence":    check.Confidence,
		"safe_response": check.SafeResponse,
		"reason":        respfilter.FriendlyReason(check.Violations),
	})
}

// ReportAccessRequest identifies the accessor for an audited report read.
type ReportAccessRequest struct {
	AccessorID string `json:"accessor_id" binding:"required"`
	Purpose    string `json:"purpose" binding:"required"`
}

// HandleGetReport returns a decrypted report to an identified accessor.
// Every call is audited; missing reports return 404 with no hint of
// whether the id ever existed.
func (g *Gateway) HandleGetReport(c *gin.Context) {
	ctx, span := gateTracer.Start(c.Request.Context(), "HandleGetReport")
	defer span.End()

	reportID := c.Param("id")

	var req ReportAccessRequest
	if err := c.BindJSON(&req); err != nil {
		g.metrics.RecordRequest(observability.EndpointReport, false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "accessor_id and purpose are required"})
		return
	}

	report, err := g.reports.GetReport(ctx, reportID, req.AccessorID, req.Purpose)
	if err != nil {
		if errors.Is(err, reporting.ErrNotFound) {
			g.metrics.RecordRequest(observability.EndpointReport, true)
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		span.RecordError(err)
		g.logger.Error("report access failed", "report_id", reportID, "error", err.Error())
		g.metrics.RecordRequest(observability.EndpointReport, false)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report access failed"})
		return
	}

	g.metrics.RecordRequest(observability.EndpointReport, true)
	c.JSON(http.StatusOK, report)
}

// HandleCleanupReports runs the audited retention sweep.
func (g *Gateway) HandleCleanupReports(c *gin.Context) {
	ctx, span := gateTracer.Start(c.Request.Context(), "HandleCleanupReports")
	defer span.End()

	deleted, err := g.reports.CleanupExpired(ctx)
	if err != nil {
		span.RecordError(err)
		g.logger.Error("retention sweep failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// HealthCheck reports liveness plus which gates are active.
func (g *Gateway) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"safety_features": gin.H{
			"message_classification":     true,
			"document_verification":      true,
			"response_safety_filter":     true,
			"confidential_escalation":    true,
			"prompt_injection_detection": true,
		},
	})
}
