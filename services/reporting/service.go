// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianSentinel/pkg/config"
	"github.com/AleutianAI/AleutianSentinel/services/safety"
)

const auditService = "confidential_reporting"

// Service manages confidential safety incident reports end to end:
// anonymize, encrypt, persist, route, audit.
//
// Thread Safety: safe for concurrent use. Report ids are unique per
// submission, so concurrent submissions never collide; access-log appends
// are conflict-retried in the store.
type Service struct {
	store      *Store
	notifier   Notifier
	encryptor  *Encryptor
	anonymizer *Anonymizer
	cfg        *config.Config
	logger     *slog.Logger
}

// NewService wires the reporting pipeline.
func NewService(store *Store, notifier Notifier, encryptor *Encryptor, anonymizer *Anonymizer, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if store == nil || notifier == nil || encryptor == nil || anonymizer == nil || cfg == nil {
		return nil, errors.New("store, notifier, encryptor, anonymizer, and cfg are all required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		notifier:   notifier,
		encryptor:  encryptor,
		anonymizer: anonymizer,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// NewReportID generates a unique, human-scannable report identifier.
func NewReportID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return ReportIDPrefix + strings.ToUpper(hex[:12])
}

// Submit creates a confidential report for an escalated classification.
//
// The report write is atomic: on any failure before persistence the
// submission fails with no partial report. Escalation routing runs after
// the write and is fire-and-forget; a publish failure is logged but the
// report id is still returned, because the durable record outranks
// notification delivery.
//
// Outputs:
//
//	string - The report id, for surfacing to the user as a reference.
//	error - Non-nil only when the report could not be persisted.
func (s *Service) Submit(ctx context.Context, userID, message string, classification *safety.Classification, policyResponse *safety.Response, reqCtx safety.RequestContext) (string, error) {
	ctx, span := otel.Tracer("reporting").Start(ctx, "reporting.Service.Submit")
	defer span.End()

	reportID := NewReportID()

	anonymized, err := s.anonymizer.Anonymize(userID)
	if err != nil {
		return "", fmt.Errorf("anonymize user id: %w", err)
	}

	encrypted, keyVersion, err := s.encryptor.Encrypt(message)
	if err != nil {
		return "", fmt.Errorf("encrypt message: %w", err)
	}

	storeID := reqCtx.StoreID
	if storeID == "" {
		storeID = "UNKNOWN"
	}
	sessionID := reqCtx.SessionID
	if sessionID == "" {
		sessionID = "UNKNOWN"
	}

	severity := classification.Severity
	report := &ConfidentialReport{
		ReportID:           reportID,
		Timestamp:          time.Now().UTC(),
		Category:           classification.Category.String(),
		Severity:           severity.String(),
		EscalationPriority: policyResponse.EscalationPriority.String(),

		AnonymizedUserID: anonymized,
		DeviceID:         reqCtx.DeviceID,
		StoreID:          storeID,
		SessionID:        sessionID,

		EncryptedMessage:     encrypted,
		EncryptionKeyVersion: keyVersion,

		DetectedPatterns: classification.DetectedPatterns,
		Confidence:       classification.Confidence,
		Reasoning:        classification.Reasoning,

		Recipients:       policyResponse.Recipients,
		RequiresFollowup: severity >= safety.SeverityHigh,

		RetentionDays: s.cfg.RetentionDaysFor(severity.String()),
		AccessLog:     []AccessEntry{},
	}

	if err := s.store.PutReport(report); err != nil {
		return "", fmt.Errorf("persist report: %w", err)
	}

	if policyResponse.RequiresEscalation {
		s.route(ctx, report)
	}

	s.audit("REPORT_CREATED", reportID, anonymized)

	span.SetAttributes(
		attribute.String("report_id", reportID),
		attribute.String("severity", report.Severity),
		attribute.Bool("escalated", policyResponse.RequiresEscalation),
	)

	return reportID, nil
}

// route publishes the routing message for an escalated report. Failures
// degrade to a loud log line; the persisted report is the source of truth
// and a stalled channel must not fail the submission.
func (s *Service) route(ctx context.Context, report *ConfidentialReport) {
	priority := report.EscalationPriority
	if priority == "NONE" || priority == "" {
		priority = "MEDIUM"
	}

	msg := RoutingMessage{
		ReportID:                report.ReportID,
		Timestamp:               report.Timestamp,
		Severity:                report.Severity,
		Priority:                priority,
		StoreID:                 report.StoreID,
		Recipients:              report.Recipients,
		RequiresImmediateAction: priority == "CRITICAL_IMMEDIATE",
	}

	if err := s.notifier.Publish(ctx, msg); err != nil {
		s.logger.Error("escalation publish failed, report persisted without notification",
			"report_id", report.ReportID,
			"priority", priority,
			"error", err.Error(),
		)
	}
}

// GetReport retrieves and decrypts a report for an authorized accessor.
//
// Every call appends two audit entries: the attempt before the lookup,
// then a grant or denial after. A successful read additionally appends
// one access-log entry on the report itself. Missing reports return
// ErrNotFound with no hint of whether the id ever existed.
func (s *Service) GetReport(ctx context.Context, reportID, accessorID, purpose string) (*DecryptedReport, error) {
	_, span := otel.Tracer("reporting").Start(ctx, "reporting.Service.GetReport")
	defer span.End()

	s.audit("ACCESS_ATTEMPT: "+purpose, reportID, accessorID)

	report, err := s.store.GetReport(reportID)
	if err != nil {
		s.audit("ACCESS_DENIED: "+purpose, reportID, accessorID)
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load report: %w", err)
	}

	decrypted, err := s.encryptor.Decrypt(report.EncryptedMessage)
	if err != nil {
		s.audit("ACCESS_DENIED: "+purpose, reportID, accessorID)
		return nil, fmt.Errorf("decrypt report %s: %w", reportID, err)
	}

	entry := AccessEntry{
		AccessorID: accessorID,
		Timestamp:  time.Now().UTC(),
		Purpose:    purpose,
	}
	if err := s.store.AppendAccess(reportID, entry); err != nil {
		s.audit("ACCESS_DENIED: "+purpose, reportID, accessorID)
		return nil, fmt.Errorf("record access to report %s: %w", reportID, err)
	}
	report.AccessLog = append(report.AccessLog, entry)

	s.audit("ACCESS_GRANTED: "+purpose, reportID, accessorID)

	return &DecryptedReport{
		ConfidentialReport: *report,
		DecryptedMessage:   decrypted,
	}, nil
}

// CleanupExpired deletes every report past its retention period and
// audit-logs each deletion. Intended to run on a schedule.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	_, span := otel.Tracer("reporting").Start(ctx, "reporting.Service.CleanupExpired")
	defer span.End()

	expired, err := s.store.ExpiredReportIDs(time.Now().UTC())
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, reportID := range expired {
		s.audit("AUTO_DELETED_EXPIRED", reportID, "system_cleanup")
		if err := s.store.DeleteReport(reportID); err != nil {
			s.logger.Error("expired report deletion failed",
				"report_id", reportID,
				"error", err.Error(),
			)
			continue
		}
		deleted++
	}

	span.SetAttributes(attribute.Int("deleted", deleted))
	if deleted > 0 {
		s.logger.Info("expired reports purged", "count", deleted)
	}
	return deleted, nil
}

// AuditTrail exposes the audit entries for a report, for compliance
// review.
func (s *Service) AuditTrail(reportID string) ([]AuditEntry, error) {
	return s.store.AuditTrail(reportID)
}

// audit writes one append-only entry. An audit write failure is loud but
// non-fatal: the durable report (or its deletion) has already happened,
// and failing the caller now would not undo it.
func (s *Service) audit(action, reportID, userID string) {
	entry := AuditEntry{
		Timestamp: time.Now().UTC(),
		Action:    action,
		ReportID:  reportID,
		UserID:    userID,
		Service:   auditService,
	}
	nonce := uuid.NewString()[:8]
	if err := s.store.AppendAudit(entry, nonce); err != nil {
		s.logger.Error("audit write failed",
			"action", action,
			"report_id", reportID,
			"error", err.Error(),
		)
	}
}
