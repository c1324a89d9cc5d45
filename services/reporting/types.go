// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package reporting persists confidential safety incident reports.
//
// Principles: encryption at rest, minimal retention, audit logging of
// every access, anonymized identifiers. The raw message exists in exactly
// two places: encrypted inside the report, and transiently decrypted for
// an audited GetReport call.
package reporting

import "time"

// ReportIDPrefix prefixes every report identifier so the ids are
// human-scannable in logs and escalation channels.
const ReportIDPrefix = "SAFE-"

// AccessEntry records one successful read of a report. The access log is
// append-only.
type AccessEntry struct {
	AccessorID string    `json:"accessor_id"`
	Timestamp  time.Time `json:"timestamp"`
	Purpose    string    `json:"purpose"`
}

// ConfidentialReport is one persisted safety incident. Created once per
// escalation, mutated only by appending to AccessLog, deleted when the
// retention period elapses.
type ConfidentialReport struct {
	ReportID           string    `json:"report_id"`
	Timestamp          time.Time `json:"timestamp"`
	Category           string    `json:"classification_category"`
	Severity           string    `json:"severity_level"`
	EscalationPriority string    `json:"escalation_priority"`

	// Anonymized identifiers. AnonymizedUserID is a one-way salted hash;
	// the raw user id is never stored.
	AnonymizedUserID string `json:"anonymized_user_id"`
	DeviceID         string `json:"device_id,omitempty"`
	StoreID          string `json:"store_id"`
	SessionID        string `json:"session_id"`

	// Encrypted sensitive data.
	EncryptedMessage     string `json:"encrypted_message"`
	EncryptionKeyVersion string `json:"encryption_key_version"`

	DetectedPatterns []string `json:"detected_patterns"`
	Confidence       float64  `json:"confidence_score"`
	Reasoning        string   `json:"classification_reasoning"`

	Recipients       []string `json:"recipients"`
	RequiresFollowup bool     `json:"requires_followup"`

	RetentionDays int           `json:"retention_days"`
	AccessLog     []AccessEntry `json:"access_log"`
}

// ExpiresAt returns the moment the report must be purged.
func (r *ConfidentialReport) ExpiresAt() time.Time {
	return r.Timestamp.AddDate(0, 0, r.RetentionDays)
}

// DecryptedReport is the transient read form returned by GetReport. It is
// never persisted.
type DecryptedReport struct {
	ConfidentialReport
	DecryptedMessage string `json:"decrypted_message"`
}

// RoutingMessage is the payload published to the escalation channel keyed
// by priority. It carries routing metadata only, never message content.
type RoutingMessage struct {
	ReportID                string    `json:"report_id"`
	Timestamp               time.Time `json:"timestamp"`
	Severity                string    `json:"severity"`
	Priority                string    `json:"priority"`
	StoreID                 string    `json:"store_id"`
	Recipients              []string  `json:"recipients"`
	RequiresImmediateAction bool      `json:"requires_immediate_action"`
}

// AuditEntry is one append-only audit record. Every report creation,
// access attempt, access grant, and deletion produces one.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	ReportID  string    `json:"report_id"`
	UserID    string    `json:"user_id"`
	Service   string    `json:"service"`
}
