// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reporting

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a report does not exist. Callers exposing
// reports to external accessors must map authorization failures to this
// same error so existence is not leaked.
var ErrNotFound = errors.New("report not found")

const (
	reportPrefix = "report:"
	auditPrefix  = "audit:"

	// ttlSlack extends the storage-level TTL past the retention period.
	// The audited sweep in CleanupExpired is the authoritative delete;
	// the TTL is a backstop in case the sweep stops running.
	ttlSlack = 7 * 24 * time.Hour

	// appendRetries bounds optimistic-concurrency retries when two
	// readers append to the same access log.
	appendRetries = 8
)

// Store persists confidential reports and audit entries in BadgerDB.
//
// Thread Safety: safe for concurrent use. Access-log appends retry on
// transaction conflict so concurrent appends never lose entries.
type Store struct {
	db *badger.DB
}

// NewStore wraps an opened database.
func NewStore(db *badger.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	return &Store{db: db}, nil
}

func reportKey(reportID string) []byte {
	return []byte(reportPrefix + reportID)
}

// PutReport persists a report in a single atomic transaction with a
// storage-level TTL backstop. Either the whole report is durable or
// nothing is.
func (s *Store) PutReport(report *ConfidentialReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", report.ReportID, err)
	}

	ttl := time.Until(report.ExpiresAt()) + ttlSlack
	if ttl <= 0 {
		return fmt.Errorf("report %s is already past retention", report.ReportID)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(reportKey(report.ReportID), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("store report %s: %w", report.ReportID, err)
	}
	return nil
}

// GetReport loads a report by id. Returns ErrNotFound for missing or
// expired reports.
func (s *Store) GetReport(reportID string) (*ConfidentialReport, error) {
	var report ConfidentialReport
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(reportKey(reportID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &report)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", reportID, err)
	}
	return &report, nil
}

// AppendAccess appends one entry to a report's access log. The
// read-modify-write runs in a transaction and retries on conflict, so
// concurrent accesses of the same report never overwrite each other's
// entries.
func (s *Store) AppendAccess(reportID string, entry AccessEntry) error {
	for attempt := 0; attempt < appendRetries; attempt++ {
		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(reportKey(reportID))
			if err != nil {
				return err
			}

			var report ConfidentialReport
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &report)
			}); err != nil {
				return err
			}

			report.AccessLog = append(report.AccessLog, entry)

			data, err := json.Marshal(&report)
			if err != nil {
				return err
			}

			// Preserve the remaining TTL rather than restarting it.
			ttl := time.Until(report.ExpiresAt()) + ttlSlack
			if ttl <= 0 {
				return badger.ErrKeyNotFound
			}
			return txn.SetEntry(badger.NewEntry(reportKey(reportID), data).WithTTL(ttl))
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("append access to report %s: %w", reportID, err)
		}
		return nil
	}
	return fmt.Errorf("append access to report %s: too many conflicts", reportID)
}

// DeleteReport removes a report.
func (s *Store) DeleteReport(reportID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(reportKey(reportID))
	})
	if err != nil {
		return fmt.Errorf("delete report %s: %w", reportID, err)
	}
	return nil
}

// ExpiredReportIDs returns the ids of reports whose retention period has
// elapsed as of now.
func (s *Store) ExpiredReportIDs(now time.Time) ([]string, error) {
	var expired []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(reportPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var report ConfidentialReport
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &report)
			}); err != nil {
				return err
			}
			if now.After(report.ExpiresAt()) {
				expired = append(expired, report.ReportID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan expired reports: %w", err)
	}
	return expired, nil
}

// AppendAudit writes one append-only audit entry. Audit keys embed the
// timestamp and a nonce so entries never collide and iterate in time
// order.
func (s *Store) AppendAudit(entry AuditEntry, nonce string) error {
	key := fmt.Sprintf("%s%s:%s", auditPrefix, entry.Timestamp.UTC().Format(time.RFC3339Nano), nonce)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("store audit entry: %w", err)
	}
	return nil
}

// AuditTrail returns every audit entry for a report, in time order.
func (s *Store) AuditTrail(reportID string) ([]AuditEntry, error) {
	var entries []AuditEntry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(auditPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var entry AuditEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}
			if entry.ReportID == reportID {
				entries = append(entries, entry)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit trail: %w", err)
	}
	return entries, nil
}
