// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reporting

import (
	"context"
	"log/slog"
	"sync"
)

// Notifier publishes routing messages to the escalation channel keyed by
// priority. Delivery is at-least-once relative to the persisted report:
// the report write has already committed when Publish runs, and a publish
// failure never rolls it back.
type Notifier interface {
	Publish(ctx context.Context, msg RoutingMessage) error
}

// LogNotifier writes routing messages to the structured log. It is the
// default channel in deployments without a message broker; downstream
// tooling tails the log stream.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Publish logs the routing message. Content is metadata only; routing
// messages never carry the user's text.
func (n *LogNotifier) Publish(_ context.Context, msg RoutingMessage) error {
	n.logger.Warn("safety escalation",
		"report_id", msg.ReportID,
		"severity", msg.Severity,
		"priority", msg.Priority,
		"store_id", msg.StoreID,
		"recipients", msg.Recipients,
		"requires_immediate_action", msg.RequiresImmediateAction,
	)
	return nil
}

// MemoryNotifier collects routing messages in memory. Used in tests and
// as a buffer for channels wired up later.
type MemoryNotifier struct {
	mu       sync.Mutex
	messages []RoutingMessage
}

// Publish records the message.
func (n *MemoryNotifier) Publish(_ context.Context, msg RoutingMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

// Messages returns a copy of everything published so far.
func (n *MemoryNotifier) Messages() []RoutingMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]RoutingMessage, len(n.messages))
	copy(out, n.messages)
	return out
}
