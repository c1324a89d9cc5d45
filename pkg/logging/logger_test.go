// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggerFiltersBelowInfo(t *testing.T) {
	l := Default()
	defer l.Close()

	require.NotNil(t, l.Slog())
	assert.False(t, l.Slog().Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, l.Slog().Enabled(context.Background(), slog.LevelInfo))
	assert.NoError(t, l.Close(), "Close without file logging is a no-op")
}

func TestLevelString(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.level.String())
	}
}

func readLogFile(t *testing.T, dir, service string) []byte {
	t.Helper()
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return data
}

func TestFileLoggingWritesJSON(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Level: LevelInfo, LogDir: dir, Service: "sentinel", Quiet: true})

	l.Info("report persisted", "report_id", "SAFE-TEST")
	require.NoError(t, l.Close())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(readLogFile(t, dir, "sentinel")), &entry))
	assert.Equal(t, "report persisted", entry["msg"])
	assert.Equal(t, "SAFE-TEST", entry["report_id"])
	assert.Equal(t, "sentinel", entry["service"])
}

func TestWithCarriesAttributes(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Level: LevelInfo, LogDir: dir, Service: "sentinel", Quiet: true})

	l.With("store_id", "store-17").Warn("rule reload skipped")
	require.NoError(t, l.Close())

	data := readLogFile(t, dir, "sentinel")
	assert.Contains(t, string(data), "store-17")
	assert.Contains(t, string(data), "rule reload skipped")
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	}}

	logger := slog.New(h)
	logger.Info("fan out check")

	assert.Contains(t, a.String(), "fan out check")
	assert.Contains(t, b.String(), "fan out check")
}
