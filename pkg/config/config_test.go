// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ListenAddr:       ":8086",
		DataDir:          "./data",
		UserIDSalt:       "a-real-salt-value",
		MaxMessageLength: 2000,
		Retention:        RetentionPolicy{Low: 30, Medium: 90, High: 180, Critical: 365},
		Resources: Resources{
			EAPPhone:          "1-800-555-0100",
			HRPhone:           "1-800-555-0200",
			SecurityExtension: "Ext. 555",
		},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	warnings, err := validConfig().Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidatePlaceholderSaltInProductionIsFatal(t *testing.T) {
	cfg := validConfig()
	cfg.Production = true
	cfg.UserIDSalt = PlaceholderSalt

	_, err := cfg.Validate()
	assert.ErrorIs(t, err, ErrPlaceholderSalt)
}

func TestValidateEmptySaltInProductionIsFatal(t *testing.T) {
	cfg := validConfig()
	cfg.Production = true
	cfg.UserIDSalt = ""

	_, err := cfg.Validate()
	assert.ErrorIs(t, err, ErrPlaceholderSalt)
}

func TestValidatePlaceholderSaltInDevelopmentWarns(t *testing.T) {
	cfg := validConfig()
	cfg.UserIDSalt = PlaceholderSalt

	warnings, err := cfg.Validate()
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "placeholder anonymization salt")
}

func TestValidateRejectsMissingRetention(t *testing.T) {
	cfg := validConfig()
	cfg.Retention.High = 0

	_, err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateWarnsOnUnconfiguredContacts(t *testing.T) {
	cfg := validConfig()
	cfg.Resources.EAPPhone = "1-800-XXX-XXXX"

	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
}

func TestRetentionDaysFor(t *testing.T) {
	cfg := validConfig()

	tests := []struct {
		severity string
		want     int
	}{
		{"low", 30},
		{"medium", 90},
		{"high", 180},
		{"critical", 365},
		{"none", 90},
		{"bogus", 90},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.RetentionDaysFor(tt.severity), tt.severity)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8086", cfg.ListenAddr)
	assert.Equal(t, 2000, cfg.MaxMessageLength)
	assert.Equal(t, 365, cfg.Retention.Critical)
	assert.False(t, cfg.Production)
}
