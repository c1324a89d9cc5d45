// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config holds the process-wide Sentinel configuration.
//
// Configuration is built exactly once at process start from environment
// variables and passed by reference into component constructors. No other
// package reads ambient environment state.
//
// Environment variables:
//
//	SENTINEL_LISTEN_ADDR          HTTP listen address (default ":8086")
//	SENTINEL_DATA_DIR             BadgerDB directory (default "./data/sentinel")
//	SENTINEL_RULES_DIR            Optional directory of YAML rule tables
//	SENTINEL_ENV                  "production" or "development" (default "development")
//	SENTINEL_USER_ID_SALT         Salt for user ID anonymization (REQUIRED in production)
//	SENTINEL_MAX_MESSAGE_LENGTH   Inbound message clamp in characters (default 2000)
//	SENTINEL_LLM_ENABLED          Enable semantic classification fallback (default "true")
//	SENTINEL_LLM_BASE_URL         OpenAI-compatible endpoint for the semantic classifier
//	SENTINEL_LLM_MODEL            Model name (default "gemini-2.0-flash-exp")
//	SENTINEL_LLM_TIMEOUT          Semantic call timeout (default "5s")
//	SENTINEL_RETENTION_LOW        Retention days for LOW severity (default 30)
//	SENTINEL_RETENTION_MEDIUM     Retention days for MEDIUM severity (default 90)
//	SENTINEL_RETENTION_HIGH       Retention days for HIGH severity (default 180)
//	SENTINEL_RETENTION_CRITICAL   Retention days for CRITICAL severity (default 365)
//	SENTINEL_EAP_PHONE            Employee Assistance Program phone number
//	SENTINEL_HR_PHONE             HR support phone number
//	SENTINEL_SECURITY_EXTENSION   Site security extension
//
// The report encryption key is read directly by the sentinel command, not
// through this package:
//
//	SENTINEL_ENCRYPTION_KEY          64 hex chars (REQUIRED in production)
//	SENTINEL_ENCRYPTION_KEY_VERSION  Key version tag (default "v1")
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// PlaceholderSalt is the value that must never survive into production.
// Using it (or leaving the salt empty) in production mode is a hard
// configuration error.
const PlaceholderSalt = "default_salt_CHANGE_IN_PRODUCTION"

// ErrPlaceholderSalt indicates the anonymization salt is missing or still
// set to the shipped placeholder while running in production mode.
var ErrPlaceholderSalt = errors.New("anonymization salt is missing or placeholder; set SENTINEL_USER_ID_SALT")

// RetentionPolicy maps report severity to retention in days.
type RetentionPolicy struct {
	Low      int `validate:"min=1,max=3650"`
	Medium   int `validate:"min=1,max=3650"`
	High     int `validate:"min=1,max=3650"`
	Critical int `validate:"min=1,max=3650"`
}

// SemanticConfig configures the optional LLM-backed semantic classifier.
type SemanticConfig struct {
	Enabled bool
	BaseURL string
	Model   string        `validate:"required_if=Enabled true"`
	Timeout time.Duration `validate:"min=0"`
}

// Resources holds deployment-specific support contact points. Placeholder
// values are allowed but reported as warnings by Validate.
type Resources struct {
	EAPPhone          string
	HRPhone           string
	SecurityExtension string
}

// Config is the validated process configuration.
type Config struct {
	ListenAddr string `validate:"required"`
	DataDir    string `validate:"required"`
	RulesDir   string
	Production bool

	// UserIDSalt feeds the one-way anonymization hash. Never logged.
	UserIDSalt string

	// MaxMessageLength clamps inbound messages before classification.
	MaxMessageLength int `validate:"min=1"`

	Semantic  SemanticConfig
	Retention RetentionPolicy
	Resources Resources
}

// FromEnv builds a Config from environment variables with defaults applied.
// The result is not yet validated; call Validate before use.
func FromEnv() *Config {
	return &Config{
		ListenAddr:       envOr("SENTINEL_LISTEN_ADDR", ":8086"),
		DataDir:          envOr("SENTINEL_DATA_DIR", "./data/sentinel"),
		RulesDir:         os.Getenv("SENTINEL_RULES_DIR"),
		Production:       envOr("SENTINEL_ENV", "development") == "production",
		UserIDSalt:       envOr("SENTINEL_USER_ID_SALT", PlaceholderSalt),
		MaxMessageLength: envInt("SENTINEL_MAX_MESSAGE_LENGTH", 2000),
		Semantic: SemanticConfig{
			Enabled: envOr("SENTINEL_LLM_ENABLED", "true") == "true",
			BaseURL: os.Getenv("SENTINEL_LLM_BASE_URL"),
			Model:   envOr("SENTINEL_LLM_MODEL", "gemini-2.0-flash-exp"),
			Timeout: envDuration("SENTINEL_LLM_TIMEOUT", 5*time.Second),
		},
		Retention: RetentionPolicy{
			Low:      envInt("SENTINEL_RETENTION_LOW", 30),
			Medium:   envInt("SENTINEL_RETENTION_MEDIUM", 90),
			High:     envInt("SENTINEL_RETENTION_HIGH", 180),
			Critical: envInt("SENTINEL_RETENTION_CRITICAL", 365),
		},
		Resources: Resources{
			EAPPhone:          envOr("SENTINEL_EAP_PHONE", "1-800-XXX-XXXX"),
			HRPhone:           envOr("SENTINEL_HR_PHONE", "1-800-XXX-XXXX"),
			SecurityExtension: envOr("SENTINEL_SECURITY_EXTENSION", "Ext. 999"),
		},
	}
}

// Validate checks structural constraints and secret material.
//
// Returns ErrPlaceholderSalt (wrapped) when running in production mode with
// a missing or placeholder salt. In development mode the same condition is
// returned in warnings instead, so the caller can log it loudly and proceed.
func (c *Config) Validate() (warnings []string, err error) {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	saltBad := c.UserIDSalt == "" || c.UserIDSalt == PlaceholderSalt
	if saltBad {
		if c.Production {
			return nil, ErrPlaceholderSalt
		}
		warnings = append(warnings, "using placeholder anonymization salt; reports are NOT safe for production")
	}

	if c.Resources.EAPPhone == "1-800-XXX-XXXX" {
		warnings = append(warnings, "EAP phone number not configured (SENTINEL_EAP_PHONE)")
	}
	if c.Resources.HRPhone == "1-800-XXX-XXXX" {
		warnings = append(warnings, "HR phone number not configured (SENTINEL_HR_PHONE)")
	}
	if c.Resources.SecurityExtension == "Ext. 999" {
		warnings = append(warnings, "security extension not configured (SENTINEL_SECURITY_EXTENSION)")
	}

	return warnings, nil
}

// RetentionDaysFor returns the retention period for a severity name
// ("low", "medium", "high", "critical"). Unknown severities get the
// medium retention, matching the conservative default.
func (c *Config) RetentionDaysFor(severity string) int {
	switch severity {
	case "low":
		return c.Retention.Low
	case "medium":
		return c.Retention.Medium
	case "high":
		return c.Retention.High
	case "critical":
		return c.Retention.Critical
	default:
		return c.Retention.Medium
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
