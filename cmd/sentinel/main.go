// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command sentinel starts the safety gating HTTP server.
//
// Sentinel sits between clients and a RAG assistant: it classifies user
// messages, verifies documents before ingestion, filters generated
// responses, and persists confidential escalation reports.
//
// # Environment Variables
//
//   - SENTINEL_LISTEN_ADDR: HTTP listen address (default: ":8086")
//   - SENTINEL_DATA_DIR: BadgerDB directory (default: "./data/sentinel")
//   - SENTINEL_RULES_DIR: optional directory of YAML rule tables (hot reloaded)
//   - SENTINEL_ENV: "production" or "development" (default: development)
//   - SENTINEL_USER_ID_SALT: anonymization salt, REQUIRED in production
//   - SENTINEL_ENCRYPTION_KEY: report encryption key, 64 hex chars, REQUIRED in production
//   - SENTINEL_ENCRYPTION_KEY_VERSION: encryption key version tag (default: "v1")
//   - SENTINEL_LLM_BASE_URL: OpenAI-compatible endpoint for semantic analysis
//
// # Usage
//
//	# Build
//	go build -o sentinel ./cmd/sentinel
//
//	# Run
//	SENTINEL_USER_ID_SALT=$(openssl rand -hex 32) ./sentinel
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianSentinel/pkg/config"
	"github.com/AleutianAI/AleutianSentinel/pkg/logging"
	badgerstore "github.com/AleutianAI/AleutianSentinel/pkg/storage/badger"
	"github.com/AleutianAI/AleutianSentinel/services/docverify"
	"github.com/AleutianAI/AleutianSentinel/services/gateway"
	"github.com/AleutianAI/AleutianSentinel/services/gateway/observability"
	"github.com/AleutianAI/AleutianSentinel/services/reporting"
	"github.com/AleutianAI/AleutianSentinel/services/respfilter"
	"github.com/AleutianAI/AleutianSentinel/services/safety"
)

func main() {
	logger := logging.New(logging.Config{Level: logging.LevelInfo, Service: "sentinel", JSON: true})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := config.FromEnv()
	warnings, err := cfg.Validate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	for _, w := range warnings {
		logger.Warn("configuration warning", "warning", w)
	}

	if err := run(cfg, logger.Slog()); err != nil {
		log.Fatalf("Sentinel error: %v", err)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Report and audit store.
	db, err := badgerstore.OpenWithPath(cfg.DataDir, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := reporting.NewStore(db)
	if err != nil {
		return err
	}

	keys, err := newKeyProvider(cfg, logger)
	if err != nil {
		return err
	}
	encryptor, err := reporting.NewEncryptor(keys)
	if err != nil {
		return err
	}
	anonymizer, err := reporting.NewAnonymizer(cfg.UserIDSalt)
	if err != nil {
		return err
	}

	reports, err := reporting.NewService(store, reporting.NewLogNotifier(logger), encryptor, anonymizer, cfg, logger)
	if err != nil {
		return err
	}

	// Classifier rules: defaults, or hot-reloaded YAML tables.
	var provider safety.RuleProvider = safety.DefaultClassifierRules()
	if cfg.RulesDir != "" {
		ruleStore, err := safety.NewRuleStore(cfg.RulesDir, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := ruleStore.Watch(ctx); err != nil {
				logger.Error("rule watcher stopped", "error", err.Error())
			}
		}()
		provider = ruleStore
	}

	var semantic safety.SemanticClassifier
	var semanticVerifier docverify.SemanticVerifier
	if cfg.Semantic.Enabled && cfg.Semantic.BaseURL != "" {
		semantic, err = safety.NewLLMSemanticClassifier(cfg.Semantic.BaseURL, "", cfg.Semantic.Model, cfg.Semantic.Timeout)
		if err != nil {
			return err
		}
		semanticVerifier, err = docverify.NewLLMSemanticVerifier(cfg.Semantic.BaseURL, "", cfg.Semantic.Model, cfg.Semantic.Timeout)
		if err != nil {
			return err
		}
		logger.Info("semantic analysis enabled", "model", cfg.Semantic.Model)
	} else {
		logger.Warn("semantic analysis disabled; ambiguous messages fall back to conservative classification")
	}

	classifier, err := safety.NewClassifier(provider, semantic, logger)
	if err != nil {
		return err
	}
	policy := safety.NewPolicyEngine(cfg.Resources)

	// Verifier rules come from the same directory as the classifier tables;
	// categories the directory does not override keep the built-in defaults.
	verifierRules, err := docverify.LoadVerifierRules(cfg.RulesDir)
	if err != nil {
		return err
	}
	verifier := docverify.NewVerifier(verifierRules, semanticVerifier, logger)
	filter := respfilter.NewFilter(nil, logger)

	gw, err := gateway.NewGateway(classifier, policy, verifier, filter, reports, gateway.Options{
		MaxMessageLength: cfg.MaxMessageLength,
		Metrics:          observability.InitMetrics(),
	}, logger)
	if err != nil {
		return err
	}

	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	gateway.SetupRoutes(router, gw)

	// Retention sweep: audited deletion of expired reports, daily.
	go runRetentionSweep(ctx, reports, logger)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sentinel listening", "addr", cfg.ListenAddr, "production", cfg.Production)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newKeyProvider loads the report encryption key. Production requires
// SENTINEL_ENCRYPTION_KEY (64 hex chars) with a version tag; development
// falls back to an ephemeral key that dies with the process.
func newKeyProvider(cfg *config.Config, logger *slog.Logger) (reporting.KeyProvider, error) {
	hexKey := os.Getenv("SENTINEL_ENCRYPTION_KEY")
	if hexKey == "" {
		if cfg.Production {
			return nil, errors.New("SENTINEL_ENCRYPTION_KEY is required in production")
		}
		logger.Warn("using ephemeral encryption key; reports will be unreadable after restart")
		return reporting.NewDevKeyProvider()
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.New("SENTINEL_ENCRYPTION_KEY must be hex-encoded")
	}
	version := os.Getenv("SENTINEL_ENCRYPTION_KEY_VERSION")
	if version == "" {
		version = "v1"
	}
	return reporting.NewStaticKeyProvider(key, version)
}

func runRetentionSweep(ctx context.Context, reports *reporting.Service, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := reports.CleanupExpired(ctx); err != nil {
				logger.Error("retention sweep failed", "error", err.Error())
			}
		}
	}
}
