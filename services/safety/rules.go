// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// RuleSpec is the YAML form of one rule. Rule tables live as data files so
// they can be audited, updated, and tested independently of engine logic.
type RuleSpec struct {
	ID             string  `yaml:"id"`
	Category       string  `yaml:"category"`
	Severity       string  `yaml:"severity"`
	Confidence     float64 `yaml:"confidence"`
	Pattern        string  `yaml:"pattern"`
	Recommendation string  `yaml:"recommendation"`
	MaskPII        bool    `yaml:"mask_pii"`
}

// RuleFile is the YAML schema of one rule table file.
type RuleFile struct {
	Version          string     `yaml:"version"`
	Rules            []RuleSpec `yaml:"rules"`
	ImmediacyMarkers []string   `yaml:"immediacy_markers"`
	AmbiguityMarkers []string   `yaml:"ambiguity_markers"`
}

// Compile validates the spec and produces a matcher rule. Patterns are
// compiled eagerly here so a bad rule file fails at load, not mid-request.
func (s RuleSpec) Compile() (*Rule, error) {
	if s.ID == "" {
		return nil, fmt.Errorf("rule with pattern %q has no id", s.Pattern)
	}
	if s.Pattern == "" {
		return nil, fmt.Errorf("rule %s has no pattern", s.ID)
	}
	severity, ok := ParseSeverity(s.Severity)
	if !ok {
		return nil, fmt.Errorf("rule %s: unknown severity %q", s.ID, s.Severity)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return nil, fmt.Errorf("rule %s: confidence %v out of range", s.ID, s.Confidence)
	}
	if _, err := regexp.Compile(`(?is)` + s.Pattern); err != nil {
		return nil, fmt.Errorf("rule %s: invalid pattern: %w", s.ID, err)
	}
	return &Rule{
		ID:             s.ID,
		Category:       s.Category,
		Severity:       severity,
		Confidence:     s.Confidence,
		Pattern:        s.Pattern,
		Recommendation: s.Recommendation,
		MaskPII:        s.MaskPII,
	}, nil
}

// LoadRuleSets reads every .yaml/.yml file in dir and groups the compiled
// rules by category. Files are read in name order so table ordering is
// stable across loads. Marker lists from all files are concatenated.
func LoadRuleSets(dir string) (map[string]RuleSet, *RuleFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read rules dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	merged := &RuleFile{}
	byCategory := make(map[string]RuleSet)
	seen := make(map[string]string)

	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read rule file %s: %w", name, err)
		}

		var file RuleFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, nil, fmt.Errorf("parse rule file %s: %w", name, err)
		}

		if file.Version != "" {
			merged.Version = file.Version
		}
		merged.ImmediacyMarkers = append(merged.ImmediacyMarkers, file.ImmediacyMarkers...)
		merged.AmbiguityMarkers = append(merged.AmbiguityMarkers, file.AmbiguityMarkers...)

		for _, spec := range file.Rules {
			if prev, dup := seen[spec.ID]; dup {
				return nil, nil, fmt.Errorf("rule %s in %s duplicates id from %s", spec.ID, name, prev)
			}
			seen[spec.ID] = name

			rule, err := spec.Compile()
			if err != nil {
				return nil, nil, fmt.Errorf("rule file %s: %w", name, err)
			}
			byCategory[rule.Category] = append(byCategory[rule.Category], rule)
		}
	}

	return byCategory, merged, nil
}

// LoadClassifierRules builds classifier rule tables from a rules directory.
// Categories absent from the directory fall back to the built-in defaults,
// so a deployment can override only the tables it cares about.
func LoadClassifierRules(dir string) (*ClassifierRules, error) {
	defaults := DefaultClassifierRules()
	if dir == "" {
		return defaults, nil
	}

	byCategory, file, err := LoadRuleSets(dir)
	if err != nil {
		return nil, err
	}

	rules := &ClassifierRules{
		Version:           defaults.Version,
		SelfHarm:          pickTable(byCategory, "self_harm", defaults.SelfHarm),
		HarmToOthers:      pickTable(byCategory, "harm_to_others", defaults.HarmToOthers),
		Distress:          pickTable(byCategory, "emotional_distress", defaults.Distress),
		Profanity:         pickTable(byCategory, "profanity", defaults.Profanity),
		WorkplaceViolence: pickTable(byCategory, "workplace_violence", defaults.WorkplaceViolence),
		ImmediacyMarkers:  defaults.ImmediacyMarkers,
		AmbiguityMarkers:  defaults.AmbiguityMarkers,
	}
	if file.Version != "" {
		rules.Version = file.Version
	}
	if len(file.ImmediacyMarkers) > 0 {
		rules.ImmediacyMarkers = file.ImmediacyMarkers
	}
	if len(file.AmbiguityMarkers) > 0 {
		rules.AmbiguityMarkers = file.AmbiguityMarkers
	}

	// Rebuild the imminent subset from whichever tables are now active.
	rules.Imminent = imminentSubset(rules.SelfHarm, rules.HarmToOthers)

	return rules, nil
}

func pickTable(byCategory map[string]RuleSet, category string, fallback RuleSet) RuleSet {
	if rs, ok := byCategory[category]; ok {
		return rs
	}
	return fallback
}

// RuleProvider yields the current classifier rule tables. ClassifierRules
// satisfies it directly for static tables; RuleStore satisfies it with
// hot-reloaded tables.
type RuleProvider interface {
	Rules() *ClassifierRules
}

// Rules returns the receiver, letting a fixed table act as its own provider.
func (r *ClassifierRules) Rules() *ClassifierRules { return r }

// RuleStore holds the active classifier rule tables and reloads them when
// the rules directory changes on disk. Swaps are atomic; in-flight
// classifications finish against the tables they started with.
//
// Thread Safety: Rules may be called concurrently with Watch.
type RuleStore struct {
	dir     string
	logger  *slog.Logger
	current atomic.Pointer[ClassifierRules]
}

// NewRuleStore loads the initial tables from dir (built-in defaults when
// dir is empty) and returns a store ready for Watch.
func NewRuleStore(dir string, logger *slog.Logger) (*RuleStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rules, err := LoadClassifierRules(dir)
	if err != nil {
		return nil, err
	}
	s := &RuleStore{dir: dir, logger: logger}
	s.current.Store(rules)
	return s, nil
}

// Rules returns the active tables.
func (s *RuleStore) Rules() *ClassifierRules {
	return s.current.Load()
}

// Watch reloads the tables whenever a YAML file in the rules directory is
// written or created, until ctx is cancelled. A reload that fails to parse
// keeps the previous tables active and logs the error; a safety gate must
// not go dark because someone pushed a broken rule file.
func (s *RuleStore) Watch(ctx context.Context) error {
	if s.dir == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create rules watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch rules dir: %w", err)
	}

	// Editors fire several events per save; coalesce them briefly.
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			ext := strings.ToLower(filepath.Ext(event.Name))
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			pending = time.After(250 * time.Millisecond)

		case <-pending:
			pending = nil
			rules, err := LoadClassifierRules(s.dir)
			if err != nil {
				s.logger.Error("rule reload failed, keeping previous tables",
					"dir", s.dir,
					"error", err.Error(),
				)
				continue
			}
			s.current.Store(rules)
			s.logger.Info("classifier rule tables reloaded",
				"dir", s.dir,
				"version", rules.Version,
			)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("rules watcher error", "error", err.Error())
		}
	}
}
