/**
 * In-memory correction rule store.
 *
 * Holds one immutable snapshot of the loaded rule set. Reload builds a new
 * snapshot and swaps it under the write lock, so concurrent correction
 * passes see either the fully-old or fully-new rules, never a mix.
 */

package pattern

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
)

const (
	// correctionBoostCap bounds the mean boost from literal corrections.
	correctionBoostCap = 0.5
	// contextBoostCap bounds the mean boost from context rules.
	contextBoostCap = 0.3
	// typeScoreThreshold is the minimum keyword-overlap score for a
	// document type match.
	typeScoreThreshold = 0.3

	// DefaultDocumentType is reported when no profile scores high enough.
	DefaultDocumentType = "General"
)

// RuleContext carries the document-level inputs context rules can inspect.
type RuleContext struct {
	DocumentType string
	TextLength   int
}

type compiledContextRule struct {
	rule ContextRule
	re   *regexp.Regexp // nil when the pattern failed to compile
}

// snapshot is one immutable, priority-sorted view of the rule set.
type snapshot struct {
	corrections  []CorrectionRule
	contextRules []compiledContextRule
	profiles     []DocumentTypeProfile
	maxID        int
}

// Store serves rule lookups to concurrent document pipelines.
type Store struct {
	repo Repository
	log  *logging.Logger

	mu   sync.RWMutex
	snap *snapshot
}

// NewStore loads the initial rule set from repo.
func NewStore(repo Repository, logger *logging.Logger) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("rule repository is required")
	}
	if logger == nil {
		logger = logging.New("pattern-store")
	}

	s := &Store{repo: repo, log: logger}
	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the whole rule collection atomically.
func (s *Store) Reload(ctx context.Context) error {
	set, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload rules: %w", err)
	}

	snap := buildSnapshot(set, s.log)

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	s.log.Info("rule set loaded", logging.Fields{
		"corrections":    len(snap.corrections),
		"context_rules":  len(snap.contextRules),
		"document_types": len(snap.profiles),
	})
	return nil
}

func buildSnapshot(set *RuleSet, log *logging.Logger) *snapshot {
	snap := &snapshot{
		corrections: make([]CorrectionRule, len(set.Corrections)),
		profiles:    make([]DocumentTypeProfile, len(set.Profiles)),
	}
	copy(snap.corrections, set.Corrections)
	copy(snap.profiles, set.Profiles)

	sort.SliceStable(snap.corrections, func(i, j int) bool {
		return snap.corrections[i].Priority < snap.corrections[j].Priority
	})
	for _, rule := range snap.corrections {
		if rule.ID > snap.maxID {
			snap.maxID = rule.ID
		}
	}

	snap.contextRules = make([]compiledContextRule, 0, len(set.ContextRules))
	for _, rule := range set.ContextRules {
		compiled := compiledContextRule{rule: rule}
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			log.Warn("context rule has invalid regex, rule disabled", logging.Fields{
				"rule_id": rule.ID, "pattern": rule.Pattern, "error": err,
			})
		} else {
			compiled.re = re
		}
		snap.contextRules = append(snap.contextRules, compiled)
	}
	sort.SliceStable(snap.contextRules, func(i, j int) bool {
		return snap.contextRules[i].rule.Priority < snap.contextRules[j].rule.Priority
	})

	return snap
}

func (s *Store) current() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// ApplyCorrections runs every enabled literal correction whose context
// matches, in ascending priority order. Returns the corrected text and the
// mean boost over rules that actually matched, capped at 0.5.
func (s *Store) ApplyCorrections(text, context string) (string, float64) {
	snap := s.current()

	var boosts []float64
	for _, rule := range snap.corrections {
		if !rule.Enabled {
			continue
		}
		if rule.ContextType != ContextAny && context != ContextAny && rule.ContextType != context {
			continue
		}
		if !strings.Contains(text, rule.WrongText) {
			continue
		}

		replacement := rule.CorrectText
		if replacement == DeleteSentinel {
			replacement = ""
		}
		text = strings.ReplaceAll(text, rule.WrongText, replacement)
		boosts = append(boosts, rule.ConfidenceBoost)
	}

	return text, cappedMean(boosts, correctionBoostCap)
}

// ApplyContextRules fires enabled regex rules against the already-corrected
// text. Only the boost-confidence action is implemented; its values
// accumulate into a mean capped at 0.3. The text is returned unchanged.
func (s *Store) ApplyContextRules(text string, rctx RuleContext) (string, float64) {
	snap := s.current()

	var boosts []float64
	for _, c := range snap.contextRules {
		if !c.rule.Enabled || c.re == nil {
			continue
		}
		if !c.re.MatchString(text) {
			continue
		}
		if c.rule.Action != ActionBoostConfidence {
			continue
		}
		value, err := strconv.ParseFloat(c.rule.ActionValue, 64)
		if err != nil {
			s.log.Warn("context rule has invalid action value", logging.Fields{
				"rule_id": c.rule.ID, "action_value": c.rule.ActionValue,
			})
			continue
		}
		boosts = append(boosts, value)
	}

	return text, cappedMean(boosts, contextBoostCap)
}

func cappedMean(values []float64, ceiling float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean > ceiling {
		return ceiling
	}
	return mean
}

// DetectDocumentType scores the text against every enabled keyword profile
// and returns the best match at or above the threshold, else "General".
func (s *Store) DetectDocumentType(text string) string {
	snap := s.current()
	lower := strings.ToLower(text)

	best := DefaultDocumentType
	bestScore := 0.0
	for _, profile := range snap.profiles {
		if !profile.Enabled || len(profile.Keywords) == 0 {
			continue
		}
		matched := 0
		for _, kw := range profile.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched++
			}
		}
		score := float64(matched) / float64(len(profile.Keywords))
		if score > bestScore {
			bestScore = score
			best = profile.Name
		}
	}

	if bestScore < typeScoreThreshold {
		return DefaultDocumentType
	}
	return best
}

// AppendCorrections assigns fresh sequential ids to the non-duplicate rules,
// persists them, and reloads the store. Duplicates on exact
// (WrongText, CorrectText) are silently dropped. Returns how many rules were
// actually added.
func (s *Store) AppendCorrections(ctx context.Context, rules []CorrectionRule) (int, error) {
	snap := s.current()

	existing := make(map[string]bool, len(snap.corrections))
	for _, rule := range snap.corrections {
		existing[rule.WrongText+"\x00"+rule.CorrectText] = true
	}

	nextID := snap.maxID + 1
	fresh := make([]CorrectionRule, 0, len(rules))
	for _, rule := range rules {
		key := rule.WrongText + "\x00" + rule.CorrectText
		if existing[key] {
			continue
		}
		existing[key] = true
		rule.ID = nextID
		nextID++
		fresh = append(fresh, rule)
	}

	if len(fresh) == 0 {
		return 0, nil
	}

	if err := s.repo.AppendCorrections(ctx, fresh); err != nil {
		return 0, fmt.Errorf("failed to append correction rules: %w", err)
	}
	if err := s.Reload(ctx); err != nil {
		return len(fresh), err
	}
	return len(fresh), nil
}

// AppendProfile persists a new document type profile and reloads.
func (s *Store) AppendProfile(ctx context.Context, profile DocumentTypeProfile) error {
	if err := s.repo.AppendProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to append document type: %w", err)
	}
	return s.Reload(ctx)
}

// Stats reports collection sizes for logging and health endpoints.
func (s *Store) Stats() map[string]int {
	snap := s.current()
	enabled := 0
	for _, rule := range snap.corrections {
		if rule.Enabled {
			enabled++
		}
	}
	return map[string]int{
		"corrections":         len(snap.corrections),
		"corrections_enabled": enabled,
		"context_rules":       len(snap.contextRules),
		"document_types":      len(snap.profiles),
	}
}
