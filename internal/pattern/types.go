/**
 * Correction rule data model.
 *
 * Rules are immutable once loaded. The store appends new rules learned from
 * user feedback but never edits or renumbers existing ones.
 */

package pattern

import "fmt"

// DeleteSentinel in CorrectText means "remove WrongText entirely".
const DeleteSentinel = "EMPTY"

// ContextAny matches every context.
const ContextAny = "any"

// CorrectionRule is one literal text substitution.
type CorrectionRule struct {
	ID              int     `json:"pattern_id"`
	WrongText       string  `json:"wrong_text"`
	CorrectText     string  `json:"correct_text"`
	ContextType     string  `json:"context_type"`
	Category        string  `json:"category"`
	Priority        int     `json:"priority"`
	ConfidenceBoost float64 `json:"confidence_boost"`
	Enabled         bool    `json:"enabled"`
	Language        string  `json:"language"`
	Notes           string  `json:"notes"`
}

// Context rule actions.
const ActionBoostConfidence = "boost_confidence"

// ContextRule fires on a regex match against already-corrected text.
type ContextRule struct {
	ID          int    `json:"rule_id"`
	Name        string `json:"rule_name"`
	Pattern     string `json:"trigger_pattern"`
	Action      string `json:"action_type"`
	ActionValue string `json:"action_value"`
	Priority    int    `json:"priority"`
	Enabled     bool   `json:"enabled"`
}

// DocumentTypeProfile scores a document against a keyword set.
type DocumentTypeProfile struct {
	Name     string   `json:"document_type"`
	Keywords []string `json:"keywords"`
	Priority int      `json:"priority"`
	Enabled  bool     `json:"enabled"`
}

// RuleSet is one complete load from a repository.
type RuleSet struct {
	Corrections  []CorrectionRule
	ContextRules []ContextRule
	Profiles     []DocumentTypeProfile
}

// MalformedRuleError describes a rule row that could not be parsed. Loads
// skip the row with a warning; this error is only returned when the source
// itself is structurally unusable.
type MalformedRuleError struct {
	Source string
	Row    int
	Field  string
	Cause  error
}

func (e *MalformedRuleError) Error() string {
	return fmt.Sprintf("malformed rule row %d in %s (field %s): %v", e.Row, e.Source, e.Field, e.Cause)
}

func (e *MalformedRuleError) Unwrap() error { return e.Cause }
