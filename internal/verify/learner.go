/**
 * Correction feedback loop: turns reviewer corrections into new rules so
 * the next document benefits immediately.
 */

package verify

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
	"github.com/asepsafrudin/hybrid-ocr/internal/pattern"
)

const (
	fullPhrasePriority = 1
	fullPhraseBoost    = 0.2
	wordLevelPriority  = 2
	wordLevelBoost     = 0.15

	defaultLanguage = "id"
)

var indonesianMonths = []string{
	"januari", "februari", "maret", "april", "mei", "juni",
	"juli", "agustus", "september", "oktober", "november", "desember",
}

// Correction is one reviewer submission for a flagged region.
type Correction struct {
	RegionID      int    `json:"region_id"`
	OriginalText  string `json:"original_text"`
	CorrectedText string `json:"corrected_text"`
	UserID        string `json:"user_id"`
	DocumentID    string `json:"document_id"`
}

// Learner appends rules derived from reviewer corrections to the store.
type Learner struct {
	store *pattern.Store
	log   *logging.Logger
}

func NewLearner(store *pattern.Store, logger *logging.Logger) *Learner {
	if logger == nil {
		logger = logging.New("verify-learner")
	}
	return &Learner{store: store, log: logger}
}

// Process converts the correction into rules and appends them. Returns the
// generated rules (before id assignment); duplicates are dropped by the
// store.
func (l *Learner) Process(ctx context.Context, corr Correction) ([]pattern.CorrectionRule, error) {
	original := strings.TrimSpace(corr.OriginalText)
	corrected := strings.TrimSpace(corr.CorrectedText)
	if original == "" || corrected == "" || original == corrected {
		return nil, fmt.Errorf("correction must change non-empty text")
	}

	rules := GenerateRules(original, corrected)
	added, err := l.store.AppendCorrections(ctx, rules)
	if err != nil {
		return nil, err
	}

	l.log.Info("learned correction rules", logging.Fields{
		"document_id": corr.DocumentID,
		"region_id":   corr.RegionID,
		"generated":   len(rules),
		"added":       added,
	})
	return rules, nil
}

// GenerateRules builds the full-phrase rule plus word-aligned rules when
// both strings tokenize to the same word count.
func GenerateRules(original, corrected string) []pattern.CorrectionRule {
	context := detectContext(corrected)

	rules := []pattern.CorrectionRule{{
		WrongText:       original,
		CorrectText:     corrected,
		ContextType:     context,
		Category:        detectCategory(original, corrected),
		Priority:        fullPhrasePriority,
		ConfidenceBoost: fullPhraseBoost,
		Enabled:         true,
		Language:        defaultLanguage,
		Notes:           "learned from user verification",
	}}

	origWords := strings.Fields(original)
	corrWords := strings.Fields(corrected)
	if len(origWords) != len(corrWords) || len(origWords) < 2 {
		return rules
	}

	for i := range origWords {
		ow, cw := origWords[i], corrWords[i]
		if ow == cw || utf8.RuneCountInString(ow) <= 1 {
			continue
		}
		rules = append(rules, pattern.CorrectionRule{
			WrongText:       ow,
			CorrectText:     cw,
			ContextType:     context,
			Category:        detectCategory(ow, cw),
			Priority:        wordLevelPriority,
			ConfidenceBoost: wordLevelBoost,
			Enabled:         true,
			Language:        defaultLanguage,
			Notes:           "learned from user verification (word)",
		})
	}
	return rules
}

// detectCategory classifies the rule by the shape of the corrected token.
func detectCategory(original, corrected string) string {
	lower := strings.ToLower(corrected)
	for _, month := range indonesianMonths {
		if strings.Contains(lower, month) {
			return "Month"
		}
	}
	if corrected != "" && isDigits(corrected) {
		return "Number"
	}
	if utf8.RuneCountInString(corrected) == 1 && !isAlnum(corrected) {
		return "Punctuation"
	}
	if utf8.RuneCountInString(original) <= 2 && utf8.RuneCountInString(corrected) <= 2 &&
		isAlnum(original) && isAlnum(corrected) {
		return "Character"
	}
	return "Text"
}

// detectContext guesses which context the rule should be scoped to.
func detectContext(corrected string) string {
	lower := strings.ToLower(corrected)
	for _, month := range indonesianMonths {
		if strings.Contains(lower, month) {
			return "date"
		}
	}

	stripped := strings.Map(func(r rune) rune {
		switch r {
		case '.', '/', '-', ' ':
			return -1
		}
		return r
	}, corrected)
	if stripped != "" && isDigits(stripped) {
		return "number"
	}

	hasDigit, hasAlpha := false, false
	for _, r := range corrected {
		if unicode.IsDigit(r) {
			hasDigit = true
		}
		if unicode.IsLetter(r) {
			hasAlpha = true
		}
	}
	if hasDigit && hasAlpha {
		return "document_number"
	}
	return pattern.ContextAny
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
