/**
 * Correction pipeline: ordered post-processing of assembled page text.
 *
 * Order is significant. Literal corrections normalize OCR garbage first so
 * the context-rule regexes see clean tokens, then whitespace is tidied.
 */

package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
	"github.com/asepsafrudin/hybrid-ocr/internal/pattern"
)

// GlobalContext scopes the literal correction pass.
const GlobalContext = "global"

// Result is one pipeline pass over a document's text.
type Result struct {
	Text string
	// Boost values are informational. They are logged with the job but not
	// folded back into per-region confidence.
	CorrectionBoost float64
	ContextBoost    float64
}

// Corrector applies the rule store to assembled text.
type Corrector struct {
	store *pattern.Store
	log   *logging.Logger
}

func NewCorrector(store *pattern.Store, logger *logging.Logger) *Corrector {
	if logger == nil {
		logger = logging.New("pipeline")
	}
	return &Corrector{store: store, log: logger}
}

// Run corrects text for a document of the given type.
func (c *Corrector) Run(text, documentType string) Result {
	corrected, correctionBoost := c.store.ApplyCorrections(text, GlobalContext)

	rctx := pattern.RuleContext{
		DocumentType: documentType,
		TextLength:   utf8.RuneCountInString(corrected),
	}
	corrected, contextBoost := c.store.ApplyContextRules(corrected, rctx)

	corrected = cleanupWhitespace(corrected)

	if correctionBoost > 0 || contextBoost > 0 {
		c.log.Debug("correction boosts", logging.Fields{
			"correction_boost": correctionBoost,
			"context_boost":    contextBoost,
			"document_type":    documentType,
		})
	}

	return Result{
		Text:            corrected,
		CorrectionBoost: correctionBoost,
		ContextBoost:    contextBoost,
	}
}

// cleanupWhitespace trims each line and drops lines the corrections emptied.
func cleanupWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, "\n")
}
