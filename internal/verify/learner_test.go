package verify

import (
	"context"
	"testing"

	"github.com/asepsafrudin/hybrid-ocr/internal/pattern"
)

type memoryRepo struct{ set pattern.RuleSet }

func (m *memoryRepo) Load(ctx context.Context) (*pattern.RuleSet, error) {
	set := m.set
	return &set, nil
}

func (m *memoryRepo) AppendCorrections(ctx context.Context, rules []pattern.CorrectionRule) error {
	m.set.Corrections = append(m.set.Corrections, rules...)
	return nil
}

func (m *memoryRepo) AppendProfile(ctx context.Context, p pattern.DocumentTypeProfile) error {
	m.set.Profiles = append(m.set.Profiles, p)
	return nil
}

func TestGenerateRulesFullPhraseAndWords(t *testing.T) {
	rules := GenerateRules("5 Fcbruar` 9025", "5 Februari 2025")

	if len(rules) != 3 {
		t.Fatalf("generated %d rules, want full phrase + 2 word rules", len(rules))
	}

	full := rules[0]
	if full.WrongText != "5 Fcbruar` 9025" || full.CorrectText != "5 Februari 2025" {
		t.Errorf("unexpected full-phrase rule %+v", full)
	}
	if full.Priority != fullPhrasePriority || full.ConfidenceBoost != fullPhraseBoost {
		t.Errorf("full-phrase rule priority/boost = %d/%v", full.Priority, full.ConfidenceBoost)
	}
	if full.ContextType != "date" {
		t.Errorf("full-phrase context = %q, want date (contains month name)", full.ContextType)
	}
	if full.Category != "Month" {
		t.Errorf("full-phrase category = %q, want Month", full.Category)
	}

	month := rules[1]
	if month.WrongText != "Fcbruar`" || month.CorrectText != "Februari" {
		t.Errorf("unexpected word rule %+v", month)
	}
	if month.Priority != wordLevelPriority || month.ConfidenceBoost != wordLevelBoost {
		t.Errorf("word rule priority/boost = %d/%v", month.Priority, month.ConfidenceBoost)
	}

	year := rules[2]
	if year.WrongText != "9025" || year.CorrectText != "2025" || year.Category != "Number" {
		t.Errorf("unexpected word rule %+v", year)
	}
}

func TestGenerateRulesUnalignedTokens(t *testing.T) {
	rules := GenerateRules("Nomer surat", "Nomor surat dinas")
	if len(rules) != 1 {
		t.Fatalf("token counts differ, want only the full-phrase rule, got %d", len(rules))
	}
}

func TestGenerateRulesSkipsSingleCharWords(t *testing.T) {
	rules := GenerateRules("l 234", "1 234")
	// "l" is one rune; only the full phrase survives.
	if len(rules) != 1 {
		t.Fatalf("generated %d rules, want 1", len(rules))
	}
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		original, corrected, want string
	}{
		{"Fcbruar`", "Februari", "Month"},
		{"9025", "2025", "Number"},
		{"'", ",", "Punctuation"},
		{"l0", "10", "Number"},
		{"O", "0", "Number"},
		{"ab", "cd", "Character"},
		{"Nomer", "Nomor", "Text"},
	}
	for _, tt := range tests {
		if got := detectCategory(tt.original, tt.corrected); got != tt.want {
			t.Errorf("detectCategory(%q, %q) = %q, want %q", tt.original, tt.corrected, got, tt.want)
		}
	}
}

func TestDetectContext(t *testing.T) {
	tests := []struct {
		corrected, want string
	}{
		{"5 Februari 2025", "date"},
		{"421.1/2025", "number"},
		{"KP.04.05", "document_number"},
		{"surat dinas", "any"},
	}
	for _, tt := range tests {
		if got := detectContext(tt.corrected); got != tt.want {
			t.Errorf("detectContext(%q) = %q, want %q", tt.corrected, got, tt.want)
		}
	}
}

func TestLearnerProcessAppendsAndReloads(t *testing.T) {
	store, err := pattern.NewStore(&memoryRepo{}, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	learner := NewLearner(store, nil)

	rules, err := learner.Process(context.Background(), Correction{
		RegionID:      3,
		OriginalText:  "Fcbruar`",
		CorrectedText: "Februari",
		DocumentID:    "doc-1",
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("generated %d rules, want 1", len(rules))
	}

	// The store must already serve the learned rule.
	got, _ := store.ApplyCorrections("5 Fcbruar` 2025", "date")
	if got != "5 Februari 2025" {
		t.Errorf("learned rule not active after Process, got %q", got)
	}
}

func TestLearnerProcessRejectsNoOp(t *testing.T) {
	store, err := pattern.NewStore(&memoryRepo{}, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	learner := NewLearner(store, nil)

	if _, err := learner.Process(context.Background(), Correction{OriginalText: "sama", CorrectedText: "sama"}); err == nil {
		t.Errorf("identical texts must be rejected")
	}
	if _, err := learner.Process(context.Background(), Correction{OriginalText: "", CorrectedText: "x"}); err == nil {
		t.Errorf("empty original must be rejected")
	}
}
