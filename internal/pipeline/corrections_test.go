package pipeline

import (
	"context"
	"math"
	"testing"

	"github.com/asepsafrudin/hybrid-ocr/internal/pattern"
)

type staticRepo struct{ set pattern.RuleSet }

func (r *staticRepo) Load(ctx context.Context) (*pattern.RuleSet, error) {
	set := r.set
	return &set, nil
}

func (r *staticRepo) AppendCorrections(ctx context.Context, rules []pattern.CorrectionRule) error {
	r.set.Corrections = append(r.set.Corrections, rules...)
	return nil
}

func (r *staticRepo) AppendProfile(ctx context.Context, p pattern.DocumentTypeProfile) error {
	r.set.Profiles = append(r.set.Profiles, p)
	return nil
}

func newCorrector(t *testing.T, set pattern.RuleSet) *Corrector {
	t.Helper()
	store, err := pattern.NewStore(&staticRepo{set: set}, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return NewCorrector(store, nil)
}

func TestRunCorrectsThenValidates(t *testing.T) {
	c := newCorrector(t, pattern.RuleSet{
		Corrections: []pattern.CorrectionRule{
			{ID: 1, WrongText: "Fcbruar`", CorrectText: "Februari", ContextType: "any", Priority: 1, ConfidenceBoost: 0.1, Enabled: true},
			{ID: 2, WrongText: "9025", CorrectText: "2025", ContextType: "any", Priority: 2, ConfidenceBoost: 0.1, Enabled: true},
		},
		ContextRules: []pattern.ContextRule{
			// Fires only after the literal pass has produced "Februari".
			{ID: 1, Name: "valid date", Pattern: `\d{1,2}\s+februari\s+\d{4}`, Action: pattern.ActionBoostConfidence, ActionValue: "0.2", Priority: 1, Enabled: true},
		},
	})

	got := c.Run("5 Fcbruar` 9025", "General")
	if got.Text != "5 Februari 2025" {
		t.Errorf("Text = %q, want %q", got.Text, "5 Februari 2025")
	}
	if math.Abs(got.CorrectionBoost-0.1) > 1e-9 {
		t.Errorf("CorrectionBoost = %v, want 0.1", got.CorrectionBoost)
	}
	if math.Abs(got.ContextBoost-0.2) > 1e-9 {
		t.Errorf("ContextBoost = %v, want 0.2 (regex must see corrected text)", got.ContextBoost)
	}
}

func TestRunWhitespaceCleanup(t *testing.T) {
	c := newCorrector(t, pattern.RuleSet{
		Corrections: []pattern.CorrectionRule{
			{ID: 1, WrongText: "hapus baris ini", CorrectText: pattern.DeleteSentinel, ContextType: "any", Priority: 1, Enabled: true},
		},
	})

	got := c.Run("  judul  \nhapus baris ini\n\n  isi surat ", "General")
	if got.Text != "judul\nisi surat" {
		t.Errorf("Text = %q, want trimmed lines with empties dropped", got.Text)
	}
}

func TestRunNoRules(t *testing.T) {
	c := newCorrector(t, pattern.RuleSet{})
	got := c.Run("tidak berubah", "General")
	if got.Text != "tidak berubah" || got.CorrectionBoost != 0 || got.ContextBoost != 0 {
		t.Errorf("unexpected result %+v", got)
	}
}
