package pattern

import (
	"context"
	"math"
	"testing"
)

// memoryRepository keeps rules in memory for store tests.
type memoryRepository struct {
	set       RuleSet
	loadCount int
}

func (m *memoryRepository) Load(ctx context.Context) (*RuleSet, error) {
	m.loadCount++
	set := m.set
	return &set, nil
}

func (m *memoryRepository) AppendCorrections(ctx context.Context, rules []CorrectionRule) error {
	m.set.Corrections = append(m.set.Corrections, rules...)
	return nil
}

func (m *memoryRepository) AppendProfile(ctx context.Context, profile DocumentTypeProfile) error {
	m.set.Profiles = append(m.set.Profiles, profile)
	return nil
}

func newTestStore(t *testing.T, set RuleSet) (*Store, *memoryRepository) {
	t.Helper()
	repo := &memoryRepository{set: set}
	store, err := NewStore(repo, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, repo
}

func TestApplyCorrections(t *testing.T) {
	store, _ := newTestStore(t, RuleSet{
		Corrections: []CorrectionRule{
			{ID: 1, WrongText: "Fcbruar`", CorrectText: "Februari", ContextType: "any", Priority: 1, ConfidenceBoost: 0.1, Enabled: true},
			{ID: 2, WrongText: "9025", CorrectText: "2025", ContextType: "any", Priority: 2, ConfidenceBoost: 0.2, Enabled: true},
		},
	})

	got, boost := store.ApplyCorrections("5 Fcbruar` 9025", "global")
	if got != "5 Februari 2025" {
		t.Errorf("corrected = %q, want %q", got, "5 Februari 2025")
	}
	if math.Abs(boost-0.15) > 1e-9 {
		t.Errorf("boost = %v, want mean 0.15", boost)
	}
}

func TestApplyCorrectionsSingleMatch(t *testing.T) {
	store, _ := newTestStore(t, RuleSet{
		Corrections: []CorrectionRule{
			{ID: 1, WrongText: "Fcbruar`", CorrectText: "Februari", ContextType: "any", Priority: 1, ConfidenceBoost: 0.1, Enabled: true},
		},
	})

	got, boost := store.ApplyCorrections("5 Fcbruar` 9025", "global")
	if got != "5 Februari 9025" {
		t.Errorf("corrected = %q, want %q", got, "5 Februari 9025")
	}
	if math.Abs(boost-0.1) > 1e-9 {
		t.Errorf("boost = %v, want 0.1", boost)
	}
}

func TestApplyCorrectionsIdempotent(t *testing.T) {
	store, _ := newTestStore(t, RuleSet{
		Corrections: []CorrectionRule{
			{ID: 1, WrongText: "io8", CorrectText: "108", ContextType: "any", Priority: 1, ConfidenceBoost: 0.1, Enabled: true},
			{ID: 2, WrongText: "teks salah", CorrectText: DeleteSentinel, ContextType: "any", Priority: 2, ConfidenceBoost: 0.05, Enabled: true},
		},
	})

	once, _ := store.ApplyCorrections("nomor io8 teks salah akhir", "global")
	twice, boost := store.ApplyCorrections(once, "global")
	if once != twice {
		t.Errorf("re-applying corrections changed text: %q -> %q", once, twice)
	}
	if boost != 0 {
		t.Errorf("second pass should match nothing, boost = %v", boost)
	}
	if once != "nomor 108  akhir" {
		t.Errorf("corrected = %q", once)
	}
}

func TestApplyCorrectionsContextScoping(t *testing.T) {
	store, _ := newTestStore(t, RuleSet{
		Corrections: []CorrectionRule{
			{ID: 1, WrongText: "x", CorrectText: "y", ContextType: "date", Priority: 1, ConfidenceBoost: 0.1, Enabled: true},
			{ID: 2, WrongText: "x", CorrectText: "z", ContextType: "number", Priority: 2, ConfidenceBoost: 0.1, Enabled: true},
		},
	})

	tests := []struct {
		name    string
		context string
		want    string
	}{
		{"matching context", "date", "y"},
		{"other context", "number", "z"},
		{"wildcard context applies all", "any", "y"},
		{"unrelated context", "global", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := store.ApplyCorrections("x", tt.context)
			if got != tt.want {
				t.Errorf("ApplyCorrections(%q ctx=%q) = %q, want %q", "x", tt.context, got, tt.want)
			}
		})
	}
}

func TestApplyCorrectionsSkipsDisabled(t *testing.T) {
	store, _ := newTestStore(t, RuleSet{
		Corrections: []CorrectionRule{
			{ID: 1, WrongText: "abc", CorrectText: "xyz", ContextType: "any", Priority: 1, Enabled: false},
		},
	})
	got, boost := store.ApplyCorrections("abc", "global")
	if got != "abc" || boost != 0 {
		t.Errorf("disabled rule must not fire, got %q boost %v", got, boost)
	}
}

func TestApplyCorrectionsPriorityOrder(t *testing.T) {
	// The low-priority rule rewrites first and removes the trigger of the
	// later rule.
	store, _ := newTestStore(t, RuleSet{
		Corrections: []CorrectionRule{
			{ID: 1, WrongText: "ab", CorrectText: "cd", ContextType: "any", Priority: 5, ConfidenceBoost: 0.1, Enabled: true},
			{ID: 2, WrongText: "abc", CorrectText: "nope", ContextType: "any", Priority: 9, ConfidenceBoost: 0.1, Enabled: true},
		},
	})
	got, _ := store.ApplyCorrections("abc", "global")
	if got != "cdc" {
		t.Errorf("priority order not respected, got %q", got)
	}
}

func TestApplyCorrectionsBoostCap(t *testing.T) {
	var rules []CorrectionRule
	for i := 0; i < 3; i++ {
		rules = append(rules, CorrectionRule{
			ID: i + 1, WrongText: string(rune('a' + i)), CorrectText: "_",
			ContextType: "any", Priority: i, ConfidenceBoost: 0.9, Enabled: true,
		})
	}
	store, _ := newTestStore(t, RuleSet{Corrections: rules})
	_, boost := store.ApplyCorrections("abc", "global")
	if boost != 0.5 {
		t.Errorf("boost = %v, want cap 0.5", boost)
	}
}

func TestApplyContextRules(t *testing.T) {
	store, _ := newTestStore(t, RuleSet{
		ContextRules: []ContextRule{
			{ID: 1, Name: "date format", Pattern: `\d{1,2}\s+(januari|februari|maret)`, Action: ActionBoostConfidence, ActionValue: "0.2", Priority: 1, Enabled: true},
			{ID: 2, Name: "broken regex", Pattern: `([`, Action: ActionBoostConfidence, ActionValue: "0.9", Priority: 2, Enabled: true},
			{ID: 3, Name: "no match", Pattern: `lampiran`, Action: ActionBoostConfidence, ActionValue: "0.4", Priority: 3, Enabled: true},
		},
	})

	text, boost := store.ApplyContextRules("5 Februari 2025", RuleContext{DocumentType: "General", TextLength: 15})
	if text != "5 Februari 2025" {
		t.Errorf("context rules must not rewrite text, got %q", text)
	}
	if math.Abs(boost-0.2) > 1e-9 {
		t.Errorf("boost = %v, want 0.2 (case-insensitive match, invalid regex skipped)", boost)
	}
}

func TestApplyContextRulesBoostCap(t *testing.T) {
	store, _ := newTestStore(t, RuleSet{
		ContextRules: []ContextRule{
			{ID: 1, Pattern: `a`, Action: ActionBoostConfidence, ActionValue: "0.8", Priority: 1, Enabled: true},
		},
	})
	_, boost := store.ApplyContextRules("a", RuleContext{})
	if boost != 0.3 {
		t.Errorf("boost = %v, want cap 0.3", boost)
	}
}

func TestDetectDocumentType(t *testing.T) {
	store, _ := newTestStore(t, RuleSet{
		Profiles: []DocumentTypeProfile{
			{Name: "Disposisi", Keywords: []string{"disposisi", "diteruskan", "mohon"}, Enabled: true},
			{Name: "Nota Dinas", Keywords: []string{"nota dinas", "kepada", "dari", "perihal"}, Enabled: true},
			{Name: "Disabled", Keywords: []string{"anything"}, Enabled: false},
		},
	})

	tests := []struct {
		name string
		text string
		want string
	}{
		{"disposisi", "LEMBAR DISPOSISI\nditeruskan kepada kabag\nmohon tindak lanjut", "Disposisi"},
		{"nota dinas", "NOTA DINAS\nKepada: Kepala Biro\nDari: Sekretaris\nPerihal: undangan", "Nota Dinas"},
		{"no match", "random unrelated content", "General"},
		{"empty", "", "General"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.DetectDocumentType(tt.text); got != tt.want {
				t.Errorf("DetectDocumentType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppendCorrectionsRoundTrip(t *testing.T) {
	store, repo := newTestStore(t, RuleSet{
		Corrections: []CorrectionRule{
			{ID: 7, WrongText: "old", CorrectText: "new", ContextType: "any", Priority: 1, Enabled: true},
		},
	})

	added, err := store.AppendCorrections(context.Background(), []CorrectionRule{
		{WrongText: "Fcbruar`", CorrectText: "Februari", ContextType: "any", Priority: 1, ConfidenceBoost: 0.2, Enabled: true},
	})
	if err != nil {
		t.Fatalf("AppendCorrections: %v", err)
	}
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	if got := store.Stats()["corrections"]; got != 2 {
		t.Errorf("corrections after append = %d, want 2", got)
	}
	if repo.set.Corrections[1].ID != 8 {
		t.Errorf("new rule id = %d, want max existing + 1 = 8", repo.set.Corrections[1].ID)
	}

	// Exact duplicate pair must be silently dropped.
	added, err = store.AppendCorrections(context.Background(), []CorrectionRule{
		{WrongText: "Fcbruar`", CorrectText: "Februari", ContextType: "date", Priority: 3, Enabled: true},
	})
	if err != nil {
		t.Fatalf("AppendCorrections duplicate: %v", err)
	}
	if added != 0 {
		t.Errorf("duplicate append added %d rules, want 0", added)
	}
	if got := store.Stats()["corrections"]; got != 2 {
		t.Errorf("corrections after duplicate append = %d, want 2", got)
	}
}

func TestReloadSwapsWholeSet(t *testing.T) {
	store, repo := newTestStore(t, RuleSet{
		Corrections: []CorrectionRule{
			{ID: 1, WrongText: "a", CorrectText: "b", ContextType: "any", Priority: 1, Enabled: true},
		},
	})

	repo.set.Corrections = []CorrectionRule{
		{ID: 2, WrongText: "c", CorrectText: "d", ContextType: "any", Priority: 1, Enabled: true},
	}
	if err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if got, _ := store.ApplyCorrections("a c", "any"); got != "a d" {
		t.Errorf("reload did not replace collection, got %q", got)
	}
}
