package doctype

import (
	"strings"
	"testing"

	"github.com/asepsafrudin/hybrid-ocr/internal/pattern"
)

const legalDocument = `PUTUSAN
Nomor 42/PUU/2025
MAHKAMAH KONSTITUSI REPUBLIK INDONESIA

Pengadilan telah memeriksa permohonan pengujian undang-undang.
Hakim konstitusi menimbang bahwa terdakwa mengajukan permohonan
pada tanggal 12/01/2025 dengan nomor registrasi MK/421.

Menimbang bahwa pengadilan berwenang memeriksa perkara pengujian.
Putusan pengadilan bersifat final. Hakim ketua membacakan putusan
mahkamah dalam sidang terbuka. Demikian putusan ini dibacakan dengan
hormat untuk dilaksanakan sebagaimana mestinya, atas perhatian dan
kerja sama yang baik diucapkan terima kasih.

Perihal: pengujian undang-undang terhadap konstitusi negara.
Pengadilan mahkamah konstitusi memutus perkara nomor tersebut di atas
dengan susunan hakim sebagaimana daftar terlampir pada lampiran putusan.
Putusan hakim pengadilan mahkamah konstitusi republik indonesia tahun
dua ribu dua puluh lima tentang pengujian materiil undang-undang dasar.`

func TestAnalyzeSuggestsLegalType(t *testing.T) {
	d := NewDiscovery(nil)
	got := d.Analyze(legalDocument)
	if got == nil {
		t.Fatalf("expected a suggestion for a rich legal document")
	}
	if !strings.HasPrefix(got.SuggestedType, "Legal_") {
		t.Errorf("SuggestedType = %q, want Legal_* prefix", got.SuggestedType)
	}
	if got.Confidence < minConfidence {
		t.Errorf("Confidence = %v, want >= %v", got.Confidence, minConfidence)
	}
	if len(got.Keywords) == 0 || len(got.Keywords) > keptKeywords {
		t.Errorf("Keywords count = %d, want 1..%d", len(got.Keywords), keptKeywords)
	}
	if len(got.SamplePatterns) == 0 {
		t.Errorf("expected extracted number/code patterns, got none")
	}
	if !strings.Contains(got.LayoutIndicators, "numbered_document") {
		t.Errorf("LayoutIndicators = %q, want numbered_document", got.LayoutIndicators)
	}
}

func TestAnalyzeEmptyAndThinText(t *testing.T) {
	d := NewDiscovery(nil)
	if got := d.Analyze(""); got != nil {
		t.Errorf("empty text must yield no suggestion, got %+v", got)
	}
	if got := d.Analyze("halo"); got != nil {
		t.Errorf("thin text must yield no suggestion, got %+v", got)
	}
}

func TestAnalyzeSuppressedByExistingType(t *testing.T) {
	existing := []pattern.DocumentTypeProfile{
		{Name: "Putusan_MK", Keywords: []string{"putusan", "mahkamah", "konstitusi", "hakim", "pengadilan"}, Enabled: true},
	}
	d := NewDiscovery(existing)
	if got := d.Analyze(legalDocument); got != nil {
		t.Errorf("document covered by an existing profile must not be suggested, got %+v", got)
	}
}

func TestCandidateProfile(t *testing.T) {
	c := Candidate{SuggestedType: "Legal_Putusan", Keywords: []string{"putusan", "hakim"}}
	p := c.Profile()
	if p.Name != "Legal_Putusan" || !p.Enabled || len(p.Keywords) != 2 {
		t.Errorf("unexpected profile %+v", p)
	}
}

func TestExtractKeywordsFiltersStopWords(t *testing.T) {
	got := extractKeywords("dan yang dengan putusan putusan hakim nomor tahun")
	for _, kw := range got {
		if stopWords[kw] {
			t.Errorf("stop word %q leaked into keywords", kw)
		}
	}
	if len(got) == 0 || got[0] != "putusan" {
		t.Errorf("most frequent keyword should rank first, got %v", got)
	}
}
