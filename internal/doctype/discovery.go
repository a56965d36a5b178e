/**
 * Document type auto-discovery.
 *
 * When no keyword profile matches a document, frequency-ranked keywords and
 * fixed category lexicons propose a new profile for the operator to accept.
 */

package doctype

import (
	"regexp"
	"sort"
	"strings"

	"github.com/asepsafrudin/hybrid-ocr/internal/pattern"
)

const (
	// minConfidence: suggestions below this are discarded.
	minConfidence = 0.7
	// existingMatchCutoff: documents this close to a known profile are
	// already covered and yield no suggestion.
	existingMatchCutoff = 0.8

	minKeywords  = 3
	topKeywords  = 30
	keptKeywords = 10
	keptPatterns = 3
)

var (
	wordRe   = regexp.MustCompile(`\b[a-zA-Z]{2,}\b`)
	numberRe = regexp.MustCompile(`\b\d+[/\-.]\w+[/\-.]\d+\b`)
	codeRe   = regexp.MustCompile(`\b[A-Z]{2,}[/\-.]\d+\b`)
	dateRe   = regexp.MustCompile(`\b\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}\b`)
	headerRe = regexp.MustCompile(`logo|kop|header`)
	tableRe  = regexp.MustCompile(`tabel|daftar`)
	numDocRe = regexp.MustCompile(`nomor|no\.|ref`)
	attachRe = regexp.MustCompile(`lampiran|attachment`)
	structRe = regexp.MustCompile(`nomor|tanggal|perihal`)
)

var stopWords = map[string]bool{
	"dan": true, "atau": true, "yang": true, "dengan": true, "untuk": true,
	"pada": true, "dalam": true, "dari": true, "ke": true, "di": true,
	"republik": true, "indonesia": true, "nomor": true, "tahun": true,
}

var categoryLexicons = map[string][]string{
	"legal":      {"pengadilan", "hakim", "putusan", "mahkamah", "konstitusi", "puu", "terdakwa"},
	"business":   {"pt", "cv", "invoice", "faktur", "kontrak", "perjanjian", "npwp"},
	"government": {"kementerian", "dinas", "menteri", "surat edaran", "peraturan"},
	"academic":   {"universitas", "diploma", "sarjana", "ipk", "ijazah"},
	"medical":    {"rumah sakit", "dokter", "diagnosa", "resep", "pasien"},
	"financial":  {"laporan", "keuangan", "neraca", "rugi", "laba"},
	"personal":   {"ktp", "nik", "tempat lahir", "alamat"},
	"form":       {"permohonan", "formulir", "aplikasi"},
}

var formalPhrases = []string{"dengan hormat", "demikian", "atas perhatian", "terima kasih"}

// Candidate is a proposed new document type awaiting operator validation.
type Candidate struct {
	SuggestedType    string   `json:"suggested_type"`
	Confidence       float64  `json:"confidence"`
	Keywords         []string `json:"keywords"`
	LayoutIndicators string   `json:"layout_indicators"`
	SamplePatterns   []string `json:"sample_patterns"`
}

// Discovery proposes new document type profiles from unmatched documents.
type Discovery struct {
	existing []pattern.DocumentTypeProfile
}

// NewDiscovery takes the currently known profiles so near-matches of an
// existing type are suppressed.
func NewDiscovery(existing []pattern.DocumentTypeProfile) *Discovery {
	return &Discovery{existing: existing}
}

// Analyze inspects a document's corrected text and returns a suggestion, or
// nil when the text is too thin, too close to a known type, or inconclusive.
func (d *Discovery) Analyze(text string) *Candidate {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)

	keywords := extractKeywords(lower)
	category := detectCategory(keywords, lower)
	patterns := extractPatterns(text)

	if _, score := d.matchExisting(keywords, lower); score > existingMatchCutoff {
		return nil
	}
	if category == "" || len(keywords) < minKeywords {
		return nil
	}

	confidence := scoreConfidence(keywords, patterns, lower)
	if confidence < minConfidence {
		return nil
	}

	kept := keywords
	if len(kept) > keptKeywords {
		kept = kept[:keptKeywords]
	}
	if len(patterns) > keptPatterns {
		patterns = patterns[:keptPatterns]
	}
	return &Candidate{
		SuggestedType:    typeName(category, keywords),
		Confidence:       confidence,
		Keywords:         kept,
		LayoutIndicators: layoutIndicators(lower),
		SamplePatterns:   patterns,
	}
}

// Profile converts a validated candidate into an appendable profile.
func (c *Candidate) Profile() pattern.DocumentTypeProfile {
	return pattern.DocumentTypeProfile{
		Name:     c.SuggestedType,
		Keywords: c.Keywords,
		Priority: 1,
		Enabled:  true,
	}
}

// extractKeywords returns stop-word-filtered words ranked by frequency.
func extractKeywords(lower string) []string {
	freq := make(map[string]int)
	order := make(map[string]int)
	for i, w := range wordRe.FindAllString(lower, -1) {
		if len(w) <= 2 || stopWords[w] {
			continue
		}
		if _, seen := freq[w]; !seen {
			order[w] = i
		}
		freq[w]++
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.SliceStable(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return order[words[i]] < order[words[j]]
	})

	if len(words) > topKeywords {
		words = words[:topKeywords]
	}
	return words
}

// detectCategory scores each lexicon: 2 points per phrase present in the
// text plus 1 per keyword overlapping a phrase. Best category wins when it
// reaches 3 points.
func detectCategory(keywords []string, lower string) string {
	best, bestScore := "", 0
	categories := make([]string, 0, len(categoryLexicons))
	for c := range categoryLexicons {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, category := range categories {
		score := 0
		for _, phrase := range categoryLexicons[category] {
			if strings.Contains(lower, phrase) {
				score += 2
			}
			for _, kw := range keywords {
				if strings.Contains(kw, phrase) || strings.Contains(phrase, kw) {
					score++
				}
			}
		}
		if score > bestScore {
			bestScore = score
			best = category
		}
	}

	if bestScore < 3 {
		return ""
	}
	return best
}

func extractPatterns(text string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(matches []string, limit int) {
		for i, m := range matches {
			if i >= limit {
				break
			}
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	add(numberRe.FindAllString(text, -1), 3)
	add(codeRe.FindAllString(text, -1), 3)
	add(dateRe.FindAllString(text, -1), 2)
	return out
}

// matchExisting scores the text against known profiles, normalized to [0,1].
func (d *Discovery) matchExisting(keywords []string, lower string) (string, float64) {
	best, bestScore := "", 0.0
	for _, profile := range d.existing {
		if len(profile.Keywords) == 0 {
			continue
		}
		score := 0
		for _, kw := range profile.Keywords {
			kwLower := strings.ToLower(kw)
			if strings.Contains(lower, kwLower) {
				score += 2
			}
			for _, extracted := range keywords {
				if strings.Contains(extracted, kwLower) || strings.Contains(kwLower, extracted) {
					score++
				}
			}
		}
		normalized := float64(score) / float64(len(profile.Keywords)*2)
		if normalized > bestScore {
			bestScore = normalized
			best = profile.Name
		}
	}
	return best, bestScore
}

func typeName(category string, keywords []string) string {
	title := capitalize(category)
	for i, kw := range keywords {
		if i >= 5 {
			break
		}
		if len(kw) > 3 && kw != "surat" && kw != "nomor" && kw != "tanggal" {
			return title + "_" + capitalize(kw)
		}
	}
	return title + "_Document"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func layoutIndicators(lower string) string {
	var indicators []string
	if headerRe.MatchString(lower) {
		indicators = append(indicators, "official_header")
	}
	if tableRe.MatchString(lower) {
		indicators = append(indicators, "table_layout")
	}
	if numDocRe.MatchString(lower) {
		indicators = append(indicators, "numbered_document")
	}
	if attachRe.MatchString(lower) {
		indicators = append(indicators, "attachment_format")
	}
	if len(indicators) == 0 {
		return "standard_layout"
	}
	return strings.Join(indicators, ",")
}

// scoreConfidence weighs keyword diversity, extracted patterns, text length,
// structure markers and formal phrasing.
func scoreConfidence(keywords, patterns []string, lower string) float64 {
	score := 0.0

	switch {
	case len(keywords) >= 5:
		score += 0.3
	case len(keywords) >= 3:
		score += 0.2
	}

	switch {
	case len(patterns) >= 2:
		score += 0.2
	case len(patterns) >= 1:
		score += 0.1
	}

	switch {
	case len(lower) > 1000:
		score += 0.2
	case len(lower) > 500:
		score += 0.1
	}

	if structRe.MatchString(lower) {
		score += 0.2
	}
	for _, phrase := range formalPhrases {
		if strings.Contains(lower, phrase) {
			score += 0.1
			break
		}
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}
