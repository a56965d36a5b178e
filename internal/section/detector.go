/**
 * Multi-section document detection.
 *
 * Government mail batches arrive as one scan containing a disposisi sheet,
 * a nota dinas, attachments and supporting letters. Per-page keyword and
 * pattern scoring labels each page; adjacent pages with the same label are
 * merged into one section.
 */

package section

import (
	"regexp"
	"sort"
	"strings"
)

// Type labels one logical part of a scanned bundle.
type Type string

const (
	TypeDisposisi      Type = "disposisi"
	TypeNotaDinas      Type = "nota_dinas"
	TypeLampiranText   Type = "lampiran_text"
	TypeLampiranTabel  Type = "lampiran_tabel"
	TypeSuratPendukung Type = "surat_pendukung"
)

// detectionThreshold: minimum per-page score to report a section.
const detectionThreshold = 0.3

// Scoring weights for the three signal groups.
const (
	keywordWeight   = 0.4
	titleWeight     = 0.3
	structureWeight = 0.3
)

// DocumentSection is one detected section spanning one or more pages.
type DocumentSection struct {
	Type       Type     `json:"type"`
	PageStart  int      `json:"page_start"`
	PageEnd    int      `json:"page_end"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords"`
}

type profile struct {
	sectionType Type
	keywords    []string
	titles      []*regexp.Regexp
	structure   []string
}

// Detector scores pages against fixed section profiles.
type Detector struct {
	profiles []profile
}

func NewDetector() *Detector {
	compile := func(patterns ...string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			out = append(out, regexp.MustCompile("(?i)"+p))
		}
		return out
	}

	return &Detector{profiles: []profile{
		{
			sectionType: TypeDisposisi,
			keywords:    []string{"disposisi", "diteruskan", "kepada", "untuk", "tindak lanjut"},
			titles:      compile(`lembar\s+disposisi`, `disposisi`, `tindak\s+lanjut`),
			structure:   []string{"kepada:", "dari:", "perihal:", "tanggal:"},
		},
		{
			sectionType: TypeNotaDinas,
			keywords:    []string{"nota dinas", "memorandum", "kepada", "dari", "perihal"},
			titles:      compile(`nota\s+dinas`, `memorandum`),
			structure:   []string{"kepada:", "dari:", "perihal:", "nomor:"},
		},
		{
			sectionType: TypeLampiranText,
			keywords:    []string{"lampiran", "attachment", "terlampir", "sebagai berikut"},
			titles:      compile(`lampiran\s*\d*`, `attachment`),
			structure:   []string{"lampiran:", "terlampir:", "sebagai berikut:"},
		},
		{
			sectionType: TypeLampiranTabel,
			keywords:    []string{"tabel", "daftar", "data", "statistik", "laporan"},
			titles:      compile(`tabel\s*\d*`, `daftar`, `data`),
			structure:   []string{"no.", "nama", "jumlah", "total", "|", "kolom"},
		},
		{
			sectionType: TypeSuratPendukung,
			keywords:    []string{"surat", "referensi", "pendukung", "dengan hormat"},
			titles:      compile(`surat\s+(pendukung|referensi)`, `referensi`),
			structure:   []string{"dengan hormat", "demikian", "hormat kami"},
		},
	}}
}

// DetectSections labels every page and merges adjacent pages sharing a type.
func (d *Detector) DetectSections(pages []string) []DocumentSection {
	var sections []DocumentSection
	for idx, content := range pages {
		sections = append(sections, d.analyzePage(content, idx)...)
	}
	return mergeAdjacent(sections)
}

func (d *Detector) analyzePage(content string, pageIdx int) []DocumentSection {
	var sections []DocumentSection
	lower := strings.ToLower(content)

	for _, p := range d.profiles {
		confidence := p.score(lower)
		if confidence <= detectionThreshold {
			continue
		}
		sections = append(sections, DocumentSection{
			Type:       p.sectionType,
			PageStart:  pageIdx,
			PageEnd:    pageIdx,
			Title:      p.extractTitle(content),
			Content:    content,
			Confidence: confidence,
			Keywords:   p.matchingKeywords(lower),
		})
	}
	return sections
}

// score weighs keyword hits, title pattern hits and structure indicator hits.
func (p *profile) score(lower string) float64 {
	score := 0.0

	matched := 0
	for _, kw := range p.keywords {
		if strings.Contains(lower, kw) {
			matched++
		}
	}
	if len(p.keywords) > 0 {
		score += float64(matched) / float64(len(p.keywords)) * keywordWeight
	}

	matched = 0
	for _, re := range p.titles {
		if re.MatchString(lower) {
			matched++
		}
	}
	if len(p.titles) > 0 {
		score += float64(matched) / float64(len(p.titles)) * titleWeight
	}

	matched = 0
	for _, ind := range p.structure {
		if strings.Contains(lower, ind) {
			matched++
		}
	}
	if len(p.structure) > 0 {
		score += float64(matched) / float64(len(p.structure)) * structureWeight
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

// extractTitle returns the first line matching a title pattern.
func (p *profile) extractTitle(content string) string {
	for _, re := range p.titles {
		if !re.MatchString(content) {
			continue
		}
		for _, line := range strings.Split(content, "\n") {
			if re.MatchString(line) {
				return strings.TrimSpace(line)
			}
		}
	}
	return "Unknown Section"
}

func (p *profile) matchingKeywords(lower string) []string {
	var out []string
	for _, kw := range p.keywords {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
		}
	}
	return out
}

// mergeAdjacent joins consecutive pages detected as the same section type.
func mergeAdjacent(sections []DocumentSection) []DocumentSection {
	if len(sections) == 0 {
		return sections
	}

	merged := make([]DocumentSection, 0, len(sections))
	current := sections[0]
	for _, next := range sections[1:] {
		if current.Type == next.Type && next.PageStart == current.PageEnd+1 {
			current.PageEnd = next.PageEnd
			current.Content += "\n\n" + next.Content
			if next.Confidence > current.Confidence {
				current.Confidence = next.Confidence
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

// Extract returns the highest-confidence section of the given type, or nil.
func Extract(sections []DocumentSection, sectionType Type) *DocumentSection {
	var best *DocumentSection
	for i := range sections {
		if sections[i].Type != sectionType {
			continue
		}
		if best == nil || sections[i].Confidence > best.Confidence {
			best = &sections[i]
		}
	}
	return best
}

// Summary maps each detected type to its page range for result metadata.
func Summary(sections []DocumentSection) map[string]interface{} {
	out := make(map[string]interface{}, len(sections))
	ordered := make([]DocumentSection, len(sections))
	copy(ordered, sections)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].PageStart < ordered[j].PageStart })
	for _, s := range ordered {
		out[string(s.Type)] = map[string]interface{}{
			"title":      s.Title,
			"pages":      []int{s.PageStart + 1, s.PageEnd + 1},
			"confidence": s.Confidence,
			"keywords":   s.Keywords,
		}
	}
	return out
}
