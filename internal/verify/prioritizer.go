/**
 * Verification prioritizer: ranks merged regions for human review.
 */

package verify

import (
	"image"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
	"github.com/asepsafrudin/hybrid-ocr/internal/ocr"
)

const (
	// verificationThreshold: regions below this confidence need review.
	verificationThreshold = 0.5
	// includeThreshold: minimum priority score to enter the queue.
	includeThreshold = 0.3
	// maxCandidates bounds reviewer workload per document.
	maxCandidates = 10

	shortTextRunes = 5
)

// suspiciousTokens are substrings known to come out of bad reads.
var suspiciousTokens = []string{"`", "~", "|", "io8", "9025", "Fcbruar"}

// Candidate is one region queued for human verification.
type Candidate struct {
	Region       ocr.MergedRegion `json:"region"`
	Score        float64          `json:"priority_score"`
	CroppedImage string           `json:"cropped_image"` // PNG data URI
}

// PriorityScore accumulates independent review signals, capped at 1.0.
func PriorityScore(r ocr.MergedRegion) float64 {
	score := 0.0
	if r.Confidence < verificationThreshold {
		score += 0.4
	}
	if r.Type == ocr.RegionHandwritten {
		score += 0.3
	}
	for _, tok := range suspiciousTokens {
		if strings.Contains(r.Text, tok) {
			score += 0.3
			break
		}
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Text)) < shortTextRunes {
		score += 0.2
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

// Prioritizer builds the verification queue for one document.
type Prioritizer struct {
	cropper *Cropper
	log     *logging.Logger
}

func NewPrioritizer(cropper *Cropper, logger *logging.Logger) *Prioritizer {
	if cropper == nil {
		cropper = NewCropper()
	}
	if logger == nil {
		logger = logging.New("verify")
	}
	return &Prioritizer{cropper: cropper, log: logger}
}

// Select scores the page's regions, keeps those above the inclusion
// threshold sorted by descending score, and attaches a crop from the
// original page image. A failed crop yields the placeholder, never an error.
func (p *Prioritizer) Select(regions []ocr.MergedRegion, pageImage image.Image) []Candidate {
	candidates := make([]Candidate, 0, len(regions))
	for _, r := range regions {
		score := PriorityScore(r)
		if score <= includeThreshold {
			continue
		}
		candidates = append(candidates, Candidate{Region: r, Score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	for i := range candidates {
		crop, err := p.cropper.Crop(pageImage, candidates[i].Region.Box)
		if err != nil {
			p.log.Warn("crop failed, using placeholder", logging.Fields{
				"region_id": candidates[i].Region.ID, "error": err,
			})
			crop = p.cropper.Placeholder()
		}
		candidates[i].CroppedImage = crop
	}

	return candidates
}

// Merge combines per-page candidate lists back into one document-level
// queue, re-sorted and re-capped.
func Merge(perPage [][]Candidate) []Candidate {
	var all []Candidate
	for _, page := range perPage {
		all = append(all, page...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > maxCandidates {
		all = all[:maxCandidates]
	}
	return all
}
