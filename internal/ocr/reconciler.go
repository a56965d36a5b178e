/**
 * Region reconciler: merges overlapping detections from multiple engines
 * into de-duplicated regions with calibrated confidence.
 */

package ocr

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// Detections merge when their IoU reaches this threshold.
	defaultIoUThreshold = 0.3
	// Side-by-side boxes further apart than this never merge, whatever
	// their vertical overlap says.
	defaultMaxGapPx = 50

	handwrittenConfidence = 0.5
	lowConfidence         = 0.6
	shortTextRunes        = 15
)

var artifactChars = []string{"`", "~", "|"}

// Reconciler clusters raw detections into merged regions. The zero value is
// not usable; construct with NewReconciler.
type Reconciler struct {
	iouThreshold float64
	maxGapPx     int
}

func NewReconciler() *Reconciler {
	return &Reconciler{
		iouThreshold: defaultIoUThreshold,
		maxGapPx:     defaultMaxGapPx,
	}
}

// Merge clusters detections in input order. The first unused detection seeds
// a cluster and absorbs every later unused detection overlapping the SEED;
// membership is deliberately non-transitive within a pass, which keeps the
// result deterministic for a fixed engine order.
func (r *Reconciler) Merge(detections []Detection) []MergedRegion {
	if len(detections) == 0 {
		return nil
	}

	used := make(map[int]bool, len(detections))
	regions := make([]MergedRegion, 0, len(detections))

	for i, seed := range detections {
		if used[i] {
			continue
		}
		cluster := []Detection{seed}
		used[i] = true

		for j := i + 1; j < len(detections); j++ {
			if used[j] {
				continue
			}
			if r.overlaps(seed.Box, detections[j].Box) {
				cluster = append(cluster, detections[j])
				used[j] = true
			}
		}

		regions = append(regions, r.mergeCluster(len(regions), cluster))
	}

	return regions
}

// overlaps reports whether two boxes belong to the same region: close enough
// horizontally and IoU above the threshold.
func (r *Reconciler) overlaps(a, b Box) bool {
	if HorizontalGap(a, b) > r.maxGapPx {
		return false
	}
	return IoU(a, b) > r.iouThreshold
}

// mergeCluster collapses one cluster into a region: union box, mean
// confidence, and the text of the member maximizing confidence × length.
func (r *Reconciler) mergeCluster(id int, cluster []Detection) MergedRegion {
	best := cluster[0]
	bestScore := best.Confidence * float64(utf8.RuneCountInString(best.Text))
	box := best.Box
	sum := 0.0
	sources := make([]string, 0, len(cluster))

	for i, d := range cluster {
		sum += d.Confidence
		sources = append(sources, d.EngineID)
		if i == 0 {
			continue
		}
		box = Union(box, d.Box)
		if score := d.Confidence * float64(utf8.RuneCountInString(d.Text)); score > bestScore {
			best = d
			bestScore = score
		}
	}

	mean := sum / float64(len(cluster))
	return MergedRegion{
		ID:         id,
		Text:       best.Text,
		Box:        box,
		Confidence: mean,
		Type:       classifyRegion(best.Text, mean),
		Sources:    dedupeSources(sources),
	}
}

// classifyRegion labels a region handwritten on low mean confidence, or when
// at least two weaker handwriting indicators fire together.
func classifyRegion(text string, meanConfidence float64) RegionType {
	if meanConfidence < handwrittenConfidence {
		return RegionHandwritten
	}

	runes := utf8.RuneCountInString(text)
	indicators := 0
	if runes < shortTextRunes {
		indicators++
	}
	for _, c := range artifactChars {
		if strings.Contains(text, c) {
			indicators++
			break
		}
	}
	if meanConfidence < lowConfidence && runes > 5 {
		indicators++
	}

	if indicators >= 2 {
		return RegionHandwritten
	}
	return RegionPrinted
}

func dedupeSources(sources []string) []string {
	seen := make(map[string]bool, len(sources))
	out := sources[:0]
	for _, s := range sources {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
