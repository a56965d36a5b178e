/**
 * Core detection and region types shared across the worker.
 */

package ocr

import "math"

// Box is a pixel-coordinate bounding box, top-left origin, exclusive of nothing:
// (X1,Y1) is the top-left corner and (X2,Y2) the bottom-right.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b Box) Width() int  { return b.X2 - b.X1 }
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Area returns the box area, zero for degenerate boxes.
func (b Box) Area() int {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Union returns the smallest box covering both a and b.
func Union(a, b Box) Box {
	return Box{
		X1: min(a.X1, b.X1),
		Y1: min(a.Y1, b.Y1),
		X2: max(a.X2, b.X2),
		Y2: max(a.Y2, b.Y2),
	}
}

// IoU computes intersection-over-union for two boxes. A zero union area
// (both boxes degenerate) yields 0 so degenerate detections never merge.
func IoU(a, b Box) float64 {
	ix1 := max(a.X1, b.X1)
	iy1 := max(a.Y1, b.Y1)
	ix2 := min(a.X2, b.X2)
	iy2 := min(a.Y2, b.Y2)

	var inter int
	if ix2 > ix1 && iy2 > iy1 {
		inter = (ix2 - ix1) * (iy2 - iy1)
	}

	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// HorizontalGap returns the pixel distance between the facing vertical edges
// of two boxes, 0 when they overlap horizontally.
func HorizontalGap(a, b Box) int {
	if b.X1 > a.X2 {
		return b.X1 - a.X2
	}
	if a.X1 > b.X2 {
		return a.X1 - b.X2
	}
	return 0
}

// Detection is a single raw engine output: one recognized text fragment
// with its location and the engine's confidence in [0,1].
type Detection struct {
	Text       string  `json:"text"`
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
	EngineID   string  `json:"engine_id"`
}

// RegionType classifies a merged region as machine print or handwriting.
type RegionType string

const (
	RegionPrinted     RegionType = "printed"
	RegionHandwritten RegionType = "handwritten"
)

// MergedRegion is the reconciled output for one cluster of detections.
type MergedRegion struct {
	ID         int        `json:"id"`
	Text       string     `json:"text"`
	Box        Box        `json:"box"`
	Confidence float64    `json:"confidence"`
	Type       RegionType `json:"type"`
	Page       int        `json:"page"`
	Sources    []string   `json:"sources,omitempty"`
}

// ConfidenceScores summarizes region confidences for one document.
type ConfidenceScores struct {
	Overall float64 `json:"overall"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Count   int     `json:"regions_count"`
}

// Confidences computes the document-level summary. An empty region list
// reports overall 0 with no min/max.
func Confidences(regions []MergedRegion) ConfidenceScores {
	if len(regions) == 0 {
		return ConfidenceScores{}
	}
	sum := 0.0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range regions {
		sum += r.Confidence
		lo = math.Min(lo, r.Confidence)
		hi = math.Max(hi, r.Confidence)
	}
	return ConfidenceScores{
		Overall: sum / float64(len(regions)),
		Min:     lo,
		Max:     hi,
		Count:   len(regions),
	}
}
