/**
 * Tesseract engine adapter over gosseract word-level bounding boxes.
 */

package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/asepsafrudin/hybrid-ocr/internal/ocr"
)

const tesseractEngineID = "tesseract"

// Tesseract recognizes printed text via the system tesseract installation.
type Tesseract struct {
	languages []string
}

// NewTesseract creates the adapter. Default languages are Indonesian plus
// English, matching the scanned government mail this worker processes.
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"ind", "eng"}
	}
	return &Tesseract{languages: languages}
}

func (t *Tesseract) Name() string { return tesseractEngineID }

// Detect runs word-level recognition. Confidence comes back on a 0-100
// scale and is normalized to [0,1].
func (t *Tesseract) Detect(ctx context.Context, img image.Image) ([]ocr.Detection, error) {
	if img == nil {
		return nil, fmt.Errorf("no image provided")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page for tesseract: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("failed to set tesseract languages: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to load page into tesseract: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("tesseract recognition failed: %w", err)
	}

	detections := make([]ocr.Detection, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		confidence := b.Confidence
		if confidence > 1 {
			confidence /= 100
		}
		detections = append(detections, ocr.Detection{
			Text: text,
			Box: ocr.Box{
				X1: b.Box.Min.X,
				Y1: b.Box.Min.Y,
				X2: b.Box.Max.X,
				Y2: b.Box.Max.Y,
			},
			Confidence: confidence,
			EngineID:   tesseractEngineID,
		})
	}
	return detections, nil
}
