/**
 * PDF rasterization via MuPDF (go-fitz). Every page becomes an image the
 * recognition engines and the cropper can work on.
 */

package processor

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// RenderPDF rasterizes all pages of the document at the given DPI.
func RenderPDF(data []byte, dpi int) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	pages := make([]image.Image, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		img, err := doc.ImageDPI(i, float64(dpi))
		if err != nil {
			return nil, fmt.Errorf("failed to render pdf page %d: %w", i+1, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}
