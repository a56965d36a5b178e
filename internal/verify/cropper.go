/**
 * Region cropper: cuts a padded excerpt of the original page image for the
 * verification UI, upscaling tiny crops so reviewers can read them.
 */

package verify

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/asepsafrudin/hybrid-ocr/internal/ocr"
)

const (
	defaultPadding = 15
	// minCropSize: crops smaller than this on either side are upscaled.
	minCropSize = 50

	placeholderW = 200
	placeholderH = 60
)

// Cropper produces base64 PNG data URIs for region excerpts.
type Cropper struct {
	padding int
	minSize int
}

func NewCropper() *Cropper {
	return &Cropper{padding: defaultPadding, minSize: minCropSize}
}

// Crop extracts box (expanded by the padding, clamped to image bounds) from
// the original page image and encodes it as a PNG data URI.
func (c *Cropper) Crop(img image.Image, box ocr.Box) (string, error) {
	if img == nil {
		return "", fmt.Errorf("no page image available")
	}

	bounds := img.Bounds()
	x1 := clamp(box.X1-c.padding, bounds.Min.X, bounds.Max.X)
	y1 := clamp(box.Y1-c.padding, bounds.Min.Y, bounds.Max.Y)
	x2 := clamp(box.X2+c.padding, bounds.Min.X, bounds.Max.X)
	y2 := clamp(box.Y2+c.padding, bounds.Min.Y, bounds.Max.Y)

	w, h := x2-x1, y2-y1
	if w <= 0 || h <= 0 {
		return "", fmt.Errorf("region %v is outside the page image %v", box, bounds)
	}

	crop := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(crop, crop.Bounds(), img, image.Pt(x1, y1), xdraw.Src)

	out := c.upscaleIfTiny(crop)
	return encodeDataURI(out)
}

// upscaleIfTiny scales the crop up so both sides reach the minimum visible
// size, preserving aspect ratio.
func (c *Cropper) upscaleIfTiny(crop *image.RGBA) image.Image {
	b := crop.Bounds()
	w, h := b.Dx(), b.Dy()
	if w >= c.minSize && h >= c.minSize {
		return crop
	}

	scale := float64(c.minSize) / float64(w)
	if s := float64(c.minSize) / float64(h); s > scale {
		scale = s
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), crop, b, xdraw.Src, nil)
	return dst
}

// Placeholder returns a flat light-gray image for regions whose crop failed.
// The verification UI must always have something to render.
func (c *Cropper) Placeholder() string {
	img := image.NewRGBA(image.Rect(0, 0, placeholderW, placeholderH))
	gray := color.RGBA{R: 0xEE, G: 0xEE, B: 0xEE, A: 0xFF}
	border := color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xFF}
	for y := 0; y < placeholderH; y++ {
		for x := 0; x < placeholderW; x++ {
			if x == 0 || y == 0 || x == placeholderW-1 || y == placeholderH-1 {
				img.Set(x, y, border)
			} else {
				img.Set(x, y, gray)
			}
		}
	}

	uri, err := encodeDataURI(img)
	if err != nil {
		return ""
	}
	return uri
}

func encodeDataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode crop: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
