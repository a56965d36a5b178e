/**
 * File type detection from magic bytes. Upload metadata lies often enough
 * that the worker trusts the file header instead.
 */

package processor

import "bytes"

// Mime types the worker can rasterize.
const (
	MimePDF  = "application/pdf"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeGIF  = "image/gif"
	MimeTIFF = "image/tiff"
	MimeBMP  = "image/bmp"
	MimeWebP = "image/webp"
)

// DetectMimeType sniffs the leading bytes. Returns "" for unknown formats.
func DetectMimeType(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return MimePDF
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}):
		return MimePNG
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return MimeJPEG
	case bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")):
		return MimeGIF
	case bytes.HasPrefix(data, []byte{'I', 'I', 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{'M', 'M', 0x00, 0x2A}):
		return MimeTIFF
	case bytes.HasPrefix(data, []byte("BM")):
		return MimeBMP
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return MimeWebP
	}
	return ""
}

// IsSupported reports whether the worker can turn this mime type into page
// images.
func IsSupported(mimeType string) bool {
	switch mimeType {
	case MimePDF, MimePNG, MimeJPEG, MimeGIF, MimeTIFF, MimeBMP, MimeWebP:
		return true
	}
	return false
}
