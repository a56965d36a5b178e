package processor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/asepsafrudin/hybrid-ocr/internal/engine"
	"github.com/asepsafrudin/hybrid-ocr/internal/errors"
	"github.com/asepsafrudin/hybrid-ocr/internal/ocr"
	"github.com/asepsafrudin/hybrid-ocr/internal/pattern"
)

type stubEngine struct {
	name       string
	detections []ocr.Detection
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Detect(ctx context.Context, img image.Image) ([]ocr.Detection, error) {
	return s.detections, nil
}

type stubRepo struct{ set pattern.RuleSet }

func (r *stubRepo) Load(ctx context.Context) (*pattern.RuleSet, error) {
	set := r.set
	return &set, nil
}

func (r *stubRepo) AppendCorrections(ctx context.Context, rules []pattern.CorrectionRule) error {
	r.set.Corrections = append(r.set.Corrections, rules...)
	return nil
}

func (r *stubRepo) AppendProfile(ctx context.Context, p pattern.DocumentTypeProfile) error {
	r.set.Profiles = append(r.set.Profiles, p)
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func newTestProcessor(t *testing.T, set pattern.RuleSet, engines ...engine.Engine) *DocumentProcessor {
	t.Helper()
	store, err := pattern.NewStore(&stubRepo{set: set}, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	p, err := NewDocumentProcessor(Options{
		Engines:  engine.NewRegistry(nil, engines...),
		Patterns: store,
	})
	if err != nil {
		t.Fatalf("NewDocumentProcessor: %v", err)
	}
	return p
}

func TestProcessDocumentEndToEnd(t *testing.T) {
	engineA := &stubEngine{name: "a", detections: []ocr.Detection{
		{Text: "io8", Box: ocr.Box{X1: 10, Y1: 10, X2: 50, Y2: 30}, Confidence: 0.3, EngineID: "a"},
		{Text: "LEMBAR", Box: ocr.Box{X1: 10, Y1: 50, X2: 90, Y2: 70}, Confidence: 0.95, EngineID: "a"},
	}}
	engineB := &stubEngine{name: "b", detections: []ocr.Detection{
		{Text: "1O8", Box: ocr.Box{X1: 12, Y1: 11, X2: 52, Y2: 29}, Confidence: 0.35, EngineID: "b"},
	}}

	p := newTestProcessor(t, pattern.RuleSet{
		Corrections: []pattern.CorrectionRule{
			{ID: 1, WrongText: "1O8", CorrectText: "108", ContextType: "any", Priority: 1, ConfidenceBoost: 0.1, Enabled: true},
		},
	}, engineA, engineB)

	result, err := p.ProcessDocument(context.Background(), &ProcessRequest{
		JobID:      "job-1",
		Filename:   "scan.png",
		FileBuffer: pngBytes(t, 200, 100),
	})
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}

	if result.Pages != 1 || result.MimeType != MimePNG {
		t.Errorf("pages/mime = %d/%s", result.Pages, result.MimeType)
	}
	if len(result.Regions) != 2 {
		t.Fatalf("regions = %d, want 2 (overlapping pair merged)", len(result.Regions))
	}
	if result.Regions[0].ID != 0 || result.Regions[1].ID != 1 {
		t.Errorf("region ids not sequential: %d, %d", result.Regions[0].ID, result.Regions[1].ID)
	}
	if result.Text != "108\nLEMBAR" {
		t.Errorf("Text = %q, want corrected reading-order text", result.Text)
	}
	if result.Confidence.Count != 2 {
		t.Errorf("confidence count = %d", result.Confidence.Count)
	}
	if len(result.Candidates) == 0 {
		t.Errorf("low-confidence merged region should be queued for verification")
	}
	if result.DocumentType != pattern.DefaultDocumentType {
		t.Errorf("document type = %q, want General with no profiles", result.DocumentType)
	}
}

func TestProcessDocumentUnsupportedFormat(t *testing.T) {
	p := newTestProcessor(t, pattern.RuleSet{}, &stubEngine{name: "a"})

	_, err := p.ProcessDocument(context.Background(), &ProcessRequest{
		JobID:      "job-2",
		Filename:   "notes.txt",
		FileBuffer: []byte("plain text, not pixels"),
	})
	if err == nil {
		t.Fatalf("expected terminal failure for unsupported format")
	}
	pe, ok := errors.AsProcessingError(err)
	if !ok || pe.Code != errors.CodeUnsupportedFormat {
		t.Errorf("error = %v, want %s", err, errors.CodeUnsupportedFormat)
	}
}

func TestProcessDocumentEmptyDetections(t *testing.T) {
	p := newTestProcessor(t, pattern.RuleSet{}, &stubEngine{name: "quiet"})

	result, err := p.ProcessDocument(context.Background(), &ProcessRequest{
		JobID:      "job-3",
		Filename:   "blank.png",
		FileBuffer: pngBytes(t, 50, 50),
	})
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if len(result.Regions) != 0 || result.Text != "" {
		t.Errorf("blank page should yield empty result, got %+v", result)
	}
	if result.Confidence.Overall != 0 || result.Confidence.Count != 0 {
		t.Errorf("confidence for no regions = %+v, want zeros", result.Confidence)
	}
}

func TestProcessDocumentValidation(t *testing.T) {
	p := newTestProcessor(t, pattern.RuleSet{}, &stubEngine{name: "a"})

	if _, err := p.ProcessDocument(context.Background(), &ProcessRequest{}); err == nil {
		t.Errorf("missing job id must fail")
	}
	if _, err := p.ProcessDocument(context.Background(), &ProcessRequest{JobID: "x"}); err == nil {
		t.Errorf("empty buffer must fail")
	}
}

func TestDetectMimeType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"pdf", []byte("%PDF-1.7 ..."), MimePDF},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, MimePNG},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, MimeJPEG},
		{"gif", []byte("GIF89a...."), MimeGIF},
		{"tiff le", []byte{'I', 'I', 0x2A, 0x00}, MimeTIFF},
		{"tiff be", []byte{'M', 'M', 0x00, 0x2A}, MimeTIFF},
		{"bmp", []byte("BM......"), MimeBMP},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBP"), MimeWebP},
		{"unknown", []byte("hello world"), ""},
		{"short", []byte{0x01}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMimeType(tt.data); got != tt.want {
				t.Errorf("DetectMimeType = %q, want %q", got, tt.want)
			}
		})
	}
}
