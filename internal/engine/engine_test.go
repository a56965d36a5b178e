package engine

import (
	"context"
	"fmt"
	"image"
	"testing"

	"github.com/asepsafrudin/hybrid-ocr/internal/ocr"
)

type stubEngine struct {
	name       string
	detections []ocr.Detection
	err        error
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Detect(ctx context.Context, img image.Image) ([]ocr.Detection, error) {
	return s.detections, s.err
}

func TestDetectAllFlattensInRegistrationOrder(t *testing.T) {
	first := &stubEngine{name: "first", detections: []ocr.Detection{
		{Text: "a", Confidence: 0.9, EngineID: "first"},
		{Text: "b", Confidence: 0.8, EngineID: "first"},
	}}
	second := &stubEngine{name: "second", detections: []ocr.Detection{
		{Text: "c", Confidence: 0.7, EngineID: "second"},
	}}

	r := NewRegistry(nil, first, second)
	got := r.DetectAll(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)))

	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %d detections, want %d", len(got), len(want))
	}
	for i, text := range want {
		if got[i].Text != text {
			t.Errorf("detection %d = %q, want %q (registration order)", i, got[i].Text, text)
		}
	}
}

func TestDetectAllToleratesEngineFailure(t *testing.T) {
	broken := &stubEngine{name: "broken", err: fmt.Errorf("model not loaded")}
	working := &stubEngine{name: "working", detections: []ocr.Detection{
		{Text: "ok", Confidence: 0.9, EngineID: "working"},
	}}

	r := NewRegistry(nil, broken, working)
	got := r.DetectAll(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)))

	if len(got) != 1 || got[0].Text != "ok" {
		t.Fatalf("expected the working engine's output only, got %+v", got)
	}
}

func TestDetectAllFiltersLowConfidence(t *testing.T) {
	e := &stubEngine{name: "e", detections: []ocr.Detection{
		{Text: "keep", Confidence: 0.31},
		{Text: "drop", Confidence: 0.29},
		{Text: "noise", Confidence: 0.0},
	}}

	r := NewRegistry(nil, e)
	got := r.DetectAll(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)))

	if len(got) != 1 || got[0].Text != "keep" {
		t.Fatalf("low-confidence detections must be dropped, got %+v", got)
	}
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry(nil, &stubEngine{name: "one"}, &stubEngine{name: "two"})
	names := r.Names()
	if len(names) != 2 || names[0] != "one" || names[1] != "two" {
		t.Errorf("Names = %v", names)
	}
}
