/**
 * Recognition engine registry.
 *
 * Engines are black boxes producing detections for a page image. The
 * registry runs them concurrently but flattens results in registration
 * order, so reconciliation stays deterministic for a fixed engine list.
 */

package engine

import (
	"context"
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
	"github.com/asepsafrudin/hybrid-ocr/internal/ocr"
)

// minDetectionConfidence: raw detections below this are noise and dropped
// before reconciliation.
const minDetectionConfidence = 0.3

// Engine is one recognition backend.
type Engine interface {
	Name() string
	Detect(ctx context.Context, img image.Image) ([]ocr.Detection, error)
}

// Registry fans a page image out to every registered engine.
type Registry struct {
	engines       []Engine
	minConfidence float64
	log           *logging.Logger
}

func NewRegistry(logger *logging.Logger, engines ...Engine) *Registry {
	if logger == nil {
		logger = logging.New("engines")
	}
	return &Registry{
		engines:       engines,
		minConfidence: minDetectionConfidence,
		log:           logger,
	}
}

// Names lists registered engines in execution order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.engines))
	for i, e := range r.engines {
		names[i] = e.Name()
	}
	return names
}

// DetectAll runs every engine against the image and returns the
// confidence-filtered detections flattened in registration order. A failing
// engine contributes nothing; the page proceeds with whichever engines
// succeeded.
func (r *Registry) DetectAll(ctx context.Context, img image.Image) []ocr.Detection {
	results := make([][]ocr.Detection, len(r.engines))

	g, gctx := errgroup.WithContext(ctx)
	for i, eng := range r.engines {
		g.Go(func() error {
			detections, err := eng.Detect(gctx, img)
			if err != nil {
				r.log.Warn("engine failed, continuing without it", logging.Fields{
					"engine": eng.Name(), "error": err,
				})
				return nil
			}
			results[i] = detections
			return nil
		})
	}
	g.Wait()

	var flattened []ocr.Detection
	for _, detections := range results {
		for _, d := range detections {
			if d.Confidence < r.minConfidence {
				continue
			}
			flattened = append(flattened, d)
		}
	}
	return flattened
}
