/**
 * Document processor: the full pipeline for one job.
 *
 * pages -> engines -> reconciliation -> assembly -> type detection ->
 * corrections -> verification candidates -> persistence.
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/asepsafrudin/hybrid-ocr/internal/doctype"
	"github.com/asepsafrudin/hybrid-ocr/internal/engine"
	procerrors "github.com/asepsafrudin/hybrid-ocr/internal/errors"
	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
	"github.com/asepsafrudin/hybrid-ocr/internal/ocr"
	"github.com/asepsafrudin/hybrid-ocr/internal/pattern"
	"github.com/asepsafrudin/hybrid-ocr/internal/pipeline"
	"github.com/asepsafrudin/hybrid-ocr/internal/section"
	"github.com/asepsafrudin/hybrid-ocr/internal/storage"
	"github.com/asepsafrudin/hybrid-ocr/internal/verify"
)

// ProcessRequest is one document job.
type ProcessRequest struct {
	JobID        string `json:"job_id"`
	UserID       string `json:"user_id,omitempty"`
	Filename     string `json:"filename"`
	FileBuffer   []byte `json:"-"`
	DocumentType string `json:"document_type,omitempty"`
}

// ProcessResult is everything one pass produces.
type ProcessResult struct {
	TaskID           string                    `json:"task_id"`
	Text             string                    `json:"text"`
	DocumentType     string                    `json:"document_type"`
	SuggestedType    *doctype.Candidate        `json:"suggested_type,omitempty"`
	Regions          []ocr.MergedRegion        `json:"regions"`
	Confidence       ocr.ConfidenceScores      `json:"confidence_scores"`
	CorrectionBoost  float64                   `json:"correction_boost"`
	ContextBoost     float64                   `json:"context_boost"`
	Sections         []section.DocumentSection `json:"sections,omitempty"`
	Candidates       []verify.Candidate        `json:"verification_candidates"`
	Pages            int                       `json:"pages"`
	MimeType         string                    `json:"mime_type"`
	ProcessingTimeMs int64                     `json:"processing_time_ms"`
}

// Options wires the processor's collaborators. Storage and Embeddings may
// be nil; processing then runs without persistence.
type Options struct {
	Engines     *engine.Registry
	Patterns    *pattern.Store
	Storage     *storage.Manager
	Embeddings  *EmbeddingClient
	PDFDPI      int
	Concurrency int
	Logger      *logging.Logger
}

// DocumentProcessor runs the pipeline for one job at a time per call; calls
// are safe concurrently because the only shared state is the rule store.
type DocumentProcessor struct {
	engines     *engine.Registry
	patterns    *pattern.Store
	corrector   *pipeline.Corrector
	prioritizer *verify.Prioritizer
	sections    *section.Detector
	reconciler  *ocr.Reconciler
	storage     *storage.Manager
	embeddings  *EmbeddingClient
	pdfDPI      int
	concurrency int
	log         *logging.Logger
}

func NewDocumentProcessor(opts Options) (*DocumentProcessor, error) {
	if opts.Engines == nil {
		return nil, fmt.Errorf("engine registry is required")
	}
	if opts.Patterns == nil {
		return nil, fmt.Errorf("pattern store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New("processor")
	}
	dpi := opts.PDFDPI
	if dpi == 0 {
		dpi = 200
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 2
	}

	return &DocumentProcessor{
		engines:     opts.Engines,
		patterns:    opts.Patterns,
		corrector:   pipeline.NewCorrector(opts.Patterns, logger.WithComponent("pipeline")),
		prioritizer: verify.NewPrioritizer(nil, logger.WithComponent("verify")),
		sections:    section.NewDetector(),
		reconciler:  ocr.NewReconciler(),
		storage:     opts.Storage,
		embeddings:  opts.Embeddings,
		pdfDPI:      dpi,
		concurrency: concurrency,
		log:         logger,
	}, nil
}

// ProcessDocument runs the whole pipeline and persists the result.
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	if req == nil || req.JobID == "" {
		return nil, procerrors.NewInvalidInput("", "job id is required")
	}
	if len(req.FileBuffer) == 0 {
		return nil, procerrors.NewInvalidInput(req.JobID, "file buffer is empty")
	}
	start := time.Now()

	p.log.Info("processing document", logging.Fields{
		"job_id": req.JobID, "filename": req.Filename, "bytes": len(req.FileBuffer),
	})

	mimeType := DetectMimeType(req.FileBuffer)
	if !IsSupported(mimeType) {
		return nil, procerrors.NewUnsupportedFormat(req.JobID, mimeType)
	}

	pages, err := p.renderPages(req.FileBuffer, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare pages for job %s: %w", req.JobID, err)
	}
	p.log.Info("pages rendered", logging.Fields{"job_id": req.JobID, "pages": len(pages)})

	pageRegions, err := p.recognizePages(ctx, pages)
	if err != nil {
		return nil, err
	}

	// Renumber regions sequentially across the document and tag pages.
	var regions []ocr.MergedRegion
	pageTexts := make([]string, len(pages))
	for pageIdx, pr := range pageRegions {
		for i := range pr {
			pr[i].ID = len(regions)
			pr[i].Page = pageIdx
			regions = append(regions, pr[i])
		}
		pageTexts[pageIdx] = ocr.AssemblePage(pr)
	}

	rawText := ocr.AssembleDocument(pageTexts)

	documentType := req.DocumentType
	if documentType == "" {
		documentType = p.patterns.DetectDocumentType(rawText)
	}

	corrected := p.corrector.Run(rawText, documentType)

	var suggested *doctype.Candidate
	if documentType == pattern.DefaultDocumentType {
		discovery := doctype.NewDiscovery(nil)
		suggested = discovery.Analyze(corrected.Text)
	}

	var sections []section.DocumentSection
	if len(pages) > 1 {
		sections = p.sections.DetectSections(pageTexts)
	}

	perPage := make([][]verify.Candidate, len(pages))
	for pageIdx, pr := range pageRegions {
		perPage[pageIdx] = p.prioritizer.Select(pr, pages[pageIdx])
	}
	candidates := verify.Merge(perPage)

	result := &ProcessResult{
		TaskID:           req.JobID,
		Text:             corrected.Text,
		DocumentType:     documentType,
		SuggestedType:    suggested,
		Regions:          regions,
		Confidence:       ocr.Confidences(regions),
		CorrectionBoost:  corrected.CorrectionBoost,
		ContextBoost:     corrected.ContextBoost,
		Sections:         sections,
		Candidates:       candidates,
		Pages:            len(pages),
		MimeType:         mimeType,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}

	if err := p.persist(ctx, result); err != nil {
		return nil, err
	}

	p.log.Info("document processed", logging.Fields{
		"job_id":     req.JobID,
		"regions":    len(regions),
		"confidence": result.Confidence.Overall,
		"candidates": len(candidates),
		"elapsed_ms": result.ProcessingTimeMs,
	})
	return result, nil
}

// renderPages turns the raw file into one image per page.
func (p *DocumentProcessor) renderPages(data []byte, mimeType string) ([]image.Image, error) {
	if mimeType == MimePDF {
		return RenderPDF(data, p.pdfDPI)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return []image.Image{img}, nil
}

// recognizePages runs engines and reconciliation per page, bounded by the
// configured concurrency. Result slots keep page order stable.
func (p *DocumentProcessor) recognizePages(ctx context.Context, pages []image.Image) ([][]ocr.MergedRegion, error) {
	pageRegions := make([][]ocr.MergedRegion, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, page := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			detections := p.engines.DetectAll(gctx, page)
			pageRegions[i] = p.reconciler.Merge(detections)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pageRegions, nil
}

// persist stores the completed result. A configured embedding client adds a
// document vector; its failure is non-fatal.
func (p *DocumentProcessor) persist(ctx context.Context, result *ProcessResult) error {
	if p.storage == nil {
		return nil
	}

	var embedding []float32
	if p.embeddings != nil && result.Text != "" {
		var err error
		embedding, err = p.embeddings.GenerateEmbedding(ctx, result.Text)
		if err != nil {
			p.log.Warn("embedding generation failed, storing without vector", logging.Fields{
				"task_id": result.TaskID, "error": err,
			})
		}
	}

	doc := &storage.ProcessedDocument{
		TaskID:       result.TaskID,
		DocumentType: result.DocumentType,
		OutputData:   result.outputData(),
		Embedding:    embedding,
		TextLength:   len(result.Text),
		Pages:        result.Pages,
	}
	if err := p.storage.StoreProcessedDocument(ctx, doc); err != nil {
		return procerrors.NewStorageFailed(result.TaskID, "store_result", err)
	}
	return nil
}

// UpdateTaskStatus lets queue consumers record transitions and failures.
func (p *DocumentProcessor) UpdateTaskStatus(ctx context.Context, taskID, status, errorCode, errorMessage string) error {
	if p.storage == nil {
		return nil
	}
	return p.storage.UpdateTaskStatus(ctx, taskID, status, errorCode, errorMessage)
}

// outputData flattens the result for the task row's JSON column.
func (r *ProcessResult) outputData() map[string]interface{} {
	out := map[string]interface{}{
		"text":               r.Text,
		"document_type":      r.DocumentType,
		"pages":              r.Pages,
		"mime_type":          r.MimeType,
		"regions_count":      len(r.Regions),
		"confidence_scores":  r.Confidence,
		"correction_boost":   r.CorrectionBoost,
		"context_boost":      r.ContextBoost,
		"candidates_count":   len(r.Candidates),
		"processing_time_ms": r.ProcessingTimeMs,
	}
	if len(r.Sections) > 0 {
		out["sections"] = section.Summary(r.Sections)
	}
	if r.SuggestedType != nil {
		out["suggested_type"] = r.SuggestedType
	}
	return out
}
