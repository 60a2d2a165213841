// Package pipeline runs one uploaded file through extraction, field rules
// and scoring.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/analysis"
	"github.com/joseph-ayodele/inspection-verifier/internal/async"
	"github.com/joseph-ayodele/inspection-verifier/internal/extract"
	"github.com/joseph-ayodele/inspection-verifier/internal/fields"
)

// TextExtractor is the first stage: file -> text.
type TextExtractor interface {
	ExtractText(ctx context.Context, src extract.Source) (extract.TextResult, error)
}

type Processor struct {
	logger    *slog.Logger
	extractor TextExtractor
}

func NewProcessor(extractor TextExtractor, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger, extractor: extractor}
}

// Analyze produces the verdict for f. Extraction errors are returned as is,
// so callers can tell unsupported types from unreadable documents.
func (p *Processor) Analyze(ctx context.Context, f async.File) (*analysis.Result, error) {
	start := time.Now()

	// 1) file -> text
	tr, err := p.extractor.ExtractText(ctx, extract.Source{Name: f.OriginalName, Path: f.Path, MimeType: f.MimeType})
	if err != nil {
		p.logger.Error("processor.extract.failed", "file", f.OriginalName, "error", err)
		return nil, err
	}
	p.logger.Debug("processor.extract.ok",
		"file", f.OriginalName,
		"method", tr.Method,
		"pages", tr.Pages,
		"chars", len(tr.Text),
		"warnings", len(tr.Warnings),
	)

	// 2) text -> fields and content signals
	res := &analysis.Result{
		Type:          tr.Type,
		ExtractedData: fields.Extract(tr.Text),
		ExtractedText: analysis.Excerpt(tr.Text, analysis.TextExcerptRunes),
		Details: analysis.Details{
			Content: analysis.AnalyzeContent(tr.Text, tr.OCRConfidence),
			File: analysis.FileDetails{
				Name:     f.OriginalName,
				Size:     f.Size,
				MimeType: f.MimeType,
				Path:     f.Path,
			},
		},
	}
	switch tr.Type {
	case constants.PDF:
		res.Details.PDF = &analysis.PDFDetails{
			Method:   tr.Method,
			Pages:    tr.Pages,
			Metadata: analysis.AnalyzeMetadata(tr.Metadata),
		}
	case constants.IMAGE:
		img := &analysis.ImageDetails{
			OCRText: analysis.Excerpt(tr.Text, analysis.OCRExcerptRunes),
			Method:  tr.Method,
		}
		if tr.OCRConfidence != nil {
			img.OCRConfidence = *tr.OCRConfidence
		}
		res.Details.Image = img
	}

	// 3) score, status, issues, summary
	res.Verdict()

	p.logger.Info("processor.analyze.ok",
		"file", f.OriginalName,
		"type", res.Type,
		"status", res.Status,
		"confidence", res.Confidence,
		"fields", res.ExtractedData.FieldsPopulated,
		"issues", len(res.Issues),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
