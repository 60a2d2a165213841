package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/common"
	"github.com/joseph-ayodele/inspection-verifier/internal/ocr"
)

// MinPrimaryTextLength is the trimmed length below which PDF OCR output is
// considered too thin and the text layer is consulted.
const MinPrimaryTextLength = 100

// Engine is the black-box recognition service. *ocr.Extractor satisfies it.
type Engine interface {
	RecognizePDF(ctx context.Context, path string) (ocr.Result, error)
	TextLayer(ctx context.Context, path string) (ocr.Result, error)
	RecognizeImage(ctx context.Context, path string) (ocr.Result, error)
	ReadMetadata(path string) (*ocr.PDFMetadata, error)
}

// Source is one stored upload to read text from.
type Source struct {
	Name     string
	Path     string
	MimeType string
}

type TextResult struct {
	Type          constants.DocumentType
	Text          string
	OCRConfidence *float64 // images only
	Method        string
	Pages         int
	Metadata      *ocr.PDFMetadata // PDFs only
	Warnings      []string
}

type Adapter struct {
	engine Engine
	logger *slog.Logger
}

func NewAdapter(engine Engine, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{engine: engine, logger: logger}
}

// ExtractText classifies the source by MIME type and runs the matching path.
func (a *Adapter) ExtractText(ctx context.Context, src Source) (TextResult, error) {
	docType := constants.DocumentTypeForMime(src.MimeType)
	switch docType {
	case constants.PDF:
		return a.extractPDF(ctx, src)
	case constants.IMAGE:
		return a.extractImage(ctx, src)
	default:
		return TextResult{Type: constants.UNKNOWN}, common.UnsupportedTypef("unsupported mime type %q for %s", src.MimeType, src.Name)
	}
}

func (a *Adapter) extractPDF(ctx context.Context, src Source) (TextResult, error) {
	out := TextResult{Type: constants.PDF}

	primary, perr := a.engine.RecognizePDF(ctx, src.Path)
	out.Warnings = append(out.Warnings, primary.Warnings...)
	out.Text, out.Method, out.Pages = primary.Text, ocr.MethodPDFOCR, primary.Pages

	if perr != nil || len(strings.TrimSpace(primary.Text)) < MinPrimaryTextLength {
		a.logger.Info("pdf ocr insufficient, trying text layer",
			"file", src.Name,
			"chars", len(strings.TrimSpace(primary.Text)),
			"error", perr,
		)
		fallback, ferr := a.engine.TextLayer(ctx, src.Path)
		out.Warnings = append(out.Warnings, fallback.Warnings...)
		if ferr == nil && len(strings.TrimSpace(fallback.Text)) > len(strings.TrimSpace(out.Text)) {
			out.Text, out.Method = fallback.Text, ocr.MethodPDFText
			if fallback.Pages > 0 {
				out.Pages = fallback.Pages
			}
		}
		if strings.TrimSpace(out.Text) == "" {
			cause := errors.Join(perr, ferr)
			if cause == nil {
				cause = errors.New("no text recognized")
			}
			return out, fmt.Errorf("%w: %s: %w", common.ErrExtractionFailure, src.Name, cause)
		}
	}

	md, err := a.engine.ReadMetadata(src.Path)
	if err != nil {
		out.Warnings = append(out.Warnings, "metadata: "+err.Error())
		a.logger.Warn("pdf metadata unavailable", "file", src.Name, "error", err)
	} else {
		out.Metadata = md
		if out.Pages == 0 {
			out.Pages = md.Pages
		}
	}
	return out, nil
}

func (a *Adapter) extractImage(ctx context.Context, src Source) (TextResult, error) {
	out := TextResult{Type: constants.IMAGE, Method: ocr.MethodImageOCR}

	res, err := a.engine.RecognizeImage(ctx, src.Path)
	out.Warnings = append(out.Warnings, res.Warnings...)
	if err != nil {
		return out, fmt.Errorf("%w: %s: %w", common.ErrExtractionFailure, src.Name, err)
	}
	conf := res.Confidence
	out.Text = res.Text
	out.OCRConfidence = &conf
	out.Pages = res.Pages
	return out, nil
}
