package pipeline

import (
	"log/slog"

	"github.com/joseph-ayodele/inspection-verifier/internal/common"
	"github.com/joseph-ayodele/inspection-verifier/internal/extract"
	"github.com/joseph-ayodele/inspection-verifier/internal/ocr"
)

// NewFromConfig wires the OCR engine, the extraction adapter and the processor.
func NewFromConfig(cfg common.OCRConfig, logger *slog.Logger, opts ...ocr.Option) *Processor {
	engine := ocr.NewExtractor(ocr.Config{
		Language:       cfg.Language,
		DPI:            cfg.DPI,
		MaxPages:       cfg.MaxPages,
		TessdataDir:    cfg.TessdataDir,
		HeicConverter:  cfg.HeicConverter,
		MaxImageHeight: cfg.ImageMaxHeight,
		TempDir:        cfg.TempDir,
	}, logger, opts...)
	return NewProcessor(extract.NewAdapter(engine, logger), logger)
}
