package ocr

import (
	"log/slog"
	"time"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Language string // tesseract language, default "spa"
	DPI      int    // rasterization DPI for PDFs, default 300
	MaxPages int    // 0 = no limit

	TessdataDir   string
	HeicConverter string // "magick" | "heif-convert" | "sips"

	PSM int // page segmentation mode; 0 keeps tesseract's default
	OEM int // 1 = LSTM; leave 0 to use default

	MaxImageHeight int    // images taller than this are scaled down before OCR, default 1200
	TempDir        string // where preprocessed artifacts go; empty -> os.TempDir()
}

// Result is what one recognition pass produced.
type Result struct {
	Text     string
	Pages    int
	Method   string // "pdf-ocr" | "pdf-text" | "image-ocr"
	Language string
	Duration time.Duration
	Warnings []string

	// Confidence is the mean tesseract word confidence in 0..100, 0 when no words were scored.
	Confidence float64
	Words      int
}

const (
	MethodPDFOCR   = "pdf-ocr"
	MethodPDFText  = "pdf-text"
	MethodImageOCR = "image-ocr"
)

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner swaps the command runner, mostly for tests.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "spa"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxImageHeight <= 0 {
		cfg.MaxImageHeight = 1200
	}
	e := &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Config returns the effective configuration after defaults were applied.
func (e *Extractor) Config() Config { return e.cfg }
