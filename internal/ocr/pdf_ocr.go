package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RecognizePDF rasterizes every page with pdftoppm and OCRs each one.
// Pages that fail OCR are skipped with a warning.
func (e *Extractor) RecognizePDF(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	res := Result{Method: MethodPDFOCR, Language: e.cfg.Language}

	tmpDir, err := os.MkdirTemp(e.cfg.TempDir, "iv-pp-*")
	if err != nil {
		return res, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	args = append(args, path, prefix)
	if _, errb, err := e.runner.Run(ctx, e.logger, e.cfg.Pdftoppm, args...); err != nil {
		res.Warnings = append(res.Warnings, string(errb))
		return res, fmt.Errorf("pdftoppm: %w", err)
	}

	pages, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(pages)
	if len(pages) == 0 {
		res.Warnings = append(res.Warnings, "pdftoppm produced no images")
		return res, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	for _, img := range pages {
		txt, w, err := e.tesseractOCR(ctx, img)
		res.Warnings = append(res.Warnings, w...)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(txt)
	}

	res.Text = Normalize(b.String())
	res.Pages = len(pages)
	res.Duration = time.Since(start)
	return res, nil
}
